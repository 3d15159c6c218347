package source

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Xanthus1/louisville-expenditure-etl/pkg/dataset"
	"github.com/Xanthus1/louisville-expenditure-etl/pkg/expenditure"
)

type RemoteOptions struct {
	Retries int
	Timeout time.Duration
	Cache   *Cache
	Logger  *zap.Logger

	// RetryWaitMin and RetryWaitMax bound the backoff between attempts.
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
}

// RemoteFetcher downloads <BaseURL>/<file>.csv.gz with bounded retries.
type RemoteFetcher struct {
	BaseURL string

	client *retryablehttp.Client
	cache  *Cache
	logger *zap.Logger
}

func NewRemoteFetcher(baseURL string, opts RemoteOptions) *RemoteFetcher {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}

	client := retryablehttp.NewClient()
	client.RetryMax = opts.Retries
	if opts.RetryWaitMin > 0 {
		client.RetryWaitMin = opts.RetryWaitMin
	}
	if opts.RetryWaitMax > 0 {
		client.RetryWaitMax = opts.RetryWaitMax
	}
	if opts.Timeout > 0 {
		client.HTTPClient.Timeout = opts.Timeout
	}
	client.Logger = leveledLogger{l: logger.Sugar()}
	// Hand the last response back so non-200s surface as HTTPError.
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &RemoteFetcher{
		BaseURL: baseURL,
		client:  client,
		cache:   opts.Cache,
		logger:  logger,
	}
}

func (f *RemoteFetcher) Fetch(ctx context.Context, year int) (*dataset.Dataset, error) {
	url := expenditure.SourceURL(f.BaseURL, year)

	body, err := f.body(ctx, url)
	if err != nil {
		return nil, err
	}
	ds, err := dataset.ReadCSV(bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrapf(err, "parse %s", url)
	}
	return ds, nil
}

func (f *RemoteFetcher) body(ctx context.Context, url string) ([]byte, error) {
	if f.cache != nil {
		b, ok, err := f.cache.Get(url)
		if err != nil {
			f.logger.Warn("fetch cache read failed", zap.Error(err))
		} else if ok {
			f.logger.Debug("fetch cache hit", zap.String("url", url), zap.Int("bytes", len(b)))
			return b, nil
		}
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build source request")
	}
	resp, err := f.client.Do(req)
	if err != nil {
		if resp != nil {
			_ = resp.Body.Close()
		}
		return nil, errors.Wrapf(err, "fetch %s", url)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, newHTTPError(url, resp, snippet)
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", url)
	}

	if f.cache != nil {
		if err := f.cache.Put(url, b); err != nil {
			f.logger.Warn("fetch cache write failed", zap.Error(err))
		}
	}
	return b, nil
}

// leveledLogger routes retryablehttp logging onto zap.
type leveledLogger struct {
	l *zap.SugaredLogger
}

func (z leveledLogger) Error(msg string, keysAndValues ...interface{}) {
	z.l.Errorw(msg, keysAndValues...)
}

func (z leveledLogger) Info(msg string, keysAndValues ...interface{}) {
	z.l.Infow(msg, keysAndValues...)
}

func (z leveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	z.l.Debugw(msg, keysAndValues...)
}

func (z leveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	z.l.Warnw(msg, keysAndValues...)
}
