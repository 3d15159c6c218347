// Package healthcheck probes the orchestration API before a run.
package healthcheck

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

const DefaultTimeout = 10 * time.Second

// Check GETs url and fails unless the response is 200 OK.
func Check(ctx context.Context, client *http.Client, url string) error {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.Wrap(err, "build healthcheck request")
	}
	resp, err := client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "healthcheck %s", url)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("healthcheck %s: status %s", url, resp.Status)
	}
	return nil
}
