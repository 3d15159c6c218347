package warehouse

import (
	"bytes"
	"context"
	"net/http"
	"strings"

	"cloud.google.com/go/bigquery"
	"github.com/pkg/errors"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/Xanthus1/louisville-expenditure-etl/pkg/columnar"
	"github.com/Xanthus1/louisville-expenditure-etl/pkg/dataset"
)

// BigQuery appends through Parquet load jobs.
type BigQuery struct {
	client *bigquery.Client
}

func NewBigQuery(ctx context.Context, projectID, credentialsPath string) (*BigQuery, error) {
	if strings.TrimSpace(projectID) == "" {
		projectID = bigquery.DetectProjectID
	}
	options := []option.ClientOption{option.WithTelemetryDisabled()}
	if strings.TrimSpace(credentialsPath) != "" {
		options = append(options, option.WithCredentialsFile(credentialsPath))
	}
	client, err := bigquery.NewClient(ctx, projectID, options...)
	if err != nil {
		return nil, errors.Wrap(err, "create bigquery client")
	}
	return &BigQuery{client: client}, nil
}

func (b *BigQuery) Append(ctx context.Context, ref TableRef, ds *dataset.Dataset) error {
	if err := b.ensureDataset(ctx, ref.Dataset); err != nil {
		return err
	}

	payload, err := columnar.Encode(ds, columnar.CompressionSnappy)
	if err != nil {
		return errors.Wrap(err, "encode load batch")
	}
	src := bigquery.NewReaderSource(bytes.NewReader(payload))
	src.SourceFormat = bigquery.Parquet

	loader := b.client.Dataset(ref.Dataset).Table(ref.Table).LoaderFrom(src)
	loader.WriteDisposition = bigquery.WriteAppend
	loader.CreateDisposition = bigquery.CreateIfNeeded

	job, err := loader.Run(ctx)
	if err != nil {
		return errors.Wrapf(err, "start load job into %s", ref)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return errors.Wrapf(err, "wait for load job %s", job.ID())
	}
	if err := status.Err(); err != nil {
		return errors.Wrapf(err, "load job %s into %s", job.ID(), ref)
	}
	return nil
}

func (b *BigQuery) ensureDataset(ctx context.Context, name string) error {
	d := b.client.Dataset(name)
	_, err := d.Metadata(ctx)
	if err == nil {
		return nil
	}
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) || apiErr.Code != http.StatusNotFound {
		return errors.Wrapf(err, "lookup dataset %s", name)
	}
	if err := d.Create(ctx, &bigquery.DatasetMetadata{}); err != nil {
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusConflict {
			return nil
		}
		return errors.Wrapf(err, "create dataset %s", name)
	}
	return nil
}

func (b *BigQuery) Close() error {
	return b.client.Close()
}
