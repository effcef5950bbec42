package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/angelmondragon/telcobill-backend/pkg/config"
	"github.com/angelmondragon/telcobill-backend/pkg/logger"
)

const metadataTimeout = 10 * time.Second

var errNotInitialized = errors.New("bigquery client not initialized")

// Table describes a destination table. Schema and PartitionField are only used
// when the table is missing and auto-create is enabled.
type Table struct {
	Name           string
	Schema         bigquery.Schema
	PartitionField string
}

// Client owns the BigQuery connection and the analytics dataset handle.
type Client struct {
	bq      *bigquery.Client
	dataset *bigquery.Dataset
	tables  []Table
	logg    *logger.Logger
}

// NewClient connects to the configured dataset and makes sure every table exists,
// creating missing ones when TELCOBILL_BIGQUERY_AUTO_CREATE is set.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.BigQueryConfig, logg *logger.Logger, tables ...Table) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	datasetID := strings.TrimSpace(cfg.Dataset)
	switch {
	case projectID == "":
		return nil, errors.New("gcp project id is required")
	case datasetID == "":
		return nil, errors.New("bigquery dataset is required")
	}

	normalized := make([]Table, 0, len(tables))
	for _, t := range tables {
		t.Name = strings.TrimSpace(t.Name)
		if t.Name == "" {
			return nil, errors.New("bigquery table name is required")
		}
		normalized = append(normalized, t)
	}

	bq, err := bigquery.NewClient(ctx, projectID, credentials(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("creating bigquery client: %w", err)
	}

	c := &Client{
		bq:      bq,
		dataset: bq.Dataset(datasetID),
		tables:  normalized,
		logg:    logg,
	}
	if err := c.prepare(ctx, cfg.AutoCreateTables); err != nil {
		_ = bq.Close()
		return nil, err
	}

	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"project": projectID,
			"dataset": datasetID,
			"tables":  len(normalized),
		}), "bigquery client initialized")
	}
	return c, nil
}

func credentials(gcp config.GCPConfig) []option.ClientOption {
	if raw := strings.TrimSpace(gcp.CredentialsJSON); raw != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(raw))}
	}
	if path := strings.TrimSpace(gcp.ApplicationCredentials); path != "" {
		return []option.ClientOption{option.WithCredentialsFile(path)}
	}
	return nil
}

// prepare checks the dataset, then each table, creating tables the caller
// described when allowed.
func (c *Client) prepare(ctx context.Context, autoCreate bool) error {
	ctx, cancel := context.WithTimeout(ctx, metadataTimeout)
	defer cancel()

	if _, err := c.dataset.Metadata(ctx); err != nil {
		return describe("dataset", c.dataset.DatasetID, err)
	}
	for _, t := range c.tables {
		_, err := c.dataset.Table(t.Name).Metadata(ctx)
		if err == nil {
			continue
		}
		if !isNotFound(err) || !autoCreate || len(t.Schema) == 0 {
			return describe("table", t.Name, err)
		}
		if err := c.create(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) create(ctx context.Context, t Table) error {
	meta := &bigquery.TableMetadata{Schema: t.Schema}
	if t.PartitionField != "" {
		meta.TimePartitioning = &bigquery.TimePartitioning{Type: bigquery.DayPartitioningType, Field: t.PartitionField}
	}
	if err := c.dataset.Table(t.Name).Create(ctx, meta); err != nil && !isConflict(err) {
		return fmt.Errorf("creating table %q: %w", t.Name, err)
	}
	if c.logg != nil {
		c.logg.Warn(c.logg.WithField(ctx, "table", t.Name), "bigquery table created")
	}
	return nil
}

func describe(kind, name string, err error) error {
	if isNotFound(err) {
		return fmt.Errorf("%s %q does not exist", kind, name)
	}
	return fmt.Errorf("checking %s %q: %w", kind, name, err)
}

// Ping re-reads dataset and table metadata. It never creates anything.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.dataset == nil {
		return errNotInitialized
	}
	return c.prepare(ctx, false)
}

// InsertRows streams rows into table. Rows are structs with bigquery tags or ValueSavers.
func (c *Client) InsertRows(ctx context.Context, table string, rows []any) error {
	if c == nil || c.dataset == nil {
		return errNotInitialized
	}
	table = strings.TrimSpace(table)
	if table == "" {
		return errors.New("bigquery table name is required")
	}
	if len(rows) == 0 {
		return nil
	}
	return c.dataset.Table(table).Inserter().Put(ctx, rows)
}

func (c *Client) Close() error {
	if c == nil || c.bq == nil {
		return nil
	}
	return c.bq.Close()
}

func apiCode(err error) int {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr != nil {
		return apiErr.Code
	}
	return 0
}

func isNotFound(err error) bool { return apiCode(err) == http.StatusNotFound }
func isConflict(err error) bool { return apiCode(err) == http.StatusConflict }
