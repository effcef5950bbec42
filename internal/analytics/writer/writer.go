package writer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	"github.com/cenkalti/backoff/v4"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/telcobill-backend/internal/analytics/types"
	pkgbigquery "github.com/angelmondragon/telcobill-backend/pkg/bigquery"
)

// Config controls batching and retries. Zero values fall back to one row per
// insert and three attempts with a 250ms to 2s exponential backoff.
type Config struct {
	Table          string
	BatchSize      int
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = 1
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = 250 * time.Millisecond
	}
	if c.MaxBackoff < c.InitialBackoff {
		c.MaxBackoff = max(2*time.Second, c.InitialBackoff)
	}
	return c
}

type rowInserter interface {
	InsertRows(ctx context.Context, table string, rows []any) error
}

// BillingEventsTable describes the billing_events table so the client can
// create it, partitioned by day on occurred_at.
func BillingEventsTable(name string) pkgbigquery.Table {
	nullable := func(field string, t cbigquery.FieldType) *cbigquery.FieldSchema {
		return &cbigquery.FieldSchema{Name: field, Type: t}
	}
	required := func(field string, t cbigquery.FieldType) *cbigquery.FieldSchema {
		return &cbigquery.FieldSchema{Name: field, Type: t, Required: true}
	}
	return pkgbigquery.Table{
		Name:           name,
		PartitionField: "occurred_at",
		Schema: cbigquery.Schema{
			required("event_id", cbigquery.StringFieldType),
			required("event_type", cbigquery.StringFieldType),
			required("occurred_at", cbigquery.TimestampFieldType),
			nullable("customer_id", cbigquery.StringFieldType),
			nullable("subscription_id", cbigquery.StringFieldType),
			nullable("invoice_id", cbigquery.StringFieldType),
			nullable("plan_id", cbigquery.StringFieldType),
			nullable("amount_minor", cbigquery.IntegerFieldType),
			nullable("tax_minor", cbigquery.IntegerFieldType),
			nullable("reason", cbigquery.StringFieldType),
			nullable("payload", cbigquery.JSONFieldType),
		},
	}
}

// BigQueryWriter buffers billing event rows and streams them in batches.
// Pub/Sub callbacks run concurrently, so the buffer is guarded.
type BigQueryWriter struct {
	mu      sync.Mutex
	inserts rowInserter
	cfg     Config
	pending []types.BillingEventRow
}

func New(inserts rowInserter, cfg Config) (*BigQueryWriter, error) {
	if inserts == nil {
		return nil, errors.New("bigquery client required")
	}
	cfg.Table = strings.TrimSpace(cfg.Table)
	if cfg.Table == "" {
		return nil, errors.New("billing events table is required")
	}
	return &BigQueryWriter{inserts: inserts, cfg: cfg.withDefaults()}, nil
}

// Insert queues row and writes the batch once it is full.
func (w *BigQueryWriter) Insert(ctx context.Context, row types.BillingEventRow) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending = append(w.pending, row)
	if len(w.pending) < w.cfg.BatchSize {
		return nil
	}
	return w.flush(ctx)
}

// Flush writes whatever is queued.
func (w *BigQueryWriter) Flush(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flush(ctx)
}

// flush keeps the batch queued on failure so the next Insert or Flush retries it.
func (w *BigQueryWriter) flush(ctx context.Context) error {
	if len(w.pending) == 0 {
		return nil
	}
	rows := make([]any, len(w.pending))
	for i := range w.pending {
		rows[i] = &w.pending[i]
	}

	attempt := func() error {
		err := w.inserts.InsertRows(ctx, w.cfg.Table, rows)
		if err != nil && !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	if err := backoff.Retry(attempt, w.policy(ctx)); err != nil {
		return fmt.Errorf("insert %d rows into %s: %w", len(rows), w.cfg.Table, err)
	}
	w.pending = w.pending[:0]
	return nil
}

func (w *BigQueryWriter) policy(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = w.cfg.InitialBackoff
	exp.MaxInterval = w.cfg.MaxBackoff
	exp.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(w.cfg.MaxAttempts-1)), ctx)
}

// retryable reports whether every underlying failure is transient. Row level
// errors count only when all rows failed for a transient reason.
func retryable(err error) bool {
	if err == nil {
		return false
	}

	var multi cbigquery.MultiError
	if errors.As(err, &multi) {
		return allRetryable(multi)
	}
	var puts cbigquery.PutMultiError
	if errors.As(err, &puts) {
		if len(puts) == 0 {
			return false
		}
		for _, row := range puts {
			if !allRetryable(row.Errors) {
				return false
			}
		}
		return true
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusTooManyRequests, http.StatusRequestTimeout,
			http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
		return false
	}

	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.Aborted, codes.DeadlineExceeded, codes.Internal,
			codes.ResourceExhausted, codes.Unavailable:
			return true
		}
	}
	return false
}

func allRetryable(errs []error) bool {
	if len(errs) == 0 {
		return false
	}
	for _, inner := range errs {
		if !retryable(inner) {
			return false
		}
	}
	return true
}

// EncodeJSON turns an arbitrary payload into a JSON column value. Empty input is NULL.
func EncodeJSON(payload any) (cbigquery.NullJSON, error) {
	var raw []byte
	switch value := payload.(type) {
	case nil:
		return cbigquery.NullJSON{}, nil
	case cbigquery.NullJSON:
		return value, nil
	case json.RawMessage:
		raw = value
	case []byte:
		raw = value
	default:
		encoded, err := json.Marshal(value)
		if err != nil {
			return cbigquery.NullJSON{}, fmt.Errorf("marshal json: %w", err)
		}
		raw = encoded
	}
	if len(raw) == 0 {
		return cbigquery.NullJSON{}, nil
	}
	return cbigquery.NullJSON{Valid: true, JSONVal: string(raw)}, nil
}
