package usage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/telcobill-backend/internal/subscriptions"
	"github.com/angelmondragon/telcobill-backend/pkg/db"
	"github.com/angelmondragon/telcobill-backend/pkg/db/models"
	"github.com/angelmondragon/telcobill-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/telcobill-backend/pkg/errors"
)

const (
	FormatCSV  = "csv"
	FormatJSON = "json"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type Service interface {
	Record(ctx context.Context, customerID, subscriptionID uuid.UUID, input RecordInput) (*UsageDTO, error)
	Get(ctx context.Context, customerID, subscriptionID uuid.UUID) (*UsageDTO, error)
	Export(ctx context.Context, customerID, subscriptionID uuid.UUID, format string, w io.Writer) error
}

type ServiceParams struct {
	Repo          *Repository
	Subscriptions *subscriptions.Repository
	Tx            txRunner
	Now           func() time.Time
}

type service struct {
	repo *Repository
	subs *subscriptions.Repository
	tx   txRunner
	now  func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil || params.Subscriptions == nil {
		return nil, fmt.Errorf("usage and subscription repositories required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{repo: params.Repo, subs: params.Subscriptions, tx: params.Tx, now: now}, nil
}

// Record adds consumption to the month counter and deducts it from the balances. The
// counter keeps the full amount even when a balance clamps at zero.
func (s *service) Record(ctx context.Context, customerID, subscriptionID uuid.UUID, input RecordInput) (*UsageDTO, error) {
	if input.DataMB < 0 || input.VoiceMinutes < 0 || input.SMS < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "usage quantities must be non-negative")
	}
	if input.DataMB == 0 && input.VoiceMinutes == 0 && input.SMS == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "usage report is empty")
	}

	now := s.now()
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		subs := s.subs.WithTx(tx)
		sub, err := subs.FindForCustomer(ctx, customerID, subscriptionID)
		if err != nil {
			return db.MapError(err, "subscription")
		}
		if sub.Status != enums.SubscriptionStatusActive {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "cannot record usage on a %s subscription", sub.Status)
		}
		if err := s.repo.WithTx(tx).Accumulate(ctx, sub.ID, int(now.Month()), now.Year(), input.DataMB, input.VoiceMinutes, input.SMS, now); err != nil {
			return err
		}
		return subs.DeductUsage(ctx, sub.ID, input.DataMB, input.VoiceMinutes, input.SMS, now)
	})
	if err != nil {
		return nil, pkgerrors.Ensure(err, pkgerrors.CodeDependency, "record usage")
	}
	return s.Get(ctx, customerID, subscriptionID)
}

func (s *service) Get(ctx context.Context, customerID, subscriptionID uuid.UUID) (*UsageDTO, error) {
	sub, err := s.subs.FindForCustomer(ctx, customerID, subscriptionID)
	if err != nil {
		return nil, db.MapError(err, "subscription")
	}
	history, err := s.repo.History(ctx, sub.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load usage")
	}

	now := s.now()
	out := &UsageDTO{
		SubscriptionID:      sub.ID,
		Current:             CounterDTO{Month: int(now.Month()), Year: now.Year()},
		DataBalanceMB:       sub.DataBalanceMB,
		VoiceBalanceMinutes: sub.VoiceBalanceMinutes,
		SMSBalance:          sub.SMSBalance,
	}
	for i := range history {
		counter := counterFromModel(&history[i])
		if counter.Month == out.Current.Month && counter.Year == out.Current.Year {
			out.Current = counter
		}
		out.History = append(out.History, counter)
	}
	return out, nil
}

// Export writes the usage history as CSV (with header) or a JSON array.
func (s *service) Export(ctx context.Context, customerID, subscriptionID uuid.UUID, format string, w io.Writer) error {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = FormatCSV
	}
	if format != FormatCSV && format != FormatJSON {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "unsupported export format %q", format)
	}

	sub, err := s.subs.FindForCustomer(ctx, customerID, subscriptionID)
	if err != nil {
		return db.MapError(err, "subscription")
	}
	history, err := s.repo.History(ctx, sub.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load usage")
	}
	rows := exportRows(sub, history)

	if format == FormatJSON {
		return json.NewEncoder(w).Encode(rows)
	}
	return gocsv.Marshal(rows, w)
}

func exportRows(sub *models.Subscription, history []models.UsageCounter) []*ExportRow {
	rows := make([]*ExportRow, 0, len(history))
	for _, h := range history {
		rows = append(rows, &ExportRow{
			PhoneNumber:      sub.PhoneNumber,
			Period:           fmt.Sprintf("%04d-%02d", h.Year, h.Month),
			DataUsedMB:       h.DataUsedMB,
			VoiceUsedMinutes: h.VoiceUsedMinutes,
			SMSUsed:          h.SMSUsed,
			UpdatedAt:        h.UpdatedAt.UTC(),
		})
	}
	return rows
}
