package analytics

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/telcobill-backend/internal/risk"
	"github.com/angelmondragon/telcobill-backend/pkg/db"
	"github.com/angelmondragon/telcobill-backend/pkg/db/models"
	"github.com/angelmondragon/telcobill-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/telcobill-backend/pkg/errors"
)

const (
	DefaultRevenueMonths = 12
	MaxRevenueMonths     = 36
)

// Service builds the admin revenue and user reports and per-customer insights.
type Service interface {
	Revenue(ctx context.Context, months int) (*RevenueReport, error)
	Users(ctx context.Context) (*UsersReport, error)
	CustomerInsights(ctx context.Context, customerID uuid.UUID) (*CustomerInsights, error)
}

type service struct {
	repo *Repository
	now  func() time.Time
}

func NewService(repo *Repository, now func() time.Time) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("analytics repository required")
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{repo: repo, now: now}, nil
}

func (s *service) Revenue(ctx context.Context, months int) (*RevenueReport, error) {
	if months == 0 {
		months = DefaultRevenueMonths
	}
	if months < 0 || months > MaxRevenueMonths {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "months must be between 1 and %d", MaxRevenueMonths)
	}

	now := s.now().UTC()
	start := time.Date(now.Year(), now.Month()-time.Month(months-1), 1, 0, 0, 0, 0, time.UTC)
	invoices, err := s.repo.InvoicesSince(ctx, start)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load invoices")
	}

	paid := lo.Filter(invoices, func(inv models.Invoice, _ int) bool { return inv.Status == enums.InvoiceStatusPaid })
	report := &RevenueReport{
		Months:       months,
		InvoiceCount: len(invoices),
		TotalMinor:   sumTotals(invoices),
		PaidMinor:    sumTotals(paid),
		OutstandingMinor: sumTotals(lo.Filter(invoices, func(inv models.Invoice, _ int) bool {
			return inv.Status == enums.InvoiceStatusPending || inv.Status == enums.InvoiceStatusOverdue
		})),
		OverdueMinor: sumTotals(lo.Filter(invoices, func(inv models.Invoice, _ int) bool {
			return inv.Status == enums.InvoiceStatusOverdue
		})),
	}

	payers := lo.Uniq(lo.Map(paid, func(inv models.Invoice, _ int) uuid.UUID { return inv.CustomerID }))
	if len(payers) > 0 {
		report.ARPUMinor = decimal.NewFromInt(report.PaidMinor).
			Div(decimal.NewFromInt(int64(len(payers)))).
			Round(0).
			IntPart()
	}

	byMonth := lo.GroupBy(invoices, func(inv models.Invoice) string { return monthKey(inv.CreatedAt) })
	for i := 0; i < months; i++ {
		key := monthKey(start.AddDate(0, i, 0))
		bucket := byMonth[key]
		report.ByMonth = append(report.ByMonth, MonthRevenue{
			Month:         key,
			InvoicedMinor: sumTotals(bucket),
			PaidMinor: sumTotals(lo.Filter(bucket, func(inv models.Invoice, _ int) bool {
				return inv.Status == enums.InvoiceStatusPaid
			})),
			InvoiceCount: len(bucket),
		})
	}
	return report, nil
}

func (s *service) Users(ctx context.Context) (*UsersReport, error) {
	customers, err := s.repo.CountCustomers(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count customers")
	}
	subs, err := s.repo.Subscriptions(ctx, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load subscriptions")
	}
	plans, err := s.repo.Plans(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load plans")
	}
	numbers, err := s.repo.MsisdnStatuses(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load msisdn inventory")
	}
	signals, err := s.loadSignals(ctx, nil)
	if err != nil {
		return nil, err
	}

	planByID := lo.KeyBy(plans, func(p models.PlanConfiguration) uuid.UUID { return p.ID })
	live := lo.Filter(subs, func(sub models.Subscription, _ int) bool {
		return sub.Status == enums.SubscriptionStatusActive || sub.Status == enums.SubscriptionStatusSuspended
	})
	distribution := lo.MapToSlice(lo.GroupBy(live, func(sub models.Subscription) uuid.UUID { return sub.PlanID }),
		func(planID uuid.UUID, group []models.Subscription) PlanShare {
			return PlanShare{PlanID: planID, PlanName: planByID[planID].Name, Subscriptions: len(group)}
		})
	sort.Slice(distribution, func(i, j int) bool {
		if distribution[i].Subscriptions != distribution[j].Subscriptions {
			return distribution[i].Subscriptions > distribution[j].Subscriptions
		}
		return distribution[i].PlanName < distribution[j].PlanName
	})

	churn := map[risk.Level]int{risk.LevelLow: 0, risk.LevelMedium: 0, risk.LevelHigh: 0}
	for _, customerSubs := range lo.GroupBy(subs, func(sub models.Subscription) uuid.UUID { return sub.CustomerID }) {
		primary, ok := primarySubscription(customerSubs)
		if !ok || primary.Status == enums.SubscriptionStatusCancelled {
			continue
		}
		input := signals.input(primary, planByID, primary.StartDate, s.now())
		churn[risk.ChurnRisk(input).Level]++
	}

	return &UsersReport{
		Customers:             customers,
		SubscriptionsByStatus: lo.CountValuesBy(subs, func(sub models.Subscription) enums.SubscriptionStatus { return sub.Status }),
		PlanDistribution:      distribution,
		MsisdnByStatus:        lo.CountValues(numbers),
		ChurnRiskDistribution: churn,
	}, nil
}

func (s *service) CustomerInsights(ctx context.Context, customerID uuid.UUID) (*CustomerInsights, error) {
	customer, err := s.repo.FindCustomer(ctx, customerID)
	if err != nil {
		return nil, db.MapError(err, "customer")
	}
	subs, err := s.repo.Subscriptions(ctx, &customerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load subscriptions")
	}
	plans, err := s.repo.Plans(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load plans")
	}
	signals, err := s.loadSignals(ctx, &customerID)
	if err != nil {
		return nil, err
	}

	planByID := lo.KeyBy(plans, func(p models.PlanConfiguration) uuid.UUID { return p.ID })
	primary, ok := primarySubscription(subs)
	if !ok {
		primary = models.Subscription{CustomerID: customerID}
	}
	input := signals.input(primary, planByID, customer.CreatedAt, s.now())
	return &CustomerInsights{
		CustomerID:  customerID,
		Inputs:      input,
		PaymentRisk: risk.PaymentRisk(input),
		ChurnRisk:   risk.ChurnRisk(input),
	}, nil
}

// signals are the per-customer and per-subscription facts the scorers need.
type signals struct {
	outstanding map[uuid.UUID]int64
	lastPayment map[uuid.UUID]time.Time
	usage       map[uuid.UUID]models.UsageCounter
}

func (s *service) loadSignals(ctx context.Context, customerID *uuid.UUID) (*signals, error) {
	open, err := s.repo.OpenInvoices(ctx, customerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load open invoices")
	}
	settled, err := s.repo.SettledPayments(ctx, customerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payments")
	}
	now := s.now()
	counters, err := s.repo.UsageForPeriod(ctx, int(now.Month()), now.Year())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load usage")
	}

	out := &signals{
		outstanding: lo.MapValues(lo.GroupBy(open, func(inv models.Invoice) uuid.UUID { return inv.CustomerID }),
			func(group []models.Invoice, _ uuid.UUID) int64 { return sumTotals(group) }),
		lastPayment: map[uuid.UUID]time.Time{},
		usage:       lo.KeyBy(counters, func(c models.UsageCounter) uuid.UUID { return c.SubscriptionID }),
	}
	for _, attempt := range settled {
		at := attempt.UpdatedAt
		if attempt.LastAttemptedAt != nil {
			at = *attempt.LastAttemptedAt
		}
		if at.After(out.lastPayment[attempt.CustomerID]) {
			out.lastPayment[attempt.CustomerID] = at
		}
	}
	return out, nil
}

// input falls back to since when the customer never paid.
func (sg *signals) input(sub models.Subscription, plans map[uuid.UUID]models.PlanConfiguration, since, now time.Time) risk.Input {
	if last, ok := sg.lastPayment[sub.CustomerID]; ok {
		since = last
	}
	var percent float64
	if plan, ok := plans[sub.PlanID]; ok {
		if counter, ok := sg.usage[sub.ID]; ok {
			percent = UsagePercent(plan, counter)
		}
	}
	return risk.Input{
		OutstandingMinor:     sg.outstanding[sub.CustomerID],
		Status:               sub.Status,
		DaysSinceLastPayment: daysBetween(since, now),
		UsagePercent:         percent,
		AutoRenew:            sub.AutoRenew,
	}
}

// UsagePercent averages consumption against each non-zero quota of the plan, capped at 100.
func UsagePercent(plan models.PlanConfiguration, counter models.UsageCounter) float64 {
	var ratios []float64
	if plan.DataQuotaMB > 0 {
		ratios = append(ratios, float64(counter.DataUsedMB)/float64(plan.DataQuotaMB))
	}
	if plan.VoiceQuotaMinutes > 0 {
		ratios = append(ratios, float64(counter.VoiceUsedMinutes)/float64(plan.VoiceQuotaMinutes))
	}
	if plan.SMSQuota > 0 {
		ratios = append(ratios, float64(counter.SMSUsed)/float64(plan.SMSQuota))
	}
	if len(ratios) == 0 {
		return 0
	}
	percent := lo.Sum(ratios) / float64(len(ratios)) * 100
	return math.Min(100, math.Round(percent*100)/100)
}

var statusRank = map[enums.SubscriptionStatus]int{
	enums.SubscriptionStatusActive:    5,
	enums.SubscriptionStatusSuspended: 4,
	enums.SubscriptionStatusExpired:   3,
	enums.SubscriptionStatusPending:   2,
	enums.SubscriptionStatusCancelled: 1,
}

// primarySubscription picks the line that best describes the customer: the most alive status,
// then the most recent.
func primarySubscription(subs []models.Subscription) (models.Subscription, bool) {
	if len(subs) == 0 {
		return models.Subscription{}, false
	}
	return lo.MaxBy(subs, func(a, b models.Subscription) bool {
		if statusRank[a.Status] != statusRank[b.Status] {
			return statusRank[a.Status] > statusRank[b.Status]
		}
		return a.CreatedAt.After(b.CreatedAt)
	}), true
}

func sumTotals(invoices []models.Invoice) int64 {
	return lo.SumBy(invoices, func(inv models.Invoice) int64 { return inv.TotalMinor })
}

func monthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}

func daysBetween(from, to time.Time) int {
	if from.IsZero() || !to.After(from) {
		return 0
	}
	return int(to.Sub(from).Hours() / 24)
}
