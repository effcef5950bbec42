package analytics

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/telcobill-backend/internal/risk"
	"github.com/angelmondragon/telcobill-backend/pkg/enums"
)

// MonthRevenue is one bucket of the revenue series, keyed YYYY-MM.
type MonthRevenue struct {
	Month         string `json:"month"`
	InvoicedMinor int64  `json:"invoiced_minor"`
	PaidMinor     int64  `json:"paid_minor"`
	InvoiceCount  int    `json:"invoice_count"`
}

// RevenueReport summarizes invoices created in the window.
type RevenueReport struct {
	Months           int            `json:"months"`
	TotalMinor       int64          `json:"total_minor"`
	PaidMinor        int64          `json:"paid_minor"`
	OutstandingMinor int64          `json:"outstanding_minor"`
	OverdueMinor     int64          `json:"overdue_minor"`
	InvoiceCount     int            `json:"invoice_count"`
	ARPUMinor        int64          `json:"arpu_minor"`
	ByMonth          []MonthRevenue `json:"by_month"`
}

type PlanShare struct {
	PlanID        uuid.UUID `json:"plan_id"`
	PlanName      string    `json:"plan_name"`
	Subscriptions int       `json:"subscriptions"`
}

// UsersReport is the customer base overview.
type UsersReport struct {
	Customers             int64                            `json:"customers"`
	SubscriptionsByStatus map[enums.SubscriptionStatus]int `json:"subscriptions_by_status"`
	PlanDistribution      []PlanShare                      `json:"plan_distribution"`
	MsisdnByStatus        map[enums.MsisdnStatus]int       `json:"msisdn_by_status"`
	ChurnRiskDistribution map[risk.Level]int               `json:"churn_risk_distribution"`
}

// CustomerInsights carries both scores plus the inputs they were computed from.
type CustomerInsights struct {
	CustomerID  uuid.UUID  `json:"customer_id"`
	Inputs      risk.Input `json:"inputs"`
	PaymentRisk risk.Score `json:"payment_risk"`
	ChurnRisk   risk.Score `json:"churn_risk"`
}
