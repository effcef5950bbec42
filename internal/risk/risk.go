// Package risk scores customers with fixed additive rule tables.
package risk

import "github.com/angelmondragon/telcobill-backend/pkg/enums"

// Level buckets a score.
type Level string

const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"

	maxScore        = 100
	highThreshold   = 70
	mediumThreshold = 40
)

// Input is the snapshot of a customer the scorers look at.
type Input struct {
	OutstandingMinor     int64                    `json:"outstanding_minor"`
	Status               enums.SubscriptionStatus `json:"status"`
	DaysSinceLastPayment int                      `json:"days_since_last_payment"`
	UsagePercent         float64                  `json:"usage_percent"`
	AutoRenew            bool                     `json:"auto_renew"`
}

// Score is a capped score with the rules that fired.
type Score struct {
	Score   int      `json:"score"`
	Level   Level    `json:"level"`
	Factors []string `json:"factors"`
}

type scorecard struct {
	points  int
	factors []string
}

func (s *scorecard) add(points int, factor string) {
	s.points += points
	s.factors = append(s.factors, factor)
}

func (s *scorecard) result() Score {
	score := s.points
	if score > maxScore {
		score = maxScore
	}
	factors := s.factors
	if factors == nil {
		factors = []string{}
	}
	return Score{Score: score, Level: LevelFor(score), Factors: factors}
}

// LevelFor maps a score to its bucket.
func LevelFor(score int) Level {
	switch {
	case score >= highThreshold:
		return LevelHigh
	case score >= mediumThreshold:
		return LevelMedium
	default:
		return LevelLow
	}
}

// PaymentRisk estimates how likely the customer is to miss a payment.
func PaymentRisk(in Input) Score {
	var card scorecard

	switch {
	case in.OutstandingMinor > 100000:
		card.add(35, "outstanding_above_1000")
	case in.OutstandingMinor > 50000:
		card.add(25, "outstanding_above_500")
	case in.OutstandingMinor > 0:
		card.add(10, "outstanding_balance")
	}

	switch {
	case in.DaysSinceLastPayment > 60:
		card.add(30, "no_payment_60_days")
	case in.DaysSinceLastPayment > 30:
		card.add(20, "no_payment_30_days")
	case in.DaysSinceLastPayment > 15:
		card.add(10, "no_payment_15_days")
	}

	switch in.Status {
	case enums.SubscriptionStatusSuspended:
		card.add(25, "subscription_suspended")
	case enums.SubscriptionStatusExpired:
		card.add(15, "subscription_expired")
	}

	if in.UsagePercent >= 90 && in.OutstandingMinor > 0 {
		card.add(10, "high_usage_with_balance")
	}

	return card.result()
}

// ChurnRisk estimates how likely the customer is to leave.
func ChurnRisk(in Input) Score {
	var card scorecard

	switch {
	case in.UsagePercent < 10:
		card.add(35, "usage_below_10_percent")
	case in.UsagePercent < 30:
		card.add(20, "usage_below_30_percent")
	}

	switch {
	case in.DaysSinceLastPayment > 45:
		card.add(25, "no_payment_45_days")
	case in.DaysSinceLastPayment > 30:
		card.add(15, "no_payment_30_days")
	}

	switch in.Status {
	case enums.SubscriptionStatusSuspended:
		card.add(30, "subscription_suspended")
	case enums.SubscriptionStatusExpired:
		card.add(40, "subscription_expired")
	}

	if in.OutstandingMinor > 0 {
		card.add(10, "outstanding_balance")
	}
	if !in.AutoRenew {
		card.add(10, "auto_renew_disabled")
	}

	return card.result()
}
