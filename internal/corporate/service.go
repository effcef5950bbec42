package corporate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/telcobill-backend/internal/customers"
	"github.com/angelmondragon/telcobill-backend/internal/invoices"
	"github.com/angelmondragon/telcobill-backend/internal/payments"
	"github.com/angelmondragon/telcobill-backend/internal/plans"
	"github.com/angelmondragon/telcobill-backend/internal/subscriptions"
	"github.com/angelmondragon/telcobill-backend/pkg/db"
	"github.com/angelmondragon/telcobill-backend/pkg/db/models"
	"github.com/angelmondragon/telcobill-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/telcobill-backend/pkg/errors"
	"github.com/angelmondragon/telcobill-backend/pkg/pagination"
	"github.com/angelmondragon/telcobill-backend/pkg/types"
)

const maxDiscountPercent = 50

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type Service interface {
	Create(ctx context.Context, input CreateInput) (*AccountDTO, error)
	List(ctx context.Context, status *enums.CorporateAccountStatus, page pagination.Params) (types.Page[AccountDTO], error)
	Get(ctx context.Context, id uuid.UUID) (*AccountDTO, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*AccountDTO, error)
	AddSubscription(ctx context.Context, id uuid.UUID, input AddLineInput) (*AccountDTO, error)
	RemoveSubscription(ctx context.Context, id, subscriptionID uuid.UUID) (*AccountDTO, error)
	GenerateInvoice(ctx context.Context, id uuid.UUID) (*ConsolidatedInvoice, error)
}

type ServiceParams struct {
	Repo          *Repository
	Customers     *customers.Repository
	Subscriptions *subscriptions.Repository
	Plans         *plans.Repository
	Invoices      *invoices.Repository
	Payments      payments.Service
	Tx            txRunner
	Now           func() time.Time
}

type service struct {
	repo      *Repository
	customers *customers.Repository
	subs      *subscriptions.Repository
	plans     *plans.Repository
	invoices  *invoices.Repository
	payments  payments.Service
	tx        txRunner
	now       func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Repo == nil, params.Customers == nil, params.Subscriptions == nil, params.Plans == nil, params.Invoices == nil:
		return nil, fmt.Errorf("corporate service repositories required")
	case params.Payments == nil:
		return nil, fmt.Errorf("payments service required")
	case params.Tx == nil:
		return nil, fmt.Errorf("tx runner required")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		repo:      params.Repo,
		customers: params.Customers,
		subs:      params.Subscriptions,
		plans:     params.Plans,
		invoices:  params.Invoices,
		payments:  params.Payments,
		tx:        params.Tx,
		now:       now,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*AccountDTO, error) {
	input.CompanyName = strings.TrimSpace(input.CompanyName)
	input.TaxID = strings.ToUpper(strings.TrimSpace(input.TaxID))
	input.BillingEmail = strings.ToLower(strings.TrimSpace(input.BillingEmail))
	switch {
	case input.CompanyName == "" || input.TaxID == "" || input.BillingEmail == "":
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "company name, tax id and billing email are required")
	case input.DiscountPercent < 0 || input.DiscountPercent > maxDiscountPercent:
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "discount must be between 0 and %d percent", maxDiscountPercent)
	case input.CreditLimitMinor < 0:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "credit limit must be non-negative")
	}
	if _, err := s.customers.FindByID(ctx, input.AdminCustomerID); err != nil {
		return nil, db.MapError(err, "customer")
	}

	account := &models.CorporateAccount{
		CompanyName:      input.CompanyName,
		TaxID:            input.TaxID,
		BillingEmail:     input.BillingEmail,
		AdminCustomerID:  input.AdminCustomerID,
		CreditLimitMinor: input.CreditLimitMinor,
		DiscountPercent:  input.DiscountPercent,
		Status:           enums.CorporateAccountActive,
		CreatedAt:        s.now(),
	}
	if err := s.repo.CreateAccount(ctx, account); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "a corporate account with this tax id exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create corporate account")
	}
	return FromModel(account), nil
}

func (s *service) List(ctx context.Context, status *enums.CorporateAccountStatus, page pagination.Params) (types.Page[AccountDTO], error) {
	if status != nil && !status.IsValid() {
		return types.Page[AccountDTO]{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid account status")
	}
	page = page.Normalize()
	rows, total, err := s.repo.ListAccounts(ctx, status, page)
	if err != nil {
		return types.Page[AccountDTO]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list corporate accounts")
	}
	items := make([]AccountDTO, 0, len(rows))
	for i := range rows {
		items = append(items, *FromModel(&rows[i]))
	}
	return types.Page[AccountDTO]{Items: items, Limit: page.Limit, Offset: page.Offset, Total: total}, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*AccountDTO, error) {
	account, err := s.repo.FindAccount(ctx, id)
	if err != nil {
		return nil, db.MapError(err, "corporate account")
	}
	lines, err := s.repo.ListSubscriptions(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load corporate lines")
	}
	dto := FromModel(account)
	dto.Subscriptions = linesFromModels(lines)
	return dto, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*AccountDTO, error) {
	updates := map[string]any{"updated_at": s.now()}
	if input.BillingEmail != nil {
		email := strings.ToLower(strings.TrimSpace(*input.BillingEmail))
		if email == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "billing email cannot be empty")
		}
		updates["billing_email"] = email
	}
	if input.CreditLimitMinor != nil {
		if *input.CreditLimitMinor < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "credit limit must be non-negative")
		}
		updates["credit_limit_minor"] = *input.CreditLimitMinor
	}
	if input.DiscountPercent != nil {
		if *input.DiscountPercent < 0 || *input.DiscountPercent > maxDiscountPercent {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "discount must be between 0 and %d percent", maxDiscountPercent)
		}
		updates["discount_percent"] = *input.DiscountPercent
	}
	if input.Status != nil {
		if !input.Status.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid account status")
		}
		updates["status"] = *input.Status
	}
	ok, err := s.repo.UpdateAccount(ctx, id, updates)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update corporate account")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "corporate account not found")
	}
	return s.Get(ctx, id)
}

func (s *service) AddSubscription(ctx context.Context, id uuid.UUID, input AddLineInput) (*AccountDTO, error) {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		account, err := s.repo.WithTx(tx).FindAccount(ctx, id)
		if err != nil {
			return db.MapError(err, "corporate account")
		}
		if account.Status != enums.CorporateAccountActive {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "corporate account is %s", account.Status)
		}
		sub, err := s.subs.WithTx(tx).FindByID(ctx, input.SubscriptionID)
		if err != nil {
			return db.MapError(err, "subscription")
		}
		if sub.Status == enums.SubscriptionStatusCancelled || sub.Status == enums.SubscriptionStatusExpired {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "subscription is %s", sub.Status)
		}
		err = s.repo.WithTx(tx).AddSubscription(ctx, &models.CorporateSubscription{
			CorporateAccountID: account.ID,
			SubscriptionID:     sub.ID,
			EmployeeName:       input.EmployeeName,
			CostCenter:         input.CostCenter,
			CreatedAt:          s.now(),
		})
		if db.IsUniqueViolation(err, "") {
			return pkgerrors.New(pkgerrors.CodeConflict, "subscription is already on a corporate account")
		}
		return err
	})
	if err != nil {
		return nil, pkgerrors.Ensure(err, pkgerrors.CodeDependency, "add corporate subscription")
	}
	return s.Get(ctx, id)
}

func (s *service) RemoveSubscription(ctx context.Context, id, subscriptionID uuid.UUID) (*AccountDTO, error) {
	ok, err := s.repo.RemoveSubscription(ctx, id, subscriptionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove corporate subscription")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "subscription is not on this account")
	}
	return s.Get(ctx, id)
}

// GenerateInvoice bills every live line of the account on one invoice addressed to the
// account admin. The account discount is a negative line before tax. Going over the credit
// limit is reported on the result; the invoice is still issued.
func (s *service) GenerateInvoice(ctx context.Context, id uuid.UUID) (*ConsolidatedInvoice, error) {
	var (
		out  = &ConsolidatedInvoice{AccountID: id}
		bill *payments.Bill
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		account, err := s.repo.WithTx(tx).FindAccount(ctx, id)
		if err != nil {
			return db.MapError(err, "corporate account")
		}
		if account.Status != enums.CorporateAccountActive {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "corporate account is %s", account.Status)
		}
		items, lines, subtotal, err := s.lineItemsTx(ctx, tx, account.ID)
		if err != nil {
			return err
		}
		if lines == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "corporate account has no billable subscriptions")
		}
		out.Lines = lines
		if discount := discountFor(subtotal, account.DiscountPercent); discount > 0 {
			out.DiscountMinor = discount
			items = append(items, types.LineItem{
				Description: fmt.Sprintf("Corporate discount (%d%%)", account.DiscountPercent),
				Amount:      -discount,
				Quantity:    1,
			})
		}

		outstanding, err := s.invoices.WithTx(tx).SumOutstanding(ctx, account.AdminCustomerID)
		if err != nil {
			return err
		}
		bill, err = s.payments.BillTx(ctx, tx, invoices.IssueInput{
			CustomerID: account.AdminCustomerID,
			LineItems:  items,
			Reason:     invoices.ReasonCorporate,
		})
		if err != nil {
			return err
		}
		out.OutstandingMinor = outstanding + bill.Invoice.TotalMinor
		out.CreditLimitExceeded = account.CreditLimitMinor > 0 && out.OutstandingMinor > account.CreditLimitMinor
		return nil
	})
	if err != nil {
		return nil, pkgerrors.Ensure(err, pkgerrors.CodeDependency, "generate corporate invoice")
	}
	out.Invoice = invoices.FromModel(bill.Invoice)
	out.Payment = s.payments.CollectBill(ctx, bill)
	if out.Payment != nil && out.Payment.Status == enums.PaymentAttemptSucceeded {
		out.Invoice.Status = enums.InvoiceStatusPaid
	}
	return out, nil
}

func (s *service) lineItemsTx(ctx context.Context, tx *gorm.DB, accountID uuid.UUID) (types.LineItems, int, int64, error) {
	links, err := s.repo.WithTx(tx).ListSubscriptions(ctx, accountID)
	if err != nil {
		return nil, 0, 0, err
	}
	ids := make([]uuid.UUID, 0, len(links))
	meta := make(map[uuid.UUID]models.CorporateSubscription, len(links))
	for _, link := range links {
		ids = append(ids, link.SubscriptionID)
		meta[link.SubscriptionID] = link
	}
	subs, err := s.subs.WithTx(tx).FindByIDs(ctx, ids)
	if err != nil {
		return nil, 0, 0, err
	}
	planIDs := make([]uuid.UUID, 0, len(subs))
	for _, sub := range subs {
		planIDs = append(planIDs, sub.PlanID)
	}
	planByID, err := s.plans.WithTx(tx).FindByIDs(ctx, planIDs)
	if err != nil {
		return nil, 0, 0, err
	}

	var (
		items    types.LineItems
		subtotal int64
	)
	for _, sub := range subs {
		if sub.Status != enums.SubscriptionStatusActive && sub.Status != enums.SubscriptionStatusSuspended {
			continue
		}
		plan, ok := planByID[sub.PlanID]
		if !ok {
			continue
		}
		desc := fmt.Sprintf("%s on %s", sub.PhoneNumber, plan.Name)
		if link := meta[sub.ID]; link.EmployeeName != nil && *link.EmployeeName != "" {
			desc += " (" + *link.EmployeeName + ")"
		}
		items = append(items, types.LineItem{Description: desc, Amount: plan.PriceMinor, Quantity: 1})
		subtotal += plan.PriceMinor
	}
	return items, len(items), subtotal, nil
}

func discountFor(subtotal int64, percent int) int64 {
	if percent <= 0 || subtotal <= 0 {
		return 0
	}
	return decimal.NewFromInt(subtotal).
		Mul(decimal.NewFromInt(int64(percent))).
		Div(decimal.NewFromInt(100)).
		Round(0).
		IntPart()
}
