package invoices

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/telcobill-backend/pkg/db"
	"github.com/angelmondragon/telcobill-backend/pkg/db/dbtest"
	"github.com/angelmondragon/telcobill-backend/pkg/db/models"
	"github.com/angelmondragon/telcobill-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/telcobill-backend/pkg/errors"
	"github.com/angelmondragon/telcobill-backend/pkg/outbox"
	"github.com/angelmondragon/telcobill-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/telcobill-backend/pkg/pagination"
	"github.com/angelmondragon/telcobill-backend/pkg/types"
)

var testNow = time.Date(2026, 4, 20, 10, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (Service, *db.Client, *gorm.DB, *time.Time) {
	t.Helper()
	client, conn := dbtest.Client(t, &models.Invoice{}, &models.OutboxEvent{})
	clock := testNow
	svc, err := NewService(ServiceParams{
		Repo:    NewRepository(conn),
		Tx:      client,
		Outbox:  outbox.NewService(outbox.NewRepository(conn), nil),
		DueDays: 7,
		Now:     func() time.Time { return clock },
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, client, conn, &clock
}

func issue(t *testing.T, svc Service, client *db.Client, customerID uuid.UUID, items types.LineItems) *models.Invoice {
	t.Helper()
	var inv *models.Invoice
	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		var err error
		inv, err = svc.IssueTx(context.Background(), tx, IssueInput{CustomerID: customerID, LineItems: items, Reason: ReasonRecharge})
		return err
	})
	if err != nil {
		t.Fatalf("issue invoice: %v", err)
	}
	return inv
}

func TestIssueTxComputesTotalsAndEmits(t *testing.T) {
	svc, client, conn, _ := newTestService(t)
	customer := uuid.New()

	inv := issue(t, svc, client, customer, types.LineItems{
		{Description: "Unlimited 349", Amount: 34900, Quantity: 1},
	})

	if inv.SubtotalMinor != 34900 || inv.TaxMinor != 6282 || inv.TotalMinor != 41182 {
		t.Fatalf("unexpected totals %d/%d/%d", inv.SubtotalMinor, inv.TaxMinor, inv.TotalMinor)
	}
	if inv.Status != enums.InvoiceStatusPending {
		t.Fatalf("expected pending, got %s", inv.Status)
	}
	if !inv.DueDate.Equal(testNow.AddDate(0, 0, 7)) {
		t.Fatalf("unexpected due date %s", inv.DueDate)
	}
	if !regexp.MustCompile(`^INV-202604-[0-9A-F]{8}$`).MatchString(inv.InvoiceNumber) {
		t.Fatalf("unexpected invoice number %q", inv.InvoiceNumber)
	}

	var events []models.OutboxEvent
	if err := conn.Find(&events).Error; err != nil {
		t.Fatalf("load events: %v", err)
	}
	if len(events) != 1 || events[0].EventType != enums.EventInvoiceCreated {
		t.Fatalf("expected one invoice_created event, got %+v", events)
	}
	var payload payloads.InvoiceCreatedEvent
	if _, err := outbox.DecodeEnvelope(events[0].Payload, &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.TotalMinor != 41182 || payload.Reason != ReasonRecharge {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestIssueTxRejectsEmptyAndNegative(t *testing.T) {
	svc, client, _, _ := newTestService(t)
	ctx := context.Background()

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		_, err := svc.IssueTx(ctx, tx, IssueInput{CustomerID: uuid.New()})
		return err
	})
	if !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for empty invoice, got %v", err)
	}

	err = client.WithTx(ctx, func(tx *gorm.DB) error {
		_, err := svc.IssueTx(ctx, tx, IssueInput{CustomerID: uuid.New(), LineItems: types.LineItems{{Description: "credit", Amount: -100}}})
		return err
	})
	if !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for negative total, got %v", err)
	}
}

func TestCustomerScopingAndTransitions(t *testing.T) {
	svc, client, _, clock := newTestService(t)
	ctx := context.Background()
	owner, stranger := uuid.New(), uuid.New()

	first := issue(t, svc, client, owner, types.LineItems{{Description: "SIM", Amount: 4900, Quantity: 1}})
	second := issue(t, svc, client, owner, types.LineItems{{Description: "Top-up", Amount: 1000, Quantity: 1}})
	issue(t, svc, client, stranger, types.LineItems{{Description: "Other", Amount: 100, Quantity: 1}})

	page, err := svc.ListForCustomer(ctx, owner, nil, pagination.Params{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 2 {
		t.Fatalf("expected 2 invoices for owner, got %d", page.Total)
	}

	if _, err := svc.GetForCustomer(ctx, stranger, first.ID); !pkgerrors.Is(err, pkgerrors.CodeNotFound) {
		t.Fatalf("stranger must not see invoice, got %v", err)
	}

	paid, err := svc.MarkPaid(ctx, first.ID)
	if err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	if paid.Status != enums.InvoiceStatusPaid || paid.PaidAt == nil {
		t.Fatalf("unexpected paid invoice %+v", paid)
	}
	if _, err := svc.Cancel(ctx, first.ID); !pkgerrors.Is(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("paid invoice cannot be cancelled, got %v", err)
	}

	*clock = clock.AddDate(0, 0, 8)
	n, err := svc.MarkOverdue(ctx)
	if err != nil {
		t.Fatalf("mark overdue: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 overdue invoices, got %d", n)
	}
	overdue := enums.InvoiceStatusOverdue
	page, err = svc.ListForCustomer(ctx, owner, &overdue, pagination.Params{})
	if err != nil || page.Total != 1 || page.Items[0].ID != second.ID {
		t.Fatalf("expected second invoice overdue, got %+v err=%v", page, err)
	}
}
