// Package dashboard assembles the customer's home screen in one read.
package dashboard

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/telcobill-backend/internal/customers"
	"github.com/angelmondragon/telcobill-backend/internal/devicecontracts"
	"github.com/angelmondragon/telcobill-backend/internal/invoices"
	"github.com/angelmondragon/telcobill-backend/internal/plans"
	"github.com/angelmondragon/telcobill-backend/internal/subscriptions"
	"github.com/angelmondragon/telcobill-backend/pkg/db"
	"github.com/angelmondragon/telcobill-backend/pkg/db/models"
	"github.com/angelmondragon/telcobill-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/telcobill-backend/pkg/errors"
)

type unreadCounter interface {
	UnreadCount(ctx context.Context, customerID uuid.UUID) (int64, error)
}

// DashboardDTO is the payload of GET /dashboard.
type DashboardDTO struct {
	Customer            *customers.CustomerDTO          `json:"customer"`
	Subscriptions       []subscriptions.SubscriptionDTO `json:"subscriptions"`
	OpenInvoices        []invoices.InvoiceDTO           `json:"open_invoices"`
	OutstandingMinor    int64                           `json:"outstanding_minor"`
	UnreadNotifications int64                           `json:"unread_notifications"`
	ActiveContracts     []devicecontracts.ContractDTO   `json:"active_contracts"`
}

type Service interface {
	Get(ctx context.Context, customerID uuid.UUID) (*DashboardDTO, error)
}

type ServiceParams struct {
	Customers     *customers.Repository
	Subscriptions *subscriptions.Repository
	Plans         *plans.Repository
	Invoices      *invoices.Repository
	Contracts     *devicecontracts.Repository
	Notifications unreadCounter
}

type service struct {
	customers     *customers.Repository
	subscriptions *subscriptions.Repository
	plans         *plans.Repository
	invoices      *invoices.Repository
	contracts     *devicecontracts.Repository
	notifications unreadCounter
}

func NewService(params ServiceParams) (Service, error) {
	if params.Customers == nil || params.Subscriptions == nil || params.Plans == nil {
		return nil, fmt.Errorf("customer, subscription and plan repositories required")
	}
	if params.Invoices == nil || params.Contracts == nil {
		return nil, fmt.Errorf("invoice and device contract repositories required")
	}
	if params.Notifications == nil {
		return nil, fmt.Errorf("notifications service required")
	}
	return &service{
		customers:     params.Customers,
		subscriptions: params.Subscriptions,
		plans:         params.Plans,
		invoices:      params.Invoices,
		contracts:     params.Contracts,
		notifications: params.Notifications,
	}, nil
}

// Get hides cancelled lines; everything else the customer still holds is shown with its plan.
func (s *service) Get(ctx context.Context, customerID uuid.UUID) (*DashboardDTO, error) {
	customer, err := s.customers.FindByID(ctx, customerID)
	if err != nil {
		return nil, db.MapError(err, "customer")
	}

	subs, err := s.subscriptions.ListAllForCustomer(ctx, customerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load subscriptions")
	}
	var live []models.Subscription
	planIDs := make([]uuid.UUID, 0, len(subs))
	for _, sub := range subs {
		if sub.Status == enums.SubscriptionStatusCancelled {
			continue
		}
		live = append(live, sub)
		planIDs = append(planIDs, sub.PlanID)
	}
	planByID, err := s.plans.FindByIDs(ctx, planIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load plans")
	}

	out := &DashboardDTO{
		Customer:        customers.FromModel(customer),
		Subscriptions:   make([]subscriptions.SubscriptionDTO, 0, len(live)),
		OpenInvoices:    []invoices.InvoiceDTO{},
		ActiveContracts: []devicecontracts.ContractDTO{},
	}
	for i := range live {
		dto := subscriptions.FromModel(&live[i])
		if plan, ok := planByID[live[i].PlanID]; ok {
			dto.Plan = plans.FromModel(&plan)
		}
		out.Subscriptions = append(out.Subscriptions, *dto)
	}

	open, err := s.invoices.ListOpenForCustomer(ctx, customerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load open invoices")
	}
	for i := range open {
		out.OpenInvoices = append(out.OpenInvoices, *invoices.FromModel(&open[i]))
		out.OutstandingMinor += open[i].TotalMinor
	}

	contracts, err := s.contracts.ListActiveForCustomer(ctx, customerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load device contracts")
	}
	for i := range contracts {
		out.ActiveContracts = append(out.ActiveContracts, *devicecontracts.FromModel(&contracts[i]))
	}

	if out.UnreadNotifications, err = s.notifications.UnreadCount(ctx, customerID); err != nil {
		return nil, err
	}
	return out, nil
}
