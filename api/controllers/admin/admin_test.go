package admin

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/telcobill-backend/internal/analytics"
	"github.com/angelmondragon/telcobill-backend/internal/msisdn"
	"github.com/angelmondragon/telcobill-backend/internal/subscriptions"
	"github.com/angelmondragon/telcobill-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/telcobill-backend/pkg/errors"
	"github.com/angelmondragon/telcobill-backend/pkg/logger"
	"github.com/angelmondragon/telcobill-backend/pkg/outbox"
	"github.com/angelmondragon/telcobill-backend/pkg/pagination"
	"github.com/angelmondragon/telcobill-backend/pkg/types"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func withParam(req *http.Request, key, value string) *http.Request {
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
}

type stubNumbers struct {
	msisdn.Service
	imported  []msisdn.CreateInput
	deleteErr error
}

func (s *stubNumbers) BulkImport(ctx context.Context, inputs []msisdn.CreateInput) (*msisdn.BulkImportResult, error) {
	s.imported = inputs
	return &msisdn.BulkImportResult{Created: len(inputs)}, nil
}

func (s *stubNumbers) Delete(ctx context.Context, id uuid.UUID) error {
	return s.deleteErr
}

func TestImportNumbersAcceptsCSV(t *testing.T) {
	svc := &stubNumbers{}
	body := "phone_number,tier,region\n+919800000001,gold,north\n+919800000002,standard,south\n"
	req := httptest.NewRequest(http.MethodPost, "/api/admin/msisdns/import", strings.NewReader(body))
	req.Header.Set("Content-Type", "text/csv; charset=utf-8")
	resp := httptest.NewRecorder()

	ImportNumbers(svc, testLogger())(resp, req)

	require.Equal(t, http.StatusCreated, resp.Code)
	require.Len(t, svc.imported, 2)
	assert.Equal(t, "+919800000001", svc.imported[0].PhoneNumber)
	assert.Equal(t, enums.MsisdnTier("gold"), svc.imported[0].Tier)
	assert.Equal(t, "south", svc.imported[1].Region)
}

func TestImportNumbersAcceptsJSON(t *testing.T) {
	svc := &stubNumbers{}
	body := `{"numbers":[{"phone_number":"+919800000003","region":"east"}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/admin/msisdns/import", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()

	ImportNumbers(svc, testLogger())(resp, req)

	require.Equal(t, http.StatusCreated, resp.Code)
	require.Len(t, svc.imported, 1)
}

func TestImportNumbersRejectsEmptyJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"numbers":[]}`))
	resp := httptest.NewRecorder()

	ImportNumbers(&stubNumbers{}, testLogger())(resp, req)

	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestDeleteNumberStateConflict(t *testing.T) {
	svc := &stubNumbers{deleteErr: pkgerrors.New(pkgerrors.CodeStateConflict, "only available numbers can be deleted")}
	req := withParam(httptest.NewRequest(http.MethodDelete, "/", nil), msisdnParam, uuid.NewString())
	resp := httptest.NewRecorder()

	DeleteNumber(svc, testLogger())(resp, req)

	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
}

func TestDeleteNumberNoContent(t *testing.T) {
	req := withParam(httptest.NewRequest(http.MethodDelete, "/", nil), msisdnParam, uuid.NewString())
	resp := httptest.NewRecorder()

	DeleteNumber(&stubNumbers{}, testLogger())(resp, req)

	assert.Equal(t, http.StatusNoContent, resp.Code)
}

type stubSubscriptions struct {
	subscriptions.Service
	filter subscriptions.ListFilter
	reason string
}

func (s *stubSubscriptions) AdminList(ctx context.Context, filter subscriptions.ListFilter, page pagination.Params) (types.Page[subscriptions.SubscriptionDTO], error) {
	s.filter = filter
	return types.Page[subscriptions.SubscriptionDTO]{Limit: page.Limit}, nil
}

func (s *stubSubscriptions) Suspend(ctx context.Context, id uuid.UUID, reason string) (*subscriptions.SubscriptionDTO, error) {
	s.reason = reason
	return &subscriptions.SubscriptionDTO{ID: id, Status: enums.SubscriptionStatusSuspended}, nil
}

func TestListSubscriptionsFilters(t *testing.T) {
	svc := &stubSubscriptions{}
	customerID := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/?status=suspended&customer_id="+customerID.String(), nil)
	resp := httptest.NewRecorder()

	ListSubscriptions(svc, testLogger())(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	require.NotNil(t, svc.filter.Status)
	assert.Equal(t, enums.SubscriptionStatusSuspended, *svc.filter.Status)
	require.NotNil(t, svc.filter.CustomerID)
	assert.Equal(t, customerID, *svc.filter.CustomerID)
	assert.Nil(t, svc.filter.PlanID)
}

func TestListSubscriptionsRejectsBadCustomerID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?customer_id=abc", nil)
	resp := httptest.NewRecorder()

	ListSubscriptions(&stubSubscriptions{}, testLogger())(resp, req)

	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestSuspendSubscriptionWithoutBody(t *testing.T) {
	svc := &stubSubscriptions{}
	req := withParam(httptest.NewRequest(http.MethodPost, "/", nil), subscriptionParam, uuid.NewString())
	resp := httptest.NewRecorder()

	SuspendSubscription(svc, testLogger())(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Empty(t, svc.reason)
}

func TestSuspendSubscriptionCarriesReason(t *testing.T) {
	svc := &stubSubscriptions{}
	req := withParam(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"reason":"fraud review"}`)), subscriptionParam, uuid.NewString())
	resp := httptest.NewRecorder()

	SuspendSubscription(svc, testLogger())(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "fraud review", svc.reason)
}

func TestNilServiceIsInternal(t *testing.T) {
	resp := httptest.NewRecorder()
	SuspendSubscription(nil, testLogger())(resp, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, resp.Code)
}

type stubAnalytics struct {
	analytics.Service
	months int
}

func (s *stubAnalytics) Revenue(ctx context.Context, months int) (*analytics.RevenueReport, error) {
	s.months = months
	return &analytics.RevenueReport{Months: months}, nil
}

func TestRevenueAnalyticsDefaultsMonths(t *testing.T) {
	svc := &stubAnalytics{}
	resp := httptest.NewRecorder()

	RevenueAnalytics(svc, testLogger())(resp, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, analytics.DefaultRevenueMonths, svc.months)
}

func TestRevenueAnalyticsRejectsOutOfRange(t *testing.T) {
	resp := httptest.NewRecorder()
	RevenueAnalytics(&stubAnalytics{}, testLogger())(resp, httptest.NewRequest(http.MethodGet, "/?months=99", nil))
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

type stubDeadLetters struct {
	filter   outbox.DeadLetterFilter
	replayed uuid.UUID
}

func (s *stubDeadLetters) List(ctx context.Context, filter outbox.DeadLetterFilter, page pagination.Params) (*outbox.DeadLetterPage, error) {
	s.filter = filter
	return &outbox.DeadLetterPage{Items: []outbox.DeadLetter{}}, nil
}

func (s *stubDeadLetters) Replay(ctx context.Context, eventID uuid.UUID) (*outbox.DeadLetter, error) {
	if s.replayed != uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "dead letter not found")
	}
	s.replayed = eventID
	return &outbox.DeadLetter{EventID: eventID}, nil
}

func TestListDeadLettersParsesFilters(t *testing.T) {
	svc := &stubDeadLetters{}
	req := httptest.NewRequest(http.MethodGet, "/api/admin/outbox/dead-letters?reason=max_attempts&event_type=invoice_created", nil)
	resp := httptest.NewRecorder()

	ListDeadLetters(svc, testLogger())(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	require.NotNil(t, svc.filter.Reason)
	assert.Equal(t, enums.OutboxDLQReasonMaxAttempts, *svc.filter.Reason)
	require.NotNil(t, svc.filter.EventType)
	assert.Equal(t, enums.EventInvoiceCreated, *svc.filter.EventType)
}

func TestListDeadLettersRejectsUnknownReason(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/admin/outbox/dead-letters?reason=gone", nil)
	resp := httptest.NewRecorder()

	ListDeadLetters(&stubDeadLetters{}, testLogger())(resp, req)

	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestReplayDeadLetter(t *testing.T) {
	svc := &stubDeadLetters{}
	id := uuid.New()
	req := withParam(httptest.NewRequest(http.MethodPost, "/api/admin/outbox/dead-letters/"+id.String()+"/replay", nil), "eventId", id.String())
	resp := httptest.NewRecorder()

	ReplayDeadLetter(svc, testLogger())(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, id, svc.replayed)

	resp = httptest.NewRecorder()
	ReplayDeadLetter(svc, testLogger())(resp, req)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}
