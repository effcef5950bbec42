package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgAuth "github.com/angelmondragon/telcobill-backend/pkg/auth"
	"github.com/angelmondragon/telcobill-backend/pkg/config"
	"github.com/angelmondragon/telcobill-backend/pkg/db/models"
	"github.com/angelmondragon/telcobill-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/telcobill-backend/pkg/errors"
	"github.com/angelmondragon/telcobill-backend/pkg/security"
)

var testJWT = config.JWTConfig{
	Secret:            "secret",
	Issuer:            "telcobill",
	ExpirationMinutes: 30,
}

func TestServiceLoginIssuesCustomerToken(t *testing.T) {
	password := "recharge99"
	customer := &models.CustomerProfile{
		ID:           uuid.New(),
		Email:        "asha@example.com",
		PasswordHash: mustHashPassword(t, password),
		FirstName:    "Asha",
		LastName:     "Rao",
		KYCStatus:    enums.KYCStatusVerified,
		IsActive:     true,
	}
	// Tokens are verified against the wall clock, so mint on it too.
	now := time.Now().UTC().Truncate(time.Second)
	svc, sessions := buildTestService(t, customer, now)

	resp, err := svc.Login(context.Background(), LoginRequest{Email: " ASHA@example.com ", Password: password})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	claims, err := pkgAuth.ParseAccessToken(testJWT, resp.AccessToken)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.CustomerID != customer.ID || claims.Role != enums.RoleCustomer {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if claims.KYCStatus == nil || *claims.KYCStatus != enums.KYCStatusVerified {
		t.Fatalf("expected verified kyc claim")
	}
	if resp.RefreshToken != "refresh-token" || sessions.accessID != claims.ID {
		t.Fatalf("refresh session not bound to jti: %q vs %q", sessions.accessID, claims.ID)
	}
	if resp.Customer == nil || resp.Customer.LastLoginAt == nil || !resp.Customer.LastLoginAt.Equal(now) {
		t.Fatalf("expected last login recorded, got %+v", resp.Customer)
	}
}

func TestServiceLoginRejectsBadCredentials(t *testing.T) {
	password := "recharge99"
	customer := &models.CustomerProfile{
		ID:           uuid.New(),
		Email:        "asha@example.com",
		PasswordHash: mustHashPassword(t, password),
		IsActive:     true,
	}
	svc, _ := buildTestService(t, customer, time.Now())

	cases := []LoginRequest{
		{Email: "asha@example.com", Password: "wrong-pass1"},
		{Email: "nobody@example.com", Password: password},
		{Email: "   ", Password: password},
	}
	for _, req := range cases {
		_, err := svc.Login(context.Background(), req)
		if !pkgerrors.Is(err, pkgerrors.CodeUnauthorized) {
			t.Fatalf("%+v: expected unauthorized, got %v", req, err)
		}
	}

	customer.IsActive = false
	if _, err := svc.Login(context.Background(), LoginRequest{Email: customer.Email, Password: password}); !pkgerrors.Is(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected inactive customer to be rejected, got %v", err)
	}
}

func TestServiceAdminLogin(t *testing.T) {
	password := "ops-desk-1"
	role := string(enums.RoleAdmin)
	admin := &models.CustomerProfile{
		ID:           uuid.New(),
		Email:        "ops@example.com",
		PasswordHash: mustHashPassword(t, password),
		SystemRole:   &role,
		IsActive:     true,
	}
	svc, _ := buildTestService(t, admin, time.Now())

	resp, err := svc.AdminLogin(context.Background(), LoginRequest{Email: admin.Email, Password: password})
	if err != nil {
		t.Fatalf("admin login: %v", err)
	}
	claims, err := pkgAuth.ParseAccessToken(testJWT, resp.AccessToken)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.Role != enums.RoleAdmin {
		t.Fatalf("expected admin role, got %s", claims.Role)
	}
	if claims.KYCStatus != nil {
		t.Fatalf("expected no kyc claim for an operator, got %q", *claims.KYCStatus)
	}

	admin.SystemRole = nil
	if _, err := svc.AdminLogin(context.Background(), LoginRequest{Email: admin.Email, Password: password}); !pkgerrors.Is(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected non-admin to be rejected, got %v", err)
	}
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	if _, err := NewService(ServiceParams{SessionManager: &stubSessionManager{}}); err == nil {
		t.Fatal("expected missing repository to fail")
	}
	if _, err := NewService(ServiceParams{Customers: &stubCustomerRepo{}}); err == nil {
		t.Fatal("expected missing session manager to fail")
	}
}

func buildTestService(t *testing.T, customer *models.CustomerProfile, now time.Time) (Service, *stubSessionManager) {
	t.Helper()
	sessions := &stubSessionManager{refreshToken: "refresh-token"}
	svc, err := NewService(ServiceParams{
		Customers:      &stubCustomerRepo{customer: customer},
		SessionManager: sessions,
		JWTConfig:      testJWT,
		Now:            func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	return svc, sessions
}

func mustHashPassword(t *testing.T, password string) string {
	t.Helper()
	hash, err := security.HashPassword(password, config.PasswordConfig{})
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return hash
}

type stubCustomerRepo struct {
	customer *models.CustomerProfile
}

func (s *stubCustomerRepo) FindByEmail(ctx context.Context, email string) (*models.CustomerProfile, error) {
	if s.customer == nil || s.customer.Email != email {
		return nil, gorm.ErrRecordNotFound
	}
	return s.customer, nil
}

func (s *stubCustomerRepo) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	if s.customer != nil && s.customer.ID == id {
		s.customer.LastLoginAt = &at
	}
	return nil
}

type stubSessionManager struct {
	refreshToken string
	accessID     string
	customerID   uuid.UUID
}

func (s *stubSessionManager) Generate(ctx context.Context, accessID string, customerID uuid.UUID) (string, error) {
	s.accessID = accessID
	s.customerID = customerID
	return s.refreshToken, nil
}
