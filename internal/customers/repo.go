package customers

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/telcobill-backend/pkg/db/models"
	"github.com/angelmondragon/telcobill-backend/pkg/enums"
	"github.com/angelmondragon/telcobill-backend/pkg/pagination"
)

// Repository persists customer profiles.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a customers repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) Create(ctx context.Context, customer *models.CustomerProfile) error {
	return r.db.WithContext(ctx).Create(customer).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.CustomerProfile, error) {
	var customer models.CustomerProfile
	if err := r.db.WithContext(ctx).First(&customer, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}

// FindByEmail expects a lower-cased email.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.CustomerProfile, error) {
	var customer models.CustomerProfile
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&customer).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}

// ListFilter narrows the admin customer list.
type ListFilter struct {
	KYCStatus *enums.KYCStatus
	Search    string
}

func (r *Repository) List(ctx context.Context, filter ListFilter, page pagination.Params) ([]models.CustomerProfile, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.CustomerProfile{})
	if filter.KYCStatus != nil {
		query = query.Where("kyc_status = ?", *filter.KYCStatus)
	}
	if term := strings.ToLower(strings.TrimSpace(filter.Search)); term != "" {
		like := "%" + term + "%"
		query = query.Where("LOWER(email) LIKE ? OR LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ?", like, like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []models.CustomerProfile
	if err := page.Apply(query.Order("created_at DESC, id DESC")).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (r *Repository) Count(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.CustomerProfile{}).Count(&total).Error
	return total, err
}

func (r *Repository) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.CustomerProfile{}).
		Where("id = ?", id).
		UpdateColumn("last_login_at", at).Error
}

func (r *Repository) UpdateKYCStatus(ctx context.Context, id uuid.UUID, status enums.KYCStatus) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.CustomerProfile{}).
		Where("id = ?", id).
		Updates(map[string]any{"kyc_status": status, "updated_at": time.Now().UTC()})
	return res.RowsAffected > 0, res.Error
}

// AddCredit adjusts the stored credit balance by delta minor units.
func (r *Repository) AddCredit(ctx context.Context, id uuid.UUID, delta int64) error {
	return r.db.WithContext(ctx).
		Model(&models.CustomerProfile{}).
		Where("id = ?", id).
		UpdateColumn("credit_balance_minor", gorm.Expr("credit_balance_minor + ?", delta)).Error
}

// ConsumeCreditTx draws up to limit from the customer's credit balance inside tx and
// reports how much was taken.
func (r *Repository) ConsumeCreditTx(ctx context.Context, tx *gorm.DB, id uuid.UUID, limit int64) (int64, error) {
	if limit <= 0 {
		return 0, nil
	}
	repo := r.WithTx(tx)
	var balance int64
	err := repo.db.WithContext(ctx).Model(&models.CustomerProfile{}).
		Where("id = ?", id).
		Select("credit_balance_minor").
		Scan(&balance).Error
	if err != nil || balance <= 0 {
		return 0, err
	}
	take := min(balance, limit)
	res := repo.db.WithContext(ctx).Model(&models.CustomerProfile{}).
		Where("id = ? AND credit_balance_minor >= ?", id, take).
		UpdateColumn("credit_balance_minor", gorm.Expr("credit_balance_minor - ?", take))
	if res.Error != nil || res.RowsAffected == 0 {
		return 0, res.Error
	}
	return take, nil
}

// UpdatePaymentProfile stores the Stripe customer and default payment method references.
func (r *Repository) UpdatePaymentProfile(ctx context.Context, id uuid.UUID, stripeCustomerID, paymentMethodID string) error {
	return r.db.WithContext(ctx).
		Model(&models.CustomerProfile{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"stripe_customer_id":        stripeCustomerID,
			"default_payment_method_id": paymentMethodID,
			"updated_at":                time.Now().UTC(),
		}).Error
}
