package balance

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ovlasenko/webshop-backend/pkg/db"
	"github.com/ovlasenko/webshop-backend/pkg/db/models"
	"github.com/ovlasenko/webshop-backend/pkg/enums"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx rebinds the repository to the supplied transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Find returns the balance row without locking. A missing row reads as a
// zero balance.
func (r *Repository) Find(ctx context.Context, userID uuid.UUID) (*models.UserBalance, error) {
	var row models.UserBalance
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.UserBalance{UserID: userID, Amount: decimal.Zero}, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// FindForUpdate locks the balance row for the rest of the transaction.
// Returns gorm.ErrRecordNotFound when the user has no balance row yet.
func (r *Repository) FindForUpdate(ctx context.Context, userID uuid.UUID) (*models.UserBalance, error) {
	var row models.UserBalance
	err := db.LockForUpdate(r.db.WithContext(ctx)).
		Where("user_id = ?", userID).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// SetAmount writes the new balance amount for an existing row.
func (r *Repository) SetAmount(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) error {
	return r.db.WithContext(ctx).
		Model(&models.UserBalance{}).
		Where("user_id = ?", userID).
		Update("amount", amount).Error
}

// Create inserts a fresh balance row.
func (r *Repository) Create(ctx context.Context, row *models.UserBalance) error {
	return r.db.WithContext(ctx).Create(row).Error
}

// AppendHistory records one balance mutation in the append-only log.
func (r *Repository) AppendHistory(ctx context.Context, userID uuid.UUID, op enums.BalanceOperationType, amount decimal.Decimal) error {
	row := models.UserBalanceHistory{
		ID:            uuid.New(),
		UserID:        userID,
		OperationType: op,
		Amount:        amount,
	}
	return r.db.WithContext(ctx).Create(&row).Error
}

// History returns balance mutations newest-first.
func (r *Repository) History(ctx context.Context, userID uuid.UUID, limit int) ([]models.UserBalanceHistory, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []models.UserBalanceHistory
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
