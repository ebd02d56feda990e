package notifications

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ovlasenko/webshop-backend/pkg/db/models"
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

// Create stores one notification.
func (r *Repository) Create(ctx context.Context, row *models.Notification) error {
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(row).Error
}

// ListByUser returns the user's notifications newest-first.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []models.Notification
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// AlreadyProcessed reports whether this consumer has seen the event.
func (r *Repository) AlreadyProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ProcessedEvent{}).
		Where("consumer = ? AND event_id = ?", consumer, eventID).
		Count(&count).Error
	return count > 0, err
}

// MarkProcessed records the event id for this consumer.
func (r *Repository) MarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) error {
	row := models.ProcessedEvent{Consumer: consumer, EventID: eventID}
	return r.db.WithContext(ctx).Create(&row).Error
}
