package repository

import (
	"context"
	"time"

	authdomain "billwatch-backend/internal/auth/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DeviceTokenRepository defines the interface for FCM device token storage
type DeviceTokenRepository interface {
	SaveToken(ctx context.Context, clientID, token, deviceInfo string) error
	ListTokens(ctx context.Context) ([]string, error)
	DeleteTokens(ctx context.Context, tokens []string) error
}

// deviceTokenRepository implements DeviceTokenRepository interface
type deviceTokenRepository struct {
	db *gorm.DB
}

// NewDeviceTokenRepository creates a new instance of deviceTokenRepository
func NewDeviceTokenRepository(db *gorm.DB) DeviceTokenRepository {
	return &deviceTokenRepository{
		db: db,
	}
}

// SaveToken saves or updates a device token (atomic upsert)
func (r *deviceTokenRepository) SaveToken(ctx context.Context, clientID, token, deviceInfo string) error {
	now := time.Now()
	deviceToken := &authdomain.DeviceToken{
		ID:         uuid.New().String(),
		ClientID:   clientID,
		Token:      token,
		DeviceInfo: deviceInfo,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	// Atomic upsert: INSERT ... ON CONFLICT (token) DO UPDATE
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "token"}},
		DoUpdates: clause.AssignmentColumns([]string{"client_id", "device_info", "updated_at"}),
	}).Create(deviceToken).Error
}

// ListTokens returns every registered token
func (r *deviceTokenRepository) ListTokens(ctx context.Context) ([]string, error) {
	var tokens []string
	err := r.db.WithContext(ctx).Model(&authdomain.DeviceToken{}).Order("created_at ASC").Pluck("token", &tokens).Error
	return tokens, err
}

// DeleteTokens removes the given tokens
func (r *deviceTokenRepository) DeleteTokens(ctx context.Context, tokens []string) error {
	if len(tokens) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Where("token IN ?", tokens).Delete(&authdomain.DeviceToken{}).Error
}
