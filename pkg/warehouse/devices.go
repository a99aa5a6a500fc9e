package warehouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shift-health/pipeline/pkg/database"
	"github.com/shift-health/pipeline/pkg/models"
)

// DeviceRepository is one of the two mutable stores in the system
// (spec.md §4.A): the device-registration row per user, latest upsert
// wins by updated_at.
type DeviceRepository struct {
	db *database.Client
}

func NewDeviceRepository(db *database.Client) *DeviceRepository {
	return &DeviceRepository{db: db}
}

func (r *DeviceRepository) Upsert(ctx context.Context, reg *models.DeviceRegistration) error {
	const q = `
		INSERT INTO device_registrations (user_id, device_token, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET device_token = excluded.device_token, updated_at = excluded.updated_at
		WHERE device_registrations.updated_at <= excluded.updated_at`

	_, err := r.db.ExecContext(ctx, q, reg.UserID, reg.DeviceToken, reg.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert device registration: %w", err)
	}
	return nil
}

// Get returns the current device token for userID, or ErrNotFound if the
// user has never registered one (spec.md §4.D step 10: "resolve device
// token for user; if present...").
func (r *DeviceRepository) Get(ctx context.Context, userID string) (*models.DeviceRegistration, error) {
	const q = `SELECT user_id, device_token, updated_at FROM device_registrations WHERE user_id = $1`

	var reg models.DeviceRegistration
	if err := r.db.GetContext(ctx, &reg, q, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select device registration: %w", err)
	}
	return &reg, nil
}
