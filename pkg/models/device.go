package models

import "time"

// DeviceRegistration maps a user to their most recent push token
// (spec.md §3). Mutable via upsert — latest UpdatedAt wins. One of the
// two deliberately mutable stores in the system (the other is the dedup
// lock, which lives outside the warehouse entirely).
type DeviceRegistration struct {
	UserID      string    `db:"user_id"`
	DeviceToken string    `db:"device_token"`
	UpdatedAt   time.Time `db:"updated_at"`
}
