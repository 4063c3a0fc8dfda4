package assistants

import "time"

// Assistant maps a voice-platform assistant id to the tenant it
// answers for. Phone numbers route to assistants on the platform side,
// so this mapping is how inbound traffic gets attributed.
type Assistant struct {
	ID          string    `json:"id" db:"id"`
	TenantID    string    `json:"tenant_id" db:"tenant_id"`
	ExternalID  string    `json:"external_id" db:"external_id"`
	DisplayName string    `json:"display_name" db:"display_name"`
	PhoneNumber string    `json:"phone_number" db:"phone_number"`
	Active      bool      `json:"active" db:"active"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}
