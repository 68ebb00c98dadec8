package types

import "time"

// Role is the capacity an account is currently operating under
type Role string

const (
	RolePatient       Role = "patient"
	RoleProvider      Role = "provider"
	RoleClinicalAdmin Role = "clinical_admin"
)

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	switch r {
	case RolePatient, RoleProvider, RoleClinicalAdmin:
		return true
	}
	return false
}

// Account is a single login identity. An account may hold both the patient
// and provider roles and switch between them; ActiveRole selects which one
// is currently in effect for notification visibility and self-presentation.
type Account struct {
	ID           string    `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Email        string    `json:"email" db:"email"`
	Mobile       string    `json:"mobile,omitempty" db:"mobile"`
	Roles        []Role    `json:"roles" db:"roles"`
	ActiveRole   Role      `json:"active_role" db:"active_role"`
	ProfileImage string    `json:"profile_image,omitempty" db:"profile_image"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// HasRole reports whether the account holds the given role
func (a *Account) HasRole(role Role) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// ProviderProfile is the clinical profile owned by exactly one account.
// It is looked up both by its own ID and by its owning account's ID; the
// resolver in internal/identity handles both addressing forms.
type ProviderProfile struct {
	ID            string    `json:"id" db:"id"`
	AccountID     string    `json:"account_id" db:"account_id"`
	Specialty     string    `json:"specialty" db:"specialty"`
	Verified      bool      `json:"verified" db:"verified"`
	Active        bool      `json:"active" db:"active"`
	AffiliationID string    `json:"affiliation_id,omitempty" db:"affiliation_id"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// Bookable reports whether the profile can receive new appointment requests
func (p *ProviderProfile) Bookable() bool {
	return p.Verified && p.Active
}
