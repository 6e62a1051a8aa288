package user

import "time"

// Role distinguishes the two sides of the donation exchange.
type Role string

const (
	RoleDonor     Role = "donor"
	RoleRecipient Role = "recipient"
)

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool {
	return r == RoleDonor || r == RoleRecipient
}

// User is a registered account. Email and Role are fixed at registration;
// everything else is editable through the profile endpoints.
type User struct {
	ID               string    `json:"id" db:"id"`
	Name             string    `json:"name" db:"name"`
	Email            string    `json:"email" db:"email"`
	PasswordHash     string    `json:"-" db:"password_hash"`
	Role             Role      `json:"role" db:"role"`
	Phone            string    `json:"phone" db:"phone"`
	Address          string    `json:"address" db:"address"`
	OrganizationName string    `json:"organizationName,omitempty" db:"organization_name"`
	CreatedAt        time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt        time.Time `json:"updatedAt" db:"updated_at"`
}

// DisplayName prefers the organization name when one is set.
func (u User) DisplayName() string {
	if u.OrganizationName != "" {
		return u.OrganizationName
	}
	return u.Name
}
