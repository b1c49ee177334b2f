package domain

import "time"

// Organization is a logical workspace owned by a user.
type Organization struct {
	ID          int64
	OwnerID     int64
	Name        string
	Slug        string
	Description string
	LogoURL     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// PermissionSet is a structured capability map attached to a role.
type PermissionSet map[string]bool

// Allows reports whether the set grants the named capability, honoring the
// unrestricted "all" grant.
func (p PermissionSet) Allows(capability string) bool {
	if p["all"] {
		return true
	}
	return p[capability]
}

// OrganizationRole is a named permission bundle scoped to one organization.
type OrganizationRole struct {
	ID             int64
	OrganizationID int64
	Name           string
	Description    string
	Permissions    PermissionSet
	CreatedAt      time.Time
}

// OrganizationUser records membership of a user in an organization.
type OrganizationUser struct {
	ID             int64
	OrganizationID int64
	UserID         int64
	CreatedAt      time.Time
}

// OrganizationUserRole assigns a role to a member of an organization.
type OrganizationUserRole struct {
	ID             int64
	OrganizationID int64
	UserID         int64
	RoleID         int64
	CreatedAt      time.Time
}

// KeyPair holds generated asymmetric key material before persistence.
type KeyPair struct {
	Algorithm  string
	PublicKey  string
	PrivateKey string
}

// OrganizationKeys stores the signing key pair provisioned for an organization.
type OrganizationKeys struct {
	ID             int64
	OrganizationID int64
	Algorithm      string
	PublicKey      string
	PrivateKey     string
	CreatedAt      time.Time
}
