package service

import (
	"time"

	"github.com/socialimageapp/authentication-api-service/internal/domain"
)

// RegisterInput carries a new account request.
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// RegisterResult acknowledges a pending registration.
type RegisterResult struct {
	Message string `json:"message"`
	UserID  int64  `json:"user_id,string"`
}

// LoginResult carries an issued session.
type LoginResult struct {
	Message string        `json:"message"`
	Token   string        `json:"token"`
	User    UserViewModel `json:"user"`
}

// VerifyResult acknowledges a consumed verification token.
type VerifyResult struct {
	Message string `json:"message"`
	Email   string `json:"email"`
}

// UserViewModel is the public shape of a user.
type UserViewModel struct {
	ID        int64     `json:"id,string"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	UserType  string    `json:"user_type"`
	Verified  bool      `json:"verified"`
	CreatedAt time.Time `json:"created_at"`
}

// OrganizationViewModel is the public shape of an organization.
type OrganizationViewModel struct {
	ID          int64     `json:"id,string"`
	OwnerID     int64     `json:"owner_id,string"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description"`
	LogoURL     string    `json:"logo_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewUserViewModel strips credentials from a user record.
func NewUserViewModel(u domain.User) UserViewModel {
	return UserViewModel{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		UserType:  u.UserType,
		Verified:  u.Verified,
		CreatedAt: u.CreatedAt,
	}
}

// NewOrganizationViewModel maps an organization for API responses.
func NewOrganizationViewModel(o domain.Organization) OrganizationViewModel {
	return OrganizationViewModel{
		ID:          o.ID,
		OwnerID:     o.OwnerID,
		Name:        o.Name,
		Slug:        o.Slug,
		Description: o.Description,
		LogoURL:     o.LogoURL,
		CreatedAt:   o.CreatedAt,
	}
}
