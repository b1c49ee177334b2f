package repository

import (
	"context"

	"github.com/socialimageapp/authentication-api-service/internal/domain"
	"github.com/socialimageapp/authentication-api-service/internal/domain/oauth"
)

// UserRepository exposes persistence for platform users.
type UserRepository interface {
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	GetByID(ctx context.Context, userID int64) (domain.User, error)
	Create(ctx context.Context, user domain.User) (domain.User, error)
	UpdatePassword(ctx context.Context, userID int64, passwordHash string) error
}

// VerificationRepository manages single-use email tokens.
type VerificationRepository interface {
	Create(ctx context.Context, req domain.VerificationRequest) (domain.VerificationRequest, error)
	GetByToken(ctx context.Context, token string) (domain.VerificationRequest, error)
	Delete(ctx context.Context, id int64) error
	DeleteByUserAndKind(ctx context.Context, userID int64, kind domain.VerificationKind) error
}

// OrganizationRepository exposes read access to provisioned organizations.
type OrganizationRepository interface {
	ListByUser(ctx context.Context, userID int64) ([]domain.Organization, error)
	GetKeys(ctx context.Context, orgID int64) (domain.OrganizationKeys, error)
	IsMember(ctx context.Context, orgID, userID int64) (bool, error)
}

// OAuthStateStore persists short-lived OAuth login state between redirects.
type OAuthStateStore interface {
	SaveState(ctx context.Context, state oauth.State) error
	GetState(ctx context.Context, state string) (oauth.State, error)
	DeleteState(ctx context.Context, state string) error
}

// ProvisionOutcome reports what a verification consumed and whether the
// user's first-login resources were created by this call.
type ProvisionOutcome struct {
	User         domain.User
	Bootstrapped bool
	Organization domain.Organization
}

// Provisioner atomically consumes verification tokens and provisions
// first-login resources for newly verified users.
type Provisioner interface {
	ConsumeAndProvision(ctx context.Context, req domain.VerificationRequest) (ProvisionOutcome, error)
	CreateProvisionedUser(ctx context.Context, user domain.User) (domain.User, error)
}
