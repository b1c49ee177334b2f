package domain

import (
	"time"

	"github.com/google/uuid"
)

// Defaults applied when provisioning a first organization for a freshly
// verified user.
const (
	DefaultOrganizationName = "My First Organization"

	RoleOwner  = "Owner"
	RoleMember = "Member"

	TrialPlanID   = "core"
	TrialDuration = 30 * 24 * time.Hour
)

// NewID produces a fresh unique identifier. Callers supply a snowflake-backed
// implementation; tests supply counters.
type NewID func() int64

// Bootstrap is the complete record set provisioned, exactly once, when a user
// is first verified: the default organization, its built-in roles, the owner
// membership and role assignment, a signing key pair, and a trial
// subscription with its usage counter.
type Bootstrap struct {
	Organization   Organization
	Roles          []OrganizationRole
	Membership     OrganizationUser
	RoleAssignment OrganizationUserRole
	Keys           OrganizationKeys
	Subscription   Subscription
	Usage          SubscriptionUsage
}

// OwnerRole returns the unrestricted built-in role.
func (b Bootstrap) OwnerRole() OrganizationRole {
	return b.Roles[0]
}

// NewBootstrap builds the default organization record set for a user. The
// result is pure data; persistence (and its atomicity) is the caller's
// concern.
func NewBootstrap(user User, keys KeyPair, newID NewID, now time.Time) Bootstrap {
	org := Organization{
		ID:          newID(),
		OwnerID:     user.ID,
		Name:        DefaultOrganizationName,
		Slug:        uuid.NewString(),
		Description: DefaultOrganizationName,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	owner := OrganizationRole{
		ID:             newID(),
		OrganizationID: org.ID,
		Name:           RoleOwner,
		Description:    "Full administrative access to the organization",
		Permissions:    PermissionSet{"all": true},
		CreatedAt:      now,
	}
	member := OrganizationRole{
		ID:             newID(),
		OrganizationID: org.ID,
		Name:           RoleMember,
		Description:    "Standard member access to the organization",
		Permissions: PermissionSet{
			"read":   true,
			"write":  true,
			"delete": false,
			"admin":  false,
		},
		CreatedAt: now,
	}

	subscription := Subscription{
		ID:             newID(),
		OrganizationID: org.ID,
		PlanID:         TrialPlanID,
		Status:         "active",
		Currency:       "USD",
		Price:          0,
		Period:         "month",
		TrialStart:     now,
		TrialEnd:       now.Add(TrialDuration),
		StartDate:      now,
		EndDate:        now.Add(TrialDuration),
		CreatedAt:      now,
	}

	return Bootstrap{
		Organization: org,
		Roles:        []OrganizationRole{owner, member},
		Membership: OrganizationUser{
			ID:             newID(),
			OrganizationID: org.ID,
			UserID:         user.ID,
			CreatedAt:      now,
		},
		RoleAssignment: OrganizationUserRole{
			ID:             newID(),
			OrganizationID: org.ID,
			UserID:         user.ID,
			RoleID:         owner.ID,
			CreatedAt:      now,
		},
		Keys: OrganizationKeys{
			ID:             newID(),
			OrganizationID: org.ID,
			Algorithm:      keys.Algorithm,
			PublicKey:      keys.PublicKey,
			PrivateKey:     keys.PrivateKey,
			CreatedAt:      now,
		},
		Subscription: subscription,
		Usage: SubscriptionUsage{
			ID:             newID(),
			SubscriptionID: subscription.ID,
			Credits:        0,
			ResetDate:      now,
		},
	}
}
