package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/socialimageapp/authentication-api-service/internal/domain"
)

// ErrRequestConsumed reports that a verification request was already
// consumed by a concurrent or earlier call.
var ErrRequestConsumed = errors.New("verification request already consumed")

// KeyPairFunc produces signing key material for a new organization.
type KeyPairFunc func() (domain.KeyPair, error)

var _ Provisioner = (*PostgresProvisioner)(nil)

// PostgresProvisioner consumes verification tokens and provisions the
// first-login record set inside a single transaction. Deleting the
// verification row and flipping users.verified are the serialization
// points: whichever transaction commits the conditional update creates
// the bootstrap records, every other path is a no-op.
type PostgresProvisioner struct {
	db      *pgxpool.Pool
	node    *snowflake.Node
	newKeys KeyPairFunc
}

func NewPostgresProvisioner(pool *pgxpool.Pool, node *snowflake.Node, newKeys KeyPairFunc) *PostgresProvisioner {
	return &PostgresProvisioner{db: pool, node: node, newKeys: newKeys}
}

func (p *PostgresProvisioner) newID() int64 {
	return p.node.Generate().Int64()
}

// ConsumeAndProvision deletes the verification request, marks the user
// verified, and provisions the default organization on the first
// successful verification. Subsequent calls with a fresh token for an
// already verified user consume the token without re-provisioning.
func (p *PostgresProvisioner) ConsumeAndProvision(ctx context.Context, req domain.VerificationRequest) (ProvisionOutcome, error) {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return ProvisionOutcome{}, fmt.Errorf("begin provision tx: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `DELETE FROM user_verification_requests WHERE id = $1`, req.ID)
	if err != nil {
		return ProvisionOutcome{}, fmt.Errorf("consume verification request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ProvisionOutcome{}, ErrRequestConsumed
	}

	tag, err = tx.Exec(ctx, `UPDATE users SET verified = true, updated_at = now() WHERE id = $1 AND verified = false`, req.UserID)
	if err != nil {
		return ProvisionOutcome{}, fmt.Errorf("mark user verified: %w", err)
	}
	firstVerification := tag.RowsAffected() == 1

	user, err := scanUser(tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, req.UserID))
	if err != nil {
		return ProvisionOutcome{}, fmt.Errorf("load verified user: %w", err)
	}

	outcome := ProvisionOutcome{User: user}
	if firstVerification {
		org, err := p.provision(ctx, tx, user)
		if err != nil {
			return ProvisionOutcome{}, err
		}
		outcome.Bootstrapped = true
		outcome.Organization = org
	}

	if err := tx.Commit(ctx); err != nil {
		return ProvisionOutcome{}, fmt.Errorf("commit provision tx: %w", err)
	}
	return outcome, nil
}

// CreateProvisionedUser inserts an already-verified user together with
// their bootstrap records in one transaction. Used for OAuth sign-ins
// with a verified email and for the seeded admin account.
func (p *PostgresProvisioner) CreateProvisionedUser(ctx context.Context, user domain.User) (domain.User, error) {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return domain.User{}, fmt.Errorf("begin provision tx: %w", err)
	}
	defer tx.Rollback(ctx)

	user.Verified = true
	inserted, err := scanUser(tx.QueryRow(ctx, insertUserSQL,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.FirstName,
		user.LastName,
		user.UserType,
		user.Verified,
	))
	if err != nil {
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}

	if _, err := p.provision(ctx, tx, inserted); err != nil {
		return domain.User{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.User{}, fmt.Errorf("commit provision tx: %w", err)
	}
	return inserted, nil
}

func (p *PostgresProvisioner) provision(ctx context.Context, tx pgx.Tx, user domain.User) (domain.Organization, error) {
	keys, err := p.newKeys()
	if err != nil {
		return domain.Organization{}, fmt.Errorf("generate organization keys: %w", err)
	}

	boot := domain.NewBootstrap(user, keys, p.newID, time.Now().UTC())

	const insertOrgSQL = `INSERT INTO organizations (id, owner_id, name, slug, description, logo_url)
VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := tx.Exec(ctx, insertOrgSQL,
		boot.Organization.ID,
		boot.Organization.OwnerID,
		boot.Organization.Name,
		boot.Organization.Slug,
		boot.Organization.Description,
		boot.Organization.LogoURL,
	); err != nil {
		return domain.Organization{}, fmt.Errorf("create organization: %w", err)
	}

	const insertRoleSQL = `INSERT INTO organization_roles (id, organization_id, name, description, permissions)
VALUES ($1, $2, $3, $4, $5)`
	for _, role := range boot.Roles {
		perms, err := marshalPermissions(role.Permissions)
		if err != nil {
			return domain.Organization{}, err
		}
		if _, err := tx.Exec(ctx, insertRoleSQL, role.ID, role.OrganizationID, role.Name, role.Description, perms); err != nil {
			return domain.Organization{}, fmt.Errorf("create role %s: %w", role.Name, err)
		}
	}

	const insertMembershipSQL = `INSERT INTO organization_users (id, organization_id, user_id)
VALUES ($1, $2, $3)`
	if _, err := tx.Exec(ctx, insertMembershipSQL,
		boot.Membership.ID,
		boot.Membership.OrganizationID,
		boot.Membership.UserID,
	); err != nil {
		return domain.Organization{}, fmt.Errorf("create membership: %w", err)
	}

	const insertAssignmentSQL = `INSERT INTO organization_user_roles (id, organization_id, user_id, role_id)
VALUES ($1, $2, $3, $4)`
	if _, err := tx.Exec(ctx, insertAssignmentSQL,
		boot.RoleAssignment.ID,
		boot.RoleAssignment.OrganizationID,
		boot.RoleAssignment.UserID,
		boot.RoleAssignment.RoleID,
	); err != nil {
		return domain.Organization{}, fmt.Errorf("assign owner role: %w", err)
	}

	const insertKeysSQL = `INSERT INTO organization_keys (id, organization_id, algorithm, public_key, private_key)
VALUES ($1, $2, $3, $4, $5)`
	if _, err := tx.Exec(ctx, insertKeysSQL,
		boot.Keys.ID,
		boot.Keys.OrganizationID,
		boot.Keys.Algorithm,
		boot.Keys.PublicKey,
		boot.Keys.PrivateKey,
	); err != nil {
		return domain.Organization{}, fmt.Errorf("store organization keys: %w", err)
	}

	const insertSubscriptionSQL = `INSERT INTO subscriptions (id, organization_id, plan_id, status, currency, price, period, trial_start, trial_end, start_date, end_date)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	if _, err := tx.Exec(ctx, insertSubscriptionSQL,
		boot.Subscription.ID,
		boot.Subscription.OrganizationID,
		boot.Subscription.PlanID,
		boot.Subscription.Status,
		boot.Subscription.Currency,
		boot.Subscription.Price,
		boot.Subscription.Period,
		boot.Subscription.TrialStart,
		boot.Subscription.TrialEnd,
		boot.Subscription.StartDate,
		boot.Subscription.EndDate,
	); err != nil {
		return domain.Organization{}, fmt.Errorf("create trial subscription: %w", err)
	}

	const insertUsageSQL = `INSERT INTO subscription_usages (id, subscription_id, credits, reset_date)
VALUES ($1, $2, $3, $4)`
	if _, err := tx.Exec(ctx, insertUsageSQL,
		boot.Usage.ID,
		boot.Usage.SubscriptionID,
		boot.Usage.Credits,
		boot.Usage.ResetDate,
	); err != nil {
		return domain.Organization{}, fmt.Errorf("create subscription usage: %w", err)
	}

	return boot.Organization, nil
}
