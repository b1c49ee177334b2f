package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/socialimageapp/authentication-api-service/internal/domain"
)

// Compile-time interface assertions.
var (
	_ UserRepository         = (*PostgresUserRepo)(nil)
	_ VerificationRepository = (*PostgresVerificationRepo)(nil)
	_ OrganizationRepository = (*PostgresOrganizationRepo)(nil)
)

// PostgresUserRepo implements UserRepository.
type PostgresUserRepo struct {
	db *pgxpool.Pool
}

func NewPostgresUserRepo(pool *pgxpool.Pool) *PostgresUserRepo {
	return &PostgresUserRepo{db: pool}
}

const userColumns = `id, email, password_hash, first_name, last_name, user_type, verified, created_at, updated_at`

func scanUser(row pgx.Row) (domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.FirstName,
		&u.LastName,
		&u.UserType,
		&u.Verified,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	return u, err
}

func (r *PostgresUserRepo) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = lower($1) LIMIT 1`
	u, err := scanUser(r.db.QueryRow(ctx, query, strings.TrimSpace(email)))
	if err != nil {
		return domain.User{}, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

func (r *PostgresUserRepo) GetByID(ctx context.Context, userID int64) (domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 LIMIT 1`
	u, err := scanUser(r.db.QueryRow(ctx, query, userID))
	if err != nil {
		return domain.User{}, fmt.Errorf("get user by id: %w", err)
	}
	return u, nil
}

const insertUserSQL = `INSERT INTO users (id, email, password_hash, first_name, last_name, user_type, verified)
VALUES ($1, lower($2), $3, $4, $5, $6, $7)
RETURNING ` + userColumns

func (r *PostgresUserRepo) Create(ctx context.Context, user domain.User) (domain.User, error) {
	inserted, err := scanUser(r.db.QueryRow(ctx, insertUserSQL,
		user.ID,
		strings.TrimSpace(user.Email),
		user.PasswordHash,
		user.FirstName,
		user.LastName,
		user.UserType,
		user.Verified,
	))
	if err != nil {
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	return inserted, nil
}

func (r *PostgresUserRepo) UpdatePassword(ctx context.Context, userID int64, passwordHash string) error {
	const query = `UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, userID, passwordHash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update password: %w", pgx.ErrNoRows)
	}
	return nil
}

// PostgresVerificationRepo implements VerificationRepository.
type PostgresVerificationRepo struct {
	db *pgxpool.Pool
}

func NewPostgresVerificationRepo(pool *pgxpool.Pool) *PostgresVerificationRepo {
	return &PostgresVerificationRepo{db: pool}
}

const verificationColumns = `id, user_id, token, kind, expires_at, created_at`

func scanVerification(row pgx.Row) (domain.VerificationRequest, error) {
	var v domain.VerificationRequest
	err := row.Scan(&v.ID, &v.UserID, &v.Token, &v.Kind, &v.ExpiresAt, &v.CreatedAt)
	return v, err
}

func (r *PostgresVerificationRepo) Create(ctx context.Context, req domain.VerificationRequest) (domain.VerificationRequest, error) {
	const query = `INSERT INTO user_verification_requests (id, user_id, token, kind, expires_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + verificationColumns
	inserted, err := scanVerification(r.db.QueryRow(ctx, query, req.ID, req.UserID, req.Token, req.Kind, req.ExpiresAt))
	if err != nil {
		return domain.VerificationRequest{}, fmt.Errorf("create verification request: %w", err)
	}
	return inserted, nil
}

func (r *PostgresVerificationRepo) GetByToken(ctx context.Context, token string) (domain.VerificationRequest, error) {
	const query = `SELECT ` + verificationColumns + ` FROM user_verification_requests WHERE token = $1 LIMIT 1`
	v, err := scanVerification(r.db.QueryRow(ctx, query, token))
	if err != nil {
		return domain.VerificationRequest{}, fmt.Errorf("get verification request: %w", err)
	}
	return v, nil
}

func (r *PostgresVerificationRepo) Delete(ctx context.Context, id int64) error {
	const query = `DELETE FROM user_verification_requests WHERE id = $1`
	if _, err := r.db.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("delete verification request: %w", err)
	}
	return nil
}

func (r *PostgresVerificationRepo) DeleteByUserAndKind(ctx context.Context, userID int64, kind domain.VerificationKind) error {
	const query = `DELETE FROM user_verification_requests WHERE user_id = $1 AND kind = $2`
	if _, err := r.db.Exec(ctx, query, userID, kind); err != nil {
		return fmt.Errorf("delete verification requests for user: %w", err)
	}
	return nil
}

// PostgresOrganizationRepo implements OrganizationRepository.
type PostgresOrganizationRepo struct {
	db *pgxpool.Pool
}

func NewPostgresOrganizationRepo(pool *pgxpool.Pool) *PostgresOrganizationRepo {
	return &PostgresOrganizationRepo{db: pool}
}

const organizationColumns = `o.id, o.owner_id, o.name, o.slug, o.description, o.logo_url, o.created_at, o.updated_at`

func scanOrganization(row pgx.Row) (domain.Organization, error) {
	var o domain.Organization
	err := row.Scan(
		&o.ID,
		&o.OwnerID,
		&o.Name,
		&o.Slug,
		&o.Description,
		&o.LogoURL,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	return o, err
}

func (r *PostgresOrganizationRepo) ListByUser(ctx context.Context, userID int64) ([]domain.Organization, error) {
	const query = `SELECT ` + organizationColumns + `
FROM organizations o
JOIN organization_users ou ON ou.organization_id = o.id
WHERE ou.user_id = $1
ORDER BY o.created_at`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}
	defer rows.Close()

	orgs := make([]domain.Organization, 0)
	for rows.Next() {
		o, err := scanOrganization(rows)
		if err != nil {
			return nil, fmt.Errorf("scan organization: %w", err)
		}
		orgs = append(orgs, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}
	return orgs, nil
}

func (r *PostgresOrganizationRepo) GetKeys(ctx context.Context, orgID int64) (domain.OrganizationKeys, error) {
	const query = `SELECT id, organization_id, algorithm, public_key, private_key, created_at
FROM organization_keys
WHERE organization_id = $1
ORDER BY created_at DESC
LIMIT 1`
	var k domain.OrganizationKeys
	err := r.db.QueryRow(ctx, query, orgID).Scan(
		&k.ID,
		&k.OrganizationID,
		&k.Algorithm,
		&k.PublicKey,
		&k.PrivateKey,
		&k.CreatedAt,
	)
	if err != nil {
		return domain.OrganizationKeys{}, fmt.Errorf("get organization keys: %w", err)
	}
	return k, nil
}

func (r *PostgresOrganizationRepo) IsMember(ctx context.Context, orgID, userID int64) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM organization_users WHERE organization_id = $1 AND user_id = $2)`
	var member bool
	if err := r.db.QueryRow(ctx, query, orgID, userID).Scan(&member); err != nil {
		return false, fmt.Errorf("check membership: %w", err)
	}
	return member, nil
}

func marshalPermissions(perms domain.PermissionSet) ([]byte, error) {
	payload, err := json.Marshal(perms)
	if err != nil {
		return nil, fmt.Errorf("marshal permissions: %w", err)
	}
	return payload, nil
}
