package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	gojose "github.com/go-jose/go-jose/v4"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/socialimageapp/authentication-api-service/internal/config"
	"github.com/socialimageapp/authentication-api-service/internal/domain"
	"github.com/socialimageapp/authentication-api-service/internal/jwt"
	"github.com/socialimageapp/authentication-api-service/internal/keys"
	"github.com/socialimageapp/authentication-api-service/internal/mail"
	pw "github.com/socialimageapp/authentication-api-service/internal/password"
	"github.com/socialimageapp/authentication-api-service/internal/queue"
	"github.com/socialimageapp/authentication-api-service/internal/repository"
)

const (
	// MessageAccountVerified acknowledges a consumed verification token.
	MessageAccountVerified = "Account verified"
	// MessageLoginSuccessful acknowledges an issued session.
	MessageLoginSuccessful = "Login successful"
	// MessageRegistrationPending asks the user to check their inbox.
	MessageRegistrationPending = "Registration received. Please check your email to verify your account."
	// MessagePasswordResetRequested is returned whether or not the email
	// exists, to avoid an account enumeration oracle.
	MessagePasswordResetRequested = "If that email exists, password reset instructions have been sent."
	// MessagePasswordReset acknowledges a completed password reset.
	MessagePasswordReset = "Password updated. You can now log in with your new password."

	verificationTokenBytes = 32
)

// AuthService encapsulates registration, verification, login, and
// password recovery flows.
type AuthService struct {
	users         repository.UserRepository
	verifications repository.VerificationRepository
	orgs          repository.OrganizationRepository
	provisioner   repository.Provisioner
	snowflake     *snowflake.Node
	jwt           *jwt.Generator
	emails        queue.Enqueuer
	cfg           config.Config
	logger        *zap.Logger
	tracer        trace.Tracer
}

// NewAuthService wires dependencies.
func NewAuthService(
	users repository.UserRepository,
	verifications repository.VerificationRepository,
	orgs repository.OrganizationRepository,
	provisioner repository.Provisioner,
	node *snowflake.Node,
	generator *jwt.Generator,
	emails queue.Enqueuer,
	cfg config.Config,
	logger *zap.Logger,
) *AuthService {
	return &AuthService{
		users:         users,
		verifications: verifications,
		orgs:          orgs,
		provisioner:   provisioner,
		snowflake:     node,
		jwt:           generator,
		emails:        emails,
		cfg:           cfg,
		logger:        logger,
		tracer:        otel.Tracer("github.com/socialimageapp/authentication-api-service/internal/service"),
	}
}

// Register creates an unverified account and queues the confirmation
// email. Re-registering an unverified account re-issues the token
// instead of failing, so a lost email is recoverable.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*RegisterResult, error) {
	ctx, span := s.startSpan(ctx, "AuthService.Register")
	defer span.End()

	email := normalizeEmail(input.Email)

	existing, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil && existing.Verified:
		return nil, ErrEmailTaken
	case err == nil:
		if err := s.issueVerification(ctx, existing, domain.KindEmailConfirmation); err != nil {
			span.RecordError(err)
			return nil, err
		}
		s.audit("register.resend", "user_id", existing.ID)
		return &RegisterResult{Message: MessageRegistrationPending, UserID: existing.ID}, nil
	case !errors.Is(err, pgx.ErrNoRows):
		span.RecordError(err)
		return nil, err
	}

	hash, err := pw.Hash(input.Password)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.Create(ctx, domain.User{
		ID:           s.snowflake.Generate().Int64(),
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
		UserType:     "user",
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("create user: %w", err)
	}

	if err := s.issueVerification(ctx, user, domain.KindEmailConfirmation); err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.audit("register.created", "user_id", user.ID)
	return &RegisterResult{Message: MessageRegistrationPending, UserID: user.ID}, nil
}

// Verify redeems an email confirmation token. The first successful
// verification also provisions the user's default organization; replays
// and races consume nothing and report an invalid token. The work runs
// detached from request cancellation so a dropped connection cannot
// abort a half-applied bootstrap.
func (s *AuthService) Verify(ctx context.Context, token string) (*VerifyResult, error) {
	ctx, span := s.startSpan(ctx, "AuthService.Verify")
	defer span.End()

	req, err := s.verifications.GetByToken(ctx, strings.TrimSpace(token))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidToken
		}
		span.RecordError(err)
		return nil, err
	}
	if req.Kind != domain.KindEmailConfirmation {
		return nil, ErrInvalidToken
	}
	if req.Expired(time.Now()) {
		_ = s.verifications.Delete(ctx, req.ID)
		return nil, ErrInvalidToken
	}

	outcome, err := s.provisioner.ConsumeAndProvision(context.WithoutCancel(ctx), req)
	if err != nil {
		if errors.Is(err, repository.ErrRequestConsumed) {
			return nil, ErrInvalidToken
		}
		span.RecordError(err)
		return nil, err
	}

	if outcome.Bootstrapped {
		s.audit("verify.bootstrapped", "user_id", outcome.User.ID, "org_id", outcome.Organization.ID)
	} else {
		s.audit("verify.repeat", "user_id", outcome.User.ID)
	}
	return &VerifyResult{Message: MessageAccountVerified, Email: outcome.User.Email}, nil
}

// Login authenticates with email and password and issues a session
// token. Unknown emails burn a dummy hash verification so response
// timing does not reveal account existence.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	ctx, span := s.startSpan(ctx, "AuthService.Login")
	defer span.End()

	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			_, _ = pw.Verify(password, pw.Dummy())
			return nil, ErrInvalidCredentials
		}
		span.RecordError(err)
		return nil, err
	}

	valid, err := pw.Verify(password, user.PasswordHash)
	if err != nil || !valid {
		s.audit("login.failed", "user_id", user.ID)
		return nil, ErrInvalidCredentials
	}

	if !user.Verified {
		return nil, ErrEmailNotVerified
	}

	token, err := s.jwt.Sign(user)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("sign session token: %w", err)
	}

	s.audit("login.success", "user_id", user.ID)
	return &LoginResult{
		Message: MessageLoginSuccessful,
		Token:   token,
		User:    NewUserViewModel(user),
	}, nil
}

// IssueSession signs a session token for an already authenticated user.
// Used by the OAuth login flow after the provider vouches for the email.
func (s *AuthService) IssueSession(ctx context.Context, user domain.User) (*LoginResult, error) {
	_, span := s.startSpan(ctx, "AuthService.IssueSession")
	defer span.End()

	token, err := s.jwt.Sign(user)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("sign session token: %w", err)
	}
	return &LoginResult{
		Message: MessageLoginSuccessful,
		Token:   token,
		User:    NewUserViewModel(user),
	}, nil
}

// ForgotPassword queues reset instructions when the account exists. The
// response is identical either way.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) (string, error) {
	ctx, span := s.startSpan(ctx, "AuthService.ForgotPassword")
	defer span.End()

	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return MessagePasswordResetRequested, nil
		}
		span.RecordError(err)
		return "", err
	}

	if err := s.issueVerification(ctx, user, domain.KindPasswordReset); err != nil {
		span.RecordError(err)
		return "", err
	}

	s.audit("password.reset.requested", "user_id", user.ID)
	return MessagePasswordResetRequested, nil
}

// ResetPassword redeems a reset token and installs a new password hash.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) (string, error) {
	ctx, span := s.startSpan(ctx, "AuthService.ResetPassword")
	defer span.End()

	req, err := s.verifications.GetByToken(ctx, strings.TrimSpace(token))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrInvalidToken
		}
		span.RecordError(err)
		return "", err
	}
	if req.Kind != domain.KindPasswordReset {
		return "", ErrInvalidToken
	}
	if req.Expired(time.Now()) {
		_ = s.verifications.Delete(ctx, req.ID)
		return "", ErrInvalidToken
	}

	hash, err := pw.Hash(newPassword)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, req.UserID, hash); err != nil {
		span.RecordError(err)
		return "", err
	}
	if err := s.verifications.DeleteByUserAndKind(ctx, req.UserID, domain.KindPasswordReset); err != nil {
		span.RecordError(err)
		return "", err
	}

	s.audit("password.reset.completed", "user_id", req.UserID)
	return MessagePasswordReset, nil
}

// Me loads the authenticated user's profile.
func (s *AuthService) Me(ctx context.Context, userID int64) (*UserViewModel, error) {
	ctx, span := s.startSpan(ctx, "AuthService.Me")
	defer span.End()

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		span.RecordError(err)
		return nil, err
	}
	vm := NewUserViewModel(user)
	return &vm, nil
}

// Organizations lists the organizations the user belongs to.
func (s *AuthService) Organizations(ctx context.Context, userID int64) ([]OrganizationViewModel, error) {
	ctx, span := s.startSpan(ctx, "AuthService.Organizations")
	defer span.End()

	orgs, err := s.orgs.ListByUser(ctx, userID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	out := make([]OrganizationViewModel, 0, len(orgs))
	for _, o := range orgs {
		out = append(out, NewOrganizationViewModel(o))
	}
	return out, nil
}

// OrgJWKS returns the public key set of an organization the caller
// belongs to.
func (s *AuthService) OrgJWKS(ctx context.Context, orgID, userID int64) (gojose.JSONWebKeySet, error) {
	ctx, span := s.startSpan(ctx, "AuthService.OrgJWKS")
	defer span.End()

	member, err := s.orgs.IsMember(ctx, orgID, userID)
	if err != nil {
		span.RecordError(err)
		return gojose.JSONWebKeySet{}, err
	}
	if !member {
		return gojose.JSONWebKeySet{}, ErrNotFound
	}

	orgKeys, err := s.orgs.GetKeys(ctx, orgID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return gojose.JSONWebKeySet{}, ErrNotFound
		}
		span.RecordError(err)
		return gojose.JSONWebKeySet{}, err
	}

	set, err := keys.JWKS(orgKeys)
	if err != nil {
		span.RecordError(err)
		return gojose.JSONWebKeySet{}, err
	}
	return set, nil
}

// ResendVerification replaces the outstanding confirmation token and
// queues a fresh email.
func (s *AuthService) ResendVerification(ctx context.Context, user domain.User) error {
	return s.issueVerification(ctx, user, domain.KindEmailConfirmation)
}

// issueVerification replaces any outstanding token of the same kind and
// queues the matching email. Only the newest token is redeemable.
func (s *AuthService) issueVerification(ctx context.Context, user domain.User, kind domain.VerificationKind) error {
	if err := s.verifications.DeleteByUserAndKind(ctx, user.ID, kind); err != nil {
		return err
	}

	token, err := randomToken()
	if err != nil {
		return err
	}

	ttl := s.cfg.VerificationTTL
	template := mail.TemplateConfirmEmail
	link := s.cfg.FrontendBaseURL + "/verify-email?token=" + token
	if kind == domain.KindPasswordReset {
		ttl = s.cfg.ResetTokenTTL
		template = mail.TemplateResetPassword
		link = s.cfg.FrontendBaseURL + "/reset-password?token=" + token
	}

	req, err := s.verifications.Create(ctx, domain.VerificationRequest{
		ID:        s.snowflake.Generate().Int64(),
		UserID:    user.ID,
		Token:     token,
		Kind:      kind,
		ExpiresAt: time.Now().Add(ttl),
	})
	if err != nil {
		return fmt.Errorf("create verification request: %w", err)
	}

	if err := s.emails.Enqueue(ctx, mail.Message{
		To:       user.Email,
		ToName:   user.FullName(),
		Template: template,
		TemplateData: map[string]any{
			"name": user.FullName(),
			"link": link,
		},
	}); err != nil {
		// The token is valid even if delivery stalls; re-register or
		// forgot-password issues a fresh one.
		s.log().Warn("enqueue verification email failed",
			zap.Int64("user_id", user.ID),
			zap.String("kind", string(req.Kind)),
			zap.Error(err),
		)
	}
	return nil
}

func randomToken() (string, error) {
	buf := make([]byte, verificationTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *AuthService) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	if s == nil || s.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return s.tracer.Start(ctx, name)
}

func (s *AuthService) log() *zap.Logger {
	if s == nil || s.logger == nil {
		return zap.NewNop()
	}
	return s.logger
}

func (s *AuthService) audit(event string, attrs ...any) {
	logger := s.log()
	fields := make([]zap.Field, 0, len(attrs)/2+2)
	fields = append(fields, zap.String("event", event), zap.Time("timestamp", time.Now().UTC()))
	for i := 0; i+1 < len(attrs); i += 2 {
		key, ok := attrs[i].(string)
		if !ok {
			continue
		}
		fields = append(fields, zap.Any(key, attrs[i+1]))
	}
	logger.Info("audit", fields...)
}
