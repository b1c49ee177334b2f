// Package oauth implements the Google sign-in bridge: the authorization
// redirect, the PKCE-protected code exchange, and silent registration of
// provider-vouched accounts.
package oauth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	googleoauth "github.com/socialimageapp/authentication-api-service/internal/adapter/oauth"
	"github.com/socialimageapp/authentication-api-service/internal/domain"
	domainoauth "github.com/socialimageapp/authentication-api-service/internal/domain/oauth"
	pw "github.com/socialimageapp/authentication-api-service/internal/password"
	"github.com/socialimageapp/authentication-api-service/internal/repository"
	"github.com/socialimageapp/authentication-api-service/internal/service"
)

// GoogleService drives the Google login flow end to end.
type GoogleService struct {
	states      repository.OAuthStateStore
	provider    googleoauth.Client
	users       repository.UserRepository
	provisioner repository.Provisioner
	auth        *service.AuthService
	snowflake   *snowflake.Node
	cfg         googleoauth.Config
	logger      *zap.Logger
	tracer      trace.Tracer
}

// NewGoogleService wires dependencies.
func NewGoogleService(
	states repository.OAuthStateStore,
	provider googleoauth.Client,
	users repository.UserRepository,
	provisioner repository.Provisioner,
	auth *service.AuthService,
	node *snowflake.Node,
	cfg googleoauth.Config,
	logger *zap.Logger,
) *GoogleService {
	return &GoogleService{
		states:      states,
		provider:    provider,
		users:       users,
		provisioner: provisioner,
		auth:        auth,
		snowflake:   node,
		cfg:         cfg,
		logger:      logger,
		tracer:      otel.Tracer("github.com/socialimageapp/authentication-api-service/internal/service/oauth"),
	}
}

// Start mints a state/nonce/PKCE tuple, persists it, and returns the
// provider authorization URL to redirect the user to.
func (s *GoogleService) Start(ctx context.Context) (string, error) {
	ctx, span := s.startSpan(ctx, "GoogleService.Start")
	defer span.End()

	state, err := randomValue()
	if err != nil {
		return "", err
	}
	nonce, err := randomValue()
	if err != nil {
		return "", err
	}
	verifier, err := randomValue()
	if err != nil {
		return "", err
	}

	stored := domainoauth.State{
		State:        state,
		Nonce:        nonce,
		CodeVerifier: verifier,
		RedirectURI:  s.cfg.RedirectURI,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.states.SaveState(ctx, stored); err != nil {
		span.RecordError(err)
		return "", err
	}

	return googleoauth.AuthURL(s.cfg, stored), nil
}

// Callback redeems the provider callback: it validates and consumes the
// state, exchanges the code using the stored PKCE verifier, loads the
// profile, and signs the caller in.
func (s *GoogleService) Callback(ctx context.Context, state, code string) (*service.LoginResult, error) {
	ctx, span := s.startSpan(ctx, "GoogleService.Callback")
	defer span.End()

	if strings.TrimSpace(state) == "" || strings.TrimSpace(code) == "" {
		return nil, domainoauth.ErrInvalidRequest
	}

	stored, err := s.states.GetState(ctx, state)
	if err != nil {
		if errors.Is(err, domainoauth.ErrInvalidState) {
			return nil, err
		}
		span.RecordError(err)
		return nil, err
	}
	// One shot: a replayed state must not redeem a second code.
	if err := s.states.DeleteState(ctx, state); err != nil {
		span.RecordError(err)
		return nil, err
	}

	token, err := s.provider.Exchange(ctx, code, stored.CodeVerifier, stored.RedirectURI)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	info, err := s.provider.FetchUserInfo(ctx, token.AccessToken)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	return s.loginOrRegister(ctx, info)
}

// LoginWithCode serves single-page clients that ran the authorization
// redirect themselves and hold their own PKCE verifier.
func (s *GoogleService) LoginWithCode(ctx context.Context, code, codeVerifier string) (*service.LoginResult, error) {
	ctx, span := s.startSpan(ctx, "GoogleService.LoginWithCode")
	defer span.End()

	if strings.TrimSpace(code) == "" {
		return nil, domainoauth.ErrInvalidRequest
	}

	token, err := s.provider.Exchange(ctx, code, codeVerifier, s.cfg.RedirectURI)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	info, err := s.provider.FetchUserInfo(ctx, token.AccessToken)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return s.loginOrRegister(ctx, info)
}

func (s *GoogleService) loginOrRegister(ctx context.Context, info domainoauth.UserInfo) (*service.LoginResult, error) {
	email := strings.ToLower(strings.TrimSpace(info.Email))

	user, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil && user.Verified:
		s.audit("oauth.login", "user_id", user.ID)
		return s.auth.IssueSession(ctx, user)
	case err == nil:
		// The account predates this sign-in and was never verified.
		// Keep the email-confirmation gate even when the provider
		// vouches for the address.
		if err := s.auth.ResendVerification(ctx, user); err != nil {
			return nil, err
		}
		return nil, service.ErrEmailNotVerified
	case !errors.Is(err, pgx.ErrNoRows):
		return nil, err
	}

	newUser := domain.User{
		ID:        s.snowflake.Generate().Int64(),
		Email:     email,
		FirstName: firstName(info),
		LastName:  info.FamilyName,
		UserType:  "user",
	}
	// Password login stays possible only through a reset; the stored
	// hash is an unguessable placeholder.
	placeholder, err := randomValue()
	if err != nil {
		return nil, err
	}
	if newUser.PasswordHash, err = pw.Hash(placeholder); err != nil {
		return nil, fmt.Errorf("hash placeholder password: %w", err)
	}

	if !info.EmailVerified {
		created, err := s.users.Create(ctx, newUser)
		if err != nil {
			return nil, fmt.Errorf("create user: %w", err)
		}
		if err := s.auth.ResendVerification(ctx, created); err != nil {
			return nil, err
		}
		s.audit("oauth.registered.unverified", "user_id", created.ID)
		return nil, service.ErrEmailNotVerified
	}

	created, err := s.provisioner.CreateProvisionedUser(context.WithoutCancel(ctx), newUser)
	if err != nil {
		return nil, fmt.Errorf("provision user: %w", err)
	}
	s.audit("oauth.registered", "user_id", created.ID)
	return s.auth.IssueSession(ctx, created)
}

func firstName(info domainoauth.UserInfo) string {
	if info.GivenName != "" {
		return info.GivenName
	}
	return info.Name
}

func randomValue() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate random value: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func (s *GoogleService) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	if s == nil || s.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return s.tracer.Start(ctx, name)
}

func (s *GoogleService) audit(event string, attrs ...any) {
	if s.logger == nil {
		return
	}
	fields := make([]zap.Field, 0, len(attrs)/2+2)
	fields = append(fields, zap.String("event", event), zap.Time("timestamp", time.Now().UTC()))
	for i := 0; i+1 < len(attrs); i += 2 {
		key, ok := attrs[i].(string)
		if !ok {
			continue
		}
		fields = append(fields, zap.Any(key, attrs[i+1]))
	}
	s.logger.Info("audit", fields...)
}
