package domain

import "time"

// VerificationKind distinguishes the flows a verification token can redeem.
type VerificationKind string

const (
	KindEmailConfirmation VerificationKind = "email_confirmation"
	KindPasswordReset     VerificationKind = "password_reset"
)

// VerificationRequest is a single-use random credential binding a user to a
// pending email-confirmation or password-reset flow.
type VerificationRequest struct {
	ID        int64
	UserID    int64
	Token     string
	Kind      VerificationKind
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the request can no longer be redeemed.
func (r VerificationRequest) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}
