// Package mail delivers transactional email through SendGrid dynamic
// templates, with a log-only fallback for local development.
package mail

// Template identifies a transactional email template.
type Template string

const (
	// TemplateConfirmEmail carries the account verification link.
	TemplateConfirmEmail Template = "confirmEmail"
	// TemplateResetPassword carries the password reset link.
	TemplateResetPassword Template = "resetPassword"
)

// SendGrid dynamic template ids registered for this service.
var templateIDs = map[Template]string{
	TemplateConfirmEmail:  "d-29c40aa6582d40df85535c6b59278f14",
	TemplateResetPassword: "d-29c40aa6582d40df85535c6b59278f14",
}

// TemplateID resolves the SendGrid dynamic template id for a template.
func TemplateID(t Template) string {
	return templateIDs[t]
}
