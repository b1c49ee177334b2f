package oauth

import "errors"

var (
	ErrInvalidRequest = errors.New("oauth: invalid request")
	ErrInvalidState   = errors.New("oauth: invalid or expired state")
	ErrTokenInvalid   = errors.New("oauth: provider token invalid")
)
