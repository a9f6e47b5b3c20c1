package vk

import (
	"errors"
	"fmt"
)

// Challenge outcomes of the authorize operation are typed errors so the
// authentication state machine can match them exhaustively instead of
// branching on message text.

// ErrScopesDenied marks VK API error 15: the token does not grant access to
// the methods this run needs. Recoverable only by re-authorizing.
var ErrScopesDenied = errors.New("access denied: token does not grant the required scopes")

// ErrCaptchaFailed marks a captcha challenge the operator's answer did not clear
var ErrCaptchaFailed = errors.New("captcha answer rejected")

// ValidationError is raised when VK wants the operator to confirm the login
// attempt in a browser before the same credentials are accepted.
type ValidationError struct {
	RedirectURI string
	Description string
}

func (e *ValidationError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("validation required: %s", e.Description)
	}
	return "validation required"
}

// CaptchaError is raised when VK demands a captcha and no solver callback was
// supplied to answer it.
type CaptchaError struct {
	SID      string
	ImageURL string
}

func (e *CaptchaError) Error() string {
	return fmt.Sprintf("captcha required: %s", e.ImageURL)
}

// AuthFailedError covers rejected credentials and malformed grants
type AuthFailedError struct {
	Reason      string
	Description string
}

func (e *AuthFailedError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("authorization failed (%s): %s", e.Reason, e.Description)
	}
	return fmt.Sprintf("authorization failed (%s)", e.Reason)
}

// IsScopesDenied reports whether err is the scopes-denial challenge,
// regardless of how deeply it is wrapped
func IsScopesDenied(err error) bool {
	return errors.Is(err, ErrScopesDenied)
}
