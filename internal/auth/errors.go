package auth

import (
	"errors"
	"fmt"

	"github.com/desertthunder/tunemirror/internal/shared"
)

// Reason classifies a failed refresh.
type Reason int

const (
	// MissingRefreshToken means there is nothing to refresh with; the user must log in again.
	MissingRefreshToken Reason = iota + 1
	// CredentialRevoked means the authorization server rejected the grant and the store was cleared.
	CredentialRevoked
	// RefreshFailed is any other failure; the session is kept and the caller may retry.
	RefreshFailed
)

func (r Reason) String() string {
	switch r {
	case MissingRefreshToken:
		return "missing refresh token"
	case CredentialRevoked:
		return "credential revoked"
	case RefreshFailed:
		return "refresh failed"
	default:
		return fmt.Sprintf("reason(%d)", int(r))
	}
}

func (r Reason) sentinel() error {
	switch r {
	case MissingRefreshToken:
		return shared.ErrNoRefreshToken
	case CredentialRevoked:
		return shared.ErrCredentialRevoked
	default:
		return shared.ErrRefreshFailed
	}
}

// AuthError reports why a credential could not be made usable.
type AuthError struct {
	Reason Reason
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err == nil {
		return e.Reason.sentinel().Error()
	}
	return fmt.Sprintf("%v: %v", e.Reason.sentinel(), e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// Is matches the shared sentinel for the error's reason.
func (e *AuthError) Is(target error) bool {
	return target == e.Reason.sentinel()
}

// RequiresLogin reports whether the caller must restart the full authorization flow.
func (e *AuthError) RequiresLogin() bool {
	return e.Reason == MissingRefreshToken || e.Reason == CredentialRevoked
}

// RequiresLogin reports whether err demands a fresh login.
func RequiresLogin(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae) && ae.RequiresLogin()
}
