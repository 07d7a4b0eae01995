// Package domain defines domain-level errors for the account feature.
package domain

import "errors"

// Domain errors for account and ledger operations.
// Handlers map each of them to a short public message; none of them is fatal.
var (
	// ErrDuplicateUser is returned by signup when the email is already registered.
	ErrDuplicateUser = errors.New("user with this email already exists")

	// ErrInvalidCredentials is returned by login for an unknown email or a wrong password.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrNotAuthenticated indicates that the session is absent or no longer resolves to a user.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrUserNotFound indicates that no user has the given id.
	ErrUserNotFound = errors.New("user not found")

	// ErrPlanNotFound indicates that no credit plan has the given id.
	ErrPlanNotFound = errors.New("plan not found")

	// ErrForbidden indicates that the current user is not an administrator.
	ErrForbidden = errors.New("admin privileges required")

	// ErrInvalidPlan indicates that a plan failed validation.
	ErrInvalidPlan = errors.New("invalid plan")

	// ErrInvalidAmount indicates that a credit change would leave a negative balance.
	ErrInvalidAmount = errors.New("credit balance cannot be negative")

	// ErrWeakPassword indicates that the password does not meet the minimum length.
	ErrWeakPassword = errors.New("password is too short")
)
