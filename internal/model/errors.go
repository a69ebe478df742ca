package model

import "errors"

var (
	// Transport
	ErrNetwork = errors.New("Unable to connect to the server. Please check your connection and try again.")

	// Session lifecycle
	ErrSessionExpired   = errors.New("Your session has expired. Please log in again.")
	ErrNotAuthenticated = errors.New("You are not logged in.")
	ErrStaleSession     = errors.New("response belongs to a previous session")

	// Login gating
	ErrInvalidCredentials   = errors.New("Invalid email or password.")
	ErrAccountDeactivated   = errors.New("Your account has been deactivated. Please contact support for assistance.")
	ErrTutorPendingApproval = errors.New("Your tutor account is pending approval. You will be able to log in once an administrator approves it.")
	ErrEmailNotVerified     = errors.New("Please verify your email address before logging in. Check your inbox for the verification link.")

	// Local input
	ErrInvalidInput = errors.New("invalid input")
)
