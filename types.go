package gate

import (
	"context"
	"time"

	"github.com/afromart/gate/form"
	"github.com/afromart/gate/mail"
)

// User is a stored customer account.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	Active       bool
	Staff        bool
	DateJoined   time.Time
	LastLogin    *time.Time
}

// NewUser is the row a UserStore inserts.
type NewUser struct {
	Username     string
	Email        string
	PasswordHash string
	Active       bool
	Staff        bool
}

// UserStore is the credential store. Missing rows are reported as
// [ErrUserNotFound]; a username collision on insert as [ErrUsernameTaken].
type UserStore interface {
	CreateUser(ctx context.Context, u NewUser) (int64, error)
	GetUserByID(ctx context.Context, id int64) (User, error)
	GetUserByUsername(ctx context.Context, username string) (User, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	// FindActiveUserByEmail returns the first active account holding email.
	FindActiveUserByEmail(ctx context.Context, email string) (User, error)
	Activate(ctx context.Context, id int64) error
	SetPasswordHash(ctx context.Context, id int64, hash string) error
	TouchLastLogin(ctx context.Context, id int64, at time.Time) error
	Ping(ctx context.Context) error
}

// Notifier queues an email for background delivery. Submit must not block;
// it returns false when the message was not accepted.
type Notifier interface {
	Submit(ctx context.Context, msg mail.Message) bool
}

// Identity is the signed-in requester resolved from a session cookie.
type Identity struct {
	UserID    int64
	SessionID string
	Staff     bool
}

// SignupRequest is the submitted registration form. BaseURL is the scheme
// and host links are built on when Mail.BaseURL is unset.
type SignupRequest struct {
	Username string
	Email    string
	Password string
	BaseURL  string
}

// SignupResult carries field errors, or the pending account on success.
type SignupResult struct {
	Errors     form.Errors
	UserID     int64
	MailQueued bool
}

// VerifyStatus is the outcome of following a verification link.
type VerifyStatus int

const (
	// VerifyNotFound means the link is unknown, expired or orphaned.
	VerifyNotFound VerifyStatus = iota
	// VerifyAlreadyVerified means the account was already active.
	VerifyAlreadyVerified
	// VerifyVerified means this visit activated the account.
	VerifyVerified
)

func (s VerifyStatus) String() string {
	switch s {
	case VerifyAlreadyVerified:
		return "already_verified"
	case VerifyVerified:
		return "verified"
	default:
		return "not_found"
	}
}

// SignInResult carries field errors, or the new session on success.
type SignInResult struct {
	Errors    form.Errors
	Token     string
	UserID    int64
	Staff     bool
	ExpiresAt time.Time
}

// ResetRequest is the submitted "forgot password" form.
type ResetRequest struct {
	Email   string
	BaseURL string
}

// ResetRequestResult carries field errors, or confirms a link was issued.
type ResetRequestResult struct {
	Errors     form.Errors
	MailQueued bool
}

// ResetAction is the submitted new-password form for a reset link.
type ResetAction struct {
	TokenHash string
	Password1 string
	Password2 string
}

// ResetOutcome says which page follows a reset action.
type ResetOutcome int

const (
	// ResetShowForm re-renders the form, with errors when present.
	ResetShowForm ResetOutcome = iota
	// ResetLinkExpired renders the expired or invalid link page.
	ResetLinkExpired
	// ResetDone renders the success page after an anonymous reset.
	ResetDone
	// ResetSignedOut redirects a signed-in requester to sign in again.
	ResetSignedOut
)

// ResetResult is the outcome of a reset action.
type ResetResult struct {
	Outcome ResetOutcome
	Errors  form.Errors
}

// ProvisionRequest creates an account that is active from the start.
type ProvisionRequest struct {
	Username string
	Email    string
	Password string
	Staff    bool
}
