package gorbac

import (
	"context"
	"time"
)

// Role is the coarse privilege level attached to every account.
type Role string

// Known roles, ordered by rank. Rank comparisons drive the privilege
// guards in the middleware package.
const (
	RoleUser    Role = "user"
	RoleAuditor Role = "auditor"
	RoleAdmin   Role = "admin"
	RoleRoot    Role = "root"
)

var roleRanks = map[Role]int{
	RoleUser:    1,
	RoleAuditor: 2,
	RoleAdmin:   3,
	RoleRoot:    4,
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	_, ok := roleRanks[r]
	return ok
}

// Rank returns the numeric privilege rank of r, or 0 for unknown roles.
func (r Role) Rank() int {
	return roleRanks[r]
}

// AtLeast reports whether r ranks at or above required. Unknown roles
// never satisfy any requirement.
func (r Role) AtLeast(required Role) bool {
	rr, tr := roleRanks[r], roleRanks[required]
	return rr > 0 && tr > 0 && rr >= tr
}

// HigherThan reports whether r strictly outranks other. Equal ranks do
// not qualify, so peers can never act on each other.
func (r Role) HigherThan(other Role) bool {
	rr, or := roleRanks[r], roleRanks[other]
	return rr > 0 && rr > or
}

// User is the account record exchanged with the CredentialStore.
// Secret-bearing fields are never serialized and are only populated
// when the matching Include bit was requested.
type User struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Picture   string `json:"picture,omitempty"`

	Role    Role `json:"role"`
	Active  bool `json:"-"`
	Blocked bool `json:"-"`

	EmailVerified bool `json:"emailVerified"`

	PasswordHash      string    `json:"-"`
	PasswordChangedAt time.Time `json:"-"`

	RefreshTokenHash string `json:"-"`

	HasTwoFactorAuth bool   `json:"hasTwoFactorAuth"`
	TwoFactorSecret  string `json:"-"`

	ResetPasswordDigest  string    `json:"-"`
	ResetPasswordExpires time.Time `json:"-"`
	VerifyEmailDigest    string    `json:"-"`

	CreatedAt time.Time `json:"createdAt"`
}

// Include selects which secret-bearing fields a CredentialStore lookup
// must populate. Default lookups return none of them.
type Include uint8

const (
	// IncludePassword populates PasswordHash.
	IncludePassword Include = 1 << iota
	// IncludeRefreshToken populates RefreshTokenHash.
	IncludeRefreshToken
	// IncludeTwoFactorSecret populates TwoFactorSecret.
	IncludeTwoFactorSecret
)

// Has reports whether bit is set in i.
func (i Include) Has(bit Include) bool { return i&bit != 0 }

// UserPatch describes a partial update applied by
// CredentialStore.Update. Nil fields are left untouched; a non-nil
// pointer to a zero value clears the field.
type UserPatch struct {
	FirstName *string
	LastName  *string
	Email     *string
	Picture   *string

	Role    *Role
	Active  *bool
	Blocked *bool

	EmailVerified *bool

	PasswordHash      *string
	PasswordChangedAt *time.Time

	RefreshTokenHash *string

	HasTwoFactorAuth *bool
	TwoFactorSecret  *string

	ResetPasswordDigest  *string
	ResetPasswordExpires *time.Time
	VerifyEmailDigest    *string
}

// CredentialStore is the durable account storage the host application
// provides. Lookups must exclude deactivated accounts and must report
// misses with ErrUserNotFound. Email uniqueness spans every account,
// active or not: both Create and an Update that patches Email must
// fail with ErrEmailTaken when the address already belongs to another
// account. RotateRefreshHash must be atomic, failing with
// ErrRefreshConflict when currentHash no longer matches.
type CredentialStore interface {
	FindByID(ctx context.Context, id string, include Include) (*User, error)
	FindByEmail(ctx context.Context, email string, include Include) (*User, error)
	FindByResetDigest(ctx context.Context, digest string, now time.Time) (*User, error)
	FindByVerifyDigest(ctx context.Context, digest string) (*User, error)
	Create(ctx context.Context, u *User) (*User, error)
	Update(ctx context.Context, id string, patch UserPatch) (*User, error)
	RotateRefreshHash(ctx context.Context, id, currentHash, nextHash string) error
}

// Message is an outbound mail handed to the Mailer.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer delivers engine-generated mail. Implementations decide the
// transport; errors propagate to the caller for flows where delivery
// is the point of the operation.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SignupRequest carries the fields accepted at account creation.
type SignupRequest struct {
	FirstName       string
	LastName        string
	Email           string
	Picture         string
	Password        string
	PasswordConfirm string
}

// TokenPair is a freshly minted access and refresh token.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// AuthResult is returned by every operation that establishes a
// session. User is sanitized of secret material.
type AuthResult struct {
	User      *User     `json:"user"`
	Tokens    TokenPair `json:"tokens"`
	SessionID string    `json:"-"`
}

// LoginResult is the outcome of the password step of login. When the
// account has a confirmed second factor, TwoFactorRequired is true,
// Auth is nil and the caller must follow up with TwoFactorLogin using
// UserID.
type LoginResult struct {
	TwoFactorRequired bool        `json:"twoFactorRequired"`
	UserID            string      `json:"userId,omitempty"`
	Auth              *AuthResult `json:"auth,omitempty"`
}

// TwoFactorEnrollment is the pending material returned when an account
// starts TOTP enrollment. The secret is not persisted to the account
// until the first code is confirmed.
type TwoFactorEnrollment struct {
	Secret          string `json:"secret"`
	ProvisioningURI string `json:"provisioningUri"`
}
