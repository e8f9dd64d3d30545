package loginflow

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/azure-login/pkg/errors"
	"github.com/tendant/azure-login/pkg/user"
)

// Stage is a position in the callback pipeline
type Stage string

const (
	StageValidating           Stage = "validating"
	StageTokenVerification    Stage = "token_verification"
	StageClaimsResolution     Stage = "claims_resolution"
	StageSessionEstablishment Stage = "session_establishment"
	StageSuccess              Stage = "success"
	StageFailed               Stage = "failed"
)

// SessionWriter stores the established session for the current response
type SessionWriter interface {
	Write(userID uuid.UUID, expiresAt time.Time) error
}

// TokenVerifier validates a raw ID token and returns its claims
type TokenVerifier interface {
	Verify(ctx context.Context, rawIDToken string) (map[string]interface{}, error)
}

// UserResolver maps verified claims to a local user
type UserResolver interface {
	Resolve(ctx context.Context, claims user.TokenClaims) (*user.User, error)
}

// ServiceDependencies holds the collaborators used by the steps
type ServiceDependencies struct {
	Verifier TokenVerifier
	Users    UserResolver

	// ExpectedReferer is compared with the callback Referer header when set
	ExpectedReferer string
	SessionDuration time.Duration
	Now             func() time.Time
}

// Request is the callback input: form fields plus transport state
type Request struct {
	Session     SessionWriter
	StoredState string

	IDToken          string
	State            string
	Error            string
	ErrorDescription string
	Referer          string
}

// Result is the outcome of one callback
type Result struct {
	Success     bool
	Stage       Stage
	FailedStage Stage
	// FailedStep names the step that stopped the flow
	FailedStep string
	User        *user.User
	ExpiresAt   time.Time
	Err         *errors.Error
}
