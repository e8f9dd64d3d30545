package loginflow

import (
	"context"
	"crypto/subtle"
	"log/slog"

	"github.com/tendant/azure-login/pkg/errors"
	"github.com/tendant/azure-login/pkg/user"
)

// CallbackValidationStep checks the callback before any token parsing
type CallbackValidationStep struct{}

func NewCallbackValidationStep() *CallbackValidationStep {
	return &CallbackValidationStep{}
}

func (s *CallbackValidationStep) Name() string {
	return "callback_validation"
}

func (s *CallbackValidationStep) Order() int {
	return OrderCallbackValidation
}

func (s *CallbackValidationStep) Stage() Stage {
	return StageValidating
}

func (s *CallbackValidationStep) Execute(ctx context.Context, flowContext *FlowContext) (*StepResult, error) {
	req := flowContext.Request

	if expected := flowContext.Services.ExpectedReferer; expected != "" && req.Referer != expected {
		return &StepResult{
			Error: errors.New(errors.ErrCodeRefererInvalid, "callback did not come from the identity provider").
				WithDetail("referer", req.Referer),
		}, nil
	}

	if req.Session == nil {
		return &StepResult{
			Error: errors.New(errors.ErrCodeMissingRequired, "no session available").WithDetail("field", "session"),
		}, nil
	}

	if req.StoredState == "" {
		return &StepResult{
			Error: errors.New(errors.ErrCodeInvalidState, "no stored state for this browser"),
		}, nil
	}

	if req.Error != "" {
		return &StepResult{
			Error: errors.New(errors.ErrCodeAuthenticationDenied, "identity provider returned an error").
				WithDetail("error", req.Error).
				WithDetail("error_description", req.ErrorDescription),
		}, nil
	}

	if req.IDToken == "" {
		return &StepResult{
			Error: errors.New(errors.ErrCodeMissingRequired, "id_token is required").WithDetail("field", "id_token"),
		}, nil
	}
	if req.State == "" {
		return &StepResult{
			Error: errors.New(errors.ErrCodeMissingRequired, "state is required").WithDetail("field", "state"),
		}, nil
	}

	if subtle.ConstantTimeCompare([]byte(req.State), []byte(req.StoredState)) != 1 {
		return &StepResult{
			Error: errors.New(errors.ErrCodeInvalidState, "state does not match"),
		}, nil
	}

	return &StepResult{Continue: true}, nil
}

// TokenVerificationStep verifies the ID token signature and claims
type TokenVerificationStep struct{}

func NewTokenVerificationStep() *TokenVerificationStep {
	return &TokenVerificationStep{}
}

func (s *TokenVerificationStep) Name() string {
	return "token_verification"
}

func (s *TokenVerificationStep) Order() int {
	return OrderTokenVerification
}

func (s *TokenVerificationStep) Stage() Stage {
	return StageTokenVerification
}

func (s *TokenVerificationStep) Execute(ctx context.Context, flowContext *FlowContext) (*StepResult, error) {
	claims, err := flowContext.Services.Verifier.Verify(ctx, flowContext.Request.IDToken)
	if err != nil {
		return &StepResult{Error: errors.From(err)}, nil
	}
	flowContext.Claims = claims
	return &StepResult{Continue: true}, nil
}

// ClaimsResolutionStep projects the claims and finds or creates the user
type ClaimsResolutionStep struct{}

func NewClaimsResolutionStep() *ClaimsResolutionStep {
	return &ClaimsResolutionStep{}
}

func (s *ClaimsResolutionStep) Name() string {
	return "claims_resolution"
}

func (s *ClaimsResolutionStep) Order() int {
	return OrderClaimsResolution
}

func (s *ClaimsResolutionStep) Stage() Stage {
	return StageClaimsResolution
}

func (s *ClaimsResolutionStep) Execute(ctx context.Context, flowContext *FlowContext) (*StepResult, error) {
	tokenClaims, err := user.ParseTokenClaims(flowContext.Claims)
	flowContext.Claims = nil
	if err != nil {
		return &StepResult{Error: errors.From(err)}, nil
	}
	flowContext.TokenClaims = tokenClaims

	u, err := flowContext.Services.Users.Resolve(ctx, tokenClaims)
	if err != nil {
		return &StepResult{Error: errors.From(err)}, nil
	}
	flowContext.User = u
	return &StepResult{Continue: true}, nil
}

// SessionEstablishmentStep writes the session for the resolved user
type SessionEstablishmentStep struct{}

func NewSessionEstablishmentStep() *SessionEstablishmentStep {
	return &SessionEstablishmentStep{}
}

func (s *SessionEstablishmentStep) Name() string {
	return "session_establishment"
}

func (s *SessionEstablishmentStep) Order() int {
	return OrderSessionEstablishment
}

func (s *SessionEstablishmentStep) Stage() Stage {
	return StageSessionEstablishment
}

func (s *SessionEstablishmentStep) Execute(ctx context.Context, flowContext *FlowContext) (*StepResult, error) {
	services := flowContext.Services
	expiresAt := services.Now().Add(services.SessionDuration)

	if err := flowContext.Request.Session.Write(flowContext.User.ID, expiresAt); err != nil {
		slog.Error("Failed writing session", "user_id", flowContext.User.ID, "err", err)
		return &StepResult{Error: errors.InternalWrap(err, "failed to establish session")}, nil
	}

	result := flowContext.Result
	result.Success = true
	result.Stage = StageSuccess
	result.User = flowContext.User
	result.ExpiresAt = expiresAt
	return &StepResult{Continue: false}, nil
}
