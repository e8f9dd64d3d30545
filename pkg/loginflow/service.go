package loginflow

import (
	"context"
	"log/slog"
	"time"

	"github.com/tendant/azure-login/pkg/metrics"
)

const DefaultSessionDuration = 8 * time.Hour

// LoginFlowService runs the callback flow and reports its outcome
type LoginFlowService struct {
	executor *FlowExecutor
}

// NewLoginFlowService creates a service around the standard callback flow.
// Zero SessionDuration and nil Now are replaced with defaults.
func NewLoginFlowService(services ServiceDependencies) *LoginFlowService {
	if services.SessionDuration <= 0 {
		services.SessionDuration = DefaultSessionDuration
	}
	if services.Now == nil {
		services.Now = time.Now
	}
	return &LoginFlowService{
		executor: NewCallbackFlow(&services),
	}
}

// ProcessCallback authenticates one callback. Failure details are logged here
// and stay out of anything shown to the browser.
func (s *LoginFlowService) ProcessCallback(ctx context.Context, req Request) Result {
	result := s.executor.Execute(ctx, req)

	if !result.Success {
		slog.Warn("Login callback failed",
			"stage", result.FailedStage,
			"step", result.FailedStep,
			"code", result.Err.Code,
			"message", result.Err.Message,
			"details", result.Err.Details,
			"err", result.Err.Err,
		)
		metrics.ObserveLogin(string(result.Err.Code))
		return result
	}

	slog.Info("Login callback succeeded", "user_id", result.User.ID, "expires_at", result.ExpiresAt)
	metrics.ObserveLogin("")
	return result
}
