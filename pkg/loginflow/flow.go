package loginflow

import (
	"context"
	"sort"

	"github.com/tendant/azure-login/pkg/errors"
	"github.com/tendant/azure-login/pkg/user"
)

// LoginFlowStep represents a single step in the callback flow
type LoginFlowStep interface {
	// Name returns the unique name of this step
	Name() string

	// Order returns the execution order (lower numbers execute first)
	Order() int

	// Stage returns the pipeline stage reported while this step runs
	Stage() Stage

	// Execute performs the step's logic
	Execute(ctx context.Context, flowContext *FlowContext) (*StepResult, error)
}

// FlowContext carries state between steps
type FlowContext struct {
	Request Request
	Result  *Result

	// Claims holds the verified token claims until they are projected into TokenClaims
	Claims      map[string]interface{}
	TokenClaims user.TokenClaims
	User        *user.User

	Services *ServiceDependencies
}

// StepResult represents the result of executing a step
type StepResult struct {
	// Continue indicates whether the flow should continue to the next step
	Continue bool

	// Error stops the flow and becomes the failure reported in Result
	Error *errors.Error
}

// StepRegistry manages and orders flow steps
type StepRegistry struct {
	steps []LoginFlowStep
}

// NewStepRegistry creates a new step registry
func NewStepRegistry() *StepRegistry {
	return &StepRegistry{
		steps: make([]LoginFlowStep, 0),
	}
}

// AddStep adds a step to the registry
func (r *StepRegistry) AddStep(step LoginFlowStep) *StepRegistry {
	r.steps = append(r.steps, step)
	return r
}

// GetOrderedSteps returns steps sorted by their order
func (r *StepRegistry) GetOrderedSteps() []LoginFlowStep {
	orderedSteps := make([]LoginFlowStep, len(r.steps))
	copy(orderedSteps, r.steps)

	sort.SliceStable(orderedSteps, func(i, j int) bool {
		return orderedSteps[i].Order() < orderedSteps[j].Order()
	})

	return orderedSteps
}

// FlowExecutor runs steps in order and stops at the first failure
type FlowExecutor struct {
	steps    []LoginFlowStep
	services *ServiceDependencies
}

// NewFlowExecutor creates a new flow executor
func NewFlowExecutor(registry *StepRegistry, services *ServiceDependencies) *FlowExecutor {
	return &FlowExecutor{
		steps:    registry.GetOrderedSteps(),
		services: services,
	}
}

// Execute runs the complete flow. Every failure, including unexpected step
// errors, is recovered into the returned Result.
func (e *FlowExecutor) Execute(ctx context.Context, request Request) Result {
	flowContext := &FlowContext{
		Request:  request,
		Result:   &Result{Stage: StageValidating},
		Services: e.services,
	}

	for _, step := range e.steps {
		flowContext.Result.Stage = step.Stage()

		stepResult, err := step.Execute(ctx, flowContext)
		if err != nil {
			return fail(flowContext.Result, step.Name(), errors.From(err))
		}
		if stepResult.Error != nil {
			return fail(flowContext.Result, step.Name(), stepResult.Error)
		}
		if !stepResult.Continue {
			break
		}
	}

	return *flowContext.Result
}

func fail(result *Result, stepName string, err *errors.Error) Result {
	result.FailedStage = result.Stage
	result.FailedStep = stepName
	result.Stage = StageFailed
	result.Success = false
	result.Err = err
	return *result
}

// FlowBuilder provides a fluent interface for building flows
type FlowBuilder struct {
	registry *StepRegistry
}

// NewFlowBuilder creates a new flow builder
func NewFlowBuilder() *FlowBuilder {
	return &FlowBuilder{
		registry: NewStepRegistry(),
	}
}

// AddStep adds a step to the flow
func (b *FlowBuilder) AddStep(step LoginFlowStep) *FlowBuilder {
	b.registry.AddStep(step)
	return b
}

// Build creates a flow executor with the configured steps
func (b *FlowBuilder) Build(services *ServiceDependencies) *FlowExecutor {
	return NewFlowExecutor(b.registry, services)
}

// NewCallbackFlow builds the fixed ID token callback flow
func NewCallbackFlow(services *ServiceDependencies) *FlowExecutor {
	return NewFlowBuilder().
		AddStep(NewCallbackValidationStep()).
		AddStep(NewTokenVerificationStep()).
		AddStep(NewClaimsResolutionStep()).
		AddStep(NewSessionEstablishmentStep()).
		Build(services)
}

// Predefined step orders
const (
	OrderCallbackValidation   = 100
	OrderTokenVerification    = 200
	OrderClaimsResolution     = 300
	OrderSessionEstablishment = 400
)
