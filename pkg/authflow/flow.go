package authflow

import (
	"context"
	"sort"
	"time"

	"github.com/voyatra/auth-service/pkg/account"
	"github.com/voyatra/auth-service/pkg/errs"
	"github.com/voyatra/auth-service/pkg/loginattempt"
	"github.com/voyatra/auth-service/pkg/otp"
	"github.com/voyatra/auth-service/pkg/password"
	"github.com/voyatra/auth-service/pkg/sessions"
)

// Step is a single stage of the login state machine.
type Step interface {
	// Name returns the unique name of this step.
	Name() string

	// Order returns the execution order (lower numbers execute first).
	Order() int

	// Execute performs the step's logic.
	Execute(ctx context.Context, flowContext *FlowContext) (*StepResult, error)

	// ShouldSkip determines if this step should be skipped based on the
	// current context.
	ShouldSkip(ctx context.Context, flowContext *FlowContext) bool
}

// FlowContext carries state between steps.
type FlowContext struct {
	// Input data
	Request LoginRequest

	// Current state
	Result   *LoginResult
	Identity account.Identity

	// Step-specific data
	StepData map[string]interface{}

	// Services (injected by the flow executor)
	Services *ServiceDependencies
}

// StepResult is the outcome of executing one step.
type StepResult struct {
	// Continue indicates whether the flow should proceed to the next
	// step.
	Continue bool

	// EarlyReturn indicates the flow should return immediately with the
	// current result. Used for non-error terminals like a pending 2FA
	// challenge.
	EarlyReturn bool

	// Error terminates the flow with a failure.
	Error *errs.Error

	// Data is merged into FlowContext.StepData.
	Data map[string]interface{}
}

// ServiceDependencies contains every collaborator the steps need.
type ServiceDependencies struct {
	Store         account.Store
	Attempts      *loginattempt.Service
	OTP           *otp.Service
	Sessions      *sessions.Service
	PolicyChecker password.PolicyChecker

	// MaxFailedAttempts and LockDuration drive the lockout policy.
	MaxFailedAttempts int32
	LockDuration      time.Duration
}

// StepRegistry holds and orders the flow's steps.
type StepRegistry struct {
	steps []Step
}

// NewStepRegistry creates an empty step registry.
func NewStepRegistry() *StepRegistry {
	return &StepRegistry{steps: make([]Step, 0)}
}

// AddStep adds a step to the registry.
func (r *StepRegistry) AddStep(step Step) *StepRegistry {
	r.steps = append(r.steps, step)
	return r
}

// GetOrderedSteps returns the steps sorted by their order.
func (r *StepRegistry) GetOrderedSteps() []Step {
	ordered := make([]Step, len(r.steps))
	copy(ordered, r.steps)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].Order() < ordered[j].Order()
	})
	return ordered
}

// FlowExecutor runs the registered steps in order.
type FlowExecutor struct {
	registry *StepRegistry
	services *ServiceDependencies
}

// NewFlowExecutor creates a flow executor.
func NewFlowExecutor(registry *StepRegistry, services *ServiceDependencies) *FlowExecutor {
	return &FlowExecutor{registry: registry, services: services}
}

// Execute runs the complete flow for one login request.
func (e *FlowExecutor) Execute(ctx context.Context, request LoginRequest) LoginResult {
	flowContext := &FlowContext{
		Request:  request,
		Result:   &LoginResult{},
		StepData: make(map[string]interface{}),
		Services: e.services,
	}

	for _, step := range e.registry.GetOrderedSteps() {
		if step.ShouldSkip(ctx, flowContext) {
			continue
		}

		stepResult, err := step.Execute(ctx, flowContext)
		if err != nil {
			flowContext.Result.Err = errs.Internal(err)
			return *flowContext.Result
		}

		if stepResult.Error != nil {
			flowContext.Result.Err = stepResult.Error
			return *flowContext.Result
		}

		for key, value := range stepResult.Data {
			flowContext.StepData[key] = value
		}

		if stepResult.EarlyReturn {
			return *flowContext.Result
		}
		if !stepResult.Continue {
			break
		}
	}

	return *flowContext.Result
}

// Step orders of the login flow.
const (
	OrderCredentialCheck = 100
	OrderLockCheck       = 200
	OrderPasswordCheck   = 300
	OrderTwoFactorCheck  = 400
	OrderSuspicionCheck  = 500
	OrderSessionIssue    = 600
)
