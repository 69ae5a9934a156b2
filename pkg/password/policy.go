package password

import (
	"fmt"
	"regexp"
)

// Strength labels derived from the policy score.
const (
	StrengthWeak       = "weak"
	StrengthMedium     = "medium"
	StrengthStrong     = "strong"
	StrengthVeryStrong = "very_strong"
)

// Policy defines the requirements for password complexity.
type Policy struct {
	MinLength          int
	RequireUppercase   bool
	RequireLowercase   bool
	RequireDigit       bool
	RequireSpecialChar bool
}

// Evaluation is the result of checking a password against the policy.
// Errors holds one entry per violated rule. Strength is scored
// independently of validity.
type Evaluation struct {
	IsValid  bool     `json:"is_valid"`
	Errors   []string `json:"errors,omitempty"`
	Strength string   `json:"strength"`
}

// PolicyChecker evaluates passwords against a complexity policy.
type PolicyChecker interface {
	Evaluate(password string) Evaluation
	GetPolicy() *Policy
}

var (
	upperRe   = regexp.MustCompile(`[A-Z]`)
	lowerRe   = regexp.MustCompile(`[a-z]`)
	digitRe   = regexp.MustCompile(`[0-9]`)
	specialRe = regexp.MustCompile(`[^a-zA-Z0-9]`)
)

// DefaultPolicyChecker implements PolicyChecker. It is stateless and
// performs no I/O.
type DefaultPolicyChecker struct {
	policy *Policy
}

// NewDefaultPolicyChecker creates a policy checker, falling back to
// DefaultPolicy when policy is nil.
func NewDefaultPolicyChecker(policy *Policy) *DefaultPolicyChecker {
	if policy == nil {
		policy = DefaultPolicy()
	}
	return &DefaultPolicyChecker{policy: policy}
}

// Evaluate checks the password against every rule and computes the
// strength label from the point score.
func (pc *DefaultPolicyChecker) Evaluate(password string) Evaluation {
	var errs []string

	if len(password) < pc.policy.MinLength {
		errs = append(errs, fmt.Sprintf("password must be at least %d characters long", pc.policy.MinLength))
	}
	if pc.policy.RequireUppercase && !upperRe.MatchString(password) {
		errs = append(errs, "password must contain at least one uppercase letter")
	}
	if pc.policy.RequireLowercase && !lowerRe.MatchString(password) {
		errs = append(errs, "password must contain at least one lowercase letter")
	}
	if pc.policy.RequireDigit && !digitRe.MatchString(password) {
		errs = append(errs, "password must contain at least one digit")
	}
	if pc.policy.RequireSpecialChar && !specialRe.MatchString(password) {
		errs = append(errs, "password must contain at least one special character")
	}

	return Evaluation{
		IsValid:  len(errs) == 0,
		Errors:   errs,
		Strength: strengthLabel(score(password)),
	}
}

// GetPolicy returns the password policy.
func (pc *DefaultPolicyChecker) GetPolicy() *Policy {
	return pc.policy
}

// score awards one point per satisfied characteristic: length >= 8,
// length >= 12, mixed case, digit, special character.
func score(password string) int {
	points := 0
	if len(password) >= 8 {
		points++
	}
	if len(password) >= 12 {
		points++
	}
	if upperRe.MatchString(password) && lowerRe.MatchString(password) {
		points++
	}
	if digitRe.MatchString(password) {
		points++
	}
	if specialRe.MatchString(password) {
		points++
	}
	return points
}

func strengthLabel(points int) string {
	switch {
	case points <= 2:
		return StrengthWeak
	case points == 3:
		return StrengthMedium
	case points == 4:
		return StrengthStrong
	default:
		return StrengthVeryStrong
	}
}

// DefaultPolicy returns the policy enforced at registration and
// password change.
func DefaultPolicy() *Policy {
	return &Policy{
		MinLength:          8,
		RequireUppercase:   true,
		RequireLowercase:   true,
		RequireDigit:       true,
		RequireSpecialChar: true,
	}
}
