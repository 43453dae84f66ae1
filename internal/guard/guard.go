// Package guard decides whether a navigation may proceed.
//
// A Guard evaluates an ordered list of rules against a Target and the
// current authentication state. The first rule that matches wins. Evaluation
// is pure: nothing is remembered between navigations.
package guard

import "net/url"

// Route names redirects point at.
const (
	RedirectToLogin     = "Login"
	RedirectToDashboard = "Dashboard"
)

// Query parameters the guard inspects.
const (
	QueryAuthCode = "auth_code"
	QueryCode     = "code"
	QueryEmail    = "email"
	QueryToken    = "token"
)

// Meta is the per-route access metadata.
type Meta struct {
	RequiresAuth bool
	Guest        bool
}

// Target is a navigation intent.
type Target struct {
	Name  string
	Path  string
	Query url.Values
	Meta  Meta
}

// Action is the outcome of a guard evaluation.
type Action int

const (
	Allow Action = iota
	Redirect
)

func (a Action) String() string {
	if a == Redirect {
		return "redirect"
	}
	return "allow"
}

// Decision is what the guard tells the navigator to do. Route is set for
// redirects only.
type Decision struct {
	Action Action
	Route  string
}

// AllowDecision lets the navigation proceed.
func AllowDecision() Decision {
	return Decision{Action: Allow}
}

// RedirectDecision sends the navigation to the named route instead.
func RedirectDecision(route string) Decision {
	return Decision{Action: Redirect, Route: route}
}

// AuthState reports whether the user is signed in.
type AuthState interface {
	IsAuthenticated() bool
}

// AuthFunc adapts a function to AuthState.
type AuthFunc func() bool

// IsAuthenticated implements AuthState.
func (f AuthFunc) IsAuthenticated() bool {
	return f != nil && f()
}

// Rule returns a decision and true when it applies to the target.
type Rule func(Target, AuthState) (Decision, bool)

// Guard evaluates rules in order.
type Guard struct {
	rules []Rule
}

// New creates a Guard with the given rules. With no rules, DefaultRules is
// used.
func New(rules ...Rule) *Guard {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Guard{rules: rules}
}

// Evaluate returns the decision of the first matching rule, or Allow when no
// rule matches.
func (g *Guard) Evaluate(target Target, auth AuthState) Decision {
	if auth == nil {
		auth = AuthFunc(nil)
	}
	for _, rule := range g.rules {
		if d, ok := rule(target, auth); ok {
			return d
		}
	}
	return AllowDecision()
}

// DefaultRules returns the standard rule chain, highest priority first.
func DefaultRules() []Rule {
	return []Rule{
		OAuthCallback,
		InvitationLanding,
		RequireAuth,
		GuestOnly,
	}
}

// OAuthCallback allows any navigation carrying an auth_code so the login
// view can complete the code exchange.
func OAuthCallback(t Target, _ AuthState) (Decision, bool) {
	if has(t.Query, QueryAuthCode) {
		return AllowDecision(), true
	}
	return Decision{}, false
}

// InvitationLanding allows invitation links even for signed-in users.
func InvitationLanding(t Target, _ AuthState) (Decision, bool) {
	if IsInvitation(t) {
		return AllowDecision(), true
	}
	return Decision{}, false
}

// RequireAuth redirects signed-out users away from protected routes.
func RequireAuth(t Target, auth AuthState) (Decision, bool) {
	if t.Meta.RequiresAuth && !auth.IsAuthenticated() {
		return RedirectDecision(RedirectToLogin), true
	}
	return Decision{}, false
}

// GuestOnly redirects signed-in users away from guest routes.
func GuestOnly(t Target, auth AuthState) (Decision, bool) {
	if t.Meta.Guest && auth.IsAuthenticated() {
		return RedirectDecision(RedirectToDashboard), true
	}
	return Decision{}, false
}

// IsInvitation reports whether t is the invitation landing. A code alone is
// enough; email and token only count together.
func IsInvitation(t Target) bool {
	if t.Name == RouteInvite || t.Path == PathInvite {
		return true
	}
	if has(t.Query, QueryCode) {
		return true
	}
	return has(t.Query, QueryEmail) && has(t.Query, QueryToken)
}

func has(q url.Values, key string) bool {
	return q.Get(key) != ""
}
