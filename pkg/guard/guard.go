// Package guard decides whether a protected view renders or redirects. The
// decision is synchronous: the session read is local storage access, never a
// network call, so there is no loading state.
package guard

import (
	"net/url"

	"shopfront/pkg/domain"
	"shopfront/pkg/session"
)

// Action tags a Decision.
type Action int

const (
	// Render means the guarded view may be shown.
	Render Action = iota
	// Redirect means the caller must navigate to Decision.Target instead.
	Redirect
)

// Decision is the guard's verdict for one requested route.
type Decision struct {
	Action Action
	Target string
}

// Sessions is the slice of the session store a guard needs.
type Sessions interface {
	Current() (session.Session, bool)
}

// Guard gates a route behind a role predicate.
type Guard struct {
	sessions   Sessions
	signinPath string
	homePath   string
	adminOnly  bool
}

// Private admits any authenticated user.
func Private(sessions Sessions, signinPath string) *Guard {
	return &Guard{sessions: sessions, signinPath: signinPath}
}

// AdminOnly admits only authenticated admins. A signed-in non-admin is sent
// home, not to sign-in: the two destinations are distinct on purpose.
func AdminOnly(sessions Sessions, signinPath, homePath string) *Guard {
	return &Guard{sessions: sessions, signinPath: signinPath, homePath: homePath, adminOnly: true}
}

// Decide checks the current session against the guard's requirement.
// Unauthenticated requests redirect to sign-in carrying the requested path so
// the sign-in flow can return the user there. Authenticated requests that
// fail the role requirement redirect to home.
func (g *Guard) Decide(requestedPath string) Decision {
	sess, ok := g.sessions.Current()
	if !ok {
		return Decision{Action: Redirect, Target: signinTarget(g.signinPath, requestedPath)}
	}
	if g.adminOnly && sess.User.Role != domain.RoleAdmin {
		return Decision{Action: Redirect, Target: g.homePath}
	}
	return Decision{Action: Render}
}

// signinTarget appends the intended destination as a next parameter. The
// sign-in view may ignore it; losing the destination is degraded behavior,
// not a failure.
func signinTarget(signinPath, requestedPath string) string {
	if requestedPath == "" {
		return signinPath
	}
	return signinPath + "?next=" + url.QueryEscape(requestedPath)
}
