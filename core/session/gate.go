package session

import (
	"net/url"
	"path"
	"sort"
	"strings"
)

const (
	SignInPath    = "/sign-in"
	SignUpPath    = "/sign-up"
	VerifyPath    = "/verify"
	CallbackParam = "callbackUrl"
)

var (
	DefaultPublicPaths = []string{"/", SignInPath, SignUpPath, VerifyPath}
	DefaultOpenPaths   = []string{"/api/auth", "/health"}
	DefaultRules       = []Rule{
		{Prefix: "/admin", Roles: []Role{RoleAdmin}},
		{Prefix: "/schools", Roles: []Role{RoleSchool}},
		{Prefix: "/tutors", Roles: []Role{RoleTutor}},
		{Prefix: "/api/wizard", Roles: []Role{RoleTutor}},
		{Prefix: "/api/applications", Roles: []Role{RoleAdmin, RoleSchool, RoleTutor}},
		{Prefix: DefaultDestination},
	}
)

type DecisionKind int

const (
	Allow DecisionKind = iota
	Redirect
)

type Reason int

const (
	ReasonNone Reason = iota
	// ReasonUnauthenticated: no valid token on a protected path.
	ReasonUnauthenticated
	// ReasonAuthenticated: a valid token on a public path.
	ReasonAuthenticated
	// ReasonForbidden: the principal's role is not allowed on the path.
	ReasonForbidden
)

func (r Reason) String() string {
	switch r {
	case ReasonUnauthenticated:
		return "authentication required"
	case ReasonAuthenticated:
		return "already authenticated"
	case ReasonForbidden:
		return "permission denied"
	default:
		return ""
	}
}

// Decision is the outcome of a Gate evaluation.
type Decision struct {
	Kind     DecisionKind
	Location string
	Reason   Reason
}

func (d Decision) Allowed() bool { return d.Kind == Allow }

// Rule restricts every path under Prefix to Roles. A Rule without roles admits any principal.
type Rule struct {
	Prefix string
	Roles  []Role
}

func (r Rule) admits(p *Principal) bool {
	return len(r.Roles) == 0 || p.HasAnyRole(r.Roles...)
}

type Option func(g *Gate)

func WithPublicPaths(paths ...string) Option {
	return func(g *Gate) { g.publicPaths = paths }
}

func WithOpenPaths(paths ...string) Option {
	return func(g *Gate) { g.openPaths = paths }
}

func WithRules(rules ...Rule) Option {
	return func(g *Gate) { g.rules = rules }
}

// Gate decides whether a request may proceed based on the caller's Principal.
// It holds no mutable state and is safe for concurrent use.
type Gate struct {
	publicPaths []string
	openPaths   []string
	rules       []Rule
}

func NewGate(opts ...Option) *Gate {
	g := &Gate{
		publicPaths: DefaultPublicPaths,
		openPaths:   DefaultOpenPaths,
		rules:       DefaultRules,
	}
	for _, opt := range opts {
		opt(g)
	}

	// longest prefix wins
	rules := make([]Rule, len(g.rules))
	copy(rules, g.rules)
	sort.SliceStable(rules, func(i, j int) bool { return len(rules[i].Prefix) > len(rules[j].Prefix) })
	g.rules = rules
	return g
}

// Decide evaluates the request path (and its raw query) for p. A nil p means no valid session.
func (g *Gate) Decide(reqPath, rawQuery string, p *Principal) Decision {
	reqPath = cleanPath(reqPath)

	if matchAny(reqPath, g.openPaths) {
		return Decision{Kind: Allow}
	}

	public := matchAny(reqPath, g.publicPaths)
	if p == nil {
		if public {
			return Decision{Kind: Allow}
		}
		return Decision{Kind: Redirect, Location: signInLocation(reqPath, rawQuery), Reason: ReasonUnauthenticated}
	}

	if public {
		return Decision{Kind: Redirect, Location: Destination(p.Role), Reason: ReasonAuthenticated}
	}

	if rule, ok := g.rule(reqPath); ok && !rule.admits(p) {
		return Decision{Kind: Redirect, Location: Destination(p.Role), Reason: ReasonForbidden}
	}
	return Decision{Kind: Allow}
}

// SafeCallback returns callback when it is a local path p may access, and p's destination otherwise.
func (g *Gate) SafeCallback(callback string, p Principal) string {
	dest := Destination(p.Role)
	if !strings.HasPrefix(callback, "/") || strings.HasPrefix(callback, "//") || strings.Contains(callback, `\`) {
		return dest
	}
	u, err := url.Parse(callback)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return dest
	}
	if !g.Decide(u.Path, u.RawQuery, &p).Allowed() {
		return dest
	}
	return callback
}

func (g *Gate) rule(reqPath string) (Rule, bool) {
	for _, r := range g.rules {
		if matchPath(reqPath, r.Prefix) {
			return r, true
		}
	}
	return Rule{}, false
}

func signInLocation(reqPath, rawQuery string) string {
	callback := reqPath
	if rawQuery != "" {
		callback += "?" + rawQuery
	}
	q := make(url.Values)
	q.Set(CallbackParam, callback)
	return SignInPath + "?" + q.Encode()
}

func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	if p[0] != '/' {
		p = "/" + p
	}
	return path.Clean(p)
}

func matchAny(reqPath string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if matchPath(reqPath, prefix) {
			return true
		}
	}
	return false
}

// matchPath matches prefix exactly or at a path segment boundary. "/" only matches itself.
func matchPath(reqPath, prefix string) bool {
	if prefix == "/" {
		return reqPath == "/"
	}
	prefix = strings.TrimSuffix(prefix, "/")
	return reqPath == prefix || strings.HasPrefix(reqPath, prefix+"/")
}
