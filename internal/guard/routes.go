package guard

import (
	"fmt"
	"net/url"
	"strings"
)

// Named routes of the web client.
const (
	RouteLogin          = "Login"
	RouteRegister       = "Register"
	RouteDashboard      = "Dashboard"
	RouteDocuments      = "Documents"
	RouteOrganizations  = "Organizations"
	RouteInvite         = "Invite"
	RouteGoogleCallback = "GoogleCallback"
)

// PathInvite is where invitation emails link to.
const PathInvite = "/invite"

// Route is a named page and its access metadata.
type Route struct {
	Name string
	Path string
	Meta Meta
}

// Routes is a route table.
type Routes []Route

// DefaultRoutes returns the web client's route table.
func DefaultRoutes() Routes {
	return Routes{
		{Name: RouteLogin, Path: "/login", Meta: Meta{Guest: true}},
		{Name: RouteRegister, Path: "/register", Meta: Meta{Guest: true}},
		{Name: RouteDashboard, Path: "/dashboard", Meta: Meta{RequiresAuth: true}},
		{Name: RouteDocuments, Path: "/documents", Meta: Meta{RequiresAuth: true}},
		{Name: RouteOrganizations, Path: "/organizations", Meta: Meta{RequiresAuth: true}},
		{Name: RouteInvite, Path: PathInvite},
		{Name: RouteGoogleCallback, Path: "/auth/google/callback", Meta: Meta{Guest: true}},
	}
}

// ByName returns the route with the given name.
func (rs Routes) ByName(name string) (Route, bool) {
	for _, r := range rs {
		if r.Name == name {
			return r, true
		}
	}
	return Route{}, false
}

// ByPath returns the route whose path matches p. A trailing slash is
// ignored.
func (rs Routes) ByPath(p string) (Route, bool) {
	p = normalizePath(p)
	for _, r := range rs {
		if r.Path == p {
			return r, true
		}
	}
	return Route{}, false
}

// Target builds a navigation target for a named route.
func (rs Routes) Target(name string, query url.Values) (Target, error) {
	r, ok := rs.ByName(name)
	if !ok {
		return Target{}, fmt.Errorf("unknown route %q", name)
	}
	return Target{Name: r.Name, Path: r.Path, Query: query, Meta: r.Meta}, nil
}

// Resolve builds a target from a URL or path. Unknown paths resolve to an
// unnamed target with no access metadata.
func (rs Routes) Resolve(rawURL string) (Target, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Target{}, fmt.Errorf("parse navigation url: %w", err)
	}
	t := Target{Path: normalizePath(u.Path), Query: u.Query()}
	if r, ok := rs.ByPath(t.Path); ok {
		t.Name = r.Name
		t.Meta = r.Meta
	}
	return t, nil
}

// URL returns the path of the named route, or "/" when it is unknown.
func (rs Routes) URL(name string) string {
	if r, ok := rs.ByName(name); ok {
		return r.Path
	}
	return "/"
}

func normalizePath(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
	}
	return p
}
