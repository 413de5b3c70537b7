// Package nav resolves the pages the guard redirects to.
package nav

import (
	"net/url"
	"path"
	"strings"
)

// Target is a logical destination.
type Target int

const (
	Login Target = iota
	Unavailable
	Landing
)

func (t Target) String() string {
	switch t {
	case Login:
		return "login"
	case Unavailable:
		return "unavailable"
	case Landing:
		return "landing"
	default:
		return "unknown"
	}
}

// Routes maps targets to paths below Root.
type Routes struct {
	Root        string
	Login       string
	Unavailable string
	Landing     string
}

// UserRoutes are the customer pages.
func UserRoutes(root string) Routes {
	return Routes{
		Root:        root,
		Login:       "/index.html",
		Unavailable: "/404.html",
		Landing:     "/dashboard/index.html",
	}
}

// AdminRoutes are the operator pages.
func AdminRoutes(root string) Routes {
	return Routes{
		Root:        root,
		Login:       "/admin/login/index.html",
		Unavailable: "/404.html",
		Landing:     "/admin/profile/index.html",
	}
}

func (r Routes) pathOf(t Target) string {
	switch t {
	case Login:
		return r.Login
	case Unavailable:
		return r.Unavailable
	default:
		return r.Landing
	}
}

// Resolve returns the absolute location of t. With an empty or unparsable
// root the bare path is returned.
func (r Routes) Resolve(t Target) string {
	p := r.pathOf(t)
	if r.Root == "" {
		return p
	}
	u, err := url.Parse(r.Root)
	if err != nil {
		return p
	}
	return u.JoinPath(p).String()
}

// IsAt reports whether location already points at t. Query strings and
// fragments are ignored.
func (r Routes) IsAt(location string, t Target) bool {
	if location == "" {
		return false
	}
	u, err := url.Parse(location)
	if err != nil {
		return false
	}
	want := r.pathOf(t)
	got := path.Clean("/" + strings.TrimPrefix(u.Path, "/"))

	if root, err := url.Parse(r.Root); err == nil && root.Path != "" && root.Path != "/" {
		got = "/" + strings.TrimPrefix(strings.TrimPrefix(got, path.Clean(root.Path)), "/")
	}
	return got == path.Clean(want)
}
