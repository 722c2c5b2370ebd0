// Package asset holds the pieces of the pipeline that deal with raw assets:
// absolute URLs, byte fetching, and the single-flight cache.
package asset

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// ObjectManifestPath is where a baked object keeps its fragment, relative to
// the object's base URL.
const ObjectManifestPath = "objects/main.json"

var (
	ErrEmptyURL    = errors.New("empty url")
	ErrNotAbsolute = errors.New("url is not absolute")
	ErrBadScheme   = errors.New("unsupported url scheme")
)

// URL is an absolute asset URL in canonical form: NFC-normalized, lower-case
// scheme and host, no fragment. The zero URL is invalid.
type URL struct {
	u *url.URL
}

// ParseURL parses an absolute http, https or file URL.
func ParseURL(s string) (URL, error) {
	u, err := parse(s)
	if err != nil {
		return URL{}, err
	}
	return canonical(u)
}

// MustParseURL is ParseURL for constants and tests.
func MustParseURL(s string) URL {
	u, err := ParseURL(s)
	if err != nil {
		panic(err)
	}
	return u
}

func parse(s string) (*url.URL, error) {
	s = strings.TrimSpace(norm.NFC.String(s))
	if s == "" {
		return nil, ErrEmptyURL
	}
	u, err := url.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("parse url %q: %w", s, err)
	}
	return u, nil
}

func canonical(u *url.URL) (URL, error) {
	if !u.IsAbs() {
		return URL{}, fmt.Errorf("%q: %w", u.String(), ErrNotAbsolute)
	}
	c := *u
	c.Scheme = strings.ToLower(c.Scheme)
	c.Host = strings.ToLower(c.Host)
	c.Fragment = ""
	c.RawFragment = ""
	switch c.Scheme {
	case "http", "https":
		if c.Host == "" {
			return URL{}, fmt.Errorf("%q: missing host", u.String())
		}
	case "file":
	default:
		return URL{}, fmt.Errorf("%q: %w", u.String(), ErrBadScheme)
	}
	return URL{u: &c}, nil
}

// Resolve makes ref absolute against u. Absolute refs are returned in
// canonical form unchanged otherwise.
func (u URL) Resolve(ref string) (URL, error) {
	if u.u == nil {
		return URL{}, fmt.Errorf("resolve %q: %w", ref, ErrEmptyURL)
	}
	r, err := parse(ref)
	if err != nil {
		return URL{}, err
	}
	return canonical(u.u.ResolveReference(r))
}

// ResolveRef makes a stored sub-resource reference absolute against u.
// Unlike Resolve it keeps the reference as written: an absolute ref comes
// back byte for byte, and a relative one keeps its #fragment selector.
func (u URL) ResolveRef(ref string) (string, error) {
	if u.u == nil {
		return "", fmt.Errorf("resolve %q: %w", ref, ErrEmptyURL)
	}
	r, err := parse(ref)
	if err != nil {
		return "", err
	}
	if r.IsAbs() {
		if _, err := canonical(r); err != nil {
			return "", err
		}
		return ref, nil
	}
	abs := u.u.ResolveReference(r)
	if _, err := canonical(abs); err != nil {
		return "", err
	}
	return abs.String(), nil
}

func (u URL) String() string {
	if u.u == nil {
		return ""
	}
	return u.u.String()
}

func (u URL) IsZero() bool   { return u.u == nil }
func (u URL) Scheme() string { return u.field(func(x *url.URL) string { return x.Scheme }) }
func (u URL) Host() string   { return u.field(func(x *url.URL) string { return x.Host }) }
func (u URL) Path() string   { return u.field(func(x *url.URL) string { return x.Path }) }

// Ext returns the lower-cased extension of the path, including the dot.
func (u URL) Ext() string {
	return strings.ToLower(path.Ext(u.Path()))
}

func (u URL) field(fn func(*url.URL) string) string {
	if u.u == nil {
		return ""
	}
	return fn(u.u)
}

// ObjectManifestURL maps an object base URL to its fragment manifest. URLs
// already pointing at the manifest are returned as is.
func ObjectManifestURL(s string) string {
	if strings.HasSuffix(s, "/"+ObjectManifestPath) || s == ObjectManifestPath {
		return s
	}
	return strings.TrimRight(s, "/") + "/" + ObjectManifestPath
}
