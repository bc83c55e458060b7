// Package endpoint describes the operations of the school API and resolves
// them into concrete request descriptors.
package endpoint

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/devmarvs/schoolgate/apperr"
	"github.com/devmarvs/schoolgate/auth"
)

// ErrInvalidTemplate is the cause of every resolution failure.
var ErrInvalidTemplate = errors.New("invalid endpoint template")

// Descriptor is the resolved metadata of one server operation.
type Descriptor struct {
	Path   string
	Method string
	// Public marks an endpoint callable without a credential.
	Public bool
	Roles  auth.Requirement
}

// RequiresAuth reports the descriptor's own authentication flag.
func (d Descriptor) RequiresAuth() bool {
	return !d.Public
}

// Option adjusts a descriptor at definition time.
type Option func(*Descriptor)

// Public marks the endpoint as not requiring a credential.
func Public() Option {
	return func(d *Descriptor) {
		d.Public = true
	}
}

// RequireRole gates the endpoint on a single role.
func RequireRole(role auth.Role) Option {
	return func(d *Descriptor) {
		d.Roles = auth.Require(role)
	}
}

// RequireAnyRole gates the endpoint on a set of roles.
func RequireAnyRole(roles ...auth.Role) Option {
	return func(d *Descriptor) {
		d.Roles = auth.RequireAny(roles...)
	}
}

type templateKind int

const (
	kindInvalid templateKind = iota
	kindLiteral
	kindParametric
)

// Template is either a literal descriptor or a pure function of path parameters.
type Template struct {
	kind    templateKind
	literal Descriptor
	build   func(params ...any) (Descriptor, error)
	// info is the definition-time view used for listing; Path holds the pattern.
	info Descriptor
}

// Literal wraps a fixed descriptor.
func Literal(d Descriptor) Template {
	return Template{kind: kindLiteral, literal: d, info: d}
}

// Fixed builds a literal template from a method and path.
func Fixed(method, path string, options ...Option) Template {
	d := Descriptor{Path: path, Method: method}
	for _, opt := range options {
		opt(&d)
	}
	return Literal(d)
}

// Parametric wraps a function from path parameters to a descriptor.
func Parametric(fn func(params ...any) (Descriptor, error)) Template {
	return Template{kind: kindParametric, build: fn}
}

// Pattern builds a parametric template whose {name} placeholders are filled
// positionally from the call parameters.
func Pattern(method, pattern string, options ...Option) Template {
	base := Descriptor{Path: pattern, Method: method}
	for _, opt := range options {
		opt(&base)
	}
	names := placeholders(pattern)

	t := Parametric(func(params ...any) (Descriptor, error) {
		if len(params) != len(names) {
			return Descriptor{}, fmt.Errorf("%s expects %d parameters, got %d", pattern, len(names), len(params))
		}
		path := pattern
		for i, name := range names {
			value, err := formatParam(params[i])
			if err != nil {
				return Descriptor{}, fmt.Errorf("%s parameter %s: %w", pattern, name, err)
			}
			path = strings.Replace(path, "{"+name+"}", value, 1)
		}
		d := base
		d.Path = path
		return d, nil
	})
	t.info = base
	return t
}

// IsZero reports whether the template was never defined.
func (t Template) IsZero() bool {
	return t.kind == kindInvalid
}

// IsParametric reports whether the template needs path parameters.
func (t Template) IsParametric() bool {
	return t.kind == kindParametric
}

// Info returns the definition-time descriptor; for patterns Path is the raw pattern.
func (t Template) Info() Descriptor {
	return t.info
}

// Resolve turns a template and its parameters into a validated descriptor.
// Literals ignore params. Failures are apperr configuration errors.
func Resolve(t Template, params ...any) (Descriptor, error) {
	var (
		d   Descriptor
		err error
	)
	switch t.kind {
	case kindLiteral:
		d = t.literal
	case kindParametric:
		if t.build == nil {
			return Descriptor{}, configError("parametric template has no builder", nil)
		}
		d, err = t.build(params...)
		if err != nil {
			return Descriptor{}, configError("resolve template", err)
		}
	default:
		return Descriptor{}, configError("undefined template", nil)
	}

	if err := Validate(d); err != nil {
		return Descriptor{}, err
	}
	d.Method = strings.ToUpper(d.Method)
	return d, nil
}

// MustResolve resolves t and panics on failure. Use it for templates fixed at startup.
func MustResolve(t Template, params ...any) Descriptor {
	d, err := Resolve(t, params...)
	if err != nil {
		panic(err)
	}
	return d
}

// Validate checks the shape of a resolved descriptor.
func Validate(d Descriptor) error {
	if strings.TrimSpace(d.Path) == "" {
		return configError("endpoint path is empty", nil)
	}
	if !strings.HasPrefix(d.Path, "/") {
		return configError(fmt.Sprintf("endpoint path %q must start with /", d.Path), nil)
	}
	if HasPlaceholder(d.Path) {
		return configError(fmt.Sprintf("endpoint path %q has unresolved placeholders", d.Path), nil)
	}
	if !validMethod(d.Method) {
		return configError(fmt.Sprintf("endpoint method %q is not supported", d.Method), nil)
	}
	return nil
}

// HasPlaceholder reports whether path still contains a {name}, :name or <name> segment.
func HasPlaceholder(path string) bool {
	if strings.ContainsAny(path, "{}<>") {
		return true
	}
	for _, segment := range strings.Split(path, "/") {
		if strings.HasPrefix(segment, ":") {
			return true
		}
	}
	return false
}

func validMethod(method string) bool {
	switch strings.ToUpper(method) {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}

func placeholders(pattern string) []string {
	var names []string
	for {
		start := strings.IndexByte(pattern, '{')
		if start < 0 {
			return names
		}
		end := strings.IndexByte(pattern[start:], '}')
		if end < 0 {
			return names
		}
		names = append(names, pattern[start+1:start+end])
		pattern = pattern[start+end+1:]
	}
}

func formatParam(value any) (string, error) {
	var out string
	switch typed := value.(type) {
	case string:
		out = typed
	case int:
		out = strconv.Itoa(typed)
	case int32:
		out = strconv.FormatInt(int64(typed), 10)
	case int64:
		out = strconv.FormatInt(typed, 10)
	case uint:
		out = strconv.FormatUint(uint64(typed), 10)
	case uint64:
		out = strconv.FormatUint(typed, 10)
	case fmt.Stringer:
		out = typed.String()
	default:
		return "", fmt.Errorf("unsupported parameter type %T", value)
	}
	if out == "" {
		return "", errors.New("empty parameter")
	}
	return url.PathEscape(out), nil
}

func configError(message string, cause error) error {
	if cause == nil {
		cause = ErrInvalidTemplate
	} else {
		cause = fmt.Errorf("%w: %w", ErrInvalidTemplate, cause)
	}
	return apperr.New(apperr.KindConfiguration, 0, message, cause)
}
