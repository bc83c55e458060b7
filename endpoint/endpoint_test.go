package endpoint

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devmarvs/schoolgate/apperr"
	"github.com/devmarvs/schoolgate/auth"
)

func TestResolveLiteralDefaults(t *testing.T) {
	d, err := Resolve(Fixed(http.MethodGet, "/admin/teachers"))
	require.NoError(t, err)
	assert.Equal(t, "/admin/teachers", d.Path)
	assert.Equal(t, http.MethodGet, d.Method)
	assert.True(t, d.RequiresAuth())
	assert.True(t, d.Roles.None())

	login, err := Resolve(Fixed(http.MethodPost, "/auth/login", Public()))
	require.NoError(t, err)
	assert.False(t, login.RequiresAuth())
}

func TestResolveLiteralIgnoresParams(t *testing.T) {
	d, err := Resolve(Fixed(http.MethodGet, "/admin/stats"), 1, 2)
	require.NoError(t, err)
	assert.Equal(t, "/admin/stats", d.Path)
}

func TestResolvePattern(t *testing.T) {
	tmpl := Pattern(http.MethodGet, "/grades/classroom/{classroom_id}/period/{period_id}", RequireRole(auth.RoleTeacher))

	d, err := Resolve(tmpl, 7, int64(2))
	require.NoError(t, err)
	assert.Equal(t, "/grades/classroom/7/period/2", d.Path)
	assert.Equal(t, []auth.Role{auth.RoleTeacher}, d.Roles.Roles())
	assert.Equal(t, "/grades/classroom/{classroom_id}/period/{period_id}", tmpl.Info().Path)
}

func TestResolvePatternEscapesParams(t *testing.T) {
	d, err := Resolve(Pattern(http.MethodGet, "/evaluation-periods/academic-year/{year}"), "2024/2025")
	require.NoError(t, err)
	assert.Equal(t, "/evaluation-periods/academic-year/2024%2F2025", d.Path)
}

func TestResolveFailuresAreConfigurationErrors(t *testing.T) {
	cases := map[string]func() error{
		"missing params": func() error {
			_, err := Resolve(Pattern(http.MethodGet, "/students/classroom/{classroom_id}"))
			return err
		},
		"empty param": func() error {
			_, err := Resolve(Pattern(http.MethodGet, "/students/classroom/{classroom_id}"), "")
			return err
		},
		"unsupported param": func() error {
			_, err := Resolve(Pattern(http.MethodGet, "/students/classroom/{classroom_id}"), 1.5)
			return err
		},
		"empty path": func() error {
			_, err := Resolve(Literal(Descriptor{Method: http.MethodGet}))
			return err
		},
		"bad method": func() error {
			_, err := Resolve(Literal(Descriptor{Path: "/x", Method: "FETCH"}))
			return err
		},
		"builder leaves placeholder": func() error {
			_, err := Resolve(Parametric(func(params ...any) (Descriptor, error) {
				return Descriptor{Path: "/grades/:grade_id", Method: http.MethodGet}, nil
			}))
			return err
		},
		"builder fails": func() error {
			_, err := Resolve(Parametric(func(params ...any) (Descriptor, error) {
				return Descriptor{}, errors.New("boom")
			}))
			return err
		},
		"zero template": func() error {
			_, err := Resolve(Template{})
			return err
		},
	}
	for name, fn := range cases {
		t.Run(name, func(t *testing.T) {
			err := fn()
			require.Error(t, err)
			assert.True(t, apperr.Is(err, apperr.KindConfiguration), "got %v", err)
			assert.ErrorIs(t, err, ErrInvalidTemplate)
		})
	}
}

func TestMustResolvePanics(t *testing.T) {
	assert.Panics(t, func() { MustResolve(Template{}) })
	assert.NotPanics(t, func() { MustResolve(Fixed(http.MethodGet, "/ok")) })
}

func TestHasPlaceholder(t *testing.T) {
	assert.True(t, HasPlaceholder("/grades/{id}"))
	assert.True(t, HasPlaceholder("/grades/:id"))
	assert.True(t, HasPlaceholder("/grades/<int:id>"))
	assert.False(t, HasPlaceholder("/grades/7"))
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("b", Fixed(http.MethodGet, "/b")))
	require.NoError(t, r.Register("a", Pattern(http.MethodGet, "/a/{id}")))

	assert.Error(t, r.Register("a", Fixed(http.MethodGet, "/dup")))
	assert.Error(t, r.Register("", Fixed(http.MethodGet, "/x")))
	assert.Error(t, r.Register("bad", Fixed(http.MethodGet, "/x/{id}")))
	assert.Error(t, r.Register("zero", Template{}))
	assert.Panics(t, func() { r.MustRegister("b", Fixed(http.MethodGet, "/b")) })

	assert.Equal(t, []string{"a", "b"}, r.Names())

	d, err := r.Resolve("a", 3)
	require.NoError(t, err)
	assert.Equal(t, "/a/3", d.Path)

	_, err = r.Resolve("missing")
	assert.True(t, apperr.Is(err, apperr.KindConfiguration))
}

func TestSchoolCatalogResolvesWithoutPlaceholders(t *testing.T) {
	catalog := School()
	require.NotZero(t, catalog.Len())

	for _, name := range catalog.Names() {
		tmpl, ok := catalog.Lookup(name)
		require.True(t, ok)

		params := make([]any, strings.Count(tmpl.Info().Path, "{"))
		for i := range params {
			params[i] = i + 1
		}

		d, err := Resolve(tmpl, params...)
		require.NoError(t, err, name)
		assert.False(t, HasPlaceholder(d.Path), name)
	}
}

func TestSchoolCatalogGates(t *testing.T) {
	catalog := School()

	login, err := catalog.Resolve(AuthLogin)
	require.NoError(t, err)
	assert.Equal(t, Descriptor{Path: "/auth/login", Method: http.MethodPost, Public: true}, login)

	stats, err := catalog.Resolve("admin.stats")
	require.NoError(t, err)
	assert.Equal(t, []auth.Role{auth.RoleAdmin}, stats.Roles.Roles())

	grades, err := catalog.Resolve("grades.classroom", 4, 1)
	require.NoError(t, err)
	assert.ElementsMatch(t, []auth.Role{auth.RoleTeacher, auth.RoleAdmin}, grades.Roles.Roles())
}
