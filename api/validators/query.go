package validators

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
)

// Query reads typed query parameters and collects every problem instead of
// stopping at the first one. Check Err once all fields are read.
type Query struct {
	values url.Values
	issues map[string]string
}

func NewQuery(r *http.Request) *Query {
	return &Query{values: r.URL.Query()}
}

func (q *Query) raw(key string) string {
	return strings.TrimSpace(q.values.Get(key))
}

func (q *Query) fail(key, format string, args ...any) {
	if q.issues == nil {
		q.issues = make(map[string]string)
	}
	q.issues[key] = fmt.Sprintf(format, args...)
}

// Int returns def when key is absent and records an issue when the value is
// not an integer within [min, max].
func (q *Query) Int(key string, def, min, max int) int {
	raw := q.raw(key)
	if raw == "" {
		return def
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		q.fail(key, "must be an integer")
		return def
	}
	if value < min || value > max {
		q.fail(key, "must be between %d and %d", min, max)
		return def
	}
	return value
}

// Bool returns nil when key is absent.
func (q *Query) Bool(key string) *bool {
	raw := q.raw(key)
	if raw == "" {
		return nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		q.fail(key, "must be true or false")
		return nil
	}
	return &value
}

// String returns the sanitized value cut to maxLen runes.
func (q *Query) String(key string, maxLen int) string {
	return SanitizeString(q.values.Get(key), maxLen)
}

// Err reports every invalid parameter as one validation error.
func (q *Query) Err() error {
	if len(q.issues) == 0 {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "Parâmetros de consulta inválidos").WithDetails(map[string]any{"fields": q.issues})
}
