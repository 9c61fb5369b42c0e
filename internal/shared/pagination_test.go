package shared

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPagination(t *testing.T) {
	p := NewPagination(2, 20, 45)
	assert.Equal(t, 2, p.Page)
	assert.Equal(t, 3, p.TotalPages)
	assert.Equal(t, 45, p.Total)
}

func TestNewPaginationDefaults(t *testing.T) {
	p := NewPagination(0, 0, 5)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 20, p.PerPage)
	assert.Equal(t, 1, p.TotalPages)
}

func TestNewPaginationEmpty(t *testing.T) {
	p := NewPagination(1, 20, 0)
	assert.Equal(t, 0, p.TotalPages)
}

func TestCoreScopesAreWellFormed(t *testing.T) {
	scopes := CoreScopes()
	assert.NotEmpty(t, scopes)
	seen := map[string]bool{}
	for _, scope := range scopes {
		parts := strings.Split(scope, ":")
		assert.Len(t, parts, 2, "scope %q must be resource:action", scope)
		assert.False(t, seen[scope], "duplicate scope %q", scope)
		seen[scope] = true
	}
}
