package sql

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPolicy_Defaults(t *testing.T) {
	p := NewPolicy(PolicyConfig{})

	assert.Equal(t, DefaultBlockedKeywords, p.BlockedKeywords())
	assert.Equal(t, DefaultMaxQueryLength, p.MaxQueryLength())
	assert.Equal(t, 0, p.DefaultRowLimit())
	assert.Equal(t, DialectPostgres, p.Dialect())
	assert.False(t, p.HasTableAllowlist())
}

func TestNewPolicy_NormalizesKeywords(t *testing.T) {
	p := NewPolicy(PolicyConfig{BlockedKeywords: []string{" drop ", "DROP", "", "merge"}})

	assert.Equal(t, []string{"DROP", "MERGE"}, p.BlockedKeywords())
}

func TestNewPolicy_EmptyKeywordListBlocksNothing(t *testing.T) {
	p := NewPolicy(PolicyConfig{BlockedKeywords: []string{}})

	assert.Empty(t, p.BlockedKeywords())
	assert.Equal(t, "", FindBlockedKeyword("DROP TABLE employees", p))
}

func TestPolicy_IsImmutable(t *testing.T) {
	keywords := []string{"DROP"}
	p := NewPolicy(PolicyConfig{BlockedKeywords: keywords})
	keywords[0] = "SELECT"

	got := p.BlockedKeywords()
	got[0] = "TAMPERED"

	assert.Equal(t, []string{"DROP"}, p.BlockedKeywords())
}

func TestPolicy_WithAllowedTables(t *testing.T) {
	base := DefaultPolicy()
	scoped := base.WithAllowedTables([]string{"Employees", "public.departments"})

	assert.False(t, base.HasTableAllowlist())
	assert.True(t, scoped.HasTableAllowlist())
	assert.True(t, scoped.tableAllowed("employees"))
	assert.True(t, scoped.tableAllowed("public.employees"))
	assert.True(t, scoped.tableAllowed("public.departments"))
	assert.False(t, scoped.tableAllowed("departments"))
	assert.False(t, scoped.tableAllowed("archive.departments"))
	assert.Equal(t, base.BlockedKeywords(), scoped.BlockedKeywords())
}

func TestPolicy_ScopedTo(t *testing.T) {
	base := NewPolicy(PolicyConfig{Dialect: DialectSQLite})

	scoped := base.ScopedTo([]string{"employees"})
	assert.True(t, scoped.HasTableAllowlist())
	assert.False(t, base.HasTableAllowlist())
	assert.Equal(t, DialectSQLite, scoped.Dialect())

	assert.Same(t, base, base.ScopedTo(nil))

	configured := base.WithAllowedTables([]string{"departments"})
	assert.Same(t, configured, configured.ScopedTo([]string{"employees"}))
}
