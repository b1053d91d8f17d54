package sql

import "strings"

// Dialect selects how a row limit is injected.
type Dialect string

const (
	DialectPostgres  Dialect = "postgres"
	DialectSQLite    Dialect = "sqlite"
	DialectSQLServer Dialect = "sqlserver"
)

const (
	// DefaultMaxQueryLength bounds the raw statement text.
	DefaultMaxQueryLength = 10000
	// DefaultRowLimit is the cap injected into statements that carry no limit of their own.
	DefaultRowLimit = 1000
)

// DefaultBlockedKeywords are the statement keywords a read-only agent never runs.
var DefaultBlockedKeywords = []string{"DELETE", "DROP", "ALTER", "TRUNCATE", "CREATE", "INSERT", "UPDATE"}

// PolicyConfig holds the plain values a Policy is built from.
type PolicyConfig struct {
	SafeMode               bool
	BlockedKeywords        []string
	MaxQueryLength         int
	DefaultRowLimit        int
	AllowedTables          []string
	DetectLiteralInjection bool
	Dialect                Dialect
}

// Policy is the immutable rule set the validator and executor enforce.
// Build it once with NewPolicy and share it freely.
type Policy struct {
	safeMode               bool
	blocked                []string
	blockedSet             map[string]struct{}
	maxQueryLength         int
	defaultRowLimit        int
	allowedTables          map[string]struct{}
	qualifiedBare          map[string]struct{} // bare names that appear schema-qualified
	detectLiteralInjection bool
	dialect                Dialect
}

// NewPolicy copies cfg into an immutable Policy.
// A nil BlockedKeywords falls back to DefaultBlockedKeywords; an empty, non-nil slice blocks nothing.
// MaxQueryLength <= 0 uses DefaultMaxQueryLength. DefaultRowLimit <= 0 disables limit injection.
func NewPolicy(cfg PolicyConfig) *Policy {
	keywords := cfg.BlockedKeywords
	if keywords == nil {
		keywords = DefaultBlockedKeywords
	}

	p := &Policy{
		safeMode:               cfg.SafeMode,
		blockedSet:             make(map[string]struct{}, len(keywords)),
		maxQueryLength:         cfg.MaxQueryLength,
		defaultRowLimit:        cfg.DefaultRowLimit,
		detectLiteralInjection: cfg.DetectLiteralInjection,
		dialect:                cfg.Dialect,
	}
	for _, kw := range keywords {
		kw = strings.ToUpper(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		if _, dup := p.blockedSet[kw]; dup {
			continue
		}
		p.blockedSet[kw] = struct{}{}
		p.blocked = append(p.blocked, kw)
	}
	if p.maxQueryLength <= 0 {
		p.maxQueryLength = DefaultMaxQueryLength
	}
	if p.defaultRowLimit < 0 {
		p.defaultRowLimit = 0
	}
	if p.dialect == "" {
		p.dialect = DialectPostgres
	}
	p.setAllowedTables(cfg.AllowedTables)
	return p
}

// DefaultPolicy returns the policy used when nothing is configured.
func DefaultPolicy() *Policy {
	return NewPolicy(PolicyConfig{
		SafeMode:               true,
		MaxQueryLength:         DefaultMaxQueryLength,
		DefaultRowLimit:        DefaultRowLimit,
		DetectLiteralInjection: true,
		Dialect:                DialectPostgres,
	})
}

// WithAllowedTables returns a copy of p restricted to the given tables.
func (p *Policy) WithAllowedTables(tables []string) *Policy {
	cp := *p
	cp.setAllowedTables(tables)
	return &cp
}

// ScopedTo restricts p to the given schema tables unless p already carries an
// allowlist of its own or tables is empty.
func (p *Policy) ScopedTo(tables []string) *Policy {
	if len(tables) == 0 || p.HasTableAllowlist() {
		return p
	}
	return p.WithAllowedTables(tables)
}

func (p *Policy) setAllowedTables(tables []string) {
	p.allowedTables = nil
	p.qualifiedBare = nil
	if len(tables) == 0 {
		return
	}
	p.allowedTables = make(map[string]struct{}, len(tables))
	p.qualifiedBare = make(map[string]struct{})
	for _, t := range tables {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		p.allowedTables[t] = struct{}{}
		if idx := strings.LastIndexByte(t, '.'); idx >= 0 {
			p.qualifiedBare[t[idx+1:]] = struct{}{}
		}
	}
}

// SafeMode reports whether the executor re-checks blocked keywords before running a statement.
func (p *Policy) SafeMode() bool { return p.safeMode }

// BlockedKeywords returns a copy of the upper-cased blocked keyword list.
func (p *Policy) BlockedKeywords() []string {
	return append([]string(nil), p.blocked...)
}

// MaxQueryLength returns the maximum raw statement length.
func (p *Policy) MaxQueryLength() int { return p.maxQueryLength }

// DefaultRowLimit returns the injected row cap, 0 when injection is off.
func (p *Policy) DefaultRowLimit() int { return p.defaultRowLimit }

// Dialect returns the SQL dialect used for limit injection.
func (p *Policy) Dialect() Dialect { return p.dialect }

// DetectLiteralInjection reports whether string literals are fingerprinted.
func (p *Policy) DetectLiteralInjection() bool { return p.detectLiteralInjection }

// HasTableAllowlist reports whether table references are checked.
func (p *Policy) HasTableAllowlist() bool { return len(p.allowedTables) > 0 }

func (p *Policy) isBlocked(word string) bool {
	_, ok := p.blockedSet[word]
	return ok
}

// tableAllowed matches a lower-cased, possibly schema-qualified reference.
// A qualified reference also matches a bare allowlist entry when that table was
// discovered without a schema.
func (p *Policy) tableAllowed(ref string) bool {
	if _, ok := p.allowedTables[ref]; ok {
		return true
	}
	idx := strings.LastIndexByte(ref, '.')
	if idx < 0 {
		return false
	}
	bare := ref[idx+1:]
	if _, ok := p.allowedTables[bare]; !ok {
		return false
	}
	_, qualified := p.qualifiedBare[bare]
	return !qualified
}
