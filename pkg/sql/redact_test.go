package sql

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedactLiterals(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  string
	}{
		{"no literals", "SELECT COUNT(*) FROM employees WHERE salary > 100000", "SELECT COUNT(*) FROM employees WHERE salary > 100000"},
		{"single literal", "SELECT * FROM employees WHERE department = 'Engineering'", "SELECT * FROM employees WHERE department = '***'"},
		{"escaped quote", "SELECT * FROM employees WHERE name = 'O''Brien' AND id = 3", "SELECT * FROM employees WHERE name = '***' AND id = 3"},
		{"several literals", "SELECT * FROM t WHERE a IN ('x', 'y')", "SELECT * FROM t WHERE a IN ('***', '***')"},
		{"quoted identifier kept", `SELECT "first name" FROM employees WHERE note = 'secret'`, `SELECT "first name" FROM employees WHERE note = '***'`},
		{"quote inside comment kept", "SELECT 1 -- don't", "SELECT 1 -- don't"},
		{"unterminated", "SELECT * FROM users WHERE token = 'abc", "SELECT * FROM users WHERE token = '***'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RedactLiterals(tt.query))
		})
	}
}
