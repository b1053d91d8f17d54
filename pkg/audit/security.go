// Package audit provides security audit logging for SIEM consumption.
// It logs security-relevant events in structured JSON format for easy parsing
// and integration with security information and event management systems.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlagent/pkg/logging"
	"github.com/ekaya-inc/ekaya-sqlagent/pkg/models"
)

// SecurityEventType categorizes security-relevant events for filtering and alerting.
type SecurityEventType string

const (
	// EventSQLInjectionAttempt is logged when libinjection flags a literal in generated SQL.
	EventSQLInjectionAttempt SecurityEventType = "sql_injection_attempt"
	// EventPolicyViolation is logged when the validator rejects a candidate.
	EventPolicyViolation SecurityEventType = "policy_violation"
	// EventSafeModeBlock is logged when the executor refuses a statement at run time.
	EventSafeModeBlock SecurityEventType = "safe_mode_block"
	// EventQueryExecution is logged for executed statements (optional, can be high volume).
	EventQueryExecution SecurityEventType = "query_execution"
)

// SecurityEvent represents an auditable security event with all relevant context
// for SIEM ingestion and analysis.
type SecurityEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType SecurityEventType `json:"event_type"`
	RunID     uuid.UUID         `json:"run_id,omitempty"`
	ClientIP  string            `json:"client_ip,omitempty"`
	Details   any               `json:"details"`
	Severity  string            `json:"severity"` // info, warning, critical
}

// SQLInjectionDetails contains specifics of a flagged literal.
type SQLInjectionDetails struct {
	Literal     string `json:"literal"`
	Fingerprint string `json:"fingerprint"` // libinjection fingerprint for pattern analysis
	SQL         string `json:"sql"`
}

// PolicyViolationDetails describes a rejected candidate.
type PolicyViolationDetails struct {
	Question string            `json:"question"`
	Code     models.ReasonCode `json:"code"`
	Reason   string            `json:"reason"`
	SQL      string            `json:"sql"`
}

type clientIPKey struct{}

// WithClientIP returns a context carrying the caller's address for audit events.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

// ClientIPFromContext returns the address stored by WithClientIP, or "".
func ClientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	ip, _ := ctx.Value(clientIPKey{}).(string)
	return ip
}

// SecurityAuditor logs security events for SIEM consumption.
// Events are logged in structured JSON format with appropriate severity levels.
type SecurityAuditor struct {
	logger *zap.Logger
}

// NewSecurityAuditor creates a new security auditor with a dedicated logger namespace.
// The logger is automatically configured with "security_audit" namespace for easy
// filtering in SIEM systems.
func NewSecurityAuditor(logger *zap.Logger) *SecurityAuditor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SecurityAuditor{logger: logger.Named("security_audit")}
}

func (a *SecurityAuditor) event(ctx context.Context, eventType SecurityEventType, runID uuid.UUID, severity string, details any) (SecurityEvent, string) {
	event := SecurityEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		RunID:     runID,
		ClientIP:  ClientIPFromContext(ctx),
		Details:   details,
		Severity:  severity,
	}
	// Marshaling these known types cannot fail.
	eventJSON, _ := json.Marshal(event)
	return event, string(eventJSON)
}

// LogInjectionAttempt records a literal in generated SQL that carries an
// injection fingerprint. Logged at ERROR with "critical" severity.
//
// Example usage:
//
//	auditor.LogInjectionAttempt(ctx, runID, audit.SQLInjectionDetails{
//	    Literal:     "' OR 1=1--",
//	    Fingerprint: "s&1c",
//	    SQL:         candidate.SQL,
//	})
func (a *SecurityAuditor) LogInjectionAttempt(ctx context.Context, runID uuid.UUID, details SQLInjectionDetails) {
	details.SQL = logging.SanitizeQuery(details.SQL)
	event, eventJSON := a.event(ctx, EventSQLInjectionAttempt, runID, "critical", details)

	a.logger.Error("SQL injection pattern in generated query",
		zap.String("event_json", eventJSON),
		zap.String("run_id", runID.String()),
		zap.String("fingerprint", details.Fingerprint),
		zap.String("client_ip", event.ClientIP),
		zap.String("severity", event.Severity),
	)
}

// LogPolicyViolation records a candidate the validator rejected. Logged at WARN;
// a model proposing a write is usually a bad prompt, not an attack.
func (a *SecurityAuditor) LogPolicyViolation(ctx context.Context, runID uuid.UUID, details PolicyViolationDetails) {
	details.SQL = logging.SanitizeQuery(details.SQL)
	event, eventJSON := a.event(ctx, EventPolicyViolation, runID, "warning", details)

	a.logger.Warn("Generated query rejected by policy",
		zap.String("event_json", eventJSON),
		zap.String("run_id", runID.String()),
		zap.String("code", string(details.Code)),
		zap.String("reason", details.Reason),
		zap.String("client_ip", event.ClientIP),
		zap.String("severity", event.Severity),
	)
}

// LogSafeModeBlock records a statement the executor refused because it carried
// a blocked keyword. Reaching this means something bypassed validation.
func (a *SecurityAuditor) LogSafeModeBlock(ctx context.Context, keyword, sql string) {
	details := map[string]string{
		"keyword": keyword,
		"sql":     logging.SanitizeQuery(sql),
	}
	event, eventJSON := a.event(ctx, EventSafeModeBlock, uuid.Nil, "critical", details)

	a.logger.Error("Executor blocked statement in safe mode",
		zap.String("event_json", eventJSON),
		zap.String("keyword", keyword),
		zap.String("client_ip", event.ClientIP),
		zap.String("severity", event.Severity),
	)
}

// LogQueryExecution records an executed statement for the audit trail.
// This is logged at INFO level and can generate high log volume in production.
func (a *SecurityAuditor) LogQueryExecution(ctx context.Context, runID uuid.UUID, sql string, rowCount int) {
	details := map[string]any{
		"sql":       logging.SanitizeQuery(sql),
		"row_count": rowCount,
	}
	event, eventJSON := a.event(ctx, EventQueryExecution, runID, "info", details)

	a.logger.Info("Query executed",
		zap.String("event_json", eventJSON),
		zap.String("run_id", runID.String()),
		zap.Int("row_count", rowCount),
		zap.String("client_ip", event.ClientIP),
		zap.String("severity", event.Severity),
	)
}
