// Package tools holds the named capabilities the agent can invoke besides
// running SQL: explaining a plan, fixing a query and summarizing results.
package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlagent/pkg/apperrors"
)

// ErrToolNotFound is returned when no tool is registered under a name.
var ErrToolNotFound = fmt.Errorf("tool %w", apperrors.ErrNotFound)

// Tool is a named capability with a JSON Schema for its arguments.
type Tool interface {
	Name() string
	Description() string
	// InputSchema is a JSON Schema document describing the arguments object.
	InputSchema() json.RawMessage
	Invoke(ctx context.Context, args map[string]any) (*Result, error)
}

// Result is what a tool produced. Output is human readable; Data carries the
// structured value when there is one.
type Result struct {
	Success bool   `json:"success"`
	Output  string `json:"output"`
	Data    any    `json:"data,omitempty"`
}

// Info describes a registered tool.
type Info struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// ArgumentsError reports arguments that do not match a tool's input schema.
type ArgumentsError struct {
	Tool  string
	Cause error
}

func (e *ArgumentsError) Error() string {
	return fmt.Sprintf("invalid arguments for %s: %v", e.Tool, e.Cause)
}

func (e *ArgumentsError) Unwrap() error {
	return e.Cause
}

// Is reports ArgumentsError as an apperrors.ErrInvalidArgument.
func (e *ArgumentsError) Is(target error) bool {
	return target == apperrors.ErrInvalidArgument
}

type registered struct {
	tool   Tool
	schema *jsonschema.Schema
}

// Registry holds tools by name and validates arguments before invoking them.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]registered
	logger *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		tools:  make(map[string]registered),
		logger: logger.Named("tools"),
	}
}

// Register compiles the tool's input schema and adds it. Names must be unique.
func (r *Registry) Register(t Tool) error {
	name := t.Name()
	if name == "" {
		return errors.New("tool name is required")
	}

	schema, err := compileSchema(name, t.InputSchema())
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %q is already registered", name)
	}
	r.tools[name] = registered{tool: t, schema: schema}
	r.logger.Debug("Registered tool", zap.String("tool", name))
	return nil
}

// MustRegister is Register for wiring code that cannot continue on error.
func (r *Registry) MustRegister(tools ...Tool) {
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			panic(err)
		}
	}
}

// Get returns the tool registered under name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.tools[name]
	return reg.tool, ok
}

// List returns every tool sorted by name.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Info, 0, len(r.tools))
	for _, reg := range r.tools {
		out = append(out, Info{
			Name:        reg.tool.Name(),
			Description: reg.tool.Description(),
			InputSchema: reg.tool.InputSchema(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Invoke validates args against the tool's schema and runs it.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]any) (*Result, error) {
	r.mu.RLock()
	reg, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}

	if args == nil {
		args = map[string]any{}
	}
	if err := validateArgs(reg.schema, args); err != nil {
		return nil, &ArgumentsError{Tool: name, Cause: err}
	}

	result, err := reg.tool.Invoke(ctx, args)
	if err != nil {
		r.logger.Warn("Tool invocation failed", zap.String("tool", name), zap.Error(err))
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return result, nil
}

func compileSchema(name string, raw json.RawMessage) (*jsonschema.Schema, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		raw = json.RawMessage(`{"type":"object"}`)
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("unmarshal input schema for %s: %w", name, err)
	}

	url := strings.ReplaceAll(name, " ", "_") + ".json"
	c := jsonschema.NewCompiler()
	if err := c.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("add input schema for %s: %w", name, err)
	}
	schema, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile input schema for %s: %w", name, err)
	}
	return schema, nil
}

// validateArgs round-trips args through JSON so Go values (int64, time.Time,
// nested slices) are checked the way a remote caller's would be.
func validateArgs(schema *jsonschema.Schema, args map[string]any) error {
	b, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode arguments: %w", err)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("decode arguments: %w", err)
	}
	return schema.Validate(inst)
}
