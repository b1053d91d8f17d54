package services

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlagent/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-sqlagent/pkg/models"
)

// DefaultSampleRows is how many rows per table the schema prompt shows.
const DefaultSampleRows = 2

// SchemaSource supplies the schema snapshot a run is prompted and validated with.
type SchemaSource interface {
	Get(ctx context.Context) (*models.SchemaContext, error)
}

// SchemaContextProvider discovers the schema once and serves the cached
// snapshot until Refresh is called.
type SchemaContextProvider struct {
	discoverer datasource.SchemaDiscoverer
	sampleRows int
	logger     *zap.Logger

	mu     sync.Mutex
	cached *models.SchemaContext
}

var _ SchemaSource = (*SchemaContextProvider)(nil)

// NewSchemaContextProvider creates a provider over discoverer. sampleRows < 0
// disables sampling.
func NewSchemaContextProvider(discoverer datasource.SchemaDiscoverer, sampleRows int, logger *zap.Logger) *SchemaContextProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SchemaContextProvider{
		discoverer: discoverer,
		sampleRows: sampleRows,
		logger:     logger.Named("schema"),
	}
}

// Get returns the cached snapshot, discovering it on first use.
func (p *SchemaContextProvider) Get(ctx context.Context) (*models.SchemaContext, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cached != nil {
		return p.cached, nil
	}
	return p.load(ctx)
}

// Refresh drops the cached snapshot and discovers it again.
func (p *SchemaContextProvider) Refresh(ctx context.Context) (*models.SchemaContext, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.cached = nil
	return p.load(ctx)
}

func (p *SchemaContextProvider) load(ctx context.Context) (*models.SchemaContext, error) {
	samples := p.sampleRows
	if samples < 0 {
		samples = 0
	}
	schema, err := datasource.BuildSchemaContext(ctx, p.discoverer, samples, p.logger)
	if err != nil {
		return nil, fmt.Errorf("discover schema: %w", err)
	}
	p.cached = schema
	p.logger.Info("Schema discovered", zap.Int("tables", len(schema.Tables)))
	return schema, nil
}

// StaticSchema serves a fixed snapshot.
type StaticSchema struct {
	Schema *models.SchemaContext
}

// Get implements SchemaSource.
func (s StaticSchema) Get(context.Context) (*models.SchemaContext, error) {
	if s.Schema == nil {
		return &models.SchemaContext{}, nil
	}
	return s.Schema, nil
}
