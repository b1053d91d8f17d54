package cmd

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlagent/pkg/adapters/datasource"
	_ "github.com/ekaya-inc/ekaya-sqlagent/pkg/adapters/datasource/mssql"
	_ "github.com/ekaya-inc/ekaya-sqlagent/pkg/adapters/datasource/postgres"
	_ "github.com/ekaya-inc/ekaya-sqlagent/pkg/adapters/datasource/sqlite"
	"github.com/ekaya-inc/ekaya-sqlagent/pkg/audit"
	"github.com/ekaya-inc/ekaya-sqlagent/pkg/config"
	"github.com/ekaya-inc/ekaya-sqlagent/pkg/llm"
	"github.com/ekaya-inc/ekaya-sqlagent/pkg/logging"
	"github.com/ekaya-inc/ekaya-sqlagent/pkg/services"
	sqlpkg "github.com/ekaya-inc/ekaya-sqlagent/pkg/sql"
	"github.com/ekaya-inc/ekaya-sqlagent/pkg/tools"
)

// app holds the wired components shared by the subcommands.
type app struct {
	cfg    *config.Config
	logger *zap.Logger

	runner     datasource.QueryRunner
	discoverer datasource.SchemaDiscoverer
	tester     datasource.ConnectionTester

	policy   *sqlpkg.Policy
	auditor  *audit.SecurityAuditor
	executor *services.Executor
	schema   *services.SchemaContextProvider
	registry *tools.Registry
	agent    *services.Agent
}

// loadConfig reads configuration and builds the process logger.
func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.LoadFrom(configPath, Version)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	logger, err := logging.NewLogger(cfg.Logging.Level, cfg.Logging.Development)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// newDatasourceApp connects to the datasource only. Commands that never call
// the model use it so they work without LLM credentials.
func newDatasourceApp(ctx context.Context) (*app, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger}

	dsType := string(cfg.Dialect())
	adapterCfg := cfg.AdapterConfig()
	factory := datasource.NewDatasourceAdapterFactory(logger)

	if a.runner, err = factory.NewQueryRunner(ctx, dsType, adapterCfg); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to connect to %s datasource: %w", dsType, err)
	}
	if a.discoverer, err = factory.NewSchemaDiscoverer(ctx, dsType, adapterCfg); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to open schema discovery: %w", err)
	}
	if a.tester, err = factory.NewConnectionTester(ctx, dsType, adapterCfg); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to open health check connection: %w", err)
	}

	a.policy = cfg.Policy()
	a.auditor = audit.NewSecurityAuditor(logger)
	a.executor = services.NewExecutor(a.runner, a.policy, cfg.QueryTimeout(), a.auditor, logger)
	a.schema = services.NewSchemaContextProvider(a.discoverer, cfg.Datasource.SampleRows, logger)
	return a, nil
}

// newApp wires the datasource, model client, tools and agent.
func newApp(ctx context.Context) (*app, error) {
	a, err := newDatasourceApp(ctx)
	if err != nil {
		return nil, err
	}
	cfg, logger := a.cfg, a.logger

	client, err := llm.NewClientFromConfig(cfg.LLMClientConfig(), cfg.RetryConfig(), cfg.CircuitBreakerConfig(), logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.registry, err = tools.NewDefaultRegistry(tools.Dependencies{
		Explainer:   a.executor,
		Policy:      a.policy,
		LLM:         client,
		Schema:      a.schema,
		Dialect:     a.executor.Dialect(),
		Temperature: cfg.LLM.Temperature,
	}, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}

	agentCfg := cfg.AgentConfig()
	a.agent, err = services.NewAgent(services.AgentDeps{
		LLM:       client,
		Executor:  a.executor,
		Schema:    a.schema,
		Corrector: services.NewSQLCorrector(client, a.executor.Dialect(), agentCfg.Temperature, logger),
		Memory:    services.NewMemory(agentCfg.MemorySize),
		Policy:    a.policy,
		Tools:     a.registry,
		Auditor:   a.auditor,
	}, agentCfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	logger.Info("Agent ready",
		zap.String("datasource", a.executor.Dialect()),
		zap.String("llm_provider", cfg.LLM.Provider),
		zap.String("llm_model", client.GetModel()),
		zap.Bool("safe_mode", cfg.Safety.SafeMode),
		zap.Int("max_iterations", agentCfg.MaxIterations),
	)
	return a, nil
}

// Close releases datasource connections and flushes the logger.
func (a *app) Close() error {
	var errs []error
	if a.runner != nil {
		errs = append(errs, a.runner.Close())
	}
	if a.discoverer != nil {
		errs = append(errs, a.discoverer.Close())
	}
	if a.tester != nil {
		errs = append(errs, a.tester.Close())
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	return errors.Join(errs...)
}
