//go:build integration

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlagent/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-sqlagent/pkg/testhelpers"
)

func containerConfig(testDB *testhelpers.TestDB) *Config {
	return &Config{
		Host:     testDB.Host,
		Port:     testDB.Port,
		User:     "ekaya",
		Password: "test_password",
		Database: "test_data",
		SSLMode:  "disable",
	}
}

func TestAdapter_Integration(t *testing.T) {
	testDB := testhelpers.GetTestDB(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	adapter, err := NewAdapter(ctx, containerConfig(testDB))
	require.NoError(t, err)
	defer adapter.Close()

	require.NoError(t, adapter.TestConnection(ctx))
}

func TestAdapter_TestConnection_VerifiesDatabaseName(t *testing.T) {
	testDB := testhelpers.GetTestDB(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	wrongCfg := containerConfig(testDB)
	wrongCfg.Database = "nonexistent_database_12345"

	wrongAdapter, err := NewAdapter(ctx, wrongCfg)
	if err != nil {
		return // pool creation failing is acceptable
	}
	defer wrongAdapter.Close()

	assert.Error(t, wrongAdapter.TestConnection(ctx))
}

func TestQueryRunner_Run(t *testing.T) {
	testDB := testhelpers.GetTestDB(t)
	runner := NewQueryRunnerFromPool(testDB.Pool)

	result, err := runner.Run(context.Background(),
		"SELECT COUNT(*) AS engineers FROM employees WHERE department = 'Engineering'")
	require.NoError(t, err)

	assert.Equal(t, []string{"engineers"}, result.ColumnNames())
	require.Len(t, result.Rows, 1)
	assert.EqualValues(t, testhelpers.EngineeringHeadcount, result.Rows[0][0])
}

func TestQueryRunner_Run_UndefinedTableKeepsPgError(t *testing.T) {
	testDB := testhelpers.GetTestDB(t)
	runner := NewQueryRunnerFromPool(testDB.Pool)

	_, err := runner.Run(context.Background(), "SELECT * FROM employee")
	require.Error(t, err)

	var pgErr *pgconn.PgError
	require.True(t, errors.As(err, &pgErr))
	assert.Equal(t, "42P01", pgErr.Code)
}

func TestQueryRunner_Explain(t *testing.T) {
	testDB := testhelpers.GetTestDB(t)
	runner := NewQueryRunnerFromPool(testDB.Pool)

	result, err := runner.Explain(context.Background(), "SELECT name FROM employees WHERE salary > 100000")
	require.NoError(t, err)

	assert.Contains(t, result.Plan, "Seq Scan")
	assert.NotEmpty(t, result.PerformanceHints)
}

func TestSchemaDiscoverer_BuildSchemaContext(t *testing.T) {
	testDB := testhelpers.GetTestDB(t)
	discoverer := NewSchemaDiscovererFromPool(testDB.Pool, zap.NewNop())

	schema, err := datasource.BuildSchemaContext(context.Background(), discoverer, 2, zap.NewNop())
	require.NoError(t, err)

	names := schema.TableNames()
	for _, table := range testhelpers.FixtureTables {
		assert.Contains(t, names, table)
		assert.Contains(t, names, "public."+table)
	}
	assert.NotEmpty(t, schema.Relationships)

	cols := schema.Describe()["employees"]
	require.NotEmpty(t, cols)
	assert.Equal(t, "id", cols[0].Name)
	assert.True(t, cols[0].IsPrimaryKey)
}
