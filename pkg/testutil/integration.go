package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

// Environment variables holding the DSNs of integration databases.
const (
	PostgresDSNEnv = "NEBULA_TEST_POSTGRES_DSN"
	MySQLDSNEnv    = "NEBULA_TEST_MYSQL_DSN"
)

// IntegrationTestSuite provides base functionality for tests against a live
// database. Embedding suites set DSN before suite.Run.
type IntegrationTestSuite struct {
	suite.Suite
	DSN string

	ctx       context.Context
	cancel    context.CancelFunc
	startTime time.Time
}

// SetupSuite runs before all tests in the suite
func (s *IntegrationTestSuite) SetupSuite() {
	s.ctx, s.cancel = context.WithTimeout(context.Background(), 5*time.Minute)
	s.startTime = time.Now()
}

// TearDownSuite runs after all tests in the suite
func (s *IntegrationTestSuite) TearDownSuite() {
	s.cancel()
	s.T().Logf("Integration test suite completed in %v", time.Since(s.startTime))
}

// Context returns the suite context
func (s *IntegrationTestSuite) Context() context.Context {
	return s.ctx
}

// IntegrationDSN returns the DSN in env, skipping the test in short mode or
// when the variable is unset.
func IntegrationDSN(t *testing.T, env string) string {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	dsn := os.Getenv(env)
	if dsn == "" {
		t.Skipf("Skipping integration test: %s is not set", env)
	}
	return dsn
}
