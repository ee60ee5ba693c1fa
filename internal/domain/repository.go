package domain

import (
	"context"
)

// Repository defines the interface for configuration and audit persistence.
// All methods require tenantID for strict multi-tenancy isolation.
type Repository interface {
	// Routing rule operations
	SaveRoutingRule(ctx context.Context, tenantID string, rule *RoutingRule) error
	GetRoutingRule(ctx context.Context, tenantID string, ruleID string) (*RoutingRule, error)
	ListRoutingRules(ctx context.Context, tenantID string) ([]*RoutingRule, error)
	DeleteRoutingRule(ctx context.Context, tenantID string, ruleID string) error

	// Commission config operations
	SaveCommissionConfig(ctx context.Context, tenantID string, cfg *CommissionConfig) error
	GetCommissionConfig(ctx context.Context, tenantID string, cfgID string) (*CommissionConfig, error)
	ListCommissionConfigs(ctx context.Context, tenantID string) ([]*CommissionConfig, error)
	DeleteCommissionConfig(ctx context.Context, tenantID string, cfgID string) error

	// Dispatch router operations
	SaveDispatchRouter(ctx context.Context, tenantID string, router *DispatchRouter) error
	GetDispatchRouter(ctx context.Context, tenantID string, routerID string) (*DispatchRouter, error)
	ListDispatchRouters(ctx context.Context, tenantID string) ([]*DispatchRouter, error)
	DeleteDispatchRouter(ctx context.Context, tenantID string, routerID string) error

	// Dispatch strategy operations, keyed by code
	SaveDispatchStrategy(ctx context.Context, tenantID string, strategy *DispatchStrategy) error
	GetDispatchStrategy(ctx context.Context, tenantID string, code string) (*DispatchStrategy, error)
	ListDispatchStrategies(ctx context.Context, tenantID string) ([]*DispatchStrategy, error)
	DeleteDispatchStrategy(ctx context.Context, tenantID string, code string) error

	// Contract operations, keyed by subject
	SaveContract(ctx context.Context, tenantID string, contract *Contract) error
	GetContract(ctx context.Context, tenantID string, subjectID string) (*Contract, error)
	DeleteContract(ctx context.Context, tenantID string, subjectID string) error

	// Candidate snapshot rows, read by the snapshot service
	SaveCandidate(ctx context.Context, tenantID string, candidate *Candidate) error
	ListCandidates(ctx context.Context, tenantID string, subjectID string) ([]Candidate, error)

	// Decision audit records
	SaveDecision(ctx context.Context, tenantID string, decision *Decision) error
	GetDecision(ctx context.Context, tenantID string, decisionID string) (*Decision, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns int
	MaxIdleConns int
}
