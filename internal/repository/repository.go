// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveRoutingRule upserts a routing rule with tenant isolation.
func (r *SQLRepository) SaveRoutingRule(ctx context.Context, tenantID string, rule *domain.RoutingRule) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	criteria, _ := json.Marshal(rule.Criteria)
	now := time.Now().UTC()

	query := `
		INSERT INTO routing_rules (
			id, tenant_id, owner, criteria, target_kind, target, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, tenant_id) DO UPDATE SET
			owner = excluded.owner,
			criteria = excluded.criteria,
			target_kind = excluded.target_kind,
			target = excluded.target,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, tenantID, rule.Owner, string(criteria),
		rule.TargetKind, rule.Target, now, now,
	)
	return err
}

// GetRoutingRule retrieves a routing rule by ID with tenant isolation.
func (r *SQLRepository) GetRoutingRule(ctx context.Context, tenantID string, ruleID string) (*domain.RoutingRule, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, owner, criteria, target_kind, target, created_at, updated_at
		FROM routing_rules
		WHERE tenant_id = ? AND id = ?
	`

	var rule domain.RoutingRule
	var criteria string

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, ruleID).Scan(
		&rule.ID, &rule.TenantID, &rule.Owner, &criteria,
		&rule.TargetKind, &rule.Target, &rule.CreatedAt, &rule.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(criteria), &rule.Criteria); err != nil {
		return nil, fmt.Errorf("failed to parse criteria for %s: %w", rule.ID, err)
	}

	return &rule, nil
}

// ListRoutingRules retrieves all routing rules for a tenant.
func (r *SQLRepository) ListRoutingRules(ctx context.Context, tenantID string) ([]*domain.RoutingRule, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, owner, criteria, target_kind, target, created_at, updated_at
		FROM routing_rules
		WHERE tenant_id = ?
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*domain.RoutingRule
	for rows.Next() {
		var rule domain.RoutingRule
		var criteria string

		if err := rows.Scan(
			&rule.ID, &rule.TenantID, &rule.Owner, &criteria,
			&rule.TargetKind, &rule.Target, &rule.CreatedAt, &rule.UpdatedAt,
		); err != nil {
			return nil, err
		}

		if err := json.Unmarshal([]byte(criteria), &rule.Criteria); err != nil {
			return nil, fmt.Errorf("failed to parse criteria for %s: %w", rule.ID, err)
		}
		rules = append(rules, &rule)
	}

	return rules, rows.Err()
}

// DeleteRoutingRule removes a routing rule.
func (r *SQLRepository) DeleteRoutingRule(ctx context.Context, tenantID string, ruleID string) error {
	return r.deleteByID(ctx, tenantID, "routing_rules", "id", ruleID)
}

// SaveCommissionConfig upserts a commission config with tenant isolation.
func (r *SQLRepository) SaveCommissionConfig(ctx context.Context, tenantID string, cfg *domain.CommissionConfig) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	criteria, _ := json.Marshal(cfg.Criteria)
	now := time.Now().UTC()

	query := `
		INSERT INTO commission_configs (
			id, tenant_id, cid, criteria, fixed_commission, rate,
			min_fee, max_fee, min_rate, max_rate, min_usd_fee, max_usd_fee,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, tenant_id) DO UPDATE SET
			cid = excluded.cid,
			criteria = excluded.criteria,
			fixed_commission = excluded.fixed_commission,
			rate = excluded.rate,
			min_fee = excluded.min_fee,
			max_fee = excluded.max_fee,
			min_rate = excluded.min_rate,
			max_rate = excluded.max_rate,
			min_usd_fee = excluded.min_usd_fee,
			max_usd_fee = excluded.max_usd_fee,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		cfg.ID, tenantID, cfg.CID, string(criteria),
		cfg.FixedCommission, cfg.Rate,
		cfg.MinFee, cfg.MaxFee, cfg.MinRate, cfg.MaxRate,
		cfg.MinUSDFee, cfg.MaxUSDFee,
		now, now,
	)
	return err
}

// GetCommissionConfig retrieves a commission config by ID with tenant isolation.
func (r *SQLRepository) GetCommissionConfig(ctx context.Context, tenantID string, cfgID string) (*domain.CommissionConfig, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, cid, criteria, fixed_commission, rate,
			   min_fee, max_fee, min_rate, max_rate, min_usd_fee, max_usd_fee,
			   created_at, updated_at
		FROM commission_configs
		WHERE tenant_id = ? AND id = ?
	`

	var cfg domain.CommissionConfig
	var criteria string

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, cfgID).Scan(
		&cfg.ID, &cfg.TenantID, &cfg.CID, &criteria,
		&cfg.FixedCommission, &cfg.Rate,
		&cfg.MinFee, &cfg.MaxFee, &cfg.MinRate, &cfg.MaxRate,
		&cfg.MinUSDFee, &cfg.MaxUSDFee,
		&cfg.CreatedAt, &cfg.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(criteria), &cfg.Criteria); err != nil {
		return nil, fmt.Errorf("failed to parse criteria for %s: %w", cfg.ID, err)
	}

	return &cfg, nil
}

// ListCommissionConfigs retrieves all commission configs for a tenant.
func (r *SQLRepository) ListCommissionConfigs(ctx context.Context, tenantID string) ([]*domain.CommissionConfig, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, cid, criteria, fixed_commission, rate,
			   min_fee, max_fee, min_rate, max_rate, min_usd_fee, max_usd_fee,
			   created_at, updated_at
		FROM commission_configs
		WHERE tenant_id = ?
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var configs []*domain.CommissionConfig
	for rows.Next() {
		var cfg domain.CommissionConfig
		var criteria string

		if err := rows.Scan(
			&cfg.ID, &cfg.TenantID, &cfg.CID, &criteria,
			&cfg.FixedCommission, &cfg.Rate,
			&cfg.MinFee, &cfg.MaxFee, &cfg.MinRate, &cfg.MaxRate,
			&cfg.MinUSDFee, &cfg.MaxUSDFee,
			&cfg.CreatedAt, &cfg.UpdatedAt,
		); err != nil {
			return nil, err
		}

		if err := json.Unmarshal([]byte(criteria), &cfg.Criteria); err != nil {
			return nil, fmt.Errorf("failed to parse criteria for %s: %w", cfg.ID, err)
		}
		configs = append(configs, &cfg)
	}

	return configs, rows.Err()
}

// DeleteCommissionConfig removes a commission config.
func (r *SQLRepository) DeleteCommissionConfig(ctx context.Context, tenantID string, cfgID string) error {
	return r.deleteByID(ctx, tenantID, "commission_configs", "id", cfgID)
}

// SaveDispatchRouter upserts a dispatch router with tenant isolation.
func (r *SQLRepository) SaveDispatchRouter(ctx context.Context, tenantID string, router *domain.DispatchRouter) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	criteria, _ := json.Marshal(router.Criteria)
	now := time.Now().UTC()

	query := `
		INSERT INTO dispatch_routers (
			id, tenant_id, owner, criteria, strategy_code, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, tenant_id) DO UPDATE SET
			owner = excluded.owner,
			criteria = excluded.criteria,
			strategy_code = excluded.strategy_code,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		router.ID, tenantID, router.Owner, string(criteria),
		router.StrategyCode, now, now,
	)
	return err
}

// GetDispatchRouter retrieves a dispatch router by ID with tenant isolation.
func (r *SQLRepository) GetDispatchRouter(ctx context.Context, tenantID string, routerID string) (*domain.DispatchRouter, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, owner, criteria, strategy_code, created_at, updated_at
		FROM dispatch_routers
		WHERE tenant_id = ? AND id = ?
	`

	var router domain.DispatchRouter
	var criteria string

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, routerID).Scan(
		&router.ID, &router.TenantID, &router.Owner, &criteria,
		&router.StrategyCode, &router.CreatedAt, &router.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(criteria), &router.Criteria); err != nil {
		return nil, fmt.Errorf("failed to parse criteria for %s: %w", router.ID, err)
	}

	return &router, nil
}

// ListDispatchRouters retrieves all dispatch routers for a tenant.
func (r *SQLRepository) ListDispatchRouters(ctx context.Context, tenantID string) ([]*domain.DispatchRouter, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, owner, criteria, strategy_code, created_at, updated_at
		FROM dispatch_routers
		WHERE tenant_id = ?
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var routers []*domain.DispatchRouter
	for rows.Next() {
		var router domain.DispatchRouter
		var criteria string

		if err := rows.Scan(
			&router.ID, &router.TenantID, &router.Owner, &criteria,
			&router.StrategyCode, &router.CreatedAt, &router.UpdatedAt,
		); err != nil {
			return nil, err
		}

		if err := json.Unmarshal([]byte(criteria), &router.Criteria); err != nil {
			return nil, fmt.Errorf("failed to parse criteria for %s: %w", router.ID, err)
		}
		routers = append(routers, &router)
	}

	return routers, rows.Err()
}

// DeleteDispatchRouter removes a dispatch router.
func (r *SQLRepository) DeleteDispatchRouter(ctx context.Context, tenantID string, routerID string) error {
	return r.deleteByID(ctx, tenantID, "dispatch_routers", "id", routerID)
}

// SaveDispatchStrategy upserts a dispatch strategy, keyed by code.
func (r *SQLRepository) SaveDispatchStrategy(ctx context.Context, tenantID string, strategy *domain.DispatchStrategy) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	criteria, _ := json.Marshal(strategy.Criteria)
	rules, _ := json.Marshal(strategy.Rules)
	now := time.Now().UTC()

	query := `
		INSERT INTO dispatch_strategies (
			id, tenant_id, code, version, criteria, rules, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(code, tenant_id) DO UPDATE SET
			id = excluded.id,
			version = excluded.version,
			criteria = excluded.criteria,
			rules = excluded.rules,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		strategy.ID, tenantID, strategy.Code, strategy.Version,
		string(criteria), string(rules), now, now,
	)
	return err
}

// GetDispatchStrategy retrieves a dispatch strategy by code with tenant isolation.
func (r *SQLRepository) GetDispatchStrategy(ctx context.Context, tenantID string, code string) (*domain.DispatchStrategy, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, code, version, criteria, rules, created_at, updated_at
		FROM dispatch_strategies
		WHERE tenant_id = ? AND code = ?
	`

	var strategy domain.DispatchStrategy
	var criteria, rules string

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, code).Scan(
		&strategy.ID, &strategy.TenantID, &strategy.Code, &strategy.Version,
		&criteria, &rules, &strategy.CreatedAt, &strategy.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(criteria), &strategy.Criteria); err != nil {
		return nil, fmt.Errorf("failed to parse criteria for %s: %w", strategy.Code, err)
	}
	if err := json.Unmarshal([]byte(rules), &strategy.Rules); err != nil {
		return nil, fmt.Errorf("failed to parse rules for %s: %w", strategy.Code, err)
	}

	return &strategy, nil
}

// ListDispatchStrategies retrieves all dispatch strategies for a tenant.
func (r *SQLRepository) ListDispatchStrategies(ctx context.Context, tenantID string) ([]*domain.DispatchStrategy, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, code, version, criteria, rules, created_at, updated_at
		FROM dispatch_strategies
		WHERE tenant_id = ?
		ORDER BY code
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var strategies []*domain.DispatchStrategy
	for rows.Next() {
		var strategy domain.DispatchStrategy
		var criteria, rules string

		if err := rows.Scan(
			&strategy.ID, &strategy.TenantID, &strategy.Code, &strategy.Version,
			&criteria, &rules, &strategy.CreatedAt, &strategy.UpdatedAt,
		); err != nil {
			return nil, err
		}

		if err := json.Unmarshal([]byte(criteria), &strategy.Criteria); err != nil {
			return nil, fmt.Errorf("failed to parse criteria for %s: %w", strategy.Code, err)
		}
		if err := json.Unmarshal([]byte(rules), &strategy.Rules); err != nil {
			return nil, fmt.Errorf("failed to parse rules for %s: %w", strategy.Code, err)
		}
		strategies = append(strategies, &strategy)
	}

	return strategies, rows.Err()
}

// DeleteDispatchStrategy removes a dispatch strategy by code.
func (r *SQLRepository) DeleteDispatchStrategy(ctx context.Context, tenantID string, code string) error {
	return r.deleteByID(ctx, tenantID, "dispatch_strategies", "code", code)
}

// SaveContract upserts a contract, keyed by subject.
func (r *SQLRepository) SaveContract(ctx context.Context, tenantID string, contract *domain.Contract) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	payin, _ := json.Marshal(contract.Payin)
	payout, _ := json.Marshal(contract.Payout)
	now := time.Now().UTC()

	query := `
		INSERT INTO contracts (
			id, tenant_id, subject_id, payin, payout, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(subject_id, tenant_id) DO UPDATE SET
			id = excluded.id,
			payin = excluded.payin,
			payout = excluded.payout,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		contract.ID, tenantID, contract.SubjectID,
		string(payin), string(payout), now, now,
	)
	return err
}

// GetContract retrieves a contract by subject with tenant isolation.
func (r *SQLRepository) GetContract(ctx context.Context, tenantID string, subjectID string) (*domain.Contract, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, subject_id, payin, payout, created_at, updated_at
		FROM contracts
		WHERE tenant_id = ? AND subject_id = ?
	`

	var contract domain.Contract
	var payin, payout string

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, subjectID).Scan(
		&contract.ID, &contract.TenantID, &contract.SubjectID,
		&payin, &payout, &contract.CreatedAt, &contract.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(payin), &contract.Payin); err != nil {
		return nil, fmt.Errorf("failed to parse payin binding for %s: %w", subjectID, err)
	}
	if err := json.Unmarshal([]byte(payout), &contract.Payout); err != nil {
		return nil, fmt.Errorf("failed to parse payout binding for %s: %w", subjectID, err)
	}

	return &contract, nil
}

// DeleteContract removes a contract by subject.
func (r *SQLRepository) DeleteContract(ctx context.Context, tenantID string, subjectID string) error {
	return r.deleteByID(ctx, tenantID, "contracts", "subject_id", subjectID)
}

// SaveCandidate upserts a candidate snapshot row.
func (r *SQLRepository) SaveCandidate(ctx context.Context, tenantID string, candidate *domain.Candidate) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	data, _ := json.Marshal(candidate)
	now := time.Now().UTC()

	query := `
		INSERT INTO candidates (
			id, tenant_id, subject_id, data, updated_at
		) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id, tenant_id) DO UPDATE SET
			subject_id = excluded.subject_id,
			data = excluded.data,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		candidate.ID, tenantID, candidate.SubjectID, string(data), now,
	)
	return err
}

// ListCandidates retrieves the candidate rows for a subject.
func (r *SQLRepository) ListCandidates(ctx context.Context, tenantID string, subjectID string) ([]domain.Candidate, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT data
		FROM candidates
		WHERE tenant_id = ? AND subject_id = ?
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID, subjectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candidates []domain.Candidate
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}

		var cand domain.Candidate
		if err := json.Unmarshal([]byte(data), &cand); err != nil {
			return nil, fmt.Errorf("failed to parse candidate row: %w", err)
		}
		candidates = append(candidates, cand)
	}

	return candidates, rows.Err()
}

// SaveDecision stores a decision audit record with tenant isolation.
func (r *SQLRepository) SaveDecision(ctx context.Context, tenantID string, decision *domain.Decision) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	ordered, _ := json.Marshal(decision.Ordered)
	trace, _ := json.Marshal(decision.Trace)
	metadata, _ := json.Marshal(decision.Metadata)

	query := `
		INSERT INTO decisions (
			id, tenant_id, kind, status, subject_id, trx_type, amount, currency,
			rule_id, strategy_code, ordered, trace, timestamp, metadata
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		decision.ID, tenantID, decision.Kind, decision.Status,
		decision.SubjectID, decision.TrxType, decision.Amount, decision.Currency,
		decision.RuleID, decision.StrategyCode,
		string(ordered), string(trace), decision.Timestamp, string(metadata),
	)
	return err
}

// GetDecision retrieves a decision by ID with tenant isolation.
func (r *SQLRepository) GetDecision(ctx context.Context, tenantID string, decisionID string) (*domain.Decision, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, kind, status, subject_id, trx_type, amount, currency,
			   rule_id, strategy_code, ordered, trace, timestamp, metadata
		FROM decisions
		WHERE tenant_id = ? AND id = ?
	`

	var decision domain.Decision
	var ordered, trace, metadata string

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, decisionID).Scan(
		&decision.ID, &decision.TenantID, &decision.Kind, &decision.Status,
		&decision.SubjectID, &decision.TrxType, &decision.Amount, &decision.Currency,
		&decision.RuleID, &decision.StrategyCode,
		&ordered, &trace, &decision.Timestamp, &metadata,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	json.Unmarshal([]byte(ordered), &decision.Ordered)
	json.Unmarshal([]byte(trace), &decision.Trace)
	json.Unmarshal([]byte(metadata), &decision.Metadata)

	return &decision, nil
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// deleteByID removes one row by key column, reporting ErrNotFound when no
// row matched.
func (r *SQLRepository) deleteByID(ctx context.Context, tenantID, table, keyCol, key string) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE tenant_id = ? AND %s = ?`, table, keyCol)

	result, err := r.db.ExecContext(ctx, r.rebind(query), tenantID, key)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
