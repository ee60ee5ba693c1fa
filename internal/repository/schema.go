package repository

// Schema definitions for the Kestrel database.
// Compatible with both SQLite and PostgreSQL. Match criteria and clause sets
// are stored as JSON documents; the columns the resolver scopes on are
// broken out for indexing.

const schemaRoutingRules = `
CREATE TABLE IF NOT EXISTS routing_rules (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    owner TEXT NOT NULL DEFAULT '',
    criteria TEXT NOT NULL,
    target_kind TEXT NOT NULL,
    target TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, tenant_id)
);

CREATE INDEX IF NOT EXISTS idx_routing_rules_tenant ON routing_rules(tenant_id);
CREATE INDEX IF NOT EXISTS idx_routing_rules_owner ON routing_rules(tenant_id, owner);
`

const schemaCommissionConfigs = `
CREATE TABLE IF NOT EXISTS commission_configs (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    cid TEXT NOT NULL DEFAULT '',
    criteria TEXT NOT NULL,
    fixed_commission REAL NOT NULL DEFAULT 0,
    rate REAL NOT NULL DEFAULT 0,
    min_fee REAL NOT NULL DEFAULT 0,
    max_fee REAL NOT NULL DEFAULT 0,
    min_rate REAL NOT NULL DEFAULT 0,
    max_rate REAL NOT NULL DEFAULT 0,
    min_usd_fee REAL NOT NULL DEFAULT 0,
    max_usd_fee REAL NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, tenant_id)
);

CREATE INDEX IF NOT EXISTS idx_commission_configs_tenant ON commission_configs(tenant_id);
CREATE INDEX IF NOT EXISTS idx_commission_configs_cid ON commission_configs(tenant_id, cid);
`

const schemaDispatchRouters = `
CREATE TABLE IF NOT EXISTS dispatch_routers (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    owner TEXT NOT NULL DEFAULT '',
    criteria TEXT NOT NULL,
    strategy_code TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, tenant_id)
);

CREATE INDEX IF NOT EXISTS idx_dispatch_routers_tenant ON dispatch_routers(tenant_id);
CREATE INDEX IF NOT EXISTS idx_dispatch_routers_strategy ON dispatch_routers(tenant_id, strategy_code);
`

const schemaDispatchStrategies = `
CREATE TABLE IF NOT EXISTS dispatch_strategies (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    code TEXT NOT NULL,
    version TEXT NOT NULL,
    criteria TEXT NOT NULL,
    rules TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (code, tenant_id)
);

CREATE INDEX IF NOT EXISTS idx_dispatch_strategies_tenant ON dispatch_strategies(tenant_id);
`

const schemaContracts = `
CREATE TABLE IF NOT EXISTS contracts (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    subject_id TEXT NOT NULL,
    payin TEXT NOT NULL,
    payout TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (subject_id, tenant_id)
);

CREATE INDEX IF NOT EXISTS idx_contracts_tenant ON contracts(tenant_id);
`

const schemaCandidates = `
CREATE TABLE IF NOT EXISTS candidates (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    subject_id TEXT NOT NULL,
    data TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, tenant_id)
);

CREATE INDEX IF NOT EXISTS idx_candidates_tenant ON candidates(tenant_id);
CREATE INDEX IF NOT EXISTS idx_candidates_subject ON candidates(tenant_id, subject_id);
`

const schemaDecisions = `
CREATE TABLE IF NOT EXISTS decisions (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    kind TEXT NOT NULL,
    status TEXT NOT NULL,
    subject_id TEXT NOT NULL,
    trx_type TEXT NOT NULL,
    amount REAL NOT NULL,
    currency TEXT,
    rule_id TEXT,
    strategy_code TEXT,
    ordered TEXT,
    trace TEXT,
    timestamp TIMESTAMP NOT NULL,
    metadata TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_decisions_tenant ON decisions(tenant_id);
CREATE INDEX IF NOT EXISTS idx_decisions_subject ON decisions(tenant_id, subject_id);
CREATE INDEX IF NOT EXISTS idx_decisions_kind ON decisions(tenant_id, kind);
CREATE INDEX IF NOT EXISTS idx_decisions_timestamp ON decisions(tenant_id, timestamp);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaRoutingRules,
		schemaCommissionConfigs,
		schemaDispatchRouters,
		schemaDispatchStrategies,
		schemaContracts,
		schemaCandidates,
		schemaDecisions,
	}
}
