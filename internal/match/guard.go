package match

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/opensource-finance/kestrel/internal/domain"
)

// GuardSet compiles and caches the optional CEL guard expressions rules may
// carry. Programs are compiled once per distinct expression and reused across
// resolutions.
type GuardSet struct {
	mu       sync.RWMutex
	env      *cel.Env
	programs map[string]cel.Program
}

// NewGuardSet creates a guard compiler with the transaction context variables.
func NewGuardSet() (*GuardSet, error) {
	env, err := cel.NewEnv(
		cel.Variable("subject_id", cel.StringType),
		cel.Variable("trx_type", cel.StringType),
		cel.Variable("trx_method", cel.StringType),
		cel.Variable("ccy", cel.StringType),
		cel.Variable("country", cel.StringType),
		cel.Variable("amount", cel.DoubleType),
		cel.Variable("usd_amount", cel.DoubleType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &GuardSet{
		env:      env,
		programs: make(map[string]cel.Program),
	}, nil
}

// Compile validates a guard expression and caches its program. A guard must
// evaluate to bool; anything else is an invalid rule configuration.
func (g *GuardSet) Compile(expr string) (cel.Program, error) {
	g.mu.RLock()
	program, ok := g.programs[expr]
	g.mu.RUnlock()
	if ok {
		return program, nil
	}

	ast, issues := g.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("%w: guard %q: %v", domain.ErrInvalidRuleConfiguration, expr, issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("%w: guard %q must return bool, got %s",
			domain.ErrInvalidRuleConfiguration, expr, ast.OutputType())
	}

	program, err := g.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("%w: guard %q: %v", domain.ErrInvalidRuleConfiguration, expr, err)
	}

	g.mu.Lock()
	g.programs[expr] = program
	g.mu.Unlock()

	return program, nil
}

// Eval evaluates a guard against a transaction context.
func (g *GuardSet) Eval(expr string, tc domain.TransactionContext) (bool, error) {
	program, err := g.Compile(expr)
	if err != nil {
		return false, err
	}

	out, _, err := program.Eval(map[string]any{
		"subject_id": tc.SubjectID,
		"trx_type":   tc.TrxType,
		"trx_method": tc.TrxMethod,
		"ccy":        tc.Currency,
		"country":    tc.Country,
		"amount":     tc.Amount,
		"usd_amount": tc.USDAmount,
	})
	if err != nil {
		return false, fmt.Errorf("%w: guard %q: evaluation error: %v",
			domain.ErrInvalidRuleConfiguration, expr, err)
	}

	b, ok := out.(types.Bool)
	if !ok {
		return false, fmt.Errorf("%w: guard %q returned non-bool",
			domain.ErrInvalidRuleConfiguration, expr)
	}
	return bool(b), nil
}
