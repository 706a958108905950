// Package policytrust evaluates an operator-supplied Rego bundle that maps
// a trust level to its required verification proofs. It is an optional
// override for the built-in static table.
package policytrust

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/open-policy-agent/opa/ast"
	"github.com/open-policy-agent/opa/rego"

	"github.com/CapTomas/Proofo-sub002/internal/domain"
)

const defaultQuery = "data.proofo.trust.result"

type Engine struct {
	query rego.PreparedEvalQuery
}

type policyInput struct {
	TrustLevel string `json:"trust_level"`
}

type policyResult struct {
	EmailRequired bool `json:"email_required"`
	PhoneRequired bool `json:"phone_required"`
}

// NewEngineFromBundlePath compiles and prepares the bundle once at
// startup. A bundle that fails to compile, or that reaches for builtins
// outside the allowed set, is rejected before the server starts serving.
func NewEngineFromBundlePath(ctx context.Context, bundlePath string) (*Engine, error) {
	capabilities := ast.CapabilitiesForThisVersion()
	capabilities.Builtins = filterBuiltins(capabilities.Builtins)
	compiler := ast.NewCompiler().WithCapabilities(capabilities)

	r := rego.New(
		rego.Query(defaultQuery),
		rego.Compiler(compiler),
		rego.StrictBuiltinErrors(true),
		rego.Load([]string{bundlePath}, nil),
	)
	prepared, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare trust bundle %s: %w", bundlePath, err)
	}
	return &Engine{query: prepared}, nil
}

// Requirements implements usecase.TrustEvaluator.
func (e *Engine) Requirements(ctx context.Context, level domain.TrustLevel) (domain.TrustRequirements, error) {
	if e == nil {
		return domain.TrustRequirements{}, errors.New("trust policy engine is nil")
	}
	results, err := e.query.Eval(ctx, rego.EvalInput(policyInput{TrustLevel: string(level)}))
	if err != nil {
		return domain.TrustRequirements{}, err
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return domain.TrustRequirements{}, errors.New("empty trust policy result")
	}
	result, err := decodeResult(results[0].Expressions[0].Value)
	if err != nil {
		return domain.TrustRequirements{}, err
	}
	return domain.TrustRequirements{
		EmailRequired: result.EmailRequired,
		PhoneRequired: result.PhoneRequired,
	}, nil
}

func decodeResult(value any) (policyResult, error) {
	payload, err := json.Marshal(value)
	if err != nil {
		return policyResult{}, err
	}
	var result policyResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return policyResult{}, err
	}
	return result, nil
}
