// Package cel provides the CEL evaluator for deny-overlay conditions.
//
// Overlays are operator-authored emergency rules layered ahead of the base
// rule table. They can only deny: a matching overlay blocks the request,
// and a non-matching one leaves the decision to the base table. Because no
// overlay can grant, the base table's guarantees survive any overlay set.
package cel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/cel-go/cel"

	"github.com/parcelgate/parcelgate/internal/domain/access"
	"github.com/parcelgate/parcelgate/internal/domain/document"
	"github.com/parcelgate/parcelgate/internal/domain/principal"
)

// maxExpressionLength is the maximum allowed length for overlay conditions.
const maxExpressionLength = 1024

// maxCostBudget is the CEL runtime cost limit per evaluation.
const maxCostBudget = 100_000

// maxNestingDepth is the maximum parenthesis/bracket nesting depth.
const maxNestingDepth = 50

// evalTimeout bounds a single condition evaluation.
const evalTimeout = 5 * time.Second

// interruptCheckFreq is how often (in comprehension iterations) context
// cancellation is checked.
const interruptCheckFreq = 100

// Evaluator compiles and evaluates overlay conditions.
type Evaluator struct {
	env *cel.Env
}

// NewEvaluator creates an evaluator with the overlay environment.
func NewEvaluator() (*Evaluator, error) {
	env, err := NewOverlayEnvironment()
	if err != nil {
		return nil, fmt.Errorf("create overlay environment: %w", err)
	}
	return &Evaluator{env: env}, nil
}

// Compile parses and type-checks a condition, returning a compiled program.
func (e *Evaluator) Compile(expression string) (cel.Program, error) {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compilation failed: %w", issues.Err())
	}
	if out := ast.OutputType(); out == nil || !out.IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("condition must be boolean, got %v", ast.OutputType())
	}

	prg, err := e.env.Program(ast,
		cel.EvalOptions(cel.OptOptimize),
		cel.CostLimit(maxCostBudget),
		cel.InterruptCheckFrequency(interruptCheckFreq),
	)
	if err != nil {
		return nil, fmt.Errorf("program creation failed: %w", err)
	}

	return prg, nil
}

// ValidateExpression checks that a condition is syntactically valid and
// within the safety limits before it is accepted from configuration.
func (e *Evaluator) ValidateExpression(expr string) error {
	if expr == "" {
		return errors.New("expression is empty")
	}
	if len(expr) > maxExpressionLength {
		return fmt.Errorf("expression too long: %d characters (max %d)", len(expr), maxExpressionLength)
	}
	if err := validateNesting(expr); err != nil {
		return err
	}
	if _, err := e.Compile(expr); err != nil {
		return fmt.Errorf("invalid overlay condition: %w", err)
	}
	return nil
}

// validateNesting checks the expression's parenthesis/bracket/brace depth.
func validateNesting(expr string) error {
	var depth, maxDepth int
	for _, ch := range expr {
		switch ch {
		case '(', '[', '{':
			depth++
			if depth > maxDepth {
				maxDepth = depth
			}
		case ')', ']', '}':
			depth--
		}
	}
	if maxDepth > maxNestingDepth {
		return fmt.Errorf("expression nesting too deep: %d levels (max %d)", maxDepth, maxNestingDepth)
	}
	return nil
}

// Evaluate runs a compiled condition against a request activation.
// Returns true when the overlay matches (and should deny). An evaluation
// error is returned to the caller, which must treat it as a match:
// an erroring deny rule fails closed.
func (e *Evaluator) Evaluate(prg cel.Program, activation map[string]any) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), evalTimeout)
	defer cancel()

	result, _, err := prg.ContextEval(ctx, activation)
	if err != nil {
		return false, fmt.Errorf("evaluation failed: %w", err)
	}

	matched, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("condition did not return a boolean, got %T", result.Value())
	}

	return matched, nil
}

// DocumentActivation builds the variable bindings for a document request.
// changed_fields is only meaningful for writes; reads and deletes carry no
// proposed state, so they bind an empty list rather than every existing
// field.
func DocumentActivation(req access.Request, p principal.Principal) map[string]any {
	changed := []string{}
	if req.Operation == access.OperationCreate || req.Operation == access.OperationUpdate {
		changed = document.ChangedFields(req.Existing, req.Proposed)
	}
	return map[string]any{
		"operation":      string(req.Operation),
		"collection":     req.Collection,
		"doc_id":         req.DocumentID,
		"object_path":    "",
		"subject_id":     p.Subject,
		"role":           string(p.Role),
		"authenticated":  p.Authenticated(),
		"changed_fields": changed,
	}
}

// StorageActivation builds the variable bindings for a storage request.
func StorageActivation(req access.StorageRequest, p principal.Principal) map[string]any {
	return map[string]any{
		"operation":      string(req.Operation),
		"collection":     "",
		"doc_id":         "",
		"object_path":    req.Path,
		"subject_id":     p.Subject,
		"role":           string(p.Role),
		"authenticated":  p.Authenticated(),
		"changed_fields": []string{},
	}
}
