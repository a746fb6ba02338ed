package cel

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"

	"diagflow/pkg/models"
)

// Evaluator compiles boolean CEL expressions over message fields.
//
// Variables: id, kind, text, scope, depth, timestamp, thread_id, thread_name,
// payload_kind, and origin (a map with file, namespace, type, method, line).
type Evaluator struct {
	env *cel.Env
}

func NewEvaluator() (*Evaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("id", cel.StringType),
		cel.Variable("kind", cel.StringType),
		cel.Variable("text", cel.StringType),
		cel.Variable("scope", cel.StringType),
		cel.Variable("depth", cel.IntType),
		cel.Variable("timestamp", cel.TimestampType),
		cel.Variable("thread_id", cel.IntType),
		cel.Variable("thread_name", cel.StringType),
		cel.Variable("payload_kind", cel.StringType),
		cel.Variable("origin", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Evaluator{env: env}, nil
}

func (e *Evaluator) ValidateExpression(expression string) error {
	_, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return fmt.Errorf("CEL expression validation failed: %w", issues.Err())
	}
	return nil
}

func (e *Evaluator) ValidateFilterExpression(expression string) error {
	_, err := e.compileBool(expression)
	return err
}

// Compile returns a reusable program for a boolean expression.
func (e *Evaluator) Compile(expression string) (*Program, error) {
	ast, err := e.compileBool(expression)
	if err != nil {
		return nil, err
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}

	return &Program{expression: expression, program: program}, nil
}

func (e *Evaluator) compileBool(expression string) (*cel.Ast, error) {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("CEL expression validation failed: %w", issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("filter expression must return bool, got %v", ast.OutputType())
	}

	return ast, nil
}

// EvaluateFilter compiles and runs expression once against msg.
func (e *Evaluator) EvaluateFilter(ctx context.Context, expression string, msg *models.Message) (bool, error) {
	program, err := e.Compile(expression)
	if err != nil {
		return false, err
	}
	return program.Eval(ctx, msg)
}

// Program is a compiled boolean expression, safe for concurrent use.
type Program struct {
	expression string
	program    cel.Program
}

func (p *Program) Expression() string {
	return p.expression
}

func (p *Program) Eval(ctx context.Context, msg *models.Message) (bool, error) {
	result, _, err := p.program.ContextEval(ctx, Vars(msg))
	if err != nil {
		return false, fmt.Errorf("failed to evaluate CEL expression: %w", err)
	}

	boolVal, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("CEL expression did not return bool, got %T", result.Value())
	}

	return boolVal, nil
}

// Vars builds the activation for msg.
func Vars(msg *models.Message) map[string]interface{} {
	depth := int64(0)
	if msg.Scope != nil {
		depth = int64(msg.Scope.Depth)
	}

	return map[string]interface{}{
		"id":           msg.ID,
		"kind":         string(msg.Kind),
		"text":         msg.Text,
		"scope":        msg.ScopeName(),
		"depth":        depth,
		"timestamp":    msg.Timestamp,
		"thread_id":    msg.ThreadID,
		"thread_name":  msg.ThreadName,
		"payload_kind": string(msg.PayloadKind),
		"origin": map[string]interface{}{
			"file":        msg.Origin.File,
			"namespace":   msg.Origin.Namespace,
			"type":        msg.Origin.Type,
			"method":      msg.Origin.Method,
			"line":        int64(msg.Origin.Line),
			"method_kind": string(msg.Origin.MethodKind),
		},
	}
}
