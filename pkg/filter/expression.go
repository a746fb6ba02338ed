package filter

import (
	"context"

	"diagflow/pkg/cel"
	"diagflow/pkg/logger"
	"diagflow/pkg/models"
)

// ExpressionFilter matches messages for which a CEL expression is true.
// Evaluation errors count as no match and are logged as warnings.
type ExpressionFilter struct {
	Base
	program *cel.Program
	logger  logger.Logger
}

func NewExpressionFilter(id int, implication Implication, eval *cel.Evaluator, expression string, log logger.Logger) (*ExpressionFilter, error) {
	program, err := eval.Compile(expression)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NopLogger()
	}
	return &ExpressionFilter{
		Base:    Base{id: id, implication: implication},
		program: program,
		logger:  log,
	}, nil
}

func (f *ExpressionFilter) Expression() string {
	return f.program.Expression()
}

func (f *ExpressionFilter) Match(msg *models.Message) bool {
	ok, err := f.program.Eval(context.Background(), msg)
	if err != nil {
		f.logger.Warnw("Filter expression failed",
			"filter_id", f.id,
			"expression", f.program.Expression(),
			"message_id", msg.ID,
			"error", err,
		)
		return false
	}
	return ok
}
