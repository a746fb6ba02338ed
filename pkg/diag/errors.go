package diag

import (
	"diagflow/pkg/errors"
	"diagflow/pkg/models"
)

// AssertionError is returned by the assert family when an assertion fails
// and AssertShouldThrow is in effect. It matches errors.ErrAssertion.
type AssertionError struct {
	Message *models.Message
}

func (e *AssertionError) Error() string {
	return errors.ErrAssertion.Code + ": " + e.Message.Text
}

func (e *AssertionError) Unwrap() error {
	return errors.ErrAssertion.
		WithMessage("%s", e.Message.Text).
		WithDetail("message_id", e.Message.ID).
		WithDetail("origin", e.Message.Origin.String())
}
