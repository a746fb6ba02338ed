package diag

import (
	"fmt"
	"reflect"
	"strings"

	"diagflow/pkg/errors"
)

// checkFormat fails when applying args to format would make fmt emit one of
// its inline error markers: a bad verb for the operand type, a missing or
// extra argument, a bad width or index, or a panicking String or Error
// method. Argument values never reach the check; each one is replaced by the
// zero value of its type, so text inside an argument cannot look like an
// error.
func checkFormat(format string, args []interface{}) error {
	shape := make([]interface{}, len(args))
	for i, arg := range args {
		if err := callTextMethod(arg); err != nil {
			return err
		}
		shape[i] = standIn(arg)
	}

	// with literal percent signs gone, every remaining "%" starts a directive
	out := fmt.Sprintf(strings.ReplaceAll(format, "%%", ""), shape...)
	if strings.Contains(out, "%!") {
		return errors.ErrFormat.
			WithMessage("malformed format %q", format).
			WithDetail("check", out)
	}
	return nil
}

// blank accepts every verb and prints nothing.
type blank struct{}

func (blank) Format(fmt.State, rune) {}

func standIn(arg interface{}) interface{} {
	switch arg.(type) {
	case nil:
		return nil
	case fmt.Formatter, fmt.Stringer, fmt.GoStringer, error:
		return blank{}
	}
	return reflect.Zero(reflect.TypeOf(arg)).Interface()
}

// callTextMethod runs the String or Error method fmt would call on arg and
// turns a panic into a format error. fmt prints nil pointer receivers as
// "<nil>", so those are left alone.
func callTextMethod(arg interface{}) (err error) {
	var text func() string
	switch v := arg.(type) {
	case error:
		text = v.Error
	case fmt.Stringer:
		text = v.String
	default:
		return nil
	}
	if rv := reflect.ValueOf(arg); rv.Kind() == reflect.Ptr && rv.IsNil() {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			err = errors.ErrFormat.WithCause(errors.RecoverPanic(r))
		}
	}()
	text()
	return nil
}
