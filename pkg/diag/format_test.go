package diag

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type panicky struct{}

func (panicky) Error() string { panic("no text") }

func TestCheckFormat(t *testing.T) {
	tests := []struct {
		name    string
		format  string
		args    []interface{}
		wantErr bool
	}{
		{"plain", "ready", nil, false},
		{"literal percent", "100%% done", nil, false},
		{"literal percent before bang", "95%%!", nil, false},
		{"marker inside argument", "usage %s", []interface{}{"95%!"}, false},
		{"marker inside error text", "failed: %v", []interface{}{errors.New("%!s(MISSING)")}, false},
		{"star width", "%*d", []interface{}{3, 9}, false},
		{"explicit index", "%[1]s %[1]q", []interface{}{"x"}, false},
		{"nil operand", "%v", []interface{}{nil}, false},
		{"bad verb for type", "%d", []interface{}{"x"}, true},
		{"missing argument", "%s %s", []interface{}{"x"}, true},
		{"extra argument", "done", []interface{}{1}, true},
		{"no verb", "load 95%!", nil, true},
		{"bad index", "%[3]s", []interface{}{"x"}, true},
		{"panicking error method", "%v", []interface{}{panicky{}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkFormat(tt.format, tt.args)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
