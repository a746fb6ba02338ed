package filter

import (
	"encoding/json"

	"github.com/tidwall/gjson"

	"diagflow/pkg/models"
)

// PayloadFilter inspects JSON payloads with a gjson path. With an empty
// value it matches when the path exists, otherwise when the path's string
// form equals value. Non-JSON payloads never match.
type PayloadFilter struct {
	Base
	path  string
	value string
}

func NewPayloadFilter(id int, implication Implication, path, value string) *PayloadFilter {
	return &PayloadFilter{Base: Base{id: id, implication: implication}, path: path, value: value}
}

func (f *PayloadFilter) Path() string  { return f.path }
func (f *PayloadFilter) Value() string { return f.value }

func (f *PayloadFilter) Match(msg *models.Message) bool {
	if msg.PayloadKind != models.PayloadJSON {
		return false
	}

	var result gjson.Result
	switch p := msg.Payload.(type) {
	case []byte:
		result = gjson.GetBytes(p, f.path)
	case json.RawMessage:
		result = gjson.GetBytes(p, f.path)
	case string:
		result = gjson.Get(p, f.path)
	default:
		return false
	}

	if !result.Exists() {
		return false
	}
	return f.value == "" || result.String() == f.value
}
