package persist

import (
	"encoding/json"
	"fmt"
	"time"

	"diagflow/pkg/models"
)

// Record is the serialized form of a message shared by dump files and the
// remote listeners. Payloads are kept as text or raw bytes; stream payloads
// are not read and are dropped.
type Record struct {
	ID          string             `json:"id" msgpack:"id" bson:"_id"`
	Kind        models.Kind        `json:"kind" msgpack:"kind" bson:"kind"`
	Scope       *models.Scope      `json:"scope,omitempty" msgpack:"scope,omitempty" bson:"scope,omitempty"`
	Color       models.Color       `json:"color" msgpack:"color" bson:"color"`
	Text        string             `json:"text" msgpack:"text" bson:"text"`
	Timestamp   time.Time          `json:"timestamp" msgpack:"timestamp" bson:"timestamp"`
	Origin      models.CallSite    `json:"origin" msgpack:"origin" bson:"origin"`
	HasTrace    bool               `json:"has_trace" msgpack:"has_trace" bson:"has_trace"`
	Trace       []models.CallSite  `json:"trace,omitempty" msgpack:"trace,omitempty" bson:"trace,omitempty"`
	ThreadID    int64              `json:"thread_id" msgpack:"thread_id" bson:"thread_id"`
	ThreadName  string             `json:"thread_name,omitempty" msgpack:"thread_name,omitempty" bson:"thread_name,omitempty"`
	PayloadKind models.PayloadKind `json:"payload_kind" msgpack:"payload_kind" bson:"payload_kind"`
	PayloadText string             `json:"payload_text,omitempty" msgpack:"payload_text,omitempty" bson:"payload_text,omitempty"`
	PayloadData []byte             `json:"payload_data,omitempty" msgpack:"payload_data,omitempty" bson:"payload_data,omitempty"`
}

func NewRecord(msg *models.Message) Record {
	r := Record{
		ID:          msg.ID,
		Kind:        msg.Kind,
		Scope:       msg.Scope,
		Color:       msg.Color,
		Text:        msg.Text,
		Timestamp:   msg.Timestamp,
		Origin:      msg.Origin,
		HasTrace:    msg.HasTrace,
		Trace:       msg.Trace,
		ThreadID:    msg.ThreadID,
		ThreadName:  msg.ThreadName,
		PayloadKind: msg.PayloadKind,
	}
	r.PayloadText, r.PayloadData = encodePayload(msg.Payload)
	return r
}

// Message rebuilds the message. Binary and JSON payloads come back as []byte,
// text payloads as string.
func (r Record) Message() *models.Message {
	msg := &models.Message{
		ID:          r.ID,
		Kind:        r.Kind,
		Scope:       r.Scope,
		Color:       r.Color,
		Text:        r.Text,
		Timestamp:   r.Timestamp,
		Origin:      r.Origin,
		HasTrace:    r.HasTrace,
		Trace:       r.Trace,
		ThreadID:    r.ThreadID,
		ThreadName:  r.ThreadName,
		PayloadKind: r.PayloadKind,
	}
	switch {
	case r.PayloadData != nil:
		msg.Payload = r.PayloadData
	case r.PayloadText != "":
		msg.Payload = r.PayloadText
	}
	return msg
}

func encodePayload(payload interface{}) (string, []byte) {
	switch p := payload.(type) {
	case nil:
		return "", nil
	case string:
		return p, nil
	case []byte:
		return "", p
	case json.RawMessage:
		return "", []byte(p)
	case fmt.Stringer:
		return p.String(), nil
	case interface{ Read([]byte) (int, error) }:
		return "", nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Sprintf("%v", payload), nil
	}
	return "", data
}
