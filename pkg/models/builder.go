package models

import (
	"time"

	"github.com/google/uuid"
)

type MessageBuilder struct {
	msg *Message
}

func NewMessageBuilder() *MessageBuilder {
	return &MessageBuilder{
		msg: &Message{
			Kind:        KindUnknown,
			Color:       DefaultColor,
			PayloadKind: PayloadNone,
		},
	}
}

func (b *MessageBuilder) WithID(id string) *MessageBuilder {
	b.msg.ID = id
	return b
}

func (b *MessageBuilder) WithKind(kind Kind) *MessageBuilder {
	b.msg.Kind = kind
	return b
}

func (b *MessageBuilder) WithText(text string) *MessageBuilder {
	b.msg.Text = text
	return b
}

func (b *MessageBuilder) WithTimestamp(ts time.Time) *MessageBuilder {
	b.msg.Timestamp = ts
	return b
}

func (b *MessageBuilder) WithScope(scope *Scope) *MessageBuilder {
	if scope == nil {
		b.msg.Scope = nil
		return b
	}
	s := *scope
	b.msg.Scope = &s
	return b
}

func (b *MessageBuilder) WithColor(c Color) *MessageBuilder {
	b.msg.Color = c
	return b
}

func (b *MessageBuilder) WithOrigin(site CallSite) *MessageBuilder {
	b.msg.Origin = site
	return b
}

func (b *MessageBuilder) WithTrace(trace []CallSite) *MessageBuilder {
	b.msg.Trace = trace
	b.msg.HasTrace = trace != nil
	return b
}

func (b *MessageBuilder) WithThread(id int64, name string) *MessageBuilder {
	b.msg.ThreadID = id
	b.msg.ThreadName = name
	return b
}

func (b *MessageBuilder) WithPayload(kind PayloadKind, payload interface{}) *MessageBuilder {
	b.msg.PayloadKind = kind
	b.msg.Payload = payload
	return b
}

func (b *MessageBuilder) Build() *Message {
	if b.msg.ID == "" {
		b.msg.ID = uuid.NewString()
	}
	if b.msg.Timestamp.IsZero() {
		b.msg.Timestamp = time.Now()
	}
	return b.msg
}
