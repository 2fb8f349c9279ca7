// Package message defines the envelope that protocol layers exchange over
// classical channels.
package message

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sarchlab/qnetsim/sim/id"
)

// MaxNestingDepth is the largest number of envelopes a message may contain,
// itself included.
const MaxNestingDepth = 8

// ErrNestingTooDeep is returned when wrapping would exceed MaxNestingDepth.
var ErrNestingTooDeep = errors.New("message nesting too deep")

// ErrNoMessage is returned when there is no message to wrap.
var ErrNoMessage = errors.New("no message")

// MsgType tags the purpose of a message within the protocol that sends it.
type MsgType string

// A Payload is what a message carries. It is either a nested *Msg or a Body.
type Payload interface {
	isPayload()
}

// Body carries the data of the upper-most protocol layer.
type Body map[string]any

func (Body) isPayload() {}

// A Msg is the envelope passed between protocol layers.
type Msg struct {
	ID           string
	Kind         MsgType
	Receiver     string
	ProtocolType string
	Payload      Payload
}

func (*Msg) isPayload() {}

// Inner returns the nested envelope, if the message carries one.
func (m *Msg) Inner() (*Msg, bool) {
	inner, ok := m.Payload.(*Msg)
	return inner, ok
}

// Body returns the body, if the message carries one.
func (m *Msg) Body() (Body, bool) {
	b, ok := m.Payload.(Body)
	return b, ok
}

// Depth returns the number of envelopes in the message, itself included.
func (m *Msg) Depth() int {
	depth := 1

	for inner, ok := m.Inner(); ok; inner, ok = inner.Inner() {
		depth++
	}

	return depth
}

// Clone returns a deep copy of the envelope chain with a different ID.
// Nested envelopes keep their IDs. Body values are copied shallowly.
func (m *Msg) Clone() *Msg {
	c := m.clone()
	c.ID = id.Generate()

	return c
}

func (m *Msg) clone() *Msg {
	c := *m

	switch p := m.Payload.(type) {
	case *Msg:
		c.Payload = p.clone()
	case Body:
		b := make(Body, len(p))
		for k, v := range p {
			b[k] = v
		}

		c.Payload = b
	}

	return &c
}

func (m *Msg) String() string {
	return fmt.Sprintf("%s(%s -> %s, depth %d)",
		m.Kind, m.ProtocolType, m.Receiver, m.Depth())
}

// Wrap puts inner into a new envelope addressed to receiver.
func Wrap(kind MsgType, receiver string, inner *Msg) (*Msg, error) {
	if inner == nil {
		return nil, fmt.Errorf("wrapping for %s: %w", receiver, ErrNoMessage)
	}

	if inner.Depth()+1 > MaxNestingDepth {
		return nil, fmt.Errorf("wrapping %s for %s: %w",
			inner.Kind, receiver, ErrNestingTooDeep)
	}

	return MsgBuilder{}.
		WithKind(kind).
		WithReceiver(receiver).
		WithPayload(inner).
		Build(), nil
}

// MsgBuilder can build messages.
type MsgBuilder struct {
	kind         MsgType
	receiver     string
	protocolType string
	payload      Payload
}

// WithKind sets the kind of the message.
func (b MsgBuilder) WithKind(kind MsgType) MsgBuilder {
	b.kind = kind
	return b
}

// WithReceiver sets the name of the protocol that should receive the message.
func (b MsgBuilder) WithReceiver(receiver string) MsgBuilder {
	b.receiver = receiver
	return b
}

// WithProtocolType sets the protocol tag of the message.
func (b MsgBuilder) WithProtocolType(protocolType string) MsgBuilder {
	b.protocolType = protocolType
	return b
}

// WithPayload sets the payload.
func (b MsgBuilder) WithPayload(payload Payload) MsgBuilder {
	b.payload = payload
	return b
}

// Build creates a new message. It panics if the payload nests too deep.
func (b MsgBuilder) Build() *Msg {
	m := &Msg{
		ID:           id.Generate(),
		Kind:         b.kind,
		Receiver:     b.receiver,
		ProtocolType: b.protocolType,
		Payload:      b.payload,
	}

	msgMustNotNestTooDeep(m)

	return m
}

func msgMustNotNestTooDeep(m *Msg) {
	if m.Depth() > MaxNestingDepth {
		panic(fmt.Sprintf("message %s nests %d envelopes", m.ID, m.Depth()))
	}
}

type jsonMsg struct {
	ID           string  `json:"id" yaml:"id"`
	Kind         MsgType `json:"kind" yaml:"kind"`
	Receiver     string  `json:"receiver" yaml:"receiver"`
	ProtocolType string  `json:"protocol_type,omitempty" yaml:"protocol_type,omitempty"`
	Inner        *Msg    `json:"inner,omitempty" yaml:"inner,omitempty"`
	Body         Body    `json:"body,omitempty" yaml:"body,omitempty"`
}

func (m *Msg) toJSONMsg() jsonMsg {
	j := jsonMsg{
		ID:           m.ID,
		Kind:         m.Kind,
		Receiver:     m.Receiver,
		ProtocolType: m.ProtocolType,
	}

	switch p := m.Payload.(type) {
	case *Msg:
		j.Inner = p
	case Body:
		j.Body = p
	}

	return j
}

func (m *Msg) fromJSONMsg(j jsonMsg) error {
	if j.Inner != nil && j.Body != nil {
		return fmt.Errorf("message %s carries both an inner message and a body", j.ID)
	}

	m.ID = j.ID
	m.Kind = j.Kind
	m.Receiver = j.Receiver
	m.ProtocolType = j.ProtocolType
	m.Payload = nil

	switch {
	case j.Inner != nil:
		m.Payload = j.Inner
	case j.Body != nil:
		m.Payload = j.Body
	}

	if m.Depth() > MaxNestingDepth {
		return fmt.Errorf("decoding %s: %w", m.ID, ErrNestingTooDeep)
	}

	return nil
}

// MarshalJSON encodes the message with the payload under "inner" or "body".
func (m *Msg) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.toJSONMsg())
}

// UnmarshalJSON decodes a message encoded by MarshalJSON.
func (m *Msg) UnmarshalJSON(data []byte) error {
	var j jsonMsg
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}

	return m.fromJSONMsg(j)
}

// MarshalYAML encodes the message the same way as MarshalJSON.
func (m *Msg) MarshalYAML() (any, error) {
	return m.toJSONMsg(), nil
}

// UnmarshalYAML decodes a message encoded by MarshalYAML.
func (m *Msg) UnmarshalYAML(unmarshal func(any) error) error {
	var j jsonMsg
	if err := unmarshal(&j); err != nil {
		return err
	}

	return m.fromJSONMsg(j)
}
