// Package protocol defines the JSON frames exchanged with the remote
// controller.
package protocol

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/atcrelay/agent/internal/pipeline"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

var (
	inboundSchema  = mustCompile("inbound.schema.json")
	outboundSchema = mustCompile("outbound.schema.json")
)

func mustCompile(name string) *jsonschema.Schema {
	b, err := schemaFS.ReadFile("schemas/" + name)
	if err != nil {
		panic(err)
	}
	return jsonschema.MustCompileString(name, string(b))
}

var ErrMalformed = errors.New("malformed request")

// Inbound is an instruction sent by the remote controller.
type Inbound struct {
	Command       string `json:"command"`
	CorrelationID string `json:"correlation_id"`
}

// Outbound answers exactly one Inbound. Message is a string, or the
// structured payload of a system query.
type Outbound struct {
	CorrelationID string `json:"correlation_id"`
	Success       bool   `json:"success"`
	Message       any    `json:"message"`
}

// DecodeInbound validates and decodes a frame. When the frame is invalid
// but carries a usable correlation id, the returned Inbound has it set so
// the caller can still answer.
func DecodeInbound(b []byte) (Inbound, error) {
	var raw any
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return Inbound{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var in Inbound
	if obj, ok := raw.(map[string]any); ok {
		in.CorrelationID, _ = obj["correlation_id"].(string)
		in.Command, _ = obj["command"].(string)
	}
	if err := inboundSchema.Validate(raw); err != nil {
		return in, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return in, nil
}

// NewOutbound shapes an outcome as a frame.
func NewOutbound(o pipeline.Outcome) Outbound {
	out := Outbound{
		CorrelationID: string(o.Token),
		Success:       o.Success,
		Message:       o.Message,
	}
	if o.Success && o.Payload != nil {
		out.Message = o.Payload
	}
	return out
}

// Failure answers a request that never reached the pipeline.
func Failure(correlationID string, err error) Outbound {
	return Outbound{CorrelationID: correlationID, Message: err.Error()}
}

// Encode marshals the frame and checks it against the outbound schema.
func (o Outbound) Encode() ([]byte, error) {
	b, err := json.Marshal(o)
	if err != nil {
		return nil, err
	}

	var raw any
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	if err := outboundSchema.Validate(raw); err != nil {
		return nil, fmt.Errorf("outbound frame: %w", err)
	}
	return b, nil
}
