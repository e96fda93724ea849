package dispatch

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// Payload builds a key/value acknowledgement body.
// It is serialized only at the transport boundary.
type Payload struct {
	// fields holds the values.
	fields *structpb.Struct
}

// NewPayload creates an empty payload.
func NewPayload() *Payload {
	return &Payload{
		fields: &structpb.Struct{Fields: make(map[string]*structpb.Value)},
	}
}

// SetString sets key to a string value.
func (p *Payload) SetString(key, value string) *Payload {
	p.fields.Fields[key] = structpb.NewStringValue(value)

	return p
}

// Get returns the string form of key and whether it is set.
func (p *Payload) Get(key string) (string, bool) {
	v, ok := p.fields.GetFields()[key]
	if !ok {
		return "", false
	}

	switch kind := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		return kind.StringValue, true
	default:
		return fmt.Sprint(v.AsInterface()), true
	}
}

// Struct exposes the underlying protobuf struct.
func (p *Payload) Struct() *structpb.Struct {
	return p.fields
}

// MarshalJSON encodes the payload as a JSON object.
func (p *Payload) MarshalJSON() ([]byte, error) {
	data, err := protojson.Marshal(p.fields)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	return data, nil
}
