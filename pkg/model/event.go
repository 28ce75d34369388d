// Package model holds the wire-independent data types shared by every
// component of the ingestion pipeline: the event delivered by the broker,
// the batch assembled from it, and the checkpoint persisted after ingest.
package model

import (
	"encoding/hex"
	"time"
	"unicode/utf8"
)

// ValueKind identifies the concrete type stored in a PropertyMap entry.
type ValueKind int

const (
	ValueString ValueKind = iota
	ValueInt
	ValueFloat
	ValueBool
	ValueBytes
)

// Value is a tagged union over the property types the broker can deliver.
// Source systems hand the core a dynamic attribute bag; representing it as
// an explicit sum type (rather than interface{}) keeps serialization to the
// target's semi-structured format total and panic-free.
type Value struct {
	Kind  ValueKind
	Str   string
	Int   int64
	Float float64
	Bool  bool
	Bytes []byte
}

func StringValue(s string) Value { return Value{Kind: ValueString, Str: s} }
func IntValue(i int64) Value     { return Value{Kind: ValueInt, Int: i} }
func FloatValue(f float64) Value { return Value{Kind: ValueFloat, Float: f} }
func BoolValue(b bool) Value     { return Value{Kind: ValueBool, Bool: b} }
func BytesValue(b []byte) Value  { return Value{Kind: ValueBytes, Bytes: b} }

// Encode renders the value the way it will be stored in Snowflake's
// semi-structured columns: bytes are UTF-8 if valid, otherwise hex-encoded,
// per spec.md §3/§6.
func (v Value) Encode() any {
	switch v.Kind {
	case ValueString:
		return v.Str
	case ValueInt:
		return v.Int
	case ValueFloat:
		return v.Float
	case ValueBool:
		return v.Bool
	case ValueBytes:
		if utf8.Valid(v.Bytes) {
			return string(v.Bytes)
		}
		return hex.EncodeToString(v.Bytes)
	default:
		return nil
	}
}

// PropertyMap is the explicit attribute-bag type used for both user and
// system properties, per spec.md §3 and §9's "Source uses dynamic
// attribute bags" design note.
type PropertyMap map[string]Value

// Encode converts the map into a plain map[string]any ready for JSON/
// semi-structured serialization.
func (m PropertyMap) Encode() map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v.Encode()
	}
	return out
}

// Event is an immutable record delivered by the broker. SequenceNumber is
// monotonically increasing within a Partition and is what consumption
// resumes from; Offset is an opaque broker-assigned cursor that is only
// recorded in checkpoint metadata, never used for ordering decisions.
type Event struct {
	Body             []byte
	Partition        string
	SequenceNumber   uint64
	Offset           string
	EnqueuedTime     time.Time
	Properties       PropertyMap
	SystemProperties PropertyMap
}
