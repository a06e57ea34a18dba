// Package codec serializes message envelopes for the framed transport.
package codec

import "fmt"

// CodecType is the on-wire identifier stored in the frame header.
type CodecType byte

const (
	CodecTypeJSON   CodecType = 0
	CodecTypeBinary CodecType = 1
)

func (t CodecType) String() string {
	switch t {
	case CodecTypeJSON:
		return "json"
	case CodecTypeBinary:
		return "binary"
	default:
		return fmt.Sprintf("codec(%d)", byte(t))
	}
}

// Codec turns an Envelope into a frame body and back.
type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
	Type() CodecType
}

// GetCodec returns the codec for t. Unknown types fall back to binary.
func GetCodec(t CodecType) Codec {
	if t == CodecTypeJSON {
		return &JSONCodec{}
	}
	return &BinaryCodec{}
}

// ParseCodecType maps a flag value ("json", "binary") to a CodecType.
func ParseCodecType(s string) (CodecType, error) {
	switch s {
	case "json", "":
		return CodecTypeJSON, nil
	case "binary":
		return CodecTypeBinary, nil
	default:
		return 0, fmt.Errorf("codec: unknown codec %q", s)
	}
}
