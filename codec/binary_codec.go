package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"hello-services/message"
)

var (
	errNotEnvelope = errors.New("codec: binary codec needs *message.Envelope")
	errShortBuffer = errors.New("codec: binary envelope truncated")
)

// BinaryCodec lays an envelope out as length-prefixed fields:
//
//	u16 len | service method | u32 len | payload | u16 len | error
type BinaryCodec struct{}

func (c *BinaryCodec) Encode(v any) ([]byte, error) {
	msg, ok := v.(*message.Envelope)
	if !ok {
		return nil, errNotEnvelope
	}
	if len(msg.ServiceMethod) > math.MaxUint16 || len(msg.Error) > math.MaxUint16 {
		return nil, fmt.Errorf("codec: string field exceeds %d bytes", math.MaxUint16)
	}

	buf := make([]byte, 0, 2+len(msg.ServiceMethod)+4+len(msg.Payload)+2+len(msg.Error))
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(msg.ServiceMethod)))
	buf = append(buf, msg.ServiceMethod...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(msg.Payload)))
	buf = append(buf, msg.Payload...)
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(msg.Error)))
	buf = append(buf, msg.Error...)
	return buf, nil
}

func (c *BinaryCodec) Decode(data []byte, v any) error {
	msg, ok := v.(*message.Envelope)
	if !ok {
		return errNotEnvelope
	}
	r := reader{data: data}

	method, err := r.bytes(int(r.u16()))
	if err != nil {
		return err
	}
	payload, err := r.bytes(int(r.u32()))
	if err != nil {
		return err
	}
	errText, err := r.bytes(int(r.u16()))
	if err != nil {
		return err
	}

	msg.ServiceMethod = string(method)
	msg.Payload = append([]byte(nil), payload...)
	msg.Error = string(errText)
	return nil
}

func (c *BinaryCodec) Type() CodecType {
	return CodecTypeBinary
}

// reader walks a byte slice; the first out-of-range access sticks as err.
type reader struct {
	data []byte
	off  int
	err  error
}

func (r *reader) u16() uint16 {
	b, _ := r.bytes(2)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint16(b)
}

func (r *reader) u32() uint32 {
	b, _ := r.bytes(4)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}

func (r *reader) bytes(n int) ([]byte, error) {
	if r.err != nil {
		return nil, r.err
	}
	if n < 0 || len(r.data)-r.off < n {
		r.err = errShortBuffer
		return nil, r.err
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b, nil
}
