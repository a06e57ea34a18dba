package protocol

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestEncodeDecode(t *testing.T) {
	header := Header{
		CodecType: CodecTypeJSON,
		MsgType:   MsgTypeRequest,
		Seq:       12345,
	}
	body := []byte(`{"name":"world"}`)

	var buf bytes.Buffer
	if err := Encode(&buf, &header, body); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if buf.Len() != HeaderSize+len(body) {
		t.Fatalf("frame size: got %d, want %d", buf.Len(), HeaderSize+len(body))
	}

	got, gotBody, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if got.CodecType != header.CodecType {
		t.Errorf("CodecType mismatch: got %d, want %d", got.CodecType, header.CodecType)
	}
	if got.MsgType != header.MsgType {
		t.Errorf("MsgType mismatch: got %d, want %d", got.MsgType, header.MsgType)
	}
	if got.Seq != header.Seq {
		t.Errorf("Seq mismatch: got %d, want %d", got.Seq, header.Seq)
	}
	if got.BodyLen != uint32(len(body)) {
		t.Errorf("BodyLen mismatch: got %d, want %d", got.BodyLen, len(body))
	}
	if !bytes.Equal(gotBody, body) {
		t.Errorf("Body mismatch: got %s, want %s", gotBody, body)
	}
}

func TestDecodeRejectsBadHeaders(t *testing.T) {
	cases := []struct {
		name  string
		frame []byte
		want  string
	}{
		{
			name:  "magic",
			frame: []byte{0x00, 0x00, 0x00, Version, CodecTypeJSON, byte(MsgTypeRequest), 0, 0, 0, 1, 0, 0, 0, 0},
			want:  "invalid magic number",
		},
		{
			name:  "version",
			frame: []byte{MagicNumber, MagicByte2, MagicByte3, 0xFF, CodecTypeJSON, byte(MsgTypeRequest), 0, 0, 0, 1, 0, 0, 0, 0},
			want:  "unsupported version",
		},
		{
			name:  "codec",
			frame: []byte{MagicNumber, MagicByte2, MagicByte3, Version, 0x09, byte(MsgTypeRequest), 0, 0, 0, 1, 0, 0, 0, 0},
			want:  "unsupported codec type",
		},
		{
			name:  "message type",
			frame: []byte{MagicNumber, MagicByte2, MagicByte3, Version, CodecTypeJSON, 0x07, 0, 0, 0, 1, 0, 0, 0, 0},
			want:  "unsupported message type",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := Decode(bytes.NewReader(tc.frame))
			if err == nil {
				t.Fatal("expected an error, Decode succeeded")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error should contain %q, got: %v", tc.want, err)
			}
		})
	}
}

func TestDecodeEmptyBody(t *testing.T) {
	header := Header{MsgType: MsgTypeHeartbeat, Seq: 7}
	var buf bytes.Buffer
	if err := Encode(&buf, &header, nil); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	got, body, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if got.MsgType != MsgTypeHeartbeat {
		t.Errorf("MsgType mismatch: got %d, want %d", got.MsgType, MsgTypeHeartbeat)
	}
	if len(body) != 0 {
		t.Errorf("expected empty body, got %d bytes", len(body))
	}
}

func TestDecodeTruncatedBody(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, &Header{MsgType: MsgTypeRequest}, []byte("hello world")); err != nil {
		t.Fatal(err)
	}
	truncated := buf.Bytes()[:buf.Len()-3]

	_, _, err := Decode(bytes.NewReader(truncated))
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected io.ErrUnexpectedEOF, got %v", err)
	}
}

func TestDecodeOversizedBody(t *testing.T) {
	frame := []byte{MagicNumber, MagicByte2, MagicByte3, Version, CodecTypeJSON, byte(MsgTypeRequest), 0, 0, 0, 1, 0xFF, 0xFF, 0xFF, 0xFF}
	_, _, err := Decode(bytes.NewReader(frame))
	if !errors.Is(err, ErrBodyTooLarge) {
		t.Fatalf("expected ErrBodyTooLarge, got %v", err)
	}
}
