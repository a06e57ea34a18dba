package codec

import (
	"testing"

	"hello-services/message"
)

func benchmarkCodec(b *testing.B, ct CodecType) {
	cdc := GetCodec(ct)
	msg := &message.Envelope{
		ServiceMethod: "Greeter.SayHello",
		Payload:       []byte(`{"name":"world"}`),
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		data, err := cdc.Encode(msg)
		if err != nil {
			b.Fatal(err)
		}
		var out message.Envelope
		if err := cdc.Decode(data, &out); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkCodecJSON(b *testing.B)   { benchmarkCodec(b, CodecTypeJSON) }
func BenchmarkCodecBinary(b *testing.B) { benchmarkCodec(b, CodecTypeBinary) }
