// Package message defines the envelope exchanged by the framed RPC transport.
//
// An Envelope is encoded by a codec and carried in the body of a protocol
// frame. The payload is always JSON regardless of the envelope codec, so a
// service never sees the wire format.
package message

// Envelope carries one framed RPC request or response.
//
//   - Request:  ServiceMethod and Payload (the JSON encoded args) are set.
//   - Response: Payload holds the JSON encoded reply; Error is non-empty
//     when dispatch or the service method failed.
type Envelope struct {
	ServiceMethod string `json:"service_method"` // "Greeter.SayHello"
	Error         string `json:"error,omitempty"`
	Payload       []byte `json:"payload,omitempty"`
}

// Failed reports whether the envelope carries an error.
func (e *Envelope) Failed() bool {
	return e.Error != ""
}

// ErrorEnvelope builds a response envelope for a failed call.
func ErrorEnvelope(serviceMethod, msg string) *Envelope {
	return &Envelope{ServiceMethod: serviceMethod, Error: msg}
}
