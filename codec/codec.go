// Package codec holds the encoders a Cache uses to turn values into stored bytes.
package codec

import "fmt"

// Codec encodes/decodes values V to []byte for storage.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}

// Error names the codec and direction of a failed Encode or Decode.
type Error struct {
	Codec string // "json", "msgpack", "cbor", "protobuf"
	Op    string // "encode", "decode" or "init"
	Err   error
}

func (e *Error) Error() string { return fmt.Sprintf("codec %s %s: %v", e.Codec, e.Op, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

func wrap(name, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Codec: name, Op: op, Err: err}
}
