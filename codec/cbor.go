package codec

import "github.com/fxamacker/cbor/v2"

// CBOR encodes with fxamacker/cbor. The zero value uses the library's
// default modes; NewCBOR picks canonical or compact encoding and renders
// times as RFC3339Nano.
type CBOR[V any] struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

var _ Codec[struct{}] = CBOR[struct{}]{}

// NewCBOR builds a CBOR codec. deterministic selects RFC 8949 core
// deterministic encoding, needed when payload bytes are hashed or compared.
// Decoding rejects duplicate map keys.
func NewCBOR[V any](deterministic bool) (CBOR[V], error) {
	eo := cbor.PreferredUnsortedEncOptions()
	if deterministic {
		eo = cbor.CoreDetEncOptions()
	}
	eo.Time = cbor.TimeRFC3339Nano

	em, err := eo.EncMode()
	if err != nil {
		return CBOR[V]{}, wrap("cbor", "init", err)
	}
	dm, err := cbor.DecOptions{DupMapKey: cbor.DupMapKeyEnforcedAPF}.DecMode()
	if err != nil {
		return CBOR[V]{}, wrap("cbor", "init", err)
	}
	return CBOR[V]{enc: em, dec: dm}, nil
}

// MustCBOR is NewCBOR for package-level variables; it panics on error.
func MustCBOR[V any](deterministic bool) CBOR[V] {
	c, err := NewCBOR[V](deterministic)
	if err != nil {
		panic(err)
	}
	return c
}

func (c CBOR[V]) Encode(v V) ([]byte, error) {
	var (
		b   []byte
		err error
	)
	if c.enc != nil {
		b, err = c.enc.Marshal(v)
	} else {
		b, err = cbor.Marshal(v)
	}
	if err != nil {
		return nil, wrap("cbor", "encode", err)
	}
	return b, nil
}

func (c CBOR[V]) Decode(b []byte) (V, error) {
	var v V
	var err error
	if c.dec != nil {
		err = c.dec.Unmarshal(b, &v)
	} else {
		err = cbor.Unmarshal(b, &v)
	}
	if err != nil {
		var zero V
		return zero, wrap("cbor", "decode", err)
	}
	return v, nil
}
