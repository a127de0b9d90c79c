package saleapi

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Observations cross process boundaries in canonical (core deterministic)
// CBOR so monitor-side consumers can hash and compare feeds byte-for-byte.
var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("saleapi: canonical CBOR mode: %v", err))
	}
}

// EncodeObservation serializes an observation envelope to canonical CBOR.
func EncodeObservation(o Observation) ([]byte, error) {
	raw, err := encMode.Marshal(o)
	if err != nil {
		return nil, fmt.Errorf("encode observation %s: %w", o.ID, err)
	}
	return raw, nil
}

// DecodeObservation parses a CBOR observation envelope.
func DecodeObservation(raw []byte) (Observation, error) {
	var o Observation
	if err := cbor.Unmarshal(raw, &o); err != nil {
		return Observation{}, fmt.Errorf("decode observation: %w", err)
	}
	return o, nil
}
