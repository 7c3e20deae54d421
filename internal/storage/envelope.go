package storage

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/zeebo/xxh3"

	"github.com/maxiofs/simplestore/pkg/compression"
	"github.com/maxiofs/simplestore/pkg/encryption"
)

// Stored values are framed as
//
//	magic(1) | flags(1) | xxh3-64 of payload, big endian (8) | payload
//
// The payload is the value after optional compression then optional sealing.
const (
	envelopeMagic      byte = 0xA7
	envelopeHeaderSize      = 10

	flagCompressed byte = 1 << 0
	flagSealed     byte = 1 << 1
)

// envelopeBackend frames values written to an engine and verifies them on
// the way back.
type envelopeBackend struct {
	Backend
	compressor compression.Compressor
	sealer     encryption.Sealer
}

func newEnvelopeBackend(engine Backend, compressor compression.Compressor, sealer encryption.Sealer) *envelopeBackend {
	return &envelopeBackend{Backend: engine, compressor: compressor, sealer: sealer}
}

func (e *envelopeBackend) Get(ctx context.Context, key string) ([]byte, error) {
	raw, err := e.Backend.Get(ctx, key)
	if err != nil || raw == nil {
		return nil, err
	}
	return e.open(raw)
}

func (e *envelopeBackend) Put(ctx context.Context, key string, value []byte) error {
	if value == nil {
		return e.Backend.Delete(ctx, key)
	}
	framed, err := e.seal(value)
	if err != nil {
		return err
	}
	return e.Backend.Put(ctx, key, framed)
}

func (e *envelopeBackend) seal(value []byte) ([]byte, error) {
	var flags byte
	payload := value

	if e.compressor != nil {
		if compressed, ok := e.compressor.Compress(payload); ok {
			payload = compressed
			flags |= flagCompressed
		}
	}

	if e.sealer != nil {
		sealed, err := e.sealer.Seal(payload)
		if err != nil {
			return nil, NewErrorWithCause("SealValue", "Failed to encrypt value", err)
		}
		payload = sealed
		flags |= flagSealed
	}

	framed := make([]byte, envelopeHeaderSize+len(payload))
	framed[0] = envelopeMagic
	framed[1] = flags
	binary.BigEndian.PutUint64(framed[2:envelopeHeaderSize], xxh3.Hash(payload))
	copy(framed[envelopeHeaderSize:], payload)
	return framed, nil
}

func (e *envelopeBackend) open(framed []byte) ([]byte, error) {
	if len(framed) < envelopeHeaderSize || framed[0] != envelopeMagic {
		return nil, NewErrorWithCause(ErrCorrupted.Code, ErrCorrupted.Message,
			fmt.Errorf("bad header (%d bytes)", len(framed)))
	}

	flags := framed[1]
	sum := binary.BigEndian.Uint64(framed[2:envelopeHeaderSize])
	payload := framed[envelopeHeaderSize:]
	if xxh3.Hash(payload) != sum {
		return nil, NewErrorWithCause(ErrCorrupted.Code, ErrCorrupted.Message,
			fmt.Errorf("checksum mismatch"))
	}

	if flags&flagSealed != 0 {
		if e.sealer == nil {
			return nil, NewError("SealedValue", "Value is encrypted but no encryption key is configured")
		}
		opened, err := e.sealer.Open(payload)
		if err != nil {
			return nil, NewErrorWithCause(ErrCorrupted.Code, ErrCorrupted.Message, err)
		}
		payload = opened
	}

	if flags&flagCompressed != 0 {
		decompressor := e.compressor
		if decompressor == nil || decompressor.Algorithm() != compression.AlgorithmSnappy {
			decompressor, _ = compression.NewCompressor(&compression.CompressionConfig{Algorithm: compression.AlgorithmSnappy})
		}
		out, err := decompressor.Decompress(payload)
		if err != nil {
			return nil, NewErrorWithCause(ErrCorrupted.Code, ErrCorrupted.Message, err)
		}
		payload = out
	}

	value := make([]byte, len(payload))
	copy(value, payload)
	return value, nil
}
