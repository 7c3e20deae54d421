// Package primitive maps fixed-width numbers, booleans and strings to the
// byte values of a store.
//
// Numbers are big endian. Float64 values are stored as their IEEE-754 bit
// pattern through the int64 codec. Strings are UTF-16BE. The zero value of
// every type encodes to nil, which a store treats as "remove the key", and
// decoding an absent (nil) value yields the zero value again. As a result a
// key written with 0, false or "" reads back correctly but is not
// Contained.
package primitive

import (
	"encoding/binary"
	"math"
	"unicode/utf16"
)

const (
	int32Size = 4
	int64Size = 8
)

// EncodeInt32 returns the 4-byte big endian form of v, or nil for 0.
func EncodeInt32(v int32) []byte {
	if v == 0 {
		return nil
	}
	b := make([]byte, int32Size)
	binary.BigEndian.PutUint32(b, uint32(v))
	return b
}

// DecodeInt32 decodes a value written by EncodeInt32. Anything that is not
// exactly 4 bytes long decodes to 0.
func DecodeInt32(b []byte) int32 {
	if len(b) != int32Size {
		return 0
	}
	return int32(binary.BigEndian.Uint32(b))
}

// EncodeInt64 returns the 8-byte big endian form of v, or nil for 0.
func EncodeInt64(v int64) []byte {
	if v == 0 {
		return nil
	}
	b := make([]byte, int64Size)
	binary.BigEndian.PutUint64(b, uint64(v))
	return b
}

// DecodeInt64 decodes a value written by EncodeInt64. Anything that is not
// exactly 8 bytes long decodes to 0.
func DecodeInt64(b []byte) int64 {
	if len(b) != int64Size {
		return 0
	}
	return int64(binary.BigEndian.Uint64(b))
}

// EncodeFloat64 stores the raw bits of v. Only +0.0 encodes to nil; -0.0
// and NaN payloads are kept bit for bit.
func EncodeFloat64(v float64) []byte {
	return EncodeInt64(int64(math.Float64bits(v)))
}

// DecodeFloat64 reverses EncodeFloat64.
func DecodeFloat64(b []byte) float64 {
	return math.Float64frombits(uint64(DecodeInt64(b)))
}

// EncodeBool returns {1} for true and nil for false.
func EncodeBool(v bool) []byte {
	if !v {
		return nil
	}
	return []byte{1}
}

// DecodeBool reports whether the first byte, read as a signed byte, is
// positive.
func DecodeBool(b []byte) bool {
	return len(b) > 0 && int8(b[0]) > 0
}

// EncodeString returns the UTF-16BE form of s, or nil for "". Invalid UTF-8
// sequences are replaced with U+FFFD.
func EncodeString(s string) []byte {
	if s == "" {
		return nil
	}
	units := utf16.Encode([]rune(s))
	b := make([]byte, 2*len(units))
	for i, u := range units {
		binary.BigEndian.PutUint16(b[2*i:], u)
	}
	return b
}

// DecodeString decodes UTF-16BE. A trailing odd byte is ignored and
// unpaired surrogates decode to U+FFFD.
func DecodeString(b []byte) string {
	if len(b) < 2 {
		return ""
	}
	units := make([]uint16, len(b)/2)
	for i := range units {
		units[i] = binary.BigEndian.Uint16(b[2*i:])
	}
	return string(utf16.Decode(units))
}
