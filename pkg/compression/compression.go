package compression

import (
	"fmt"
	"strings"

	"github.com/golang/snappy"
)

// Supported algorithms
const (
	AlgorithmNone   = "none"
	AlgorithmSnappy = "snappy"
)

// CompressionConfig holds compression configuration
type CompressionConfig struct {
	// Algorithm specifies the compression algorithm (snappy, none)
	Algorithm string
	// MinSize specifies the minimum size to compress (bytes)
	MinSize int
}

// Compressor defines the interface for compression operations
type Compressor interface {
	// Compress returns the compressed form of data and whether it is worth
	// keeping. Callers store data unchanged when ok is false.
	Compress(data []byte) (compressed []byte, ok bool)
	// Decompress reverses Compress
	Decompress(data []byte) ([]byte, error)
	// Algorithm names the compressor
	Algorithm() string
}

// DefaultCompressionConfig returns default compression configuration
func DefaultCompressionConfig() *CompressionConfig {
	return &CompressionConfig{
		Algorithm: AlgorithmSnappy,
		MinSize:   256,
	}
}

// NewCompressor returns the Compressor for config.Algorithm
func NewCompressor(config *CompressionConfig) (Compressor, error) {
	if config == nil {
		config = DefaultCompressionConfig()
	}

	switch strings.ToLower(config.Algorithm) {
	case AlgorithmSnappy:
		return &snappyCompressor{minSize: config.MinSize}, nil
	case AlgorithmNone, "":
		return noopCompressor{}, nil
	default:
		return nil, fmt.Errorf("unsupported compression algorithm: %s", config.Algorithm)
	}
}

// snappyCompressor implements Compressor with block snappy
type snappyCompressor struct {
	minSize int
}

func (c *snappyCompressor) Compress(data []byte) ([]byte, bool) {
	if len(data) < c.minSize {
		return data, false
	}
	compressed := snappy.Encode(nil, data)
	if len(compressed) >= len(data) {
		return data, false
	}
	return compressed, true
}

func (c *snappyCompressor) Decompress(data []byte) ([]byte, error) {
	out, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress data: %w", err)
	}
	if out == nil {
		out = []byte{}
	}
	return out, nil
}

func (c *snappyCompressor) Algorithm() string {
	return AlgorithmSnappy
}

// noopCompressor never compresses
type noopCompressor struct{}

func (noopCompressor) Compress(data []byte) ([]byte, bool) {
	return data, false
}

func (noopCompressor) Decompress(data []byte) ([]byte, error) {
	return data, nil
}

func (noopCompressor) Algorithm() string {
	return AlgorithmNone
}

