/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

/*
Package compression provides configurable compression for serialized
OperationLog containers.

Compression Overview:
=====================

This module implements configurable compression for:
- Serialized LogContainer bytes before a replica persists them
- Replication traffic, to reduce network bandwidth between peers
- Batched container exchanges, for better compression ratios

Supported Algorithms:
=====================

1. LZ4: Fast compression/decompression, moderate ratio
2. Snappy: Very fast, lower ratio, good for real-time gossip
3. Zstd: Best ratio, configurable speed/ratio tradeoff
4. Gzip: Stdlib fallback, used when no third-party codec is warranted

Batch Compression:
==================

Batching multiple entries before compression improves ratios:
1. Collect entries into a batch
2. Compress the entire batch
3. Store/transmit compressed batch
4. Decompress and split on read
*/
package compression

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Algorithm represents a compression algorithm
type Algorithm int

const (
	AlgorithmNone Algorithm = iota
	AlgorithmGzip
	AlgorithmLZ4
	AlgorithmSnappy
	AlgorithmZstd
)

func (a Algorithm) String() string {
	switch a {
	case AlgorithmNone:
		return "none"
	case AlgorithmGzip:
		return "gzip"
	case AlgorithmLZ4:
		return "lz4"
	case AlgorithmSnappy:
		return "snappy"
	case AlgorithmZstd:
		return "zstd"
	default:
		return "unknown"
	}
}

// ParseAlgorithm parses a compression algorithm from string
func ParseAlgorithm(s string) (Algorithm, error) {
	switch s {
	case "none", "":
		return AlgorithmNone, nil
	case "gzip":
		return AlgorithmGzip, nil
	case "lz4":
		return AlgorithmLZ4, nil
	case "snappy":
		return AlgorithmSnappy, nil
	case "zstd":
		return AlgorithmZstd, nil
	default:
		return AlgorithmNone, fmt.Errorf("unknown compression algorithm: %s", s)
	}
}

// Level represents compression level
type Level int

const (
	LevelFastest Level = 1
	LevelDefault Level = 5
	LevelBest    Level = 9
)

// Config holds compression configuration
type Config struct {
	Algorithm        Algorithm `json:"algorithm"`
	Level            Level     `json:"level"`
	MinSize          int       `json:"min_size"`          // Minimum size to compress
	BatchSize        int       `json:"batch_size"`        // Number of entries per batch
	BatchTimeout     int       `json:"batch_timeout_ms"`  // Max wait time for batch (ms)
	DictionaryEnable bool      `json:"dictionary_enable"` // Use dictionary compression
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Algorithm:        AlgorithmZstd,
		Level:            LevelDefault,
		MinSize:          256,
		BatchSize:        100,
		BatchTimeout:     10,
		DictionaryEnable: false,
	}
}

// Errors
var (
	ErrDataTooSmall     = errors.New("data too small to compress")
	ErrInvalidHeader    = errors.New("invalid compression header")
	ErrUnsupportedAlgo  = errors.New("unsupported compression algorithm")
	ErrDecompressFailed = errors.New("decompression failed")
)

// Compressor provides compression/decompression operations for a single
// configured algorithm, with pooled buffers to keep per-call allocation
// down on the replication hot path.
type Compressor struct {
	config     Config
	gzipPool   sync.Pool
	bufferPool sync.Pool
}

// NewCompressor creates a new compressor
func NewCompressor(config Config) *Compressor {
	return &Compressor{
		config: config,
		gzipPool: sync.Pool{
			New: func() interface{} {
				return gzip.NewWriter(nil)
			},
		},
		bufferPool: sync.Pool{
			New: func() interface{} {
				return new(bytes.Buffer)
			},
		},
	}
}

// Compress compresses data with the configured algorithm. Data shorter
// than config.MinSize is returned unchanged with AlgorithmNone semantics,
// since the framing overhead of most codecs outweighs the saving below
// that size.
func (c *Compressor) Compress(data []byte) ([]byte, error) {
	if len(data) < c.config.MinSize {
		return data, nil
	}
	return compressWith(c.config.Algorithm, data, int(c.config.Level))
}

// Decompress reverses Compress for the given algorithm.
func (c *Compressor) Decompress(data []byte, algo Algorithm) ([]byte, error) {
	return decompressWith(algo, data)
}

func compressWith(algo Algorithm, data []byte, level int) ([]byte, error) {
	switch algo {
	case AlgorithmNone:
		return data, nil

	case AlgorithmGzip:
		var buf bytes.Buffer
		w, err := gzip.NewWriterLevel(&buf, clampGzipLevel(level))
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(data); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil

	case AlgorithmSnappy:
		return snappy.Encode(nil, data), nil

	case AlgorithmLZ4:
		var buf bytes.Buffer
		w := lz4.NewWriter(&buf)
		if err := w.Apply(lz4.CompressionLevelOption(clampLZ4Level(level))); err != nil {
			return nil, err
		}
		if _, err := w.Write(data); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil

	case AlgorithmZstd:
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(clampZstdLevel(level)))
		if err != nil {
			return nil, err
		}
		defer enc.Close()
		return enc.EncodeAll(data, nil), nil

	default:
		return nil, ErrUnsupportedAlgo
	}
}

func decompressWith(algo Algorithm, data []byte) ([]byte, error) {
	switch algo {
	case AlgorithmNone:
		return data, nil

	case AlgorithmGzip:
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecompressFailed, err)
		}
		defer r.Close()
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecompressFailed, err)
		}
		return out, nil

	case AlgorithmSnappy:
		out, err := snappy.Decode(nil, data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecompressFailed, err)
		}
		return out, nil

	case AlgorithmLZ4:
		r := lz4.NewReader(bytes.NewReader(data))
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecompressFailed, err)
		}
		return out, nil

	case AlgorithmZstd:
		dec, err := zstd.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecompressFailed, err)
		}
		defer dec.Close()
		out, err := io.ReadAll(dec)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecompressFailed, err)
		}
		return out, nil

	default:
		return nil, ErrUnsupportedAlgo
	}
}

func clampGzipLevel(level int) int {
	switch {
	case level <= int(LevelFastest):
		return gzip.BestSpeed
	case level >= int(LevelBest):
		return gzip.BestCompression
	default:
		return gzip.DefaultCompression
	}
}

func clampLZ4Level(level int) lz4.CompressionLevel {
	if level >= int(LevelBest) {
		return lz4.Level9
	}
	if level <= int(LevelFastest) {
		return lz4.Fast
	}
	return lz4.Level5
}

func clampZstdLevel(level int) zstd.EncoderLevel {
	switch {
	case level <= int(LevelFastest):
		return zstd.SpeedFastest
	case level >= int(LevelBest):
		return zstd.SpeedBestCompression
	default:
		return zstd.SpeedDefault
	}
}

// BatchCompressor accumulates whole entries and compresses them together
// as a single framed blob, then splits them back apart on read. Each
// entry is length-prefixed (uint32 big-endian) before the whole batch is
// handed to the configured codec, so compression sees cross-entry
// redundancy instead of compressing each entry in isolation.
type BatchCompressor struct {
	config  Config
	entries [][]byte
}

// NewBatchCompressor creates a batch compressor using config's algorithm.
func NewBatchCompressor(config Config) *BatchCompressor {
	return &BatchCompressor{config: config}
}

// Add appends entry to the pending batch.
func (b *BatchCompressor) Add(entry []byte) {
	b.entries = append(b.entries, entry)
}

// Flush frames and compresses every pending entry, clearing the batch.
func (b *BatchCompressor) Flush() ([]byte, error) {
	var buf bytes.Buffer
	for _, entry := range b.entries {
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(entry)))
		buf.Write(lenBuf[:])
		buf.Write(entry)
	}
	b.entries = nil

	return compressWith(b.config.Algorithm, buf.Bytes(), int(b.config.Level))
}

// DecompressBatch reverses Flush: decompress, then split the framed
// entries back apart.
func (b *BatchCompressor) DecompressBatch(data []byte, algo Algorithm) ([][]byte, error) {
	raw, err := decompressWith(algo, data)
	if err != nil {
		return nil, err
	}

	var entries [][]byte
	for len(raw) > 0 {
		if len(raw) < 4 {
			return nil, ErrInvalidHeader
		}
		n := binary.BigEndian.Uint32(raw[:4])
		raw = raw[4:]
		if uint64(len(raw)) < uint64(n) {
			return nil, ErrInvalidHeader
		}
		entries = append(entries, raw[:n])
		raw = raw[n:]
	}
	return entries, nil
}
