// Package archive reads and writes dataset snapshots.
//
// An archive is a small fixed header followed by a (possibly compressed)
// stream of length-prefixed record frames:
//
//	[4]byte magic "GCAR"
//	byte    format version
//	byte    compression (none, lz4, zstd)
//	uint32  record count, little endian
//	...     frames
//
// Archives are written through and read from a blobstore.Store, so snapshots
// work the same against the local filesystem, memory and object storage.
package archive

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/fergl/geoclust/blobstore"
	"github.com/fergl/geoclust/codec"
	"github.com/fergl/geoclust/model"
)

// Compression selects the frame stream compression.
type Compression byte

const (
	// CompressionNone stores frames uncompressed.
	CompressionNone Compression = iota
	// CompressionLZ4 favors speed.
	CompressionLZ4
	// CompressionZstd favors ratio.
	CompressionZstd
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", byte(c))
	}
}

var magic = [4]byte{'G', 'C', 'A', 'R'}

const (
	version    = 1
	headerSize = 10
)

var (
	// ErrBadMagic is returned when the header magic does not match.
	ErrBadMagic = errors.New("archive: bad magic")

	// ErrUnsupportedVersion is returned for format versions newer than this
	// implementation.
	ErrUnsupportedVersion = errors.New("archive: unsupported version")

	// ErrUnknownCompression is returned for unrecognized compression bytes.
	ErrUnknownCompression = errors.New("archive: unknown compression")

	// ErrTruncated is returned when the frame stream ends before the count
	// recorded in the header.
	ErrTruncated = errors.New("archive: truncated frame stream")
)

type config struct {
	compression Compression
	codec       codec.Codec
}

// Option configures archive encoding.
type Option func(*config)

// WithCompression selects the frame stream compression. Default is zstd.
func WithCompression(c Compression) Option {
	return func(cfg *config) { cfg.compression = c }
}

// WithCodec sets the record codec.
func WithCodec(c codec.Codec) Option {
	return func(cfg *config) {
		if c != nil {
			cfg.codec = c
		}
	}
}

func newConfig(opts []Option) config {
	cfg := config{
		compression: CompressionZstd,
		codec:       codec.Default,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Write encodes the records into w.
func Write(w io.Writer, records []*model.Record, opts ...Option) error {
	cfg := newConfig(opts)

	var header [headerSize]byte
	copy(header[:4], magic[:])
	header[4] = version
	header[5] = byte(cfg.compression)
	binary.LittleEndian.PutUint32(header[6:], uint32(len(records))) //nolint:gosec // count fits
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("archive: write header: %w", err)
	}

	fw, closeFn, err := compressWriter(w, cfg.compression)
	if err != nil {
		return err
	}

	for _, r := range records {
		frame, err := codec.EncodeRecord(cfg.codec, r)
		if err != nil {
			return fmt.Errorf("archive: encode record %d: %w", r.ID, err)
		}
		if _, err := fw.Write(frame); err != nil {
			return fmt.Errorf("archive: write frame: %w", err)
		}
	}

	return closeFn()
}

// Read decodes all records from r, verifying the header.
func Read(r io.Reader, opts ...Option) ([]*model.Record, error) {
	cfg := newConfig(opts)

	var header [headerSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("archive: read header: %w", err)
	}
	if [4]byte(header[:4]) != magic {
		return nil, ErrBadMagic
	}
	if header[4] != version {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, header[4])
	}
	count := int(binary.LittleEndian.Uint32(header[6:]))

	fr, closeFn, err := compressReader(r, Compression(header[5]))
	if err != nil {
		return nil, err
	}
	defer closeFn()

	buf, err := io.ReadAll(fr)
	if err != nil {
		return nil, fmt.Errorf("archive: read frames: %w", err)
	}

	records := make([]*model.Record, 0, count)
	off := 0
	for len(records) < count {
		rec, n, err := codec.DecodeRecord(cfg.codec, buf, off)
		if err != nil {
			return nil, fmt.Errorf("archive: frame %d: %w", len(records), err)
		}
		if rec == nil {
			return nil, fmt.Errorf("%w: got %d of %d records", ErrTruncated, len(records), count)
		}
		records = append(records, rec)
		off += n
	}
	return records, nil
}

// Save writes a snapshot of the records to the store under the given name.
func Save(ctx context.Context, store blobstore.Store, name string, records []*model.Record, opts ...Option) error {
	w, err := store.Create(ctx, name)
	if err != nil {
		return err
	}

	bw := bufio.NewWriter(w)
	if err := Write(bw, records, opts...); err != nil {
		_ = w.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

// Load reads a snapshot from the store.
func Load(ctx context.Context, store blobstore.Store, name string, opts ...Option) ([]*model.Record, error) {
	r, err := store.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	return Read(bufio.NewReader(r), opts...)
}

// compressWriter wraps w per the selected compression. The returned close
// function flushes the compressor but never closes w itself.
func compressWriter(w io.Writer, c Compression) (io.Writer, func() error, error) {
	switch c {
	case CompressionNone:
		return w, func() error { return nil }, nil
	case CompressionLZ4:
		zw := lz4.NewWriter(w)
		return zw, zw.Close, nil
	case CompressionZstd:
		zw, err := zstd.NewWriter(w)
		if err != nil {
			return nil, nil, fmt.Errorf("archive: zstd writer: %w", err)
		}
		return zw, zw.Close, nil
	default:
		return nil, nil, fmt.Errorf("%w: %d", ErrUnknownCompression, byte(c))
	}
}

func compressReader(r io.Reader, c Compression) (io.Reader, func(), error) {
	switch c {
	case CompressionNone:
		return r, func() {}, nil
	case CompressionLZ4:
		return lz4.NewReader(r), func() {}, nil
	case CompressionZstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("archive: zstd reader: %w", err)
		}
		return zr, zr.Close, nil
	default:
		return nil, nil, fmt.Errorf("%w: %d", ErrUnknownCompression, byte(c))
	}
}
