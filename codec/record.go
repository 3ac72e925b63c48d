package codec

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/fergl/geoclust/model"
)

// lengthSize is the size of the frame length prefix.
const lengthSize = 4

// RecordDecodeError reports a payload that carried a structurally valid
// length prefix but failed to parse.
//
// The underlying parse error can be accessed via errors.Unwrap.
type RecordDecodeError struct {
	Offset int
	cause  error
}

func (e *RecordDecodeError) Error() string {
	return fmt.Sprintf("record decode failed at offset %d: %v", e.Offset, e.cause)
}

func (e *RecordDecodeError) Unwrap() error { return e.cause }

// EncodeRecord frames a record for the shared append buffer:
// [4-byte little-endian payload length][payload bytes].
//
// The little-endian prefix is a wire-format contract shared with the archive
// format, not an implementation detail.
func EncodeRecord(c Codec, r *model.Record) ([]byte, error) {
	if c == nil {
		c = Default
	}
	payload, err := c.Marshal(r)
	if err != nil {
		return nil, err
	}
	if len(payload) > math.MaxUint32 {
		return nil, fmt.Errorf("record payload of %d bytes exceeds length field", len(payload))
	}
	buf := make([]byte, lengthSize+len(payload))
	binary.LittleEndian.PutUint32(buf, uint32(len(payload))) //nolint:gosec // bounds checked above
	copy(buf[lengthSize:], payload)
	return buf, nil
}

// DecodeRecord reads one framed record at off.
//
// A zero length prefix, or a frame that would run past the end of buf,
// terminates the caller's scan: record and error are nil and zero bytes are
// consumed. A payload that fails to parse consumes the full frame and
// returns a *RecordDecodeError; the length prefix is trusted structurally,
// so subsequent offsets remain valid.
func DecodeRecord(c Codec, buf []byte, off int) (*model.Record, int, error) {
	if c == nil {
		c = Default
	}
	if off < 0 || off+lengthSize > len(buf) {
		return nil, 0, nil
	}
	n := int(binary.LittleEndian.Uint32(buf[off:]))
	if n == 0 || off+lengthSize+n > len(buf) {
		return nil, 0, nil
	}
	var r model.Record
	if err := c.Unmarshal(buf[off+lengthSize:off+lengthSize+n], &r); err != nil {
		return nil, lengthSize + n, &RecordDecodeError{Offset: off, cause: err}
	}
	return &r, lengthSize + n, nil
}

// ScanRecords decodes framed records from buf until the terminator, a decode
// error, or the end of the region.
//
// On a decode error the scan stops at that offset and the records decoded so
// far are returned alongside the error; callers treat this as a degraded
// read, not a failure.
func ScanRecords(c Codec, buf []byte) ([]*model.Record, error) {
	var out []*model.Record
	off := 0
	for off < len(buf) {
		r, n, err := DecodeRecord(c, buf, off)
		if err != nil {
			return out, err
		}
		if n == 0 {
			break
		}
		out = append(out, r)
		off += n
	}
	return out, nil
}
