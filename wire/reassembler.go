package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/c360/sensorwire/errors"
)

// DefaultMaxFrame is the default upper bound on a single frame's declared
// payload length. Camera frames dominate the binary traffic and stay well
// under this.
const DefaultMaxFrame = 64 << 20 // 64 MiB

const headerSize = 4

// Reassembler reconstructs discrete payloads from an unbounded byte stream.
// Each frame on the wire is a 4-byte little-endian unsigned length followed by
// exactly that many payload bytes. A Reassembler is owned by a single
// connection and is not safe for concurrent use.
type Reassembler struct {
	maxFrame uint32
	buf      []byte
}

// NewReassembler creates a Reassembler with the given maximum frame length.
// maxFrame <= 0 selects DefaultMaxFrame.
func NewReassembler(maxFrame uint32) *Reassembler {
	if maxFrame == 0 {
		maxFrame = DefaultMaxFrame
	}
	return &Reassembler{maxFrame: maxFrame}
}

// Feed appends a chunk to the internal buffer and extracts every complete
// frame it now holds, in order. Partial headers and partial payloads are
// retained for the next call; an empty chunk is a no-op. A header declaring a
// length beyond the configured maximum returns an invalid error along with any
// frames completed before it; the connection should be closed and the
// Reassembler discarded, since the stream position is no longer trustworthy.
func (r *Reassembler) Feed(chunk []byte) ([][]byte, error) {
	r.buf = append(r.buf, chunk...)

	var frames [][]byte
	consumed := 0
	for {
		remaining := r.buf[consumed:]
		if len(remaining) < headerSize {
			break
		}
		length := binary.LittleEndian.Uint32(remaining)
		if length > r.maxFrame {
			r.compact(consumed)
			return frames, errors.WrapInvalid(
				fmt.Errorf("declared length %d exceeds maximum %d: %w",
					length, r.maxFrame, errors.ErrFrameTooLarge),
				"wire", "Feed", "parse frame header")
		}
		total := headerSize + int(length)
		if len(remaining) < total {
			break
		}
		payload := make([]byte, length)
		copy(payload, remaining[headerSize:total])
		frames = append(frames, payload)
		consumed += total
	}

	r.compact(consumed)
	return frames, nil
}

// Pending reports how many buffered bytes await completion of the next frame.
func (r *Reassembler) Pending() int {
	return len(r.buf)
}

// compact drops consumed bytes while reusing the buffer's backing array.
func (r *Reassembler) compact(consumed int) {
	if consumed == 0 {
		return
	}
	n := copy(r.buf, r.buf[consumed:])
	r.buf = r.buf[:n]
}

// AppendFrame appends one length-prefixed frame for payload to dst and
// returns the extended slice. It is the encoding counterpart of Feed.
func AppendFrame(dst, payload []byte) []byte {
	var hdr [headerSize]byte
	binary.LittleEndian.PutUint32(hdr[:], uint32(len(payload)))
	dst = append(dst, hdr[:]...)
	return append(dst, payload...)
}
