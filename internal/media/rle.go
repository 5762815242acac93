package media

import (
	"errors"
	"fmt"
)

// ErrTruncatedRun reports an RLE stream that ends inside a run.
var ErrTruncatedRun = errors.New("truncated RLE run")

// maxRun is the longest literal or replicate run EncodeRLE emits.
const maxRun = 128

// DecodeRLE expands a byte-oriented run-length stream. A control byte d < 0
// repeats the next byte 1-d times; d >= 0 copies the next 1+d bytes. Decoding
// stops when src is exhausted or, if limit >= 0, once the output holds at
// least limit bytes. A stream that ends inside a run returns what was
// decoded so far together with ErrTruncatedRun.
func DecodeRLE(src []byte, limit int) ([]byte, error) {
	capHint := len(src) * 2
	if limit >= 0 && limit < capHint {
		capHint = limit
	}
	out := make([]byte, 0, capHint)
	i := 0
	for i < len(src) && (limit < 0 || len(out) < limit) {
		d := int8(src[i])
		i++
		if d < 0 {
			if i >= len(src) {
				return out, fmt.Errorf("%w: replicate run at offset %d", ErrTruncatedRun, i-1)
			}
			v := src[i]
			i++
			for n := 1 - int(d); n > 0; n-- {
				out = append(out, v)
			}
			continue
		}
		n := 1 + int(d)
		if i+n > len(src) {
			out = append(out, src[i:]...)
			return out, fmt.Errorf("%w: literal of %d bytes at offset %d, %d left", ErrTruncatedRun, n, i-1, len(src)-i)
		}
		out = append(out, src[i:i+n]...)
		i += n
	}
	return out, nil
}

// EncodeRLE produces a stream DecodeRLE expands back to src. Runs of two or
// more equal bytes become replicate runs; everything else is emitted as
// literals of at most 128 bytes.
func EncodeRLE(src []byte) []byte {
	out := make([]byte, 0, len(src)+len(src)/maxRun+1)
	lit := 0
	flush := func(end int) {
		for lit > 0 {
			n := min(lit, maxRun)
			start := end - lit
			out = append(out, byte(n-1))
			out = append(out, src[start:start+n]...)
			lit -= n
		}
	}
	for i := 0; i < len(src); {
		run := 1
		for i+run < len(src) && run < maxRun && src[i+run] == src[i] {
			run++
		}
		if run >= 2 {
			flush(i)
			out = append(out, byte(int8(1-run)), src[i])
			i += run
			continue
		}
		lit++
		i++
	}
	flush(len(src))
	return out
}
