package media

import (
	"bytes"
	"fmt"

	"github.com/Arusekk/Schockabsorber/internal/logger"
	"github.com/Arusekk/Schockabsorber/internal/rifx"
)

const (
	vectorShapeType = "vectorShape"
	flashTag        = rifx.Tag("FLSH")
	pointSentinel   = -0x80000000
)

// Extended is a type-tagged extension payload: a media-type name and an
// info blob. Vector is set when the info blob is a Flash vector shape.
type Extended struct {
	MediaType string
	Info      []byte
	Vector    *VectorShape
}

// VectorShape is the point list embedded in vectorShape extension data.
// Reserved words are preserved in file order.
type VectorShape struct {
	Size     uint32
	Reserved [24]int32
	Header   [35]int32
	PropName []byte
	Points   [][6]int32
	EndProp  []byte
}

// ParseExtended reads the two length-prefixed fields of an extension
// payload from buf (big-endian) and decodes a vector shape when the media
// type is "vectorShape" and the info starts with "FLSH". Vector shape
// problems are logged and leave Vector nil.
func ParseExtended(buf *rifx.SeqBuffer, log logger.Logger) (*Extended, error) {
	log = logger.OrNop(log)

	typeLen, err := buf.ReadU32()
	if err != nil {
		return nil, fmt.Errorf("extension type length: %w", err)
	}
	mediaType, err := buf.ReadBytes(int(typeLen))
	if err != nil {
		return nil, fmt.Errorf("extension type: %w", err)
	}
	infoLen, err := buf.ReadU32()
	if err != nil {
		return nil, fmt.Errorf("extension info length: %w", err)
	}
	info, err := buf.ReadBytes(int(infoLen))
	if err != nil {
		return nil, fmt.Errorf("extension info: %w", err)
	}

	x := &Extended{MediaType: string(mediaType), Info: info}
	if len(info) >= 4 && rifx.Tag(info[:4]) == flashTag && x.MediaType == vectorShapeType {
		vs, err := ParseVectorShape(info, log)
		if err != nil {
			log.Warn("vector shape not decoded", "error", err)
		} else {
			x.Vector = vs
		}
	}
	return x, nil
}

// ParseVectorShape decodes a "FLSH"-tagged info blob. Every point after the
// first is preceded by a -0x80000000 separator. Mismatched size echoes,
// separators and trailing bytes are logged, not fatal.
func ParseVectorShape(info []byte, log logger.Logger) (*VectorShape, error) {
	log = logger.OrNop(log)
	buf := rifx.BigEndian(info)
	if _, err := buf.ReadTag(); err != nil {
		return nil, err
	}

	vs := &VectorShape{}
	var err error
	if vs.Size, err = buf.ReadU32(); err != nil {
		return nil, err
	}
	if int(vs.Size) != len(info) {
		log.Warn("vector shape size echo mismatch", "expected", len(info), "got", vs.Size)
	}
	if err := buf.Decode(&vs.Reserved); err != nil {
		return nil, err
	}
	npoints, err := buf.ReadU32()
	if err != nil {
		return nil, err
	}
	if err := buf.Decode(&vs.Header); err != nil {
		return nil, err
	}
	if vs.PropName, err = readProp(buf); err != nil {
		return nil, err
	}

	if room := buf.Remaining() / 24; int64(npoints) > int64(room) {
		return nil, fmt.Errorf("%w: %d points declared, room for at most %d", rifx.ErrShortBuffer, npoints, room)
	}
	vs.Points = make([][6]int32, 0, npoints)
	for i := range int(npoints) {
		if i > 0 {
			sep, err := buf.ReadI32()
			if err != nil {
				return nil, err
			}
			if sep != pointSentinel {
				log.Warn("vector shape point separator mismatch", "point", i, "expected", int32(pointSentinel), "got", sep)
			}
		}
		var p [6]int32
		if err := buf.Decode(&p); err != nil {
			return nil, err
		}
		vs.Points = append(vs.Points, p)
	}

	if vs.EndProp, err = readProp(buf); err != nil {
		return nil, err
	}
	if !buf.AtEnd() {
		log.Warn("vector shape has trailing bytes", "count", buf.Remaining(), "bytes", buf.Peek())
	}
	return vs, nil
}

func readProp(buf *rifx.SeqBuffer) ([]byte, error) {
	n, err := buf.ReadU32()
	if err != nil {
		return nil, err
	}
	return buf.ReadBytes(int(n))
}

// flashMarker sits at offset 4 of extension media holding a raw Flash movie.
var flashMarker = []byte{0, 0, 0, 1}

// FlashPayload returns the embedded Flash movie of an XMED blob, if any.
func FlashPayload(data []byte) ([]byte, bool) {
	if len(data) < 12 || !bytes.Equal(data[4:8], flashMarker) {
		return nil, false
	}
	return data[12:], true
}
