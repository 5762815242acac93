package cast

import (
	"fmt"

	"github.com/Arusekk/Schockabsorber/internal/logger"
	"github.com/Arusekk/Schockabsorber/internal/rifx"
)

// DirConfig is the movie configuration section.
type DirConfig struct {
	Tag     rifx.Tag
	Misc1   [32]int16
	Misc2   [3]int32
	Palette int32
	Tail    []byte
}

// ParseDirConfig decodes a "DRCF" or "VWCF" payload.
func ParseDirConfig(tag rifx.Tag, blob []byte, log logger.Logger) (*DirConfig, error) {
	buf := rifx.BigEndian(blob)
	c := &DirConfig{Tag: tag}
	var fixed struct {
		Misc1   [32]int16
		Misc2   [3]int32
		Palette int32
	}
	if err := buf.Decode(&fixed); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrTruncated, tag, err)
	}
	c.Misc1, c.Misc2, c.Palette = fixed.Misc1, fixed.Misc2, fixed.Palette
	c.Tail = buf.Rest()
	logger.OrNop(log).Debug("movie config", "tag", string(tag), "palette", c.Palette, "tail", len(c.Tail))
	return c, nil
}

// OrderEntry is one (library, member) reference of the cast order.
type OrderEntry struct {
	Library uint16
	Member  uint16
}

// ParseCastOrder decodes a "Sord" payload. A declared count larger than the
// payload is clamped with a warning.
func ParseCastOrder(blob []byte, log logger.Logger) ([]OrderEntry, error) {
	log = logger.OrNop(log)
	buf := rifx.BigEndian(blob)
	var hdr [5]int32
	if err := buf.Decode(&hdr); err != nil {
		return nil, fmt.Errorf("%w: Sord header: %v", ErrTruncated, err)
	}
	log.Debug("cast order header", "header", hdr[:])
	n := int(max(hdr[2], 0))
	if room := buf.Remaining() / 4; n > room {
		log.Warn("cast order shorter than declared", "expected", n, "got", room)
		n = room
	}
	out := make([]OrderEntry, n)
	if err := buf.Decode(out); err != nil {
		return nil, fmt.Errorf("%w: Sord entries: %v", ErrTruncated, err)
	}
	return out, nil
}
