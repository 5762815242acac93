package rifx

import "errors"

var (
	ErrBadFileType         = errors.New("bad file type")
	ErrUnsupportedEnvelope = errors.New("unsupported container envelope")
	ErrSectionMismatch     = errors.New("section header does not match section map")
	ErrInvalidSection      = errors.New("invalid section index")
	ErrSectionNotFound     = errors.New("required section not found")
	ErrShortBuffer         = errors.New("short buffer")
	ErrVarintOverflow      = errors.New("varint overflows 64 bits")
)
