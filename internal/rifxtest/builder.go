// Package rifxtest builds synthetic containers for tests.
package rifxtest

import (
	"encoding/binary"

	"github.com/Arusekk/Schockabsorber/internal/rifx"
)

// FirstSection is the number Add returns for the first section. Positions
// 0, 1 and 2 hold the container, imap and mmap records.
const FirstSection = 3

const (
	imapLen        = 16
	mmapHeaderLen  = 24
	mmapEntryLen   = 20
	chunkHeaderLen = 8
)

// Builder lays out an uncompressed container: header, imap, mmap, then the
// added sections in order.
type Builder struct {
	LittleEndian bool
	FileTag      rifx.Tag
	// Magic overrides the container magic when set.
	Magic rifx.Tag

	sections []section
}

type section struct {
	tag     rifx.Tag
	diskTag rifx.Tag
	payload []byte
	// mapSize, when non-zero, is recorded in the mmap instead of the
	// payload length.
	mapSize uint32
}

// New returns a builder for an "MV93" container in the given byte order.
func New(littleEndian bool) *Builder {
	return &Builder{LittleEndian: littleEndian, FileTag: rifx.TagMV93}
}

// Add appends a section and returns its number.
func (b *Builder) Add(tag rifx.Tag, payload []byte) int {
	return b.AddMislabeled(tag, tag, payload)
}

// AddMislabeled records mapTag in the mmap but writes diskTag in the
// section's own header.
func (b *Builder) AddMislabeled(mapTag, diskTag rifx.Tag, payload []byte) int {
	b.sections = append(b.sections, section{tag: mapTag, diskTag: diskTag, payload: payload})
	return FirstSection + len(b.sections) - 1
}

// AddOversized writes payload but records declared as its size in the
// mmap.
func (b *Builder) AddOversized(tag rifx.Tag, payload []byte, declared uint32) int {
	b.sections = append(b.sections, section{tag: tag, diskTag: tag, payload: payload, mapSize: declared})
	return FirstSection + len(b.sections) - 1
}

func (b *Builder) order() binary.AppendByteOrder {
	if b.LittleEndian {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

func (b *Builder) appendTag(dst []byte, t rifx.Tag) []byte {
	return append(dst, t.Bytes(b.LittleEndian)...)
}

func (b *Builder) appendChunk(dst []byte, t rifx.Tag, payload []byte) []byte {
	dst = b.appendTag(dst, t)
	dst = b.order().AppendUint32(dst, uint32(len(payload)))
	return append(dst, payload...)
}

// Build serializes the container.
func (b *Builder) Build() []byte {
	o := b.order()
	n := FirstSection + len(b.sections)
	mmapLen := mmapHeaderLen + n*mmapEntryLen

	imapOff := rifx.HeaderSize
	mmapOff := imapOff + chunkHeaderLen + imapLen
	offsets := make([]int, len(b.sections))
	next := mmapOff + chunkHeaderLen + mmapLen
	for i, s := range b.sections {
		offsets[i] = next
		next += chunkHeaderLen + len(s.payload)
	}
	total := next

	type rec struct {
		tag          rifx.Tag
		size, offset uint32
	}
	recs := []rec{
		{rifx.TagRIFX, uint32(total - chunkHeaderLen), 0},
		{rifx.TagIMap, imapLen, uint32(imapOff)},
		{rifx.TagMMap, uint32(mmapLen), uint32(mmapOff)},
	}
	for i, s := range b.sections {
		size := uint32(len(s.payload))
		if s.mapSize != 0 {
			size = s.mapSize
		}
		recs = append(recs, rec{s.tag, size, uint32(offsets[i])})
	}

	mmap := make([]byte, 0, mmapLen)
	mmap = o.AppendUint16(mmap, mmapHeaderLen)
	mmap = o.AppendUint16(mmap, mmapEntryLen)
	mmap = o.AppendUint32(mmap, uint32(n))
	mmap = o.AppendUint32(mmap, uint32(n))
	mmap = o.AppendUint32(mmap, 0xffffffff)
	mmap = o.AppendUint32(mmap, 0xffffffff)
	mmap = o.AppendUint32(mmap, 0xffffffff)
	for _, r := range recs {
		mmap = b.appendTag(mmap, r.tag)
		mmap = o.AppendUint32(mmap, r.size)
		mmap = o.AppendUint32(mmap, r.offset)
		mmap = o.AppendUint16(mmap, 0)
		mmap = o.AppendUint16(mmap, 0)
		mmap = o.AppendUint32(mmap, 0)
	}

	imap := make([]byte, 0, imapLen)
	imap = o.AppendUint32(imap, 1)
	imap = o.AppendUint32(imap, uint32(mmapOff))
	imap = o.AppendUint32(imap, 0)
	imap = o.AppendUint32(imap, 0)

	magic := b.Magic
	if magic == "" {
		magic = rifx.TagRIFX
	}
	out := make([]byte, 0, total)
	out = b.appendTag(out, magic)
	out = o.AppendUint32(out, uint32(total-chunkHeaderLen))
	out = b.appendTag(out, b.FileTag)
	out = b.appendChunk(out, rifx.TagIMap, imap)
	out = b.appendChunk(out, rifx.TagMMap, mmap)
	for _, s := range b.sections {
		out = b.appendChunk(out, s.diskTag, s.payload)
	}
	return out
}
