package crx

import (
	"encoding/binary"

	"github.com/cipher-rc5/crx-util/internal/crxerr"
)

// ReadU32LE decodes a little-endian uint32 at off. Fails when fewer than
// four bytes remain.
func ReadU32LE(buf []byte, off int) (uint32, error) {
	if off < 0 || off+4 > len(buf) {
		return 0, crxerr.Validation(crxerr.CodeMalformedInput,
			"cannot read 4 bytes at offset %d (buffer is %d bytes)", off, len(buf))
	}
	return binary.LittleEndian.Uint32(buf[off:]), nil
}

// Cursor is a positional reader over a loaded buffer. The zero value has no
// buffer loaded; reads fail until Load is called.
type Cursor struct {
	buf    []byte
	off    int
	loaded bool
}

// Load resets the cursor onto buf.
func (c *Cursor) Load(buf []byte) {
	c.buf = buf
	c.off = 0
	c.loaded = true
}

// Offset returns the current cursor position.
func (c *Cursor) Offset() int { return c.off }

// ReadU32LE reads the next little-endian uint32 and advances the cursor.
func (c *Cursor) ReadU32LE() (uint32, error) {
	if !c.loaded {
		return 0, crxerr.Validation(crxerr.CodeInternalState, "no buffer loaded")
	}
	v, err := ReadU32LE(c.buf, c.off)
	if err != nil {
		return 0, err
	}
	c.off += 4
	return v, nil
}
