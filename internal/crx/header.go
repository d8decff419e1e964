// Package crx parses the Chrome extension container format: a 4-byte magic,
// a 4-byte version, version-specific header fields, then the embedded zip
// payload.
package crx

import (
	"bytes"

	"github.com/cipher-rc5/crx-util/internal/crxerr"
)

// Magic is the container signature at offset 0.
var Magic = []byte("Cr24")

const (
	Version2 uint32 = 2
	Version3 uint32 = 3
)

// Header describes a parsed container.
type Header struct {
	Version       uint32
	PayloadOffset uint32
}

// HasMagic reports whether buf begins with the container signature.
func HasMagic(buf []byte) bool {
	return len(buf) >= len(Magic) && bytes.Equal(buf[:len(Magic)], Magic)
}

// ParseHeader interprets the container header of buf and computes the
// offset of the embedded archive payload. Parsing is all-or-nothing: on any
// failure no partial header is returned.
func ParseHeader(buf []byte) (Header, error) {
	if len(buf) < len(Magic) || !HasMagic(buf) {
		return Header{}, crxerr.Validation(crxerr.CodeMalformedInput, "missing Cr24 magic")
	}

	var cur Cursor
	cur.Load(buf)
	cur.off = len(Magic)

	version, err := cur.ReadU32LE()
	if err != nil {
		return Header{}, err
	}

	// The offset is summed in uint64: length fields are attacker-controlled
	// and a uint32 sum can wrap back under len(buf).
	var payloadOffset uint64
	switch version {
	case Version2:
		publicKeyLen, err := cur.ReadU32LE()
		if err != nil {
			return Header{}, err
		}
		signatureLen, err := cur.ReadU32LE()
		if err != nil {
			return Header{}, err
		}
		payloadOffset = uint64(cur.Offset()) + uint64(publicKeyLen) + uint64(signatureLen)
	case Version3:
		headerSize, err := cur.ReadU32LE()
		if err != nil {
			return Header{}, err
		}
		payloadOffset = uint64(cur.Offset()) + uint64(headerSize)
	default:
		return Header{}, crxerr.Validation(crxerr.CodeUnsupportedVersion,
			"unsupported CRX version %d", version)
	}

	if payloadOffset >= uint64(len(buf)) {
		return Header{}, crxerr.Validation(crxerr.CodeMalformedInput,
			"payload offset %d exceeds file size %d", payloadOffset, len(buf))
	}

	return Header{Version: version, PayloadOffset: uint32(payloadOffset)}, nil
}
