// Package strfile reads and writes fortune-style quote files.
//
// A quote collection is a flat text file in which quotes are separated by a line
// holding only the delimiter character. An optional companion index file (the text
// file path plus IndexSuffix) carries a fixed header followed by a table of byte
// offsets, one per quote, so quotes can be located without scanning the text.
//
// Index file layout (all integers big-endian):
//
//	offset  size        field
//	0       4           version
//	4       4           number of strings
//	8       4           longest quote length
//	12      4           shortest quote length
//	16      4           flags
//	20      1           delimiter
//	21      3           padding
//	24      4*count     offset table
//
// Without an index the text file is read in the legacy format, where quotes are
// terminated by a line holding a single '%'.
package strfile

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/edsrzf/mmap-go"

	qerrors "github.com/lensvol/qotd/src/errors"
)

const (
	// HeaderSize is the size of the fixed header including alignment padding.
	HeaderSize = 24

	// OffsetSize is the size of one offset table entry.
	OffsetSize = 4

	// IndexSuffix is appended to a quote file path to locate its index.
	IndexSuffix = ".dat"

	// DefaultVersion is written by Build.
	DefaultVersion uint32 = 2

	// DefaultDelim separates quotes in both the indexed and the legacy formats.
	DefaultDelim byte = '%'

	// prefixSize covers the five u32 fields and the delimiter byte.
	prefixSize = 21
)

// Flags is the header bitmask. Bits are independent and may combine.
type Flags uint32

const (
	// FlagRandom marks an offset table stored in random order.
	FlagRandom Flags = 1 << iota
	// FlagOrdered marks an offset table sorted by quote text.
	FlagOrdered
	// FlagRotated marks quote text stored rot13-encoded.
	FlagRotated
	// FlagHasComments marks a text file that may carry comment lines.
	FlagHasComments
)

// Has returns true if every bit of mask is set.
func (f Flags) Has(mask Flags) bool {
	return mask != 0 && f&mask == mask
}

// IsRandom returns true if the RANDOM flag is set.
func (f Flags) IsRandom() bool {
	return f&FlagRandom != 0
}

// IsOrdered returns true if the ORDERED flag is set.
func (f Flags) IsOrdered() bool {
	return f&FlagOrdered != 0
}

// IsRotated returns true if the ROTATED flag is set.
func (f Flags) IsRotated() bool {
	return f&FlagRotated != 0
}

// HasComments returns true if the HAS_COMMENTS flag is set.
func (f Flags) HasComments() bool {
	return f&FlagHasComments != 0
}

// Header is a decoded index file.
type Header struct {
	Version    uint32
	NumStrings uint32
	Longest    uint32
	Shortest   uint32
	Flags      Flags
	Delim      byte

	// Offsets holds exactly NumStrings byte offsets into the text file, in file order.
	Offsets []uint32
}

// DecodeHeader decodes an index from src.
// It fails when src is shorter than the fixed prefix or ends before the full offset
// table. Flags, offsets and the length bounds are not cross-checked.
func DecodeHeader(src []byte) (*Header, error) {
	if len(src) < prefixSize {
		return nil, qerrors.NewFormatError(
			fmt.Sprintf("header too short: %d bytes, need %d", len(src), prefixSize), io.ErrUnexpectedEOF)
	}

	h := &Header{
		Version:    binary.BigEndian.Uint32(src[0:4]),
		NumStrings: binary.BigEndian.Uint32(src[4:8]),
		Longest:    binary.BigEndian.Uint32(src[8:12]),
		Shortest:   binary.BigEndian.Uint32(src[12:16]),
		Flags:      Flags(binary.BigEndian.Uint32(src[16:20])),
		Delim:      src[20],
	}

	if h.NumStrings == 0 {
		h.Offsets = []uint32{}
		return h, nil
	}

	need := uint64(HeaderSize) + uint64(h.NumStrings)*OffsetSize
	if uint64(len(src)) < need {
		return nil, qerrors.NewFormatError(
			fmt.Sprintf("offset table truncated: %d bytes, need %d for %d strings", len(src), need, h.NumStrings),
			io.ErrUnexpectedEOF)
	}

	h.Offsets = make([]uint32, h.NumStrings)
	pos := HeaderSize
	for i := range h.Offsets {
		h.Offsets[i] = binary.BigEndian.Uint32(src[pos:])
		pos += OffsetSize
	}
	return h, nil
}

// ReadHeader maps the index file at path read-only and decodes it.
// Every failure, including a missing file, is reported as a format error so the
// caller can fall back to the legacy loader.
func ReadHeader(path string) (*Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, qerrors.NewFormatError("open index "+path, err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, qerrors.NewFormatError("stat index "+path, err)
	}
	if fi.Size() == 0 {
		return DecodeHeader(nil)
	}

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, qerrors.NewFormatError("map index "+path, err)
	}
	defer m.Unmap()

	return DecodeHeader(m)
}

// Encode returns the binary index for h. NumStrings is taken from len(Offsets).
func (h *Header) Encode() []byte {
	buf := make([]byte, HeaderSize+len(h.Offsets)*OffsetSize)
	binary.BigEndian.PutUint32(buf[0:4], h.Version)
	binary.BigEndian.PutUint32(buf[4:8], uint32(len(h.Offsets)))
	binary.BigEndian.PutUint32(buf[8:12], h.Longest)
	binary.BigEndian.PutUint32(buf[12:16], h.Shortest)
	binary.BigEndian.PutUint32(buf[16:20], uint32(h.Flags))
	buf[20] = h.Delim

	pos := HeaderSize
	for _, off := range h.Offsets {
		binary.BigEndian.PutUint32(buf[pos:], off)
		pos += OffsetSize
	}
	return buf
}

// Describe writes the human-readable header summary shown at startup.
func (h *Header) Describe(w io.Writer) error {
	_, err := fmt.Fprintf(w,
		"Version:\t%d\nStrings:\t%d\nLongest:\t%d\nShortest:\t%d\nDelimiter:\t%q\n"+
			"Randomized:\t%t\nOrdered:\t%t\nROT13:\t\t%t\nComments:\t%t\n",
		h.Version, h.NumStrings, h.Longest, h.Shortest, rune(h.Delim),
		h.Flags.IsRandom(), h.Flags.IsOrdered(), h.Flags.IsRotated(), h.Flags.HasComments())
	return err
}
