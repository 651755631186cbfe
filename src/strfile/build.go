package strfile

import (
	"io"
	"math"
	"math/rand"
	"os"
	"sort"
	"strings"

	qerrors "github.com/lensvol/qotd/src/errors"
)

type builtQuote struct {
	offset uint32
	text   string
}

// Build scans a delimited text file and returns the index describing it.
// Empty quotes (two separators in a row) are not indexed. With FlagRandom the
// offset table is shuffled, with FlagOrdered it is sorted case-insensitively by
// quote text; asking for both is an error. FlagRotated and FlagHasComments are
// recorded as given.
func Build(r io.Reader, delim byte, flags Flags) (*Header, error) {
	if flags.IsRandom() && flags.IsOrdered() {
		return nil, qerrors.NewFormatError("random and ordered flags are mutually exclusive", nil)
	}

	qr := newQuoteReader(r, delim)

	var built []builtQuote
	var pos int64
	for {
		start := pos
		text, err := qr.next()
		if err != nil {
			return nil, qerrors.NewIOError("scan quote text", err)
		}
		// text plus the two-byte separator line
		pos += int64(len(text)) + 2

		if text != "" {
			if start > math.MaxUint32 {
				return nil, qerrors.NewFormatError("quote file too large for 32-bit offsets", nil)
			}
			built = append(built, builtQuote{offset: uint32(start), text: text})
		}
		if qr.state == stateEOF {
			break
		}
	}

	switch {
	case flags.IsRandom():
		rand.Shuffle(len(built), func(i, j int) { built[i], built[j] = built[j], built[i] })
	case flags.IsOrdered():
		sort.SliceStable(built, func(i, j int) bool {
			return strings.ToLower(built[i].text) < strings.ToLower(built[j].text)
		})
	}

	h := &Header{
		Version: DefaultVersion,
		Flags:   flags,
		Delim:   delim,
		Offsets: make([]uint32, len(built)),
	}
	for i, q := range built {
		h.Offsets[i] = q.offset
		n := uint32(len(q.text))
		if i == 0 || n > h.Longest {
			h.Longest = n
		}
		if i == 0 || n < h.Shortest {
			h.Shortest = n
		}
	}
	h.NumStrings = uint32(len(h.Offsets))
	return h, nil
}

// BuildFile indexes the text file at path.
func BuildFile(path string, delim byte, flags Flags) (*Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, qerrors.NewIOError("open quote file "+path, err)
	}
	defer f.Close()
	return Build(f, delim, flags)
}

// WriteIndex writes h to path atomically (write to path+".tmp", then rename).
func WriteIndex(path string, h *Header) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, h.Encode(), 0o644); err != nil {
		return qerrors.NewIOError("write index "+tmp, err)
	}
	_ = os.Remove(path)
	if err := os.Rename(tmp, path); err != nil {
		return qerrors.NewIOError("rename index "+tmp, err)
	}
	return nil
}
