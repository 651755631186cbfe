package strfile

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	qerrors "github.com/lensvol/qotd/src/errors"
)

type readState uint8

const (
	stateAccumulate readState = iota
	stateSeparator
	stateEOF
)

// quoteReader accumulates lines until it reaches a separator line (the delimiter
// followed by '\n') or the end of input.
type quoteReader struct {
	r     *bufio.Reader
	delim byte
	state readState
}

func newQuoteReader(r io.Reader, delim byte) *quoteReader {
	return &quoteReader{
		r:     bufio.NewReader(r),
		delim: delim,
	}
}

// reset discards buffered input so the next read starts at the underlying
// reader's current position.
func (qr *quoteReader) reset(r io.Reader) {
	qr.r.Reset(r)
	qr.state = stateAccumulate
}

func (qr *quoteReader) isSeparator(line string) bool {
	return len(line) == 2 && line[0] == qr.delim && line[1] == '\n'
}

// next reads one quote. The returned text includes the newline of every interior
// line and excludes the separator. Reaching EOF before a separator is not an error.
func (qr *quoteReader) next() (string, error) {
	var quote strings.Builder
	qr.state = stateAccumulate

	for qr.state == stateAccumulate {
		line, err := qr.r.ReadString('\n')
		switch {
		case err == io.EOF:
			// A bare delimiter on the last line still closes the quote.
			if line != string(qr.delim) {
				quote.WriteString(line)
			}
			qr.state = stateEOF
		case err != nil:
			return "", err
		case qr.isSeparator(line):
			qr.state = stateSeparator
		default:
			quote.WriteString(line)
		}
	}
	return quote.String(), nil
}

// ExtractOne reads the quote starting at offset in r.
func ExtractOne(r io.ReadSeeker, offset uint32, delim byte) (string, error) {
	if _, err := r.Seek(int64(offset), io.SeekStart); err != nil {
		return "", qerrors.NewIOError(fmt.Sprintf("seek to offset %d", offset), err)
	}
	quote, err := newQuoteReader(r, delim).next()
	if err != nil {
		return "", qerrors.NewIOError(fmt.Sprintf("read quote at offset %d", offset), err)
	}
	return quote, nil
}

// Extract resolves every offset of h against the text file at textPath, in table
// order. Quotes are rot13-decoded when h has FlagRotated. An offset beyond the end
// of the file, or any seek or read failure, aborts the whole extraction.
func Extract(textPath string, h *Header) ([]string, error) {
	f, err := os.Open(textPath)
	if err != nil {
		return nil, qerrors.NewIOError("open quote file "+textPath, err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, qerrors.NewIOError("stat quote file "+textPath, err)
	}
	size := fi.Size()

	qr := newQuoteReader(f, h.Delim)
	quotes := make([]string, 0, len(h.Offsets))
	for i, off := range h.Offsets {
		if int64(off) > size {
			return nil, qerrors.NewIOError(
				fmt.Sprintf("offset %d of quote %d is past end of %s (%d bytes)", off, i, textPath, size),
				io.ErrUnexpectedEOF)
		}
		if _, err := f.Seek(int64(off), io.SeekStart); err != nil {
			return nil, qerrors.NewIOError(fmt.Sprintf("seek to offset %d of quote %d", off, i), err)
		}
		qr.reset(f)

		quote, err := qr.next()
		if err != nil {
			return nil, qerrors.NewIOError(fmt.Sprintf("read quote %d at offset %d", i, off), err)
		}
		if h.Flags.IsRotated() {
			quote = Rot13(quote)
		}
		quotes = append(quotes, quote)
	}
	return quotes, nil
}
