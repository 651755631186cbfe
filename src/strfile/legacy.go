package strfile

import (
	"bufio"
	"io"
	"os"
	"strings"

	qerrors "github.com/lensvol/qotd/src/errors"
)

// legacyTerminator is the line that closes a quote in an unindexed file.
const legacyTerminator = "%"

// LoadLegacy reads an unindexed quote file.
func LoadLegacy(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, qerrors.NewIOError("open quote file "+path, err)
	}
	defer f.Close()

	quotes, err := ParseLegacy(f)
	if err != nil {
		return nil, qerrors.NewIOError("read quote file "+path, err)
	}
	return quotes, nil
}

// ParseLegacy splits r into quotes at lines equal to "%". Every other line is kept
// with a trailing '\n' (CRLF endings are normalized). A final quote without its
// closing "%" line is dropped.
func ParseLegacy(r io.Reader) ([]string, error) {
	br := bufio.NewReader(r)
	quotes := []string{}
	var quote strings.Builder

	for {
		line, err := br.ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, err
		}
		if line == "" && err == io.EOF {
			break
		}

		line = strings.TrimSuffix(line, "\n")
		line = strings.TrimSuffix(line, "\r")
		if line == legacyTerminator {
			quotes = append(quotes, quote.String())
			quote.Reset()
		} else {
			quote.WriteString(line)
			quote.WriteByte('\n')
		}

		if err == io.EOF {
			break
		}
	}
	return quotes, nil
}
