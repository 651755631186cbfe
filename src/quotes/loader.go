package quotes

import (
	"errors"
	"io/fs"

	"github.com/sirupsen/logrus"

	qerrors "github.com/lensvol/qotd/src/errors"
	"github.com/lensvol/qotd/src/strfile"
)

// Source tells which loading strategy produced a Store.
type Source int

const (
	// SourceIndex means the store came from the index file and its offset table.
	SourceIndex Source = iota
	// SourceLegacy means the store came from scanning the text file for "%" lines.
	SourceLegacy
)

func (s Source) String() string {
	switch s {
	case SourceIndex:
		return "index"
	case SourceLegacy:
		return "legacy"
	default:
		return "unknown"
	}
}

// LoadResult is the outcome of Load.
type LoadResult struct {
	Store  *Store
	Source Source

	// Header is the decoded index header. It is kept even when extraction then
	// failed and the legacy loader was used; nil when the header did not decode.
	Header *strfile.Header

	// IndexErr records why the index attempt was abandoned, if it was.
	IndexErr error
}

// Load builds the quote store for basePath.
//
// It first reads the index at basePath+suffix and resolves every offset against
// basePath. If any step of that attempt fails, or it yields no quotes, the whole
// attempt is discarded and the text file is loaded from scratch in the legacy
// format. Only a failing legacy load is returned as an error.
func Load(basePath, suffix string, logger logrus.FieldLogger) (*LoadResult, error) {
	if suffix == "" {
		suffix = strfile.IndexSuffix
	}
	indexPath := basePath + suffix
	log := logger.WithField("quotes", basePath)

	header, store, indexErr := loadIndexed(basePath, indexPath)
	if indexErr == nil {
		log.WithFields(logrus.Fields{
			"index": indexPath,
			"count": store.Len(),
		}).Info("loaded quotes from index")
		return &LoadResult{Store: store, Source: SourceIndex, Header: header}, nil
	}

	entry := log.WithError(indexErr).WithField("index", indexPath)
	if qerrors.IsFormat(indexErr) && errors.Is(indexErr, fs.ErrNotExist) {
		entry.Info("no index, using legacy loader")
	} else {
		entry.Warn("index unusable, falling back to legacy loader")
	}

	quotes, err := strfile.LoadLegacy(basePath)
	if err != nil {
		return nil, err
	}
	store, err = NewStore(quotes)
	if err != nil {
		return nil, err
	}
	log.WithField("count", store.Len()).Info("loaded quotes from legacy file")
	return &LoadResult{Store: store, Source: SourceLegacy, Header: header, IndexErr: indexErr}, nil
}

func loadIndexed(basePath, indexPath string) (*strfile.Header, *Store, error) {
	header, err := strfile.ReadHeader(indexPath)
	if err != nil {
		return nil, nil, err
	}
	quotes, err := strfile.Extract(basePath, header)
	if err != nil {
		return header, nil, err
	}
	store, err := NewStore(quotes)
	if err != nil {
		return header, nil, qerrors.NewFormatError("index "+indexPath+" lists no quotes", err)
	}
	return header, store, nil
}
