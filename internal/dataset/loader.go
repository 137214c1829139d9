package dataset

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	pkgerrors "knnvote/pkg/errors"
)

// Loader turns a data source identifier into parallel feature and label
// sequences of equal length.
type Loader interface {
	Load(ctx context.Context, source string) ([]FeatureVector, []bool, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context, source string) ([]FeatureVector, []bool, error)

func (f LoaderFunc) Load(ctx context.Context, source string) ([]FeatureVector, []bool, error) {
	return f(ctx, source)
}

// DelimitedLoader reads separator-delimited text. The last column of every
// row is the label; it is true when it equals PositiveLabel and is removed
// from the feature vector. Fields wrapped in double quotes are unquoted.
type DelimitedLoader struct {
	Separator     string
	SkipHeader    bool
	PositiveLabel string
	Opener        *Opener
}

// NewDelimitedLoader returns a loader for the semicolon separated, quoted,
// header-first layout with a "yes"/"no" label column.
func NewDelimitedLoader(opener *Opener) *DelimitedLoader {
	return &DelimitedLoader{
		Separator:     ";",
		SkipHeader:    true,
		PositiveLabel: "yes",
		Opener:        opener,
	}
}

func (l *DelimitedLoader) Load(ctx context.Context, source string) ([]FeatureVector, []bool, error) {
	opener := l.Opener
	if opener == nil {
		opener = &Opener{}
	}
	rc, err := opener.Open(ctx, source)
	if err != nil {
		return nil, nil, err
	}
	defer rc.Close()

	features, labels, err := l.Read(rc)
	if err != nil {
		return nil, nil, fmt.Errorf("load %s: %w", source, err)
	}
	return features, labels, nil
}

// Read parses labeled rows from r.
func (l *DelimitedLoader) Read(r io.Reader) ([]FeatureVector, []bool, error) {
	reader, err := l.newReader(r)
	if err != nil {
		return nil, nil, err
	}
	if l.SkipHeader {
		if _, err := reader.Read(); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, nil, nil
			}
			return nil, nil, wrapCSVError(err)
		}
		// the header may be narrower or wider than the data rows
		reader.FieldsPerRecord = 0
	}

	var features []FeatureVector
	var labels []bool
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, wrapCSVError(err)
		}
		if len(rec) < 2 {
			line, _ := reader.FieldPos(0)
			return nil, nil, fmt.Errorf("%w: line %d has no attributes besides the label",
				pkgerrors.ErrDataShape, line)
		}
		last := len(rec) - 1
		labels = append(labels, rec[last] == l.PositiveLabel)
		features = append(features, append(FeatureVector(nil), rec[:last]...))
	}
	return features, labels, nil
}

// ParseQuery parses a single unlabeled row using the loader's separator.
func (l *DelimitedLoader) ParseQuery(line string) (FeatureVector, error) {
	reader, err := l.newReader(strings.NewReader(line))
	if err != nil {
		return nil, err
	}
	rec, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: empty query", pkgerrors.ErrDataShape)
	}
	if err != nil {
		return nil, wrapCSVError(err)
	}
	return append(FeatureVector(nil), rec...), nil
}

func (l *DelimitedLoader) newReader(r io.Reader) (*csv.Reader, error) {
	sep, size := utf8.DecodeRuneInString(l.Separator)
	if size == 0 || size != len(l.Separator) {
		return nil, fmt.Errorf("separator must be a single character, got %q", l.Separator)
	}
	reader := csv.NewReader(r)
	reader.Comma = sep
	reader.LazyQuotes = true
	reader.ReuseRecord = true
	return reader, nil
}

func wrapCSVError(err error) error {
	var parseErr *csv.ParseError
	if errors.As(err, &parseErr) {
		return fmt.Errorf("%w: %v", pkgerrors.ErrDataShape, parseErr)
	}
	return err
}
