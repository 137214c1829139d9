package dataset

import (
	"fmt"

	pkgerrors "knnvote/pkg/errors"
)

// FeatureVector is one row of categorical attributes. Arity is fixed per
// dataset but not enforced here; the distance metric decides what to do
// with rows of a different length.
type FeatureVector []string

// LabeledRow pairs a feature vector with its boolean class.
type LabeledRow struct {
	Features FeatureVector `json:"features"`
	Label    bool          `json:"label"`
}

// TrainingSet is an immutable, index-addressed collection of labeled rows.
// The index of a row is its identity for the lifetime of the set.
type TrainingSet struct {
	features []FeatureVector
	labels   []bool
}

// NewTrainingSet copies the parallel feature and label sequences into a set.
func NewTrainingSet(features []FeatureVector, labels []bool) (*TrainingSet, error) {
	if len(features) != len(labels) {
		return nil, fmt.Errorf("%w: %d feature vectors but %d labels",
			pkgerrors.ErrDataShape, len(features), len(labels))
	}
	s := &TrainingSet{
		features: make([]FeatureVector, len(features)),
		labels:   make([]bool, len(labels)),
	}
	for i, f := range features {
		s.features[i] = append(FeatureVector(nil), f...)
	}
	copy(s.labels, labels)
	return s, nil
}

// FromRows builds a set from labeled rows.
func FromRows(rows []LabeledRow) (*TrainingSet, error) {
	features, labels := Split(rows)
	return NewTrainingSet(features, labels)
}

// Split separates rows into parallel feature and label sequences.
func Split(rows []LabeledRow) ([]FeatureVector, []bool) {
	features := make([]FeatureVector, len(rows))
	labels := make([]bool, len(rows))
	for i, r := range rows {
		features[i] = r.Features
		labels[i] = r.Label
	}
	return features, labels
}

// Join zips parallel sequences into rows.
func Join(features []FeatureVector, labels []bool) ([]LabeledRow, error) {
	if len(features) != len(labels) {
		return nil, fmt.Errorf("%w: %d feature vectors but %d labels",
			pkgerrors.ErrDataShape, len(features), len(labels))
	}
	rows := make([]LabeledRow, len(features))
	for i := range features {
		rows[i] = LabeledRow{Features: features[i], Label: labels[i]}
	}
	return rows, nil
}

func (s *TrainingSet) Len() int {
	return len(s.features)
}

// Features returns row i. Callers must not modify it.
func (s *TrainingSet) Features(i int) FeatureVector {
	return s.features[i]
}

func (s *TrainingSet) Label(i int) bool {
	return s.labels[i]
}

// Positives counts rows labeled true.
func (s *TrainingSet) Positives() int {
	n := 0
	for _, l := range s.labels {
		if l {
			n++
		}
	}
	return n
}
