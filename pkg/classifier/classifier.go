package classifier

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// DecisionThreshold is the fraud-class probability above which a record is labelled fraudulent.
// It is part of the trained artifact's contract and is not configurable at inference time.
const DecisionThreshold = 0.5

const (
	LabelLegitimate = 0
	LabelFraudulent = 1
)

// Features is one record to score, keyed by the feature names the model was trained on.
type Features struct {
	Numeric     map[string]float64
	Categorical map[string]string
}

// Result is the outcome of scoring one record.
type Result struct {
	Prediction  int     `json:"prediction"`
	Probability float64 `json:"probability"`
}

// Classifier scores feature records. Implementations must be safe for concurrent use.
type Classifier interface {
	PredictProba(features Features) (Result, error)
}

// MissingFeatureError reports a feature the model requires but the record lacks.
type MissingFeatureError struct {
	Feature string
}

func (e *MissingFeatureError) Error() string {
	return fmt.Sprintf("missing feature: %s", e.Feature)
}

// UnknownCategoryError reports a categorical value outside the trained vocabulary.
type UnknownCategoryError struct {
	Feature string
	Value   string
}

func (e *UnknownCategoryError) Error() string {
	return fmt.Sprintf("unknown category %q for feature %s", e.Value, e.Feature)
}

// Forest is an immutable random-forest scoring pipeline built from an Artifact.
type Forest struct {
	artifact   Artifact
	width      int
	categories map[string]map[string]int // feature -> category -> column offset, -1 for the dropped one
}

// NewForest validates a and precomputes the one-hot layout.
func NewForest(a Artifact) (*Forest, error) {
	if err := a.validate(); err != nil {
		return nil, fmt.Errorf("invalid model artifact: %w", err)
	}
	f := &Forest{
		artifact:   a,
		width:      a.width(),
		categories: make(map[string]map[string]int, len(a.CategoricalFeatures)),
	}
	offset := len(a.NumericFeatures)
	for _, name := range a.CategoricalFeatures {
		columns := make(map[string]int, len(a.Categories[name]))
		for i, cat := range a.Categories[name] {
			if a.DropFirst && i == 0 {
				columns[cat] = -1
				continue
			}
			columns[cat] = offset
			offset++
		}
		f.categories[name] = columns
	}
	return f, nil
}

// Version returns the artifact version string.
func (f *Forest) Version() string { return f.artifact.Version }

// RequiredFeatures lists every feature name a record must carry.
func (f *Forest) RequiredFeatures() []string {
	names := make([]string, 0, len(f.artifact.NumericFeatures)+len(f.artifact.CategoricalFeatures))
	names = append(names, f.artifact.NumericFeatures...)
	return append(names, f.artifact.CategoricalFeatures...)
}

// TreeCount returns the number of trees in the forest.
func (f *Forest) TreeCount() int { return len(f.artifact.Trees) }

// PredictProba returns the mean leaf probability over all trees and the thresholded label.
func (f *Forest) PredictProba(features Features) (Result, error) {
	x, err := f.encode(features)
	if err != nil {
		return Result{}, err
	}
	votes := make([]float64, len(f.artifact.Trees))
	for i, tree := range f.artifact.Trees {
		votes[i] = tree.walk(x)
	}
	p := stat.Mean(votes, nil)
	return Result{Prediction: Label(p), Probability: p}, nil
}

// Label thresholds a fraud probability at DecisionThreshold.
func Label(probability float64) int {
	if probability > DecisionThreshold {
		return LabelFraudulent
	}
	return LabelLegitimate
}

// encode builds the scaled numeric block followed by the one-hot categorical block.
func (f *Forest) encode(features Features) ([]float64, error) {
	a := f.artifact
	x := make([]float64, f.width)
	numeric := x[:len(a.NumericFeatures)]
	for i, name := range a.NumericFeatures {
		v, ok := features.Numeric[name]
		if !ok {
			return nil, &MissingFeatureError{Feature: name}
		}
		numeric[i] = v
	}
	floats.Sub(numeric, a.Scaler.Mean)
	floats.Div(numeric, a.Scaler.Scale)

	for _, name := range a.CategoricalFeatures {
		v, ok := features.Categorical[name]
		if !ok {
			return nil, &MissingFeatureError{Feature: name}
		}
		col, ok := f.categories[name][v]
		if !ok {
			return nil, &UnknownCategoryError{Feature: name, Value: v}
		}
		if col >= 0 {
			x[col] = 1
		}
	}
	return x, nil
}

func (t Tree) walk(x []float64) float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Leaf {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}
