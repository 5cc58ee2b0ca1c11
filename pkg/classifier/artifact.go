package classifier

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Artifact is the serialized, pre-trained scoring pipeline produced by the training job:
// a standard scaler over the numeric features, a one-hot encoder over the categorical
// features and a forest of binary decision trees.
type Artifact struct {
	Version             string              `json:"version"`
	NumericFeatures     []string            `json:"numeric_features"`
	CategoricalFeatures []string            `json:"categorical_features"`
	Scaler              Scaler              `json:"scaler"`
	Categories          map[string][]string `json:"categories"`
	DropFirst           bool                `json:"drop_first"`
	Trees               []Tree              `json:"trees"`
}

// Scaler holds the per-feature standardisation parameters, aligned with NumericFeatures.
type Scaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

// Tree is a flattened binary decision tree; Nodes[0] is the root.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Node is either a split (x[Feature] <= Threshold goes Left) or a leaf carrying the
// fraud-class probability in Value.
type Node struct {
	Leaf      bool    `json:"leaf,omitempty"`
	Value     float64 `json:"value,omitempty"`
	Feature   int     `json:"feature,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
	Left      int     `json:"left,omitempty"`
	Right     int     `json:"right,omitempty"`
}

// Load reads and validates the artifact at path and returns a ready Forest.
func Load(path string) (*Forest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open model artifact: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes an artifact from r and returns a ready Forest.
func Parse(r io.Reader) (*Forest, error) {
	var a Artifact
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&a); err != nil {
		return nil, fmt.Errorf("decode model artifact: %w", err)
	}
	return NewForest(a)
}

// width is the length of the encoded feature vector.
func (a Artifact) width() int {
	n := len(a.NumericFeatures)
	for _, name := range a.CategoricalFeatures {
		n += len(a.encodedCategories(name))
	}
	return n
}

// encodedCategories returns the categories that get their own one-hot column.
func (a Artifact) encodedCategories(feature string) []string {
	cats := a.Categories[feature]
	if a.DropFirst && len(cats) > 0 {
		return cats[1:]
	}
	return cats
}

func (a Artifact) validate() error {
	if len(a.NumericFeatures)+len(a.CategoricalFeatures) == 0 {
		return fmt.Errorf("model artifact declares no features")
	}
	if len(a.Scaler.Mean) != len(a.NumericFeatures) || len(a.Scaler.Scale) != len(a.NumericFeatures) {
		return fmt.Errorf("scaler has %d means and %d scales for %d numeric features",
			len(a.Scaler.Mean), len(a.Scaler.Scale), len(a.NumericFeatures))
	}
	for i, s := range a.Scaler.Scale {
		if s <= 0 {
			return fmt.Errorf("scaler scale for %q must be positive, got %v", a.NumericFeatures[i], s)
		}
	}
	for _, name := range a.CategoricalFeatures {
		if len(a.Categories[name]) == 0 {
			return fmt.Errorf("no categories for categorical feature %q", name)
		}
	}
	if len(a.Trees) == 0 {
		return fmt.Errorf("model artifact has no trees")
	}
	width := a.width()
	for t, tree := range a.Trees {
		if err := tree.validate(width); err != nil {
			return fmt.Errorf("tree %d: %w", t, err)
		}
	}
	return nil
}

// validate checks node references. Children must come after their parent, which
// rules out cycles and guarantees every walk terminates at a leaf.
func (t Tree) validate(width int) error {
	if len(t.Nodes) == 0 {
		return fmt.Errorf("empty tree")
	}
	for i, n := range t.Nodes {
		if n.Leaf {
			if n.Value < 0 || n.Value > 1 {
				return fmt.Errorf("node %d: leaf probability %v outside [0,1]", i, n.Value)
			}
			continue
		}
		if n.Feature < 0 || n.Feature >= width {
			return fmt.Errorf("node %d: feature index %d outside [0,%d)", i, n.Feature, width)
		}
		if n.Left <= i || n.Left >= len(t.Nodes) || n.Right <= i || n.Right >= len(t.Nodes) {
			return fmt.Errorf("node %d: invalid children %d/%d", i, n.Left, n.Right)
		}
	}
	return nil
}
