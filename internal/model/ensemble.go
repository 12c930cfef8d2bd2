// Package model holds the in-memory form of a trained gradient-boosted tree ensemble.
// An Ensemble is built once by the loader and then shared read-only by every row
// evaluation of a run.
//
// Nodes are classified into leaves and splits at load time, so traversal code never
// probes for missing fields.
package model

import "fmt"

// NodeKind tags which variant a Node holds.
type NodeKind uint8

const (
	// KindLeaf marks a terminal node holding an output value.
	KindLeaf NodeKind = iota + 1
	// KindSplit marks a node routing to one of two children.
	KindSplit
)

func (k NodeKind) String() string {
	switch k {
	case KindLeaf:
		return "leaf"
	case KindSplit:
		return "split"
	default:
		return fmt.Sprintf("NodeKind(%d)", uint8(k))
	}
}

// Feature is one model input. Its position in Ensemble.Features is its column index.
type Feature struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

// Node is either a Leaf (Value) or a Split (Feature, Threshold, Inverse, Left, Right).
type Node struct {
	Kind NodeKind

	// Leaf
	Value float64

	// Split
	Feature   int
	Threshold float64
	Inverse   bool
	Left      int
	Right     int

	// DebugInfo is carried for display only.
	DebugInfo map[string]interface{}
}

// IsLeaf reports whether the node terminates a walk.
func (n *Node) IsLeaf() bool { return n.Kind == KindLeaf }

// Leaf builds a leaf node.
func Leaf(value float64) Node {
	return Node{Kind: KindLeaf, Value: value}
}

// Split builds a split node.
func Split(feature int, threshold float64, inverse bool, left, right int) Node {
	return Node{
		Kind:      KindSplit,
		Feature:   feature,
		Threshold: threshold,
		Inverse:   inverse,
		Left:      left,
		Right:     right,
	}
}

// Tree is a flat node list; node 0 is the root.
type Tree struct {
	Nodes []Node
}

// Ensemble is the ordered list of trees in boosting order plus the feature list.
type Ensemble struct {
	CostFunction string
	Features     []Feature
	Trees        []Tree
}

// NumFeatures returns the declared feature count.
func (e *Ensemble) NumFeatures() int { return len(e.Features) }

// NumTrees returns the number of boosting generations.
func (e *Ensemble) NumTrees() int { return len(e.Trees) }

// FeatureNames returns the feature names in column order.
func (e *Ensemble) FeatureNames() []string {
	names := make([]string, len(e.Features))
	for i, f := range e.Features {
		names[i] = f.Name
	}
	return names
}
