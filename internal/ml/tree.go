package ml

import (
	"treeval/internal/common"
	"treeval/internal/model"
)

// EvaluateTree walks tree from node 0 to a leaf and returns the leaf value.
//
// At a split the branch condition is features[f] >= threshold; the walk goes right when
// condition != inverse and left otherwise. Out-of-range feature indices, dangling child
// ids and cycles are reported as ErrCorruptModel.
func EvaluateTree(tree *model.Tree, features []float64) (float64, error) {
	v, _, err := walk(tree, features, false)
	return v, err
}

func walk(tree *model.Tree, features []float64, recordPath bool) (float64, string, error) {
	nodes := tree.Nodes
	if len(nodes) == 0 {
		return 0, "", common.Corruptf("empty tree")
	}

	var path []byte
	id := 0
	// An acyclic walk visits each node at most once.
	for visits := 0; visits < len(nodes); visits++ {
		n := &nodes[id]
		if n.IsLeaf() {
			return n.Value, string(path), nil
		}
		if n.Kind != model.KindSplit {
			return 0, "", common.Corruptf("node %d is neither leaf nor split", id)
		}
		if n.Feature < 0 || n.Feature >= len(features) {
			return 0, "", common.Corruptf("node %d: feature index %d out of range [0,%d)", id, n.Feature, len(features))
		}

		condition := features[n.Feature] >= n.Threshold
		next, step := n.Left, byte('L')
		if condition != n.Inverse {
			next, step = n.Right, 'R'
		}
		if next < 0 || next >= len(nodes) {
			return 0, "", common.Corruptf("node %d: child id %d out of range [0,%d)", id, next, len(nodes))
		}
		if recordPath {
			path = append(path, step)
		}
		id = next
	}
	return 0, "", common.Corruptf("tree walk did not reach a leaf after %d nodes", len(nodes))
}
