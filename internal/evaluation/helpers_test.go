package evaluation

import (
	"os"
	"path/filepath"
	"testing"

	"treeval/internal/model"

	"github.com/stretchr/testify/require"
)

// twoTreeModel is a constant tree (+1) followed by a stump on x at 0.5 (-1 | +2).
const twoTreeModel = `{"ensemble": {
  "cost_function": "regression",
  "features": [{"name": "x"}],
  "trees": [
    {"nodes": [{"value": 1}]},
    {"nodes": [
      {"split": {"feature": 0, "threshold": "0.5", "inverse": false}, "left_id": 1, "right_id": 2},
      {"value": -1},
      {"value": 2}
    ]}
  ]
}}`

func twoTreeEnsemble() *model.Ensemble {
	return &model.Ensemble{
		CostFunction: "regression",
		Features:     []model.Feature{{Name: "x"}},
		Trees: []model.Tree{
			{Nodes: []model.Node{model.Leaf(1)}},
			{Nodes: []model.Node{model.Split(0, 0.5, false, 1, 2), model.Leaf(-1), model.Leaf(2)}},
		},
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}
