package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	"treeval/internal/common"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

// rawEnsemble mirrors the ensemble document as written by the trainer.
type rawEnsemble struct {
	CostFunction string    `json:"cost_function"`
	Features     []Feature `json:"features"`
	Trees        []rawTree `json:"trees"`
}

// rawDocument accepts both {"ensemble": {...}} and a bare ensemble object.
type rawDocument struct {
	Ensemble *rawEnsemble `json:"ensemble"`
	rawEnsemble
}

type rawTree struct {
	Nodes []rawNode `json:"nodes"`
}

type rawNode struct {
	Value     json.RawMessage        `json:"value"`
	Split     *rawSplit              `json:"split"`
	LeftID    *int                   `json:"left_id"`
	RightID   *int                   `json:"right_id"`
	DebugInfo map[string]interface{} `json:"debug_info"`
}

type rawSplit struct {
	Feature   int             `json:"feature"`
	Threshold json.RawMessage `json:"threshold"`
	Inverse   bool            `json:"inverse"`
}

// Load parses an ensemble document. Any malformed part fails the whole load.
func Load(r io.Reader) (*Ensemble, error) {
	var doc rawDocument
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, &common.ParseError{Source: "model", Field: "document", Value: "json", Err: err}
	}

	raw := &doc.rawEnsemble
	if doc.Ensemble != nil {
		raw = doc.Ensemble
	}

	ens := &Ensemble{
		CostFunction: raw.CostFunction,
		Features:     raw.Features,
		Trees:        make([]Tree, len(raw.Trees)),
	}
	for ti, rt := range raw.Trees {
		nodes := make([]Node, len(rt.Nodes))
		for ni := range rt.Nodes {
			n, err := convertNode(&rt.Nodes[ni])
			if err != nil {
				return nil, fmt.Errorf("tree %d node %d: %w", ti, ni, err)
			}
			nodes[ni] = n
		}
		ens.Trees[ti] = Tree{Nodes: nodes}
	}
	return ens, nil
}

// LoadFile reads and parses an ensemble document from disk.
func LoadFile(path string) (*Ensemble, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open model %s: %w", path, err)
	}
	defer f.Close()

	ens, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("load model %s: %w", path, err)
	}

	log.Info().
		Str("model_path", path).
		Int("trees", ens.NumTrees()).
		Int("features", ens.NumFeatures()).
		Str("cost_function", ens.CostFunction).
		Msg("Ensemble loaded")
	return ens, nil
}

// Fetch downloads an ensemble document over HTTP(S) and parses it.
func Fetch(ctx context.Context, url string, timeout time.Duration) (*Ensemble, error) {
	client := resty.New()
	if timeout > 0 {
		client.SetTimeout(timeout)
	}

	resp, err := client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch model %s: %v", common.ErrStream, url, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: fetch model %s: %s", common.ErrStream, url, resp.Status())
	}

	ens, err := Load(bytes.NewReader(resp.Body()))
	if err != nil {
		return nil, fmt.Errorf("load model %s: %w", url, err)
	}

	log.Info().
		Str("model_url", url).
		Int("trees", ens.NumTrees()).
		Int("features", ens.NumFeatures()).
		Msg("Ensemble fetched")
	return ens, nil
}

// convertNode classifies a raw node once. A finite value makes a leaf even if a split is
// also present; a NaN value is a half-written leaf marker and defers to the split.
func convertNode(rn *rawNode) (Node, error) {
	value, hasValue, err := parseLiteral(rn.Value)
	if err != nil {
		return Node{}, &common.ParseError{Source: "model", Field: "value", Value: string(rn.Value), Err: err}
	}
	if hasValue && !math.IsNaN(value) {
		n := Leaf(value)
		n.DebugInfo = rn.DebugInfo
		return n, nil
	}

	if rn.Split == nil {
		if hasValue {
			return Node{}, common.Corruptf("leaf value is NaN and node has no split")
		}
		return Node{}, common.Corruptf("node has neither value nor split")
	}

	threshold, ok, err := parseLiteral(rn.Split.Threshold)
	if err != nil {
		return Node{}, &common.ParseError{Source: "model", Field: "threshold", Value: string(rn.Split.Threshold), Err: err}
	}
	if !ok {
		return Node{}, &common.ParseError{Source: "model", Field: "threshold", Value: "", Err: fmt.Errorf("missing")}
	}
	if rn.LeftID == nil || rn.RightID == nil {
		return Node{}, common.Corruptf("split node without left_id/right_id")
	}

	n := Split(rn.Split.Feature, threshold, rn.Split.Inverse, *rn.LeftID, *rn.RightID)
	n.DebugInfo = rn.DebugInfo
	return n, nil
}

// parseLiteral decodes a number-or-string JSON literal. ok is false for an absent or null literal.
func parseLiteral(raw json.RawMessage) (value float64, ok bool, err error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, false, nil
	}

	text := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return 0, false, err
		}
	}

	v, err := common.ParseNumber(text)
	if err != nil {
		return 0, false, err
	}
	return v, true, nil
}
