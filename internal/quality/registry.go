package quality

import (
	"strconv"
	"strings"

	"treeval/internal/common"
)

// Metric names accepted by ParseMetric.
const (
	MetricRMSE     = "rmse"
	MetricAccuracy = "accuracy"
	MetricNDCG     = "ndcg"
)

// Objective is the training objective an ensemble was fitted for.
type Objective struct {
	Name string
	// Depth is the ranking depth carried by "lambda_rank@N", 0 otherwise.
	Depth int
}

// Logistic reports whether scores are squashed through the sigmoid for this objective.
func (o Objective) Logistic() bool { return o.Name == common.ObjectiveBinaryClassification }

// ParseObjective accepts regression, binary_classification, lambda_rank and lambda_rank@N.
func ParseObjective(s string) (Objective, error) {
	name, depth, err := splitDepth(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return Objective{}, common.Configurationf("objective %q: %v", s, err)
	}
	switch name {
	case common.ObjectiveRegression, common.ObjectiveBinaryClassification:
		if depth != 0 {
			return Objective{}, common.Configurationf("objective %q does not take a depth", s)
		}
	case common.ObjectiveLambdaRank:
	default:
		return Objective{}, common.Configurationf("unknown objective %q", s)
	}
	return Objective{Name: name, Depth: depth}, nil
}

// ResolveObjective prefers the configured objective and falls back to the model's cost function.
func ResolveObjective(configured, costFunction string) (Objective, error) {
	switch {
	case configured != "":
		return ParseObjective(configured)
	case costFunction != "":
		return ParseObjective(costFunction)
	default:
		return Objective{}, common.Configurationf("no objective configured and model has no cost_function")
	}
}

// MetricSpec names a metric to build for a run.
type MetricSpec struct {
	Name  string
	Depth int
}

// IsQuery reports whether the metric needs rows grouped by query id.
func (s MetricSpec) IsQuery() bool { return s.Name == MetricNDCG }

// ParseMetric accepts rmse, accuracy, ndcg and ndcg@N. An explicit @N overrides depth.
func ParseMetric(name string, depth int) (MetricSpec, error) {
	base, at, err := splitDepth(strings.ToLower(strings.TrimSpace(name)))
	if err != nil {
		return MetricSpec{}, common.Configurationf("metric %q: %v", name, err)
	}
	switch base {
	case MetricRMSE, MetricAccuracy:
		if at != 0 {
			return MetricSpec{}, common.Configurationf("metric %q does not take a depth", name)
		}
		return MetricSpec{Name: base}, nil
	case MetricNDCG:
		if at != 0 {
			depth = at
		}
		if depth < 0 {
			return MetricSpec{}, common.Configurationf("ndcg depth %d is negative", depth)
		}
		return MetricSpec{Name: base, Depth: depth}, nil
	default:
		return MetricSpec{}, common.Configurationf("unknown metric %q", name)
	}
}

// DefaultMetric returns the metric reported for an objective when none is configured.
// depth applies to lambda_rank when the objective carries none.
func DefaultMetric(o Objective, depth int) MetricSpec {
	switch o.Name {
	case common.ObjectiveBinaryClassification:
		return MetricSpec{Name: MetricAccuracy}
	case common.ObjectiveLambdaRank:
		if o.Depth != 0 {
			depth = o.Depth
		}
		return MetricSpec{Name: MetricNDCG, Depth: depth}
	default:
		return MetricSpec{Name: MetricRMSE}
	}
}

// New builds a fresh accumulator. Query metrics come wrapped in a QueryGrouper.
func (s MetricSpec) New() Metric {
	switch s.Name {
	case MetricAccuracy:
		return NewAccuracy()
	case MetricNDCG:
		return NewQueryGrouper(NewNDCG(s.Depth))
	default:
		return NewRMSE()
	}
}

func splitDepth(s string) (string, int, error) {
	name, at, found := strings.Cut(s, "@")
	if !found {
		return name, 0, nil
	}
	depth, err := strconv.Atoi(at)
	if err != nil {
		return "", 0, err
	}
	if depth < 0 {
		return "", 0, strconv.ErrRange
	}
	return name, depth, nil
}
