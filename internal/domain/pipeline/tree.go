package pipeline

import (
	"fmt"
	"math"
	"sort"
)

// KindDecisionTree is the artifact type name of DecisionTreeRegressor.
const KindDecisionTree = "decision_tree_regressor"

// TreeNode is one node of a fitted tree. Leaves have Feature == -1.
type TreeNode struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Value     float64 `json:"value"`
	Samples   int     `json:"samples"`
}

// IsLeaf reports whether the node has no children.
func (n TreeNode) IsLeaf() bool { return n.Feature < 0 }

// TreeParams controls tree growth. A MaxDepth of 0 means unlimited.
type TreeParams struct {
	MaxDepth        int `json:"max_depth"`
	MinSamplesSplit int `json:"min_samples_split"`
	MinSamplesLeaf  int `json:"min_samples_leaf"`
}

// DefaultTreeParams returns the growth limits used when none are given.
func DefaultTreeParams() TreeParams {
	return TreeParams{MaxDepth: 10, MinSamplesSplit: 5, MinSamplesLeaf: 1}
}

// DecisionTreeRegressor is a CART regression tree split on squared error.
// Nodes are stored flat with the root at index 0.
type DecisionTreeRegressor struct {
	Params    TreeParams `json:"params"`
	Features  int        `json:"n_features"`
	Nodes     []TreeNode `json:"nodes"`
	rows      [][]float64
	targets   []float64
	scratchIx []int
}

// NewDecisionTreeRegressor returns an unfitted tree with the given limits.
func NewDecisionTreeRegressor(params TreeParams) *DecisionTreeRegressor {
	if params.MinSamplesSplit < 2 {
		params.MinSamplesSplit = 2
	}
	if params.MinSamplesLeaf < 1 {
		params.MinSamplesLeaf = 1
	}
	return &DecisionTreeRegressor{Params: params}
}

// Kind implements Kinded.
func (t *DecisionTreeRegressor) Kind() string { return KindDecisionTree }

// NFeatures implements Predictor.
func (t *DecisionTreeRegressor) NFeatures() int { return t.Features }

// Depth returns the number of edges on the longest root to leaf path.
func (t *DecisionTreeRegressor) Depth() int {
	if len(t.Nodes) == 0 {
		return 0
	}
	var walk func(i int) int
	walk = func(i int) int {
		n := t.Nodes[i]
		if n.IsLeaf() {
			return 0
		}
		return 1 + max(walk(n.Left), walk(n.Right))
	}
	return walk(0)
}

// Fit grows the tree on X and y, replacing any previous fit.
func (t *DecisionTreeRegressor) Fit(X [][]float64, y []float64) error {
	width, err := checkMatrix(X)
	if err != nil {
		return err
	}
	if len(y) != len(X) {
		return fmt.Errorf("%w: %d rows but %d targets", ErrDimensionMismatch, len(X), len(y))
	}
	if t.Params.MinSamplesSplit < 2 {
		t.Params.MinSamplesSplit = 2
	}
	if t.Params.MinSamplesLeaf < 1 {
		t.Params.MinSamplesLeaf = 1
	}

	idx := make([]int, len(X))
	for i := range idx {
		idx[i] = i
	}
	t.rows, t.targets = X, y
	t.scratchIx = make([]int, len(X))
	t.Nodes = t.Nodes[:0]
	t.grow(idx, 0)
	t.Features = width
	t.rows, t.targets, t.scratchIx = nil, nil, nil
	return nil
}

// Predict implements Predictor.
func (t *DecisionTreeRegressor) Predict(x []float64) (float64, error) {
	if len(t.Nodes) == 0 {
		return 0, ErrNotFitted
	}
	if len(x) != t.Features {
		return 0, fmt.Errorf("%w: tree expects %d features, got %d", ErrDimensionMismatch, t.Features, len(x))
	}
	i := 0
	for steps := 0; steps <= len(t.Nodes); steps++ {
		n := t.Nodes[i]
		if n.IsLeaf() {
			return n.Value, nil
		}
		if n.Feature >= len(x) {
			return 0, fmt.Errorf("%w: node %d splits on feature %d", ErrInvalidArtifact, i, n.Feature)
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
		if i <= 0 || i >= len(t.Nodes) {
			return 0, fmt.Errorf("%w: node child index %d out of range", ErrInvalidArtifact, i)
		}
	}
	return 0, fmt.Errorf("%w: tree contains a cycle", ErrInvalidArtifact)
}

// validate checks node links after decoding.
func (t *DecisionTreeRegressor) validate() error {
	if len(t.Nodes) == 0 {
		return fmt.Errorf("%w: tree has no nodes", ErrInvalidArtifact)
	}
	if t.Features <= 0 {
		return fmt.Errorf("%w: tree n_features must be positive", ErrInvalidArtifact)
	}
	for i, n := range t.Nodes {
		if n.IsLeaf() {
			continue
		}
		if n.Feature >= t.Features {
			return fmt.Errorf("%w: node %d feature %d out of range", ErrInvalidArtifact, i, n.Feature)
		}
		if n.Left <= i || n.Right <= i || n.Left >= len(t.Nodes) || n.Right >= len(t.Nodes) {
			return fmt.Errorf("%w: node %d has invalid children", ErrInvalidArtifact, i)
		}
	}
	return nil
}

// grow appends the subtree over idx and returns its root index.
func (t *DecisionTreeRegressor) grow(idx []int, depth int) int {
	sum, sumSq := 0.0, 0.0
	for _, i := range idx {
		v := t.targets[i]
		sum += v
		sumSq += v * v
	}
	n := float64(len(idx))
	at := len(t.Nodes)
	t.Nodes = append(t.Nodes, TreeNode{
		Feature: -1,
		Left:    -1,
		Right:   -1,
		Value:   sum / n,
		Samples: len(idx),
	})

	if t.Params.MaxDepth > 0 && depth >= t.Params.MaxDepth {
		return at
	}
	if len(idx) < t.Params.MinSamplesSplit || len(idx) < 2*t.Params.MinSamplesLeaf {
		return at
	}
	parentSSE := sumSq - sum*sum/n
	if parentSSE <= 1e-12 {
		return at
	}

	feature, threshold, sse, ok := t.bestSplit(idx)
	if !ok || sse >= parentSSE-1e-12 {
		return at
	}

	left := make([]int, 0, len(idx))
	right := make([]int, 0, len(idx))
	for _, i := range idx {
		if t.rows[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	l := t.grow(left, depth+1)
	r := t.grow(right, depth+1)
	t.Nodes[at].Feature = feature
	t.Nodes[at].Threshold = threshold
	t.Nodes[at].Left = l
	t.Nodes[at].Right = r
	return at
}

// bestSplit scans every feature for the midpoint threshold that minimizes
// the summed squared error of both children. Ties keep the earliest
// feature and lowest threshold.
func (t *DecisionTreeRegressor) bestSplit(idx []int) (feature int, threshold, sse float64, ok bool) {
	minLeaf := t.Params.MinSamplesLeaf
	order := t.scratchIx[:len(idx)]
	width := len(t.rows[idx[0]])
	sse = math.Inf(1)

	var totalSum, totalSq float64
	for _, i := range idx {
		v := t.targets[i]
		totalSum += v
		totalSq += v * v
	}

	for f := 0; f < width; f++ {
		copy(order, idx)
		sort.SliceStable(order, func(a, b int) bool {
			return t.rows[order[a]][f] < t.rows[order[b]][f]
		})

		var leftSum, leftSq float64
		for k := 0; k < len(order)-1; k++ {
			v := t.targets[order[k]]
			leftSum += v
			leftSq += v * v

			nl := k + 1
			nr := len(order) - nl
			if nl < minLeaf {
				continue
			}
			if nr < minLeaf {
				break
			}
			cur, next := t.rows[order[k]][f], t.rows[order[k+1]][f]
			if cur == next {
				continue
			}
			rightSum := totalSum - leftSum
			rightSq := totalSq - leftSq
			s := (leftSq - leftSum*leftSum/float64(nl)) + (rightSq - rightSum*rightSum/float64(nr))
			if s < sse {
				sse = s
				feature = f
				threshold = cur + (next-cur)/2
				ok = true
			}
		}
	}
	return feature, threshold, sse, ok
}
