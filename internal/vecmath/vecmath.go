// Package vecmath implements exact distance ranking and vector encoding for
// the flat indexes (memory, sqlite) and the embedding cache.
package vecmath

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"ragqa/internal/domain"
)

// Scored is a ranked position in a vector slice.
type Scored struct {
	Index    int
	Score    float64
	Distance float64
}

// Cosine returns the cosine similarity of a and b, or 0 when either is a zero vector.
func Cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// L2 returns the Euclidean distance between a and b.
func L2(a, b []float32) float64 {
	sum := 0.0
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// IsZero reports whether every component of v is zero.
func IsZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

// Compare scores one candidate against the query under metric.
// Cosine distance is 1 - similarity; L2 score is 1 / (1 + distance).
func Compare(metric domain.Metric, query, candidate []float32) (score, distance float64) {
	if metric == domain.MetricL2 {
		d := L2(query, candidate)
		return 1 / (1 + d), d
	}
	s := Cosine(query, candidate)
	return s, 1 - s
}

// Rank returns the topK nearest candidates ordered by non-decreasing distance.
// Ties keep candidate order. Every candidate must have len(query) components.
func Rank(metric domain.Metric, query []float32, candidates [][]float32, topK int) ([]Scored, error) {
	scored := make([]Scored, len(candidates))
	for i, c := range candidates {
		if len(c) != len(query) {
			return nil, fmt.Errorf("%w: candidate %d has %d components, query has %d", domain.ErrDimensionMismatch, i, len(c), len(query))
		}
		s, d := Compare(metric, query, c)
		scored[i] = Scored{Index: i, Score: s, Distance: d}
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Distance < scored[j].Distance })
	if topK > len(scored) {
		topK = len(scored)
	}
	return scored[:topK], nil
}

// ValidMetric reports whether m is one of the supported metrics.
func ValidMetric(m domain.Metric) bool {
	return m == domain.MetricCosine || m == domain.MetricL2
}

// Encode packs v as little-endian float32s.
func Encode(v []float32) []byte {
	buf := new(bytes.Buffer)
	buf.Grow(4 * len(v))
	_ = binary.Write(buf, binary.LittleEndian, v)
	return buf.Bytes()
}

// Decode unpacks a blob written by Encode.
func Decode(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("vector blob length %d is not a multiple of 4", len(b))
	}
	out := make([]float32, len(b)/4)
	if err := binary.Read(bytes.NewReader(b), binary.LittleEndian, out); err != nil {
		return nil, err
	}
	return out, nil
}
