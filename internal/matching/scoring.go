package matching

import (
	"crypto/sha256"
	"math"
	"sort"

	"github.com/jonathan/job-matcher/internal/types"
)

const (
	// SkillsBoost multiplies the similarity of skills chunks.
	SkillsBoost = 1.2
	// MaxSections is how many matched sections a result shows.
	MaxSections = 5
)

// aggregateWeights weight the best scores; shorter inputs use a renormalized
// prefix.
var aggregateWeights = []float64{0.4, 0.25, 0.15, 0.1, 0.05, 0.03, 0.02}

// DistanceToSimilarity maps a cosine distance onto [0, 100]. Distances
// outside [0, 2] are clamped first; NaN counts as the maximum distance.
func DistanceToSimilarity(distance float64) float64 {
	if math.IsNaN(distance) {
		return 0
	}
	d := clamp(distance, 0, 2)
	return (1 - d/2) * 100
}

// BoostSkills applies SkillsBoost to skills chunks, capped at 100.
func BoostSkills(similarity float64, kind types.ChunkType) float64 {
	if kind == types.ChunkSkills {
		similarity *= SkillsBoost
	}
	return min(similarity, 100)
}

// Aggregate combines per-hit similarities into one score. The best seven
// are weighted by aggregateWeights; fewer than three use a plain mean.
func Aggregate(scores []float64) float64 {
	if len(scores) == 0 {
		return 0
	}

	sorted := make([]float64, len(scores))
	for i, s := range scores {
		if !math.IsNaN(s) {
			sorted[i] = s
		}
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))
	if len(sorted) > len(aggregateWeights) {
		sorted = sorted[:len(aggregateWeights)]
	}

	if len(sorted) < 3 {
		var sum float64
		for _, s := range sorted {
			sum += s
		}
		return clamp(sum/float64(len(sorted)), 0, 100)
	}

	weights := aggregateWeights[:len(sorted)]
	var total, weightSum float64
	for i, s := range sorted {
		total += s * weights[i]
		weightSum += weights[i]
	}
	return clamp(total/weightSum, 0, 100)
}

// DedupeSections keeps the most relevant copy of each distinct text and
// returns the top limit by relevance.
func DedupeSections(sections []types.MatchedSection, limit int) []types.MatchedSection {
	best := make(map[[sha256.Size]byte]int, len(sections))
	out := make([]types.MatchedSection, 0, len(sections))
	for _, s := range sections {
		key := sha256.Sum256([]byte(s.Text))
		if i, ok := best[key]; ok {
			if s.Relevance > out[i].Relevance {
				out[i] = s
			}
			continue
		}
		best[key] = len(out)
		out = append(out, s)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Relevance > out[j].Relevance })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// clamp maps NaN to lo; the builtin min and max propagate it.
func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return max(lo, min(hi, v))
}
