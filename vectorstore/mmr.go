package vectorstore

import "math"

// MaxMarginalRelevance picks up to k indexes from candidates, trading off
// similarity to query against similarity to what has already been picked.
// lambda=1 is pure relevance, lambda=0 pure diversity. The first pick is
// always the candidate most similar to the query.
func MaxMarginalRelevance(query []float32, candidates [][]float32, lambda float64, k int) []int {
	if k <= 0 || len(candidates) == 0 {
		return []int{}
	}
	if k > len(candidates) {
		k = len(candidates)
	}

	relevance := make([]float64, len(candidates))
	best := 0
	for i, c := range candidates {
		relevance[i] = cosineSimilarity(query, c)
		if relevance[i] > relevance[best] {
			best = i
		}
	}

	selected := []int{best}
	used := map[int]bool{best: true}
	// redundancy[i] is the highest similarity between candidate i and any pick.
	redundancy := make([]float64, len(candidates))
	for i := range redundancy {
		redundancy[i] = math.Inf(-1)
	}

	for len(selected) < k {
		last := candidates[selected[len(selected)-1]]
		next := -1
		nextScore := math.Inf(-1)
		for i, c := range candidates {
			if used[i] {
				continue
			}
			if sim := cosineSimilarity(c, last); sim > redundancy[i] {
				redundancy[i] = sim
			}
			score := lambda*relevance[i] - (1-lambda)*redundancy[i]
			if score > nextScore {
				next, nextScore = i, score
			}
		}
		if next < 0 {
			break
		}
		selected = append(selected, next)
		used[next] = true
	}
	return selected
}

func cosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
