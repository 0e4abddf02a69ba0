package tracks

import "math"

// gateForbidden marks a report/track pair outside the gate. The solver never
// keeps such a pair in its result. It stays small enough that sums with real
// costs in metres keep their precision.
const gateForbidden = 1e9

// AssignMinCost solves the rectangular assignment problem for a rows x cols
// cost matrix with the Kuhn-Munkres algorithm (potentials form). It returns
// out[r] = assigned column for row r, or -1 when row r is left unassigned.
// Entries >= gateForbidden are never assigned. The matrix is padded square
// with zero-cost dummy cells; a row landing on a dummy is unassigned.
func AssignMinCost(cost [][]float64) []int {
	rows := len(cost)
	if rows == 0 {
		return nil
	}
	out := make([]int, rows)
	for i := range out {
		out[i] = -1
	}
	cols := len(cost[0])
	if cols == 0 {
		return out
	}

	n := max(rows, cols)
	at := func(r, c int) float64 {
		if r < rows && c < cols {
			return cost[r][c]
		}
		return 0
	}

	const inf = math.MaxFloat64 / 2
	rowPot := make([]float64, n+1)
	colPot := make([]float64, n+1)
	owner := make([]int, n+1) // owner[c] = 1-based row holding column c
	prev := make([]int, n+1)
	slack := make([]float64, n+1)
	seen := make([]bool, n+1)

	for r := 1; r <= n; r++ {
		owner[0] = r
		c0 := 0
		for c := 1; c <= n; c++ {
			slack[c] = inf
			seen[c] = false
		}
		for {
			seen[c0] = true
			r0 := owner[c0]
			delta, c1 := inf, -1
			for c := 1; c <= n; c++ {
				if seen[c] {
					continue
				}
				reduced := at(r0-1, c-1) - rowPot[r0] - colPot[c]
				if reduced < slack[c] {
					slack[c] = reduced
					prev[c] = c0
				}
				if slack[c] < delta {
					delta, c1 = slack[c], c
				}
			}
			if c1 < 0 {
				break
			}
			for c := 0; c <= n; c++ {
				if seen[c] {
					rowPot[owner[c]] += delta
					colPot[c] -= delta
				} else {
					slack[c] -= delta
				}
			}
			c0 = c1
			if owner[c0] == 0 {
				break
			}
		}
		for c0 != 0 {
			owner[c0] = owner[prev[c0]]
			c0 = prev[c0]
		}
	}

	for c := 1; c <= n; c++ {
		r := owner[c] - 1
		if r < 0 || r >= rows || c-1 >= cols {
			continue
		}
		if cost[r][c-1] >= gateForbidden {
			continue
		}
		out[r] = c - 1
	}
	return out
}
