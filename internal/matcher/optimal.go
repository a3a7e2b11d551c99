package matcher

import (
	"math"

	"transfer-reconciliation-service/internal/models"
)

// OptimalStrategy evaluates every pairing first, then selects the set of
// auto-linkable candidates with the highest total confidence, using each
// transaction at most once.
type OptimalStrategy struct{}

func (OptimalStrategy) Name() StrategyName { return StrategyOptimal }

func (OptimalStrategy) Pair(g *Generator, debits []*models.Transaction, credits *CreditIndex, rates RateLookup) *PairingResult {
	result := newPairingResult()

	rowOf := make(map[string]int)
	colOf := make(map[string]int)
	var edges []*models.TransferCandidate

	for _, debit := range debits {
		for _, credit := range credits.Window(debit, g.config.DateToleranceDays) {
			candidate, ok := g.Evaluate(debit, credit, rates)
			if !ok {
				continue
			}
			result.Candidates = append(result.Candidates, candidate)

			if !g.AutoLinkable(candidate) {
				continue
			}
			if _, ok := rowOf[debit.ID]; !ok {
				rowOf[debit.ID] = len(rowOf)
			}
			if _, ok := colOf[credit.ID]; !ok {
				colOf[credit.ID] = len(colOf)
			}
			edges = append(edges, candidate)
		}
	}

	if len(edges) == 0 {
		return result
	}

	weights := make([][]int, len(rowOf))
	for i := range weights {
		weights[i] = make([]int, len(colOf))
	}
	byCell := make(map[[2]int]*models.TransferCandidate, len(edges))
	for _, e := range edges {
		cell := [2]int{rowOf[e.FromTransactionID], colOf[e.ToTransactionID]}
		weights[cell[0]][cell[1]] = e.ConfidenceScore
		byCell[cell] = e
	}

	assignment := maxWeightAssignment(weights)

	// Emit selections in discovery order so results stay deterministic.
	chosen := make(map[*models.TransferCandidate]bool, len(assignment))
	for row, col := range assignment {
		if col < 0 {
			continue
		}
		if e, ok := byCell[[2]int{row, col}]; ok {
			chosen[e] = true
		}
	}
	for _, e := range edges {
		if chosen[e] {
			result.selectCandidate(e)
		}
	}

	return result
}

// maxWeightAssignment solves the rectangular assignment problem with the
// Hungarian algorithm. It returns, for each row, the assigned column or -1.
// Zero-weight cells count as "no edge" and are never reported.
func maxWeightAssignment(weights [][]int) []int {
	rows := len(weights)
	if rows == 0 {
		return nil
	}
	cols := len(weights[0])

	transposed := rows > cols
	n, m := rows, cols
	cost := func(i, j int) int { return -weights[i][j] }
	if transposed {
		n, m = cols, rows
		cost = func(i, j int) int { return -weights[j][i] }
	}

	const inf = math.MaxInt / 4
	u := make([]int, n+1)
	v := make([]int, m+1)
	p := make([]int, m+1)
	way := make([]int, m+1)

	for i := 1; i <= n; i++ {
		p[0] = i
		j0 := 0
		minv := make([]int, m+1)
		used := make([]bool, m+1)
		for j := range minv {
			minv[j] = inf
		}

		for {
			used[j0] = true
			i0 := p[j0]
			delta := inf
			j1 := 0
			for j := 1; j <= m; j++ {
				if used[j] {
					continue
				}
				cur := cost(i0-1, j-1) - u[i0] - v[j]
				if cur < minv[j] {
					minv[j] = cur
					way[j] = j0
				}
				if minv[j] < delta {
					delta = minv[j]
					j1 = j
				}
			}
			for j := 0; j <= m; j++ {
				if used[j] {
					u[p[j]] += delta
					v[j] -= delta
				} else {
					minv[j] -= delta
				}
			}
			j0 = j1
			if p[j0] == 0 {
				break
			}
		}

		for {
			j1 := way[j0]
			p[j0] = p[j1]
			j0 = j1
			if j0 == 0 {
				break
			}
		}
	}

	assignment := make([]int, rows)
	for i := range assignment {
		assignment[i] = -1
	}
	for j := 1; j <= m; j++ {
		if p[j] == 0 {
			continue
		}
		row, col := p[j]-1, j-1
		if transposed {
			row, col = col, row
		}
		if weights[row][col] > 0 {
			assignment[row] = col
		}
	}
	return assignment
}
