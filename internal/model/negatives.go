package model

import (
	"math"
	"math/rand"
)

const negativeTableSize = 10000000

// buildNegativesTable pushes class i into the table ceil(sqrt(c_i) *
// negativeTableSize / sum_j sqrt(c_j)) times, then shuffles it with rng.
func buildNegativesTable(counts []int64, rng *rand.Rand) []int32 {
	var z float64
	for _, c := range counts {
		z += math.Sqrt(float64(c))
	}
	var table []int32
	for i, c := range counts {
		share := math.Sqrt(float64(c)) * negativeTableSize / z
		n := int(math.Ceil(share))
		for k := 0; k < n; k++ {
			table = append(table, int32(i))
		}
	}
	rng.Shuffle(len(table), func(i, j int) { table[i], table[j] = table[j], table[i] })
	return table
}

// negativesSampler walks the negatives table circularly, skipping target.
type negativesSampler struct {
	table []int32
	pos   int
}

func newNegativesSampler(table []int32) *negativesSampler {
	return &negativesSampler{table: table}
}

func (n *negativesSampler) Next(target int32) int32 {
	for {
		neg := n.table[n.pos]
		n.pos = (n.pos + 1) % len(n.table)
		if neg != target {
			return neg
		}
	}
}
