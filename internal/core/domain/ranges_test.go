package domain

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func r(start, end int) FetchedRange {
	return FetchedRange{Start: start, End: end}
}

// coverage expands ranges into the set of covered offsets.
func coverage(ranges []FetchedRange) map[int]bool {
	covered := make(map[int]bool)
	for _, rg := range ranges {
		for i := rg.Start; i < rg.End; i++ {
			covered[i] = true
		}
	}
	return covered
}

func randomRanges(rng *rand.Rand) []FetchedRange {
	n := rng.Intn(8)
	out := make([]FetchedRange, 0, n)
	for i := 0; i < n; i++ {
		start := rng.Intn(200)
		out = append(out, r(start, start+rng.Intn(40)))
	}
	return out
}

func TestFetchedRange_Len(t *testing.T) {
	assert.Equal(t, 50, r(0, 50).Len())
	assert.Equal(t, 0, r(10, 10).Len())
	assert.Equal(t, 0, r(10, 5).Len())
	assert.Equal(t, "[0,50)", r(0, 50).String())
}

func TestMergeRanges(t *testing.T) {
	tests := []struct {
		name   string
		input  []FetchedRange
		expect []FetchedRange
	}{
		{"empty", nil, []FetchedRange{}},
		{"single", []FetchedRange{r(0, 10)}, []FetchedRange{r(0, 10)}},
		{"adjacent", []FetchedRange{r(0, 50), r(50, 100)}, []FetchedRange{r(0, 100)}},
		{"overlapping", []FetchedRange{r(0, 60), r(40, 100)}, []FetchedRange{r(0, 100)}},
		{"contained", []FetchedRange{r(0, 100), r(20, 30)}, []FetchedRange{r(0, 100)}},
		{"disjoint unsorted", []FetchedRange{r(100, 150), r(0, 50)}, []FetchedRange{r(0, 50), r(100, 150)}},
		{"drops empty", []FetchedRange{r(5, 5), r(10, 3), r(0, 2)}, []FetchedRange{r(0, 2)}},
		{"chain", []FetchedRange{r(30, 40), r(0, 10), r(10, 20), r(20, 30)}, []FetchedRange{r(0, 40)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, MergeRanges(tt.input))
		})
	}
}

func TestMergeRanges_DoesNotModifyInput(t *testing.T) {
	input := []FetchedRange{r(100, 150), r(0, 50)}
	MergeRanges(input)
	assert.Equal(t, []FetchedRange{r(100, 150), r(0, 50)}, input)
}

func TestMergeRanges_IdempotentAndCoveragePreserving(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		input := randomRanges(rng)
		merged := MergeRanges(input)

		assert.Equal(t, merged, MergeRanges(merged), "merge must be idempotent for %v", input)
		assert.Equal(t, coverage(input), coverage(merged), "coverage must be preserved for %v", input)

		for j := 1; j < len(merged); j++ {
			assert.Greater(t, merged[j].Start, merged[j-1].End, "merged ranges must not touch: %v", merged)
		}
	}
}

func TestMergeRanges_Commutative(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		a := randomRanges(rng)
		b := randomRanges(rng)
		ab := MergeRanges(append(append([]FetchedRange{}, a...), b...))
		ba := MergeRanges(append(append([]FetchedRange{}, b...), a...))
		assert.Equal(t, ab, ba)
	}
}

func TestNextStartToRequest(t *testing.T) {
	tests := []struct {
		name   string
		ranges []FetchedRange
		total  int
		expect int
	}{
		{"no total", []FetchedRange{r(0, 50)}, 0, 0},
		{"negative total", []FetchedRange{r(0, 50)}, -5, 0},
		{"no ranges", nil, 200, 0},
		{"gap first", []FetchedRange{r(0, 50), r(100, 150)}, 200, 50},
		{"adjacent extends frontier", []FetchedRange{r(0, 50), r(50, 100)}, 200, 100},
		{"leading gap", []FetchedRange{r(20, 50)}, 200, 0},
		{"complete returns frontier", []FetchedRange{r(0, 200)}, 200, 200},
		{"beyond total", []FetchedRange{r(0, 250)}, 200, 250},
		{"only empty ranges", []FetchedRange{r(5, 5)}, 200, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, NextStartToRequest(tt.ranges, tt.total, 50))
		})
	}
}

func TestNextStartToRequest_BatchSizeIsAdvisory(t *testing.T) {
	ranges := []FetchedRange{r(0, 50), r(100, 150)}
	for _, size := range []int{0, 1, 10, 1000} {
		assert.Equal(t, 50, NextStartToRequest(ranges, 200, size))
	}
}

func TestNextStartToRequest_NeverInsideMergedInterior(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	for i := 0; i < 500; i++ {
		ranges := randomRanges(rng)
		total := rng.Intn(300)
		next := NextStartToRequest(ranges, total, 25)
		for _, m := range MergeRanges(ranges) {
			inside := next > m.Start && next < m.End
			assert.False(t, inside, "next %d inside %v (ranges %v, total %d)", next, m, ranges, total)
		}
	}
}

func TestGapSize(t *testing.T) {
	ranges := []FetchedRange{r(0, 50), r(100, 150)}

	tests := []struct {
		name   string
		total  int
		start  int
		expect int
	}{
		{"at boundary of first range", 200, 50, 50},
		{"inside first range", 200, 10, 50},
		{"at start of first range", 200, 0, 50},
		{"inside gap", 200, 70, 30},
		{"inside second range", 200, 120, 50},
		{"after last range", 200, 160, 40},
		{"at total", 200, 200, 0},
		{"beyond total", 200, 300, 0},
		{"total bounds gap", 120, 50, 50},
		{"total inside second range", 110, 120, 0},
		{"negative start normalized", 200, -10, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, GapSize(ranges, tt.total, tt.start))
		})
	}
}

func TestGapSize_NoRanges(t *testing.T) {
	assert.Equal(t, 200, GapSize(nil, 200, 0))
	assert.Equal(t, 150, GapSize(nil, 200, 50))
	assert.Equal(t, 0, GapSize(nil, 0, 0))
}

func TestGapSize_NeverExceedsTotal(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 500; i++ {
		ranges := randomRanges(rng)
		total := rng.Intn(300)
		start := rng.Intn(300)
		gap := GapSize(ranges, total, start)
		assert.GreaterOrEqual(t, gap, 0)
		assert.LessOrEqual(t, gap, total)
	}
}

func TestSpecScenario_GapThenFrontier(t *testing.T) {
	ranges := []FetchedRange{r(0, 50), r(100, 150)}
	next := NextStartToRequest(ranges, 200, 50)
	require.Equal(t, 50, next)
	assert.Equal(t, 50, GapSize(ranges, 200, next))

	ranges = []FetchedRange{r(0, 50), r(50, 100)}
	assert.Equal(t, []FetchedRange{r(0, 100)}, MergeRanges(ranges))
	assert.Equal(t, 100, NextStartToRequest(ranges, 200, 50))
}

func TestCoveredCountAndFrontier(t *testing.T) {
	ranges := []FetchedRange{r(0, 50), r(40, 60), r(100, 150)}
	assert.Equal(t, 110, CoveredCount(ranges))
	assert.Equal(t, 60, Frontier(ranges))
	assert.Equal(t, 0, Frontier([]FetchedRange{r(10, 20)}))
	assert.Equal(t, 0, Frontier(nil))
}
