package services

import "testing"

func TestDistributeQuestionCounts(t *testing.T) {
	cases := []struct {
		name    string
		total   int
		weights []float64
		want    []int
	}{
		{
			name:    "exact_split",
			total:   10,
			weights: []float64{0.7, 0.3},
			want:    []int{7, 3},
		},
		{
			name:    "even_weights_odd_total",
			total:   7,
			weights: []float64{0.5, 0.5},
			want:    []int{4, 3},
		},
		{
			name:    "zero_total",
			total:   0,
			weights: []float64{0.6, 0.4},
			want:    []int{0, 0},
		},
		{
			name:    "all_one_side",
			total:   5,
			weights: []float64{1.0, 0.0},
			want:    []int{5, 0},
		},
		{
			name:    "skewed_remainder",
			total:   5,
			weights: []float64{0.6, 0.4},
			want:    []int{3, 2},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := DistributeQuestionCounts(tc.total, tc.weights)
			if len(got) != len(tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
			sum := 0
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("got %v, want %v", got, tc.want)
				}
				sum += got[i]
			}
			if sum != tc.total {
				t.Fatalf("counts sum to %d, want %d", sum, tc.total)
			}
		})
	}
}

func TestDistributeQuestionCountsConservation(t *testing.T) {
	// Totals must be conserved for any total, whatever the rounding.
	weights := []float64{0.67, 0.33}
	for total := 0; total <= 50; total++ {
		got := DistributeQuestionCounts(total, weights)
		sum := 0
		for _, c := range got {
			if c < 0 {
				t.Fatalf("total %d: negative count in %v", total, got)
			}
			sum += c
		}
		if sum != total {
			t.Fatalf("total %d: counts %v sum to %d", total, got, sum)
		}
	}
}
