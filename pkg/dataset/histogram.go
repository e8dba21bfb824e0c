package dataset

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
)

// Histogram is the distribution of one metric: bin centers, per-bin counts,
// and the bin edges that produced them. len(Edges) == len(Counts)+1.
type Histogram struct {
	Metric string    `json:"metric"`
	Bins   []float64 `json:"bins"`
	Counts []int     `json:"counts"`
	Edges  []float64 `json:"bin_edges"`
	Stats  Summary   `json:"statistics"`
	Total  int       `json:"total"`
}

// Summary holds the descriptive statistics shown alongside a histogram.
type Summary struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Std    float64 `json:"std"`
}

// Histogram computes the distribution of one metric over the view. When
// bins <= 0 a bin count is chosen from the data via OptimalBins.
func (d *Dataset) Histogram(metric string, bins int) (*Histogram, error) {
	values, err := d.Column(metric)
	if err != nil {
		return nil, err
	}

	summary, err := summarize(values)
	if err != nil {
		return nil, fmt.Errorf("statistics for %s: %w", metric, err)
	}

	if bins <= 0 {
		bins = OptimalBins(len(values), summary.Max-summary.Min, summary.Std)
	}

	edges, counts := bucket(values, summary.Min, summary.Max, bins)
	centers := make([]float64, len(counts))
	for i := range counts {
		centers[i] = (edges[i] + edges[i+1]) / 2
	}

	return &Histogram{
		Metric: metric,
		Bins:   centers,
		Counts: counts,
		Edges:  edges,
		Stats:  summary,
		Total:  len(values),
	}, nil
}

func summarize(values []float64) (Summary, error) {
	data := stats.Float64Data(values)

	min, err := data.Min()
	if err != nil {
		return Summary{}, err
	}
	max, err := data.Max()
	if err != nil {
		return Summary{}, err
	}
	mean, err := data.Mean()
	if err != nil {
		return Summary{}, err
	}
	median, err := data.Median()
	if err != nil {
		return Summary{}, err
	}
	std, err := data.StandardDeviation()
	if err != nil {
		return Summary{}, err
	}

	return Summary{Min: min, Max: max, Mean: mean, Median: median, Std: std}, nil
}

// bucket bins values over [min, max] into equal-width buckets. Values equal
// to max land in the last bucket. A degenerate range (min == max) is widened
// by half a unit on each side so every value still gets a bucket.
func bucket(values []float64, min, max float64, bins int) (edges []float64, counts []int) {
	lo, hi := min, max
	if lo == hi {
		lo -= 0.5
		hi += 0.5
	}

	width := (hi - lo) / float64(bins)
	edges = make([]float64, bins+1)
	for i := range edges {
		edges[i] = lo + float64(i)*width
	}
	edges[bins] = hi

	counts = make([]int, bins)
	for _, v := range values {
		idx := int((v - lo) / width)
		if idx >= bins {
			idx = bins - 1
		}
		if idx < 0 {
			idx = 0
		}
		counts[idx]++
	}
	return edges, counts
}

// OptimalBins picks a histogram bin count from the data size and spread.
// It blends Sturges' rule, the Rice rule, and a Freedman-Diaconis
// approximation (IQR estimated as 1.35 std), choosing by dataset size and
// clamping the result to [5, 50].
func OptimalBins(size int, dataRange, std float64) int {
	if size < 1 {
		return 5
	}

	sturges := int(math.Ceil(math.Log2(float64(size)) + 1))
	rice := int(math.Ceil(2 * math.Cbrt(float64(size))))

	freedman := sturges
	iqr := 1.35 * std
	if iqr > 0 && dataRange > 0 {
		binWidth := 2 * iqr * math.Pow(float64(size), -1.0/3.0)
		freedman = int(math.Ceil(dataRange / binWidth))
	}

	var optimal int
	switch {
	case size < 30:
		optimal = sturges
		if optimal < 5 {
			optimal = 5
		}
	case size < 100:
		optimal = sturges
	case size < 1000:
		optimal = rice
	default:
		optimal = rice
		if freedman > 0 && freedman < rice {
			optimal = freedman
		}
	}

	if optimal < 5 {
		return 5
	}
	if optimal > 50 {
		return 50
	}
	return optimal
}
