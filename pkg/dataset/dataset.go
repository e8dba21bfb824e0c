// Package dataset loads per-item metric tables and serves the slices the
// classification and threshold-picking surfaces need: categorical filtering,
// metric column access, and histograms with summary statistics.
//
// A dataset is an immutable set of records. Filtering produces a new view
// backed by the same records, so repeated filter combinations are cheap.
package dataset

import (
	"errors"
	"sort"

	"github.com/strataviz/strataflow/pkg/classify"
)

// Sentinel errors for dataset operations.
var (
	// ErrNoData is returned when an operation has no records to work on,
	// typically because filters excluded everything.
	ErrNoData = errors.New("no data after filtering")

	// ErrUnknownMetric is returned when a requested metric column does not
	// exist in any record.
	ErrUnknownMetric = errors.New("unknown metric")

	// ErrRecordNotFound is returned when a record id does not exist.
	ErrRecordNotFound = errors.New("record not found")
)

// Record is one item of the metric table: a numeric id, categorical labels
// used for filtering, and numeric metric values used for classification.
type Record struct {
	ID     int                `json:"id" bson:"id"`
	Labels map[string]string  `json:"labels,omitempty" bson:"labels,omitempty"`
	Values map[string]float64 `json:"values" bson:"values"`
}

// Filters selects records by categorical label. For each key, a record
// matches when its label value is in the listed set. An empty or missing
// list places no constraint on that key.
type Filters map[string][]string

// Dataset is an immutable view over a set of records.
type Dataset struct {
	records []Record
	byID    map[int]int
}

// New builds a dataset from records. Records are kept in input order;
// duplicate ids keep the first occurrence for lookup.
func New(records []Record) *Dataset {
	d := &Dataset{
		records: records,
		byID:    make(map[int]int, len(records)),
	}
	for i, r := range records {
		if _, ok := d.byID[r.ID]; !ok {
			d.byID[r.ID] = i
		}
	}
	return d
}

// Len returns the number of records in the view.
func (d *Dataset) Len() int { return len(d.records) }

// Records returns the records in the view. The slice is shared; callers
// must not modify it.
func (d *Dataset) Records() []Record { return d.records }

// Record returns the record with the given id.
func (d *Dataset) Record(id int) (Record, error) {
	i, ok := d.byID[id]
	if !ok {
		return Record{}, ErrRecordNotFound
	}
	return d.records[i], nil
}

// Filter returns a new view containing only records matching all filter
// constraints. Unknown filter keys match nothing.
func (d *Dataset) Filter(f Filters) *Dataset {
	if len(f) == 0 {
		return d
	}
	sets := make(map[string]map[string]bool, len(f))
	for key, values := range f {
		if len(values) == 0 {
			continue
		}
		set := make(map[string]bool, len(values))
		for _, v := range values {
			set[v] = true
		}
		sets[key] = set
	}
	if len(sets) == 0 {
		return d
	}

	var kept []Record
	for _, r := range d.records {
		match := true
		for key, set := range sets {
			if !set[r.Labels[key]] {
				match = false
				break
			}
		}
		if match {
			kept = append(kept, r)
		}
	}
	return New(kept)
}

// FilterOptions returns the sorted unique values of every label key across
// the view, for populating filter controls.
func (d *Dataset) FilterOptions() map[string][]string {
	seen := make(map[string]map[string]bool)
	for _, r := range d.records {
		for key, value := range r.Labels {
			if seen[key] == nil {
				seen[key] = make(map[string]bool)
			}
			seen[key][value] = true
		}
	}
	options := make(map[string][]string, len(seen))
	for key, values := range seen {
		list := make([]string, 0, len(values))
		for v := range values {
			list = append(list, v)
		}
		sort.Strings(list)
		options[key] = list
	}
	return options
}

// Metrics returns the sorted union of metric column names across the view.
func (d *Dataset) Metrics() []string {
	seen := make(map[string]bool)
	for _, r := range d.records {
		for name := range r.Values {
			seen[name] = true
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Column returns the values of one metric across the view, skipping records
// that lack the metric. It returns ErrUnknownMetric when no record carries
// the metric at all, and ErrNoData on an empty view.
func (d *Dataset) Column(metric string) ([]float64, error) {
	if len(d.records) == 0 {
		return nil, ErrNoData
	}
	values := make([]float64, 0, len(d.records))
	for _, r := range d.records {
		if v, ok := r.Values[metric]; ok {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return nil, ErrUnknownMetric
	}
	return values, nil
}

// Items converts the view into classification input.
func (d *Dataset) Items() []classify.Item {
	items := make([]classify.Item, len(d.records))
	for i, r := range d.records {
		items[i] = classify.Item{ID: r.ID, Values: r.Values}
	}
	return items
}
