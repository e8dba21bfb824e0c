package dataset

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func sample() *Dataset {
	return New([]Record{
		{ID: 1, Labels: map[string]string{"model": "a", "method": "x"}, Values: map[string]float64{"score": 0.1}},
		{ID: 2, Labels: map[string]string{"model": "a", "method": "y"}, Values: map[string]float64{"score": 0.4}},
		{ID: 3, Labels: map[string]string{"model": "b", "method": "x"}, Values: map[string]float64{"score": 0.9}},
	})
}

func TestFilter(t *testing.T) {
	d := sample()

	tests := []struct {
		name    string
		filters Filters
		wantIDs []int
	}{
		{"no filters", nil, []int{1, 2, 3}},
		{"single value", Filters{"model": {"a"}}, []int{1, 2}},
		{"multiple values", Filters{"model": {"a", "b"}}, []int{1, 2, 3}},
		{"combined keys", Filters{"model": {"a"}, "method": {"x"}}, []int{1}},
		{"unknown value", Filters{"model": {"zzz"}}, nil},
		{"unknown key", Filters{"nope": {"a"}}, nil},
		{"empty list is no constraint", Filters{"model": {}}, []int{1, 2, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := d.Filter(tt.filters)
			var ids []int
			for _, r := range got.Records() {
				ids = append(ids, r.ID)
			}
			if !reflect.DeepEqual(ids, tt.wantIDs) {
				t.Errorf("ids = %v, want %v", ids, tt.wantIDs)
			}
		})
	}
}

func TestFilterDoesNotMutateBase(t *testing.T) {
	d := sample()
	_ = d.Filter(Filters{"model": {"a"}})
	if d.Len() != 3 {
		t.Errorf("base dataset length changed: %d", d.Len())
	}
}

func TestFilterOptions(t *testing.T) {
	d := sample()
	got := d.FilterOptions()
	want := map[string][]string{
		"model":  {"a", "b"},
		"method": {"x", "y"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("FilterOptions = %v, want %v", got, want)
	}
}

func TestRecord(t *testing.T) {
	d := sample()

	r, err := d.Record(2)
	if err != nil {
		t.Fatalf("Record(2): %v", err)
	}
	if r.Values["score"] != 0.4 {
		t.Errorf("score = %v, want 0.4", r.Values["score"])
	}

	if _, err := d.Record(99); !errors.Is(err, ErrRecordNotFound) {
		t.Errorf("Record(99) error = %v, want ErrRecordNotFound", err)
	}
}

func TestColumn(t *testing.T) {
	d := sample()

	values, err := d.Column("score")
	if err != nil {
		t.Fatalf("Column: %v", err)
	}
	if !reflect.DeepEqual(values, []float64{0.1, 0.4, 0.9}) {
		t.Errorf("values = %v", values)
	}

	if _, err := d.Column("missing"); !errors.Is(err, ErrUnknownMetric) {
		t.Errorf("unknown metric error = %v, want ErrUnknownMetric", err)
	}

	empty := New(nil)
	if _, err := empty.Column("score"); !errors.Is(err, ErrNoData) {
		t.Errorf("empty dataset error = %v, want ErrNoData", err)
	}
}

func TestMetrics(t *testing.T) {
	d := New([]Record{
		{ID: 1, Values: map[string]float64{"b": 1, "a": 2}},
		{ID: 2, Values: map[string]float64{"c": 3}},
	})
	got := d.Metrics()
	if !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("Metrics = %v", got)
	}
}

func TestItems(t *testing.T) {
	d := sample()
	items := d.Items()
	if len(items) != 3 {
		t.Fatalf("len = %d", len(items))
	}
	if items[2].ID != 3 || items[2].Values["score"] != 0.9 {
		t.Errorf("items[2] = %+v", items[2])
	}
}

func TestReadJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int
	}{
		{"bare array", `[{"id": 1, "values": {"m": 0.5}}]`, 1},
		{"wrapped object", `{"records": [{"id": 1, "values": {"m": 0.5}}, {"id": 2, "values": {"m": 0.6}}]}`, 2},
		{"empty array", `[]`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := ReadJSON(strings.NewReader(tt.input))
			if err != nil {
				t.Fatalf("ReadJSON: %v", err)
			}
			if len(records) != tt.want {
				t.Errorf("len = %d, want %d", len(records), tt.want)
			}
		})
	}
}

func TestReadJSONMalformed(t *testing.T) {
	if _, err := ReadJSON(strings.NewReader(`{not json`)); err == nil {
		t.Error("expected error for malformed input")
	}
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "items.json")
	content := `[{"id": 7, "labels": {"model": "a"}, "values": {"score": 0.3}}]`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	src := NewFileSource(path)
	records, err := src.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(records) != 1 || records[0].ID != 7 {
		t.Errorf("records = %+v", records)
	}
	if err := src.Close(context.Background()); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestFileSourceMissing(t *testing.T) {
	src := NewFileSource(filepath.Join(t.TempDir(), "nope.json"))
	if _, err := src.Load(context.Background()); err == nil {
		t.Error("expected error for missing file")
	}
}
