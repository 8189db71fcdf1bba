// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0
// no-cloc

package output

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tidwall/gjson"

	"github.com/staranto/carbonctlgo/internal/attrs"
)

func TestSortDataset(t *testing.T) {
	testData := []map[string]interface{}{
		{"region": "eu-west-2", "intensity": 210.0, "zone": "GB"},
		{"region": "eu-central-1", "intensity": 390.0, "zone": "DE"},
		{"region": "eu-west-1", "intensity": 290.0, "zone": "IE"},
	}

	tests := []struct {
		name      string
		spec      string
		wantOrder []string
	}{
		{
			name:      "ascending by region",
			spec:      "region",
			wantOrder: []string{"eu-central-1", "eu-west-1", "eu-west-2"},
		},
		{
			name:      "descending by region",
			spec:      "-region",
			wantOrder: []string{"eu-west-2", "eu-west-1", "eu-central-1"},
		},
		{
			name:      "ascending by intensity",
			spec:      "intensity",
			wantOrder: []string{"eu-west-2", "eu-west-1", "eu-central-1"},
		},
		{
			name:      "descending by intensity",
			spec:      "-intensity",
			wantOrder: []string{"eu-central-1", "eu-west-1", "eu-west-2"},
		},
		{
			name:      "case sensitive",
			spec:      "!region",
			wantOrder: []string{"eu-central-1", "eu-west-1", "eu-west-2"},
		},
		{
			name:      "multiple fields",
			spec:      "zone,region",
			wantOrder: []string{"eu-central-1", "eu-west-2", "eu-west-1"},
		},
		{
			name:      "empty spec",
			spec:      "",
			wantOrder: []string{"eu-west-2", "eu-central-1", "eu-west-1"},
		},
		{
			name:      "unknown key keeps order",
			spec:      "bogus",
			wantOrder: []string{"eu-west-2", "eu-central-1", "eu-west-1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := make([]map[string]interface{}, len(testData))
			copy(data, testData)
			SortDataset(data, tt.spec)
			for i, expected := range tt.wantOrder {
				assert.Equal(t, expected, data[i]["region"], "at index %d", i)
			}
		})
	}
}

func TestBuildFilters(t *testing.T) {
	tests := []struct {
		name string
		spec string
		want []Filter
	}{
		{
			name: "empty spec",
			spec: "",
			want: nil,
		},
		{
			name: "equality",
			spec: "region=eu-west-1",
			want: []Filter{{Key: "region", Operand: "=", Target: "eu-west-1"}},
		},
		{
			name: "negated equality",
			spec: "region!=eu-west-1",
			want: []Filter{{Key: "region", Negate: true, Operand: "=", Target: "eu-west-1"}},
		},
		{
			name: "prefix and regex",
			spec: "region^eu-,zone/^(IE|GB)$",
			want: []Filter{
				{Key: "region", Operand: "^", Target: "eu-"},
				{Key: "zone", Operand: "/", Target: "^(IE|GB)$"},
			},
		},
		{
			name: "invalid filter is skipped",
			spec: "nooperand",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildFilters(tt.spec))
		})
	}
}

func TestFilterDataset(t *testing.T) {
	doc := `[
		{"region": "eu-west-1", "zone": "IE", "intensity": 290},
		{"region": "eu-west-2", "zone": "GB", "intensity": 210},
		{"region": "eu-central-1", "zone": "DE", "intensity": 390}
	]`

	var alist attrs.AttrList
	assert.NoError(t, alist.Set("region,zone,intensity"))

	tests := []struct {
		name        string
		spec        string
		wantRegions []string
	}{
		{
			name:        "no filter keeps everything",
			spec:        "",
			wantRegions: []string{"eu-west-1", "eu-west-2", "eu-central-1"},
		},
		{
			name:        "equality",
			spec:        "zone=GB",
			wantRegions: []string{"eu-west-2"},
		},
		{
			name:        "negated equality",
			spec:        "zone!=GB",
			wantRegions: []string{"eu-west-1", "eu-central-1"},
		},
		{
			name:        "numeric less than",
			spec:        "intensity<300",
			wantRegions: []string{"eu-west-1", "eu-west-2"},
		},
		{
			name:        "prefix",
			spec:        "region^eu-west",
			wantRegions: []string{"eu-west-1", "eu-west-2"},
		},
		{
			name:        "multiple filters are conjunctive",
			spec:        "region^eu-west,intensity>250",
			wantRegions: []string{"eu-west-1"},
		},
		{
			name:        "no match",
			spec:        "zone=FR",
			wantRegions: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterDataset(gjson.Parse(doc), alist, tt.spec)
			var regions []string
			for _, row := range got {
				regions = append(regions, row["region"].(string))
			}
			assert.Equal(t, tt.wantRegions, regions)
		})
	}
}

func TestFilterDataset_UnknownFilterKeyIsIgnored(t *testing.T) {
	doc := `[{"region": "eu-west-1"}]`

	var alist attrs.AttrList
	assert.NoError(t, alist.Set("region"))

	got := FilterDataset(gjson.Parse(doc), alist, "bogus=1")
	assert.Len(t, got, 1)
}

func TestInterfaceToString(t *testing.T) {
	tests := []struct {
		name     string
		value    interface{}
		emptyVal string
		want     string
	}{
		{
			name:  "string",
			value: "hello",
			want:  "hello",
		},
		{
			name:  "int",
			value: 42,
			want:  "42",
		},
		{
			name:  "float64",
			value: 42.5,
			want:  "42",
		},
		{
			name:  "float64 with decimal",
			value: 42.7,
			want:  "43",
		},
		{
			name:  "bool true",
			value: true,
			want:  "true",
		},
		{
			name:  "bool false is zero value",
			value: false,
			want:  "",
		},
		{
			name:  "nil default",
			value: nil,
			want:  "",
		},
		{
			name:     "nil custom",
			value:    nil,
			emptyVal: "-",
			want:     "-",
		},
		{
			name:  "slice",
			value: []string{"a", "b"},
			want:  `["a","b"]`,
		},
		{
			name:  "map",
			value: map[string]int{"x": 1},
			want:  `{"x":1}`,
		},
		{
			name:  "zero value int",
			value: 0,
			want:  "",
		},
		{
			name:     "zero value with custom empty",
			value:    0,
			emptyVal: "N/A",
			want:     "N/A",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			if tt.emptyVal != "" {
				got = InterfaceToString(tt.value, tt.emptyVal)
			} else {
				got = InterfaceToString(tt.value)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetColors(t *testing.T) {
	header, even, odd := getColors("colors")

	// Should return strings (may be empty or defaults)
	assert.IsType(t, "", header)
	assert.IsType(t, "", even)
	assert.IsType(t, "", odd)
}

func BenchmarkSortDataset(b *testing.B) {
	testData := []map[string]interface{}{
		{"region": "eu-west-2", "intensity": 210.0},
		{"region": "eu-central-1", "intensity": 390.0},
		{"region": "eu-west-1", "intensity": 290.0},
	}

	spec := "region"

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		data := make([]map[string]interface{}, len(testData))
		copy(data, testData)
		SortDataset(data, spec)
	}
}

func BenchmarkInterfaceToString(b *testing.B) {
	values := []interface{}{
		"string",
		42,
		42.5,
		true,
		nil,
		[]string{"a", "b"},
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, v := range values {
			InterfaceToString(v)
		}
	}
}
