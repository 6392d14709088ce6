package report

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInt(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"42", 42},
		{"  17 ", 17},
		{"12.9", 12},
		{"7abc", 7},
		{"-3", -3},
		{"", 0},
		{"abc", 0},
		{"+", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseInt(tt.in), "ParseInt(%q)", tt.in)
	}
}

func TestParseFloat(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"45.67", 45.67},
		{"0.5%", 0.5},
		{".25", 0.25},
		{"3.", 3},
		{"1e2", 100},
		{"2e", 2},
		{"-1.5", -1.5},
		{"", 0},
		{"NaN", 0},
		{"x1", 0},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, ParseFloat(tt.in), 1e-9, "ParseFloat(%q)", tt.in)
	}
}

func TestAnnotationsDecodeLegacyForms(t *testing.T) {
	var rec MetricsRecord

	require.NoError(t, json.Unmarshal([]byte(`{"advertencias":"a; b ;","insights":null}`), &rec))
	assert.Equal(t, Annotations{"a", "b"}, rec.Warnings)
	assert.Nil(t, rec.Insights)

	require.NoError(t, json.Unmarshal([]byte(`{"advertencias":["x"],"insights":[]}`), &rec))
	assert.Equal(t, Annotations{"x"}, rec.Warnings)
	assert.Empty(t, rec.Insights)
}

func TestAnnotationsEncodeAsArray(t *testing.T) {
	out, err := json.Marshal(struct {
		A Annotations `json:"a"`
		B Annotations `json:"b"`
	}{B: Annotations{"one"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":[],"b":["one"]}`, string(out))
}

func TestDecimal(t *testing.T) {
	out, err := json.Marshal(TrafficSource{Views: 3, Duration: 12.346, Bounce: 40})
	require.NoError(t, err)
	assert.JSONEq(t, `{"views":3,"sessions":0,"users":0,"duration":"12.35","bounce":"40.00"}`, string(out))

	var src TrafficSource
	require.NoError(t, json.Unmarshal([]byte(`{"duration":"1.50","bounce":33.3}`), &src))
	assert.InDelta(t, 1.5, float64(src.Duration), 1e-9)
	assert.InDelta(t, 33.3, float64(src.Bounce), 1e-9)
}
