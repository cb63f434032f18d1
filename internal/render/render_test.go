package render_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/branchstats/internal/render"
	"github.com/Sumatoshi-tech/branchstats/pkg/branchstats"
	"github.com/Sumatoshi-tech/branchstats/pkg/treeseq"
)

func init() {
	color.NoColor = true
}

func sampleRows() []render.Row {
	return []render.Row{
		{Name: "seg", Condition: "segregating", Method: "length", Engine: "incremental", Value: 11.3, Trees: 2, Covered: 10, SequenceLength: 10},
		{Name: "tail", Condition: "singleton", Method: "length", Engine: "incremental", Value: 4.4, Trees: 1, Covered: 4, SequenceLength: 10, Truncated: true},
	}
}

func TestResults_Table(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	require.NoError(t, render.Results(&buf, render.FormatTable, 2, sampleRows()))

	out := buf.String()
	assert.Contains(t, out, "seg")
	assert.Contains(t, out, "11.30")
	assert.Contains(t, out, "(truncated)")
	assert.Contains(t, out, "1 truncated")
}

func TestResults_JSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	require.NoError(t, render.Results(&buf, render.FormatJSON, 2, sampleRows()))

	var got []render.Row
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 2)
	assert.InDelta(t, 11.3, got[0].Value, 1e-12)
	assert.True(t, got[1].Truncated)
}

func TestResults_YAML(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	require.NoError(t, render.Results(&buf, render.FormatYAML, 2, sampleRows()))
	assert.Contains(t, buf.String(), "sequence_length: 10")

	var got []render.Row
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "tail", got[1].Name)
}

func TestResults_UnknownFormat(t *testing.T) {
	t.Parallel()

	err := render.Results(&bytes.Buffer{}, "csv", 2, nil)
	require.ErrorIs(t, err, render.ErrUnknownFormat)
}

func TestFormatValue(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "1.500", render.FormatValue(1.5, 3))
	assert.Equal(t, "2", render.FormatValue(2, 0))
}

func TestVerify(t *testing.T) {
	t.Parallel()

	ok := render.VerifyReport{
		Statistic: "seg", Tolerance: 1e-9, Naive: 2, Incremental: 2,
		Trees: []render.TreeCheck{{Index: 0, Left: 0, Right: 1, Naive: 2, Incremental: 2}},
	}
	assert.True(t, ok.OK())

	var buf bytes.Buffer

	require.NoError(t, render.Verify(&buf, ok, 3))
	assert.Contains(t, buf.String(), "OK seg")

	bad := ok
	bad.Incremental = 3
	bad.Trees = []render.TreeCheck{
		{Index: 0, Left: 0, Right: 1, Naive: 2, Incremental: 2},
		{Index: 1, Left: 1, Right: 2, Naive: 2, Incremental: 4},
	}
	assert.False(t, bad.OK())
	require.Len(t, bad.Mismatches(), 1)

	buf.Reset()
	require.NoError(t, render.Verify(&buf, bad, 3))
	assert.Contains(t, buf.String(), "MISMATCH seg")
	assert.Contains(t, buf.String(), "1 of 2 trees differ, largest difference 2.000")
	assert.Contains(t, buf.String(), "4.000")
}

func TestVerify_RelativeTolerance(t *testing.T) {
	t.Parallel()

	r := render.VerifyReport{Tolerance: 1e-9, Naive: 1e6, Incremental: 1e6 + 1e-4}
	assert.True(t, r.OK())
}

func TestValidation(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	assert.True(t, render.Validation(&buf, "a.yaml", nil, nil))
	assert.Contains(t, buf.String(), "valid (a.yaml)")

	buf.Reset()

	violations := []treeseq.SchemaError{{Field: "nodes.0.time", Description: "Invalid type"}}
	assert.False(t, render.Validation(&buf, "b.yaml", violations, errors.New("edge overlap")))
	assert.Contains(t, buf.String(), "nodes.0.time: Invalid type")
	assert.Contains(t, buf.String(), "edge overlap")
}

func TestTracePlot(t *testing.T) {
	t.Parallel()

	records := []branchstats.TreeRecord{
		{Index: 0, Left: 0, Right: 4, Value: 2},
		{Index: 1, Left: 4, Right: 10, Value: 8},
	}

	var buf bytes.Buffer

	require.NoError(t, render.TracePlot(&buf, "Diversity", render.Series{Name: "segregating", Records: records}))
	assert.Contains(t, buf.String(), "segregating")
	assert.Contains(t, buf.String(), "Diversity")

	require.ErrorIs(t, render.TracePlot(&buf, "empty"), render.ErrNoSeries)
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	assert.Equal(t, render.TraceSummary{}, render.Summarize(nil))

	sum := render.Summarize([]branchstats.TreeRecord{
		{Index: 0, Left: 0, Right: 4, Value: 11},
		{Index: 1, Left: 4, Right: 10, Value: 11.5},
	})

	assert.Equal(t, 2, sum.Trees)
	assert.InDelta(t, 11, sum.Min, 0)
	assert.InDelta(t, 11.5, sum.Max, 0)
	assert.InDelta(t, 11.3, sum.Mean, 1e-12)
	assert.InDelta(t, 0.25, sum.StdDev, 1e-12)
}
