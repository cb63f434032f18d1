package treeseq_test

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/branchstats/internal/tstest"
	"github.com/Sumatoshi-tech/branchstats/pkg/treeseq"
)

const threeYAML = `sequence_length: 1
nodes:
  - {time: 0, sample: true}
  - {time: 0, sample: true}
  - {time: 0, sample: true}
  - {time: 2}
  - {time: 5}
edges:
  - {left: 0, right: 1, parent: 3, children: [0, 1]}
  - {left: 0, right: 1, parent: 4, children: [2, 3]}
groups:
  - {name: pair, leaves: [0, 1]}
  - {name: out, leaves: [2]}
`

func TestDecode_YAML(t *testing.T) {
	t.Parallel()

	ts, err := treeseq.Decode(strings.NewReader(threeYAML))
	require.NoError(t, err)

	assert.Equal(t, 5, ts.NumNodes())
	assert.Equal(t, 2, ts.NumEdges())
	require.Len(t, ts.Groups(), 2)
	assert.Equal(t, "pair", ts.Groups()[0].Name)
	assert.Equal(t, []int{2}, ts.Groups()[1].Leaves)
}

func TestDecode_JSON(t *testing.T) {
	t.Parallel()

	doc := `{"sequence_length": 2, "nodes": [{"time": 0, "sample": true}, {"time": 0, "sample": true}, {"time": 1}],
"edges": [{"left": 0, "right": 2, "parent": 2, "children": [0, 1]}],
"mutations": [{"position": 0.5, "node": 1}]}`

	ts, err := treeseq.Decode(strings.NewReader(doc))
	require.NoError(t, err)

	assert.InDelta(t, 2, ts.SequenceLength(), 1e-12)
	assert.Len(t, ts.Mutations(), 1)
}

func TestDecode_SchemaViolation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		doc  string
	}{
		{name: "missing_nodes", doc: "sequence_length: 1\n"},
		{name: "negative_length", doc: "sequence_length: -1\nnodes: []\n"},
		{name: "unknown_field", doc: "sequence_length: 1\nnodes: []\ncolour: red\n"},
		{name: "string_time", doc: "sequence_length: 1\nnodes: [{time: old}]\n"},
		{name: "empty_children", doc: "sequence_length: 1\nnodes: [{time: 0}]\nedges: [{left: 0, right: 1, parent: 0, children: []}]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := treeseq.Decode(strings.NewReader(tt.doc))
			require.ErrorIs(t, err, treeseq.ErrSchema)
		})
	}
}

func TestDecode_TableViolationAfterSchema(t *testing.T) {
	t.Parallel()

	doc := strings.Replace(threeYAML, "{time: 5}", "{time: 1}", 1)

	_, err := treeseq.Decode(strings.NewReader(doc))
	require.ErrorIs(t, err, treeseq.ErrTimeOrder)
}

func TestValidateDocument_ReportsFields(t *testing.T) {
	t.Parallel()

	violations, err := treeseq.ValidateDocument([]byte("sequence_length: 0\nnodes: [{time: -1}]\n"))
	require.NoError(t, err)
	require.Len(t, violations, 2)

	fields := []string{violations[0].Field, violations[1].Field}
	assert.Contains(t, fields, "sequence_length")
	assert.Contains(t, fields, "nodes.0.time")

	violations, err = treeseq.ValidateDocument([]byte(threeYAML))
	require.NoError(t, err)
	assert.Empty(t, violations)

	_, err = treeseq.ValidateDocument([]byte("nodes: [unterminated"))
	require.Error(t, err)
}

func TestEncode_RoundTrip(t *testing.T) {
	t.Parallel()

	tables := tstest.Random(5, tstest.Options{Samples: 5, Trees: 6, SequenceLength: 12, Mutations: 2, Groups: 2})
	ts, err := treeseq.New(tables)
	require.NoError(t, err)

	for _, format := range []treeseq.Format{treeseq.FormatYAML, treeseq.FormatJSON} {
		var buf bytes.Buffer
		require.NoError(t, treeseq.Encode(&buf, ts, format))

		back, err := treeseq.Decode(&buf)
		require.NoError(t, err, "format %s", format)
		assert.Equal(t, ts.Tables(), back.Tables(), "format %s", format)
	}

	err = treeseq.Encode(&bytes.Buffer{}, ts, treeseq.Format("xml"))
	require.ErrorIs(t, err, treeseq.ErrUnknownFormat)
}

func TestSaveLoad_CompressedFiles(t *testing.T) {
	t.Parallel()

	ts, err := treeseq.New(tstest.TwoTrees())
	require.NoError(t, err)

	dir := t.TempDir()

	for _, name := range []string{"ts.yaml", "ts.json", "ts.yaml.lz4", "nested/ts.json.lz4"} {
		path := filepath.Join(dir, name)
		require.NoError(t, treeseq.Save(path, ts), name)

		back, err := treeseq.Load(path)
		require.NoError(t, err, name)
		assert.Equal(t, ts.Tables(), back.Tables(), name)
	}

	raw, err := treeseq.ReadFile(filepath.Join(dir, "ts.json.lz4"))
	require.Error(t, err)
	assert.Nil(t, raw)

	raw, err = treeseq.ReadFile(filepath.Join(dir, "nested/ts.json.lz4"))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(bytes.TrimSpace(raw), []byte("{")))
}

func TestFormatForPath(t *testing.T) {
	t.Parallel()

	assert.Equal(t, treeseq.FormatJSON, treeseq.FormatForPath("a/b.json"))
	assert.Equal(t, treeseq.FormatJSON, treeseq.FormatForPath("b.JSON.lz4"))
	assert.Equal(t, treeseq.FormatYAML, treeseq.FormatForPath("b.yml"))
	assert.Equal(t, treeseq.FormatYAML, treeseq.FormatForPath("b"))
	assert.True(t, treeseq.IsCompressed("x.yaml.lz4"))
	assert.False(t, treeseq.IsCompressed("x.yaml"))
}
