package treeseq

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pierrec/lz4/v4"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// Format is a document serialization format.
type Format string

// Supported document formats.
const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

const (
	lz4Ext       = ".lz4"
	jsonExt      = ".json"
	documentDir  = 0o750
	documentPerm = 0o600
)

// ErrSchema is returned when a document does not match the tree sequence schema.
var ErrSchema = errors.New("document does not match schema")

// ErrUnknownFormat is returned for an unsupported document format.
var ErrUnknownFormat = errors.New("unknown document format")

//go:embed treeseq-schema.json
var schemaJSON []byte

// Document is the on-disk representation of a tree sequence.
type Document struct {
	SequenceLength float64       `json:"sequence_length"     yaml:"sequence_length"`
	Nodes          []DocNode     `json:"nodes"               yaml:"nodes"`
	Edges          []DocEdge     `json:"edges,omitempty"     yaml:"edges,omitempty"`
	Mutations      []DocMutation `json:"mutations,omitempty" yaml:"mutations,omitempty"`
	Groups         []DocGroup    `json:"groups,omitempty"    yaml:"groups,omitempty"`
}

// DocNode is a node entry of a Document.
type DocNode struct {
	Time   float64 `json:"time"             yaml:"time"`
	Sample bool    `json:"sample,omitempty" yaml:"sample,omitempty"`
}

// DocEdge is an edge entry of a Document.
type DocEdge struct {
	Left     float64 `json:"left"     yaml:"left"`
	Right    float64 `json:"right"    yaml:"right"`
	Parent   int     `json:"parent"   yaml:"parent"`
	Children []int   `json:"children" yaml:"children,flow"`
}

// DocMutation is a mutation entry of a Document.
type DocMutation struct {
	Position float64 `json:"position" yaml:"position"`
	Node     int     `json:"node"     yaml:"node"`
}

// DocGroup is a sample group entry of a Document.
type DocGroup struct {
	Name   string `json:"name"   yaml:"name"`
	Leaves []int  `json:"leaves" yaml:"leaves,flow"`
}

// SchemaError is one schema violation.
type SchemaError struct {
	Field       string
	Description string
}

func (e SchemaError) String() string {
	return e.Field + ": " + e.Description
}

// ValidateDocument checks raw YAML or JSON bytes against the embedded schema.
// It returns the list of violations; a nil slice means the document is valid.
func ValidateDocument(data []byte) ([]SchemaError, error) {
	var raw any

	err := yaml.Unmarshal(data, &raw)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaJSON),
		gojsonschema.NewGoLoader(raw),
	)
	if err != nil {
		return nil, fmt.Errorf("schema validation: %w", err)
	}

	if result.Valid() {
		return nil, nil
	}

	violations := make([]SchemaError, 0, len(result.Errors()))
	for _, verr := range result.Errors() {
		violations = append(violations, SchemaError{Field: verr.Field(), Description: verr.Description()})
	}

	return violations, nil
}

// Decode reads a YAML or JSON document, checks it against the schema and
// builds a validated TreeSequence.
func Decode(r io.Reader) (*TreeSequence, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}

	violations, err := ValidateDocument(data)
	if err != nil {
		return nil, err
	}

	if len(violations) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrSchema, violations[0])
	}

	var doc Document

	err = yaml.Unmarshal(data, &doc)
	if err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}

	return FromDocument(doc)
}

// Encode writes ts as a document in the given format.
func Encode(w io.Writer, ts *TreeSequence, format Format) error {
	doc := ToDocument(ts)

	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		err := enc.Encode(doc)
		if err != nil {
			return fmt.Errorf("encode json: %w", err)
		}

		return nil
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)

		err := enc.Encode(doc)
		if err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}

		return enc.Close()
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// FormatForPath infers the document format from a file name; a trailing .lz4
// is ignored.
func FormatForPath(path string) Format {
	base := strings.TrimSuffix(path, lz4Ext)
	if strings.EqualFold(filepath.Ext(base), jsonExt) {
		return FormatJSON
	}

	return FormatYAML
}

// IsCompressed reports whether path names an lz4-compressed document.
func IsCompressed(path string) bool {
	return strings.HasSuffix(path, lz4Ext)
}

// ReadFile returns the raw (decompressed) bytes of a document file.
func ReadFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if IsCompressed(path) {
		r = lz4.NewReader(f)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	return data, nil
}

// Load reads a document file. Files ending in .lz4 are decompressed.
func Load(path string) (*TreeSequence, error) {
	data, err := ReadFile(path)
	if err != nil {
		return nil, err
	}

	ts, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	return ts, nil
}

// Save writes ts to path in the format implied by its extension. Files ending
// in .lz4 are written as an lz4 frame.
func Save(path string, ts *TreeSequence) (err error) {
	dir := filepath.Dir(path)

	err = os.MkdirAll(dir, documentDir)
	if err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, documentPerm)
	if err != nil {
		return fmt.Errorf("create document: %w", err)
	}

	defer func() {
		err = errors.Join(err, f.Close())
	}()

	if !IsCompressed(path) {
		return Encode(f, ts, FormatForPath(path))
	}

	zw := lz4.NewWriter(f)

	err = Encode(zw, ts, FormatForPath(path))
	if err != nil {
		return err
	}

	err = zw.Close()
	if err != nil {
		return fmt.Errorf("flush lz4: %w", err)
	}

	return nil
}

// FromDocument builds a validated TreeSequence from a Document.
func FromDocument(doc Document) (*TreeSequence, error) {
	tables := Tables{
		SequenceLength: doc.SequenceLength,
		Nodes:          make([]Node, len(doc.Nodes)),
		Edges:          make([]Edge, len(doc.Edges)),
		Mutations:      make([]Mutation, len(doc.Mutations)),
		Groups:         make([]SampleGroup, len(doc.Groups)),
	}

	for i, n := range doc.Nodes {
		tables.Nodes[i] = Node(n)
	}

	for i, e := range doc.Edges {
		tables.Edges[i] = Edge(e)
	}

	for i, m := range doc.Mutations {
		tables.Mutations[i] = Mutation(m)
	}

	for i, g := range doc.Groups {
		tables.Groups[i] = SampleGroup(g)
	}

	return New(tables)
}

// ToDocument converts ts to its Document form.
func ToDocument(ts *TreeSequence) Document {
	tables := ts.Tables()

	doc := Document{
		SequenceLength: tables.SequenceLength,
		Nodes:          make([]DocNode, len(tables.Nodes)),
		Edges:          make([]DocEdge, len(tables.Edges)),
	}

	for i, n := range tables.Nodes {
		doc.Nodes[i] = DocNode(n)
	}

	for i, e := range tables.Edges {
		doc.Edges[i] = DocEdge(e)
	}

	if len(tables.Mutations) > 0 {
		doc.Mutations = make([]DocMutation, len(tables.Mutations))
		for i, m := range tables.Mutations {
			doc.Mutations[i] = DocMutation(m)
		}
	}

	if len(tables.Groups) > 0 {
		doc.Groups = make([]DocGroup, len(tables.Groups))
		for i, g := range tables.Groups {
			doc.Groups[i] = DocGroup(g)
		}
	}

	return doc
}
