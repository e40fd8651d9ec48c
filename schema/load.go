package schema

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"

	"gopkg.in/yaml.v3"
)

// Embedded schema documents, one per base version.
//
//go:embed v2/*.yaml
var embedded embed.FS

// Document is the YAML form of a schema.
type Document struct {
	Version   string                 `yaml:"version"`
	Extends   string                 `yaml:"extends,omitempty"`
	Segments  map[string]*SegmentDef `yaml:"segments"`
	DataTypes map[string]*DataType   `yaml:"datatypes"`
	Tables    map[string]*Table      `yaml:"tables"`
}

// ParseDocument decodes a YAML schema document. Unknown keys are rejected
// so typos in field attributes do not silently disable a check.
func ParseDocument(data []byte) (*Document, error) {
	var doc Document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode schema document: %w", err)
	}
	if doc.Version == "" {
		return nil, fmt.Errorf("schema document has no version")
	}
	return &doc, nil
}

// LoadFS reads every *.yaml document in dir of fsys and compiles the one
// for version, applying the documents it extends first.
func LoadFS(fsys fs.FS, dir, version string) (*Schema, error) {
	docs, err := readDocuments(fsys, dir)
	if err != nil {
		return nil, err
	}
	return compileVersion(docs, version)
}

// LoadEmbedded compiles an embedded schema version such as "2.5".
func LoadEmbedded(version string) (*Schema, error) {
	return LoadFS(embedded, "v2", version)
}

// EmbeddedVersions lists the versions shipped with the package.
func EmbeddedVersions() ([]string, error) {
	docs, err := readDocuments(embedded, "v2")
	if err != nil {
		return nil, err
	}
	versions := make([]string, 0, len(docs))
	for v := range docs {
		versions = append(versions, v)
	}
	sort.Strings(versions)
	return versions, nil
}

// Compile builds a schema from standalone documents, base documents first.
func Compile(docs ...*Document) (*Schema, error) {
	byVersion := make(map[string]*Document, len(docs))
	for _, d := range docs {
		byVersion[d.Version] = d
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("no schema documents")
	}
	return compileVersion(byVersion, docs[len(docs)-1].Version)
}

func readDocuments(fsys fs.FS, dir string) (map[string]*Document, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read schema dir %s: %w", dir, err)
	}

	docs := make(map[string]*Document, len(entries))
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ".yaml" {
			continue
		}
		data, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", e.Name(), err)
		}
		doc, err := ParseDocument(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.Name(), err)
		}
		if _, dup := docs[doc.Version]; dup {
			return nil, fmt.Errorf("%s: version %s defined twice", e.Name(), doc.Version)
		}
		docs[doc.Version] = doc
	}
	return docs, nil
}

// compileVersion resolves the extends chain of version and merges it,
// base first. Later documents replace whole segments, types and tables.
func compileVersion(docs map[string]*Document, version string) (*Schema, error) {
	var chain []*Document
	seen := make(map[string]bool)
	for v := version; v != ""; {
		doc, ok := docs[v]
		if !ok {
			return nil, fmt.Errorf("schema version %s not found", v)
		}
		if seen[v] {
			return nil, fmt.Errorf("schema version %s extends itself", v)
		}
		seen[v] = true
		chain = append(chain, doc)
		v = doc.Extends
	}

	s := &Schema{
		Version:   version,
		segments:  make(map[string]*SegmentDef),
		dataTypes: make(map[string]*DataType),
		tables:    make(map[string]*Table),
	}
	for i := len(chain) - 1; i >= 0; i-- {
		doc := chain[i]
		for tag, def := range doc.Segments {
			s.segments[tag] = def
		}
		for name, dt := range doc.DataTypes {
			s.dataTypes[name] = dt
		}
		for id, t := range doc.Tables {
			s.tables[id] = t
		}
	}

	if err := s.link(); err != nil {
		return nil, fmt.Errorf("schema %s: %w", version, err)
	}
	return s, nil
}

// link copies definitions into the schema, fills names from map keys,
// builds position lookups and checks references.
func (s *Schema) link() error {
	for name, dt := range s.dataTypes {
		c := *dt
		c.Name = name
		for _, comp := range c.Components {
			if err := s.checkType(comp.DataType); err != nil {
				return fmt.Errorf("data type %s component %s: %w", name, comp.Name, err)
			}
			if err := s.checkTable(comp.Table); err != nil {
				return fmt.Errorf("data type %s component %s: %w", name, comp.Name, err)
			}
		}
		s.dataTypes[name] = &c
	}
	for id, t := range s.tables {
		c := *t
		c.ID = id
		s.tables[id] = &c
	}

	for tag, def := range s.segments {
		c := &SegmentDef{Tag: tag, Name: def.Name, Fields: make([]FieldDef, len(def.Fields))}
		copy(c.Fields, def.Fields)
		sort.Slice(c.Fields, func(i, j int) bool { return c.Fields[i].Position < c.Fields[j].Position })

		if n := len(c.Fields); n > 0 {
			if first := c.Fields[0]; first.Position < 1 {
				return fmt.Errorf("segment %s field %q: position must be >= 1", tag, first.Name)
			}
			c.byPos = make([]*FieldDef, c.Fields[n-1].Position)
		}
		for i := range c.Fields {
			f := &c.Fields[i]
			if c.byPos[f.Position-1] != nil {
				return fmt.Errorf("segment %s: position %d defined twice", tag, f.Position)
			}
			if err := s.checkType(f.DataType); err != nil {
				return fmt.Errorf("segment %s field %d: %w", tag, f.Position, err)
			}
			if err := s.checkTable(f.Table); err != nil {
				return fmt.Errorf("segment %s field %d: %w", tag, f.Position, err)
			}
			if f.TypeFrom < 0 || f.TypeFrom == f.Position {
				return fmt.Errorf("segment %s field %d: bad typeFrom %d", tag, f.Position, f.TypeFrom)
			}
			c.byPos[f.Position-1] = f
		}
		s.segments[tag] = c
	}
	return nil
}

func (s *Schema) checkType(name string) error {
	if name == "" || name == Varies || IsPrimitive(name) {
		return nil
	}
	if _, ok := s.dataTypes[name]; !ok {
		return fmt.Errorf("unknown data type %q", name)
	}
	return nil
}

func (s *Schema) checkTable(id string) error {
	if id == "" {
		return nil
	}
	if _, ok := s.tables[id]; !ok {
		return fmt.Errorf("unknown table %q", id)
	}
	return nil
}
