package extract

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// templateFile is the on-disk layout of a template overlay.
type templateFile struct {
	Templates map[string]*Template `yaml:"templates"`
}

// FileStore overlays templates loaded from YAML on top of a base store. A
// template in the file replaces the base template of the same source; its
// empty fields still fall back to generic through Resolve.
type FileStore struct {
	base      TemplateStore
	templates map[string]*Template
}

// LoadFileStore reads a YAML overlay from path.
func LoadFileStore(path string, base TemplateStore) (*FileStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read templates: %w", err)
	}
	return ParseFileStore(data, base)
}

// ParseFileStore decodes a YAML overlay and validates every template in it.
func ParseFileStore(data []byte, base TemplateStore) (*FileStore, error) {
	var file templateFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("decode templates: %w", err)
	}
	s := &FileStore{base: base, templates: make(map[string]*Template, len(file.Templates))}
	for name, t := range file.Templates {
		if t == nil {
			continue
		}
		name = strings.ToLower(strings.TrimSpace(name))
		t.Source = name
		if t.Fields == nil {
			t.Fields = map[Field][]ExtractionRule{}
		}
		if err := t.Validate(); err != nil {
			return nil, err
		}
		s.templates[name] = t
	}
	return s, nil
}

func (s *FileStore) Lookup(source string) (*Template, bool) {
	if t, ok := s.templates[strings.ToLower(source)]; ok {
		return t.clone(), true
	}
	if s.base == nil {
		return nil, false
	}
	return s.base.Lookup(source)
}

func (s *FileStore) Sources() []string {
	seen := make(map[string]bool)
	var out []string
	if s.base != nil {
		for _, name := range s.base.Sources() {
			seen[name] = true
			out = append(out, name)
		}
	}
	for name := range s.templates {
		if !seen[name] {
			out = append(out, name)
		}
	}
	return out
}
