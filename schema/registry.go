package schema

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/pelletier/go-toml/v2"
)

// Registry holds the schemas a process can crawl. It is safe for
// concurrent use.
type Registry struct {
	mu    sync.RWMutex
	sites map[string]*Schema
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{sites: make(map[string]*Schema)}
}

// Put adds or replaces a schema.
func (r *Registry) Put(s *Schema) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sites[s.Name] = s
}

// Get returns the schema registered under name.
func (r *Registry) Get(name string) (*Schema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sites[name]
	return s, ok
}

// List returns the schemas sorted by name.
func (r *Registry) List() []*Schema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Schema, 0, len(r.sites))
	for _, s := range r.sites {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// siteFile is the on-disk layout of a sites file:
//
//	[[site]]
//	name = "haoganghui-west"
//	base = "haoganghui"
//	entry_url = "https://..."
//
// A site with a base starts from a copy of that schema and overrides only
// the keys it sets.
type siteFile struct {
	Site []map[string]any `toml:"site"`
}

// LoadFile reads a TOML sites file into r. Every site in the file is
// validated before any is registered.
func (r *Registry) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read sites file: %w", err)
	}
	return r.Load(data)
}

// Load is LoadFile for an in-memory document.
func (r *Registry) Load(data []byte) error {
	var file siteFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse sites file: %w", err)
	}

	parsed := make([]*Schema, 0, len(file.Site))
	for i, raw := range file.Site {
		var start Schema
		if base, ok := raw["base"].(string); ok && base != "" {
			b, found := r.Get(base)
			if !found {
				return fmt.Errorf("site #%d: unknown base %q", i+1, base)
			}
			start = b.detached()
		}
		delete(raw, "base")

		// Round-trip the table so only the keys present override the base.
		encoded, err := toml.Marshal(raw)
		if err != nil {
			return fmt.Errorf("site #%d: %w", i+1, err)
		}
		if err := toml.Unmarshal(encoded, &start); err != nil {
			return fmt.Errorf("site #%d: %w", i+1, err)
		}

		s, err := New(start)
		if err != nil {
			return fmt.Errorf("site #%d: %w", i+1, err)
		}
		parsed = append(parsed, s)
	}

	for _, s := range parsed {
		r.Put(s)
	}
	return nil
}

// detached returns a copy of s sharing no slices with it, so decoding an
// override into the copy cannot write through to s.
func (s *Schema) detached() Schema {
	out := *s
	out.Fields = append([]Field(nil), s.Fields...)
	out.Layouts = cloneLayouts(s.Layouts)
	out.TokenLayouts = cloneLayouts(s.TokenLayouts)
	out.HeaderKeywords = append([]string(nil), s.HeaderKeywords...)
	out.Vocabulary.LineKeywords = append([]string(nil), s.Vocabulary.LineKeywords...)
	out.Vocabulary.NameKeywords = append([]string(nil), s.Vocabulary.NameKeywords...)

	p := &out.Patterns
	p.Tables = append([]string(nil), p.Tables...)
	p.Rows = append([]string(nil), p.Rows...)
	p.Cells = append([]string(nil), p.Cells...)
	p.Pagination = append([]string(nil), p.Pagination...)
	p.NextClasses = append([]string(nil), p.NextClasses...)
	p.Active = append([]string(nil), p.Active...)
	out.byName, out.byRole = nil, nil
	return out
}
