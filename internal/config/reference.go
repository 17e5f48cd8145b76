package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed reference.yaml
var defaultReference []byte

// Reference is the static dataset of weekly portions and Tanach books.
// It is loaded once at startup and only queried by id afterwards.
type Reference struct {
	Parashot []Parasha `yaml:"parashot"`
	Books    []Book    `yaml:"books"`

	parashot map[string]*Parasha
	books    map[string]*Book
}

// Parasha is a weekly Torah portion.
type Parasha struct {
	ID       string     `yaml:"id" json:"id"`
	Name     string     `yaml:"name" json:"name"`
	Book     string     `yaml:"book" json:"book"`
	Haftarot []Haftarah `yaml:"haftarot" json:"haftarot"`
}

// Haftarah is a prophetic reading attached to a portion.
type Haftarah struct {
	ID  string `yaml:"id" json:"id"`
	Ref string `yaml:"ref" json:"ref"`
}

// Book is a Tanach book.
type Book struct {
	ID       string `yaml:"id" json:"id"`
	Name     string `yaml:"name" json:"name"`
	Chapters int    `yaml:"chapters" json:"chapters"`
}

// LoadReference reads the reference dataset from path, or the embedded copy
// when path is empty.
func LoadReference(path string) (*Reference, error) {
	data := defaultReference
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading reference file: %w", err)
		}
	}
	return ParseReference(data)
}

// ParseReference parses and indexes a YAML reference dataset.
func ParseReference(data []byte) (*Reference, error) {
	var ref Reference
	if err := yaml.Unmarshal(data, &ref); err != nil {
		return nil, fmt.Errorf("parsing reference data: %w", err)
	}

	ref.parashot = make(map[string]*Parasha, len(ref.Parashot))
	for i := range ref.Parashot {
		p := &ref.Parashot[i]
		if p.ID == "" {
			return nil, fmt.Errorf("parasha #%d has no id", i+1)
		}
		if _, dup := ref.parashot[p.ID]; dup {
			return nil, fmt.Errorf("duplicate parasha id %q", p.ID)
		}
		ref.parashot[p.ID] = p
	}

	ref.books = make(map[string]*Book, len(ref.Books))
	for i := range ref.Books {
		b := &ref.Books[i]
		if b.ID == "" {
			return nil, fmt.Errorf("book #%d has no id", i+1)
		}
		ref.books[b.ID] = b
	}

	return &ref, nil
}

// Parasha finds a portion by id.
func (r *Reference) Parasha(id string) (*Parasha, bool) {
	if r == nil {
		return nil, false
	}
	p, ok := r.parashot[id]
	return p, ok
}

// Book finds a Tanach book by id.
func (r *Reference) Book(id string) (*Book, bool) {
	if r == nil {
		return nil, false
	}
	b, ok := r.books[id]
	return b, ok
}

// HasHaftarah reports whether haftarahID is one of the portion's haftarot.
func (p *Parasha) HasHaftarah(haftarahID string) bool {
	for _, h := range p.Haftarot {
		if h.ID == haftarahID {
			return true
		}
	}
	return false
}
