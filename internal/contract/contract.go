// Package contract loads the shared face contract: a versioned table of
// expression presets and the aliases the brain may use to name them.
package contract

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/kevingtzz/BMO-project/internal/expression"
	"gopkg.in/yaml.v3"
)

//go:embed face_contract.yaml
var embedded []byte

// ErrInvalidContract is wrapped by every load or validation failure
var ErrInvalidContract = errors.New("invalid face contract")

// Kind discriminates preset definitions
type Kind string

const (
	KindFixed        Kind = "fixed"
	KindKeepPrevious Kind = "keep_previous"
)

// Preset is a resolved preset definition.
//
// A fixed preset applies Face unconditionally and becomes the new stable
// face. A keep_previous preset re-applies the last stable face, or Fallback
// when none has been recorded yet, and never records anything itself.
type Preset struct {
	Name     string
	Kind     Kind
	Face     expression.Face
	Fallback expression.Face
}

// Catalog is an immutable, validated preset table
type Catalog struct {
	version string
	aliases map[string]string
	presets map[string]Preset
	names   []string
}

type rawPreset struct {
	Kind     Kind             `yaml:"kind"`
	Eyes     expression.Eye   `yaml:"eyes"`
	Mouth    expression.Mouth `yaml:"mouth"`
	Fallback *expression.Face `yaml:"fallback"`
}

type rawContract struct {
	Version string            `yaml:"version"`
	Aliases map[string]string `yaml:"aliases"`
	Presets yaml.Node         `yaml:"presets"`
}

var separatorRun = regexp.MustCompile(`[\s/]+`)

// Normalize lower-cases and trims raw, collapsing every run of whitespace
// and slashes into a single underscore.
func Normalize(raw string) string {
	key := strings.ToLower(strings.TrimSpace(raw))
	return separatorRun.ReplaceAllString(key, "_")
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Default returns the catalog compiled into the binary
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := Load(embedded)
		if err != nil {
			panic(fmt.Sprintf("embedded face contract: %v", err))
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

// LoadFile reads and validates a contract from disk
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read contract %s: %w", path, err)
	}
	c, err := Load(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Load parses and validates a YAML contract. Preset order in the document
// is kept for Names.
func Load(data []byte) (*Catalog, error) {
	var raw rawContract
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: parse: %v", ErrInvalidContract, err)
	}

	c := &Catalog{
		version: strings.TrimSpace(raw.Version),
		aliases: make(map[string]string, len(raw.Aliases)),
		presets: make(map[string]Preset),
	}
	for k, v := range raw.Aliases {
		c.aliases[k] = v
	}

	if raw.Presets.Kind != 0 && raw.Presets.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: presets must be a mapping", ErrInvalidContract)
	}
	for i := 0; i+1 < len(raw.Presets.Content); i += 2 {
		name := raw.Presets.Content[i].Value
		var rp rawPreset
		if err := raw.Presets.Content[i+1].Decode(&rp); err != nil {
			return nil, fmt.Errorf("%w: preset %q: %v", ErrInvalidContract, name, err)
		}
		if _, dup := c.presets[name]; dup {
			return nil, fmt.Errorf("%w: duplicate preset %q", ErrInvalidContract, name)
		}
		p := Preset{Name: name, Kind: rp.Kind}
		switch rp.Kind {
		case KindFixed:
			p.Face = expression.Face{Eyes: rp.Eyes, Mouth: rp.Mouth}
		case KindKeepPrevious:
			if rp.Fallback != nil {
				p.Fallback = *rp.Fallback
			}
		}
		c.presets[name] = p
		c.names = append(c.names, name)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks the catalog invariants: a version tag, normalized names,
// enumerated faces and fallbacks, and an alias table closed over the presets.
func (c *Catalog) Validate() error {
	if c.version == "" {
		return fmt.Errorf("%w: missing version", ErrInvalidContract)
	}
	if len(c.names) == 0 {
		return fmt.Errorf("%w: no presets", ErrInvalidContract)
	}

	for _, name := range c.names {
		p := c.presets[name]
		if name == "" || Normalize(name) != name {
			return fmt.Errorf("%w: preset name %q is not normalized", ErrInvalidContract, name)
		}
		switch p.Kind {
		case KindFixed:
			if !p.Face.Valid() {
				return fmt.Errorf("%w: preset %q has invalid face %s/%s",
					ErrInvalidContract, name, p.Face.Eyes, p.Face.Mouth)
			}
		case KindKeepPrevious:
			if !p.Fallback.Valid() {
				return fmt.Errorf("%w: preset %q has invalid fallback %s/%s",
					ErrInvalidContract, name, p.Fallback.Eyes, p.Fallback.Mouth)
			}
		default:
			return fmt.Errorf("%w: preset %q has unknown kind %q", ErrInvalidContract, name, p.Kind)
		}
	}

	for key, target := range c.aliases {
		if Normalize(key) != key {
			return fmt.Errorf("%w: alias key %q is not normalized", ErrInvalidContract, key)
		}
		if _, ok := c.presets[target]; !ok {
			return fmt.Errorf("%w: alias %q points at unknown preset %q", ErrInvalidContract, key, target)
		}
	}
	return nil
}

// Resolve normalizes raw and looks it up through the alias table. The
// boolean is false when raw names no known preset.
func (c *Catalog) Resolve(raw string) (Preset, bool) {
	canonical, ok := c.aliases[Normalize(raw)]
	if !ok {
		return Preset{}, false
	}
	p, ok := c.presets[canonical]
	return p, ok
}

// Preset looks up a canonical preset name without alias resolution
func (c *Catalog) Preset(name string) (Preset, bool) {
	p, ok := c.presets[name]
	return p, ok
}

// Version returns the contract version tag
func (c *Catalog) Version() string {
	return c.version
}

// Names returns canonical preset names in document order
func (c *Catalog) Names() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

// Aliases returns a copy of the alias table
func (c *Catalog) Aliases() map[string]string {
	out := make(map[string]string, len(c.aliases))
	for k, v := range c.aliases {
		out[k] = v
	}
	return out
}
