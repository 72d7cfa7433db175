// Package family classifies exercises into press and pull movement families so that a weight known for one exercise
// can seed an estimate for a similar one. The classification table is configuration, loaded from YAML.
package family

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Family is a movement family.
type Family string

const (
	None  Family = ""
	Press Family = "press"
	Pull  Family = "pull"
)

//go:embed families.yaml
var defaultTable []byte

// ErrInvalidTable is returned when a table fails validation.
var ErrInvalidTable = errors.New("invalid family table")

// Keywords lists the keyword names per family for one body part.
type Keywords struct {
	Press []string `yaml:"press"`
	Pull  []string `yaml:"pull"`
}

// Table maps body parts to family keywords and families to the conservative factor applied to a donor's value.
type Table struct {
	Factors   map[Family]float64  `yaml:"factors"`
	BodyParts map[string]Keywords `yaml:"body_parts"`
}

// Default returns the embedded table.
func Default() (*Table, error) {
	t, err := Parse(defaultTable)
	if err != nil {
		return nil, fmt.Errorf("parse embedded family table: %w", err)
	}
	return t, nil
}

// Load reads a table from a YAML file. An empty path returns the embedded default.
func Load(path string) (*Table, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read family table: %w", err)
	}
	t, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse family table %s: %w", path, err)
	}
	return t, nil
}

// Parse decodes and validates a YAML table. Body part names are normalised to lower case.
func Parse(data []byte) (*Table, error) {
	var raw Table
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}
	t := &Table{
		Factors:   make(map[Family]float64, len(raw.Factors)),
		BodyParts: make(map[string]Keywords, len(raw.BodyParts)),
	}
	for f, factor := range raw.Factors {
		if f != Press && f != Pull {
			return nil, fmt.Errorf("unknown family %q: %w", f, ErrInvalidTable)
		}
		if factor <= 0 || factor > 1 || math.IsNaN(factor) {
			return nil, fmt.Errorf("factor %v for %s must be in (0, 1]: %w", factor, f, ErrInvalidTable)
		}
		t.Factors[f] = factor
	}
	for _, f := range []Family{Press, Pull} {
		if _, ok := t.Factors[f]; !ok {
			return nil, fmt.Errorf("missing factor for %s: %w", f, ErrInvalidTable)
		}
	}
	for bodyPart, kw := range raw.BodyParts {
		t.BodyParts[strings.ToLower(bodyPart)] = kw
	}
	return t, nil
}

// Classify returns the family of the named exercise within bodyPart, or None.
func (t *Table) Classify(bodyPart, name string) Family {
	kw, ok := t.BodyParts[strings.ToLower(bodyPart)]
	if !ok {
		return None
	}
	lowerName := strings.ToLower(name)
	if matchesAny(lowerName, kw.Press) {
		return Press
	}
	if matchesAny(lowerName, kw.Pull) {
		return Pull
	}
	return None
}

// Factor returns the multiplier applied to a donor value of family f. None yields 0.
func (t *Table) Factor(f Family) float64 {
	return t.Factors[f]
}

func matchesAny(lowerName string, keywords []string) bool {
	for _, k := range keywords {
		fields := strings.Fields(k)
		if len(fields) == 0 {
			continue
		}
		if strings.Contains(lowerName, strings.ToLower(fields[0])) {
			return true
		}
	}
	return false
}
