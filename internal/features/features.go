// Package features holds the declarative column configuration shared by the
// loader and the preprocessor: the source→table rename map, the feature lists
// for the unsupervised and supervised pipelines, and the label column.
//
// The defaults ship as an embedded YAML document (features.yaml) so the lists
// can be reviewed, diffed, and overridden without touching procedural code.
package features

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed features.yaml
var defaultYAML []byte

// Set is the full column configuration for one dataset.
type Set struct {
	// RenameMap maps source CSV headers to destination column names.
	RenameMap map[string]string `yaml:"rename_map" json:"rename_map"`

	// IDColumns are selected alongside the features but never transformed.
	IDColumns []string `yaml:"id_columns" json:"id_columns"`

	// Label is the supervised target column.
	Label string `yaml:"label" json:"label"`

	// Unsupervised lists the numeric fields used for anomaly detection.
	Unsupervised []string `yaml:"unsupervised" json:"unsupervised"`

	// SupervisedExtra is appended to Unsupervised to form the supervised set.
	SupervisedExtra []string `yaml:"supervised_extra" json:"supervised_extra"`

	// Numeric and Categorical split the supervised set into the two
	// preprocessing blocks. Supervised fields in neither list are dropped
	// from the supervised matrix.
	Numeric     []string `yaml:"numeric" json:"numeric"`
	Categorical []string `yaml:"categorical" json:"categorical"`
}

// Default returns the built-in configuration. The embedded document is
// covered by tests, so a parse failure here is a build defect.
func Default() Set {
	s, err := Parse(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("features: embedded defaults: %v", err))
	}
	return s
}

// Parse decodes a YAML feature document.
func Parse(b []byte) (Set, error) {
	var s Set
	if err := yaml.Unmarshal(b, &s); err != nil {
		return Set{}, fmt.Errorf("features: decode: %w", err)
	}
	return s, nil
}

// Supervised returns Unsupervised followed by SupervisedExtra, keeping the
// first occurrence of any repeated name.
func (s Set) Supervised() []string {
	return dedupe(append(append([]string{}, s.Unsupervised...), s.SupervisedExtra...))
}

// QueryColumns is the projection read by the preprocessor: id columns, the
// label, then every supervised feature.
func (s Set) QueryColumns() []string {
	cols := append([]string{}, s.IDColumns...)
	if s.Label != "" {
		cols = append(cols, s.Label)
	}
	return dedupe(append(cols, s.Supervised()...))
}

// Unassigned reports supervised features that belong to neither the numeric
// nor the categorical block.
func (s Set) Unassigned() []string {
	assigned := make(map[string]struct{}, len(s.Numeric)+len(s.Categorical))
	for _, n := range s.Numeric {
		assigned[n] = struct{}{}
	}
	for _, c := range s.Categorical {
		assigned[c] = struct{}{}
	}
	var out []string
	for _, f := range s.Supervised() {
		if _, ok := assigned[f]; !ok {
			out = append(out, f)
		}
	}
	return out
}

// Target returns the destination name for one source header. The lookup
// tries raw, then raw without surrounding whitespace; headers without a
// mapping come back verbatim.
func (s Set) Target(raw string) (string, bool) {
	if mapped, ok := s.RenameMap[raw]; ok && mapped != "" {
		return mapped, true
	}
	if mapped, ok := s.RenameMap[strings.TrimSpace(raw)]; ok && mapped != "" {
		return mapped, true
	}
	return raw, false
}

// Rename applies RenameMap to a header row. Headers without a mapping are
// returned unchanged. The result is rejected when two source headers land
// on the same destination name.
func (s Set) Rename(header []string) ([]string, error) {
	out := make([]string, len(header))
	seen := make(map[string]int, len(header))
	for i, raw := range header {
		name, _ := s.Target(raw)
		if j, dup := seen[name]; dup {
			return nil, fmt.Errorf("features: rename: columns %q and %q both map to %q", header[j], raw, name)
		}
		seen[name] = i
		out[i] = name
	}
	return out, nil
}

// Validate checks structural invariants of the set and returns one error per
// problem found.
func (s Set) Validate() []error {
	var errs []error

	targets := make(map[string]string, len(s.RenameMap))
	keys := make([]string, 0, len(s.RenameMap))
	for k := range s.RenameMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := s.RenameMap[k]
		if strings.TrimSpace(v) == "" {
			errs = append(errs, fmt.Errorf("rename_map[%q] is empty", k))
			continue
		}
		if prev, ok := targets[v]; ok {
			errs = append(errs, fmt.Errorf("rename_map: %q and %q both map to %q", prev, k, v))
		}
		targets[v] = k
		if _, chained := s.RenameMap[v]; chained && v != k {
			errs = append(errs, fmt.Errorf("rename_map: target %q is also a source key", v))
		}
	}

	if s.Label == "" {
		errs = append(errs, fmt.Errorf("label must not be empty"))
	}
	if len(s.Unsupervised) == 0 {
		errs = append(errs, fmt.Errorf("unsupervised feature list is empty"))
	}
	for _, f := range s.Supervised() {
		if f == s.Label {
			errs = append(errs, fmt.Errorf("label %q must not be a feature", f))
		}
	}

	sup := make(map[string]struct{})
	for _, f := range s.Supervised() {
		sup[f] = struct{}{}
	}
	num := make(map[string]struct{}, len(s.Numeric))
	for _, n := range s.Numeric {
		num[n] = struct{}{}
		if _, ok := sup[n]; !ok {
			errs = append(errs, fmt.Errorf("numeric feature %q is not in the supervised set", n))
		}
	}
	for _, c := range s.Categorical {
		if _, ok := num[c]; ok {
			errs = append(errs, fmt.Errorf("feature %q is both numeric and categorical", c))
		}
		if _, ok := sup[c]; !ok {
			errs = append(errs, fmt.Errorf("categorical feature %q is not in the supervised set", c))
		}
	}
	return errs
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
