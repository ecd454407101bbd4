package query

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/meridian-ai/meridian/pkg/embeddings"
)

// Built-in profile names. Selection is by the embedding provider's
// quality class: trained vectors carry the ranking, hash vectors only
// confirm token overlap and must not dominate.
const (
	ProfileSemantic      = "semantic"
	ProfileDeterministic = "deterministic"
)

// Profile is one set of fusion weights. Components are clamped to [0,1]
// before weighting, so weights that sum to 1 keep combined scores in
// [0,1] too.
type Profile struct {
	Name    string  `yaml:"name" json:"name"`
	Vector  float64 `yaml:"vector" json:"vector"`
	Lexical float64 `yaml:"lexical" json:"lexical"`
	Graph   float64 `yaml:"graph" json:"graph"`
}

func builtinProfiles() map[string]Profile {
	return map[string]Profile{
		ProfileSemantic:      {Name: ProfileSemantic, Vector: 0.60, Lexical: 0.25, Graph: 0.15},
		ProfileDeterministic: {Name: ProfileDeterministic, Vector: 0.15, Lexical: 0.60, Graph: 0.25},
	}
}

// ProfileSet holds the available weight profiles. Immutable after load.
type ProfileSet struct {
	profiles map[string]Profile
}

// LoadProfiles returns the built-in profiles, extended or overridden by
// the YAML file at path when one is configured. File entries win over
// built-ins with the same name.
func LoadProfiles(path string) (*ProfileSet, error) {
	set := &ProfileSet{profiles: builtinProfiles()}
	if path == "" {
		return set, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profiles file: %w", err)
	}

	var file struct {
		Profiles []Profile `yaml:"profiles"`
	}
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse profiles file: %w", err)
	}

	for _, p := range file.Profiles {
		if err := validateProfile(p); err != nil {
			return nil, fmt.Errorf("profile %q: %w", p.Name, err)
		}
		set.profiles[p.Name] = p
	}
	return set, nil
}

func validateProfile(p Profile) error {
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	if p.Vector < 0 || p.Lexical < 0 || p.Graph < 0 {
		return fmt.Errorf("weights must be non-negative")
	}
	if p.Vector+p.Lexical+p.Graph == 0 {
		return fmt.Errorf("at least one weight must be positive")
	}
	return nil
}

// Get returns a profile by name.
func (s *ProfileSet) Get(name string) (Profile, bool) {
	p, ok := s.profiles[name]
	return p, ok
}

// ForQuality returns the default profile for an embedding quality class.
// Anything that is not a trained semantic provider gets the
// lexical-dominant profile.
func (s *ProfileSet) ForQuality(q embeddings.QualityClass) Profile {
	if q == embeddings.QualitySemantic {
		return s.profiles[ProfileSemantic]
	}
	return s.profiles[ProfileDeterministic]
}

// Names lists the available profile names, sorted.
func (s *ProfileSet) Names() []string {
	out := make([]string, 0, len(s.profiles))
	for name := range s.profiles {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
