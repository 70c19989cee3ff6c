package profile

import (
	"embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed config/taxonomy.yaml
var taxonomyYAML embed.FS

// Taxonomy is the static tag/sector configuration the compiler derives
// search terms and scoring weights from. It is curated data, not computed.
type Taxonomy struct {
	Tags          []Entry       `yaml:"tags"`
	Sectors       []Entry       `yaml:"sectors"`
	GapRules      []GapRule     `yaml:"gap_rules"`
	UniversalGaps []GapRule     `yaml:"universal_gaps"`
	Location      WeightConfig  `yaml:"location"`
	Research      WeightConfig  `yaml:"research"`
	Fallback      FallbackEntry `yaml:"fallback"`
}

// Entry maps one tag or sector id to its curated phrase list.
type Entry struct {
	ID               string   `yaml:"id"`
	Label            string   `yaml:"label"`
	Weight           int      `yaml:"weight"`
	ResearchAffinity bool     `yaml:"research_affinity,omitempty"`
	Phrases          []string `yaml:"phrases"`
}

// GapRule is a penalty for exclusive-population phrasing. Tag is empty for
// universal rules.
type GapRule struct {
	Tag      string   `yaml:"tag,omitempty"`
	Category string   `yaml:"category"`
	Weight   int      `yaml:"weight"`
	Phrases  []string `yaml:"phrases"`
}

// WeightConfig is a standalone weight with no tag binding.
type WeightConfig struct {
	Category string   `yaml:"category"`
	Weight   int      `yaml:"weight"`
	Phrases  []string `yaml:"phrases"`
}

// FallbackEntry is substituted when a profile yields no terms or weights.
type FallbackEntry struct {
	Label  string       `yaml:"label"`
	Terms  []string     `yaml:"terms"`
	Weight WeightConfig `yaml:"weight"`
}

// LoadTaxonomy reads the embedded taxonomy.yaml, or the given file when a
// path is supplied, for local experimentation with an edited taxonomy.
func LoadTaxonomy(path string) (*Taxonomy, error) {
	var (
		data []byte
		err  error
	)
	if path != "" {
		data, err = os.ReadFile(path)
	} else {
		data, err = taxonomyYAML.ReadFile("config/taxonomy.yaml")
	}
	if err != nil {
		return nil, fmt.Errorf("reading taxonomy: %w", err)
	}

	var tax Taxonomy
	if err := yaml.Unmarshal(data, &tax); err != nil {
		return nil, fmt.Errorf("parsing taxonomy: %w", err)
	}

	if len(tax.Tags) == 0 && len(tax.Sectors) == 0 {
		return nil, fmt.Errorf("taxonomy has no tags or sectors")
	}

	return &tax, nil
}

func (t *Taxonomy) tagByID(id string) *Entry {
	for i := range t.Tags {
		if t.Tags[i].ID == id {
			return &t.Tags[i]
		}
	}
	return nil
}

func (t *Taxonomy) sectorByID(id string) *Entry {
	for i := range t.Sectors {
		if t.Sectors[i].ID == id {
			return &t.Sectors[i]
		}
	}
	return nil
}
