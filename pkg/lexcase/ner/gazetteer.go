package ner

import (
	"context"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Gazetteer recognizes entities by exact keyword occurrence.
type Gazetteer struct {
	keywords map[string]string // keyword → entity type
	ordered  []string          // longest first
}

// NewGazetteer creates an empty gazetteer.
func NewGazetteer() *Gazetteer {
	return &Gazetteer{keywords: make(map[string]string)}
}

// Add registers keywords under an entity type. Later registrations of the
// same keyword override earlier ones.
func (g *Gazetteer) Add(entityType string, keywords ...string) {
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		if _, ok := g.keywords[kw]; !ok {
			g.ordered = append(g.ordered, kw)
		}
		g.keywords[kw] = entityType
	}
	sort.SliceStable(g.ordered, func(i, j int) bool {
		return len(g.ordered[i]) > len(g.ordered[j])
	})
}

// Len returns the number of registered keywords.
func (g *Gazetteer) Len() int { return len(g.keywords) }

// ExtractEntities returns every non-overlapping keyword occurrence, preferring
// the longest keyword at each position, in ascending offset order.
func (g *Gazetteer) ExtractEntities(ctx context.Context, text string) ([]Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var entities []Entity
	for i := 0; i < len(text); {
		matched := ""
		for _, kw := range g.ordered {
			if strings.HasPrefix(text[i:], kw) {
				matched = kw
				break
			}
		}
		if matched == "" {
			i++
			continue
		}
		entities = append(entities, Entity{
			Type:  g.keywords[matched],
			Text:  matched,
			Start: i,
			End:   i + len(matched),
		})
		i += len(matched)
	}
	return entities, nil
}

// gazetteerFile is the YAML layout of a gazetteer.
//
//	persons: [張三, 李四]
//	locations: [臺北市]
//	organizations: [某某股份有限公司]
type gazetteerFile struct {
	Persons       []string `yaml:"persons"`
	Locations     []string `yaml:"locations"`
	Organizations []string `yaml:"organizations"`
}

// LoadGazetteer reads a gazetteer from a YAML file.
func LoadGazetteer(path string) (*Gazetteer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f gazetteerFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	g := NewGazetteer()
	g.Add(Person, f.Persons...)
	g.Add(Location, f.Locations...)
	g.Add(Organization, f.Organizations...)
	return g, nil
}
