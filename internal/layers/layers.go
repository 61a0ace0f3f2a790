// Package layers loads the catalogue of spatial layers available for
// parcel intersection from a YAML file.
package layers

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Style controls how a layer's features are drawn and exported
type Style struct {
	Color       string  `yaml:"color" json:"color,omitempty"`
	PolyOpacity float64 `yaml:"poly_opacity" json:"poly_opacity,omitempty"`
	LineWidth   int     `yaml:"line_width" json:"line_width,omitempty"`
}

// Fields selects which attributes are requested from the service
type Fields struct {
	Include []string `yaml:"include" json:"include,omitempty"`
}

// Layer is one queryable ArcGIS feature layer
type Layer struct {
	ID           string `yaml:"id" json:"id"`
	Label        string `yaml:"label" json:"label"`
	URL          string `yaml:"url" json:"url"`
	Fields       Fields `yaml:"fields" json:"fields"`
	NameTemplate string `yaml:"name_template" json:"name_template,omitempty"`
	Style        Style  `yaml:"style" json:"style"`
}

// OutFields returns the comma-joined attribute list for a query, or "*"
// when the layer does not restrict fields.
func (l Layer) OutFields() string {
	if len(l.Fields.Include) == 0 {
		return "*"
	}
	out := l.Fields.Include[0]
	for _, f := range l.Fields.Include[1:] {
		out += "," + f
	}
	return out
}

// DisplayName returns the name given to features of this layer
func (l Layer) DisplayName() string {
	if l.NameTemplate != "" {
		return l.NameTemplate
	}
	if l.Label != "" {
		return l.Label
	}
	return "Feature"
}

// catalogueFile is the on-disk YAML shape
type catalogueFile struct {
	Services []Layer `yaml:"services"`
}

// Catalogue holds the configured layers in file order
type Catalogue struct {
	layers []Layer
	byID   map[string]Layer
}

// Load reads and validates a layer catalogue from a YAML file
func Load(path string) (*Catalogue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading layer catalogue: %w", err)
	}

	var file catalogueFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing layer catalogue: %w", err)
	}

	cat := &Catalogue{
		layers: file.Services,
		byID:   make(map[string]Layer, len(file.Services)),
	}
	for i, l := range file.Services {
		if l.ID == "" {
			return nil, fmt.Errorf("layer %d has no id", i)
		}
		if l.URL == "" {
			return nil, fmt.Errorf("layer %q has no url", l.ID)
		}
		if _, dup := cat.byID[l.ID]; dup {
			return nil, fmt.Errorf("duplicate layer id %q", l.ID)
		}
		cat.byID[l.ID] = l
	}

	return cat, nil
}

// Get looks up a layer by id
func (c *Catalogue) Get(id string) (Layer, bool) {
	l, ok := c.byID[id]
	return l, ok
}

// All returns the layers in file order
func (c *Catalogue) All() []Layer {
	return c.layers
}
