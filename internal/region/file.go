package region

import (
	"fmt"
	"image"
	"os"

	"gopkg.in/yaml.v3"
)

// Spec is the serialized form of a Region as it appears in configuration
// files. Rect holds x0, y0, x1, y1. Disabled is used instead of Enabled so
// that an omitted key means the region is active.
type Spec struct {
	Name      string `yaml:"name" json:"name" mapstructure:"name"`
	Rect      []int  `yaml:"rect" json:"rect" mapstructure:"rect"`
	Threshold bool   `yaml:"threshold,omitempty" json:"threshold" mapstructure:"threshold"`
	Disabled  bool   `yaml:"disabled,omitempty" json:"disabled" mapstructure:"disabled"`
}

// File is the top-level document of a standalone regions file.
type File struct {
	Regions []Spec `yaml:"regions"`
}

// ToRegion converts s into a Region.
func (s Spec) ToRegion() (Region, error) {
	if len(s.Rect) != 4 {
		return Region{}, fmt.Errorf("%w: region %q needs 4 rect coordinates, got %d",
			ErrInvalidCatalog, s.Name, len(s.Rect))
	}
	return Region{
		Name:      s.Name,
		Rect:      image.Rect(s.Rect[0], s.Rect[1], s.Rect[2], s.Rect[3]),
		Threshold: s.Threshold,
		Enabled:   !s.Disabled,
	}, nil
}

// SpecOf converts a Region back into its serialized form. Coordinates come
// from the canonical rectangle.
func SpecOf(r Region) Spec {
	return Spec{
		Name:      r.Name,
		Rect:      []int{r.Rect.Min.X, r.Rect.Min.Y, r.Rect.Max.X, r.Rect.Max.Y},
		Threshold: r.Threshold,
		Disabled:  !r.Enabled,
	}
}

// FromSpecs builds a catalog from serialized region specs.
func FromSpecs(specs []Spec) (*Catalog, error) {
	regions := make([]Region, 0, len(specs))
	for _, s := range specs {
		if len(s.Rect) == 4 && (s.Rect[0] >= s.Rect[2] || s.Rect[1] >= s.Rect[3]) {
			// image.Rect would silently swap the corners
			return nil, fmt.Errorf("%w: region %q has degenerate rectangle %v", ErrInvalidCatalog, s.Name, s.Rect)
		}
		r, err := s.ToRegion()
		if err != nil {
			return nil, err
		}
		regions = append(regions, r)
	}
	return NewCatalog(regions)
}

// Specs returns every region of the catalog in serialized form.
func (c *Catalog) Specs() []Spec {
	out := make([]Spec, 0, len(c.regions))
	for _, r := range c.regions {
		out = append(out, SpecOf(r))
	}
	return out
}

// LoadFile reads a YAML regions file.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path) //nolint:gosec // user-supplied config path
	if err != nil {
		return nil, fmt.Errorf("failed to read regions file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML regions document.
func Parse(data []byte) (*Catalog, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	if len(f.Regions) == 0 {
		return nil, fmt.Errorf("%w: no regions declared", ErrInvalidCatalog)
	}
	return FromSpecs(f.Regions)
}

// Marshal encodes the catalog as a YAML regions document.
func (c *Catalog) Marshal() ([]byte, error) {
	return yaml.Marshal(File{Regions: c.Specs()})
}
