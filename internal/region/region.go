// Package region holds the catalog of named pixel rectangles that locate each
// telemetry readout on a frame of the overlay video.
package region

import (
	"errors"
	"fmt"
	"image"
	"slices"
)

// Field names understood by the validator.
const (
	FieldTime          = "time"
	FieldAltitude      = "altitude"
	FieldSpeed         = "speed"
	FieldHeartRate     = "heart_rate"
	FieldRespiration   = "respiration"
	FieldVerticalG     = "vertical_g"
	FieldLateralG      = "lateral_g"
	FieldLongitudinalG = "longitudinal_g"
)

// RequiredFields must be present and enabled in every catalog.
var RequiredFields = []string{FieldTime, FieldAltitude, FieldSpeed, FieldHeartRate, FieldRespiration}

// ErrInvalidCatalog is wrapped by every catalog configuration error.
var ErrInvalidCatalog = errors.New("invalid region catalog")

// Region is a named rectangle of a frame holding one readout.
type Region struct {
	Name string
	Rect image.Rectangle
	// Threshold requests binarization after grayscale conversion. Used for
	// readouts drawn over a semi-transparent moving background.
	Threshold bool
	Enabled   bool
}

// Catalog is an immutable, ordered set of regions.
type Catalog struct {
	regions []Region
}

// NewCatalog validates regions and returns a catalog preserving their order.
func NewCatalog(regions []Region) (*Catalog, error) {
	seen := make(map[string]bool, len(regions))
	for i, r := range regions {
		if r.Name == "" {
			return nil, fmt.Errorf("%w: region %d has no name", ErrInvalidCatalog, i)
		}
		if seen[r.Name] {
			return nil, fmt.Errorf("%w: duplicate region name %q", ErrInvalidCatalog, r.Name)
		}
		seen[r.Name] = true

		if r.Rect.Min.X >= r.Rect.Max.X || r.Rect.Min.Y >= r.Rect.Max.Y {
			return nil, fmt.Errorf("%w: region %q has degenerate rectangle (%d,%d,%d,%d)",
				ErrInvalidCatalog, r.Name, r.Rect.Min.X, r.Rect.Min.Y, r.Rect.Max.X, r.Rect.Max.Y)
		}
		if r.Rect.Min.X < 0 || r.Rect.Min.Y < 0 {
			return nil, fmt.Errorf("%w: region %q has negative coordinates", ErrInvalidCatalog, r.Name)
		}
	}

	for _, name := range RequiredFields {
		idx := slices.IndexFunc(regions, func(r Region) bool { return r.Name == name })
		if idx < 0 {
			return nil, fmt.Errorf("%w: required region %q is missing", ErrInvalidCatalog, name)
		}
		if !regions[idx].Enabled {
			return nil, fmt.Errorf("%w: required region %q is disabled", ErrInvalidCatalog, name)
		}
	}

	return &Catalog{regions: slices.Clone(regions)}, nil
}

// Regions returns the enabled regions in declaration order.
func (c *Catalog) Regions() []Region {
	out := make([]Region, 0, len(c.regions))
	for _, r := range c.regions {
		if r.Enabled {
			out = append(out, r)
		}
	}
	return out
}

// All returns every declared region, including disabled ones.
func (c *Catalog) All() []Region {
	return slices.Clone(c.regions)
}

// Lookup finds a region by name.
func (c *Catalog) Lookup(name string) (Region, bool) {
	for _, r := range c.regions {
		if r.Name == name {
			return r, true
		}
	}
	return Region{}, false
}

// ValidateBounds checks that every enabled region lies inside bounds. It is
// meant to be called once with the first frame of a run.
func (c *Catalog) ValidateBounds(bounds image.Rectangle) error {
	for _, r := range c.Regions() {
		if !r.Rect.In(bounds) {
			return fmt.Errorf("%w: region %q (%d,%d,%d,%d) lies outside the %dx%d frame",
				ErrInvalidCatalog, r.Name,
				r.Rect.Min.X, r.Rect.Min.Y, r.Rect.Max.X, r.Rect.Max.Y,
				bounds.Dx(), bounds.Dy())
		}
	}
	return nil
}

// DefaultRegions returns the layout of the 1920x1080 overlay the tool was
// built for. The acceleration channels are declared but disabled.
func DefaultRegions() []Region {
	return []Region{
		{Name: FieldTime, Rect: image.Rect(589, 656, 751, 701), Threshold: true, Enabled: true},
		{Name: FieldAltitude, Rect: image.Rect(1359, 226, 1464, 254), Enabled: true},
		{Name: FieldSpeed, Rect: image.Rect(1665, 226, 1764, 256), Enabled: true},
		{Name: FieldHeartRate, Rect: image.Rect(1368, 526, 1460, 555), Enabled: true},
		{Name: FieldRespiration, Rect: image.Rect(1356, 565, 1463, 594), Enabled: true},
		{Name: FieldVerticalG, Rect: image.Rect(595, 731, 642, 751), Threshold: true},
		{Name: FieldLateralG, Rect: image.Rect(595, 751, 635, 772), Threshold: true},
		{Name: FieldLongitudinalG, Rect: image.Rect(596, 771, 639, 792), Threshold: true},
	}
}

// DefaultCatalog returns the catalog built from DefaultRegions.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(DefaultRegions())
	if err != nil {
		panic(err)
	}
	return c
}
