package aggregation

import "fmt"

// VirtualGroup declares a group resolved from another group's membership
// rather than from its own label. With Complement set it selects every
// record whose label is not Base.
type VirtualGroup struct {
	Base       string `koanf:"base" json:"base"`
	Complement bool   `koanf:"complement" json:"complement"`
}

// Definitions maps a virtual group name to its declaration.
type Definitions map[string]VirtualGroup

// DefaultDefinitions declares the groups the panel has always offered.
func DefaultDefinitions() Definitions {
	return Definitions{
		"Non-Africa": {Base: "Africa", Complement: true},
	}
}

// Validate checks a single declaration.
func (d Definitions) Validate(name string) error {
	vg, ok := d[name]
	if !ok {
		return nil
	}
	switch {
	case vg.Base == "":
		return fmt.Errorf("%w: %q has no base group", ErrInvalidVirtualGroup, name)
	case vg.Base == name:
		return fmt.Errorf("%w: %q refers to itself", ErrInvalidVirtualGroup, name)
	}
	if _, nested := d[vg.Base]; nested {
		return fmt.Errorf("%w: %q is based on virtual group %q", ErrInvalidVirtualGroup, name, vg.Base)
	}
	return nil
}

// ValidateAll checks every declaration.
func (d Definitions) ValidateAll() error {
	for name := range d {
		if err := d.Validate(name); err != nil {
			return err
		}
	}
	return nil
}

// membership is the predicate over group labels that a requested name
// resolves to.
type membership func(label string) bool

func (d Definitions) resolve(name string) (membership, error) {
	vg, ok := d[name]
	if !ok {
		return func(label string) bool { return label == name }, nil
	}
	if err := d.Validate(name); err != nil {
		return nil, err
	}
	base := vg.Base
	if vg.Complement {
		return func(label string) bool { return label != base }, nil
	}
	return func(label string) bool { return label == base }, nil
}
