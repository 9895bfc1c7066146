package pricing

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Registry is the ordered strategy set used at decision time. Order is
// part of the contract: it breaks discount ties.
type Registry struct {
	Discounts []DiscountStrategy
	Shipping  []ShippingStrategy
}

// File is the YAML form of a Registry.
type File struct {
	Discounts []Entry `yaml:"discounts"`
	Shipping  []Entry `yaml:"shipping"`
}

// Entry describes one strategy. Unused fields are ignored by the kind.
type Entry struct {
	Kind     string `yaml:"kind"`
	Name     string `yaml:"name,omitempty"`
	Percent  int64  `yaml:"percent,omitempty"`
	Amount   int64  `yaml:"amount,omitempty"`
	MinTotal int64  `yaml:"min_total,omitempty"`
	Fee      int64  `yaml:"fee,omitempty"`
	FreeFrom int64  `yaml:"free_from,omitempty"`
	FastFrom int64  `yaml:"fast_from,omitempty"`
	Days     int    `yaml:"days,omitempty"`
	FastDays int    `yaml:"fast_days,omitempty"`
}

// builtinEntry returns the built-in figures of a shipping kind. Other kinds
// start empty.
func builtinEntry(kind string) Entry {
	switch kind {
	case "economy":
		return Entry{Kind: kind, Fee: 1500, FreeFrom: 30000, Days: 5}
	case "express":
		return Entry{Kind: kind, Fee: 6000, Days: 1}
	case "standard":
		return Entry{Kind: kind, Fee: 5000, FastFrom: 30000, FastDays: 3, Days: 5}
	}
	return Entry{Kind: kind}
}

// UnmarshalYAML starts from the built-in figures of the kind, so only keys
// absent from the file keep them; an explicit 0 is kept.
func (e *Entry) UnmarshalYAML(n *yaml.Node) error {
	var head struct {
		Kind string `yaml:"kind"`
	}
	if err := n.Decode(&head); err != nil {
		return err
	}
	type plain Entry
	p := plain(builtinEntry(head.Kind))
	if err := n.Decode(&p); err != nil {
		return err
	}
	*e = Entry(p)
	return nil
}

// DefaultFile is used when no pricing file is configured.
func DefaultFile() File {
	return File{
		Discounts: []Entry{
			{Kind: "fixed", Name: "amount-coupon", Amount: 1000, MinTotal: 30000},
			{Kind: "rate", Name: "bulk-rate", Percent: 5, MinTotal: 100000},
			{Kind: "vip_rate", Name: "vip-rate", Percent: 10},
		},
		Shipping: []Entry{
			builtinEntry("economy"),
			builtinEntry("express"),
			builtinEntry("standard"),
		},
	}
}

func Default() *Registry {
	r, err := Build(DefaultFile())
	if err != nil {
		panic(err) // built-in table is static
	}
	return r
}

// LoadFile reads a YAML registry from path.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pricing file %s: %w", path, err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Registry, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse pricing YAML: %w", err)
	}
	return Build(f)
}

func Build(f File) (*Registry, error) {
	applyDefaults(&f)

	r := &Registry{}
	for i, s := range f.Discounts {
		d, err := discountFrom(s)
		if err != nil {
			return nil, fmt.Errorf("discounts[%d]: %w", i, err)
		}
		r.Discounts = append(r.Discounts, d)
	}
	for i, s := range f.Shipping {
		sh, err := shippingFrom(s)
		if err != nil {
			return nil, fmt.Errorf("shipping[%d]: %w", i, err)
		}
		r.Shipping = append(r.Shipping, sh)
	}
	if len(r.Shipping) == 0 {
		return nil, fmt.Errorf("at least one shipping strategy is required")
	}
	return r, nil
}

// applyDefaults names unnamed strategies after their kind.
func applyDefaults(f *File) {
	for i := range f.Discounts {
		if f.Discounts[i].Name == "" {
			f.Discounts[i].Name = f.Discounts[i].Kind
		}
	}
	for i := range f.Shipping {
		if f.Shipping[i].Name == "" {
			f.Shipping[i].Name = f.Shipping[i].Kind
		}
	}
}

func discountFrom(s Entry) (DiscountStrategy, error) {
	switch s.Kind {
	case "rate":
		if s.Percent <= 0 || s.Percent > 100 {
			return nil, fmt.Errorf("rate discount %q: percent must be in 1..100", s.Name)
		}
		return RateDiscount{Label: s.Name, Percent: s.Percent, MinTotal: s.MinTotal}, nil
	case "vip_rate":
		if s.Percent <= 0 || s.Percent > 100 {
			return nil, fmt.Errorf("vip discount %q: percent must be in 1..100", s.Name)
		}
		return RateDiscount{Label: s.Name, Percent: s.Percent, MinTotal: s.MinTotal, PremiumOnly: true}, nil
	case "fixed":
		if s.Amount <= 0 {
			return nil, fmt.Errorf("fixed discount %q: amount must be positive", s.Name)
		}
		return FixedDiscount{Label: s.Name, Amount: s.Amount, MinTotal: s.MinTotal}, nil
	}
	return nil, fmt.Errorf("unknown discount kind %q", s.Kind)
}

func shippingFrom(s Entry) (ShippingStrategy, error) {
	switch s.Kind {
	case "economy":
		return EconomyShipping{Fee: s.Fee, FreeFrom: s.FreeFrom, Days: s.Days, MinTotal: s.MinTotal}, nil
	case "express":
		return ExpressShipping{Fee: s.Fee, Days: s.Days, MinTotal: s.MinTotal}, nil
	case "standard":
		return StandardShipping{Fee: s.Fee, FastFrom: s.FastFrom, FastDays: s.FastDays, SlowDays: s.Days, MinTotal: s.MinTotal}, nil
	case "fixed":
		if s.Days <= 0 {
			return nil, fmt.Errorf("fixed shipping %q: days must be positive", s.Name)
		}
		return FixedShipping{Label: s.Name, Fee: s.Fee, Days: s.Days, MinTotal: s.MinTotal}, nil
	}
	return nil, fmt.Errorf("unknown shipping kind %q", s.Kind)
}
