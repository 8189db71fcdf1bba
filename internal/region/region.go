// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package region

import (
	"fmt"
	"sort"
	"strings"

	"github.com/apex/log"

	"github.com/staranto/carbonctlgo/internal/config"
)

// Region binds an AWS region to the Electricity Maps zone that covers its
// grid and a human-readable name for output.
type Region struct {
	ID   string `json:"region"`
	Zone string `json:"zone"`
	Name string `json:"name"`
}

func (r Region) String() string {
	return fmt.Sprintf("%s (%s)", r.ID, r.Name)
}

// Default returns the built-in candidate set.
func Default() []Region {
	return []Region{
		{ID: "eu-west-1", Zone: "IE", Name: "Ireland"},
		{ID: "eu-west-2", Zone: "GB", Name: "London"},
		{ID: "eu-central-1", Zone: "DE", Name: "Frankfurt"},
	}
}

// FromConfig returns the candidate set, honoring a "regions" override in
// carbonctl.yaml of the form:
//
//	regions:
//	  eu-west-1: { zone: IE, name: Ireland }
//
// Overrides replace the whole set. Entries missing a zone are rejected so a
// typo can't silently drop a region from the carbon query loop.
func FromConfig(cfg config.Type) ([]Region, error) {
	raw, ok := cfg.Data["regions"]
	if !ok {
		return Default(), nil
	}

	entries, ok := raw.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("regions: expected a mapping of region id to zone/name")
	}

	var regions []Region
	for id, v := range entries {
		attrs, ok := v.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("regions.%s: expected zone/name mapping", id)
		}
		r := Region{ID: id}
		if z, ok := attrs["zone"].(string); ok {
			r.Zone = strings.ToUpper(z)
		}
		if n, ok := attrs["name"].(string); ok {
			r.Name = n
		}
		if r.Zone == "" {
			return nil, fmt.Errorf("regions.%s: missing zone", id)
		}
		if r.Name == "" {
			r.Name = id
		}
		regions = append(regions, r)
	}

	if len(regions) == 0 {
		return nil, fmt.Errorf("regions: override is empty")
	}

	// YAML mappings don't carry order, so impose one. Keeps output row order
	// and intensity tie-breaks stable across runs.
	sort.Slice(regions, func(i, j int) bool { return regions[i].ID < regions[j].ID })

	log.Debugf("regions from config: %v", regions)
	return regions, nil
}

// Lookup finds a region by ID in the given set.
func Lookup(regions []Region, id string) (Region, bool) {
	for _, r := range regions {
		if r.ID == id {
			return r, true
		}
	}
	return Region{}, false
}

// Validate returns an error unless id is a member of the set.
func Validate(regions []Region, id string) error {
	if _, ok := Lookup(regions, id); !ok {
		return fmt.Errorf("invalid region %q: must be one of %s", id, strings.Join(IDs(regions), ", "))
	}
	return nil
}

// IDs returns the region identifiers of the set, in order.
func IDs(regions []Region) []string {
	out := make([]string, 0, len(regions))
	for _, r := range regions {
		out = append(out, r.ID)
	}
	return out
}

// Zones returns the Electricity Maps zone codes of the set, in order.
func Zones(regions []Region) []string {
	out := make([]string, 0, len(regions))
	for _, r := range regions {
		out = append(out, r.Zone)
	}
	return out
}
