package placement

import (
	"fmt"
	"sort"
)

// Zone is one of the three placement zones of a region.
type Zone string

// Zones, in assignment order.
const (
	ZoneA Zone = "a"
	ZoneB Zone = "b"
	ZoneC Zone = "c"
)

var zones = [...]Zone{ZoneA, ZoneB, ZoneC}

// ZoneOf returns the zone for the node at index. It panics for negative
// indices, which can only come from a programming error.
func ZoneOf(index int) Zone {
	if index < 0 {
		panic(fmt.Sprintf("placement: negative node index %d", index))
	}
	return zones[index%len(zones)]
}

// Spread counts how many of n nodes land in each zone.
func Spread(n int) map[Zone]int {
	out := make(map[Zone]int, len(zones))
	for i := 0; i < n; i++ {
		out[ZoneOf(i)]++
	}
	return out
}

// regions maps a region (Hetzner network zone) to the location serving each zone.
// Regions with a single location serve all three zones from it.
var regions = map[string][3]string{
	"eu-central":   {"fsn1", "nbg1", "hel1"},
	"us-east":      {"ash", "ash", "ash"},
	"us-west":      {"hil", "hil", "hil"},
	"ap-southeast": {"sin", "sin", "sin"},
}

// Regions returns the supported regions, sorted.
func Regions() []string {
	out := make([]string, 0, len(regions))
	for r := range regions {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

// ValidRegion reports whether region is supported.
func ValidRegion(region string) bool {
	_, ok := regions[region]
	return ok
}

// Location returns the concrete location for zone in region.
func Location(region string, zone Zone) (string, error) {
	locs, ok := regions[region]
	if !ok {
		return "", fmt.Errorf("unknown region %q: must be one of %v", region, Regions())
	}
	for i, z := range zones {
		if z == zone {
			return locs[i], nil
		}
	}
	return "", fmt.Errorf("unknown zone %q", zone)
}
