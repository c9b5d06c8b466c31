package game

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"sort"

	"github.com/mcoot/geoduel/internal/dependencies/random"
	"github.com/mcoot/geoduel/internal/model"
)

// LocationProvider generates the target locations for a new session
type LocationProvider interface {
	// Generate returns up to n locations from the named pool.
	// Pools smaller than n yield every location they hold.
	Generate(pool string, n int) ([]model.Location, error)
	Pools() []string
}

// StaticProvider serves locations from fixed in-memory pools.
// The "all" pool samples with replacement; named pools sample without.
type StaticProvider struct {
	random random.Random
	all    []model.Location
	pools  map[string][]model.Location
}

// NewStaticProvider builds a provider over locs, with one named pool per
// country code in addition to "all"
func NewStaticProvider(random random.Random, locs []model.Location) *StaticProvider {
	pools := make(map[string][]model.Location)
	for _, loc := range locs {
		if loc.Country != "" {
			pools[loc.Country] = append(pools[loc.Country], loc)
		}
	}
	return &StaticProvider{
		random: random,
		all:    slices.Clone(locs),
		pools:  pools,
	}
}

// NewWorldProvider serves the built-in world landmark pool plus any extra
// locations, e.g. ones loaded with LoadLocations
func NewWorldProvider(random random.Random, extra ...model.Location) *StaticProvider {
	return NewStaticProvider(random, append(slices.Clone(worldLocations), extra...))
}

// LoadLocations reads a JSON array of locations. Entries with an
// out-of-range coordinate are rejected.
func LoadLocations(path string) ([]model.Location, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading locations: %w", err)
	}

	var locs []model.Location
	if err := json.Unmarshal(data, &locs); err != nil {
		return nil, fmt.Errorf("decoding locations: %w", err)
	}
	for i, loc := range locs {
		if !(model.LatLong{loc.Lat, loc.Long}).Valid() {
			return nil, fmt.Errorf("location %d: coordinate out of range", i)
		}
	}
	return locs, nil
}

var _ LocationProvider = (*StaticProvider)(nil)

func (p *StaticProvider) Generate(pool string, n int) ([]model.Location, error) {
	if pool == "" || pool == model.DefaultLocationPool {
		if len(p.all) == 0 {
			return nil, model.ErrUnknownLocationPool
		}
		locs := make([]model.Location, n)
		for i := range locs {
			locs[i] = p.all[p.random.Intn(len(p.all))]
		}
		return locs, nil
	}

	named, ok := p.pools[pool]
	if !ok {
		return nil, model.ErrUnknownLocationPool
	}

	// Partial Fisher-Yates over a copy
	locs := slices.Clone(named)
	n = min(n, len(locs))
	for i := 0; i < n; i++ {
		j := i + p.random.Intn(len(locs)-i)
		locs[i], locs[j] = locs[j], locs[i]
	}
	return locs[:n], nil
}

// Pools lists the available pool names, "all" first
func (p *StaticProvider) Pools() []string {
	names := make([]string, 0, len(p.pools))
	for name := range p.pools {
		names = append(names, name)
	}
	sort.Strings(names)
	return append([]string{model.DefaultLocationPool}, names...)
}

// worldLocations is a spread of well-known places on every inhabited continent
var worldLocations = []model.Location{
	{Lat: 48.8584, Long: 2.2945, Country: "FR"},
	{Lat: 43.2965, Long: 5.3698, Country: "FR"},
	{Lat: 45.7640, Long: 4.8357, Country: "FR"},
	{Lat: 51.5007, Long: -0.1246, Country: "GB"},
	{Lat: 55.9486, Long: -3.1999, Country: "GB"},
	{Lat: 53.4808, Long: -2.2426, Country: "GB"},
	{Lat: 52.5163, Long: 13.3777, Country: "DE"},
	{Lat: 48.1374, Long: 11.5755, Country: "DE"},
	{Lat: 53.5511, Long: 9.9937, Country: "DE"},
	{Lat: 41.8902, Long: 12.4922, Country: "IT"},
	{Lat: 45.4642, Long: 9.1900, Country: "IT"},
	{Lat: 40.8518, Long: 14.2681, Country: "IT"},
	{Lat: 40.4168, Long: -3.7038, Country: "ES"},
	{Lat: 41.4036, Long: 2.1744, Country: "ES"},
	{Lat: 37.3891, Long: -5.9845, Country: "ES"},
	{Lat: 38.7223, Long: -9.1393, Country: "PT"},
	{Lat: 52.3676, Long: 4.9041, Country: "NL"},
	{Lat: 59.3293, Long: 18.0686, Country: "SE"},
	{Lat: 60.1699, Long: 24.9384, Country: "FI"},
	{Lat: 64.1466, Long: -21.9426, Country: "IS"},
	{Lat: 50.0755, Long: 14.4378, Country: "CZ"},
	{Lat: 52.2297, Long: 21.0122, Country: "PL"},
	{Lat: 37.9715, Long: 23.7257, Country: "GR"},
	{Lat: 41.0082, Long: 28.9784, Country: "TR"},
	{Lat: 40.7580, Long: -73.9855, Country: "US"},
	{Lat: 37.8199, Long: -122.4783, Country: "US"},
	{Lat: 41.8781, Long: -87.6298, Country: "US"},
	{Lat: 36.1069, Long: -112.1129, Country: "US"},
	{Lat: 25.7617, Long: -80.1918, Country: "US"},
	{Lat: 47.6062, Long: -122.3321, Country: "US"},
	{Lat: 43.6426, Long: -79.3871, Country: "CA"},
	{Lat: 49.2827, Long: -123.1207, Country: "CA"},
	{Lat: 45.5017, Long: -73.5673, Country: "CA"},
	{Lat: 19.4326, Long: -99.1332, Country: "MX"},
	{Lat: 20.6843, Long: -88.5678, Country: "MX"},
	{Lat: -22.9519, Long: -43.2105, Country: "BR"},
	{Lat: -23.5505, Long: -46.6333, Country: "BR"},
	{Lat: -34.6037, Long: -58.3816, Country: "AR"},
	{Lat: -13.1631, Long: -72.5450, Country: "PE"},
	{Lat: -33.4489, Long: -70.6693, Country: "CL"},
	{Lat: 4.7110, Long: -74.0721, Country: "CO"},
	{Lat: 29.9792, Long: 31.1342, Country: "EG"},
	{Lat: -33.9249, Long: 18.4241, Country: "ZA"},
	{Lat: -26.2041, Long: 28.0473, Country: "ZA"},
	{Lat: -1.2921, Long: 36.8219, Country: "KE"},
	{Lat: 6.5244, Long: 3.3792, Country: "NG"},
	{Lat: 31.6295, Long: -7.9811, Country: "MA"},
	{Lat: 25.1972, Long: 55.2744, Country: "AE"},
	{Lat: 21.4225, Long: 39.8262, Country: "SA"},
	{Lat: 27.1751, Long: 78.0421, Country: "IN"},
	{Lat: 19.0760, Long: 72.8777, Country: "IN"},
	{Lat: 28.6139, Long: 77.2090, Country: "IN"},
	{Lat: 39.9163, Long: 116.3972, Country: "CN"},
	{Lat: 31.2304, Long: 121.4737, Country: "CN"},
	{Lat: 22.3193, Long: 114.1694, Country: "CN"},
	{Lat: 35.6586, Long: 139.7454, Country: "JP"},
	{Lat: 34.9671, Long: 135.7727, Country: "JP"},
	{Lat: 43.0618, Long: 141.3545, Country: "JP"},
	{Lat: 37.5665, Long: 126.9780, Country: "KR"},
	{Lat: 13.7563, Long: 100.5018, Country: "TH"},
	{Lat: 1.2834, Long: 103.8607, Country: "SG"},
	{Lat: 21.0285, Long: 105.8542, Country: "VN"},
	{Lat: -8.3405, Long: 115.0920, Country: "ID"},
	{Lat: 14.5995, Long: 120.9842, Country: "PH"},
	{Lat: -33.8568, Long: 151.2153, Country: "AU"},
	{Lat: -37.8136, Long: 144.9631, Country: "AU"},
	{Lat: -25.3444, Long: 131.0369, Country: "AU"},
	{Lat: -36.8485, Long: 174.7633, Country: "NZ"},
	{Lat: -45.0312, Long: 168.6626, Country: "NZ"},
	{Lat: 55.7539, Long: 37.6208, Country: "RU"},
	{Lat: 59.9343, Long: 30.3351, Country: "RU"},
}
