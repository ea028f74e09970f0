package tracking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeAddress_StripsPageArtifacts(t *testing.T) {
	assert.Equal(t, "123 Main St, Albany, NY",
		SanitizeAddress("  123 Main St, Albany, NY !!!"))
	assert.Equal(t, "123 Main St",
		SanitizeAddress("123 Main St Open in Google Maps"))
	assert.Equal(t, "",
		SanitizeAddress("Location not available"))
	assert.Equal(t, "456 Oak Ave, Trenton, NJ",
		SanitizeAddress("456  Oak   Ave,\nTrenton,  NJ"))
	assert.Equal(t, "", SanitizeAddress("   "))
}

func TestSanitizeAddress_KeepsInteriorPunctuation(t *testing.T) {
	// Only the trailing junk run is removed, not characters mid-address.
	assert.Equal(t, "I-95 Exit 4, Newark, NJ",
		SanitizeAddress("I-95 Exit 4, Newark, NJ***"))
}

func TestAddressVariants_BusinessPrefixStripped(t *testing.T) {
	variants := AddressVariants("HANNAFORD BROTHERS 123 Main St, Albany, NY")

	require.NotEmpty(t, variants)
	assert.Equal(t, "HANNAFORD BROTHERS 123 Main St, Albany, NY", variants[0])
	assert.Contains(t, variants, "123 Main St, Albany, NY")
	assert.Contains(t, variants, "Main St, Albany, NY")
	assert.Contains(t, variants, "Albany, NY")
}

func TestAddressVariants_USRouteSpellings(t *testing.T) {
	variants := AddressVariants("US-9 Plaza, Fishkill, NY")

	assert.Contains(t, variants, "Route 9 Plaza, Fishkill, NY")
	assert.Contains(t, variants, "US Route 9 Plaza, Fishkill, NY")
	assert.Contains(t, variants, "Highway 9 Plaza, Fishkill, NY")
}

func TestAddressVariants_RteSpellings(t *testing.T) {
	variants := AddressVariants("RTE 22 Depot, Armenia, NY")

	assert.Contains(t, variants, "Route 22 Depot, Armenia, NY")
	assert.Contains(t, variants, "Highway 22 Depot, Armenia, NY")
}

func TestAddressVariants_DeduplicatesPreservingOrder(t *testing.T) {
	variants := AddressVariants("Albany, NY")

	require.Equal(t, []string{"Albany, NY"}, variants)
}

func TestAddressVariants_NormalizesWhitespace(t *testing.T) {
	variants := AddressVariants("  123   Main St,  Albany,   NY ")

	require.NotEmpty(t, variants)
	assert.Equal(t, "123 Main St, Albany, NY", variants[0])
}

func TestParseStreetAddress(t *testing.T) {
	addr, ok := ParseStreetAddress("123 Main St, Albany, NY")

	require.True(t, ok)
	assert.Equal(t, "123", addr.HouseNumber)
	assert.Equal(t, "Main St", addr.Street)
	assert.Equal(t, "Albany", addr.City)
	assert.Equal(t, "NY", addr.State)

	_, ok = ParseStreetAddress("somewhere on a road")
	assert.False(t, ok)
}

func TestParseCityState(t *testing.T) {
	city, state, ok := ParseCityState("Fishkill, NY")
	require.True(t, ok)
	assert.Equal(t, "Fishkill", city)
	assert.Equal(t, "NY", state)

	_, _, ok = ParseCityState("no state here")
	assert.False(t, ok)
}
