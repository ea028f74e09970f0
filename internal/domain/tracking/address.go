package tracking

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	trailingJunk    = regexp.MustCompile(`[^a-zA-Z0-9,\s]+$`)
	whitespaceRun   = regexp.MustCompile(`\s+`)
	mapsLinkPhrase  = regexp.MustCompile(`(?i)\bOpen in Google Maps\b`)
	unavailablePart = regexp.MustCompile(`(?i)\bLocation not available\b`)

	// Prefix strippers capture everything from the first digit onward.
	businessPrefix = regexp.MustCompile(`^[A-Z\s]+\s(\d.*)$`)
	capsPrefix     = regexp.MustCompile(`^[A-Z\s]+(\d.*)$`)
	usRouteToken   = regexp.MustCompile(`(?i)US-?(\d+)`)
	rteToken       = regexp.MustCompile(`(?i)RTE\s*(\d+)`)
	streetLine     = regexp.MustCompile(`(\d+)\s+([^,]+),\s*([^,]+),\s*([A-Z]{2})`)
	cityStateLine  = regexp.MustCompile(`([^,]+),\s*([A-Z]{2})`)
)

// SanitizeAddress cleans text scraped off a telemetry page so it can be
// sent to a geocoder: trailing junk characters go, whitespace collapses,
// and page artifacts like the maps link label are removed.
func SanitizeAddress(address string) string {
	address = strings.TrimSpace(address)
	if address == "" {
		return ""
	}
	address = trailingJunk.ReplaceAllString(address, "")
	address = whitespaceRun.ReplaceAllString(address, " ")
	address = mapsLinkPhrase.ReplaceAllString(address, "")
	address = unavailablePart.ReplaceAllString(address, "")
	return strings.TrimSpace(address)
}

// AddressVariants expands an address into the list of rewrites worth
// trying against a geocoder, ordered most specific first. Business name
// prefixes are stripped, US route spellings are normalized, and
// progressively coarser street/city forms are appended. The list is
// deduplicated preserving order and always starts with the
// whitespace-normalized original.
func AddressVariants(address string) []string {
	normalized := strings.Join(strings.Fields(address), " ")
	variants := []string{normalized}

	// Leading business name in caps, e.g. "HANNAFORD BROTHERS 123 Main St".
	if m := businessPrefix.FindStringSubmatch(normalized); m != nil {
		variants = append(variants, strings.TrimSpace(m[1]))
	}

	if m := usRouteToken.FindStringSubmatch(normalized); m != nil {
		variants = append(variants,
			strings.ReplaceAll(normalized, m[0], "Route "+m[1]),
			strings.ReplaceAll(normalized, m[0], "US Route "+m[1]),
			strings.ReplaceAll(normalized, m[0], "Highway "+m[1]),
		)
	}

	if strings.Contains(strings.ToUpper(normalized), "RTE") {
		variants = append(variants,
			rteToken.ReplaceAllString(normalized, "Route $1"),
			rteToken.ReplaceAllString(normalized, "Highway $1"),
		)
	}

	if m := capsPrefix.FindStringSubmatch(normalized); m != nil {
		if simple := strings.TrimSpace(m[1]); simple != "" && simple != normalized {
			variants = append(variants, simple)
		}
	}

	if m := streetLine.FindStringSubmatch(normalized); m != nil {
		number, street, city, state := m[1], m[2], m[3], m[4]
		variants = append(variants,
			fmt.Sprintf("%s %s, %s, %s", number, street, city, state),
			fmt.Sprintf("%s, %s, %s", street, city, state),
			fmt.Sprintf("%s, %s", city, state),
		)
	}

	seen := make(map[string]struct{}, len(variants))
	unique := make([]string, 0, len(variants))
	for _, v := range variants {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		unique = append(unique, v)
	}
	return unique
}

// StreetAddress is the structured decomposition of a US street address.
type StreetAddress struct {
	HouseNumber string
	Street      string
	City        string
	State       string
}

// ParseStreetAddress extracts house number, street, city, and two-letter
// state from an address, when present.
func ParseStreetAddress(address string) (StreetAddress, bool) {
	m := streetLine.FindStringSubmatch(address)
	if m == nil {
		return StreetAddress{}, false
	}
	return StreetAddress{HouseNumber: m[1], Street: m[2], City: m[3], State: m[4]}, true
}

// ParseCityState extracts the first "city, ST" pair from an address.
func ParseCityState(address string) (city, state string, ok bool) {
	m := cityStateLine.FindStringSubmatch(address)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}
