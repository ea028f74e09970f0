package tracking

import (
	"regexp"
	"strings"
)

// Geocoders return long comma-separated display names. The patterns
// below peel those down to "part, ST, zip", preferring a county segment
// when one is present, then the city.
var shortenPrimary = []*regexp.Regexp{
	regexp.MustCompile(`(?i).*,\s*([^,]*County[^,]*),\s*([A-Z]{2}|[A-Za-z]+),\s*(\d{5}(?:-\d{4})?)(?:,\s*[^,]*)?$`),
	regexp.MustCompile(`(?i).*,\s*([^,]*County[^,]*),\s*([A-Z]{2}|[A-Za-z]+)\s+(\d{5}(?:-\d{4})?)(?:,\s*[^,]*)?$`),
	regexp.MustCompile(`(?i).*,\s*[^,]+,\s*([^,]+),\s*([A-Z]{2}|[A-Za-z]+),\s*(\d{5}(?:-\d{4})?)(?:,\s*[^,]*)?$`),
	regexp.MustCompile(`(?i).*,\s*([^,]+),\s*([A-Z]{2}|[A-Za-z]+),\s*(\d{5}(?:-\d{4})?)(?:,\s*[^,]*)?$`),
	regexp.MustCompile(`(?i)([^,]+),\s*([A-Z]{2}|[A-Za-z]+)\s+(\d{5}(?:-\d{4})?)(?:,\s*[^,]*)?$`),
}

var shortenFallback = []*regexp.Regexp{
	regexp.MustCompile(`(?i).*,\s*([^,]+),\s*([A-Z]{2}|[A-Za-z]+)(?:,\s*[^,]*)?$`),
	regexp.MustCompile(`(?i).*,\s*([^,]+),\s*([A-Z]{2}|[A-Za-z]+)\s+\d{5}(?:-\d{4})?(?:,\s*[^,]*)?$`),
}

var stateAbbreviations = map[string]string{
	"alabama": "AL", "alaska": "AK", "arizona": "AZ", "arkansas": "AR", "california": "CA",
	"colorado": "CO", "connecticut": "CT", "delaware": "DE", "florida": "FL", "georgia": "GA",
	"hawaii": "HI", "idaho": "ID", "illinois": "IL", "indiana": "IN", "iowa": "IA",
	"kansas": "KS", "kentucky": "KY", "louisiana": "LA", "maine": "ME", "maryland": "MD",
	"massachusetts": "MA", "michigan": "MI", "minnesota": "MN", "mississippi": "MS",
	"missouri": "MO", "montana": "MT", "nebraska": "NE", "nevada": "NV", "new hampshire": "NH",
	"new jersey": "NJ", "new mexico": "NM", "new york": "NY", "north carolina": "NC",
	"north dakota": "ND", "ohio": "OH", "oklahoma": "OK", "oregon": "OR", "pennsylvania": "PA",
	"rhode island": "RI", "south carolina": "SC", "south dakota": "SD", "tennessee": "TN",
	"texas": "TX", "utah": "UT", "vermont": "VT", "virginia": "VA", "washington": "WA",
	"west virginia": "WV", "wisconsin": "WI", "wyoming": "WY",
}

// ShortenLocation reduces a full geocoder display name to a compact
// "county/city, ST, zip" form fit for a status message. Unmatchable
// input is truncated to 50 characters.
func ShortenLocation(location string) string {
	if location == "" || location == "N/A" {
		return location
	}

	for _, re := range shortenPrimary {
		m := re.FindStringSubmatch(location)
		if m == nil {
			continue
		}
		part := strings.TrimSpace(whitespaceRun.ReplaceAllString(strings.TrimSpace(m[1]), " "))
		if part == "" {
			continue
		}
		state := abbreviateState(strings.TrimSpace(m[2]))
		return part + ", " + state + ", " + strings.TrimSpace(m[3])
	}

	for _, re := range shortenFallback {
		m := re.FindStringSubmatch(location)
		if m == nil {
			continue
		}
		city := strings.TrimSpace(whitespaceRun.ReplaceAllString(strings.TrimSpace(m[1]), " "))
		if city == "" {
			continue
		}
		return city + ", " + abbreviateState(strings.TrimSpace(m[2]))
	}

	if r := []rune(location); len(r) > 50 {
		return string(r[:50]) + "..."
	}
	return location
}

func abbreviateState(state string) string {
	if len(state) == 2 {
		return strings.ToUpper(state)
	}
	if abbrev, ok := stateAbbreviations[strings.ToLower(state)]; ok {
		return abbrev
	}
	return strings.ToUpper(state)
}
