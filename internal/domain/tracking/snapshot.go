package tracking

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DriverStatus classifies a driver's movement at observation time.
type DriverStatus string

const (
	StatusDriving DriverStatus = "driving"
	StatusStopped DriverStatus = "stopped"
	StatusUnknown DriverStatus = "unknown"
)

const (
	valueUnavailable    = "N/A"
	noDriverName        = "No driver name available"
	locationUnavailable = "Location not available (driver may be offline)"
)

// Telemetry pages render labels and values on separate lines, but some
// layouts collapse them onto one. Each field gets an ordered pattern
// list and the first match wins.
var (
	speedPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Speed\s*\n\s*\n\s*([\d\.]+)\s*mph`),
		regexp.MustCompile(`(?i)Speed\s*\n\s*\n\s*(N/A)`),
		regexp.MustCompile(`(?i)([\d\.]+)\s*mph`),
	}
	namePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Name\s*\n\s*\n\s*([A-Za-z\s]+?)\s*\n\s*\n\s*Truck Number`),
		regexp.MustCompile(`(?i)Name\s+([A-Za-z\s]+?)\s+Truck Number`),
		regexp.MustCompile(`(?i)Name\s*\n\s*\n\s*([^\n]+?)\s*\n\s*\n\s*Truck Number`),
	}
	locationPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Current Location\s*\n\s*\n\s*([^\n]+)`),
		regexp.MustCompile(`(?i)Current Location\s+([^\n]+)`),
		regexp.MustCompile(`(?i)Current Location\s*\n\s*\n\s*([^\n\r]+)`),
	}
	truckPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Truck Number\s*\n\s*\n\s*([^\n]+)`),
		regexp.MustCompile(`(?i)Truck Number\s+([^\n]+)`),
		regexp.MustCompile(`(?i)Truck Number\s*\n\s*\n\s*([\w\-]+)`),
	}
)

// Snapshot is one observation parsed from a driver's telemetry page.
// Fields the page did not expose carry "N/A".
type Snapshot struct {
	DriverName  string
	TruckNumber string
	SpeedText   string
	Location    string
	SourceURL   string
	ObservedAt  time.Time
}

// ParseTelemetry extracts a Snapshot from the rendered text of a
// telemetry page.
func ParseTelemetry(pageText, sourceURL string, observedAt time.Time) Snapshot {
	snap := Snapshot{
		DriverName:  valueUnavailable,
		TruckNumber: valueUnavailable,
		SpeedText:   valueUnavailable,
		Location:    valueUnavailable,
		SourceURL:   sourceURL,
		ObservedAt:  observedAt,
	}

	for _, re := range speedPatterns {
		m := re.FindStringSubmatch(pageText)
		if m == nil {
			continue
		}
		if !strings.EqualFold(m[1], valueUnavailable) {
			if v, err := strconv.ParseFloat(m[1], 64); err == nil {
				snap.SpeedText = fmt.Sprintf("%.1f mph", v)
			}
		}
		break
	}

	for _, re := range namePatterns {
		m := re.FindStringSubmatch(pageText)
		if m == nil {
			continue
		}
		if name := strings.TrimSpace(m[1]); name != "" {
			snap.DriverName = name
		} else {
			snap.DriverName = noDriverName
		}
		break
	}

	for _, re := range locationPatterns {
		m := re.FindStringSubmatch(pageText)
		if m == nil {
			continue
		}
		location := strings.TrimSpace(m[1])
		lower := strings.ToLower(location)
		if strings.Contains(location, "Open in Google Maps") ||
			lower == "n/a" || lower == "not available" || lower == "offline" {
			snap.Location = locationUnavailable
		} else {
			snap.Location = location
		}
		break
	}

	for _, re := range truckPatterns {
		m := re.FindStringSubmatch(pageText)
		if m == nil {
			continue
		}
		if truck := strings.TrimSpace(m[1]); truck != "" {
			snap.TruckNumber = truck
		}
		break
	}

	return snap
}

// SpeedMPH parses the numeric speed. ok is false when the speed field
// was unreadable.
func (s Snapshot) SpeedMPH() (float64, bool) {
	text := strings.ReplaceAll(s.SpeedText, " mph", "")
	text = strings.ReplaceAll(text, ",", "")
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Status derives the movement state from the reported speed. Any
// positive speed counts as driving; a speed that cannot be parsed
// yields StatusUnknown.
func (s Snapshot) Status() DriverStatus {
	speed, ok := s.SpeedMPH()
	if !ok {
		return StatusUnknown
	}
	if speed > 0 {
		return StatusDriving
	}
	return StatusStopped
}

// Offline reports whether the page carried no usable location, which
// usually means the tracker has lost signal.
func (s Snapshot) Offline() bool {
	return s.Location == valueUnavailable ||
		strings.Contains(s.Location, "Location not available") ||
		strings.Contains(s.Location, "Error")
}
