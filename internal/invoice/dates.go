package invoice

import (
	"fmt"
	"strings"
	"time"
)

const (
	// ISODateLayout is the YYYY-MM-DD form used in amount-only mode.
	ISODateLayout = "2006-01-02"
	// DisplayDateLayout is the MM/DD/YYYY form used in quantity mode.
	DisplayDateLayout = "01/02/2006"
)

// ToISODate converts MM/DD/YYYY to YYYY-MM-DD. Values that are not in
// display form are returned unchanged.
func ToISODate(display string) string {
	parts := strings.Split(strings.TrimSpace(display), "/")
	if len(parts) != 3 || !allDigits(parts...) || len(parts[2]) != 4 {
		return display
	}
	month, day, year := parts[0], parts[1], parts[2]
	return fmt.Sprintf("%s-%s-%s", year, pad2(month), pad2(day))
}

// ToDisplayDate converts YYYY-MM-DD to MM/DD/YYYY. Values that are not in
// ISO form are returned unchanged.
func ToDisplayDate(iso string) string {
	parts := strings.Split(strings.TrimSpace(iso), "-")
	if len(parts) != 3 || !allDigits(parts...) || len(parts[0]) != 4 {
		return iso
	}
	year, month, day := parts[0], parts[1], parts[2]
	return fmt.Sprintf("%s/%s/%s", pad2(month), pad2(day), year)
}

func pad2(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}

func allDigits(parts ...string) bool {
	for _, p := range parts {
		if p == "" || len(p) > 4 {
			return false
		}
		for _, r := range p {
			if r < '0' || r > '9' {
				return false
			}
		}
	}
	return true
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

// SystemClock returns a TimeSource backed by time.Now.
func SystemClock() TimeSource {
	return systemClock{}
}
