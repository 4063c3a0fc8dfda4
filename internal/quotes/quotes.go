package quotes

import (
	"fmt"
	"strings"
)

// Band is an estimated price range for a service category. Amounts are
// in minor units (cents) like every other money field in the platform.
type Band struct {
	Label     string `json:"label"`
	LowMinor  int64  `json:"low_minor"`
	HighMinor int64  `json:"high_minor"`
}

// classification walks this list in order and takes the first keyword
// found in the service description. Order matters: "emergency repair"
// must price as emergency, not repair.
var bands = []struct {
	keyword string
	band    Band
}{
	{"emergency", Band{Label: "emergency", LowMinor: 15000, HighMinor: 25000}},
	{"install", Band{Label: "installation", LowMinor: 20000, HighMinor: 45000}},
	{"repair", Band{Label: "repair", LowMinor: 9500, HighMinor: 18000}},
	{"maintenance", Band{Label: "maintenance", LowMinor: 7500, HighMinor: 12500}},
}

// defaultBand covers anything the keyword list does not recognize.
var defaultBand = Band{Label: "general service", LowMinor: 8500, HighMinor: 15000}

// Classify maps a free-text service description to a price band.
func Classify(serviceType string) Band {
	s := strings.ToLower(serviceType)
	for _, b := range bands {
		if strings.Contains(s, b.keyword) {
			return b.band
		}
	}
	return defaultBand
}

// Range renders the band as a dollar range, e.g. "$150-$250".
func (b Band) Range() string {
	return fmt.Sprintf("%s-%s", dollars(b.LowMinor), dollars(b.HighMinor))
}

// Speakable renders the quote for text-to-speech. Ranges are spelled
// out with "to" because TTS engines mangle "$150-$250".
func (b Band) Speakable() string {
	return fmt.Sprintf("For %s work, our typical estimate is %s to %s. The final price depends on what the technician finds on site.",
		b.Label, dollars(b.LowMinor), dollars(b.HighMinor))
}

func dollars(minor int64) string {
	if minor%100 == 0 {
		return fmt.Sprintf("$%d", minor/100)
	}
	return fmt.Sprintf("$%d.%02d", minor/100, minor%100)
}
