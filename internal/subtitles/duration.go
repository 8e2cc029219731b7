package subtitles

import (
	"strconv"
	"strings"
)

// ParseClockDuration converts a duration string to seconds. Accepted forms
// are "HH:MM:SS", "MM:SS", and a plain number of seconds; the seconds field
// may carry a fraction. Anything else parses to 0, which downstream treats
// as "no target duration supplied".
func ParseClockDuration(value string) float64 {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if !strings.Contains(value, ":") {
		seconds, err := strconv.ParseFloat(value, 64)
		if err != nil || seconds < 0 {
			return 0
		}
		return seconds
	}

	parts := strings.Split(value, ":")
	switch len(parts) {
	case 3:
		hours, errH := strconv.Atoi(parts[0])
		minutes, errM := strconv.Atoi(parts[1])
		seconds, errS := strconv.ParseFloat(parts[2], 64)
		if errH != nil || errM != nil || errS != nil {
			return 0
		}
		return float64(hours*3600+minutes*60) + seconds
	case 2:
		minutes, errM := strconv.Atoi(parts[0])
		seconds, errS := strconv.ParseFloat(parts[1], 64)
		if errM != nil || errS != nil {
			return 0
		}
		return float64(minutes*60) + seconds
	default:
		return 0
	}
}
