package subtitles

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"overdub/internal/logging"
	"overdub/internal/services"
)

// ParseFile reads and parses an SRT file into ordered cues. Files that are
// not valid UTF-8 are retried as Latin-1 before giving up; the degraded
// decode is logged. A missing file, an undecodable file, or a file yielding
// zero cues is an input error.
func ParseFile(path string, logger *slog.Logger) ([]Cue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, services.Wrap(services.ErrInput, "subtitles", "read", path, err)
	}

	content, fallback, err := decode(data)
	if err != nil {
		return nil, services.Wrap(services.ErrInput, "subtitles", "decode", path, err)
	}
	if fallback {
		logging.NewComponentLogger(logger, "subtitles").Warn("subtitle file is not UTF-8, decoded as latin-1",
			logging.String("path", path))
	}

	cues := parseBlocks(content)
	if len(cues) == 0 {
		return nil, services.Wrap(services.ErrInput, "subtitles", "parse", "no cues in "+path, nil)
	}
	return cues, nil
}

// decode returns the file text and whether the Latin-1 fallback was taken.
func decode(data []byte) (string, bool, error) {
	// Strip a UTF-8 BOM if present.
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		data = data[3:]
	}
	if utf8.Valid(data) {
		return string(data), false, nil
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return "", false, fmt.Errorf("latin-1 fallback: %w", err)
	}
	return string(decoded), true, nil
}

func parseBlocks(content string) []Cue {
	normalized := strings.ReplaceAll(content, "\r\n", "\n")
	blocks := strings.Split(strings.TrimSpace(normalized), "\n\n")

	cues := make([]Cue, 0, len(blocks))
	for _, block := range blocks {
		lines := strings.Split(strings.TrimSpace(block), "\n")
		if len(lines) < 2 {
			continue
		}

		// The index line is optional in the wild; locate the timing line.
		timingLine := -1
		for i, line := range lines {
			if strings.Contains(line, "-->") {
				timingLine = i
				break
			}
		}
		if timingLine < 0 {
			continue
		}

		start, end, err := parseTimingLine(lines[timingLine])
		if err != nil {
			continue
		}

		text := strings.Join(lines[timingLine+1:], "\n")
		cues = append(cues, Cue{
			Index: len(cues),
			Start: start,
			End:   end,
			Text:  text,
		})
	}
	return cues
}

func parseTimingLine(line string) (float64, float64, error) {
	parts := strings.Split(line, "-->")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid timing line %q", line)
	}
	start, err := parseTimestamp(parts[0])
	if err != nil {
		return 0, 0, err
	}
	end, err := parseTimestamp(parts[1])
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

func parseTimestamp(value string) (float64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("empty timestamp")
	}
	// SRT uses a comma before the milliseconds; some files use a period.
	value = strings.ReplaceAll(value, ".", ",")
	timeParts := strings.Split(value, ",")
	if len(timeParts) != 2 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hms := strings.Split(timeParts[0], ":")
	if len(hms) != 3 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hours, errH := strconv.Atoi(hms[0])
	minutes, errM := strconv.Atoi(hms[1])
	seconds, errS := strconv.Atoi(hms[2])
	millis, errMS := strconv.Atoi(timeParts[1])
	if errH != nil || errM != nil || errS != nil || errMS != nil {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	return float64(hours*3600+minutes*60+seconds) + float64(millis)/1000, nil
}
