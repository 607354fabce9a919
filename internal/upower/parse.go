package upower

import (
	"math"
	"strconv"
	"strings"
	"unicode"

	"codeberg.org/mutker/powerwatch/internal/errors"
	"codeberg.org/mutker/powerwatch/internal/power"
)

const (
	versionKey    = "client"
	splitter      = ":"
	percentageKey = "percentage"
	stateKey      = "state"
	chargingValue = "charging"
	onlineKey     = "online"
	onlineValue   = "yes"
)

// parseVersion extracts the client version from `upower -v`, e.g.
// "UPower client version 0.99.11" yields "0.99.11".
func parseVersion(lines []string) (string, error) {
	var first string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if first == "" {
			first = line
		}
		if strings.Contains(line, versionKey) {
			return fromFirstDigit(line), nil
		}
	}

	if first == "" {
		return "", errors.New().New(ErrCommandOutput)
	}

	return fromFirstDigit(first), nil
}

func fromFirstDigit(line string) string {
	if i := strings.IndexFunc(line, unicode.IsDigit); i >= 0 {
		return line[i:]
	}

	return line
}

// parseDetails turns `upower -i` output into a key/value map. Section
// headers and lines without a separator are skipped.
func parseDetails(lines []string) map[string]string {
	details := make(map[string]string, len(lines))
	for _, line := range lines {
		key, value, ok := strings.Cut(line, splitter)
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		if _, seen := details[key]; !seen {
			details[key] = strings.TrimSpace(value)
		}
	}

	return details
}

// parsePercentage accepts "55%", "55", or "55.3%" and truncates fractions.
func parsePercentage(raw string) (int, error) {
	errFactory := errors.New()

	s := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(raw), "%"))
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}

	s = strings.ReplaceAll(s, ",", ".")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errFactory.WithData(ErrParseFailed, raw)
	}

	return power.TruncatePercent(f), nil
}

func lookup(details map[string]string, key string) (string, error) {
	v, ok := details[key]
	if !ok {
		return "", errors.New().WithData(ErrKeyNotFound, key)
	}

	return v, nil
}
