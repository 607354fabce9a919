package power

import (
	"math"
	"path"
	"strings"

	"codeberg.org/mutker/powerwatch/internal/errors"
)

const (
	MinPercent = 0
	MaxPercent = 100

	batteryPrefix   = "battery"
	linePowerPrefix = "line_power"
)

// Classify derives a device kind from a UPower object path such as
// /org/freedesktop/UPower/devices/battery_BAT0.
func Classify(id string) Kind {
	name := path.Base(strings.TrimSpace(id))
	switch {
	case strings.HasPrefix(name, batteryPrefix):
		return KindBattery
	case strings.HasPrefix(name, linePowerPrefix):
		return KindLinePower
	default:
		return KindOther
	}
}

// ClampPercent bounds a reading to [0,100]. The returned error is non-nil
// when the input had to be clamped; the clamped value is still usable.
func ClampPercent(percent int) (int, error) {
	if percent >= MinPercent && percent <= MaxPercent {
		return percent, nil
	}

	clamped := clamp(percent, MinPercent, MaxPercent)

	return clamped, errors.New().WithData(ErrPercentOutOfRange, percent)
}

// TruncatePercent converts a fractional reading to an int, truncating
// toward zero. Values beyond the int32 range saturate so ClampPercent
// still bounds them to the correct end.
func TruncatePercent(f float64) int {
	switch {
	case f >= math.MaxInt32:
		return math.MaxInt32
	case f <= math.MinInt32:
		return math.MinInt32
	default:
		return int(f)
	}
}

func clamp(value, minValue, maxValue int) int {
	if value < minValue {
		return minValue
	}
	if value > maxValue {
		return maxValue
	}

	return value
}
