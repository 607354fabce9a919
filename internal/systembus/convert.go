package systembus

import (
	"math"

	"codeberg.org/mutker/powerwatch/internal/errors"
	"codeberg.org/mutker/powerwatch/internal/power"
	"github.com/godbus/dbus/v5"
)

// UPower Device.Type and Device.State values.
const (
	typeLinePower = 1
	typeBattery   = 2

	stateCharging = 1
)

func kindFromType(t uint32) power.Kind {
	switch t {
	case typeBattery:
		return power.KindBattery
	case typeLinePower:
		return power.KindLinePower
	default:
		return power.KindOther
	}
}

func unexpected(v dbus.Variant) error {
	return errors.New().WithData(ErrUnexpectedType, v.Signature().String())
}

func asString(v dbus.Variant) (string, error) {
	s, ok := v.Value().(string)
	if !ok {
		return "", unexpected(v)
	}

	return s, nil
}

func asBool(v dbus.Variant) (bool, error) {
	b, ok := v.Value().(bool)
	if !ok {
		return false, unexpected(v)
	}

	return b, nil
}

func asUint32(v dbus.Variant) (uint32, error) {
	switch n := v.Value().(type) {
	case uint32:
		return n, nil
	case byte:
		return uint32(n), nil
	case uint16:
		return uint32(n), nil
	default:
		return 0, unexpected(v)
	}
}

// asPercent truncates UPower's double percentage to an integer.
func asPercent(v dbus.Variant) (int, error) {
	switch n := v.Value().(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, unexpected(v)
		}
		return power.TruncatePercent(n), nil
	case int32:
		return int(n), nil
	case uint32:
		return int(n), nil
	default:
		return 0, unexpected(v)
	}
}
