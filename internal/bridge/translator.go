package bridge

import "github.com/nerrad567/gray-logic-nhc/internal/nhc"

// Command translation: pure functions from a typed command plus endpoint
// configuration to at most one controller primitive. The boolean result
// reports whether a primitive should be sent; commands outside a family's
// vocabulary translate to nothing.

// DefaultDimStep is the dimmer step size used when an endpoint does not
// configure one.
const DefaultDimStep = 10

// TranslateSwitch maps on/off commands for button and relay channels.
func TranslateSwitch(cmd Command) (string, bool) {
	switch cmd.Type {
	case CommandOn:
		return nhc.PrimitiveOn, true
	case CommandOff:
		return nhc.PrimitiveOff, true
	default:
		return "", false
	}
}

// TranslateBrightness maps dimmer commands to a primitive.
//
// Increase and Decrease step relative to the current raw level and round
// onto the step grid. Increase clamps at 100 and never switches the
// dimmer off; Decrease switches off once the stepped value reaches zero.
//
// Parameters:
//   - cmd: the typed command
//   - current: the dimmer's current raw level (0-100)
//   - step: the configured step size (values below 1 fall back to
//     DefaultDimStep)
func TranslateBrightness(cmd Command, current, step int) (string, bool) {
	if step < 1 {
		step = DefaultDimStep
	}

	switch cmd.Type {
	case CommandOn:
		return nhc.PrimitiveOn, true
	case CommandOff:
		return nhc.PrimitiveOff, true
	case CommandIncrease:
		v := current + step
		v -= v % step
		if v > 100 {
			v = 100
		}
		return nhc.NumericPrimitive(v), true
	case CommandDecrease:
		v := current - step
		v += v % step
		if v <= 0 {
			return nhc.PrimitiveOff, true
		}
		return nhc.NumericPrimitive(v), true
	case CommandPercent:
		if cmd.Percent == 0 {
			return nhc.PrimitiveOff, true
		}
		return nhc.NumericPrimitive(cmd.Percent), true
	default:
		return "", false
	}
}

// TranslateRollershutter maps shutter commands to a primitive.
//
// The invert flag swaps the travel direction for installations wired the
// other way round: Up and Down exchange primitives and percent positions
// flip. Stop is direction-free and never inverted.
func TranslateRollershutter(cmd Command, invert bool) (string, bool) {
	switch cmd.Type {
	case CommandUp:
		if invert {
			return nhc.PrimitiveDown, true
		}
		return nhc.PrimitiveUp, true
	case CommandDown:
		if invert {
			return nhc.PrimitiveUp, true
		}
		return nhc.PrimitiveDown, true
	case CommandStop:
		return nhc.PrimitiveStop, true
	case CommandPercent:
		if invert {
			return nhc.NumericPrimitive(cmd.Percent), true
		}
		return nhc.NumericPrimitive(100 - cmd.Percent), true
	default:
		return "", false
	}
}
