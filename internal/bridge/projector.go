package bridge

import (
	"fmt"

	"github.com/nerrad567/gray-logic-nhc/internal/nhc"
)

// ProjectState maps a controller raw state (0-100) onto the typed channel
// value observed by the rest of the system.
//
// Triggers update only the button channel and relays only the switch
// channel; the two never alias. Shutter positions mirror the command path:
// the controller reports 0 for closed, the bus position is 0 for open, so
// the value flips unless the endpoint is inverted.
//
// Returns ErrUnsupportedKind for kinds with no channel mapping; the
// handler reports those as configuration errors.
func ProjectState(kind nhc.ActionKind, raw int, invert bool) (ChannelValue, error) {
	switch kind {
	case nhc.KindTrigger:
		return ChannelValue{Channel: ChannelButton, On: raw != 0}, nil
	case nhc.KindRelay:
		return ChannelValue{Channel: ChannelSwitch, On: raw != 0}, nil
	case nhc.KindDimmer:
		return ChannelValue{Channel: ChannelBrightness, Percent: raw}, nil
	case nhc.KindRollershutter:
		if invert {
			return ChannelValue{Channel: ChannelRollershutter, Percent: raw}, nil
		}
		return ChannelValue{Channel: ChannelRollershutter, Percent: 100 - raw}, nil
	default:
		return ChannelValue{}, fmt.Errorf("%w: %s", ErrUnsupportedKind, kind)
	}
}
