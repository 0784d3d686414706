package bridge

import (
	"errors"
	"strconv"
	"testing"

	"github.com/nerrad567/gray-logic-nhc/internal/nhc"
)

func TestProjectState(t *testing.T) {
	tests := []struct {
		name   string
		kind   nhc.ActionKind
		raw    int
		invert bool
		want   ChannelValue
	}{
		{"trigger off", nhc.KindTrigger, 0, false, ChannelValue{Channel: ChannelButton, On: false}},
		{"trigger on", nhc.KindTrigger, 100, false, ChannelValue{Channel: ChannelButton, On: true}},
		{"relay off", nhc.KindRelay, 0, false, ChannelValue{Channel: ChannelSwitch, On: false}},
		{"relay on", nhc.KindRelay, 100, false, ChannelValue{Channel: ChannelSwitch, On: true}},
		{"dimmer level", nhc.KindDimmer, 42, false, ChannelValue{Channel: ChannelBrightness, Percent: 42}},
		{"dimmer zero", nhc.KindDimmer, 0, false, ChannelValue{Channel: ChannelBrightness, Percent: 0}},
		{"shutter flips", nhc.KindRollershutter, 30, false, ChannelValue{Channel: ChannelRollershutter, Percent: 70}},
		{"shutter closed", nhc.KindRollershutter, 0, false, ChannelValue{Channel: ChannelRollershutter, Percent: 100}},
		{"shutter inverted", nhc.KindRollershutter, 30, true, ChannelValue{Channel: ChannelRollershutter, Percent: 30}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ProjectState(tt.kind, tt.raw, tt.invert)
			if err != nil {
				t.Fatalf("ProjectState() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ProjectState(%v, %d, %v) = %+v, want %+v",
					tt.kind, tt.raw, tt.invert, got, tt.want)
			}
		})
	}
}

// TestProjectStateTriggerNeverSwitch guards the trigger/relay channel
// separation: a trigger state only ever lands on the button channel.
func TestProjectStateTriggerNeverSwitch(t *testing.T) {
	for _, raw := range []int{0, 1, 50, 100} {
		got, err := ProjectState(nhc.KindTrigger, raw, false)
		if err != nil {
			t.Fatalf("ProjectState() error: %v", err)
		}
		if got.Channel != ChannelButton {
			t.Errorf("trigger raw %d projected onto %s channel", raw, got.Channel)
		}
	}
}

func TestProjectStateUnknownKind(t *testing.T) {
	_, err := ProjectState(nhc.KindUnknown, 50, false)
	if !errors.Is(err, ErrUnsupportedKind) {
		t.Errorf("ProjectState(unknown) error = %v, want ErrUnsupportedKind", err)
	}
}

// TestShutterPercentRoundTrip verifies that a position command sent to
// the controller projects back to the same bus position for both invert
// settings.
func TestShutterPercentRoundTrip(t *testing.T) {
	for _, invert := range []bool{false, true} {
		for p := 0; p <= 100; p++ {
			primitive, ok := TranslateRollershutter(Command{Type: CommandPercent, Percent: p}, invert)
			if !ok {
				t.Fatalf("percent %d produced no primitive", p)
			}

			raw, err := strconv.Atoi(primitive)
			if err != nil {
				t.Fatalf("percent %d produced non-numeric primitive %q", p, primitive)
			}

			value, err := ProjectState(nhc.KindRollershutter, raw, invert)
			if err != nil {
				t.Fatalf("ProjectState() error: %v", err)
			}
			if value.Percent != p {
				t.Errorf("invert=%v: percent %d round-tripped to %d", invert, p, value.Percent)
			}
		}
	}
}
