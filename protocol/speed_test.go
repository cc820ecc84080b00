package protocol

import (
	"errors"
	"testing"
)

func TestSpeedByte(t *testing.T) {
	tests := []struct {
		name    string
		steps   ThrottleSteps
		percent float64
		want    byte
	}{
		{name: "forward half speed 128", steps: Steps128, percent: 50, want: 0xC0},
		{name: "reverse quarter speed 128", steps: Steps128, percent: -25, want: 0x20},
		{name: "full forward 28", steps: Steps28, percent: 100, want: 0x9C},
		{name: "full forward 14", steps: Steps14, percent: 100, want: 0x80 | 14},
		{name: "half reverse 28", steps: Steps28, percent: -50, want: 0x0E},
		{name: "zero keeps direction bit clear", steps: Steps128, percent: 0, want: 0x00},
		{name: "negative zero keeps direction bit clear", steps: Steps128, percent: negZero(), want: 0x00},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SpeedByte(tt.steps, tt.percent); got != tt.want {
				t.Errorf("SpeedByte(%v, %v) = 0x%02x, want 0x%02x", tt.steps, tt.percent, got, tt.want)
			}
		})
	}
}

func negZero() float64 {
	z := 0.0
	return -z
}

func TestSpeedByteReverseHasDirectionBitClear(t *testing.T) {
	b := SpeedByte(Steps128, -25)
	if b&0x80 != 0 {
		t.Errorf("reverse speed byte 0x%02x has direction bit set", b)
	}
	if b&0x7F != 0x20 {
		t.Errorf("reverse magnitude = 0x%02x, want 0x20", b&0x7F)
	}
}

func TestSpeedPercentRoundTrip(t *testing.T) {
	for _, steps := range []ThrottleSteps{Steps14, Steps28, Steps128} {
		stepSize := 100.0 / float64(steps.Count())
		for _, percent := range []float64{75, 50.0, 12.5, -12.5, -50, -75} {
			got := SpeedPercent(steps, SpeedByte(steps, percent))
			if (got > 0) != (percent > 0) && got != 0 {
				t.Errorf("%v: round trip of %v changed sign: %v", steps, percent, got)
			}
			if diff := abs(got - percent); diff > stepSize {
				t.Errorf("%v: round trip of %v = %v, off by more than one step (%v)",
					steps, percent, got, stepSize)
			}
		}
	}
}

func TestFunctionByte(t *testing.T) {
	tests := []struct {
		name    string
		action  FunctionAction
		index   uint8
		want    byte
		wantErr error
	}{
		{name: "F0 on", action: FunctionOn, index: 0, want: 0x40},
		{name: "F0 off", action: FunctionOff, index: 0, want: 0x00},
		{name: "F2 toggle", action: FunctionToggle, index: 2, want: 0x82},
		{name: "F31 on", action: FunctionOn, index: 31, want: 0x5F},
		{name: "index out of range", action: FunctionOn, index: 32, wantErr: ErrInvalidInput},
		{name: "action out of range", action: FunctionAction(3), index: 0, wantErr: ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FunctionByte(tt.action, tt.index)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("FunctionByte: %v", err)
			}
			if got != tt.want {
				t.Errorf("FunctionByte(%d, %d) = 0x%02x, want 0x%02x", tt.action, tt.index, got, tt.want)
			}
		})
	}
}

func TestThrottleStepsCount(t *testing.T) {
	if Steps14.Count() != 14 || Steps28.Count() != 28 || Steps128.Count() != 128 {
		t.Error("step counts do not match the stepping names")
	}
	if DefaultSteps != Steps128 {
		t.Error("default stepping should be 128")
	}
}
