package command

import (
	"math"
	"testing"
	"time"

	"periph.io/x/conn/v3/physic"
)

type fakeTarget struct {
	sp      float64
	forward bool
	resets  int
}

func (f *fakeTarget) SetSetpoint(rpm float64)   { f.sp = rpm }
func (f *fakeTarget) Setpoint() float64         { return f.sp }
func (f *fakeTarget) SetDirection(forward bool) { f.forward = forward }
func (f *fakeTarget) Direction() bool           { return f.forward }
func (f *fakeTarget) ResetControlState()        { f.resets++ }

func TestStepping(t *testing.T) {
	tests := []struct {
		name  string
		start float64
		up    bool
		held  time.Duration
		want  float64
	}{
		{"short press up", 50, true, 200 * time.Millisecond, 51},
		{"long press up", 50, true, 1500 * time.Millisecond, 70},
		{"exactly long press", 50, true, time.Second, 70},
		{"short press down", 50, false, 10 * time.Millisecond, 49},
		{"long press down", 50, false, 2 * time.Second, 30},
		{"clamp at max", 175, true, 2 * time.Second, 180},
		{"clamp at zero", 10, false, 2 * time.Second, 0},
		{"small step at zero", 0, false, time.Millisecond, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := &fakeTarget{sp: tt.start}
			p := NewPanel(DefaultConfig(), target)

			var ok bool
			if tt.up {
				ok = p.Increase(tt.held)
			} else {
				ok = p.Decrease(tt.held)
			}
			if !ok {
				t.Fatal("manual stepping should be accepted")
			}
			if target.sp != tt.want {
				t.Errorf("expected setpoint %v, got %v", tt.want, target.sp)
			}
		})
	}
}

func TestSteppingIgnoredInAutomatic(t *testing.T) {
	target := &fakeTarget{sp: 50}
	p := NewPanel(DefaultConfig(), target)
	p.SetMode(Automatic)

	if p.Increase(time.Millisecond) {
		t.Error("stepping should be rejected in automatic mode")
	}
	if p.Set(90) {
		t.Error("absolute set should be rejected in automatic mode")
	}
	if target.sp != 50 {
		t.Errorf("setpoint should be unchanged, got %v", target.sp)
	}
}

func TestAnalogMapping(t *testing.T) {
	tests := []struct {
		name string
		v    physic.ElectricPotential
		want float64
	}{
		{"zero", 0, 0},
		{"full scale", 3307 * physic.MilliVolt, 180},
		{"half scale", 1653500 * physic.MicroVolt, 90},
		{"over range", 5 * physic.Volt, 180},
		{"negative", -1 * physic.Volt, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := &fakeTarget{}
			p := NewPanel(DefaultConfig(), target)
			p.SetMode(Automatic)

			if !p.Analog(tt.v) {
				t.Fatal("analog input should be accepted in automatic mode")
			}
			if math.Abs(target.sp-tt.want) > 1e-9 {
				t.Errorf("expected %v rpm, got %v", tt.want, target.sp)
			}
		})
	}
}

func TestAnalogIgnoredInManual(t *testing.T) {
	target := &fakeTarget{sp: 12}
	p := NewPanel(DefaultConfig(), target)

	if p.Analog(physic.Volt) {
		t.Error("analog input should be ignored in manual mode")
	}
	if target.sp != 12 {
		t.Errorf("setpoint should be unchanged, got %v", target.sp)
	}
}

func TestModeSwitchResets(t *testing.T) {
	target := &fakeTarget{}
	p := NewPanel(DefaultConfig(), target)

	p.SetMode(Manual)
	if target.resets != 0 {
		t.Error("staying in the same mode should not reset")
	}
	p.SetMode(Automatic)
	p.SetMode(Manual)
	if target.resets != 2 {
		t.Errorf("expected 2 resets, got %d", target.resets)
	}
	if p.Mode() != Manual {
		t.Errorf("expected manual, got %v", p.Mode())
	}
}

func TestSetClamps(t *testing.T) {
	target := &fakeTarget{}
	p := NewPanel(DefaultConfig(), target)

	p.Set(500)
	if target.sp != 180 {
		t.Errorf("expected 180, got %v", target.sp)
	}
	if p.Set(math.NaN()) {
		t.Error("NaN should be rejected")
	}
	if target.sp != 180 {
		t.Errorf("expected setpoint to stay 180, got %v", target.sp)
	}
}

func TestDirection(t *testing.T) {
	target := &fakeTarget{forward: true}
	p := NewPanel(DefaultConfig(), target)

	p.Reverse()
	if p.Direction() {
		t.Error("expected reverse")
	}
	p.Forward()
	if !p.Direction() {
		t.Error("expected forward")
	}
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"manual": Manual, "man": Manual, "auto": Automatic, "automatic": Automatic} {
		got, ok := ParseMode(in)
		if !ok || got != want {
			t.Errorf("ParseMode(%q) = %v, %v", in, got, ok)
		}
	}
	if _, ok := ParseMode("turbo"); ok {
		t.Error("unknown mode should not parse")
	}
}
