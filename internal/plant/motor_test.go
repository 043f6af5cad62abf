package plant

import (
	"math"
	"testing"

	"github.com/san-kum/dcmotor/internal/integrators"
	"github.com/san-kum/dcmotor/internal/sim"
)

func TestMotorAtRest(t *testing.T) {
	m := NewMotor()
	dx := m.Derivative(m.Initial(), sim.Control{0}, 0)
	for i, v := range dx {
		if v != 0 {
			t.Errorf("dx[%d] = %v, want 0", i, v)
		}
	}
}

func TestMotorStepResponse(t *testing.T) {
	m := NewMotor()
	integ := integrators.NewRK4()

	x, err := integ.Advance(m, m.Initial(), sim.Control{12}, 0, 1, 1000)
	if err != nil {
		t.Fatal(err)
	}

	want := m.SteadyStateRPM(12)
	got := m.OutputRPM(x)
	if math.Abs(got-want) > 0.01*want {
		t.Errorf("OutputRPM after 1s = %.2f, want ~%.2f", got, want)
	}
	if want < 180 {
		t.Errorf("full-supply speed %.1f cannot reach the 180 RPM ceiling", want)
	}
	if m.ShaftAngle(x) <= 0 {
		t.Errorf("shaft angle should advance, got %v", m.ShaftAngle(x))
	}
}

func TestMotorReverse(t *testing.T) {
	m := NewMotor()
	integ := integrators.NewEuler()

	x, err := integ.Advance(m, m.Initial(), sim.Control{-6}, 0, 0.5, 5000)
	if err != nil {
		t.Fatal(err)
	}
	if m.OutputRPM(x) >= 0 {
		t.Errorf("negative voltage should spin backwards, got %.2f RPM", m.OutputRPM(x))
	}
}

func TestMotorLoadSlowsShaft(t *testing.T) {
	free := NewMotor()
	loaded := NewMotor()
	loaded.Load = 0.005

	integ := integrators.NewRK4()
	xf, err := integ.Advance(free, free.Initial(), sim.Control{12}, 0, 1, 1000)
	if err != nil {
		t.Fatal(err)
	}
	xl, err := integ.Advance(loaded, loaded.Initial(), sim.Control{12}, 0, 1, 1000)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.OutputRPM(xl) >= free.OutputRPM(xf) {
		t.Errorf("loaded %.2f RPM should be below free %.2f RPM", loaded.OutputRPM(xl), free.OutputRPM(xf))
	}
}

func TestTimeConstants(t *testing.T) {
	m := NewMotor()
	te, tm := m.TimeConstants()
	if te >= tm {
		t.Errorf("electrical %.4f should be faster than mechanical %.4f", te, tm)
	}
}

func TestZeroGearRatio(t *testing.T) {
	m := NewMotor()
	m.GearRatio = 0
	if got := m.OutputRPM(sim.State{100, 0, 0}); got != 0 {
		t.Errorf("OutputRPM = %v, want 0", got)
	}
}
