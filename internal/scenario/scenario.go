// Package scenario scripts operator input over a simulated run: setpoint
// changes, button presses, direction and mode switches, analog readings.
package scenario

import (
	"math"
	"os"
	"sort"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
	"periph.io/x/conn/v3/physic"

	"github.com/san-kum/dcmotor/internal/command"
	"github.com/san-kum/dcmotor/internal/mathx"
)

var ErrInvalidEvent = errors.New("scenario: invalid event")

// Scenario is a named, time-ordered list of operator events.
type Scenario struct {
	Name        string  `yaml:"name"`
	Description string  `yaml:"description,omitempty"`
	Duration    float64 `yaml:"duration,omitempty"`
	Events      []Event `yaml:"events"`
}

// Event is one operator action at time At (seconds). Exactly the fields
// that are set are applied, in the order they are declared here.
type Event struct {
	At        float64  `yaml:"at"`
	Mode      string   `yaml:"mode,omitempty"`      // manual | auto
	Direction string   `yaml:"direction,omitempty"` // forward | reverse
	Setpoint  *float64 `yaml:"setpoint,omitempty"`  // RPM, manual mode
	Press     string   `yaml:"press,omitempty"`     // up | down
	Hold      float64  `yaml:"hold,omitempty"`      // seconds the button is held
	Analog    *float64 `yaml:"analog,omitempty"`    // volts, automatic mode
	Reset     bool     `yaml:"reset,omitempty"`
}

// Load reads a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read scenario")
	}
	s, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "scenario %s", path)
	}
	return s, nil
}

// Parse decodes and validates a scenario, sorting events by time.
func Parse(data []byte) (*Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, errors.Wrap(err, "decode scenario")
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Scenario) Validate() error {
	for i, ev := range s.Events {
		if err := ev.validate(); err != nil {
			return errors.Wrapf(err, "event %d", i)
		}
	}
	sort.SliceStable(s.Events, func(i, j int) bool { return s.Events[i].At < s.Events[j].At })
	return nil
}

func (ev Event) validate() error {
	if ev.At < 0 || !mathx.Finite(ev.At) {
		return errors.Wrapf(ErrInvalidEvent, "time %v", ev.At)
	}
	if ev.Mode != "" {
		if _, ok := command.ParseMode(ev.Mode); !ok {
			return errors.Wrapf(ErrInvalidEvent, "mode %q", ev.Mode)
		}
	}
	switch ev.Direction {
	case "", "forward", "reverse":
	default:
		return errors.Wrapf(ErrInvalidEvent, "direction %q", ev.Direction)
	}
	switch ev.Press {
	case "", "up", "down":
	default:
		return errors.Wrapf(ErrInvalidEvent, "press %q", ev.Press)
	}
	if ev.Hold < 0 {
		return errors.Wrapf(ErrInvalidEvent, "hold %v", ev.Hold)
	}
	if ev.Setpoint != nil && !mathx.Finite(*ev.Setpoint) {
		return errors.Wrapf(ErrInvalidEvent, "setpoint %v", *ev.Setpoint)
	}
	if ev.Analog != nil && !mathx.Finite(*ev.Analog) {
		return errors.Wrapf(ErrInvalidEvent, "analog %v", *ev.Analog)
	}
	return nil
}

// Apply drives the panel. It reports whether every action was accepted;
// the panel ignores actions that do not fit its current mode.
func (ev Event) Apply(p *command.Panel) bool {
	ok := true
	if ev.Mode != "" {
		m, _ := command.ParseMode(ev.Mode)
		p.SetMode(m)
	}
	switch ev.Direction {
	case "forward":
		p.Forward()
	case "reverse":
		p.Reverse()
	}
	if ev.Setpoint != nil {
		ok = p.Set(*ev.Setpoint) && ok
	}
	held := time.Duration(ev.Hold * float64(time.Second))
	switch ev.Press {
	case "up":
		ok = p.Increase(held) && ok
	case "down":
		ok = p.Decrease(held) && ok
	}
	if ev.Analog != nil {
		v := physic.ElectricPotential(math.Round(*ev.Analog * float64(physic.Volt)))
		ok = p.Analog(v) && ok
	}
	if ev.Reset {
		p.Reset()
	}
	return ok
}

// Player replays a scenario as a simulator hook.
type Player struct {
	events  []Event
	next    int
	ignored int
}

func NewPlayer(s *Scenario) *Player {
	return &Player{events: s.Events}
}

// Before applies every event due at or before t.
func (pl *Player) Before(t float64, p *command.Panel) {
	const eps = 1e-9
	for pl.next < len(pl.events) && pl.events[pl.next].At <= t+eps {
		ev := pl.events[pl.next]
		pl.next++
		if !ev.Apply(p) {
			pl.ignored++
			glog.Warningf("scenario: event at %.3fs ignored in %s mode", ev.At, p.Mode())
			continue
		}
		glog.V(1).Infof("scenario: t=%.3f applied event at %.3fs", t, ev.At)
	}
}

// Applied returns how many events have fired.
func (pl *Player) Applied() int { return pl.next }

// Ignored returns how many fired events the panel rejected in part.
func (pl *Player) Ignored() int { return pl.ignored }
