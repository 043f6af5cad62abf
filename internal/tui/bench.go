package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
	"periph.io/x/conn/v3/physic"

	"github.com/san-kum/dcmotor/internal/command"
	"github.com/san-kum/dcmotor/internal/loop"
	"github.com/san-kum/dcmotor/internal/sim"
)

const (
	historyCapacity = 200
	graphWidth      = 60
	graphHeight     = 12
	analogStep      = 100 * physic.MilliVolt
	maxSpeed        = 16
)

type TickMsg time.Time

// trace keeps the recent samples the chart draws from. The loop observer
// writes into it, so Model copies share it.
type trace struct {
	last     loop.Sample
	pv, sp   []float64
	captured int
}

func (tr *trace) OnCycle(s loop.Sample) {
	tr.last = s
	tr.captured++
	tr.pv = push(tr.pv, s.ProcessVariable)
	tr.sp = push(tr.sp, s.Setpoint)
}

func push(xs []float64, v float64) []float64 {
	xs = append(xs, v)
	if len(xs) > historyCapacity {
		xs = xs[len(xs)-historyCapacity:]
	}
	return xs
}

// Model drives a simulated bench one control interval per tick, scaled
// by speed, and takes operator keys the way the firmware takes buttons.
type Model struct {
	bench     *sim.Bench
	dt        float64
	fullScale physic.ElectricPotential
	analog    physic.ElectricPotential
	speed     int
	running   bool
	trace     *trace
	message   string
	showHelp  bool
}

func NewModel(bench *sim.Bench, cfg sim.Config) Model {
	tr := &trace{}
	bench.Loop.AddObserver(tr)
	return Model{
		bench:     bench,
		dt:        cfg.Control.Dt,
		fullScale: cfg.Command.FullScale,
		speed:     1,
		running:   true,
		trace:     tr,
		showHelp:  true,
	}
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(time.Duration(m.dt*float64(time.Second)), func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func (m Model) Init() tea.Cmd { return m.tick() }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.key(msg)
	case TickMsg:
		if m.running {
			m.step(m.speed)
		}
		return m, m.tick()
	}
	return m, nil
}

// step runs n control cycles. It stops the clock if the plant blows up.
func (m *Model) step(n int) {
	for i := 0; i < n; i++ {
		m.bench.Loop.OnTimerTick()
		if err := m.bench.Rig.Err(); err != nil {
			m.running = false
			m.message = err.Error()
			return
		}
	}
}

func (m Model) key(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	p := m.bench.Panel
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case " ":
		m.running = !m.running
	case "n":
		if !m.running {
			m.step(1)
		}
	case "up", "k":
		m.report(p.Increase(0), "+1")
	case "down", "j":
		m.report(p.Decrease(0), "-1")
	case "shift+up", "K":
		m.report(p.Increase(time.Second), "+20")
	case "shift+down", "J":
		m.report(p.Decrease(time.Second), "-20")
	case "m":
		if p.Mode() == command.Manual {
			p.SetMode(command.Automatic)
			p.Analog(m.analog)
		} else {
			p.SetMode(command.Manual)
		}
		m.message = "mode " + p.Mode().String()
	case "d":
		if p.Direction() {
			p.Reverse()
			m.message = "reverse"
		} else {
			p.Forward()
			m.message = "forward"
		}
	case "r":
		p.Reset()
		m.message = "control state reset"
	case "a":
		m.setAnalog(m.analog + analogStep)
	case "A":
		m.setAnalog(m.analog - analogStep)
	case "]":
		m.speed = min(m.speed*2, maxSpeed)
	case "[":
		m.speed = max(m.speed/2, 1)
	case "h":
		m.showHelp = !m.showHelp
	}
	return m, nil
}

func (m *Model) report(accepted bool, what string) {
	if accepted {
		m.message = fmt.Sprintf("setpoint %s", what)
		return
	}
	m.message = "ignored in " + m.bench.Panel.Mode().String() + " mode"
}

func (m *Model) setAnalog(v physic.ElectricPotential) {
	m.analog = max(0, min(v, m.fullScale))
	if m.bench.Panel.Analog(m.analog) {
		m.message = "analog " + m.analog.String()
	} else {
		m.message = "analog ignored in manual mode"
	}
}

func (m Model) View() string {
	s := m.trace.last
	l := m.bench.Loop

	status := statusRunning.Render("RUNNING")
	if !m.running {
		status = statusPaused.Render("PAUSED")
	}
	if s.Limited() {
		status += " " + statusLimited.Render("LIMITED")
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("DC MOTOR  t=%.2fs  x%d", m.bench.Rig.Time(), m.speed)))
	b.WriteString("  " + status + "\n\n")

	chart := "waiting for samples"
	if len(m.trace.pv) > 1 {
		chart = asciigraph.PlotMany([][]float64{m.trace.sp, m.trace.pv},
			asciigraph.Height(graphHeight),
			asciigraph.Width(graphWidth),
			asciigraph.SeriesColors(asciigraph.Yellow, asciigraph.Green),
			asciigraph.Caption("setpoint (yellow) / measured rpm (green)"),
		)
	}

	dir := "forward"
	if !l.Direction() {
		dir = "reverse"
	}
	st := l.Stats()
	rows := []struct{ k, v string }{
		{"setpoint", fmt.Sprintf("%.1f rpm", l.Setpoint())},
		{"measured", fmt.Sprintf("%.1f rpm", l.ProcessVariable())},
		{"true", fmt.Sprintf("%.1f rpm", m.bench.Rig.OutputRPM())},
		{"current", fmt.Sprintf("%.3f A", m.bench.Rig.Current())},
		{"duty", fmt.Sprintf("%.4f", l.DutyCycle())},
		{"pulse", fmt.Sprintf("%d / %d", m.bench.PWM.Pulse(), m.bench.PWM.Period())},
		{"direction", dir},
		{"mode", m.bench.Panel.Mode().String()},
		{"analog", m.analog.String()},
		{"cycles", fmt.Sprintf("%d", st.Cycles)},
		{"overruns", fmt.Sprintf("%d", st.Overruns)},
	}
	var stats strings.Builder
	for _, r := range rows {
		stats.WriteString(labelStyle.Render(r.k) + valueStyle.Render(r.v) + "\n")
	}

	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		graphStyle.Render(chart), "  ", panelStyle.Render(strings.TrimRight(stats.String(), "\n"))))
	b.WriteString("\n")
	if m.message != "" {
		b.WriteString(valueStyle.Render(m.message) + "\n")
	}
	if m.showHelp {
		b.WriteString(helpStyle.Render("↑/↓ ±1  K/J ±20  m mode  d direction  r reset  a/A analog ±0.1V  [/] speed  space pause  n step  h help  q quit"))
	}
	return b.String()
}

// Run takes over the terminal until the operator quits.
func Run(bench *sim.Bench, cfg sim.Config) error {
	p := tea.NewProgram(NewModel(bench, cfg), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
