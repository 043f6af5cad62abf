// Package storage keeps finished runs on disk: one directory per run with
// metadata.json, config.yaml and samples.csv.
package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/san-kum/dcmotor/internal/config"
	"github.com/san-kum/dcmotor/internal/loop"
	"github.com/san-kum/dcmotor/internal/sim"
)

var ErrRunNotFound = errors.New("storage: run not found")

const (
	metadataFile = "metadata.json"
	configFile   = "config.yaml"
	samplesFile  = "samples.csv"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return errors.Wrap(os.MkdirAll(s.baseDir, 0755), "create data dir")
}

type RunMetadata struct {
	ID         string             `json:"id"`
	Label      string             `json:"label"`
	Timestamp  time.Time          `json:"timestamp"`
	Integrator string             `json:"integrator"`
	Scenario   string             `json:"scenario,omitempty"`
	Kp         float64            `json:"kp"`
	Ki         float64            `json:"ki"`
	Kd         float64            `json:"kd"`
	Dt         float64            `json:"dt"`
	Duration   float64            `json:"duration"`
	Setpoint   float64            `json:"setpoint"`
	Period     uint16             `json:"period"`
	DeadTime   uint16             `json:"dead_time"`
	Cycles     uint64             `json:"cycles"`
	Overruns   uint64             `json:"overruns"`
	Metrics    map[string]float64 `json:"metrics"`
}

var header = []string{
	"time", "cycle", "setpoint", "pv", "true_rpm", "current",
	"error", "adjustment", "requested", "duty", "pulse",
	"forward", "enabled", "saturated", "dead_time_limited",
}

// Save writes a run and returns its ID.
func (s *Store) Save(label string, cfg *config.Config, result *sim.Result) (string, error) {
	now := time.Now()
	runID := fmt.Sprintf("%s_%s", label, now.Format("20060102T150405.000"))
	runDir := filepath.Join(s.baseDir, runID)
	for n := 1; exists(runDir); n++ {
		runDir = filepath.Join(s.baseDir, fmt.Sprintf("%s-%d", runID, n))
	}
	runID = filepath.Base(runDir)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", errors.Wrap(err, "create run dir")
	}

	meta := RunMetadata{
		ID:         runID,
		Label:      label,
		Timestamp:  now,
		Integrator: cfg.Sim.Integrator,
		Scenario:   cfg.Sim.Scenario,
		Kp:         cfg.Control.Kp,
		Ki:         cfg.Control.Ki,
		Kd:         cfg.Control.Kd,
		Dt:         cfg.Control.Dt,
		Duration:   cfg.Sim.Duration,
		Setpoint:   cfg.Sim.Setpoint,
		Period:     cfg.PWM.Period(),
		DeadTime:   cfg.PWM.DeadTime,
		Cycles:     result.Stats.Cycles,
		Overruns:   result.Stats.Overruns,
		Metrics:    result.Metrics,
	}

	if err := writeJSON(filepath.Join(runDir, metadataFile), meta); err != nil {
		return "", err
	}
	if err := config.Save(filepath.Join(runDir, configFile), cfg); err != nil {
		return "", err
	}
	if err := writeSamples(filepath.Join(runDir, samplesFile), result); err != nil {
		return "", err
	}

	glog.Infof("storage: saved run %s (%d samples)", runID, len(result.Samples))
	return runID, nil
}

func writeJSON(path string, v interface{}) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create metadata")
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(v), "encode metadata")
}

func writeSamples(path string, result *sim.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create samples")
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return errors.Wrap(err, "write samples")
	}

	ff := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	for i, smp := range result.Samples {
		row := []string{
			ff(smp.Time),
			strconv.FormatUint(smp.Cycle, 10),
			ff(smp.Setpoint),
			ff(smp.ProcessVariable),
			ff(at(result.TrueRPM, i)),
			ff(at(result.Current, i)),
			ff(smp.Error),
			ff(smp.Adjustment),
			ff(smp.Requested),
			ff(smp.Duty),
			strconv.FormatUint(uint64(smp.Pulse), 10),
			strconv.FormatBool(smp.Forward),
			strconv.FormatBool(smp.Enabled),
			strconv.FormatBool(smp.Saturated),
			strconv.FormatBool(smp.DeadTimeLimited),
		}
		if err := w.Write(row); err != nil {
			return errors.Wrap(err, "write samples")
		}
	}

	w.Flush()
	return errors.Wrap(w.Error(), "flush samples")
}

func at(xs []float64, i int) float64 {
	if i < len(xs) {
		return xs[i]
	}
	return 0
}

// List returns every readable run, oldest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, errors.Wrap(err, "list runs")
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			glog.V(1).Infof("storage: skipping %s: %v", entry.Name(), err)
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool {
		if runs[i].Timestamp.Equal(runs[j].Timestamp) {
			return runs[i].ID < runs[j].ID
		}
		return runs[i].Timestamp.Before(runs[j].Timestamp)
	})
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrRunNotFound, "%q", runID)
		}
		return nil, errors.Wrap(err, "read metadata")
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, errors.Wrapf(err, "decode metadata %s", runID)
	}
	return &meta, nil
}

// LoadConfig returns the config the run was made with.
func (s *Store) LoadConfig(runID string) (*config.Config, error) {
	cfg, err := config.Load(filepath.Join(s.baseDir, runID, configFile))
	if err != nil && os.IsNotExist(errors.Cause(err)) {
		return nil, errors.Wrapf(ErrRunNotFound, "%q", runID)
	}
	return cfg, err
}

// LoadSamples rebuilds the recorded result of a run.
func (s *Store) LoadSamples(runID string) (*sim.Result, error) {
	meta, err := s.Load(runID)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(filepath.Join(s.baseDir, runID, samplesFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrRunNotFound, "%q has no samples", runID)
		}
		return nil, errors.Wrap(err, "open samples")
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = len(header)
	records, err := r.ReadAll()
	if err != nil {
		return nil, errors.Wrapf(err, "read samples %s", runID)
	}

	result := &sim.Result{
		Metrics: meta.Metrics,
		Stats:   loop.Stats{Cycles: meta.Cycles, Overruns: meta.Overruns},
	}
	if len(records) < 2 {
		return result, nil
	}

	for line, rec := range records[1:] {
		p := parser{rec: rec}
		smp := loop.Sample{
			Time:            p.float(0),
			Cycle:           p.uint(1, 64),
			Setpoint:        p.float(2),
			ProcessVariable: p.float(3),
			Error:           p.float(6),
			Adjustment:      p.float(7),
			Requested:       p.float(8),
			Duty:            p.float(9),
			Pulse:           uint16(p.uint(10, 16)),
			Forward:         p.bool(11),
			Enabled:         p.bool(12),
			Saturated:       p.bool(13),
			DeadTimeLimited: p.bool(14),
		}
		trueRPM, current := p.float(4), p.float(5)
		if p.err != nil {
			return nil, errors.Wrapf(p.err, "samples %s line %d", runID, line+2)
		}
		result.Samples = append(result.Samples, smp)
		result.TrueRPM = append(result.TrueRPM, trueRPM)
		result.Current = append(result.Current, current)
	}
	result.StepsTaken = len(result.Samples)
	return result, nil
}

// parser keeps the first conversion error of a CSV record.
type parser struct {
	rec []string
	err error
}

func (p *parser) float(i int) float64 {
	v, err := strconv.ParseFloat(p.rec[i], 64)
	p.keep(i, err)
	return v
}

func (p *parser) uint(i, bits int) uint64 {
	v, err := strconv.ParseUint(p.rec[i], 10, bits)
	p.keep(i, err)
	return v
}

func (p *parser) bool(i int) bool {
	v, err := strconv.ParseBool(p.rec[i])
	p.keep(i, err)
	return v
}

func (p *parser) keep(i int, err error) {
	if p.err == nil && err != nil {
		p.err = errors.Wrapf(err, "column %q", header[i])
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
