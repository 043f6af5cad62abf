package storage

import (
	"encoding/json"
	"io"

	"github.com/pkg/errors"

	"github.com/san-kum/dcmotor/internal/loop"
	"github.com/san-kum/dcmotor/internal/sim"
)

type ExportData struct {
	Run      RunMetadata        `json:"run"`
	Steps    int                `json:"steps"`
	Times    []float64          `json:"times"`
	Setpoint []float64          `json:"setpoint"`
	PV       []float64          `json:"pv"`
	TrueRPM  []float64          `json:"true_rpm"`
	Duty     []float64          `json:"duty"`
	Current  []float64          `json:"current"`
	Metrics  map[string]float64 `json:"metrics"`
}

func NewExportData(meta RunMetadata, result *sim.Result) ExportData {
	return ExportData{
		Run:      meta,
		Steps:    len(result.Samples),
		Times:    result.Times(),
		Setpoint: result.Series(func(s loop.Sample) float64 { return s.Setpoint }),
		PV:       result.Series(func(s loop.Sample) float64 { return s.ProcessVariable }),
		TrueRPM:  result.TrueRPM,
		Duty:     result.Series(func(s loop.Sample) float64 { return s.Duty }),
		Current:  result.Current,
		Metrics:  result.Metrics,
	}
}

// ExportJSON writes the run as one indented JSON document.
func ExportJSON(w io.Writer, meta RunMetadata, result *sim.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(NewExportData(meta, result)), "export json")
}
