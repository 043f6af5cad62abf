package analysis

import (
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/stat"
)

// Bin is one spectral line.
type Bin struct {
	Freq      float64 // Hz
	Amplitude float64 // same unit as the input
}

// Spectrum returns the one-sided amplitude spectrum of data sampled every
// dt seconds, with the mean removed so a steady speed does not swamp the
// ripple.
func Spectrum(data []float64, dt float64) []Bin {
	n := len(data)
	if n < 2 || dt <= 0 {
		return nil
	}

	mean := stat.Mean(data, nil)
	centred := make([]float64, n)
	for i, v := range data {
		centred[i] = v - mean
	}

	fft := fourier.NewFFT(n)
	coeffs := fft.Coefficients(nil, centred)

	bins := make([]Bin, len(coeffs))
	for i, c := range coeffs {
		amp := cmplx.Abs(c) / float64(n)
		// fold the negative frequencies in, except DC and Nyquist
		if i > 0 && !(n%2 == 0 && i == n/2) {
			amp *= 2
		}
		bins[i] = Bin{Freq: fft.Freq(i) / dt, Amplitude: amp}
	}
	return bins
}

// Dominant returns the strongest bin above DC.
func Dominant(bins []Bin) Bin {
	var best Bin
	for _, b := range bins[min(1, len(bins)):] {
		if b.Amplitude > best.Amplitude {
			best = b
		}
	}
	return best
}
