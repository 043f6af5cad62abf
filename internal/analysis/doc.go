// Package analysis characterises recorded speed traces.
//
//   - [Spectrum]: one-sided amplitude spectrum of a uniformly sampled trace
//   - [Dominant]: strongest non-DC bin, usually the regulation limit cycle
//   - [Step]: rise time, peak and overshoot of a step response
//
// The loop samples speed once per control interval, so the spectrum of a
// run tops out at 1/(2·dt):
//
//	bins := analysis.Spectrum(pv, 0.15)
//	peak := analysis.Dominant(bins)
//	fmt.Printf("ripple at %.2f Hz\n", peak.Freq)
package analysis
