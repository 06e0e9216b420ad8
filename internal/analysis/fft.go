package analysis

import (
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/stat"
)

// FFT computes the discrete Fourier transform. The input is zero padded to
// the next power of two.
func FFT(data []float64) []complex128 {
	n := nextPow2(len(data))
	if n != len(data) {
		padded := make([]float64, n)
		copy(padded, data)
		data = padded
	}
	return fft.FFTReal(data)
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// PowerSpectrum returns the magnitude of the first half of the spectrum of
// data after its mean is removed. Bin k has frequency k/(N*dt) where N is
// the padded length.
func PowerSpectrum(data []float64) []float64 {
	spectrum := FFT(detrend(data))
	ps := make([]float64, len(spectrum)/2)

	for i := range ps {
		ps[i] = cmplx.Abs(spectrum[i])
	}

	return ps
}

func detrend(data []float64) []float64 {
	if len(data) == 0 {
		return nil
	}
	mean := stat.Mean(data, nil)
	out := make([]float64, len(data))
	for i, v := range data {
		out[i] = v - mean
	}
	return out
}

// DominantPeriod returns the period in seconds of the strongest non-zero
// frequency in a series sampled every dt seconds, and that bin's share of
// the total spectral power. Period is zero when the series is flat or too
// short.
func DominantPeriod(data []float64, dt float64) (period, strength float64) {
	if len(data) < 4 || dt <= 0 {
		return 0, 0
	}
	ps := PowerSpectrum(data)

	best, total := 0, 0.0
	for k := 1; k < len(ps); k++ {
		total += ps[k]
		if ps[k] > ps[best] || best == 0 {
			best = k
		}
	}
	if best == 0 || total == 0 || ps[best] == 0 {
		return 0, 0
	}

	n := float64(2 * len(ps))
	return n * dt / float64(best), ps[best] / total
}
