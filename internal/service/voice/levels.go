package voice

import (
	"math"
	"math/cmplx"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

// Analyser turns PCM frames into per-bar levels in [0,1], mimicking the
// byte frequency data of a browser analyser node.
type Analyser struct {
	size   int
	bars   int
	window []float64
	minDB  float64
	maxDB  float64

	// fourier.FFT keeps scratch space and is not safe for concurrent use.
	mu     sync.Mutex
	fft    *fourier.FFT
	frame  []float64
	coeffs []complex128
}

// NewAnalyser builds an analyser for frames of size samples reporting the
// lowest bars frequency bins.
func NewAnalyser(size, bars int) *Analyser {
	ones := make([]float64, size)
	for i := range ones {
		ones[i] = 1
	}
	return &Analyser{
		size: size,
		bars: bars,
		// Blackman window, as used by Web Audio analysers.
		window: window.Blackman(ones),
		minDB:  -100,
		maxDB:  -30,
		fft:    fourier.NewFFT(size),
		frame:  make([]float64, size),
		coeffs: make([]complex128, size/2+1),
	}
}

// Bars is the number of levels Levels returns.
func (a *Analyser) Bars() int { return a.bars }

// Levels analyses one frame. Short frames are zero padded; bars beyond the
// available bins read as 0.
func (a *Analyser) Levels(pcm []int16) []float64 {
	a.mu.Lock()
	for i := range a.frame {
		a.frame[i] = 0
		if i < len(pcm) {
			a.frame[i] = float64(pcm[i]) / 32768 * a.window[i]
		}
	}
	coeffs := a.fft.Coefficients(a.coeffs, a.frame)
	mags := make([]float64, a.size/2)
	for k := range mags {
		mags[k] = cmplx.Abs(coeffs[k]) / float64(a.size)
	}
	a.mu.Unlock()

	out := make([]float64, a.bars)
	for k := 0; k < a.bars && k < len(mags); k++ {
		if mags[k] <= 0 {
			continue
		}
		db := 20 * math.Log10(mags[k])
		level := (db - a.minDB) / (a.maxDB - a.minDB)
		out[k] = math.Max(0, math.Min(1, level))
	}
	return out
}
