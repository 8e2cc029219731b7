package audioio

import "math"

// SampleRate is the fixed pipeline sample rate in Hz. It matches the native
// output rate of the Edge TTS backend, so no resampling happens anywhere.
const SampleRate = 24000

// Clip is a mono 16-bit PCM buffer. Samples use go-audio's int convention
// and stay within the int16 range.
type Clip struct {
	Samples []int
	Rate    int
}

// Duration returns the clip length in seconds.
func (c Clip) Duration() float64 {
	if c.Rate <= 0 {
		return 0
	}
	return float64(len(c.Samples)) / float64(c.Rate)
}

// Silence returns a clip of the given sample count at the pipeline rate.
func Silence(samples int) Clip {
	if samples < 0 {
		samples = 0
	}
	return Clip{Samples: make([]int, samples), Rate: SampleRate}
}

// SecondsToSamples converts a duration to a sample count at the given rate,
// rounding to the nearest sample.
func SecondsToSamples(seconds float64, rate int) int {
	if seconds <= 0 || rate <= 0 {
		return 0
	}
	return int(math.Round(seconds * float64(rate)))
}

// FitExact pads the clip with trailing silence or truncates it so its sample
// count equals target. Used to eliminate rounding drift after stretching.
func (c Clip) FitExact(target int) Clip {
	if target < 0 {
		target = 0
	}
	if len(c.Samples) == target {
		return c
	}
	fitted := make([]int, target)
	copy(fitted, c.Samples)
	return Clip{Samples: fitted, Rate: c.Rate}
}
