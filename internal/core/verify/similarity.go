package verify

const (
	DefaultSampleCount         = 1000
	ByteTolerance              = 5
	DefaultSimilarityThreshold = 80
)

// Compare samples up to DefaultSampleCount evenly spaced offsets and returns
// the share of samples whose byte values differ by at most ByteTolerance.
//
// Each buffer is indexed proportionally to its own length so re-encoded files
// of different sizes still line up. The sample count is capped by the length
// of uploaded, which makes the result depend on argument order:
// Compare(a, b) and Compare(b, a) may differ.
func Compare(uploaded, reference []byte) int {
	return CompareSamples(uploaded, reference, DefaultSampleCount)
}

func CompareSamples(uploaded, reference []byte, samples int) int {
	if len(uploaded) == 0 || len(reference) == 0 || samples <= 0 {
		return 0
	}
	if samples > len(uploaded) {
		samples = len(uploaded)
	}

	matches := 0
	for i := 0; i < samples; i++ {
		a := int(uploaded[i*len(uploaded)/samples])
		b := int(reference[i*len(reference)/samples])
		diff := a - b
		if diff < 0 {
			diff = -diff
		}
		if diff <= ByteTolerance {
			matches++
		}
	}
	return matches * 100 / samples
}
