package audio

// FadeBytes is the length of the linear ramp applied at every inner chunk boundary.
const FadeBytes = 64

// Stitch concatenates chunks, ramping in the first FadeBytes of every chunk but
// the first and ramping out the last FadeBytes of every chunk but the last.
// The ramp works byte-wise on the interleaved stream, so the output length is
// always the sum of the input lengths and bytes away from a boundary are
// copied verbatim.
func Stitch(chunks [][]byte) []byte {
	total := 0
	for _, c := range chunks {
		total += len(c)
	}
	out := make([]byte, 0, total)
	for i, c := range chunks {
		start := len(out)
		out = append(out, c...)
		seg := out[start:]
		n := len(seg)
		if i > 0 {
			for p := 0; p < FadeBytes && p < n; p++ {
				seg[p] = byte(float64(seg[p]) * float64(p) / FadeBytes)
			}
		}
		if i < len(chunks)-1 {
			from := n - FadeBytes
			if from < 0 {
				from = 0
			}
			for p := from; p < n; p++ {
				seg[p] = byte(float64(seg[p]) * float64(n-1-p) / FadeBytes)
			}
		}
	}
	return out
}
