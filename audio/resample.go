package audio

// Resample converts one channel of 16-bit samples from srcRate to dstRate using
// linear interpolation. If the rates match the input is returned unchanged.
func Resample(samples []int16, srcRate, dstRate int) []int16 {
	if srcRate == dstRate || srcRate <= 0 || dstRate <= 0 || len(samples) == 0 {
		return samples
	}
	n := int(int64(len(samples)) * int64(dstRate) / int64(srcRate))
	if n == 0 {
		return nil
	}
	out := make([]int16, n)
	ratio := float64(srcRate) / float64(dstRate)
	last := len(samples) - 1
	for i := range out {
		pos := float64(i) * ratio
		idx := int(pos)
		if idx >= last {
			out[i] = samples[last]
			continue
		}
		frac := pos - float64(idx)
		a, b := float64(samples[idx]), float64(samples[idx+1])
		out[i] = clamp16(int32(a + (b-a)*frac))
	}
	return out
}

// Downmix averages channels into a single channel, clamping to int16.
func Downmix(channels [][]int16) []int16 {
	switch len(channels) {
	case 0:
		return nil
	case 1:
		return channels[0]
	}
	n := len(channels[0])
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		var sum int32
		for _, ch := range channels {
			if i < len(ch) {
				sum += int32(ch[i])
			}
		}
		out[i] = clamp16(sum / int32(len(channels)))
	}
	return out
}
