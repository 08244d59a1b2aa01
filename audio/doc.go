// Package audio holds the sample-level signal processing shared by the proxy,
// the playback buffer and the encoder: crossfade stitching of batched chunks,
// gain and low-pass conditioning, mu-law expansion, PCM conversions and
// linear resampling. All functions work on little-endian 16-bit PCM and never
// mutate their inputs.
package audio
