// Package encoder turns a captured voice note into MP3.
//
// A job runs synchronously through four weighted stages and reports its
// progress as it goes:
//
//   - decode the container into per-channel samples (10% to 30%)
//   - quantize to 16-bit PCM, matching the target channel count and rate (30% to 50%)
//   - push 1152-sample blocks through a stateful block encoder (50% to 90%)
//   - flush the encoder (95%) and concatenate every segment (100%)
//
// Exactly one terminal message, Success or Failure, ends every job. A fault in
// any stage fails the whole job and no partial output is returned.
package encoder
