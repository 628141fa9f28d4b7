// Package detect locates cue occurrences in decoded recordings by
// FFT-based cross-correlation against the reference library.
//
// # Pipeline
//
// For each reference of the requested kind:
//
//  1. Band-pass the recording (and the reference, so group delay
//     cancels) to suppress non-cue energy.
//  2. Normalize both to zero mean and unit variance; cross-correlate
//     (valid mode) and divide by the reference length, yielding an
//     approximate correlation coefficient per lag.
//  3. Abandon the reference when its best correlation stays under the
//     absent floor.
//  4. Derive the pick threshold from the strongest peak of this take,
//     anchored to the user threshold: ambient level varies per file, so
//     a fixed global threshold would over- or under-fire.
//  5. Suppress non-maxima: on the first sample over threshold, take the
//     true local maximum within the following minimum gap, emit it,
//     then resume scanning after that gap.
//
// Hits from all references of a kind are merged, time-ordered, and
// deduplicated keeping the earliest of any cluster. "No cue found" is a
// normal outcome and returns an empty list, never an error.
//
// Detection is pure and stateless: decoded samples in, hits out. Batch
// runs fan per-file work across a bounded worker pool and record
// per-file failures without aborting the rest.
package detect
