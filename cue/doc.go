// Package cue builds and loads the reference waveform library used for
// take boundary detection.
//
// Two canonical waveforms anchor the library: a three-burst ascending
// chirp marking a take start, and its exact time-reversal marking a take
// end. Both are synthesized deterministically, so every installation
// produces bit-identical references. Alongside the canonicals the library
// holds per-take variants (start_<id>.wav / end_<id>.wav) captured from
// real takes; variants may share the canonical acoustic prefix so that
// short captures still correlate strongly against the canonical shape.
//
// The library is loaded once per process through a Loader, which caches
// decoded waveforms keyed by path and modification time. Load order is
// canonical first, then variants newest-first, capped so correlation cost
// stays bounded no matter how many takes a project accumulates.
//
// # Basic Usage
//
//	if err := cue.EnsurePrimaryReferences(dir); err != nil {
//	    return err
//	}
//	loader, err := cue.NewLoader(cue.DefaultLibraryConfig())
//	if err != nil {
//	    return err
//	}
//	lib, err := loader.Load(dir)
//	if err != nil {
//	    return err
//	}
//	hits := detector.Detect(samples, cue.PrimaryRate, lib.Starts)
package cue
