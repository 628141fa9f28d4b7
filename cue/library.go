package cue

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/loopsmith/loopsync/internal/wavio"
)

// decodedCacheSize bounds the loader cache. Even a 40-variant library
// for both kinds fits with room for churn.
const decodedCacheSize = 128

// Loader loads reference libraries, caching decoded waveforms keyed by
// path and modification time so repeated batch runs skip the disk.
type Loader struct {
	cfg   LibraryConfig
	cache *lru.Cache[string, wavio.Clip]
}

// NewLoader returns a Loader with the given bounds.
func NewLoader(cfg LibraryConfig) (*Loader, error) {
	cache, err := lru.New[string, wavio.Clip](decodedCacheSize)
	if err != nil {
		return nil, fmt.Errorf("cue: create decode cache: %w", err)
	}
	return &Loader{cfg: cfg.normalize(), cache: cache}, nil
}

// Load reads the reference library from dir: per kind, the canonical
// waveform first, then per-take variants newest-first, capped to
// MaxPerKind total. A missing canonical is a hard error (ErrNoCanonical);
// an unreadable variant is skipped with a warning, so one bad take
// capture never blocks detection.
func (l *Loader) Load(dir string) (Library, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Library{}, fmt.Errorf("cue: read reference dir: %w", err)
	}

	var lib Library
	for _, kind := range []Kind{KindStart, KindEnd} {
		refs, err := l.loadKind(dir, kind, entries)
		if err != nil {
			return Library{}, err
		}
		switch kind {
		case KindStart:
			lib.Starts = refs
		case KindEnd:
			lib.Ends = refs
		}
	}
	return lib, nil
}

// variantFile pairs a directory entry with its modification time for
// newest-first capping.
type variantFile struct {
	name string
	mod  int64
}

func (l *Loader) loadKind(dir string, kind Kind, entries []os.DirEntry) ([]Waveform, error) {
	canonical := canonicalName(kind)
	prefix := string(kind) + "_"

	var (
		haveCanonical bool
		variants      []variantFile
	)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		switch {
		case name == canonical:
			haveCanonical = true
		case strings.HasPrefix(name, prefix) && strings.HasSuffix(name, ".wav"):
			info, err := e.Info()
			if err != nil {
				slog.Warn("cue: skipping unreadable variant", "file", name, "error", err)
				continue
			}
			variants = append(variants, variantFile{name: name, mod: info.ModTime().UnixNano()})
		}
	}

	if !haveCanonical {
		return nil, fmt.Errorf("cue: %s in %s: %w", canonical, dir, ErrNoCanonical)
	}

	// Newest first; the cap keeps correlation cost bounded as takes pile up.
	sort.Slice(variants, func(i, j int) bool { return variants[i].mod > variants[j].mod })
	if max := l.cfg.MaxPerKind - 1; len(variants) > max {
		variants = variants[:max]
	}

	refs := make([]Waveform, 0, 1+len(variants))

	clip, err := l.decode(filepath.Join(dir, canonical))
	if err != nil {
		return nil, fmt.Errorf("cue: canonical %s: %w", canonical, err)
	}
	refs = append(refs, Waveform{
		ID:      strings.TrimSuffix(canonical, ".wav"),
		Kind:    kind,
		Samples: clip.Samples,
		Rate:    clip.Rate,
	})

	for _, v := range variants {
		clip, err := l.decode(filepath.Join(dir, v.name))
		if err != nil {
			slog.Warn("cue: skipping undecodable variant", "file", v.name, "error", err)
			continue
		}
		if clip.Rate != refs[0].Rate {
			slog.Warn("cue: skipping variant with mismatched rate",
				"file", v.name, "rate", clip.Rate, "want", refs[0].Rate)
			continue
		}
		refs = append(refs, Waveform{
			ID:      strings.TrimSuffix(v.name, ".wav"),
			Kind:    kind,
			Samples: clip.Samples,
			Rate:    clip.Rate,
		})
	}
	return refs, nil
}

// decode returns the clip for path, from cache when the file has not
// changed since it was last read.
func (l *Loader) decode(path string) (wavio.Clip, error) {
	info, err := os.Stat(path)
	if err != nil {
		return wavio.Clip{}, err
	}
	key := fmt.Sprintf("%s|%d", path, info.ModTime().UnixNano())
	if clip, ok := l.cache.Get(key); ok {
		return clip, nil
	}
	clip, err := wavio.ReadFile(path)
	if err != nil {
		return wavio.Clip{}, err
	}
	l.cache.Add(key, clip)
	return clip, nil
}
