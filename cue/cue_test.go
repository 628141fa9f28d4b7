package cue

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/loopsmith/loopsync/internal/wavio"
)

func TestSynthesize_Deterministic(t *testing.T) {
	a := SynthesizeStart()
	b := SynthesizeStart()
	if len(a) != len(b) {
		t.Fatalf("lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("sample %d differs: %f vs %f", i, a[i], b[i])
		}
	}
}

func TestSynthesize_EndIsReversedStart(t *testing.T) {
	start := SynthesizeStart()
	end := SynthesizeEnd()
	if len(start) != len(end) {
		t.Fatalf("lengths differ: %d vs %d", len(start), len(end))
	}
	for i := range start {
		if start[i] != end[len(end)-1-i] {
			t.Fatalf("end is not the reversal at sample %d", i)
		}
	}
}

func TestSynthesize_PeakNormalized(t *testing.T) {
	peak := 0.0
	for _, s := range SynthesizeStart() {
		if a := math.Abs(s); a > peak {
			peak = a
		}
	}
	if math.Abs(peak-peakTarget) > 1e-9 {
		t.Errorf("peak = %f, want %f", peak, peakTarget)
	}
}

func TestSynthesize_ExpectedLength(t *testing.T) {
	wantSec := 3*burstDurS + 2*gapDurS
	want := int(wantSec * float64(PrimaryRate))
	if got := len(SynthesizeStart()); got != want {
		t.Errorf("length = %d samples, want %d", got, want)
	}
}

func TestEnsurePrimaryReferences_Idempotent(t *testing.T) {
	dir := t.TempDir()

	if err := EnsurePrimaryReferences(dir); err != nil {
		t.Fatalf("first ensure failed: %v", err)
	}
	for _, name := range []string{"start.wav", "end.wav"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("%s not written: %v", name, err)
		}
	}

	before, err := os.ReadFile(filepath.Join(dir, "start.wav"))
	if err != nil {
		t.Fatal(err)
	}
	if err := EnsurePrimaryReferences(dir); err != nil {
		t.Fatalf("second ensure failed: %v", err)
	}
	after, err := os.ReadFile(filepath.Join(dir, "start.wav"))
	if err != nil {
		t.Fatal(err)
	}
	if string(before) != string(after) {
		t.Error("second ensure rewrote start.wav; expected no-op")
	}
}

func TestEnsurePrimaryReferences_RoundTripsThroughWAV(t *testing.T) {
	dir := t.TempDir()
	if err := EnsurePrimaryReferences(dir); err != nil {
		t.Fatal(err)
	}

	clip, err := wavio.ReadFile(filepath.Join(dir, "start.wav"))
	if err != nil {
		t.Fatalf("decode canonical: %v", err)
	}
	if clip.Rate != PrimaryRate {
		t.Errorf("rate = %d, want %d", clip.Rate, PrimaryRate)
	}

	want := SynthesizeStart()
	if len(clip.Samples) != len(want) {
		t.Fatalf("length = %d, want %d", len(clip.Samples), len(want))
	}
	for i := range want {
		if math.Abs(clip.Samples[i]-want[i]) > 1.5/32768.0 {
			t.Fatalf("sample %d drifted beyond quantization: %f vs %f",
				i, clip.Samples[i], want[i])
		}
	}
}

func TestLoader_Load_MissingCanonical(t *testing.T) {
	loader, err := NewLoader(DefaultLibraryConfig())
	if err != nil {
		t.Fatal(err)
	}
	_, err = loader.Load(t.TempDir())
	if !errors.Is(err, ErrNoCanonical) {
		t.Errorf("err = %v, want ErrNoCanonical", err)
	}
}

func TestLoader_Load_CanonicalFirstThenNewestVariants(t *testing.T) {
	dir := t.TempDir()
	if err := EnsurePrimaryReferences(dir); err != nil {
		t.Fatal(err)
	}

	// Ten variants with strictly increasing mtimes. MaxPerKind clamps to
	// its floor of 8, so the library keeps the canonical plus the 7 newest.
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 10; i++ {
		id := fmt.Sprintf("%04d", i)
		path, err := WriteTakeVariant(dir, KindStart, id, []float64{0.1, 0.2, 0.3}, false)
		if err != nil {
			t.Fatal(err)
		}
		mod := base.Add(time.Duration(i) * time.Minute)
		if err := os.Chtimes(path, mod, mod); err != nil {
			t.Fatal(err)
		}
	}

	loader, err := NewLoader(LibraryConfig{MaxPerKind: 1})
	if err != nil {
		t.Fatal(err)
	}
	lib, err := loader.Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(lib.Starts) != 8 {
		t.Fatalf("loaded %d start refs, want 8", len(lib.Starts))
	}
	if lib.Starts[0].ID != "start" {
		t.Errorf("first ref = %q, want canonical", lib.Starts[0].ID)
	}
	if lib.Starts[1].ID != "start_0009" {
		t.Errorf("second ref = %q, want newest variant start_0009", lib.Starts[1].ID)
	}
	for _, ref := range lib.Starts {
		if ref.Kind != KindStart {
			t.Errorf("ref %q has kind %q", ref.ID, ref.Kind)
		}
	}
	if len(lib.Ends) != 1 {
		t.Errorf("loaded %d end refs, want canonical only", len(lib.Ends))
	}
}

func TestLoader_Load_SkipsCorruptVariant(t *testing.T) {
	dir := t.TempDir()
	if err := EnsurePrimaryReferences(dir); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "start_bad.wav"), []byte("junk"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := WriteTakeVariant(dir, KindStart, "good", []float64{0.5}, false); err != nil {
		t.Fatal(err)
	}

	loader, err := NewLoader(DefaultLibraryConfig())
	if err != nil {
		t.Fatal(err)
	}
	lib, err := loader.Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(lib.Starts) != 2 {
		t.Fatalf("loaded %d start refs, want canonical + good variant", len(lib.Starts))
	}
	for _, ref := range lib.Starts {
		if ref.ID == "start_bad" {
			t.Error("corrupt variant was loaded")
		}
	}
}

func TestWriteTakeVariant_SharedPrefix(t *testing.T) {
	dir := t.TempDir()
	take := []float64{0.4, -0.4, 0.4}

	path, err := WriteTakeVariant(dir, KindEnd, "0001", take, true)
	if err != nil {
		t.Fatal(err)
	}
	clip, err := wavio.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := len(SynthesizeEnd()) + len(take)
	if len(clip.Samples) != want {
		t.Errorf("variant length = %d, want canonical prefix + take = %d",
			len(clip.Samples), want)
	}
}

func TestWriteTakeVariant_Validation(t *testing.T) {
	dir := t.TempDir()
	if _, err := WriteTakeVariant(dir, Kind("mid"), "x", []float64{1}, false); !errors.Is(err, ErrBadKind) {
		t.Errorf("bad kind: err = %v, want ErrBadKind", err)
	}
	if _, err := WriteTakeVariant(dir, KindStart, "", []float64{1}, false); err == nil {
		t.Error("empty take id accepted")
	}
	if _, err := WriteTakeVariant(dir, KindStart, "x", nil, false); err == nil {
		t.Error("empty samples accepted")
	}
}
