package checkpoint

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/zredeaux65/go-train-spawn/internal/payload"
)

func TestFileStore_RoundTrip(t *testing.T) {
	store := NewFileStore()
	ref := Ref(filepath.Join(t.TempDir(), "model.ckpt"))

	in := map[string]payload.Tensor{
		"w": {Device: "host", Shape: []int{2, 2}, Data: []float64{1, 2, 3, 4}},
		"b": {Device: "host", Shape: []int{2}, Data: []float64{0.5, -0.5}},
	}
	if err := store.Save(in, ref); err != nil {
		t.Fatalf("Save: %v", err)
	}

	out, err := store.Load(ref)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("loaded %d entries", len(out))
	}
	w := out["w"]
	if len(w.Shape) != 2 || w.Shape[0] != 2 || len(w.Data) != 4 || w.Data[3] != 4 {
		t.Errorf("w = %+v", w)
	}

	if err := store.Remove(ref); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(string(ref)); !os.IsNotExist(err) {
		t.Errorf("artifact still present: %v", err)
	}
}

func TestFileStore_SaveCreatesParentDirs(t *testing.T) {
	store := NewFileStore()
	ref := Ref(filepath.Join(t.TempDir(), "nested", "deep", "model.ckpt"))

	if err := store.Save(map[string]payload.Tensor{"w": {Device: "host", Data: []float64{1}}}, ref); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(string(ref)); err != nil {
		t.Errorf("artifact missing: %v", err)
	}
}

func TestFileStore_LoadMissing(t *testing.T) {
	store := NewFileStore()
	if _, err := store.Load(Ref(filepath.Join(t.TempDir(), "absent.ckpt"))); err == nil {
		t.Error("Load of a missing ref should fail")
	}
}

func TestFileStore_LoadRejectsNonStateDict(t *testing.T) {
	store := NewFileStore()
	dir := t.TempDir()

	data, err := payload.Marshal(payload.Value(int64(7)))
	if err != nil {
		t.Fatal(err)
	}
	scalar := filepath.Join(dir, "scalar.ckpt")
	if err := os.WriteFile(scalar, data, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Load(Ref(scalar)); err == nil {
		t.Error("a non-mapping artifact should be rejected")
	}

	garbage := filepath.Join(dir, "garbage.ckpt")
	if err := os.WriteFile(garbage, []byte("not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Load(Ref(garbage)); err == nil {
		t.Error("a corrupt artifact should be rejected")
	}
}

func TestFileStore_RemoveMissing(t *testing.T) {
	store := NewFileStore()
	if err := store.Remove(Ref(filepath.Join(t.TempDir(), "absent.ckpt"))); err == nil {
		t.Error("Remove of a missing ref should fail")
	}
}

func TestTracker(t *testing.T) {
	tr := NewTracker()
	if tr.BestRef() != "" {
		t.Errorf("fresh tracker ref = %q", tr.BestRef())
	}

	tr.SetBestRef("epoch-3.ckpt")
	if tr.BestRef() != "epoch-3.ckpt" {
		t.Errorf("ref = %q", tr.BestRef())
	}

	tr.SetBestRef("")
	if tr.BestRef() != "" {
		t.Errorf("ref = %q, want cleared", tr.BestRef())
	}
}
