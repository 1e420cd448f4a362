package hub

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParsePathRoundTrip(t *testing.T) {
	path := "/home/u/.cache/huggingface/hub/models--TheBloke--TinyLlama-GGUF/snapshots/abc123/model.Q2_K.gguf"
	hf, err := ParsePath(path)
	if err != nil {
		t.Fatal(err)
	}
	if hf.Repo.String() != "TheBloke/TinyLlama-GGUF" {
		t.Fatalf("unexpected repo: %s", hf.Repo)
	}
	if hf.Filename != "model.Q2_K.gguf" || hf.Snapshot != "abc123" {
		t.Fatalf("unexpected file identity: %+v", hf)
	}
	if hf.AbsPath() != path {
		t.Fatalf("AbsPath round trip mismatch: got %s want %s", hf.AbsPath(), path)
	}
}

func TestParsePathRejectsNonConformingPath(t *testing.T) {
	if _, err := ParsePath("/some/random/file.gguf"); err == nil {
		t.Fatal("expected non-conforming path to be rejected")
	}
}

func TestListLocalModelsDiscoversGGUFFiles(t *testing.T) {
	tmp := t.TempDir()
	snapDir := filepath.Join(tmp, "hub", "models--Acme--Tiny", "snapshots", "rev1")
	if err := os.MkdirAll(snapDir, 0o755); err != nil {
		t.Fatal(err)
	}
	ggufPath := filepath.Join(snapDir, "tiny.Q4_K_M.gguf")
	if err := os.WriteFile(ggufPath, []byte("fake-gguf-bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(snapDir, "README.md"), []byte("not a model"), 0o644); err != nil {
		t.Fatal(err)
	}

	files, err := ListLocalModels(tmp)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 {
		t.Fatalf("expected exactly 1 gguf file, got %d: %+v", len(files), files)
	}
	if files[0].Filename != "tiny.Q4_K_M.gguf" {
		t.Fatalf("unexpected filename: %s", files[0].Filename)
	}
	if files[0].Size == nil || *files[0].Size != int64(len("fake-gguf-bytes")) {
		t.Fatalf("expected size to be populated, got %+v", files[0].Size)
	}
}

func TestListLocalModelsOnMissingHubDirReturnsEmpty(t *testing.T) {
	tmp := t.TempDir()
	files, err := ListLocalModels(tmp)
	if err != nil {
		t.Fatalf("missing hub dir should not error, got %v", err)
	}
	if len(files) != 0 {
		t.Fatalf("expected no files, got %d", len(files))
	}
}
