package ffsys

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestInstallPrograms(t *testing.T) {
	dist := t.TempDir()
	binDir := filepath.Join(t.TempDir(), "bin")
	if err := os.MkdirAll(filepath.Join(dist, "bin"), 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"ffmpeg", "ffprobe", "ffplay"} {
		if err := os.WriteFile(filepath.Join(dist, "bin", name), []byte("new "+name), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(binDir, "ffmpeg"), []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := InstallPrograms(context.Background(), dist, binDir, "x86_64-unknown-linux-gnu", NewFeatureSet("ffmpeg", "ffprobe"))
	if err != nil {
		t.Fatalf("InstallPrograms() error = %v", err)
	}
	want := []string{filepath.Join(binDir, "ffmpeg"), filepath.Join(binDir, "ffprobe")}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("installed mismatch (-want +got):\n%s", diff)
	}

	data, err := os.ReadFile(filepath.Join(binDir, "ffmpeg"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "new ffmpeg" {
		t.Errorf("ffmpeg = %q, want replaced copy", data)
	}
	info, err := os.Stat(filepath.Join(binDir, "ffprobe"))
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm()&0o111 == 0 {
		t.Errorf("ffprobe mode = %v, want executable", info.Mode())
	}
	if _, err := os.Stat(filepath.Join(binDir, "ffplay")); !os.IsNotExist(err) {
		t.Error("disabled program was installed")
	}
}

func TestInstallPrograms_Missing(t *testing.T) {
	_, err := InstallPrograms(context.Background(), t.TempDir(), t.TempDir(), "x86_64-unknown-linux-gnu", NewFeatureSet("ffplay"))
	if !errors.Is(err, ErrInstall) {
		t.Errorf("InstallPrograms() error = %v, want ErrInstall", err)
	}
}
