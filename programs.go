package ffsys

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"

	ffslog "github.com/leodido/ffsys/internal/log"
)

// InstallPrograms copies the enabled command-line tools from dist/bin into
// binDir, replacing earlier copies. It returns the installed paths.
func InstallPrograms(ctx context.Context, dist, binDir string, target Target, fs FeatureSet) ([]string, error) {
	logger := ffslog.FromContext(ctx)

	var installed []string
	for _, prog := range Programs() {
		if !fs.Enabled(prog.Feature) {
			continue
		}
		name := prog.Name + target.ExeSuffix()
		src := filepath.Join(dist, "bin", name)
		dst := filepath.Join(binDir, name)

		if err := os.MkdirAll(binDir, 0o755); err != nil {
			return installed, &StageError{Stage: StageInstall, Err: err}
		}
		if err := copyExecutable(src, dst); err != nil {
			return installed, &StageError{Stage: StageInstall, Cmd: "copy " + src, Err: err}
		}
		logger.Info().
			Str(ffslog.FieldStage, string(StageInstall)).
			Str(ffslog.FieldPath, dst).
			Msg("installed program")
		installed = append(installed, dst)
	}
	return installed, nil
}

func copyExecutable(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	pending, err := renameio.NewPendingFile(dst)
	if err != nil {
		return fmt.Errorf("create pending %s: %w", dst, err)
	}
	defer pending.Cleanup()

	if _, err := io.Copy(pending, in); err != nil {
		return fmt.Errorf("copy to %s: %w", dst, err)
	}
	if err := pending.Chmod(0o755); err != nil {
		return err
	}
	return pending.CloseAtomicallyReplace()
}
