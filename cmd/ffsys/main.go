package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/leodido/ffsys"
)

// Build metadata injected via ldflags.
// When built without ldflags these remain empty and the version command
// omits them.
var (
	version = ""
	commit  = ""
	date    = ""
)

func main() {
	root := &cobra.Command{
		Use:   "ffsys",
		Short: "Build, probe and bind FFmpeg for cgo",
		Long: `ffsys builds FFmpeg from source (or locates a prebuilt copy), probes its
headers for API availability, resolves the libraries the final link needs
and generates a cgo binding file.

Results are written as a directive stream, a Go build-tag list, a cgo
environment file and a JSON report.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(buildCmd())
	root.AddCommand(probeCmd())
	root.AddCommand(switchesCmd())
	root.AddCommand(libsCmd())
	root.AddCommand(bindingsCmd())
	root.AddCommand(versionCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := root.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(reportFailure(err))
	}
}

// reportFailure prints err for the operator and returns the exit code.
func reportFailure(err error) int {
	var se *ffsys.StageError
	if errors.As(err, &se) {
		fmt.Fprintf(os.Stderr, "FAIL: %s — %s\n", se.Stage, se.Reason())
		fmt.Fprintln(os.Stderr, se.Error())
		return 1
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return 1
}

func failureJSON(err error) map[string]any {
	out := map[string]any{"ok": false, "error": err.Error()}
	var se *ffsys.StageError
	if errors.As(err, &se) {
		out["stage"] = se.Stage
		out["reason"] = se.Reason()
	}
	return out
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show tool version and host information",
		RunE: func(c *cobra.Command, args []string) error {
			if version != "" {
				fmt.Printf("ffsys %s", version)
				if commit != "" {
					fmt.Printf(" (%s)", commit)
				}
				if date != "" {
					fmt.Printf(" built %s", date)
				}
				fmt.Println()
			} else {
				fmt.Println("ffsys (dev)")
			}
			fmt.Printf("Host: %s (%d cores)\n", ffsys.HostTarget(), ffsys.HostParallelism())
			fmt.Printf("Default FFmpeg release: %s\n", ffsys.DefaultVersion)
			return nil
		},
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
