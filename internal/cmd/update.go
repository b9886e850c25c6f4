package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/koalasec/photon-sync/internal/output"
)

// updateResult is the printable outcome of a one-shot update.
type updateResult struct {
	Outcome    string `json:"outcome" yaml:"outcome"`
	Stage      string `json:"stage,omitempty" yaml:"stage,omitempty"`
	SkipReason string `json:"skip_reason,omitempty" yaml:"skip_reason,omitempty"`
	SizeBytes  int64  `json:"size_bytes,omitempty" yaml:"size_bytes,omitempty"`
	Duration   string `json:"duration" yaml:"duration"`
}

func (r updateResult) String() string {
	switch {
	case r.SkipReason != "":
		return fmt.Sprintf("update %s: %s", r.Outcome, r.SkipReason)
	case r.Stage != "":
		return fmt.Sprintf("update %s in stage %s after %s", r.Outcome, r.Stage, r.Duration)
	default:
		return fmt.Sprintf("update %s in %s (%d bytes downloaded)", r.Outcome, r.Duration, r.SizeBytes)
	}
}

func newUpdateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update",
		Short: "Run one forced update cycle and exit",
		Long: `Update runs a single forced cycle: download, verify, install, and promote.

The photon service is not managed; use this while the service is stopped, or
let the run daemon coordinate updates with service restarts.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := output.ParseFormat(outputFormat)
			if err != nil {
				return err
			}

			app, err := buildApp(false)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			start := time.Now()
			cycle := app.sched.RunCycle(ctx, true)

			result := updateResult{
				Outcome:    cycle.Outcome.String(),
				SkipReason: cycle.SkipReason,
				SizeBytes:  cycle.SizeBytes,
				Duration:   time.Since(start).Round(time.Millisecond).String(),
			}
			if cycle.Err != nil {
				result.Stage = cycle.Stage.String()
			}
			if err := output.NewWriter(os.Stdout, format).Write(result); err != nil {
				return err
			}
			return cycle.Err
		},
	}
}
