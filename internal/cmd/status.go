package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/koalasec/photon-sync/internal/config"
	"github.com/koalasec/photon-sync/internal/logger"
	"github.com/koalasec/photon-sync/internal/output"
	"github.com/koalasec/photon-sync/internal/snapshot"
)

// statusReport summarizes the on-disk dataset state.
type statusReport struct {
	Region          string    `json:"region" yaml:"region"`
	Strategy        string    `json:"strategy" yaml:"strategy"`
	DataDir         string    `json:"data_dir" yaml:"data_dir"`
	HasCurrent      bool      `json:"has_current" yaml:"has_current"`
	Generations     []string  `json:"generations" yaml:"generations"`
	SourceURL       string    `json:"source_url,omitempty" yaml:"source_url,omitempty"`
	Checksum        string    `json:"checksum,omitempty" yaml:"checksum,omitempty"`
	ChecksumSkipped bool      `json:"checksum_skipped,omitempty" yaml:"checksum_skipped,omitempty"`
	SizeBytes       int64     `json:"size_bytes,omitempty" yaml:"size_bytes,omitempty"`
	LastSuccess     time.Time `json:"last_success,omitempty" yaml:"last_success,omitempty"`
	NextDue         time.Time `json:"next_due,omitempty" yaml:"next_due,omitempty"`
}

func (r statusReport) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Region:      %s\n", orPlanet(r.Region))
	fmt.Fprintf(&b, "Strategy:    %s\n", r.Strategy)
	fmt.Fprintf(&b, "Data dir:    %s\n", r.DataDir)
	fmt.Fprintf(&b, "Current:     %v\n", r.HasCurrent)
	if len(r.Generations) > 0 {
		fmt.Fprintf(&b, "Generations: %s\n", strings.Join(r.Generations, ", "))
	}
	if r.SourceURL != "" {
		fmt.Fprintf(&b, "Source:      %s\n", r.SourceURL)
	}
	if r.Checksum != "" {
		fmt.Fprintf(&b, "Checksum:    %s\n", r.Checksum)
	} else if r.ChecksumSkipped {
		fmt.Fprintf(&b, "Checksum:    (verification skipped)\n")
	}
	if r.SizeBytes > 0 {
		fmt.Fprintf(&b, "Size:        %.2f GB\n", float64(r.SizeBytes)/(1<<30))
	}
	if !r.LastSuccess.IsZero() {
		fmt.Fprintf(&b, "Last update: %s\n", r.LastSuccess.Format(time.RFC3339))
		fmt.Fprintf(&b, "Next due:    %s\n", r.NextDue.Format(time.RFC3339))
	} else {
		fmt.Fprintf(&b, "Last update: never\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func orPlanet(region string) string {
	if region == "" {
		return "planet"
	}
	return region
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the dataset generations and last update",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := output.ParseFormat(outputFormat)
			if err != nil {
				return err
			}

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			// Status is read-only reporting; store recovery logs would
			// only pollute the formatted output.
			store, err := snapshot.Open(cfg.DataDir, logger.Discard())
			if err != nil {
				return err
			}

			meta, err := store.ReadMetadata()
			if err != nil {
				return err
			}

			report := statusReport{
				Region:          cfg.Region,
				Strategy:        cfg.UpdateStrategy.String(),
				DataDir:         cfg.DataDir,
				HasCurrent:      store.HasCurrent(),
				SourceURL:       meta.SourceURL,
				Checksum:        meta.Checksum,
				ChecksumSkipped: meta.ChecksumSkipped,
				SizeBytes:       meta.SizeBytes,
				LastSuccess:     meta.LastSuccess,
			}
			for _, g := range store.Generations() {
				report.Generations = append(report.Generations, g.String())
			}
			if !meta.LastSuccess.IsZero() {
				report.NextDue = meta.LastSuccess.Add(cfg.UpdateInterval)
			}

			return output.NewWriter(os.Stdout, format).Write(report)
		},
	}
}
