package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/fizic37/Delcampe-sub011/internal/dedup"
	"github.com/fizic37/Delcampe-sub011/internal/models"
	"github.com/fizic37/Delcampe-sub011/internal/session"
)

func newExtractCmd() *cobra.Command {
	var (
		imagePath string
		rawKind   string
		rows      int
		cols      int
		reuse     bool
	)

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Crop one sheet without the web interface",
		Long: `Registers a sheet, seeds its grid and crops every cell.

The grid comes from the detector when one is configured, otherwise it is an
even split of --rows by --cols. When the sheet was processed before and all
of its crops still exist, --reuse keeps the earlier result instead.`,
		Example: `  # Split a face sheet into 3 rows of 4
  delcampe extract --image scans/sheet1.jpg --kind face --rows 3 --cols 4

  # Reuse a previous extraction when it is still intact
  delcampe extract --image scans/sheet1.jpg --kind face --reuse`,
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := models.ParseKind(rawKind)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			a, err := openApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			data, err := os.ReadFile(imagePath)
			if err != nil {
				return fmt.Errorf("failed to read image: %w", err)
			}

			ctx := cmd.Context()
			s := session.New(a.deps)
			defer s.Close()

			up, err := s.OnUpload(ctx, data, filepath.Base(imagePath), kind)
			if err != nil {
				return err
			}
			fmt.Printf("Fingerprint: %s (%dx%d)\n", up.Sheet.Hash, up.Sheet.NaturalW, up.Sheet.NaturalH)

			if cand := up.Candidate; cand != nil {
				if reuse && cand.Status == dedup.StatusReusable {
					snap, err := s.Decide(session.ActionReuse)
					if err != nil {
						return err
					}
					fmt.Printf("Reused version %d: %d crops in %s\n",
						snap.Record.Version, len(snap.Record.Produced()), snap.Record.OutputDir)
					return nil
				}
				if cand.Status == dedup.StatusStale {
					slog.Warn("Previous extraction is stale, reprocessing", "missing", len(cand.Missing))
				}
				if _, err := s.Decide(session.ActionReprocess); err != nil {
					return err
				}
			}

			if cmd.Flags().Changed("rows") || cmd.Flags().Changed("cols") {
				snap := s.Snapshot()
				if !cmd.Flags().Changed("rows") {
					rows = snap.Rows
				}
				if !cmd.Flags().Changed("cols") {
					cols = snap.Cols
				}
				if _, err := s.SetGridDimensions(rows, cols); err != nil {
					return err
				}
			}

			result, err := s.OnExtract(ctx)
			if err != nil {
				return err
			}

			rec := result.Record
			fmt.Printf("Extracted %dx%d grid, version %d: %d of %d crops in %s\n",
				rec.GridRows, rec.GridCols, rec.Version, len(rec.Produced()), len(result.Rects), rec.OutputDir)
			if result.Partial() {
				fmt.Printf("Missing cells: %v\n", result.Missing)
			}
			if result.ManifestPath != "" {
				fmt.Printf("Manifest: %s\n", result.ManifestPath)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&imagePath, "image", "", "Path to the scanned sheet (required)")
	cmd.Flags().StringVar(&rawKind, "kind", "face", "Sheet side: face or verso")
	cmd.Flags().IntVar(&rows, "rows", 0, "Grid rows (default from detector or DELCAMPE_ROWS)")
	cmd.Flags().IntVar(&cols, "cols", 0, "Grid columns (default from detector or DELCAMPE_COLS)")
	cmd.Flags().BoolVar(&reuse, "reuse", false, "Reuse an intact previous extraction of the same sheet")

	_ = cmd.MarkFlagRequired("image")

	return cmd
}
