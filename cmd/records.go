package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/fizic37/Delcampe-sub011/internal/extraction"
	"github.com/fizic37/Delcampe-sub011/internal/models"
	"github.com/fizic37/Delcampe-sub011/internal/storage"
)

func newRecordsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "records",
		Short: "Inspect and move stored processing records",
	}

	cmd.AddCommand(newRecordsListCmd())
	cmd.AddCommand(newRecordsShowCmd())
	cmd.AddCommand(newRecordsExportCmd())
	cmd.AddCommand(newRecordsImportCmd())
	cmd.AddCommand(newRecordsManifestCmd())

	return cmd
}

// withApp opens the configured store for the duration of fn.
func withApp(cmd *cobra.Command, fn func(a *app) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	a, err := openApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func newRecordsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every stored record",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app) error {
				records, err := a.store.ListRecords(cmd.Context())
				if err != nil {
					return err
				}

				tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "FINGERPRINT\tKIND\tGRID\tCROPS\tCOMPLETE\tVERSION\tCREATED")
				for _, r := range records {
					fmt.Fprintf(tw, "%s\t%s\t%dx%d\t%d/%d\t%t\t%d\t%s\n",
						shortHash(r.FingerprintHash), r.Kind, r.GridRows, r.GridCols,
						len(r.Produced()), len(r.ArtifactPaths), r.Complete, r.Version,
						r.CreatedAt.Format("2006-01-02 15:04"))
				}
				return tw.Flush()
			})
		},
	}
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}

func newRecordsShowCmd() *cobra.Command {
	var asYAML bool

	cmd := &cobra.Command{
		Use:   "show FINGERPRINT [face|verso]",
		Short: "Show one record and whether it can still be reused",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rawKind := ""
			if len(args) == 2 {
				rawKind = args[1]
			}
			kind, err := models.ParseKind(rawKind)
			if err != nil {
				return err
			}

			return withApp(cmd, func(a *app) error {
				rec, found, err := a.gateway.Lookup(cmd.Context(), args[0], kind)
				if err != nil {
					return err
				}
				if !found {
					return fmt.Errorf("no %s record for %s: %w", kind, args[0], storage.ErrNotFound)
				}
				cand, err := a.gateway.Evaluate(cmd.Context(), rec)
				if err != nil {
					return err
				}

				if asYAML {
					enc := yaml.NewEncoder(os.Stdout)
					enc.SetIndent(2)
					defer enc.Close()
					return enc.Encode(cand)
				}
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(cand)
			})
		},
	}

	cmd.Flags().BoolVar(&asYAML, "yaml", false, "Print YAML instead of JSON")

	return cmd
}

func newRecordsExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export FILE",
		Short: "Write every record to a .parquet or .jsonl file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app) error {
				records, err := a.store.ListRecords(cmd.Context())
				if err != nil {
					return err
				}
				if err := storage.ExportRecords(args[0], records); err != nil {
					return err
				}
				fmt.Printf("Exported %d records to %s\n", len(records), args[0])
				return nil
			})
		},
	}
}

func newRecordsImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Load records from a .parquet or .jsonl file, replacing existing ones",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := storage.LoadRecords(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, func(a *app) error {
				for _, r := range records {
					if err := a.gateway.Upsert(cmd.Context(), r); err != nil {
						return fmt.Errorf("failed to import %s: %w", r.Key(), err)
					}
				}
				fmt.Printf("Imported %d records from %s\n", len(records), args[0])
				return nil
			})
		},
	}
}

func newRecordsManifestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "manifest DIR",
		Short: "Print the manifest an extraction left in its output directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, rects, err := extraction.ReadManifest(args[0])
			if err != nil {
				return err
			}

			fmt.Printf("Fingerprint: %s\nKind: %s\nGrid: %dx%d\nComplete: %t\n",
				rec.FingerprintHash, rec.Kind, rec.GridRows, rec.GridCols, rec.Complete)
			fmt.Printf("H: %v\nV: %v\n", rec.BoundariesH, rec.BoundariesV)
			for i, r := range rects {
				path := ""
				if i < len(rec.ArtifactPaths) {
					path = rec.ArtifactPaths[i]
				}
				if path == "" {
					path = "(missing)"
				}
				fmt.Printf("  row %d col %d  %s\n", r.Row, r.Col, path)
			}
			return nil
		},
	}
}
