package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fizic37/Delcampe-sub011/internal/dedup"
	"github.com/fizic37/Delcampe-sub011/internal/storage"
)

func newFingerprintCmd() *cobra.Command {
	var lookup bool

	cmd := &cobra.Command{
		Use:   "fingerprint FILE...",
		Short: "Print the content fingerprint of image files",
		Example: `  delcampe fingerprint scans/*.jpg

  # Also show how often each sheet was uploaded
  delcampe fingerprint --lookup scans/sheet1.jpg`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var gw *dedup.Gateway
			if lookup {
				cfg, err := loadConfig(cmd)
				if err != nil {
					return err
				}
				a, err := openApp(cfg)
				if err != nil {
					return err
				}
				defer a.Close()
				gw = a.gateway
			}

			for _, path := range args {
				hash, err := fingerprintFile(path)
				if err != nil {
					return err
				}
				if gw == nil {
					fmt.Printf("%s  %s\n", hash, path)
					continue
				}

				fp, err := gw.Fingerprint(cmd.Context(), hash)
				switch {
				case errors.Is(err, storage.ErrNotFound):
					fmt.Printf("%s  %s  (never uploaded)\n", hash, path)
				case err != nil:
					return err
				default:
					fmt.Printf("%s  %s  %s uploads=%d last_seen=%s\n", hash, path, fp.Kind, fp.UploadCount,
						fp.LastSeen.Format("2006-01-02 15:04:05"))
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&lookup, "lookup", false, "Look up each fingerprint in the record store")

	return cmd
}

func fingerprintFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	hash, err := dedup.FingerprintReader(f)
	if err != nil {
		return "", fmt.Errorf("failed to fingerprint %s: %w", path, err)
	}
	return hash, nil
}
