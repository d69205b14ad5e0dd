package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fizic37/Delcampe-sub011/internal/cropper"
)

func newCombineCmd() *cobra.Command {
	var faceDir, versoDir, outDir string

	cmd := &cobra.Command{
		Use:   "combine",
		Short: "Join face and verso crops of the same sheet",
		Long: `Pairs every face crop with the verso crop at the same grid position,
writes each pair side by side, and stacks each column of pairs into one lot
image.`,
		Example: `  delcampe combine --face data/artifacts/<hash>/face/run-123 --verso data/artifacts/<hash2>/verso/run-456 --out lots/`,
		RunE: func(cmd *cobra.Command, args []string) error {
			combined, err := cropper.CombinePairs(faceDir, versoDir, outDir)
			if err != nil {
				return err
			}
			fmt.Printf("Wrote %d pairs and %d lot images to %s\n",
				len(combined.PairPaths), len(combined.LotPaths), outDir)
			return nil
		},
	}

	cmd.Flags().StringVar(&faceDir, "face", "", "Directory of face crops (required)")
	cmd.Flags().StringVar(&versoDir, "verso", "", "Directory of verso crops (required)")
	cmd.Flags().StringVar(&outDir, "out", "", "Output directory (required)")

	_ = cmd.MarkFlagRequired("face")
	_ = cmd.MarkFlagRequired("verso")
	_ = cmd.MarkFlagRequired("out")

	return cmd
}
