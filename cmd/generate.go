package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/lehigh-university-libraries/studio/internal/studio"
	"github.com/spf13/cobra"
)

func newGenerateCmd(opts *rootOptions) *cobra.Command {
	var req studio.GenerateRequest

	cmd := &cobra.Command{
		Use:   "generate [prompt]",
		Short: "Run one generation and record it on a design",
		Long: `Runs a single generation against Replicate and appends the result to the
active design, or to the design named by --session.

Without --image the prompt produces a new image. With --image and --mask and
--inpaint the masked region is repainted. With --image and --controlnet the
image is used as a depth reference.`,
		Example: `  # Generate a new image
  studio generate "a red vintage car"

  # Inpaint a hosted image
  studio generate "add a hat" --image https://i.ibb.co/a/car.png --mask https://i.ibb.co/a/mask.png --inpaint`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Prompt = args[0]

			a, err := openApp(cmd.Context(), opts.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.studio.Generate(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("failed to generate image: %w", err)
			}
			return printJSON(result)
		},
	}

	cmd.Flags().StringVar(&req.Image, "image", "", "URL of the source image")
	cmd.Flags().StringVar(&req.Mask, "mask", "", "URL of the mask image")
	cmd.Flags().BoolVar(&req.Inpaint, "inpaint", false, "Repaint the masked region of --image")
	cmd.Flags().BoolVar(&req.Controlnet, "controlnet", false, "Use --image as a depth reference")
	cmd.Flags().StringVar(&req.SessionID, "session", "", "Design to record the result on")

	return cmd
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

