package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newQuotaCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quota",
		Short: "Show or change the generation counter",
		Long: `Without a subcommand, prints the generation counter. Each successful
generation decrements it; it is not clamped at zero.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), opts.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			fmt.Println(a.studio.Quota())
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set <n>",
		Short: "Set the counter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid count %q: %w", args[0], err)
			}

			a, err := openApp(cmd.Context(), opts.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			a.studio.SetQuota(cmd.Context(), n)
			fmt.Println(a.studio.Quota())
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "decrement",
		Short: "Decrement the counter by one",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), opts.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			fmt.Println(a.studio.DecrementQuota(cmd.Context()))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Remove the stored counter",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), opts.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			a.studio.ResetQuota(cmd.Context())
			fmt.Println(a.studio.Quota())
			return nil
		},
	})

	return cmd
}
