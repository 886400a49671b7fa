package cmd

import (
	"fmt"
	"log/slog"

	"github.com/lehigh-university-libraries/studio/internal/export"
	"github.com/spf13/cobra"
)

func newSessionsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sessions",
		Aliases: []string{"designs"},
		Short:   "Manage designs and their history",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List designs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), opts.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			active := a.studio.View().SessionID
			for _, s := range a.studio.Sessions() {
				marker := " "
				if s.ID == active {
					marker = "*"
				}
				fmt.Printf("%s %s  %-12s %d versions  %s\n", marker, s.ID, s.Name, len(s.History), s.CreatedAt.Format("2006-01-02 15:04"))
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "new",
		Short: "Start a new design",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), opts.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			created, ok := a.studio.CreateSession(cmd.Context())
			if !ok {
				slog.Info("Active design is still empty, not creating another")
				return printJSON(a.studio.View())
			}
			return printJSON(created)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Print a design and its history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), opts.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			s, ok := a.studio.Session(args[0])
			if !ok {
				return fmt.Errorf("design not found: %s", args[0])
			}
			return printJSON(s)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "select <id>",
		Short: "Make a design active",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), opts.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if !a.studio.SelectSession(cmd.Context(), args[0]) {
				return fmt.Errorf("design not found: %s", args[0])
			}
			return printJSON(a.studio.View())
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a design",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), opts.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if !a.studio.DeleteSession(cmd.Context(), args[0]) {
				return fmt.Errorf("design not found: %s", args[0])
			}
			slog.Info("Design deleted", "session_id", args[0])
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "export <file.yaml|file.parquet>",
		Short: "Export every design's history",
		Example: `  studio sessions export history.yaml
  studio sessions export history.parquet`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), opts.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			designs := a.studio.Sessions()
			if err := export.WriteFile(args[0], designs); err != nil {
				return err
			}
			slog.Info("History exported", "path", args[0], "designs", len(designs))
			return nil
		},
	})

	return cmd
}
