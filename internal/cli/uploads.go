package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fmuoria/resume-screener/internal/logging"
)

func newUploadsCommand(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "uploads",
		Short: "Inspect or clear the stored resume uploads",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List stored uploads whose text can be extracted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			logOpts := cfg.Logging()
			logOpts.Output = cmd.ErrOrStderr()
			files := newFileHandler(cfg, logging.Setup(logOpts))

			subs, err := files.LoadSubmissions()
			if err != nil {
				return err
			}
			if len(subs) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No uploads in %s\n", files.Dir())
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCANDIDATE\tCHARS\tPATH")
			for _, s := range subs {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", s.ID, s.Name, len(s.ResumeText), s.SourcePath)
			}
			return tw.Flush()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Delete every stored upload",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			logOpts := cfg.Logging()
			logOpts.Output = cmd.ErrOrStderr()
			files := newFileHandler(cfg, logging.Setup(logOpts))

			if err := files.ClearUploads(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %s\n", files.Dir())
			return nil
		},
	})
	return cmd
}
