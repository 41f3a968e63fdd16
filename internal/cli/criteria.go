package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fmuoria/resume-screener/internal/criteria"
	"github.com/fmuoria/resume-screener/internal/models"
)

func newCriteriaCommand(root *rootOptions) *cobra.Command {
	var (
		jobPath string
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "criteria",
		Short: "Suggest evaluation criteria and key requirements for a job description",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			jd, err := os.ReadFile(jobPath)
			if err != nil {
				return fmt.Errorf("failed to read job description: %w", err)
			}

			a, err := root.newApp(cmd.Context(), cfg, appOptions{logOut: cmd.ErrOrStderr()})
			if err != nil {
				return err
			}
			defer a.Close()

			s, err := a.agent.CreateSession(cmd.Context(), models.CreateSessionRequest{JobDescription: string(jd)})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{
					"criteria":     s.GeneratedCriteria,
					"requirements": s.Requirements,
				})
			}

			fmt.Fprintln(out, "Suggested criteria:")
			for i, c := range s.GeneratedCriteria {
				fmt.Fprintf(out, "  %2d. %s\n", i+1, c)
			}
			fmt.Fprintln(out, "\nKey requirements:")
			for _, category := range criteria.RequirementCategories {
				fmt.Fprintf(out, "  %s: %s\n", category, s.Requirements[category])
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&jobPath, "job", "j", "", "file containing the job description (required)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of text")
	_ = cmd.MarkFlagRequired("job")
	return cmd
}

func newConfigCommand(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write the current configuration (defaults plus environment) to the config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.loadConfigUnvalidated()
			if err != nil {
				return err
			}
			if root.configPath != "" {
				err = cfg.SaveTo(root.configPath)
			} else {
				err = cfg.Save()
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Configuration saved")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Check the configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := root.loadConfig(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Configuration is valid")
			return nil
		},
	})
	return cmd
}
