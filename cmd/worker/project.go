package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/GoSim-25-26J-441/template-registry/internal/bootstrap"
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage projects and their API keys",
}

var projectCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a project and print its first API key",
	Long: `Create a project and print its first API key.

The key is printed once and cannot be recovered later. Issue a new one with
"worker project issue-key" if it is lost.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(app *bootstrap.App) error {
			p, key, err := app.Projects.CreateProject(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(map[string]interface{}{"project": p, "api_key": key})
		})
	},
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(app *bootstrap.App) error {
			projects, err := app.Projects.ListProjects(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(projects)
		})
	},
}

var projectIssueKeyCmd = &cobra.Command{
	Use:   "issue-key <project-id>",
	Short: "Issue an additional API key for a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(app *bootstrap.App) error {
			key, err := app.Projects.IssueKey(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(map[string]string{"project_id": args[0], "api_key": key})
		})
	},
}

var projectRevokeKeyCmd = &cobra.Command{
	Use:   "revoke-key <project-id> <key-prefix>",
	Short: "Deactivate an API key",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(app *bootstrap.App) error {
			if err := app.Projects.RevokeKey(cmd.Context(), args[0], args[1]); err != nil {
				return fmt.Errorf("revoke %s: %w", args[1], err)
			}
			fmt.Fprintf(os.Stdout, "revoked %s\n", args[1])
			return nil
		})
	},
}

func init() {
	projectCmd.AddCommand(projectCreateCmd, projectListCmd, projectIssueKeyCmd, projectRevokeKeyCmd)
	rootCmd.AddCommand(projectCmd)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
