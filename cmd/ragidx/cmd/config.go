package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ragidx/ragidx/internal/config"
	"github.com/ragidx/ragidx/internal/output"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and manage the user-level ragidx config",
		Long: `config operates on the user config at ` + config.GetUserConfigPath() + `,
which sets personal defaults merged under any project .ragidx.yaml. It
does not touch the project config.`,
	}

	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigBackupCmd())
	cmd.AddCommand(newConfigRestoreCmd())

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the user config, or the built-in defaults if none exists",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.New(cmd.OutOrStdout())

			cfg, err := config.LoadUserConfig()
			if err != nil {
				return fmt.Errorf("load user config: %w", err)
			}
			if cfg == nil {
				out.Status("", fmt.Sprintf("No user config at %s; showing defaults:", config.GetUserConfigPath()))
				cfg = config.NewConfig()
			}

			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("marshal config: %w", err)
			}
			out.Code(string(data))
			return nil
		},
	}
}

func newConfigBackupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Snapshot the user config, keeping the newest backups",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.New(cmd.OutOrStdout())

			path, err := config.BackupUserConfig()
			if err != nil {
				return fmt.Errorf("backup user config: %w", err)
			}
			if path == "" {
				out.Status("", "No user config to back up")
				return nil
			}
			out.Successf("Backed up user config to %s", path)
			return nil
		},
	}
}

func newConfigRestoreCmd() *cobra.Command {
	var list bool

	cmd := &cobra.Command{
		Use:   "restore [backup-path]",
		Short: "Restore the user config from a backup",
		Long: `restore writes backup-path over the user config, after first backing
up whatever config is currently in place. Pass --list to see available
backups instead of restoring.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.New(cmd.OutOrStdout())

			if list || len(args) == 0 {
				backups, err := config.ListUserConfigBackups()
				if err != nil {
					return fmt.Errorf("list backups: %w", err)
				}
				if len(backups) == 0 {
					out.Status("", "No backups found")
					return nil
				}
				for _, b := range backups {
					out.Status("", b)
				}
				return nil
			}

			if err := config.RestoreUserConfig(args[0]); err != nil {
				return fmt.Errorf("restore user config: %w", err)
			}
			out.Successf("Restored user config from %s", args[0])
			return nil
		},
	}

	cmd.Flags().BoolVar(&list, "list", false, "List available backups instead of restoring")

	return cmd
}
