package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agent-memory/agent-memory/internal/backup"
	"github.com/agent-memory/agent-memory/internal/config"
	"github.com/agent-memory/agent-memory/internal/runtime"
)

// backupCommand groups create/list/cleanup, mirroring the teacher's
// migrations.CLI backupCommand/backupCreateCommand/backupListCommand/
// backupCleanupCommand shape (one cobra.Command per verb, no shared
// state beyond a freshly loaded config each time).
func (cli *CLI) backupCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Manage on-disk database snapshots",
	}
	cmd.AddCommand(
		cli.backupCreateCommand(),
		cli.backupListCommand(),
		cli.backupCleanupCommand(),
	)
	return cmd
}

func (cli *CLI) withBackupManager(fn func(ctx context.Context, mgr *backup.Manager) error) error {
	cfg, err := config.LoadConfig(cli.configPath)
	if err != nil {
		return usageError(fmt.Errorf("load config: %w", err))
	}

	ctx := context.Background()
	rt, err := runtime.Global().Bootstrap(ctx, cfg)
	if err != nil {
		return failureError(fmt.Errorf("bootstrap runtime: %w", err))
	}
	defer func() { _ = rt.Shutdown(ctx) }()

	return fn(ctx, backup.New(cfg, rt.Storage))
}

func (cli *CLI) backupCreateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Short: "Create a database snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.withBackupManager(func(ctx context.Context, mgr *backup.Manager) error {
				info, err := mgr.Create(ctx)
				if err != nil {
					return failureError(fmt.Errorf("create backup: %w", err))
				}
				fmt.Printf("backup created: %s (%d bytes)\n", info.Path, info.SizeBytes)
				return nil
			})
		},
	}
}

func (cli *CLI) backupListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available database snapshots",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.withBackupManager(func(ctx context.Context, mgr *backup.Manager) error {
				infos, err := mgr.List()
				if err != nil {
					return failureError(fmt.Errorf("list backups: %w", err))
				}
				if len(infos) == 0 {
					fmt.Println("no backups found")
					return nil
				}
				for _, info := range infos {
					fmt.Printf("%-40s %10d bytes  %s\n", info.Name, info.SizeBytes, info.CreatedAt.Format("2006-01-02 15:04:05"))
				}
				return nil
			})
		},
	}
}

func (cli *CLI) backupCleanupCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Remove snapshots beyond the retention limit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.withBackupManager(func(ctx context.Context, mgr *backup.Manager) error {
				removed, err := mgr.Cleanup()
				if err != nil {
					return failureError(fmt.Errorf("cleanup backups: %w", err))
				}
				fmt.Printf("removed %d backup(s)\n", len(removed))
				return nil
			})
		},
	}
}
