package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"blogback/internal/app"
	"blogback/internal/blog"
	"blogback/internal/config"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates an App. The caller must defer
// a.Close().
func newApp(ctx context.Context) (*app.App, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewApp(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

// readPassphrase prompts on stderr and reads a passphrase without
// echoing it.
func readPassphrase(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return string(raw), nil
}

// archivePassphrase prompts for a passphrase only when the archive
// needs one.
func archivePassphrase(a *app.App, archivePath string) (string, error) {
	if !a.NeedsPassphrase(archivePath) {
		return "", nil
	}
	return readPassphrase("Passphrase for private key: ")
}

// confirm asks a yes/no question on stdin and returns true only for an
// explicit "yes".
func confirm(question string) bool {
	fmt.Printf("%s [yes/no]: ", question)
	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	return strings.TrimSpace(answer) == "yes"
}

var rootCmd = &cobra.Command{
	Use:   "blogback",
	Short: "Blog backup and restore tool",
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Base Dir:    %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:     %s\n", cfg.LogDir)
		fmt.Printf("Store:       %s (%s)\n", cfg.Store.Type, cfg.Store.Database)
		fmt.Printf("Blob Store:  %s\n", cfg.BlobStore.Type)
		fmt.Printf("Backup Dir:  %s\n", cfg.Backup.Dir)
		fmt.Printf("History:     %s\n", cfg.History.Type)
		fmt.Printf("Encryption:  %s\n", cfg.Encryption.Type)
		fmt.Printf("Interval:    %s\n", cfg.SchedulerInterval())
		return nil
	},
}

var configKeygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate an encryption key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		passphrase, err := readPassphrase("Passphrase for new private key: ")
		if err != nil {
			return err
		}
		repeat, err := readPassphrase("Repeat passphrase: ")
		if err != nil {
			return err
		}
		if passphrase != repeat {
			return fmt.Errorf("passphrases do not match")
		}

		if err := a.SetupEncryption(passphrase); err != nil {
			return fmt.Errorf("generating key pair: %w", err)
		}

		fmt.Println("Encryption key pair generated.")
		return nil
	},
}

// backup command
var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Manage backups",
}

var backupCreateCmd = &cobra.Command{
	Use:   "create [NAME]",
	Short: "Create a backup archive",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		name := ""
		if len(args) > 0 {
			name = args[0]
		}

		result, err := a.CreateBackup(cmd.Context(), name)
		if err != nil {
			return fmt.Errorf("backup failed: %w", err)
		}

		fmt.Printf("Backup complete: %s\n", result.Name)
		fmt.Printf("  Posts:   %d\n", result.Counts.Posts)
		fmt.Printf("  Topics:  %d\n", result.Counts.Topics)
		fmt.Printf("  Groups:  %d\n", result.Counts.Groups)
		fmt.Printf("  Files:   %d (%s)\n", result.Files, blog.FormatSize(result.TotalSize))
		fmt.Printf("  Archive: %s (%s)\n", result.Path, blog.FormatSize(result.ArchiveSize))
		return nil
	},
}

var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List backup archives",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		entries, err := a.ListBackups()
		if err != nil {
			return err
		}

		if len(entries) == 0 {
			fmt.Println("No backups found.")
			return nil
		}

		for _, e := range entries {
			fmt.Printf("%-50s  %10s  %s\n",
				e.Name,
				blog.FormatSize(e.Size),
				e.Modified.Format("2006-01-02 15:04:05"),
			)
		}
		return nil
	},
}

var backupDeleteCmd = &cobra.Command{
	Use:   "delete NAME",
	Short: "Delete a backup archive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.DeleteBackup(args[0]); err != nil {
			return fmt.Errorf("deleting backup: %w", err)
		}

		fmt.Printf("Deleted %s\n", args[0])
		return nil
	},
}

// pickArchive lists the available backups numbered and reads a
// selection from stdin.
func pickArchive(a *app.App) (string, error) {
	entries, err := a.ListBackups()
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", fmt.Errorf("no backups found")
	}

	fmt.Println("Available backups:")
	for i, e := range entries {
		fmt.Printf("  %d) %s  (%s, %s)\n", i+1, e.Name,
			blog.FormatSize(e.Size), e.Modified.Format("2006-01-02 15:04:05"))
	}
	fmt.Printf("Select a backup [1-%d]: ", len(entries))

	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("reading selection: %w", err)
	}
	n, err := strconv.Atoi(strings.TrimSpace(answer))
	if err != nil || n < 1 || n > len(entries) {
		return "", fmt.Errorf("invalid selection %q", strings.TrimSpace(answer))
	}
	return entries[n-1].Path, nil
}

// restore command
var restoreCmd = &cobra.Command{
	Use:   "restore [ARCHIVE]",
	Short: "Restore blog content from a backup archive",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		listOnly, _ := cmd.Flags().GetBool("list")
		skipConfirm, _ := cmd.Flags().GetBool("skip-confirm")
		preserve, _ := cmd.Flags().GetBool("preserve")
		dbOnly, _ := cmd.Flags().GetBool("db-only")

		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		var archivePath string
		if len(args) > 0 {
			archivePath = a.ResolveArchive(args[0])
		} else {
			archivePath, err = pickArchive(a)
			if err != nil {
				return err
			}
		}

		passphrase, err := archivePassphrase(a, archivePath)
		if err != nil {
			return err
		}

		if listOnly {
			manifest, err := a.InspectArchive(archivePath, passphrase)
			if err != nil {
				return err
			}
			fmt.Printf("Archive: %s\n", archivePath)
			fmt.Printf("  Created:  %s\n", manifest.BackupDate.Format("2006-01-02 15:04:05"))
			fmt.Printf("  Version:  %s\n", manifest.Version)
			fmt.Printf("  Database: %s\n", manifest.Database)
			fmt.Printf("  Posts:    %d\n", manifest.Collections.Posts)
			fmt.Printf("  Topics:   %d\n", manifest.Collections.Topics)
			fmt.Printf("  Groups:   %d\n", manifest.Collections.Groups)
			fmt.Printf("  Files:    %d (%s)\n", manifest.Files, blog.FormatSize(manifest.TotalFileSize))
			for _, f := range manifest.FilesList {
				fmt.Printf("    %s  %10s  %s\n", f.ID, blog.FormatSize(f.Size), f.Filename)
			}
			return nil
		}

		opts := blog.RestoreOptions{
			ClearExisting: !preserve,
			OnlyDatabase:  dbOnly,
		}

		if opts.ClearExisting && !skipConfirm {
			if !confirm("This will REPLACE all existing blog content. Continue?") {
				fmt.Println("Restore cancelled.")
				return nil
			}
		}

		result, err := a.Restore(cmd.Context(), archivePath, passphrase, opts)
		if err != nil {
			return fmt.Errorf("restore failed: %w", err)
		}

		fmt.Println("Restore complete:")
		fmt.Printf("  Posts:   %d\n", result.Posts)
		fmt.Printf("  Topics:  %d\n", result.Topics)
		fmt.Printf("  Groups:  %d\n", result.Groups)
		if !dbOnly {
			fmt.Printf("  Files:   %d restored, %d failed\n", result.BlobsRestored, result.BlobsFailed)
		}
		if result.UnresolvedRefs > 0 {
			fmt.Printf("  Warning: %d post(s) had group references that could not be resolved\n", result.UnresolvedRefs)
		}
		if result.RewrittenAttachments > 0 {
			fmt.Printf("  Attachments re-pointed at new file ids: %d\n", result.RewrittenAttachments)
		}
		return nil
	},
}

// status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show blog content and backup status",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		posts, err := a.Store().ListPosts(ctx)
		if err != nil {
			return fmt.Errorf("listing posts: %w", err)
		}
		topics, err := a.Store().ListTopics(ctx)
		if err != nil {
			return fmt.Errorf("listing topics: %w", err)
		}
		groups, err := a.Store().ListGroups(ctx)
		if err != nil {
			return fmt.Errorf("listing groups: %w", err)
		}
		blobs, err := a.Blobs().List(ctx)
		if err != nil {
			return fmt.Errorf("listing files: %w", err)
		}

		fmt.Printf("Posts:  %d\n", len(posts))
		fmt.Printf("Topics: %d\n", len(topics))
		fmt.Printf("Groups: %d\n", len(groups))
		fmt.Printf("Files:  %d\n", len(blobs))

		entries, err := a.ListBackups()
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("\nNo backups found.")
		} else {
			fmt.Printf("\nBackups: %d (latest: %s, %s)\n",
				len(entries),
				entries[0].Name,
				entries[0].Modified.Format("2006-01-02 15:04:05"),
			)
		}

		ops, err := a.History(1)
		if err != nil {
			return err
		}
		if len(ops) > 0 {
			fmt.Printf("Last operation: %s %s (%s)\n",
				ops[0].Operation, ops[0].Status,
				ops[0].StartedAt.Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

// watch command
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run scheduled backups until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		fmt.Println("Watching for changes. Press Ctrl-C to stop.")
		a.Watch(ctx)
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View backup operation history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		ops, err := a.History(limit)
		if err != nil {
			return err
		}

		if len(ops) == 0 {
			fmt.Println("No operations recorded.")
			return nil
		}

		for _, op := range ops {
			duration := ""
			if op.FinishedAt != nil {
				d := op.FinishedAt.Sub(op.StartedAt)
				duration = d.Truncate(time.Millisecond).String()
			}
			fmt.Printf("#%d  %-16s  %s  %-8s  %s\n",
				op.ID,
				op.Operation,
				op.StartedAt.Format("2006-01-02 15:04:05"),
				op.Status,
				duration,
			)
			if op.Archive != "" {
				fmt.Printf("     %s\n", op.Archive)
			}
			if op.Status == "error" && op.Message != "" {
				fmt.Printf("     %s\n", op.Message)
			}
		}
		return nil
	},
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configKeygenCmd)

	// backup subcommands
	backupCmd.AddCommand(backupCreateCmd)
	backupCmd.AddCommand(backupListCmd)
	backupCmd.AddCommand(backupDeleteCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(restoreCmd)
	restoreCmd.Flags().Bool("list", false, "Show the archive manifest without restoring")
	restoreCmd.Flags().Bool("skip-confirm", false, "Skip the confirmation prompt")
	restoreCmd.Flags().Bool("preserve", false, "Keep existing content instead of clearing it first")
	restoreCmd.Flags().Bool("db-only", false, "Restore collections only, skip files")
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of operations to show")
}
