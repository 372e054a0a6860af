// Package cli provides the command-line interface for zeev.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/zeev/internal/cli/commands"
	"github.com/leapstack-labs/zeev/internal/config"
	"github.com/leapstack-labs/zeev/internal/logging"
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// rootOptions holds the global flags that are not config layers.
type rootOptions struct {
	configFile string
	dir        string
	verbose    bool
	logFormat  string
}

// skipSession lists commands that run without a loaded configuration.
var skipSession = map[string]bool{
	"help":             true,
	"completion":       true,
	"__complete":       true,
	"__completeNoDesc": true,
	"version":          true,
	"init":             true,
}

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "zeev",
		Short: "zeev - front-end build orchestrator",
		Long: `zeev watches the sources of a front-end project and rebuilds what changed.

JavaScript is bundled with esbuild, styles are compiled with sass and HTML
forms are compiled, written to the output directory and synced to the forms
database. A static dev server with live reload and a JSON mock API can run
alongside the watcher.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			logger := logging.New(cmd.ErrOrStderr(), opts.logOptions())
			ctx := config.WithLogger(cmd.Context(), logger)

			if !skipSession[cmd.Name()] {
				cfg, err := config.Load(config.LoadOptions{
					ConfigFile: opts.configFile,
					Dir:        opts.dir,
					Flags:      cmd.Root().PersistentFlags(),
					Logger:     logger,
				})
				if err != nil {
					return err
				}
				if cfg.ConfigFile != "" {
					logger.Debug("using config file", "path", cfg.ConfigFile)
				}
				ctx = config.NewContext(ctx, cfg)
			}

			cmd.SetContext(ctx)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
`)

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&opts.configFile, "config", "c", "", "config file (default: ./zeev.yaml)")
	pf.StringVarP(&opts.dir, "dir", "C", ".", "Project directory")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose output")
	pf.StringVar(&opts.logFormat, "log-format", logging.FormatText, "Log format (text|json)")
	pf.String(config.FlagOutDir, "", "Output directory (default: ./dist)")
	pf.Int(config.FlagPort, 0, "Static server port (default: 8181)")
	pf.Int(config.FlagMockPort, 0, "Mock server port (default: 8282)")

	_ = rootCmd.RegisterFlagCompletionFunc("log-format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{logging.FormatText, logging.FormatJSON}, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(commands.NewVersionCommand(commands.VersionInfo{Version: Version, GitCommit: GitCommit, BuildDate: BuildDate}))
	rootCmd.AddCommand(commands.NewDevCommand())
	rootCmd.AddCommand(commands.NewBuildCommand())
	rootCmd.AddCommand(commands.NewTargetsCommand())
	rootCmd.AddCommand(commands.NewResolveCommand())
	rootCmd.AddCommand(commands.NewInitCommand())
	rootCmd.AddCommand(NewCompletionCommand())

	return rootCmd
}

func (o *rootOptions) logOptions() logging.Options {
	level := slog.LevelInfo
	if o.verbose {
		level = slog.LevelDebug
	}
	return logging.Options{Level: level, Format: o.logFormat}
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command
// context so running servers shut down gracefully.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := NewRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// NewCompletionCommand creates the completion command.
func NewCompletionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for zeev.

To load completions:

Bash:
  $ source <(zeev completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ zeev completion bash > /etc/bash_completion.d/zeev
  # macOS:
  $ zeev completion bash > $(brew --prefix)/etc/bash_completion.d/zeev

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. Execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ zeev completion zsh > "${fpath[1]}/_zeev"

Fish:
  $ zeev completion fish | source

  # To load completions for each session, execute once:
  $ zeev completion fish > ~/.config/fish/completions/zeev.fish

PowerShell:
  PS> zeev completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}
	return cmd
}
