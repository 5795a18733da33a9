package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"nextrelease/internal/bump"
	"nextrelease/internal/config"
	"nextrelease/internal/gitrepo"
	"nextrelease/internal/history"
	"nextrelease/internal/logger"
	"nextrelease/internal/render"
	"nextrelease/internal/version"
	"nextrelease/pkg/release"
)

// App holds the flags and loaded configuration of one CLI invocation.
type App struct {
	logLevel   string
	logFile    string
	testMode   bool
	configFile string
	repoPath   string
	inputPath  string

	cfg *config.Config
}

// NewApp creates a new nextrelease CLI application
func NewApp() *App {
	return &App{repoPath: "."}
}

// CreateRootCommand creates and configures the root command
func (app *App) CreateRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "nextrelease",
		Short: "Compute the next semantic version from conventional commits",
		Long: `nextrelease inspects the commits made since the last tagged release, classifies
them as conventional commits and applies semantic versioning bump rules.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: app.initConfig,
	}

	rootCmd.PersistentFlags().StringVar(&app.logLevel, "log-level", "", "Set log level (debug|info|warn|error) [default: info]")
	rootCmd.PersistentFlags().StringVar(&app.logFile, "log-file", "", "Write logs to file instead of stderr")
	rootCmd.PersistentFlags().BoolVar(&app.testMode, "test-mode", false, "Run in deterministic test mode")
	rootCmd.PersistentFlags().StringVar(&app.configFile, "config", "", "Config file (default: .nextrelease.{yaml,toml,json} in the working directory)")
	rootCmd.PersistentFlags().StringVarP(&app.repoPath, "repo", "r", ".", "Git repository to read history from")
	rootCmd.PersistentFlags().StringVarP(&app.inputPath, "input", "i", "", "Read history from a YAML/JSON document instead of git (- for stdin)")

	app.addBumpCommand(rootCmd)
	app.addContextCommand(rootCmd)
	app.addExplainCommand(rootCmd)
	app.addVersionCommand(rootCmd)

	return rootCmd
}

func (app *App) initConfig(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(config.Options{ConfigFile: app.configFile, Flags: cmd.Flags()})
	if err != nil {
		return err
	}
	if err := logger.Configure(cfg.Log.Level, cfg.Log.File, cfg.TestMode); err != nil {
		return fmt.Errorf("failed to configure logger: %w", err)
	}
	if cfg.File != "" {
		logger.Debug("Loaded config file", "path", cfg.File)
	}
	if info, err := version.Current(); err != nil {
		logger.Warn("Binary was built with an invalid version", "error", err)
	} else if info.Development() {
		logger.Debug("Running a development build", "version", info.Version.String())
	}
	app.cfg = cfg
	return nil
}

// loadChain reads the release chain from the history document or the git repository.
func (app *App) loadChain(cmd *cobra.Command) (*release.Chain, []release.ID, error) {
	policy := app.cfg.BumpPolicy()

	switch app.inputPath {
	case "":
		reader, err := gitrepo.Open(app.repoPath, app.cfg.TagPattern())
		if err != nil {
			return nil, nil, err
		}
		return reader.Releases(policy)
	case "-":
		return history.Load(cmd.InOrStdin(), policy)
	default:
		return history.LoadFile(app.inputPath, policy)
	}
}

func (app *App) addBumpCommand(rootCmd *cobra.Command) {
	bumpCmd := &cobra.Command{
		Use:   "bump",
		Short: "Print the next version of the unreleased commits",
		Long: `Print the version the most recent release should get. When HEAD is already
tagged, the tag's version is printed without its leading "v".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			chain, _, err := app.loadChain(cmd)
			if err != nil {
				return err
			}
			if chain.Len() == 0 {
				logger.Warn("No commits found, using " + bump.BootstrapVersion + " as the next version")
				fmt.Fprintln(cmd.OutOrStdout(), bump.BootstrapVersion)
				return nil
			}
			next, err := chain.BumpHead()
			if err != nil {
				return err
			}
			sv, err := bump.ParseVersion(next)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), sv.String())
			return nil
		},
	}
	rootCmd.AddCommand(bumpCmd)
}

func (app *App) addContextCommand(rootCmd *cobra.Command) {
	var (
		bumpHead bool
		verify   string
	)

	contextCmd := &cobra.Command{
		Use:   "context",
		Short: "Print the release chain as a JSON document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			chain, ids, err := app.loadChain(cmd)
			if err != nil {
				return err
			}
			if bumpHead && chain.Len() > 0 {
				if _, err := chain.BumpHead(); err != nil {
					return err
				}
			}

			data, err := chain.View(ids...).AsIndentedJSON()
			if err != nil {
				return err
			}
			data = append(data, '\n')

			if verify == "" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}

			expected, err := os.ReadFile(verify)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", verify, err)
			}
			if diff := render.Diff(string(expected), string(data)); diff != "" {
				fmt.Fprint(cmd.OutOrStdout(), diff)
				return newExitError("release document differs from %s", verify)
			}
			logger.Info("Release document is up to date", "path", verify)
			return nil
		},
	}

	contextCmd.Flags().BoolVar(&bumpHead, "bump", false, "Assign the computed version to the unreleased head first")
	contextCmd.Flags().StringVar(&verify, "verify", "", "Compare the document with a file instead of printing it")
	rootCmd.AddCommand(contextCmd)
}

func (app *App) addExplainCommand(rootCmd *cobra.Command) {
	var (
		plain bool
		width int
	)

	explainCmd := &cobra.Command{
		Use:   "explain",
		Short: "Show how each unreleased commit affects the next version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			chain, _, err := app.loadChain(cmd)
			if err != nil {
				return err
			}
			head, ok := chain.Head()
			if !ok {
				return fmt.Errorf("no commits found")
			}

			exp, err := render.Explain(chain, head)
			if err != nil {
				return err
			}

			renderer, err := render.NewMarkdownRenderer(plain || app.cfg.TestMode, width)
			if err != nil {
				return err
			}
			out, err := renderer.Render(exp.Markdown())
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), out)
			return nil
		},
	}

	explainCmd.Flags().BoolVar(&plain, "plain", false, "Disable colors and styling")
	explainCmd.Flags().IntVar(&width, "width", 100, "Word wrap width")
	rootCmd.AddCommand(explainCmd)
}

func (app *App) addVersionCommand(rootCmd *cobra.Command) {
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display the version of nextrelease with build information.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info, err := version.Current()
			if err != nil {
				return err
			}
			detailed, _ := cmd.Flags().GetBool("detailed")
			if detailed {
				fmt.Fprintln(cmd.OutOrStdout(), info.Detailed())
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), info.Short())
			}
			return nil
		},
	}

	versionCmd.Flags().Bool("detailed", false, "Show detailed version information")
	rootCmd.AddCommand(versionCmd)
}
