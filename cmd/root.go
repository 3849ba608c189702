// Package cmd defines the quote-harvester CLI.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/quote-harvester/internal/app"
	"github.com/JakeFAU/quote-harvester/internal/config"
	"github.com/JakeFAU/quote-harvester/internal/logging"
	"github.com/JakeFAU/quote-harvester/internal/quote"
)

// App is what the subcommands drive. It is an interface so tests can swap
// in a mock through newApp.
type App interface {
	Backfill(ctx context.Context) (quote.Summary, error)
	Update(ctx context.Context) (quote.Summary, error)
	Close(ctx context.Context) error
}

// newApp is the application factory; tests replace it.
var newApp = func(ctx context.Context, opts app.Options) (App, error) {
	return app.New(ctx, opts)
}

// rootOptions is filled by the persistent flags and PersistentPreRunE.
type rootOptions struct {
	cfgFile string
	cfg     config.Config
	logger  *zap.Logger
}

func newRootCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quote-harvester",
		Short: "Incrementally harvest a numbered quote collection into a local store.",
		Long: `quote-harvester copies every quote of a sequentially numbered collection
(bash.im by default) into a SQLite file or a Postgres database.

"init" performs the full backfill; "update" fetches only the quotes published
since the last completed run.`,
		SilenceErrors: true,
		// Unknown subcommands land here as positional args and print usage.
		Args: cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			return errors.New("a subcommand is required")
		},

		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.New(logging.Config{
				Development: cfg.Logging.Development,
				Level:       cfg.Logging.Level,
			})
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			opts.cfg = cfg
			opts.logger = logger
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "YAML config file (environment variables use the HARVESTER_ prefix)")

	cmd.AddCommand(newInitCmd(opts))
	cmd.AddCommand(newUpdateCmd(opts))
	return cmd
}

// Execute runs the CLI until completion or SIGINT/SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	opts := &rootOptions{}
	root := newRootCmd(opts)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err != nil {
		if opts.logger != nil {
			opts.logger.Error("command failed", zap.Error(err))
		} else {
			_, _ = fmt.Fprintln(stderr, "Error:", err)
		}
	}
	if opts.logger != nil {
		_ = opts.logger.Sync()
	}
	return err
}

type runFunc func(App, context.Context) (quote.Summary, error)

// runMode builds the App for storePath, runs one mode and always releases the App.
func runMode(cmd *cobra.Command, opts *rootOptions, storePath string, run runFunc) (err error) {
	cmd.SilenceUsage = true
	ctx := cmd.Context()

	a, err := newApp(ctx, app.Options{
		Config:    opts.cfg,
		StorePath: storePath,
		Logger:    opts.logger,
	})
	if err != nil {
		return fmt.Errorf("initialize application services: %w", err)
	}
	defer func() {
		if cerr := a.Close(context.WithoutCancel(ctx)); cerr != nil {
			opts.logger.Warn("failed to close application services", zap.Error(cerr))
			if err == nil {
				err = cerr
			}
		}
	}()

	summary, err := run(a, ctx)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "processed=%d skipped=%d failed=%d watermark=%d\n",
		summary.Processed, summary.Skipped, summary.Failed, summary.FinalToID)
	return err
}
