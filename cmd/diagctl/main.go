package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"diagflow/internal/config"
	"diagflow/pkg/bootstrap"
	_ "diagflow/pkg/inspect/docs"
	"diagflow/pkg/logger"
	"diagflow/pkg/logging"
	"diagflow/pkg/models"
	"diagflow/pkg/persist"
	"diagflow/pkg/tracing"
)

var (
	configFile string
)

// @title           diagflow Inspector API
// @version         1.0
// @description     Read-mostly view of a running diagnostic pipeline: stored messages, listeners, filters and counters

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:8089
// @BasePath  /api/v1

// @schemes   http

func main() {
	rootCmd := &cobra.Command{
		Use:   "diagctl",
		Short: "Diagnostic pipeline tool",
		Long:  "diagctl runs a configured diagnostic pipeline and inspects its message dumps",
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(reportCmd())
	rootCmd.AddCommand(showCmd())
	rootCmd.AddCommand(convertCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig resolves the config path from the flag or CONFIG_FILE. Without
// either the built-in defaults are used.
func loadConfig(earlyLog *logging.EarlyLog) (*config.Config, error) {
	if configFile == "" {
		configFile = os.Getenv("CONFIG_FILE")
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		earlyLog.Error("Failed to load config: %v", err)
		return nil, err
	}
	return cfg, nil
}

func serveCmd() *cobra.Command {
	var loadDump, saveDump string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the pipeline with the inspector API",
		RunE: func(cmd *cobra.Command, args []string) error {
			earlyLog := logging.NewEarlyLog()

			cfg, err := loadConfig(earlyLog)
			if err != nil {
				return err
			}

			log, err := logger.New(cfg.Logging.Level)
			if err != nil {
				earlyLog.Error("Failed to init logger: %v", err)
				return err
			}
			defer log.Sync()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			log.InfowCtx(ctx, "Starting diagctl", "pipeline", cfg.Pipeline.Name)

			app := NewApp(cfg, log, loadDump, saveDump)
			if err := app.Initialize(ctx); err != nil {
				log.ErrorwCtx(ctx, "Failed to initialize application", "error", err)
				return err
			}

			log.InfowCtx(ctx, "Service running")
			if err := app.Run(ctx); err != nil && err != context.Canceled {
				log.ErrorwCtx(ctx, "Service stopped with error", "error", err)
				return err
			}
			log.InfowCtx(ctx, "Service shutdown complete")
			return nil
		},
	}

	cmd.Flags().StringVar(&loadDump, "load", "", "Dump file to load into the store on start")
	cmd.Flags().StringVar(&saveDump, "save", "", "Dump file to write the store to on shutdown")
	return cmd
}

func reportCmd() *cobra.Command {
	var kind, text, dump string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Send one message through the configured pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			earlyLog := logging.NewEarlyLog()

			k, err := models.ParseKind(kind)
			if err != nil {
				earlyLog.Error("Invalid kind: %v", err)
				return err
			}
			if text == "" {
				return fmt.Errorf("--text is required")
			}

			cfg, err := loadConfig(earlyLog)
			if err != nil {
				return err
			}

			log, err := logger.New(cfg.Logging.Level)
			if err != nil {
				earlyLog.Error("Failed to init logger: %v", err)
				return err
			}
			defer log.Sync()

			tp, err := tracing.Init(cfg.Tracing)
			if err != nil {
				return fmt.Errorf("failed to initialize tracing: %w", err)
			}
			defer tp.Shutdown(context.Background())

			ctx, span := tp.Tracer("diagctl").Start(cmd.Context(), "report")
			defer span.End()

			b := bootstrap.NewBase(cfg, log)
			if err := b.InitPipeline(ctx); err != nil {
				return err
			}

			b.Pipeline.Report(ctx, k, "%s", text)

			if dump != "" {
				if err := b.Pipeline.Save(dump); err != nil {
					log.ErrorwCtx(ctx, "Failed to save dump", "path", dump, "error", err)
				}
			}
			return b.Shutdown(ctx, nil)
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "error", "Message kind: error, warning or unknown")
	cmd.Flags().StringVar(&text, "text", "", "Message text")
	cmd.Flags().StringVar(&dump, "save", "", "Dump file to write the stored message to")
	return cmd
}

func showCmd() *cobra.Command {
	var kind string
	var limit int

	cmd := &cobra.Command{
		Use:   "show <dump>",
		Short: "Print the messages of a dump file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			msgs, err := persist.LoadFile(args[0])
			if err != nil {
				return err
			}

			if kind != "" {
				k, err := models.ParseKind(kind)
				if err != nil {
					return err
				}
				msgs = filterKind(msgs, k)
			}
			if limit > 0 && len(msgs) > limit {
				msgs = msgs[len(msgs)-limit:]
			}

			return writeMessagesTable(cmd.OutOrStdout(), msgs)
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "Only show messages of this kind")
	cmd.Flags().IntVar(&limit, "limit", 0, "Only show the newest N messages")
	return cmd
}

func convertCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "convert <in> <out>",
		Short: "Re-encode a dump file, picking formats from the extensions",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := convertDump(args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "converted %d messages to %s\n", n, args[1])
			return nil
		},
	}
}

func convertDump(in, out string) (int, error) {
	msgs, err := persist.LoadFile(in)
	if err != nil {
		return 0, err
	}
	if err := persist.SaveFile(out, msgs); err != nil {
		return 0, err
	}
	return len(msgs), nil
}
