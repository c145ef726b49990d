package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/sleepstars/yuanbao2api/internal/clients"
	"github.com/sleepstars/yuanbao2api/internal/config"
	"github.com/sleepstars/yuanbao2api/internal/logger"
	"github.com/sleepstars/yuanbao2api/internal/metrics"
	"github.com/sleepstars/yuanbao2api/internal/modelbridge"
	"github.com/sleepstars/yuanbao2api/internal/models"
	"github.com/sleepstars/yuanbao2api/internal/orchestrator"
	"github.com/sleepstars/yuanbao2api/internal/server"
)

type globalFlags struct {
	configPath string
	envFile    string
	logLevel   string
}

func NewRootCmd() *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:           "yuanbao2api",
		Short:         "OpenAI-compatible chat completions backed by Tencent Yuanbao",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), flags)
		},
	}
	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "config.yml", "Path to the configuration file")
	root.PersistentFlags().StringVar(&flags.envFile, "env-file", ".env", "Optional dotenv file loaded before the config")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Override log_level from the config")

	root.AddCommand(newServeCmd(flags))
	root.AddCommand(newChatCmd(flags))
	root.AddCommand(newModelsCmd())
	return root
}

func newServeCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), flags)
		},
	}
}

func newChatCmd(flags *globalFlags) *cobra.Command {
	var modelFlag string
	var hideThinking bool

	cmd := &cobra.Command{
		Use:   "chat [prompt...]",
		Short: "Send one prompt upstream and stream the answer to stdout",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			model, err := models.ParseChatModel(modelFlag)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			// stdout carries the answer
			logger.GetLogger().SetOutput(cmd.ErrOrStderr())

			client, err := clients.NewYuanbaoClient(cfg)
			if err != nil {
				return err
			}
			o := orchestrator.NewOrchestrator(client, modelbridge.NewTranslator(nil), cfg)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			events, err := o.CreateCompletion(ctx, &models.ChatCompletionRequest{
				Messages:  models.ChatMessages{{Role: "user", Content: strings.Join(args, " ")}},
				ChatModel: model,
			})
			if err != nil {
				return err
			}

			thinking := cmd.ErrOrStderr()
			if hideThinking {
				thinking = nil
			}
			reason, err := printEvents(ctx, events, cmd.OutOrStdout(), thinking)
			if err != nil {
				return err
			}
			logger.GetLogger().Debug("Finished: %s", reason)
			return nil
		},
	}
	cmd.Flags().StringVarP(&modelFlag, "model", "m", models.DeepSeekR1.PublicName(), "Model name")
	cmd.Flags().BoolVar(&hideThinking, "no-thinking", false, "Do not print reasoning to stderr")
	return cmd
}

func newModelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List supported model names",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, m := range models.ChatModels() {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", m.PublicName(), m.UpstreamID())
			}
			return nil
		},
	}
}

func runServe(ctx context.Context, flags *globalFlags) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}
	log := logger.GetLogger().WithComponent("main")

	client, err := clients.NewYuanbaoClient(cfg)
	if err != nil {
		return fmt.Errorf("build upstream client: %w", err)
	}

	m := metrics.NewCompletionMetrics(prometheus.DefaultRegisterer)
	o := orchestrator.NewOrchestrator(client, modelbridge.NewTranslator(m), cfg)
	srv := server.New(cfg, o, m, prometheus.DefaultGatherer)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("Serving models %v, auth enabled: %v", models.ChatModels(), cfg.Key != "")
	return srv.Run(ctx)
}

// loadConfig reads the dotenv file if present, then the YAML config, and
// applies the log level
func loadConfig(flags *globalFlags) (*config.Config, error) {
	if flags.envFile != "" {
		if err := godotenv.Load(flags.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load env file: %w", err)
		}
	}

	cfg, err := config.LoadConfig(flags.configPath)
	if err != nil {
		return nil, err
	}

	levelName := cfg.LogLevel
	if flags.logLevel != "" {
		levelName = flags.logLevel
	}
	level, err := logger.ParseLevel(levelName)
	if err != nil {
		return nil, err
	}
	logger.InitLogger(level, "yuanbao2api")
	logger.GetLogger().SetLevel(level)
	return cfg, nil
}
