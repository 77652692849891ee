package main

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/leifj/cdoc"
	"github.com/leifj/cdoc/metrics"
)

// app carries what the subcommands share.
type app struct {
	v      *viper.Viper
	logger *zap.Logger
	parser *cdoc.Parser
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:           "cdocinfo",
		Short:         "Inspect encrypted document containers",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.logger.Sync()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags := root.PersistentFlags()
	flags.BoolP("verbose", "v", false, "verbose logging")
	flags.StringP("output", "o", "text", "output format: text, json or yaml")
	flags.Int64("max-size", cdoc.DefaultMaxDocumentSize, "maximum container size in bytes")
	flags.String("metrics-addr", "", "serve Prometheus metrics on this address while running")
	flags.StringP("config", "c", "", "config file")
	_ = a.v.BindPFlags(flags)

	a.v.SetEnvPrefix("CDOC")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	root.AddCommand(
		newFilesCmd(a),
		newRecipientsCmd(a),
		newInspectCmd(a),
		newSelectCmd(a),
		newGenCmd(a),
	)
	return root
}

func (a *app) init() error {
	if path := a.v.GetString("config"); path != "" {
		a.v.SetConfigFile(path)
		if err := a.v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", path, err)
		}
	}

	logger, err := newLogger(a.v.GetBool("verbose"))
	if err != nil {
		return err
	}
	a.logger = logger

	opts := []cdoc.Option{
		cdoc.WithLogger(logger),
		cdoc.WithMaxDocumentSize(a.v.GetInt64("max-size")),
	}
	if addr := a.v.GetString("metrics-addr"); addr != "" {
		registry := prometheus.NewRegistry()
		opts = append(opts, cdoc.WithMetricsRecorder(metrics.NewPrometheusRecorderWithRegistry(registry)))
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
			if err := http.ListenAndServe(addr, mux); err != nil {
				logger.Warn("metrics listener stopped", zap.String("addr", addr), zap.Error(err))
			}
		}()
	}
	a.parser = cdoc.NewParser(opts...)
	return nil
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}

// open returns the named file, or stdin for "-".
func open(name string) (*os.File, error) {
	if name == "-" {
		return os.Stdin, nil
	}
	return os.Open(name)
}
