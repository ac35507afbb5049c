package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/joeblew999/plat-mapbridge/internal/api"
	"github.com/joeblew999/plat-mapbridge/internal/config"
	"github.com/joeblew999/plat-mapbridge/internal/logging"
	"github.com/joeblew999/plat-mapbridge/internal/schema"
	"github.com/joeblew999/plat-mapbridge/internal/server"
)

// Options defines the CLI flags and env vars for the bridge server.
// Flags: --host, --port, --config, --log-format
// Env vars: SERVICE_HOST, SERVICE_PORT, SERVICE_CONFIG, SERVICE_LOG_FORMAT
type Options struct {
	Host      string `doc:"Host to bind to" default:"0.0.0.0"`
	Port      int    `doc:"Port to listen on" short:"p" default:"8086"`
	Config    string `doc:"Path to a YAML config file"`
	LogFormat string `doc:"Log format (json or text)" default:"json" enum:"json,text"`
}

func newServer(cli humacli.CLI, opts *Options, logger *slog.Logger) (*server.Server, error) {
	settings, err := config.Load(opts.Config, cli.Root().PersistentFlags())
	if err != nil {
		return nil, err
	}
	return server.New(server.Config{
		Host:     opts.Host,
		Port:     fmt.Sprintf("%d", opts.Port),
		Settings: settings,
		Logger:   logger,
	})
}

func exit(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func main() {
	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		logger := logging.Setup("mapbridge", api.Version, opts.LogFormat, nil)
		srv, err := newServer(cli, opts, logger)
		if err != nil {
			exit(err)
		}
		httpServer := &http.Server{
			Addr:              fmt.Sprintf("%s:%d", opts.Host, opts.Port),
			Handler:           srv,
			ReadHeaderTimeout: 10 * time.Second,
		}

		hooks.OnStart(func() {
			displayHost := opts.Host
			if displayHost == "0.0.0.0" {
				displayHost = "localhost"
			}
			baseURL := fmt.Sprintf("http://%s:%d", displayHost, opts.Port)

			fmt.Println()
			fmt.Printf("plat-mapbridge server starting...\n")
			fmt.Printf("  Page:    %s/?maps=m1\n", baseURL)
			fmt.Printf("  Docs:    %s/docs\n", baseURL)
			fmt.Printf("  OpenAPI: %s/openapi.json\n", baseURL)
			fmt.Printf("  Metrics: %s/metrics\n", baseURL)
			fmt.Println()

			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
				defer cancel()
				if err := srv.Prefetch(ctx); err != nil {
					logger.Warn("prefetch library assets", "error", err)
				}
			}()

			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("server stopped", "error", err)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Close(ctx); err != nil {
				logger.Warn("destroy maps", "error", err)
			}
			if err := httpServer.Shutdown(ctx); err != nil {
				logger.Warn("shutdown", "error", err)
			}
		})
	})

	cli.Root().Use = "mapbridge"
	cli.Root().Short = "Drive interactive vector maps over HTTP"
	cli.Root().Version = api.Version
	config.RegisterFlags(cli.Root().PersistentFlags())

	// spec subcommand: export OpenAPI spec
	specCmd := &cobra.Command{
		Use:   "spec",
		Short: "Export OpenAPI spec (JSON by default, --yaml for YAML)",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			srv, err := newServer(cli, opts, logging.Discard())
			if err != nil {
				exit(err)
			}
			spec := srv.OpenAPI()

			useYAML, _ := cmd.Flags().GetBool("yaml")

			var output []byte
			if useYAML {
				output, err = yaml.Marshal(spec)
			} else {
				output, err = json.MarshalIndent(spec, "", "  ")
			}
			if err != nil {
				exit(fmt.Errorf("marshal spec: %w", err))
			}
			fmt.Println(string(output))
		}),
	}
	specCmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	cli.Root().AddCommand(specCmd)

	// schema subcommand: print the JSON Schema of a map document
	schemaCmd := &cobra.Command{
		Use:       "schema <name>",
		Short:     "Print the JSON Schema for a map document type",
		Args:      cobra.ExactArgs(1),
		ValidArgs: schema.Names(),
		Run: func(cmd *cobra.Command, args []string) {
			out, err := schema.Generate(args[0])
			if err != nil {
				exit(err)
			}
			fmt.Println(string(out))
		},
	}
	cli.Root().AddCommand(schemaCmd)

	cli.Run()
}
