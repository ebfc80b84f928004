package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/samvad-hq/samvad-rpc/internal/app"
	"github.com/samvad-hq/samvad-rpc/internal/config"
	"github.com/samvad-hq/samvad-rpc/internal/logger"
)

var exampleUsage = strings.TrimSpace(`
  rpccall https://api.example.com/v1/status
  rpccall -X POST -d '{"name":"x"}' https://api.example.com/v1/items
  rpccall -e billing -X POST -d '{"invoice":7}' v1/invoices
  rpccall history -n 20
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(app.ExitCode(err))
	}
}

func newRootCmd() *cobra.Command {
	var (
		method    string
		data      string
		dataFile  string
		binary    bool
		headers   []string
		endpoint  string
		timeoutMS int64
	)

	root := &cobra.Command{
		Use:           "rpccall [flags] <url-or-path>",
		Short:         "Perform one JSON-over-HTTP call and print the decoded result",
		Example:       exampleUsage,
		Version:       getVersion(),
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			target := ""
			if len(args) == 1 {
				target = args[0]
			}
			if target == "" && endpoint == "" {
				return fmt.Errorf("a target URL (or -e endpoint) is required")
			}

			body, err := loadBody(data, dataFile)
			if err != nil {
				return err
			}
			headerMap, err := parseHeaders(headers)
			if err != nil {
				return err
			}

			caller, cleanup, err := newCaller()
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			result, err := caller.Execute(ctx, app.CallRequest{
				Method:   strings.ToUpper(strings.TrimSpace(method)),
				Target:   target,
				Endpoint: endpoint,
				Body:     body,
				Binary:   binary,
				Headers:  headerMap,
				Timeout:  time.Duration(timeoutMS) * time.Millisecond,
			})
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return fmt.Errorf("render result: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}

	root.Flags().StringVarP(&method, "method", "X", "GET", "HTTP method")
	root.Flags().StringVarP(&data, "data", "d", "", "JSON request body")
	root.Flags().StringVar(&dataFile, "data-file", "", "read the request body from a file")
	root.Flags().BoolVar(&binary, "binary", false, "send the body as opaque bytes instead of JSON")
	root.Flags().StringArrayVarP(&headers, "header", "H", nil, "request header (Name: value), repeatable")
	root.Flags().StringVarP(&endpoint, "endpoint", "e", "", "named endpoint from the endpoints file")
	root.Flags().Int64VarP(&timeoutMS, "timeout-ms", "t", 0, "per-call timeout in milliseconds")

	root.AddCommand(newHistoryCmd())
	return root
}

func newHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:           "history",
		Short:         "List recently recorded calls",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			caller, cleanup, err := newCaller()
			if err != nil {
				return err
			}
			defer cleanup()

			entries, err := caller.Recent(limit)
			if err != nil {
				return fmt.Errorf("read history: %w", err)
			}
			for _, e := range entries {
				line := fmt.Sprintf("%s  %-7s %s  %s", e.At.Format(time.RFC3339), e.Method, e.URL, e.Outcome)
				if e.Status != 0 {
					line += fmt.Sprintf(" (%d)", e.Status)
				}
				if e.Message != "" {
					line += "  " + e.Message
				}
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "maximum entries to list")
	return cmd
}

// newCaller loads config, initializes logging, and wires the runtime.
func newCaller() (*app.Caller, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	if _, err := logger.Init(cfg); err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}

	caller, err := app.NewCaller(cfg, logger.Zap{})
	if err != nil {
		logger.Close()
		return nil, nil, err
	}

	cleanup := func() {
		caller.Close()
		_ = logger.Close()
	}
	return caller, cleanup, nil
}

// loadBody returns the request payload from -d or --data-file (mutually exclusive).
func loadBody(data, dataFile string) ([]byte, error) {
	if data != "" && dataFile != "" {
		return nil, fmt.Errorf("use either -d or --data-file, not both")
	}
	if dataFile != "" {
		raw, err := os.ReadFile(dataFile)
		if err != nil {
			return nil, fmt.Errorf("read body file: %w", err)
		}
		return raw, nil
	}
	if data != "" {
		return []byte(data), nil
	}
	return nil, nil
}

// parseHeaders converts repeated "Name: value" flags into a header map.
func parseHeaders(raw []string) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(raw))
	for _, h := range raw {
		name, value, ok := strings.Cut(h, ":")
		name = strings.TrimSpace(name)
		value = strings.TrimSpace(value)
		if !ok || name == "" {
			return nil, fmt.Errorf("malformed header %q (expected \"Name: value\")", h)
		}
		out[name] = value
	}
	return out, nil
}
