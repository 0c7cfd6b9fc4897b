package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"judgeflow/internal/cli/command"
	"judgeflow/internal/cli/config"
	httpclient "judgeflow/internal/cli/http"
	"judgeflow/internal/cli/repl"
	"judgeflow/internal/cli/state"
)

const defaultConfigPath = "configs/judgectl.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	envFile := flag.String("env", ".env", "Optional dotenv file")
	baseURL := flag.String("base", "", "Override base URL")
	timeout := flag.Duration("timeout", 0, "Override HTTP timeout (e.g. 10s)")
	statePath := flag.String("state", "", "Override state path")
	deadline := flag.Duration("deadline", 0, "Override the client deadline for both modes")
	pretty := flag.Bool("pretty", false, "Pretty print JSON response")
	flag.Parse()

	cfg, err := config.Load(*configPath, *envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	if *baseURL != "" {
		cfg.BaseURL = *baseURL
	}
	if *timeout > 0 {
		cfg.Timeout = *timeout
	}
	if *statePath != "" {
		cfg.StatePath = *statePath
	}
	if *deadline > 0 {
		cfg.Policies.Run.ClientDeadline = *deadline
		cfg.Policies.Submit.ClientDeadline = *deadline
	}
	if *pretty {
		trueValue := true
		cfg.PrettyJSON = &trueValue
	}

	st, err := state.Load(cfg.StatePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load state failed: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	client := httpclient.New(cfg.BaseURL, cfg.Timeout)
	session := repl.New(client, command.Registry(), &st, cfg.StatePath, cfg.PrettyJSON != nil && *cfg.PrettyJSON, cfg.Policies)
	fmt.Printf("judgectl -> %s (type help)\n", cfg.BaseURL)
	if err := session.Run(ctx, cfg.HistoryPath); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
