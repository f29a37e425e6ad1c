package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"bojmock/internal/cli/command"
	"bojmock/internal/cli/config"
	httpclient "bojmock/internal/cli/http"
	"bojmock/internal/cli/repl"
	"bojmock/internal/cli/state"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run starts the REPL, or runs the leftover arguments as one command:
//
//	cli run lang=py file=main.py input=3
func run(args []string) int {
	fs := flag.NewFlagSet("cli", flag.ContinueOnError)
	configPath := fs.String("config", "configs/cli.yaml", "path to the CLI config file")
	baseURL := fs.String("base", "", "runner base URL")
	timeout := fs.Duration("timeout", 0, "HTTP timeout, e.g. 10s")
	statePath := fs.String("state", "", "file holding the session defaults")
	pretty := fs.Bool("pretty", false, "also print the raw JSON reply")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		return 1
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
	if *pretty {
		cfg.PrettyJSON = pretty
	}

	defaults, err := state.Load(cfg.StatePath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load state:", err)
		return 1
	}
	session := repl.New(httpclient.New(cfg.BaseURL, cfg.Timeout), command.Registry(), &defaults, cfg.StatePath, cfg.Pretty(), os.Stdout)

	if rest := fs.Args(); len(rest) > 0 {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if err := session.Execute(ctx, shellJoin(rest)); err != nil && !errors.Is(err, repl.ErrExit) {
			fmt.Fprintln(os.Stderr, "error:", err)
			return 1
		}
		return 0
	}
	if err := session.Run(context.Background(), cfg.HistoryFile); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

// shellJoin single-quotes each argument so the REPL tokenizer splits the
// line back into the same arguments.
func shellJoin(args []string) string {
	quoted := make([]string, len(args))
	for i, a := range args {
		quoted[i] = "'" + strings.ReplaceAll(a, "'", `'"'"'`) + "'"
	}
	return strings.Join(quoted, " ")
}
