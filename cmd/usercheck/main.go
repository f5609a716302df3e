package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/MrSnakeDoc/usercheck/internal/app"
	"github.com/MrSnakeDoc/usercheck/internal/config"
	"github.com/MrSnakeDoc/usercheck/internal/version"
)

const usage = `usage:
  usercheck [serve]                 run the HTTP API
  usercheck check [flags] name...   check usernames and print a report
  usercheck version                 print build information
`

func main() {
	cmd := "serve"
	args := os.Args[1:]
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "serve":
		if err := app.New().Run(); err != nil {
			log.Fatalf("❌ usercheck failed to start: %v", err)
		}
	case "check":
		os.Exit(runCheck(args))
	case "version":
		fmt.Println(version.String())
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
}

func runCheck(args []string) int {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	platforms := fs.String("platforms", "", "comma-separated platform ids (default: whole catalog)")
	priority := fs.Int("priority", 0, "check priority 1-10 (default: USERCHECK_DEFAULT_PRIORITY)")
	concurrent := fs.Int("concurrent", 0, "usernames checked at once (default: USERCHECK_BATCH_MAX_CONCURRENT)")
	format := fs.String("format", "text", "output format: text, json or csv")
	noColor := fs.Bool("no-color", false, "disable colored text output")
	fs.Usage = func() {
		fmt.Fprint(fs.Output(), usage)
		fs.PrintDefaults()
	}
	_ = fs.Parse(args)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var ids []string
	for _, p := range strings.Split(*platforms, ",") {
		if p = strings.TrimSpace(p); p != "" {
			ids = append(ids, p)
		}
	}

	err := app.RunCheck(ctx, config.Load(), app.CheckOptions{
		Usernames:     fs.Args(),
		Platforms:     ids,
		Priority:      *priority,
		MaxConcurrent: *concurrent,
		Format:        *format,
		NoColor:       *noColor,
		Out:           os.Stdout,
	})
	switch {
	case err == nil:
		return 0
	case errors.Is(err, app.ErrCheckFailed):
		fmt.Fprintf(os.Stderr, "⚠️  %v\n", err)
		return 1
	default:
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		return 2
	}
}
