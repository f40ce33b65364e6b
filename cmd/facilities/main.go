// Command facilities transforms, validates and publishes the healthcare and
// education facility datasets.
//
//	facilities transform -service healthcare -cc NO [-in FILE] [-geocode=false]
//	facilities validate  -service education [-cc EE] [-strict]
//	facilities publish   [-service healthcare] [-force]
//	facilities serve
//	facilities history   [-service healthcare] [-limit 20]
//
// Settings come from the environment, optionally through a .env file.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/facility-etl/internal/config"
	_ "github.com/JonMunkholm/facility-etl/internal/country/adapters" // Register national transforms
	"github.com/JonMunkholm/facility-etl/internal/logging"
)

type command struct {
	name  string
	usage string
	run   func(ctx context.Context, app *app, args []string) error
}

var commands = []command{
	{"transform", "normalize a national extract into <source>/<service>/<CC>/<CC>.csv", runTransform},
	{"validate", "run the validation battery on normalized country tables", runValidate},
	{"publish", "publish changed countries and regenerate the combined outputs", runPublish},
	{"serve", "serve reports and publish on schedule or on source changes", runServe},
	{"history", "list recent publication runs", runHistory},
}

// errViolations makes validate -strict exit non-zero.
var errViolations = errors.New("validation violations found")

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	var cmd *command
	for i := range commands {
		if commands[i].name == os.Args[1] {
			cmd = &commands[i]
		}
	}
	if cmd == nil {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		usage()
		os.Exit(2)
	}

	// Load .env file if it exists; the process environment wins.
	if err := godotenv.Load(); err == nil {
		slog.Debug("loaded .env file")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Debug("configuration loaded", "config", cfg.String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := newApp(cfg)
	err = cmd.run(ctx, a, os.Args[2:])
	a.close()

	switch {
	case err == nil:
	case errors.Is(err, errViolations):
		os.Exit(3)
	default:
		slog.Error(cmd.name+" failed", "error", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: facilities <command> [flags]")
	fmt.Fprintln(os.Stderr)
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  %-10s %s\n", c.name, c.usage)
	}
}
