// nina-front is the web frontend of the Nina childcare marketplace: the
// marketing and dashboard pages, the authentication flows, and the OAuth
// relay for the native app.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ninacare/nina-front/internal/app"
	"github.com/ninacare/nina-front/internal/config"
	"github.com/ninacare/nina-front/internal/log"
)

// version is set at build time via -ldflags
var version = "dev"

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	logLevel := flag.String("log-level", "", "override log level (debug, info, warn, error)")
	flag.Parse()

	if *showVersion {
		fmt.Println("nina-front", version)
		return
	}

	if *logLevel != "" {
		if err := log.SetLogLevel(*logLevel); err != nil {
			fmt.Fprintf(os.Stderr, "invalid log level: %v\n", err)
			os.Exit(2)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.LogInfoWithFields("main", "Starting nina-front", map[string]any{
		"version": version,
		"addr":    cfg.Addr,
	})

	if err := app.Run(ctx, cfg); err != nil {
		log.LogErrorWithFields("main", "Server exited with error", map[string]any{
			"error": err.Error(),
		})
		os.Exit(1)
	}

	log.LogInfoWithFields("main", "Shutdown complete", nil)
}
