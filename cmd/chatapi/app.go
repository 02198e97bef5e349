package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/jdgilhuly/chatapi/pkg/command"
	"github.com/jdgilhuly/chatapi/pkg/config"
	"github.com/jdgilhuly/chatapi/pkg/console"
	"github.com/jdgilhuly/chatapi/pkg/history"
	"github.com/jdgilhuly/chatapi/pkg/logging"
	"github.com/jdgilhuly/chatapi/pkg/provider"
)

// requestInterval is the minimum spacing between API requests, retries
// included.
const requestInterval = 250 * time.Millisecond

// app holds the objects shared by every subcommand.
type app struct {
	paths      config.Paths
	log        *logrus.Logger
	closeLog   func() error
	console    *console.Console
	store      *config.Store
	history    *history.History
	dispatcher *command.Dispatcher
}

// withApp opens the app state for a subcommand and reports any error fn
// returns through the dispatcher.
func withApp(fn func(ctx context.Context, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := fn(cmd.Context(), a, args); err != nil {
			a.log.WithError(err).WithField("command", cmd.CommandPath()).Error("command failed")
			a.dispatcher.Report(err)
			return errReported
		}
		return nil
	}
}

func openApp(cmd *cobra.Command) (*app, error) {
	con := console.Stdio()
	if err := config.LoadDotEnv(); err != nil {
		con.Warn("%v", err)
	}

	home, _ := cmd.Flags().GetString("home")
	if home == "" {
		dir, err := config.DefaultDir()
		if err != nil {
			return nil, err
		}
		home = dir
	}
	if err := config.EnsureDir(home); err != nil {
		return nil, err
	}
	paths := config.PathsIn(home)

	verbose, _ := cmd.Flags().GetBool("verbose")
	log, closeLog, err := logging.New(logging.Options{Dir: home, Verbose: verbose, Stderr: os.Stderr})
	if err != nil {
		return nil, err
	}

	store, err := config.Open(paths.Config, config.WithKeyFile(paths.Key))
	if err != nil {
		closeLog()
		return nil, fmt.Errorf("loading config: %w", err)
	}
	for _, w := range store.Warnings() {
		log.WithError(w).Warn("config file problem")
		con.Warn("%v", w)
	}

	cfg := store.Snapshot()
	hist, warn := history.Open(paths.History,
		history.WithPersist(cfg.SaveHistory),
		history.WithMaxMessages(cfg.MaxHistory),
	)
	if warn != nil {
		log.WithError(warn).Warn("history file problem")
		con.Warn("%v", warn)
	}

	d, err := command.New(store, hist, provider.DefaultRegistry(), con,
		command.WithLogger(log),
		command.WithProviderOptions(provider.WithRateLimit(rate.Every(requestInterval), 1)),
	)
	if err != nil {
		closeLog()
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"command":  cmd.CommandPath(),
		"provider": cfg.Provider,
		"model":    cfg.Model,
		"history":  hist.Len(),
	}).Debug("chatapi started")

	return &app{
		paths:      paths,
		log:        log,
		closeLog:   closeLog,
		console:    con,
		store:      store,
		history:    hist,
		dispatcher: d,
	}, nil
}

// lineReader returns a line-editing reader on a terminal and a plain
// scanner otherwise.
func (a *app) lineReader() console.LineReader {
	if console.IsTerminal(os.Stdin) && console.IsTerminal(os.Stdout) {
		return console.NewLinerReader(a.paths.InputHistory, command.Words)
	}
	return console.NewScannerReader(os.Stdin, os.Stdout)
}

// Close flushes the log file.
func (a *app) Close() error {
	return a.closeLog()
}
