package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/jdgilhuly/chatapi/pkg/config"
	"github.com/jdgilhuly/chatapi/pkg/console"
	"github.com/jdgilhuly/chatapi/pkg/history"
	"github.com/jdgilhuly/chatapi/pkg/provider"
	"github.com/jdgilhuly/chatapi/pkg/session"
)

// ErrCancelled is returned when a pending chat request is interrupted.
var ErrCancelled = errors.New("request cancelled")

// Result is the outcome of one executed command.
type Result struct {
	// Quit is set when the interactive loop should end.
	Quit bool
	// Reply is set for a completed chat turn.
	Reply *session.Reply
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger for the dispatcher and its session.
func WithLogger(l logrus.FieldLogger) Option {
	return func(d *Dispatcher) { d.log = l }
}

// WithProviderOptions appends adapter options used whenever the provider is
// (re)built.
func WithProviderOptions(opts ...provider.Option) Option {
	return func(d *Dispatcher) { d.providerOpts = append(d.providerOpts, opts...) }
}

// WithRequestContext replaces how the per-request context of a chat turn is
// derived. The default cancels the request on SIGINT.
func WithRequestContext(fn func(context.Context) (context.Context, context.CancelFunc)) Option {
	return func(d *Dispatcher) { d.requestContext = fn }
}

// Dispatcher executes commands against the config store, the conversation
// history and the active provider.
type Dispatcher struct {
	store    *config.Store
	history  *history.History
	registry *provider.Registry
	console  *console.Console
	log      logrus.FieldLogger

	session        *session.Session
	providerOpts   []provider.Option
	requestContext func(context.Context) (context.Context, context.CancelFunc)
}

// New creates a Dispatcher and builds the provider selected by the store.
func New(store *config.Store, hist *history.History, registry *provider.Registry, con *console.Console, opts ...Option) (*Dispatcher, error) {
	d := &Dispatcher{
		store:    store,
		history:  hist,
		registry: registry,
		console:  con,
		log:      logrus.StandardLogger(),
		requestContext: func(ctx context.Context) (context.Context, context.CancelFunc) {
			return signal.NotifyContext(ctx, os.Interrupt)
		},
	}
	for _, opt := range opts {
		opt(d)
	}

	cfg := store.Snapshot()
	p, err := d.newProvider(cfg)
	if err != nil {
		return nil, err
	}
	d.session = session.New(p, hist, settingsFrom(cfg), session.WithLogger(d.log))
	d.applyHistory(cfg)
	return d, nil
}

// Execute runs one command.
func (d *Dispatcher) Execute(ctx context.Context, cmd Command) (Result, error) {
	switch cmd.Kind {
	case Noop:
		return Result{}, nil
	case Chat:
		return d.chat(ctx, cmd.Text)
	case ConfigShow:
		d.showConfig()
	case ConfigSet:
		if len(cmd.Args) != 2 {
			return Result{}, fmt.Errorf("%w: usage: config set <key> <value>", ErrMissingArgument)
		}
		return Result{}, d.setConfig(cmd.Args[0], cmd.Args[1])
	case ProviderShow:
		d.showProvider()
	case ProviderSet:
		if len(cmd.Args) != 1 {
			return Result{}, fmt.Errorf("%w: usage: provider set <openai|perplexity>", ErrMissingArgument)
		}
		return Result{}, d.setProvider(cmd.Args[0])
	case History:
		d.console.History(d.history.All())
	case Clear:
		if err := d.history.Clear(); err != nil {
			return Result{}, err
		}
		d.log.Info("conversation history cleared")
		d.console.Success("Conversation history cleared.")
	case Help:
		d.console.Println(HelpText)
	case Quit:
		return Result{Quit: true}, nil
	default:
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownCommand, cmd.Kind)
	}
	return Result{}, nil
}

// Run reads and executes lines until quit, end of input or Ctrl-C at the
// prompt. Command and provider errors are printed and the loop continues.
func (d *Dispatcher) Run(ctx context.Context, r console.LineReader) error {
	cfg := d.store.Snapshot()
	d.console.Info("ChatAPI - %s (%s)", config.DisplayName(cfg.Provider), cfg.Model)
	d.console.Dim("Type 'chat <message>' to talk, 'help' for commands, 'quit' to exit.")
	for _, w := range config.Diagnose(cfg) {
		d.console.Warn("%s", w)
	}

	for {
		if ctx.Err() != nil {
			return nil
		}

		line, err := r.ReadLine(d.console.Prompt())
		switch {
		case errors.Is(err, io.EOF), errors.Is(err, console.ErrInterrupted):
			d.console.Println("")
			d.console.Info("Goodbye!")
			return nil
		case err != nil:
			return fmt.Errorf("reading input: %w", err)
		}

		cmd, err := Parse(line)
		if err != nil {
			d.console.Error(err)
			continue
		}
		if cmd.Kind == Noop {
			continue
		}

		res, err := d.Execute(ctx, cmd)
		if err != nil {
			d.Report(err)
			continue
		}
		if res.Quit {
			d.console.Info("Goodbye!")
			return nil
		}
	}
}

// Report prints err with a hint for the errors a user can fix.
func (d *Dispatcher) Report(err error) {
	if errors.Is(err, ErrCancelled) {
		d.console.Warn("Request cancelled.")
		return
	}
	d.console.Error(err)

	switch {
	case errors.Is(err, provider.ErrAuth):
		cfg := d.store.Snapshot()
		d.console.Dim("Set a key with 'config set %s_api_key <key>' or the %s environment variable.",
			cfg.Provider, config.EnvVarFor(cfg.Provider))
	case errors.Is(err, config.ErrUnknownKey):
		d.console.Dim("Valid keys: %s", strings.Join(config.Keys(), ", "))
	}
}

func (d *Dispatcher) chat(ctx context.Context, text string) (Result, error) {
	reqCtx, cancel := d.requestContext(ctx)
	defer cancel()

	reply, err := d.session.Send(reqCtx, text)
	if reply != nil {
		d.showReply(reply)
	}
	switch {
	case err == nil:
		return Result{Reply: reply}, nil
	case reply != nil:
		// Answered, but the exchange could not be saved.
		d.console.Warn("%v", err)
		return Result{Reply: reply}, nil
	case errors.Is(err, context.Canceled) && ctx.Err() == nil:
		return Result{}, fmt.Errorf("%w: %w", ErrCancelled, err)
	default:
		return Result{}, err
	}
}

func (d *Dispatcher) showReply(reply *session.Reply) {
	d.console.Reply("Assistant", reply.Content)
	if d.store.Snapshot().ShowTokens {
		d.console.Usage(reply.Usage, reply.Cost, reply.Priced, reply.Duration)
	}
}

func (d *Dispatcher) showConfig() {
	rows := make([]console.Row, 0, len(config.Keys()))
	for _, key := range config.Keys() {
		value, _ := d.store.Get(key)
		if config.IsSecret(key) {
			value = config.Mask(value)
		}
		rows = append(rows, console.Row{Key: key, Value: value})
	}
	d.console.Table("Current configuration", rows)
	d.console.Dim("Config file: %s", d.store.Path())
}

func (d *Dispatcher) setConfig(key, value string) error {
	if err := d.store.Set(key, value); err != nil {
		return err
	}
	key = strings.ToLower(key)

	display := value
	if config.IsSecret(key) {
		display = config.Mask(value)
	}
	d.log.WithField("key", key).Info("config updated")
	d.console.Success("Set %s = %s", key, display)
	return d.apply()
}

func (d *Dispatcher) showProvider() {
	cfg := d.store.Snapshot()
	d.console.Info("Current provider: %s", config.DisplayName(cfg.Provider))
	d.console.Println(fmt.Sprintf("  model:   %s", cfg.Model))
	d.console.Println(fmt.Sprintf("  api key: %s", config.Mask(cfg.APIKey(cfg.Provider))))
}

// setProvider switches the active provider. History is kept. A model still
// at the previous provider's default follows the switch to the new default.
func (d *Dispatcher) setProvider(name string) error {
	before := d.store.Snapshot()
	if err := d.store.Set("provider", name); err != nil {
		return err
	}
	after := d.store.Snapshot()
	if after.Provider != before.Provider && before.Model == config.DefaultModel(before.Provider) {
		if err := d.store.Set("model", config.DefaultModel(after.Provider)); err != nil {
			return err
		}
		after = d.store.Snapshot()
	}

	d.log.WithFields(logrus.Fields{"provider": after.Provider, "model": after.Model}).Info("provider switched")
	d.console.Success("Provider set to %s (model %s)", config.DisplayName(after.Provider), after.Model)
	if err := d.apply(); err != nil {
		return err
	}
	for _, w := range config.Diagnose(after) {
		d.console.Warn("%s", w)
	}
	return nil
}

// apply pushes the current config into the session, provider and history.
func (d *Dispatcher) apply() error {
	cfg := d.store.Snapshot()
	p, err := d.newProvider(cfg)
	if err != nil {
		return err
	}
	d.session.SetProvider(p)
	d.session.SetSettings(settingsFrom(cfg))
	d.applyHistory(cfg)
	return nil
}

func (d *Dispatcher) applyHistory(cfg config.Config) {
	if d.history.Persisting() != cfg.SaveHistory {
		d.log.WithField("save_history", cfg.SaveHistory).Info("history persistence changed")
	}
	d.history.SetPersist(cfg.SaveHistory)
	d.history.SetMaxMessages(cfg.MaxHistory)
}

func (d *Dispatcher) newProvider(cfg config.Config) (provider.Provider, error) {
	opts := append([]provider.Option{provider.WithMaxRetries(cfg.MaxRetries)}, d.providerOpts...)
	return d.registry.New(cfg.Provider, cfg.APIKey(cfg.Provider), opts...)
}

func settingsFrom(cfg config.Config) session.Settings {
	return session.Settings{
		Model:           cfg.Model,
		MaxTokens:       cfg.MaxTokens,
		Temperature:     cfg.Temperature,
		SystemPrompt:    cfg.SystemPrompt,
		ContextMessages: cfg.ContextMessages,
	}
}
