package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdgilhuly/chatapi/pkg/config"
	"github.com/jdgilhuly/chatapi/pkg/console"
	"github.com/jdgilhuly/chatapi/pkg/history"
	"github.com/jdgilhuly/chatapi/pkg/logging"
	"github.com/jdgilhuly/chatapi/pkg/provider"
	"github.com/jdgilhuly/chatapi/pkg/provider/providertest"
)

// fixture wires a Dispatcher to temp-dir state and scripted providers.
type fixture struct {
	dir        string
	store      *config.Store
	history    *history.History
	openai     *providertest.MockProvider
	perplexity *providertest.MockProvider
	keys       map[string]string
	out        *bytes.Buffer
	errOut     *bytes.Buffer
	d          *Dispatcher
}

func newFixture(t *testing.T, openai, perplexity *providertest.MockProvider, opts ...Option) *fixture {
	t.Helper()
	dir := t.TempDir()
	paths := config.PathsIn(dir)

	env := map[string]string{config.EnvOpenAIKey: "sk-test-openai-key"}
	store, err := config.Open(paths.Config, config.WithGetenv(func(k string) string { return env[k] }))
	require.NoError(t, err)

	h, warn := history.Open(paths.History)
	require.Nil(t, warn)

	f := &fixture{
		dir:        dir,
		store:      store,
		history:    h,
		openai:     openai.Named(provider.NameOpenAI),
		perplexity: perplexity.Named(provider.NamePerplexity),
		keys:       map[string]string{},
		out:        &bytes.Buffer{},
		errOut:     &bytes.Buffer{},
	}

	registry := provider.NewRegistry()
	registry.Register(provider.NameOpenAI, func(apiKey string, _ ...provider.Option) provider.Provider {
		f.keys[provider.NameOpenAI] = apiKey
		return f.openai
	})
	registry.Register(provider.NamePerplexity, func(apiKey string, _ ...provider.Option) provider.Provider {
		f.keys[provider.NamePerplexity] = apiKey
		return f.perplexity
	})

	opts = append([]Option{
		WithLogger(logging.Discard()),
		WithRequestContext(func(ctx context.Context) (context.Context, context.CancelFunc) {
			return context.WithCancel(ctx)
		}),
	}, opts...)
	f.d, err = New(store, h, registry, console.New(f.out, f.errOut), opts...)
	require.NoError(t, err)
	return f
}

func (f *fixture) exec(t *testing.T, line string) (Result, error) {
	t.Helper()
	cmd, err := Parse(line)
	require.NoError(t, err)
	return f.d.Execute(context.Background(), cmd)
}

func (f *fixture) run(t *testing.T, input string) {
	t.Helper()
	require.NoError(t, f.d.Run(context.Background(), console.NewScannerReader(strings.NewReader(input), nil)))
}

func TestExecute_ChatAppendsExchange(t *testing.T) {
	f := newFixture(t, providertest.New(providertest.Reply("Hi!")), providertest.New())

	res, err := f.exec(t, "chat hello")
	require.NoError(t, err)
	require.NotNil(t, res.Reply)
	assert.Equal(t, "Hi!", res.Reply.Content)
	assert.Contains(t, f.out.String(), "Assistant:\nHi!\n")
	assert.Equal(t, 2, f.history.Len())
	assert.Equal(t, "sk-test-openai-key", f.keys[provider.NameOpenAI])

	call := f.openai.Calls()[0]
	assert.Equal(t, "gpt-3.5-turbo", call.Options.Model)
	assert.Equal(t, 1000, call.Options.MaxTokens)
}

func TestRun_UnknownCommandLeavesStateUnchanged(t *testing.T) {
	f := newFixture(t, providertest.New(providertest.Reply("a")), providertest.New())
	_, err := f.exec(t, "chat hello")
	require.NoError(t, err)

	paths := config.PathsIn(f.dir)
	configBefore, err := os.ReadFile(paths.Config)
	require.NoError(t, err)
	historyBefore, err := os.ReadFile(paths.History)
	require.NoError(t, err)
	snapshot := f.store.Snapshot()

	f.run(t, "frobnicate\nhello there\nclear everything\nquit\n")

	assert.Equal(t, 3, strings.Count(f.errOut.String(), "unknown command"))
	assert.Len(t, f.openai.Calls(), 1)
	assert.Equal(t, 2, f.history.Len())

	configAfter, _ := os.ReadFile(paths.Config)
	historyAfter, _ := os.ReadFile(paths.History)
	assert.Equal(t, configBefore, configAfter)
	assert.Equal(t, historyBefore, historyAfter)
	assert.Equal(t, snapshot, f.store.Snapshot())
}

func TestExecute_UnknownKind(t *testing.T) {
	f := newFixture(t, providertest.New(), providertest.New())
	_, err := f.d.Execute(context.Background(), Command{Kind: Kind(42)})
	require.ErrorIs(t, err, ErrUnknownCommand)
	assert.Empty(t, f.openai.Calls())
}

func TestRun_ContinuesAfterErrors(t *testing.T) {
	f := newFixture(t, providertest.New(providertest.Reply("one"), providertest.Reply("two")), providertest.New())

	f.run(t, strings.Join([]string{
		"chat first message",
		"",
		"   ",
		"config frobnicate",
		"config set temperature 1.5",
		"config set nonsense 1",
		"chat second message",
		"quit",
		"never sent",
	}, "\n"))

	assert.Len(t, f.openai.Calls(), 2)
	assert.Equal(t, 4, f.history.Len())

	errs := f.errOut.String()
	assert.Contains(t, errs, "unknown command")
	assert.Contains(t, errs, "invalid config value")
	assert.Contains(t, errs, "unknown config key")
	assert.Contains(t, f.out.String(), "Valid keys: provider, openai_api_key")
	assert.Contains(t, f.out.String(), "Goodbye!")
	assert.Equal(t, 0.7, f.store.Snapshot().Temperature)
}

func TestRun_EndsAtEOF(t *testing.T) {
	f := newFixture(t, providertest.New(providertest.Reply("ok")), providertest.New())
	f.run(t, "chat hello\n")
	assert.Len(t, f.openai.Calls(), 1)
	assert.Contains(t, f.out.String(), "Goodbye!")
}

func TestRun_QuitAliases(t *testing.T) {
	for _, word := range []string{"quit", "exit", "q", "QUIT"} {
		t.Run(word, func(t *testing.T) {
			f := newFixture(t, providertest.New(), providertest.New())
			f.run(t, word+"\nchat hello\n")
			assert.Empty(t, f.openai.Calls())
		})
	}
}

func TestRun_ProviderErrorDoesNotEndSession(t *testing.T) {
	authErr := &provider.Error{Kind: provider.KindAuth, Provider: "openai", StatusCode: 401, Err: errors.New("bad key")}
	f := newFixture(t, providertest.New(providertest.Fail(authErr), providertest.Reply("recovered")), providertest.New())

	f.run(t, "chat first\nchat second\n")

	assert.Len(t, f.openai.Calls(), 2)
	assert.Contains(t, f.errOut.String(), "authentication failed")
	assert.Contains(t, f.out.String(), "config set openai_api_key <key>")
	assert.Equal(t, 2, f.history.Len())
}

func TestProviderSet_PreservesHistory(t *testing.T) {
	f := newFixture(t,
		providertest.New(providertest.Reply("from openai")),
		providertest.New(providertest.Reply("from perplexity")),
	)

	_, err := f.exec(t, "chat question one")
	require.NoError(t, err)
	before := f.history.All()

	_, err = f.exec(t, "provider set perplexity")
	require.NoError(t, err)
	assert.Equal(t, before, f.history.All())

	cfg := f.store.Snapshot()
	assert.Equal(t, config.ProviderPerplexity, cfg.Provider)
	assert.Equal(t, "sonar", cfg.Model, "default model follows the provider")
	assert.Contains(t, f.errOut.String(), "PERPLEXITY_API_KEY", "missing key is diagnosed")

	res, err := f.exec(t, "chat question two")
	require.NoError(t, err)
	assert.Equal(t, "perplexity", res.Reply.Provider)

	calls := f.perplexity.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "sonar", calls[0].Options.Model)
	var contents []string
	for _, m := range calls[0].Messages {
		contents = append(contents, m.Content)
	}
	assert.Equal(t, []string{"You are a helpful assistant.", "question one", "from openai", "question two"}, contents)
	assert.Equal(t, 4, f.history.Len())
}

func TestProviderSet_KeepsCustomModel(t *testing.T) {
	f := newFixture(t, providertest.New(), providertest.New())
	_, err := f.exec(t, "config set model my-proxy-model")
	require.NoError(t, err)
	_, err = f.exec(t, "provider set perplexity")
	require.NoError(t, err)
	assert.Equal(t, "my-proxy-model", f.store.Snapshot().Model)
}

func TestProviderSet_Invalid(t *testing.T) {
	f := newFixture(t, providertest.New(), providertest.New())
	_, err := f.exec(t, "provider set anthropic")
	require.ErrorIs(t, err, config.ErrInvalidValue)
	assert.Equal(t, config.ProviderOpenAI, f.store.Snapshot().Provider)
}

func TestConfigSet_RebuildsProviderWithNewKey(t *testing.T) {
	f := newFixture(t, providertest.New(), providertest.New())
	_, err := f.exec(t, "config set perplexity_api_key pplx-abcdefghijklmnop")
	require.NoError(t, err)
	assert.Contains(t, f.out.String(), "Set perplexity_api_key = pplx-abcde...")
	assert.NotContains(t, f.out.String(), "pplx-abcdefghijklmnop")

	_, err = f.exec(t, "provider set perplexity")
	require.NoError(t, err)
	assert.Equal(t, "pplx-abcdefghijklmnop", f.keys[provider.NamePerplexity])
}

func TestConfigSet_SaveHistoryAppliesLive(t *testing.T) {
	f := newFixture(t, providertest.New(providertest.Reply("kept in memory")), providertest.New())

	_, err := f.exec(t, "config set save_history false")
	require.NoError(t, err)
	assert.False(t, f.history.Persisting())
	_, err = f.exec(t, "chat hello")
	require.NoError(t, err)

	assert.Equal(t, 2, f.history.Len())
	_, statErr := os.Stat(config.PathsIn(f.dir).History)
	assert.True(t, errors.Is(statErr, os.ErrNotExist), "history written with save_history off")
}

func TestConfigSet_ContextAndRetention(t *testing.T) {
	f := newFixture(t, providertest.New(
		providertest.Reply("a1"), providertest.Reply("a2"), providertest.Reply("a3"),
	), providertest.New())

	_, err := f.exec(t, "config set max_history 2")
	require.NoError(t, err)
	_, err = f.exec(t, "config set context_messages 2")
	require.NoError(t, err)

	for _, q := range []string{"q1", "q2", "q3"} {
		_, err := f.exec(t, "chat "+q)
		require.NoError(t, err)
	}

	all := f.history.All()
	require.Len(t, all, 2)
	assert.Equal(t, "q3", all[0].Content)

	last := f.openai.Calls()[2]
	assert.Len(t, last.Messages, 4, "system + 2 context + user")
}

func TestConfigShow_MasksSecrets(t *testing.T) {
	f := newFixture(t, providertest.New(), providertest.New())
	_, err := f.exec(t, "config show")
	require.NoError(t, err)

	out := f.out.String()
	assert.Contains(t, out, "Current configuration")
	assert.Contains(t, out, "sk-test-op...")
	assert.NotContains(t, out, "sk-test-openai-key")
	assert.Contains(t, out, "Not set")
	for _, key := range config.Keys() {
		assert.Contains(t, out, key)
	}
}

func TestShowTokens(t *testing.T) {
	f := newFixture(t, providertest.New(providertest.ReplyWithUsage("hi", 10, 2)), providertest.New())
	_, err := f.exec(t, "config set show_tokens true")
	require.NoError(t, err)
	_, err = f.exec(t, "chat hello")
	require.NoError(t, err)
	assert.Contains(t, f.out.String(), "tokens: 10 prompt / 2 completion / 12 total")
}

func TestClearAndHistory(t *testing.T) {
	f := newFixture(t, providertest.New(providertest.Reply("answer")), providertest.New())
	_, err := f.exec(t, "chat question")
	require.NoError(t, err)

	_, err = f.exec(t, "history")
	require.NoError(t, err)
	assert.Contains(t, f.out.String(), "You        question")

	_, err = f.exec(t, "clear")
	require.NoError(t, err)
	assert.Equal(t, 0, f.history.Len())
	_, err = f.exec(t, "clear")
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(f.out.String(), "Conversation history cleared."))
}

func TestHistory_PrintsAllMessages(t *testing.T) {
	var steps []providertest.Step
	for i := 0; i < 8; i++ {
		steps = append(steps, providertest.Reply(fmt.Sprintf("answer %d", i)))
	}
	f := newFixture(t, providertest.New(steps...), providertest.New())
	for i := 0; i < 8; i++ {
		_, err := f.exec(t, fmt.Sprintf("chat question %d", i))
		require.NoError(t, err)
	}
	f.out.Reset()

	_, err := f.exec(t, "history")
	require.NoError(t, err)

	out := f.out.String()
	assert.Contains(t, out, "Conversation history (16 messages)")
	for i, m := range f.history.All() {
		assert.Contains(t, out, m.Content, "message %d", i)
	}
}

func TestChat_CancelledRequest(t *testing.T) {
	f := newFixture(t, providertest.New(providertest.BlockUntilCancel()), providertest.New(),
		WithRequestContext(func(ctx context.Context) (context.Context, context.CancelFunc) {
			ctx, cancel := context.WithCancel(ctx)
			time.AfterFunc(10*time.Millisecond, cancel)
			return ctx, cancel
		}),
	)

	_, err := f.exec(t, "chat long question")
	require.ErrorIs(t, err, ErrCancelled)
	assert.Equal(t, 0, f.history.Len())

	f.d.Report(err)
	assert.Contains(t, f.errOut.String(), "Request cancelled.")
}

func TestChat_InvalidInput(t *testing.T) {
	f := newFixture(t, providertest.New(), providertest.New())
	_, err := f.exec(t, "chat <script>alert(1)</script>")
	require.Error(t, err)
	assert.Empty(t, f.openai.Calls())
}

func TestNew_UnknownProvider(t *testing.T) {
	dir := t.TempDir()
	paths := config.PathsIn(dir)
	store, err := config.Open(paths.Config, config.WithGetenv(func(string) string { return "" }))
	require.NoError(t, err)
	h, _ := history.Open(filepath.Join(dir, "history.json"))

	_, err = New(store, h, provider.NewRegistry(), console.New(&bytes.Buffer{}, &bytes.Buffer{}), WithLogger(logging.Discard()))
	require.ErrorIs(t, err, provider.ErrUnknownProvider)
}
