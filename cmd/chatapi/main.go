package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jdgilhuly/chatapi/pkg/command"
	"github.com/jdgilhuly/chatapi/pkg/config"
)

// errReported marks an error already printed to the user.
var errReported = errors.New("reported")

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "chatapi",
	Short: "Chat with OpenAI and Perplexity models from the terminal",
	Long: `A command-line chat client for the OpenAI and Perplexity chat APIs.

Run 'chatapi chat' for an interactive session or 'chatapi chat "<message>"'
for a single exchange. Settings and conversation history are kept in
~/.chatapi-cli (or $CHATAPI_HOME).`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// --- chat command ---

var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Send a message or start an interactive session",
	Long: `Send a single message to the configured provider and print the reply,
or start an interactive session when no message is given.

In the interactive session, type 'help' for the available commands.`,
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		if len(args) == 0 {
			reader := a.lineReader()
			defer reader.Close()
			return a.dispatcher.Run(ctx, reader)
		}

		for _, w := range config.Diagnose(a.store.Snapshot()) {
			a.console.Warn("%s", w)
		}
		_, err := a.dispatcher.Execute(ctx, command.Command{Kind: command.Chat, Text: strings.Join(args, " ")})
		return err
	}),
}

// --- config command ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration settings",
	Long: `Show or change chatapi settings.

Keys: ` + strings.Join(config.Keys(), ", ") + `

API keys are stored encrypted. OPENAI_API_KEY and PERPLEXITY_API_KEY are used
when no key is stored.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current configuration",
	Args:  cobra.NoArgs,
	RunE:  runCommand(command.ConfigShow),
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE:  runCommand(command.ConfigSet),
}

// --- provider command ---

var providerCmd = &cobra.Command{
	Use:   "provider",
	Short: "Manage the AI provider",
}

var providerShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current provider",
	Args:  cobra.NoArgs,
	RunE:  runCommand(command.ProviderShow),
}

var providerSetCmd = &cobra.Command{
	Use:       "set <" + strings.Join(config.Providers, "|") + ">",
	Short:     "Switch the AI provider",
	Args:      cobra.ExactArgs(1),
	ValidArgs: config.Providers,
	RunE:      runCommand(command.ProviderSet),
}

// --- history commands ---

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show conversation history",
	Args:  cobra.NoArgs,
	RunE:  runCommand(command.History),
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear conversation history",
	Args:  cobra.NoArgs,
	RunE:  runCommand(command.Clear),
}

// runCommand executes a dispatcher command built from the positional args.
func runCommand(kind command.Kind) func(*cobra.Command, []string) error {
	return withApp(func(ctx context.Context, a *app, args []string) error {
		_, err := a.dispatcher.Execute(ctx, command.Command{Kind: kind, Args: args})
		return err
	})
}

func init() {
	rootCmd.PersistentFlags().String("home", "", "State directory (default $CHATAPI_HOME or ~/.chatapi-cli)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging on stderr")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	providerCmd.AddCommand(providerShowCmd)
	providerCmd.AddCommand(providerSetCmd)

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(providerCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(clearCmd)
}
