// Package command parses chatapi's command language and dispatches parsed
// commands against the config store, the history and the chat session.
package command

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

var (
	// ErrUnknownCommand is returned for words outside the command set.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrMissingArgument is returned when a command lacks a required argument.
	ErrMissingArgument = errors.New("missing argument")
)

// Kind identifies a command.
type Kind int

const (
	// Noop is a blank line.
	Noop Kind = iota
	Chat
	ConfigShow
	ConfigSet
	ProviderShow
	ProviderSet
	History
	Clear
	Help
	Quit
)

var kindNames = map[Kind]string{
	Noop:         "noop",
	Chat:         "chat",
	ConfigShow:   "config show",
	ConfigSet:    "config set",
	ProviderShow: "provider show",
	ProviderSet:  "provider set",
	History:      "history",
	Clear:        "clear",
	Help:         "help",
	Quit:         "quit",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Command is a parsed input line.
type Command struct {
	Kind Kind
	// Text is the chat message for Chat.
	Text string
	// Args holds key and value for ConfigSet and the provider for ProviderSet.
	Args []string
}

// bareWords are the commands that take no arguments.
var bareWords = map[string]Kind{
	"history": History,
	"clear":   Clear,
	"help":    Help,
	"quit":    Quit,
	"exit":    Quit,
	"q":       Quit,
}

// Words lists the command words, used for tab completion.
var Words = []string{"chat", "clear", "config", "exit", "help", "history", "provider", "q", "quit"}

// Parse parses an input line. The first word must be a command word; chat
// text goes through "chat <message>". Anything else is ErrUnknownCommand.
func Parse(line string) (Command, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Command{Kind: Noop}, nil
	}

	word, rest := splitWord(line)
	switch strings.ToLower(word) {
	case "chat":
		if rest == "" {
			return Command{}, fmt.Errorf("%w: chat needs a message", ErrMissingArgument)
		}
		return Command{Kind: Chat, Text: rest}, nil
	case "config":
		return parseConfig(rest)
	case "provider":
		return parseProvider(rest)
	}

	if k, ok := bareWords[strings.ToLower(word)]; ok {
		return noArgs(k, rest)
	}
	return Command{}, fmt.Errorf("%w: %q (try 'help', or 'chat <message>' to send a message)", ErrUnknownCommand, word)
}

func parseConfig(rest string) (Command, error) {
	sub, rest := splitWord(rest)
	switch strings.ToLower(sub) {
	case "", "show":
		return noArgs(ConfigShow, rest)
	case "set":
		key, value := splitWord(rest)
		if key == "" {
			return Command{}, fmt.Errorf("%w: usage: config set <key> <value>", ErrMissingArgument)
		}
		if value == "" {
			return Command{}, fmt.Errorf("%w: no value given for %s", ErrMissingArgument, key)
		}
		return Command{Kind: ConfigSet, Args: []string{key, unquote(value)}}, nil
	default:
		return Command{}, fmt.Errorf("%w: config %s (expected show or set)", ErrUnknownCommand, sub)
	}
}

func parseProvider(rest string) (Command, error) {
	sub, rest := splitWord(rest)
	switch strings.ToLower(sub) {
	case "", "show":
		return noArgs(ProviderShow, rest)
	case "set":
		name, extra := splitWord(rest)
		if name == "" {
			return Command{}, fmt.Errorf("%w: usage: provider set <openai|perplexity>", ErrMissingArgument)
		}
		if extra != "" {
			return Command{}, fmt.Errorf("%w: unexpected %q after provider name", ErrUnknownCommand, extra)
		}
		return Command{Kind: ProviderSet, Args: []string{unquote(name)}}, nil
	default:
		return Command{}, fmt.Errorf("%w: provider %s (expected show or set)", ErrUnknownCommand, sub)
	}
}

func noArgs(k Kind, rest string) (Command, error) {
	if rest != "" {
		return Command{}, fmt.Errorf("%w: %s takes no arguments", ErrUnknownCommand, k)
	}
	return Command{Kind: k}, nil
}

// splitWord returns the first whitespace-delimited word of s and the
// trimmed remainder.
func splitWord(s string) (word, rest string) {
	s = strings.TrimSpace(s)
	i := strings.IndexFunc(s, unicode.IsSpace)
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimSpace(s[i:])
}

// unquote strips one pair of matching surrounding quotes.
func unquote(s string) string {
	if len(s) >= 2 {
		if q := s[0]; (q == '"' || q == '\'') && s[len(s)-1] == q {
			return s[1 : len(s)-1]
		}
	}
	return s
}
