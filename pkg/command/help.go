package command

// HelpText describes the interactive commands.
const HelpText = `Available commands:
  chat <message>                Send a message to the configured provider
  help                          Show this help message
  quit | exit | q               Exit the program
  clear                         Clear conversation history
  history                       Show conversation history
  config show                   Show current configuration
  config set <key> <value>      Change a setting (quote values with spaces)

Provider management:
  provider show                 Show the current AI provider
  provider set <provider>       Switch between openai and perplexity

Usage:
  Any other first word is rejected as an unknown command.
  Ctrl-C cancels a pending request; at the prompt it exits.`
