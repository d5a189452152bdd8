package handlers

import (
	tgbot "github.com/go-telegram/bot"
)

// RegisteredHandler represents a command handler with its matcher and
// middleware. It encapsulates all information needed to register a command.
type RegisteredHandler struct {
	Command    string
	Match      tgbot.MatchFunc
	Handler    tgbot.HandlerFunc
	Middleware []tgbot.Middleware
}

// RegisterAllCommands initializes and returns a map of all available bot commands.
func RegisterAllCommands(deps HandlerDeps) map[string]RegisteredHandler {
	handlers := make(map[string]RegisteredHandler)

	command := func(name string, h tgbot.HandlerFunc) {
		handlers["/"+name] = RegisteredHandler{
			Command: name,
			Match:   CommandMatch(name, deps.BotUsername),
			Handler: h,
		}
	}

	command("start", NewStartHandler(deps))
	command("help", NewHelpHandler(deps))
	command("q", NewQuoteHandler(deps))

	return handlers
}
