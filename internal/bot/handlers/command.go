package handlers

import (
	"strings"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// CommandMatch matches messages that start with /command, optionally
// addressed as /command@botUsername. Command and username compare case
// insensitively. Commands addressed to another bot do not match; with an
// empty botUsername any address is accepted.
func CommandMatch(command, botUsername string) tgbot.MatchFunc {
	return func(update *models.Update) bool {
		if update == nil || update.Message == nil {
			return false
		}
		return isCommand(update.Message, command, botUsername)
	}
}

func isCommand(msg *models.Message, command, botUsername string) bool {
	for _, e := range msg.Entities {
		if e.Type != models.MessageEntityTypeBotCommand || e.Offset != 0 {
			continue
		}
		// Offsets are UTF-16 units; a leading command is ASCII so they equal bytes.
		if e.Length < 2 || e.Length > len(msg.Text) || msg.Text[0] != '/' {
			return false
		}

		name, target, addressed := strings.Cut(msg.Text[1:e.Length], "@")
		if !strings.EqualFold(name, command) {
			return false
		}
		if addressed && botUsername != "" && !strings.EqualFold(target, botUsername) {
			return false
		}
		return true
	}
	return false
}
