package handlers

import (
	"errors"
	"strconv"
	"strings"
)

// MaxQuoteMessages bounds how many messages a single sticker may contain.
const MaxQuoteMessages = 10

// CommandArguments are the options of the /q command.
type CommandArguments struct {
	MessageCount    int
	PreserveReplies bool
	PreserveMedia   bool
}

// ParseArguments reads "/q [count] [r] [m]" in any order. Tokens are split on
// single spaces; the last base 10 integer wins and anything unrecognized,
// including underscore grouped digits like "1_0", is ignored.
func ParseArguments(text string) CommandArguments {
	var args CommandArguments

	for _, token := range strings.Split(text, " ") {
		switch token {
		case "r":
			args.PreserveReplies = true
		case "m":
			args.PreserveMedia = true
		default:
			// Out of range values saturate and are clamped later.
			n, err := strconv.Atoi(token)
			if err == nil || errors.Is(err, strconv.ErrRange) {
				args.MessageCount = n
			}
		}
	}

	return args
}

// MessageRange is an inclusive range of message ids.
type MessageRange struct {
	StartID int
	EndID   int
}

// Len returns the number of ids in the range.
func (r MessageRange) Len() int {
	return r.EndID - r.StartID + 1
}

// ResolveRange turns a signed message count into the ids to quote around
// anchorID. Positive counts go forward from the anchor, negative counts go
// backwards, zero quotes only the anchor. At most MaxQuoteMessages ids are
// returned and the anchor is always included.
func ResolveRange(anchorID, count int) MessageRange {
	reverse := false

	switch {
	case count == 0:
		count = 1
	case count < 0:
		reverse = true
		if count < -MaxQuoteMessages {
			count = MaxQuoteMessages
		} else {
			count = -count
		}
	}

	if count > MaxQuoteMessages {
		count = MaxQuoteMessages
	}

	if reverse {
		return MessageRange{StartID: anchorID - (count - 1), EndID: anchorID}
	}
	return MessageRange{StartID: anchorID, EndID: anchorID + (count - 1)}
}
