package engine

import (
	"strconv"

	"github.com/roach88/hyperhistory/internal/history"
	"github.com/roach88/hyperhistory/internal/passport"
)

// State is a JSON-friendly export of everything the engine has derived.
// Two engines that applied the same blocks in the same per-subject order
// export equal States.
type State struct {
	Applied   int                          `json:"applied"`
	Passports map[string]passport.Snapshot `json:"passports"`
	Channels  map[string][]MessageSnapshot `json:"channels"`
}

// MessageSnapshot is the export form of a Message.
type MessageSnapshot struct {
	Seq    int64  `json:"seq"`
	Author string `json:"author"`
	Text   string `json:"text"`
	Block  string `json:"block"`
}

// Snapshot exports the current state. Channel ids become decimal keys.
func (e *Engine) Snapshot() State {
	s := State{
		Applied:   e.Applied(),
		Passports: make(map[string]passport.Snapshot),
		Channels:  make(map[string][]MessageSnapshot),
	}

	for _, id := range e.Identities() {
		if p, ok := e.PassportFor(id); ok {
			s.Passports[id.String()] = p.Snapshot()
		}
	}

	for _, chID := range e.Channels() {
		msgs := e.MessagesFor(chID)
		out := make([]MessageSnapshot, len(msgs))
		for i, m := range msgs {
			out[i] = MessageSnapshot{
				Seq:    m.Seq,
				Author: m.Author.String(),
				Text:   m.Text,
				Block:  history.FormatHash(m.BlockHash),
			}
		}
		s.Channels[strconv.FormatUint(chID, 10)] = out
	}

	return s
}
