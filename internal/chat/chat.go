package chat

// Gateway is the outbound messaging contract consumed by the state machine.
// Send returns the delivered message's identifier (0 when the send was
// suppressed) so callers can later delete their own messages. Empty or
// whitespace-only text must be suppressed by implementations, and
// DeleteMessage is advisory: a failed deletion is reported, never fatal.
type Gateway interface {
	Send(chatID int64, text string) (int64, error)
	SendKeyboard(chatID int64, text string, kb Keyboard) error
	DeleteMessage(chatID int64, messageID int64) error
}

// Event is one inbound text message from a conversation.
type Event struct {
	ChatID    int64
	MessageID int64
	Text      string
}

// Update pairs a gateway event with its transport sequence number, used by
// the polling loop to advance its offset.
type Update struct {
	UpdateID int64
	Event    Event
}

// Keyboard is a grid of button labels shown under the input field.
// A one-shot keyboard collapses after a single tap; otherwise it stays
// visible until replaced.
type Keyboard struct {
	Rows    [][]string
	OneShot bool
}

// Column builds a keyboard layout with one label per row.
func Column(labels ...string) [][]string {
	rows := make([][]string, 0, len(labels))
	for _, l := range labels {
		rows = append(rows, []string{l})
	}
	return rows
}
