// Package chat defines the platform-neutral shapes exchanged between the
// dialog engine and the transport.
package chat

import "context"

// Kind is the class of an incoming update.
type Kind int

const (
	KindText Kind = iota
	KindPhoto
	KindCallback
)

func (k Kind) String() string {
	switch k {
	case KindPhoto:
		return "photo"
	case KindCallback:
		return "callback"
	default:
		return "text"
	}
}

// Update is one incoming event from a user's private chat.
type Update struct {
	SenderID    int64
	Username    string
	DisplayName string

	Kind Kind
	// Text holds message text or a photo caption.
	Text string
	// PhotoID is the platform media id of the largest photo size.
	PhotoID string

	CallbackID   string
	CallbackData string
}

// ParseMode selects markup interpretation of reply text.
type ParseMode string

const (
	ParsePlain ParseMode = ""
	ParseHTML  ParseMode = "HTML"
)

// Keyboard is a persistent reply keyboard. Remove hides the current one.
type Keyboard struct {
	Rows   [][]string
	Remove bool
}

// Button is an inline action attached to one message. Exactly one of Data
// and URL is set.
type Button struct {
	Text string
	Data string
	URL  string
}

// Reply is one outgoing message. With PhotoID set the text becomes the
// caption.
type Reply struct {
	ChatID    int64
	Text      string
	PhotoID   string
	ParseMode ParseMode
	Keyboard  *Keyboard
	Inline    [][]Button
}

// Sender delivers replies to the platform.
type Sender interface {
	Send(ctx context.Context, r Reply) error
	AnswerCallback(ctx context.Context, callbackID, text string) error
}

// Rows builds a keyboard with the given rows.
func Rows(rows ...[]string) *Keyboard {
	return &Keyboard{Rows: rows}
}

// Row is sugar for a single keyboard row.
func Row(labels ...string) []string { return labels }
