// Package chattest provides a recording chat.Sender for tests.
package chattest

import (
	"context"
	"sync"

	"github.com/oggyb/matchbot/internal/chat"
	svcErr "github.com/oggyb/matchbot/internal/errors"
)

// Recorder captures every outgoing reply. Chats listed in Blocked fail with
// a transport error as if the user had blocked the bot.
type Recorder struct {
	mu      sync.Mutex
	replies []chat.Reply
	answers []string
	blocked map[int64]bool
}

func New() *Recorder {
	return &Recorder{blocked: make(map[int64]bool)}
}

// Block makes sends to chatID fail.
func (r *Recorder) Block(chatID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blocked[chatID] = true
}

func (r *Recorder) Send(_ context.Context, reply chat.Reply) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.blocked[reply.ChatID] {
		return svcErr.Transport("bot was blocked by the user", nil)
	}
	r.replies = append(r.replies, reply)
	return nil
}

func (r *Recorder) AnswerCallback(_ context.Context, callbackID, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.answers = append(r.answers, callbackID)
	return nil
}

// All returns every delivered reply in send order.
func (r *Recorder) All() []chat.Reply {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]chat.Reply(nil), r.replies...)
}

// To returns replies delivered to chatID.
func (r *Recorder) To(chatID int64) []chat.Reply {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []chat.Reply
	for _, rep := range r.replies {
		if rep.ChatID == chatID {
			out = append(out, rep)
		}
	}
	return out
}

// Last returns the most recent reply to chatID.
func (r *Recorder) Last(chatID int64) (chat.Reply, bool) {
	to := r.To(chatID)
	if len(to) == 0 {
		return chat.Reply{}, false
	}
	return to[len(to)-1], true
}

// Answers returns the ids of answered callbacks.
func (r *Recorder) Answers() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.answers...)
}

// Reset forgets everything recorded so far.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replies = nil
	r.answers = nil
}
