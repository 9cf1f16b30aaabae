package chat

import "github.com/parishops/livestream-service/internal/model"

// Feed is the consumer-side view of a session's chat. The transport delivers
// at-least-once, so Append is idempotent by message id; Remove reconciles a
// moderator delete locally (no push-delete event exists).
type Feed struct {
	messages []*model.Message
	seen     map[string]struct{}
}

// NewFeed creates a feed, optionally primed with history.
func NewFeed(history []*model.Message) *Feed {
	f := &Feed{
		messages: make([]*model.Message, 0, len(history)),
		seen:     make(map[string]struct{}, len(history)),
	}
	for _, m := range history {
		f.Append(m)
	}
	return f
}

// Append adds a message unless its id is already present. Returns true when
// the message was actually added.
func (f *Feed) Append(m *model.Message) bool {
	if _, ok := f.seen[m.ID]; ok {
		return false
	}
	f.seen[m.ID] = struct{}{}
	f.messages = append(f.messages, m)
	return true
}

// Remove drops a message by id. Returns true when it was present.
func (f *Feed) Remove(id string) bool {
	if _, ok := f.seen[id]; !ok {
		return false
	}
	delete(f.seen, id)
	for i, m := range f.messages {
		if m.ID == id {
			f.messages = append(f.messages[:i], f.messages[i+1:]...)
			break
		}
	}
	return true
}

// Messages returns the current feed contents in append order.
func (f *Feed) Messages() []*model.Message {
	return f.messages
}

// Len returns the number of visible messages.
func (f *Feed) Len() int {
	return len(f.messages)
}
