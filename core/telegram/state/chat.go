package state

import "sync"

// Message is one cached inbound message. Entries are never mutated after append.
type Message struct {
	ID       int    `json:"id"`
	UserID   int64  `json:"user_id"`
	Username string `json:"username,omitempty"`
	Text     string `json:"text,omitempty"`
	PhotoID  string `json:"photo_id,omitempty"`
	Unix     int64  `json:"unix"`
}

// ChatState is the serialisable form of a Chat.
type ChatState struct {
	ID       int64     `json:"id"`
	Started  bool      `json:"started"`
	Awake    bool      `json:"awake"`
	Messages []Message `json:"messages,omitempty"`
}

// Chat is the live state of one chat. It is created lazily by Store.Chat.
type Chat struct {
	mu sync.RWMutex
	st ChatState
}

func newChat(id int64) *Chat {
	return &Chat{st: ChatState{ID: id, Awake: true}}
}

func chatFromState(st ChatState) *Chat {
	st.Messages = append([]Message(nil), st.Messages...)
	return &Chat{st: st}
}

// ID returns the chat identifier.
func (c *Chat) ID() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.st.ID
}

// Started reports whether /start was issued in this chat.
func (c *Chat) Started() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.st.Started
}

// Start marks the chat as started. It reports false when it already was.
func (c *Chat) Start() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.st.Started {
		return false
	}
	c.st.Started = true
	return true
}

// Awake reports whether the bot should respond in this chat.
func (c *Chat) Awake() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.st.Awake
}

// Sleep silences the bot in this chat.
func (c *Chat) Sleep() {
	c.mu.Lock()
	c.st.Awake = false
	c.mu.Unlock()
}

// Wake undoes Sleep.
func (c *Chat) Wake() {
	c.mu.Lock()
	c.st.Awake = true
	c.mu.Unlock()
}

// Append adds m to the end of the message cache.
func (c *Chat) Append(m Message) {
	c.mu.Lock()
	c.st.Messages = append(c.st.Messages, m)
	c.mu.Unlock()
}

// Cache returns a copy of the message cache in arrival order.
func (c *Chat) Cache() []Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Message(nil), c.st.Messages...)
}

// State returns a deep copy of the chat state.
func (c *Chat) State() ChatState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st := c.st
	st.Messages = append([]Message(nil), c.st.Messages...)
	return st
}
