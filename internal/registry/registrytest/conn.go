// Package registrytest provides a recording connection handle for tests.
package registrytest

import (
	"encoding/json"
	"errors"
	"sync"

	"social-app/internal/models"
)

var ErrClosed = errors.New("connection closed")

// Conn records every payload sent to it. A failing Conn rejects sends.
type Conn struct {
	id string

	mu      sync.Mutex
	sent    [][]byte
	failing bool
}

func NewConn(id string) *Conn {
	return &Conn{id: id}
}

func (c *Conn) ID() string { return c.id }

func (c *Conn) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failing {
		return ErrClosed
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	c.sent = append(c.sent, cp)
	return nil
}

// Fail makes every later Send return ErrClosed.
func (c *Conn) Fail() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failing = true
}

// Raw returns the payloads received so far.
func (c *Conn) Raw() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.sent))
	copy(out, c.sent)
	return out
}

// Envelope is a decoded envelope with its data left raw.
type Envelope struct {
	Type models.EventType `json:"type"`
	Data json.RawMessage  `json:"data"`
}

// Envelopes decodes every payload received so far.
func (c *Conn) Envelopes() []Envelope {
	var out []Envelope
	for _, raw := range c.Raw() {
		var env Envelope
		if err := json.Unmarshal(raw, &env); err == nil {
			out = append(out, env)
		}
	}
	return out
}

// OfType returns the envelopes of type t in arrival order.
func (c *Conn) OfType(t models.EventType) []Envelope {
	var out []Envelope
	for _, env := range c.Envelopes() {
		if env.Type == t {
			out = append(out, env)
		}
	}
	return out
}

// Reset forgets everything received.
func (c *Conn) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = nil
}
