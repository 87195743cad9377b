package model

import "sync"

// Conn is the outbound side of a participant connection.
// Messages pushed with Send are drained by the transport's sender loop.
type Conn struct {
	ID string

	tx   chan Message
	done chan struct{}
	once sync.Once
}

func NewConn(id string, bufSize int) *Conn {
	return &Conn{
		ID:   id,
		tx:   make(chan Message, bufSize),
		done: make(chan struct{}),
	}
}

// Send queues msg for delivery. It never blocks: if the connection
// is closed or its queue is full the message is dropped and false is returned.
func (c *Conn) Send(msg Message) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.tx <- msg:
		return true
	default:
		return false
	}
}

func (c *Conn) TX() <-chan Message {
	return c.tx
}

func (c *Conn) Done() <-chan struct{} {
	return c.done
}

func (c *Conn) IsOpen() bool {
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}

// Close marks connection as closed. Safe to call multiple times.
func (c *Conn) Close() {
	c.once.Do(func() {
		close(c.done)
	})
}
