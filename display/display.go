// Copyright (c) 2024 The alsanna authors. MIT License.

// Package display defines the tagged message variant carried on the UI
// Coordinator's shared display channel.
package display

import "github.com/dulaku/alsanna/msgsock"

// Kind discriminates the payload carried by a Msg.
type Kind uint8

const (
	// Register is sent once per direction, by the Connection Manager, to
	// bind a queue key to the channel its Forwarder will receive edited
	// text on.
	Register Kind = iota
	// Payload is a printable-form message from a direction wanting
	// display, and optionally, editing.
	Payload
	// Kill retires a queue key's registration once its Forwarder exits.
	Kill
	// Err reports a failure for operator visibility; errors
	// never otherwise leave the goroutine that produced them.
	Err
	// Note is an operator notification, e.g. the toggle-key listing.
	Note
)

// Msg is the single type flowing over the UI Coordinator's display
// channel.
type Msg struct {
	Kind Kind

	// Key identifies the direction for Register/Payload/Kill.
	Key msgsock.QueueKey
	// Result is the one-slot FIFO the UI posts the (possibly edited) text
	// back to, set only on Register.
	Result chan string
	// Text is the printable payload for Payload, or the body for Note.
	Text string

	// Summary/Detail carry an Err message's headline and full detail
	// payload).
	Summary string
	Detail  string
}

// NewRegister builds a Register message binding key to result.
func NewRegister(key msgsock.QueueKey, result chan string) Msg {
	return Msg{Kind: Register, Key: key, Result: result}
}

// NewPayload builds a Payload message carrying text for key's direction.
func NewPayload(key msgsock.QueueKey, text string) Msg {
	return Msg{Kind: Payload, Key: key, Text: text}
}

// NewKill builds a Kill message retiring key's registration.
func NewKill(key msgsock.QueueKey) Msg {
	return Msg{Kind: Kill, Key: key}
}

// NewErr builds an Err message.
func NewErr(summary, detail string) Msg {
	return Msg{Kind: Err, Summary: summary, Detail: detail}
}

// NewNote builds a Note message.
func NewNote(text string) Msg {
	return Msg{Kind: Note, Text: text}
}
