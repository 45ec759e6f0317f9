// Package chat – sentinel errors
//
// Service-level errors returned by the Manager for predictable cases so
// transports can map them to user-facing results consistently.
package chat

import "errors"

var (
	// ErrNotAuthenticated is returned when a send is attempted without a
	// signed-in user.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrNoRoomJoined is returned when a send is attempted before any room
	// has been joined.
	ErrNoRoomJoined = errors.New("no room joined")

	// ErrEmptyMessage is returned when the message body is blank after
	// trimming whitespace.
	ErrEmptyMessage = errors.New("empty message")

	// ErrMessageTooLong is returned when the message body exceeds the
	// configured rune limit.
	ErrMessageTooLong = errors.New("message too long")

	// ErrRoomNotFound is returned when the requested room does not exist.
	ErrRoomNotFound = errors.New("room not found")

	// ErrRoomForbidden is returned when the user may not enter the
	// requested room.
	ErrRoomForbidden = errors.New("room forbidden")

	// ErrSendFailed wraps persistence failures surfaced during a send.
	ErrSendFailed = errors.New("send failed")
)
