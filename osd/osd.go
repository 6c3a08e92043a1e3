// Package osd carries player-facing messages to the host's on-screen
// display. The host supplies a single callback at device creation; services
// use it sparingly, for failures the player should actually see.
package osd

// Handler is the host-supplied display callback. It may be called from any
// goroutine. A nil Handler is valid and drops every message.
type Handler func(message string, color uint32, durationMS uint32)

// Message colors, ARGB.
const (
	ColorCyan   uint32 = 0xff00ffff
	ColorGreen  uint32 = 0xff00ff00
	ColorRed    uint32 = 0xffff0000
	ColorYellow uint32 = 0xffffff30
)

// Display durations in milliseconds.
const (
	DurationShort    uint32 = 2000
	DurationNormal   uint32 = 5000
	DurationVeryLong uint32 = 10000
)

// Send forwards a message if a handler is installed.
func (h Handler) Send(message string, color uint32, durationMS uint32) {
	if h == nil {
		return
	}
	h(message, color, durationMS)
}
