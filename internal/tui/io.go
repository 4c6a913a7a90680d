// Package tui defines the IO interface between the chat session and the
// user interface layer, plus PlainIO (interactive terminal) and PipeIO
// (non-interactive pipe/CI mode).
package tui

// IO is the contract between the chat loop and the UI layer.
// Every method maps to a distinct visual event, so the session never
// depends on any specific rendering implementation. The Stream* methods
// mirror the stream controller's sink contract.
type IO interface {
	// ReadInput blocks until the user submits a line of input.
	// Returns ("", io.EOF) when the user quits.
	ReadInput() (string, error)

	// UserMessage displays the user's submitted message in the output area.
	UserMessage(text string)

	// ThinkingStart signals that the model has started processing.
	ThinkingStart()

	// StreamDelta appends a flushed text chunk from the response stream.
	StreamDelta(delta string)

	// StreamReplace replaces the entire visible response text. Emitted
	// when a cumulative stream restarts instead of extending itself.
	StreamReplace(text string)

	// StreamDone signals that the current response is complete.
	// fullText is the entire response; cancelled marks a turn the user
	// stopped early, which is not an error.
	StreamDone(fullText string, cancelled bool)

	// StreamError displays a generation failure with prominent styling.
	// Any partial text already shown stays on screen.
	StreamError(err error)

	// SystemMessage displays a system-level notice (command feedback,
	// chapter listings, session status).
	SystemMessage(text string)

	// Error displays an error message with prominent styling.
	Error(msg string)

	// SetContextInfo updates the token budget indicator.
	// used is the total token count after the last completed turn,
	// quota is the context window budget.
	SetContextInfo(used, quota int)
}
