package render

import (
	"html"
	"strings"
)

// Chat texts shown by the bot. Messages are sent with HTML parse mode.
const (
	DiscardedMessage       = "❌ Draft discarded."
	NothingToSaveMessage   = "No active voice note to save."
	NothingToCancelMessage = "No active voice note to cancel."
	SavedPrefix            = "✅ "

	UnauthorizedMessage     = "You are not authorized to use this bot."
	TranscribeFailedMessage = "Could not transcribe the voice message. Please try again."
	VoiceErrorMessage       = "Something went wrong processing your voice note. Please try again."
	CaptureFailedMessage    = "Failed to save note. Please try again."
	BusyMessage             = "Still working on your earlier messages. Please send that again in a moment."
)

// HelpMessage is sent for /start and /help and to allowed users on startup.
const HelpMessage = `Welcome to Focus Bot!

I capture your thoughts and save them as notes in your Obsidian vault.

How to use:
- Send me any text message and I'll title, tag and save it
- Links get a summary appended once the page has been read
- Send a voice message to start a draft, then keep talking to refine it
- Say "save" or react 👍 to the draft to keep it, say "cancel" to drop it

Commands:
/start - Show this help message
/health - Check bot health and uptime
/cancel - Discard the current voice draft`

// CapturedMessage confirms a text capture.
func CapturedMessage(title string) string {
	return "Saved: " + html.EscapeString(title)
}

// DraftMessage renders a draft as an Obsidian note preview.
func DraftMessage(title string, tags []string, body string) string {
	var b strings.Builder
	b.WriteString("<b>")
	b.WriteString(html.EscapeString(title))
	// Zero-width space keeps clients from linkifying "title.md".
	b.WriteString("</b>\u200b.md\n\n---\nTags:\n")
	for _, t := range NoteTags(tags) {
		b.WriteString("  - <i>")
		b.WriteString(html.EscapeString(t))
		b.WriteString("</i>\n")
	}
	b.WriteString("---\n")
	b.WriteString(html.EscapeString(body))
	return b.String()
}

// SavedMessage renders the preview of a saved draft.
func SavedMessage(title string, tags []string, body string) string {
	return DraftMessage(SavedPrefix+title, tags, body)
}
