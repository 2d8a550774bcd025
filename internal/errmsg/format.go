// Package errmsg provides consistent error formatting for user-facing messages.
package errmsg

import "fmt"

// Op represents an operation that can fail.
type Op string

// Operation constants - grouped by domain.
const (
	// Playback operations
	OpLoadChapter Op = "load chapter"
	OpPlay        Op = "start playback"
	OpPause       Op = "pause playback"
	OpSeek        Op = "seek"
	OpSkip        Op = "skip"

	// Sleep timer
	OpSleepPause Op = "pause for sleep timer"

	// Progress operations
	OpProgressRead  Op = "read listening progress"
	OpProgressWrite Op = "save listening progress"

	// Entitlement operations
	OpEntitlementRead  Op = "check purchase status"
	OpSubscriptionRead Op = "check subscription status"

	// Content operations
	OpItemIngest Op = "load book details"

	// Initialization
	OpInitialize Op = "initialize playback"
)

// Format creates a user-friendly error message.
func Format(op Op, err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("Failed to %s: %v", op, err)
}

// FormatWith creates an error message with additional context.
func FormatWith(op Op, context string, err error) string {
	if err == nil {
		return ""
	}
	if context == "" {
		return Format(op, err)
	}
	return fmt.Sprintf("Failed to %s '%s': %v", op, context, err)
}
