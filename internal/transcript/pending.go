// Package transcript normalizes recognized text and merges it into the pending input.
package transcript

import "strings"

// Options controls output formatting when a transcript leaves the program.
type Options struct {
	TrailingSpace bool
}

// Normalize collapses runs of whitespace and trims the ends.
func Normalize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// Separator returns what goes between previous and next when next is appended:
// one space when both carry text and previous does not already end in whitespace.
func Separator(previous string, next string) string {
	if strings.TrimSpace(previous) == "" || strings.TrimSpace(next) == "" {
		return ""
	}
	if strings.TrimRight(previous, " \t\n") != previous {
		return ""
	}
	return " "
}

// AppendPending joins recognized text onto the pending input as "pending text".
// An empty pending input yields the text alone.
func AppendPending(pending string, text string) string {
	pending = strings.TrimSpace(pending)
	text = Normalize(text)
	if text == "" {
		return pending
	}
	return pending + Separator(pending, text) + text
}

// Format prepares text for clipboard or paste output.
func Format(text string, opts Options) string {
	normalized := Normalize(text)
	if normalized == "" {
		return ""
	}
	if opts.TrailingSpace {
		return normalized + " "
	}
	return normalized
}
