package notify

import "strings"

// Category identifies what a notification reports.
type Category string

const (
	CategoryTranscriptionSucceeded Category = "transcription_succeeded"
	CategoryDeviceAccessDenied     Category = "device_access_denied"
	CategoryBelowMinimumSize       Category = "below_minimum_size"
	CategoryNetworkTimeout         Category = "network_timeout"
	CategoryPayloadTooLarge        Category = "payload_too_large"
	CategoryServiceUnavailable     Category = "service_unavailable"
	CategoryTranscriptionFailed    Category = "transcription_failed"
	CategoryCaptureFailed          Category = "capture_failed"
)

// Failure reports whether the category describes an error outcome.
func (c Category) Failure() bool {
	return c != CategoryTranscriptionSucceeded
}

const defaultFailureDetail = "Không nhận diện được giọng nói"

var fixedMessages = map[Category]string{
	CategoryDeviceAccessDenied: "❌ Không thể truy cập microphone. Vui lòng cho phép truy cập và thử lại.",
	CategoryBelowMinimumSize:   "❌ Audio quá ngắn. Vui lòng ghi âm lâu hơn.",
	CategoryPayloadTooLarge:    "❌ File audio quá lớn. Vui lòng ghi âm ngắn hơn.",
	CategoryNetworkTimeout:     "❌ Timeout xử lý giọng nói. Vui lòng thử lại.",
	CategoryServiceUnavailable: "❌ Lỗi xử lý giọng nói. Vui lòng thử lại.",
	CategoryCaptureFailed:      "❌ Lỗi ghi âm. Vui lòng thử lại.",
}

// Message renders the user-facing text for a category.
// detail is the transcript for successes and the remote message for TranscriptionFailed.
func Message(category Category, detail string) string {
	detail = strings.TrimSpace(detail)
	switch category {
	case CategoryTranscriptionSucceeded:
		return "🎤 \"" + detail + "\""
	case CategoryTranscriptionFailed:
		if detail == "" {
			detail = defaultFailureDetail
		}
		return "❌ " + detail
	}
	if text, ok := fixedMessages[category]; ok {
		return text
	}
	return fixedMessages[CategoryServiceUnavailable]
}

// Title is the short heading used by desktop sinks.
func Title(category Category) string {
	if category.Failure() {
		return "askvoice: lỗi"
	}
	return "askvoice"
}
