package core

import "errors"

// Error codes sent to clients in error events.
const (
	ErrCodeInvalidInput           = "invalid_input"
	ErrCodeRoomNotFound           = "room_not_found"
	ErrCodeSenderUnknown          = "sender_unknown"
	ErrCodeTranslationUnavailable = "translation_unavailable"
	ErrCodeAnalysisFailed         = "analysis_failed"
	ErrCodeEmptyKnowledgeBase     = "empty_knowledge_base"
	ErrCodeDeliveryFailed         = "delivery_failed"
	ErrCodeBadRequest             = "bad_request"
	ErrCodeRateLimited            = "rate_limited"
)

var (
	ErrInvalidInput           = errors.New("invalid input")
	ErrNotFound               = errors.New("participant not found")
	ErrRoomNotFound           = errors.New("room not found")
	ErrSenderUnknown          = errors.New("sender is not in room")
	ErrTranslationUnavailable = errors.New("translation unavailable")
	ErrAnalysisFailed         = errors.New("analysis failed")
	ErrEmptyKnowledgeBase     = errors.New("knowledge base is empty")
	ErrClosed                 = errors.New("relay closed")
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}

// suggestionError maps an advisor failure to the code reported to the sender.
func suggestionError(err error) *CoreError {
	if errors.Is(err, ErrEmptyKnowledgeBase) {
		return coreError(ErrCodeEmptyKnowledgeBase, "suggestions unavailable: knowledge base is empty")
	}
	return coreError(ErrCodeAnalysisFailed, "suggestions unavailable")
}
