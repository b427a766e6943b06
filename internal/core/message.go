package core

import "time"

// Tag is the visibility category of a history record.
type Tag string

const (
	TagPublic  Tag = "public"
	TagSystem  Tag = "system"
	TagPrivate Tag = "private"
)

// SystemSender is the display name used on relay notices.
const SystemSender = "System"

// Record is an immutable delivered message as kept in a room's history.
type Record struct {
	Sender       string
	SenderRole   Role
	Text         string
	OriginalText string
	Translated   bool
	Tag          Tag
	Timestamp    time.Time
}

// visibleTo reports whether the record may be replayed to the given role.
func (r Record) visibleTo(role Role) bool {
	if role != RoleUser {
		return true
	}
	return r.Tag != TagSystem && r.Tag != TagPrivate
}

func systemRecord(text string, at time.Time) Record {
	return Record{
		Sender:       SystemSender,
		SenderRole:   RoleSystem,
		Text:         text,
		OriginalText: text,
		Tag:          TagSystem,
		Timestamp:    at,
	}
}
