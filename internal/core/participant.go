package core

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Role is the kind of participant a connection joined as.
type Role string

const (
	// RoleUser is the end-user (customer) side of a conversation.
	RoleUser Role = "user"
	// RoleAgent answers end-users and receives suggestions.
	RoleAgent Role = "agent"
	// RoleSupervisor observes rooms with agent-level visibility.
	RoleSupervisor Role = "supervisor"
	// RoleSystem marks relay-generated notices. Not a participant role.
	RoleSystem Role = "system"
)

// Participant is a live connection's profile inside a room.
type Participant struct {
	ConnID   string `validate:"required"`
	Name     string `validate:"required"`
	Language string `validate:"required"`
	Role     Role   `validate:"required,oneof=user agent supervisor"`

	// Client receives the participant's events. Nil in registry-only use.
	Client *Client
}

var validate = validator.New()

// Validate reports ErrInvalidInput when a profile field is blank or the role is unknown.
func (p Participant) Validate() error {
	trimmed := Participant{
		ConnID:   strings.TrimSpace(p.ConnID),
		Name:     strings.TrimSpace(p.Name),
		Language: strings.TrimSpace(p.Language),
		Role:     p.Role,
	}
	if err := validate.Struct(trimmed); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidInput, describeValidation(err))
	}
	return nil
}

type messageInput struct {
	Room     string `validate:"required"`
	Text     string `validate:"required"`
	Language string `validate:"required"`
}

func validateMessage(room, text, language string) error {
	in := messageInput{
		Room:     strings.TrimSpace(room),
		Text:     strings.TrimSpace(text),
		Language: strings.TrimSpace(language),
	}
	if err := validate.Struct(in); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidInput, describeValidation(err))
	}
	return nil
}

func describeValidation(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return err.Error()
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, strings.ToLower(fe.Field()))
	}
	return "missing or invalid " + strings.Join(fields, ", ")
}

// sameLanguage compares full language tags, ignoring case and treating '_' as '-'.
// Script and region variants such as zh-Hans and zh-Hant are different languages.
func sameLanguage(a, b string) bool {
	return strings.EqualFold(normalizeTag(a), normalizeTag(b))
}

func normalizeTag(code string) string {
	return strings.ReplaceAll(strings.TrimSpace(code), "_", "-")
}
