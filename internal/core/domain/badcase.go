package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type BadCaseType string

const (
	BadCaseMissed    BadCaseType = "missed"
	BadCaseIncorrect BadCaseType = "incorrect"
)

func (t BadCaseType) Valid() bool {
	return t == BadCaseMissed || t == BadCaseIncorrect
}

// BadCase is a span of source text a reviewer flagged.
type BadCase struct {
	ID        string      `json:"id"`
	Text      string      `json:"text"`
	Type      BadCaseType `json:"type"`
	Note      string      `json:"note,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

func NewBadCase(text string, kind BadCaseType, note string) (BadCase, error) {
	if strings.TrimSpace(text) == "" {
		return BadCase{}, WrapError(ErrInvalidInput, "mark bad case", fmt.Errorf("text is empty"))
	}
	if !kind.Valid() {
		return BadCase{}, WrapError(ErrInvalidInput, "mark bad case", fmt.Errorf("unknown type %q", kind))
	}
	return BadCase{
		ID:        uuid.NewString(),
		Text:      text,
		Type:      kind,
		Note:      strings.TrimSpace(note),
		CreatedAt: time.Now().UTC(),
	}, nil
}
