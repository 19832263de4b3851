package domain

import (
	"errors"
	"fmt"
)

var (
	ErrDocumentNotFound  = errors.New("document not found")
	ErrRuleNotFound      = errors.New("rule not found")
	ErrFieldNotFound     = errors.New("field not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrRuleNotBound      = errors.New("no extraction rule bound")
	ErrNoFeedback        = errors.New("no bad cases recorded")
	ErrNoCorrections     = errors.New("no manual corrections detected")
	ErrDocumentBusy      = errors.New("document has an operation in progress")
	ErrStaleRule         = errors.New("rule changed since it was read")
	ErrStatusChanged     = errors.New("document status changed since it was read")
	ErrTemporary         = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
