package domain

import "fmt"

// Event is an input to the document lifecycle state machine.
type Event string

const (
	EventClassificationStarted  Event = "classification_started"
	EventClassificationFinished Event = "classification_finished"
	EventTypeAssigned           Event = "type_assigned"
	EventExtractionStarted      Event = "extraction_started"
	EventExtractionSucceeded    Event = "extraction_succeeded"
	EventExtractionFailed       Event = "extraction_failed"
	EventReviewUpdated          Event = "review_updated"
	EventReviewCompleted        Event = "review_completed"
)

var transitions = map[DocumentStatus]map[Event]DocumentStatus{
	StatusUploaded: {
		EventClassificationStarted: StatusClassifying,
		EventTypeAssigned:          StatusReadyToExtract,
	},
	StatusClassifying: {
		EventClassificationFinished: StatusReadyToExtract,
		EventTypeAssigned:           StatusReadyToExtract,
	},
	StatusReadyToExtract: {
		EventTypeAssigned:      StatusReadyToExtract,
		EventExtractionStarted: StatusExtracting,
	},
	StatusExtracting: {
		EventExtractionSucceeded: StatusReview,
		EventExtractionFailed:    StatusReadyToExtract,
	},
	StatusReview: {
		EventTypeAssigned:      StatusReview,
		EventExtractionStarted: StatusExtracting,
		EventReviewUpdated:     StatusReview,
		EventReviewCompleted:   StatusCompleted,
	},
	StatusCompleted: {},
}

// Transition is the pure lifecycle function. Nothing transitions back to Uploaded.
func Transition(from DocumentStatus, event Event) (DocumentStatus, error) {
	edges, ok := transitions[from]
	if !ok {
		return from, WrapError(ErrInvalidTransition, "transition", fmt.Errorf("unknown status %q", from))
	}
	to, ok := edges[event]
	if !ok {
		return from, WrapError(ErrInvalidTransition, "transition", fmt.Errorf("%s does not accept %s", from, event))
	}
	return to, nil
}

// Statuses lists every lifecycle state.
func Statuses() []DocumentStatus {
	return []DocumentStatus{
		StatusUploaded,
		StatusClassifying,
		StatusReadyToExtract,
		StatusExtracting,
		StatusReview,
		StatusCompleted,
	}
}
