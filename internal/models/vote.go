package models

import "fmt"

// VoteDirection is the intent of a single vote.
type VoteDirection string

const (
	VoteUp   VoteDirection = "up"
	VoteDown VoteDirection = "down"
)

// Delta returns the counter change for the direction.
func (d VoteDirection) Delta() (int, bool) {
	switch d {
	case VoteUp:
		return 1, true
	case VoteDown:
		return -1, true
	}
	return 0, false
}

// EntityKind names the votable content types.
type EntityKind string

const (
	EntityQuestion EntityKind = "question"
	EntityAnswer   EntityKind = "answer"
)

// EntityRef points at a votable record.
type EntityRef struct {
	Kind EntityKind
	ID   uint
}

// Table returns the table holding the referenced record.
func (r EntityRef) Table() (string, bool) {
	switch r.Kind {
	case EntityQuestion:
		return "questions", true
	case EntityAnswer:
		return "answers", true
	}
	return "", false
}

// Resource is the label used in not-found errors.
func (r EntityRef) Resource() string {
	switch r.Kind {
	case EntityQuestion:
		return "Question"
	case EntityAnswer:
		return "Answer"
	}
	return string(r.Kind)
}

func (r EntityRef) String() string {
	return fmt.Sprintf("%s:%d", r.Kind, r.ID)
}
