package entities

import (
	"strings"
	"time"

	pkgerrors "askingwho-backend/pkg/errors"
)

// Comment is an entry in a question's append-only comment thread
type Comment struct {
	UserID    string    `json:"user" dynamodbav:"user"`
	Text      string    `json:"text" dynamodbav:"text"`
	CreatedAt time.Time `json:"createdAt" dynamodbav:"createdAt"`
}

// Question is sent from one member (or anonymously) to another. It moves from
// unanswered to answered exactly once; AnsweredAt never changes afterwards.
type Question struct {
	ID          string     `json:"id"`
	FromID      string     `json:"from,omitempty"`
	ToID        string     `json:"to"`
	Text        string     `json:"text"`
	IsAnonymous bool       `json:"isAnonymous"`
	Answer      string     `json:"answer"`
	AnsweredAt  *time.Time `json:"answeredAt,omitempty"`
	Likes       []string   `json:"likes"`
	Reposts     []string   `json:"reposts"`
	Comments    []Comment  `json:"comments"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// NewQuestion validates input and builds an unanswered question
func NewQuestion(id, fromID, toID, text string, isAnonymous bool, maxLen int, now time.Time) (*Question, error) {
	text = strings.TrimSpace(text)
	if err := ValidateText("question", text, maxLen); err != nil {
		return nil, err
	}
	if toID == "" {
		return nil, pkgerrors.NewValidationError("recipient is required")
	}
	if fromID != "" && fromID == toID {
		return nil, pkgerrors.NewSelfReferenceError("ask")
	}
	// Without a known sender the question can only be anonymous.
	if fromID == "" {
		isAnonymous = true
	}
	return &Question{
		ID:          id,
		FromID:      fromID,
		ToID:        toID,
		Text:        text,
		IsAnonymous: isAnonymous,
		Likes:       []string{},
		Reposts:     []string{},
		Comments:    []Comment{},
		CreatedAt:   now,
	}, nil
}

// IsAnswered reports whether the question has a non-empty answer
func (q *Question) IsAnswered() bool {
	return q.Answer != ""
}

// HasLike reports whether userID liked the question
func (q *Question) HasLike(userID string) bool {
	return containsID(q.Likes, userID)
}

// VisibleFromID returns the sender id unless the question is anonymous
func (q *Question) VisibleFromID() string {
	if q.IsAnonymous {
		return ""
	}
	return q.FromID
}

// ValidateText rejects blank and over-long free text
func ValidateText(field, text string, maxLen int) error {
	if strings.TrimSpace(text) == "" {
		return pkgerrors.NewValidationError(field + " text cannot be empty").WithCode(pkgerrors.CodeEmptyText)
	}
	if maxLen > 0 && len([]rune(text)) > maxLen {
		return pkgerrors.NewValidationError(field + " text is too long").
			WithCode(pkgerrors.CodeTextTooLong).
			WithDetails(map[string]interface{}{"maxLength": maxLen})
	}
	return nil
}
