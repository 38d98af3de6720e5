package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"askingwho-backend/application/ports"
	"askingwho-backend/domain/core/entities"
)

// QuestionStore is an in-memory QuestionRepository
type QuestionStore struct {
	mu        sync.RWMutex
	questions map[string]*entities.Question
}

// NewQuestionStore creates an empty question store
func NewQuestionStore() *QuestionStore {
	return &QuestionStore{questions: make(map[string]*entities.Question)}
}

func (s *QuestionStore) Create(ctx context.Context, q *entities.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.questions[q.ID]; exists {
		return ports.ErrConflict
	}
	s.questions[q.ID] = cloneQuestion(q)
	return nil
}

func (s *QuestionStore) GetByID(ctx context.Context, id string) (*entities.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q, ok := s.questions[id]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return cloneQuestion(q), nil
}

func (s *QuestionStore) SetAnswer(ctx context.Context, id, answer string, now time.Time) (*entities.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.questions[id]
	if !ok {
		return nil, ports.ErrNotFound
	}
	previous := cloneQuestion(q)
	q.Answer = answer
	if q.AnsweredAt == nil {
		at := now
		q.AnsweredAt = &at
	}
	return previous, nil
}

func (s *QuestionStore) AddLike(ctx context.Context, id, userID string) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.questions[id]
	if !ok {
		return 0, false, ports.ErrNotFound
	}
	if q.HasLike(userID) {
		return len(q.Likes), false, nil
	}
	q.Likes = append(q.Likes, userID)
	return len(q.Likes), true, nil
}

func (s *QuestionStore) RemoveLike(ctx context.Context, id, userID string) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.questions[id]
	if !ok {
		return 0, false, ports.ErrNotFound
	}
	for i, v := range q.Likes {
		if v == userID {
			q.Likes = append(q.Likes[:i], q.Likes[i+1:]...)
			return len(q.Likes), true, nil
		}
	}
	return len(q.Likes), false, nil
}

func (s *QuestionStore) AppendComment(ctx context.Context, id string, comment entities.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.questions[id]
	if !ok {
		return ports.ErrNotFound
	}
	q.Comments = append(q.Comments, comment)
	return nil
}

func (s *QuestionStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.questions[id]; !ok {
		return ports.ErrNotFound
	}
	delete(s.questions, id)
	return nil
}

func (s *QuestionStore) ListUnanswered(ctx context.Context, toID string) ([]*entities.Question, error) {
	out := s.filter(func(q *entities.Question) bool { return q.ToID == toID && !q.IsAnswered() })
	sortByCreatedDesc(out)
	return out, nil
}

func (s *QuestionStore) ListAnswered(ctx context.Context, toID string, skip, limit int) ([]*entities.Question, int, error) {
	out := s.filter(func(q *entities.Question) bool { return q.ToID == toID && q.IsAnswered() })
	sortByCreatedDesc(out)
	return window(out, skip, limit), len(out), nil
}

func (s *QuestionStore) ListFeed(ctx context.Context, skip, limit int) ([]*entities.Question, int, error) {
	out := s.filter(func(q *entities.Question) bool { return q.IsAnswered() && q.AnsweredAt != nil })
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].AnsweredAt.Equal(*out[j].AnsweredAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].AnsweredAt.After(*out[j].AnsweredAt)
	})
	return window(out, skip, limit), len(out), nil
}

func (s *QuestionStore) ListByRecipient(ctx context.Context, toID string) ([]*entities.Question, error) {
	out := s.filter(func(q *entities.Question) bool { return q.ToID == toID })
	sortByCreatedDesc(out)
	return out, nil
}

func (s *QuestionStore) CountAnsweredByRecipient(ctx context.Context) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int)
	for _, q := range s.questions {
		if q.IsAnswered() {
			counts[q.ToID]++
		}
	}
	return counts, nil
}

func (s *QuestionStore) filter(keep func(*entities.Question) bool) []*entities.Question {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*entities.Question
	for _, q := range s.questions {
		if keep(q) {
			out = append(out, cloneQuestion(q))
		}
	}
	return out
}

func sortByCreatedDesc(qs []*entities.Question) {
	sort.SliceStable(qs, func(i, j int) bool {
		if qs[i].CreatedAt.Equal(qs[j].CreatedAt) {
			return qs[i].ID > qs[j].ID
		}
		return qs[i].CreatedAt.After(qs[j].CreatedAt)
	})
}

func window[T any](items []T, skip, limit int) []T {
	if skip >= len(items) {
		return []T{}
	}
	end := skip + limit
	if limit <= 0 || end > len(items) {
		end = len(items)
	}
	return items[skip:end]
}

func cloneQuestion(q *entities.Question) *entities.Question {
	c := *q
	c.Likes = append([]string{}, q.Likes...)
	c.Reposts = append([]string{}, q.Reposts...)
	c.Comments = append([]entities.Comment{}, q.Comments...)
	if q.AnsweredAt != nil {
		at := *q.AnsweredAt
		c.AnsweredAt = &at
	}
	return &c
}
