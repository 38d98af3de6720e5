package services

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"askingwho-backend/application/ports"
	"askingwho-backend/domain/core/entities"
	"askingwho-backend/domain/mentions"
	"askingwho-backend/pkg/common"
	pkgerrors "askingwho-backend/pkg/errors"
)

// DefaultAnsweredLimit is the page size of answered-question listings and the feed
const DefaultAnsweredLimit = 10

// EngagementService owns the question lifecycle: asking, answering, likes,
// comments and deletion, plus the mention fan-out they trigger
type EngagementService struct {
	questions ports.QuestionRepository
	profiles  ports.ProfileRepository
	notifier  *NotificationDispatcher
	limits    ports.LimitSource
	clock     ports.Clock
	ids       ports.IDGenerator
	logger    *zap.Logger
}

// NewEngagementService creates a new engagement service
func NewEngagementService(deps Dependencies, notifier *NotificationDispatcher) *EngagementService {
	deps.withDefaults()
	return &EngagementService{
		questions: deps.Questions,
		profiles:  deps.Profiles,
		notifier:  notifier,
		limits:    deps.Limits,
		clock:     deps.Clock,
		ids:       deps.IDs,
		logger:    deps.Logger,
	}
}

// SendQuestion stores a question from fromID (empty for a guest) to toID and
// notifies the recipient
func (s *EngagementService) SendQuestion(ctx context.Context, fromID, toID, text string, isAnonymous bool) (*entities.Question, error) {
	q, err := entities.NewQuestion(s.ids.NewID(), fromID, toID, text, isAnonymous, s.limits.TextLimits().Question, s.clock.Now())
	if err != nil {
		return nil, err
	}

	if _, err := s.profiles.GetByID(ctx, toID); err != nil {
		return nil, storeError(err, "recipient", "profiles.GetByID")
	}
	var sender *entities.Profile
	if fromID != "" {
		if sender, err = s.profiles.GetByID(ctx, fromID); err != nil {
			return nil, storeError(err, "sender", "profiles.GetByID")
		}
	}

	if err := s.questions.Create(ctx, q); err != nil {
		return nil, storeError(err, "question", "questions.Create")
	}
	if err := s.profiles.IncrementStat(ctx, toID, entities.StatQuestions, 1); err != nil {
		s.logger.Warn("Failed to increment question counter", zap.String("userID", toID), zap.Error(err))
	}

	notice := textAnonymousQuestion
	if !q.IsAnonymous {
		notice = questionText(sender)
	}
	s.notifier.Notify(ctx, toID, q.VisibleFromID(), entities.NotificationQuestion, q.ID, notice)

	s.logger.Info("Question sent",
		zap.String("questionID", q.ID),
		zap.String("toID", toID),
		zap.Bool("anonymous", q.IsAnonymous),
	)
	return q, nil
}

// SendQuestionTo resolves the recipient by username and sends the question
func (s *EngagementService) SendQuestionTo(ctx context.Context, fromID, toUsername, text string, isAnonymous bool) (*entities.Question, error) {
	to, err := s.profiles.GetByUsername(ctx, toUsername)
	if err != nil {
		return nil, storeError(err, "recipient", "profiles.GetByUsername")
	}
	return s.SendQuestion(ctx, fromID, to.ID, text, isAnonymous)
}

// Answer stores the recipient's answer and returns the updated view. The first
// answer stamps answeredAt and notifies members mentioned in the question and
// in the answer; later edits only notify handles the edit newly introduces.
func (s *EngagementService) Answer(ctx context.Context, questionID, answererID, text string) (*entities.QuestionView, error) {
	text = strings.TrimSpace(text)
	if err := entities.ValidateText("answer", text, s.limits.TextLimits().Answer); err != nil {
		return nil, err
	}

	q, err := s.questions.GetByID(ctx, questionID)
	if err != nil {
		return nil, storeError(err, "question", "questions.GetByID")
	}
	if q.ToID != answererID {
		return nil, pkgerrors.NewForbiddenError("only the recipient can answer this question").WithCode(pkgerrors.CodeNotOwner)
	}

	previous, err := s.questions.SetAnswer(ctx, questionID, text, s.clock.Now())
	if err != nil {
		return nil, storeError(err, "question", "questions.SetAnswer")
	}

	if previous.IsAnswered() {
		s.notifyMentions(ctx, mentions.Introduced(previous.Answer, text), answererID, questionID, textAnswerMention)
	} else {
		s.notifyMentions(ctx, mentions.Extract(q.Text), answererID, questionID, textQuestionMention)
		s.notifyMentions(ctx, mentions.Extract(text), answererID, questionID, textAnswerMention)
	}

	return s.Get(ctx, questionID)
}

// Like adds userID to the question's likes and returns the like count
func (s *EngagementService) Like(ctx context.Context, questionID, userID string) (int, error) {
	count, changed, err := s.questions.AddLike(ctx, questionID, userID)
	if err != nil {
		return 0, storeError(err, "question", "questions.AddLike")
	}
	if changed {
		s.adjustLikes(ctx, questionID, 1)
	}
	return count, nil
}

// Unlike removes userID from the question's likes and returns the like count
func (s *EngagementService) Unlike(ctx context.Context, questionID, userID string) (int, error) {
	count, changed, err := s.questions.RemoveLike(ctx, questionID, userID)
	if err != nil {
		return 0, storeError(err, "question", "questions.RemoveLike")
	}
	if changed {
		s.adjustLikes(ctx, questionID, -1)
	}
	return count, nil
}

// adjustLikes keeps the recipient's received-like counter in step with the set
func (s *EngagementService) adjustLikes(ctx context.Context, questionID string, delta int) {
	q, err := s.questions.GetByID(ctx, questionID)
	if err == nil {
		err = s.profiles.IncrementStat(ctx, q.ToID, entities.StatLikes, delta)
	}
	if err != nil {
		s.logger.Warn("Failed to adjust like counter", zap.String("questionID", questionID), zap.Error(err))
	}
}

// Comment appends a comment and notifies the members it mentions. The result
// carries the author's summary.
func (s *EngagementService) Comment(ctx context.Context, questionID, userID, text string) (*entities.CommentView, error) {
	text = strings.TrimSpace(text)
	if err := entities.ValidateText("comment", text, s.limits.TextLimits().Comment); err != nil {
		return nil, err
	}

	commenter, err := s.profiles.GetByID(ctx, userID)
	if err != nil {
		return nil, storeError(err, "user", "profiles.GetByID")
	}

	comment := entities.Comment{UserID: userID, Text: text, CreatedAt: s.clock.Now()}
	if err := s.questions.AppendComment(ctx, questionID, comment); err != nil {
		return nil, storeError(err, "question", "questions.AppendComment")
	}

	s.notifyMentions(ctx, mentions.Extract(text), userID, questionID, commentMentionText(commenter))
	return &entities.CommentView{Comment: comment, User: commenter.Summary()}, nil
}

// Delete removes a question owned by requesterID and its notifications
func (s *EngagementService) Delete(ctx context.Context, questionID, requesterID string) error {
	q, err := s.questions.GetByID(ctx, questionID)
	if err != nil {
		return storeError(err, "question", "questions.GetByID")
	}
	if q.ToID != requesterID {
		return pkgerrors.NewForbiddenError("only the recipient can delete this question").WithCode(pkgerrors.CodeNotOwner)
	}

	if err := s.questions.Delete(ctx, questionID); err != nil {
		return storeError(err, "question", "questions.Delete")
	}
	removed, err := s.notifier.DeleteForQuestion(ctx, questionID)
	if err != nil {
		s.logger.Warn("Failed to cascade notification delete", zap.String("questionID", questionID), zap.Error(err))
	}

	s.logger.Info("Question deleted",
		zap.String("questionID", questionID),
		zap.Int("notificationsRemoved", removed),
	)
	return nil
}

// Get returns a single question view
func (s *EngagementService) Get(ctx context.Context, questionID string) (*entities.QuestionView, error) {
	q, err := s.questions.GetByID(ctx, questionID)
	if err != nil {
		return nil, storeError(err, "question", "questions.GetByID")
	}
	views, err := s.views(ctx, []*entities.Question{q})
	if err != nil {
		return nil, err
	}
	return views[0], nil
}

// ListUnanswered returns the unanswered questions addressed to userID, newest first
func (s *EngagementService) ListUnanswered(ctx context.Context, userID string) ([]*entities.QuestionView, error) {
	items, err := s.questions.ListUnanswered(ctx, userID)
	if err != nil {
		return nil, storeError(err, "question", "questions.ListUnanswered")
	}
	return s.views(ctx, items)
}

// ListAnswered returns one page of username's answered questions
func (s *EngagementService) ListAnswered(ctx context.Context, username string, req common.PageRequest) (common.Page[*entities.QuestionView], error) {
	user, err := s.profiles.GetByUsername(ctx, username)
	if err != nil {
		return common.Page[*entities.QuestionView]{}, storeError(err, "user", "profiles.GetByUsername")
	}
	items, total, err := s.questions.ListAnswered(ctx, user.ID, req.Skip(), req.Limit)
	if err != nil {
		return common.Page[*entities.QuestionView]{}, storeError(err, "question", "questions.ListAnswered")
	}
	views, err := s.views(ctx, items)
	if err != nil {
		return common.Page[*entities.QuestionView]{}, err
	}
	return common.NewPage(views, total, req), nil
}

// Feed returns one page of all answered questions, most recently answered first
func (s *EngagementService) Feed(ctx context.Context, req common.PageRequest) (common.Page[*entities.QuestionView], error) {
	items, total, err := s.questions.ListFeed(ctx, req.Skip(), req.Limit)
	if err != nil {
		return common.Page[*entities.QuestionView]{}, storeError(err, "question", "questions.ListFeed")
	}
	views, err := s.views(ctx, items)
	if err != nil {
		return common.Page[*entities.QuestionView]{}, err
	}
	return common.NewPage(views, total, req), nil
}

// views joins questions with the profiles they reference
func (s *EngagementService) views(ctx context.Context, items []*entities.Question) ([]*entities.QuestionView, error) {
	var ids []string
	for _, q := range items {
		ids = append(ids, q.ToID, q.VisibleFromID())
		for _, c := range q.Comments {
			ids = append(ids, c.UserID)
		}
	}
	lookup, err := summaries(ctx, s.profiles, ids)
	if err != nil {
		return nil, err
	}

	views := make([]*entities.QuestionView, 0, len(items))
	for _, q := range items {
		views = append(views, entities.NewQuestionView(q, lookup))
	}
	return views, nil
}

// notifyMentions resolves handles case-insensitively and sends one mention
// notification per distinct member other than the actor
func (s *EngagementService) notifyMentions(ctx context.Context, handles []string, actorID, questionID, text string) {
	notified := make(map[string]struct{}, len(handles))
	for _, handle := range handles {
		p, err := s.profiles.FindByHandle(ctx, handle)
		if err != nil {
			if !pkgerrors.IsNotFound(storeError(err, "user", "profiles.FindByHandle")) {
				s.logger.Warn("Failed to resolve mention", zap.String("handle", handle), zap.Error(err))
			}
			continue
		}
		if p.ID == actorID {
			continue
		}
		if _, ok := notified[p.ID]; ok {
			continue
		}
		notified[p.ID] = struct{}{}
		s.notifier.Notify(ctx, p.ID, actorID, entities.NotificationMention, questionID, text)
	}
}
