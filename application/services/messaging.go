package services

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"askingwho-backend/application/ports"
	"askingwho-backend/domain/core/entities"
	"askingwho-backend/pkg/common"
	pkgerrors "askingwho-backend/pkg/errors"
)

// DefaultMessageLimit is the page size of message listings
const DefaultMessageLimit = 20

// MessagingService manages two-party conversations and pushes new messages to
// the receiver's live channel
type MessagingService struct {
	conversations ports.ConversationRepository
	messages      ports.MessageRepository
	profiles      ports.ProfileRepository
	publisher     ports.LivePublisher
	limits        ports.LimitSource
	clock         ports.Clock
	ids           ports.IDGenerator
	logger        *zap.Logger
}

// NewMessagingService creates a new messaging service
func NewMessagingService(deps Dependencies) *MessagingService {
	deps.withDefaults()
	return &MessagingService{
		conversations: deps.Conversations,
		messages:      deps.Messages,
		profiles:      deps.Profiles,
		publisher:     deps.Publisher,
		limits:        deps.Limits,
		clock:         deps.Clock,
		ids:           deps.IDs,
		logger:        deps.Logger,
	}
}

// StartConversation returns the conversation between userID and otherUserID,
// creating it on first contact
func (s *MessagingService) StartConversation(ctx context.Context, userID, otherUserID string) (*entities.ConversationView, error) {
	if otherUserID == "" {
		return nil, pkgerrors.NewValidationError("other user is required")
	}
	if userID == otherUserID {
		return nil, pkgerrors.NewSelfReferenceError("message")
	}
	other, err := s.profiles.GetByID(ctx, otherUserID)
	if err != nil {
		return nil, storeError(err, "user", "profiles.GetByID")
	}

	conv, err := s.conversations.FindByPair(ctx, userID, otherUserID)
	switch {
	case err == nil:
	case errors.Is(err, ports.ErrNotFound):
		conv, err = s.create(ctx, userID, otherUserID)
		if err != nil {
			return nil, err
		}
	default:
		return nil, storeError(err, "conversation", "conversations.FindByPair")
	}

	return &entities.ConversationView{Conversation: conv, OtherUser: other.Summary()}, nil
}

func (s *MessagingService) create(ctx context.Context, a, b string) (*entities.Conversation, error) {
	conv := entities.NewConversation(s.ids.NewID(), a, b, s.clock.Now())
	err := s.conversations.Create(ctx, conv)
	if errors.Is(err, ports.ErrConflict) {
		// Another request created the pair between our lookup and insert.
		existing, findErr := s.conversations.FindByPair(ctx, a, b)
		if findErr != nil {
			return nil, storeError(findErr, "conversation", "conversations.FindByPair")
		}
		return existing, nil
	}
	if err != nil {
		return nil, storeError(err, "conversation", "conversations.Create")
	}

	s.logger.Info("Conversation started",
		zap.String("conversationID", conv.ID),
		zap.String("userID", a),
		zap.String("otherUserID", b),
	)
	return conv, nil
}

// SendMessage stores a message from senderID and pushes it to the receiver.
// receiverID may be empty, in which case the other participant is used.
func (s *MessagingService) SendMessage(ctx context.Context, conversationID, senderID, receiverID, text string) (*entities.Message, error) {
	text = strings.TrimSpace(text)
	if err := entities.ValidateText("message", text, s.limits.TextLimits().Message); err != nil {
		return nil, err
	}

	conv, err := s.participantConversation(ctx, conversationID, senderID)
	if err != nil {
		return nil, err
	}
	other := conv.Other(senderID)
	if receiverID == "" {
		receiverID = other
	}
	if receiverID != other {
		return nil, pkgerrors.NewValidationError("receiver must be the other participant")
	}

	msg := &entities.Message{
		ID:             s.ids.NewID(),
		ConversationID: conv.ID,
		SenderID:       senderID,
		ReceiverID:     receiverID,
		Text:           text,
		CreatedAt:      s.clock.Now(),
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, storeError(err, "message", "messages.Create")
	}
	if err := s.conversations.UpdateLastMessage(ctx, conv.ID, msg.Text, msg.CreatedAt); err != nil {
		s.logger.Warn("Failed to update conversation preview",
			zap.String("conversationID", conv.ID),
			zap.Error(err),
		)
	}

	if err := s.publisher.Publish(ctx, receiverID, ports.EventNewMessage, msg); err != nil {
		s.logger.Debug("Live push skipped",
			zap.String("receiverID", receiverID),
			zap.String("messageID", msg.ID),
			zap.Error(err),
		)
	}
	return msg, nil
}

// ListConversations returns userID's conversations, most recent activity first
func (s *MessagingService) ListConversations(ctx context.Context, userID string) ([]*entities.ConversationView, error) {
	convs, err := s.conversations.ListByParticipant(ctx, userID)
	if err != nil {
		return nil, storeError(err, "conversation", "conversations.ListByParticipant")
	}

	others := make([]string, 0, len(convs))
	for _, c := range convs {
		others = append(others, c.Other(userID))
	}
	lookup, err := summaries(ctx, s.profiles, others)
	if err != nil {
		return nil, err
	}

	views := make([]*entities.ConversationView, 0, len(convs))
	for _, c := range convs {
		views = append(views, &entities.ConversationView{Conversation: c, OtherUser: lookup(c.Other(userID))})
	}
	return views, nil
}

// ListMessages returns one page of a conversation's messages, newest first
func (s *MessagingService) ListMessages(ctx context.Context, conversationID, requesterID string, req common.PageRequest) (common.Page[*entities.Message], error) {
	if _, err := s.participantConversation(ctx, conversationID, requesterID); err != nil {
		return common.Page[*entities.Message]{}, err
	}
	items, total, err := s.messages.ListByConversation(ctx, conversationID, req.Skip(), req.Limit)
	if err != nil {
		return common.Page[*entities.Message]{}, storeError(err, "message", "messages.ListByConversation")
	}
	return common.NewPage(items, total, req), nil
}

// MarkMessageRead marks a message read on behalf of its receiver
func (s *MessagingService) MarkMessageRead(ctx context.Context, messageID, requesterID string) error {
	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return storeError(err, "message", "messages.GetByID")
	}
	if msg.ReceiverID != requesterID {
		return pkgerrors.NewForbiddenError("only the receiver can mark this message read").WithCode(pkgerrors.CodeNotOwner)
	}
	if msg.IsRead {
		return nil
	}
	if err := s.messages.MarkRead(ctx, messageID); err != nil {
		return storeError(err, "message", "messages.MarkRead")
	}
	return nil
}

// participantConversation loads a conversation the user takes part in. Missing
// conversations are reported as forbidden so ids cannot be probed.
func (s *MessagingService) participantConversation(ctx context.Context, conversationID, userID string) (*entities.Conversation, error) {
	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil && !errors.Is(err, ports.ErrNotFound) {
		return nil, storeError(err, "conversation", "conversations.GetByID")
	}
	if conv == nil || !conv.HasParticipant(userID) {
		return nil, pkgerrors.NewForbiddenError("you do not have access to this conversation").WithCode(pkgerrors.CodeNotParticipant)
	}
	return conv, nil
}
