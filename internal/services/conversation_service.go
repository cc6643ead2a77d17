package services

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"messaging-service/internal/apperrors"
	"messaging-service/internal/models"
	"messaging-service/internal/observability"
	"messaging-service/internal/rabbitmq"
	"messaging-service/internal/repositories"
)

// Broadcaster is the gateway surface the service fans events out through.
type Broadcaster interface {
	BroadcastNewMessage(conversationID int, msg models.MessageView)
	NotifyMessagesRead(userID int, conversationID int)
}

// ConversationService orchestrates conversation lifecycle, message delivery
// and unread bookkeeping. It is the only component that touches both stores
// and the gateway; the hub and publisher are injected at construction.
type ConversationService struct {
	convRepo    repositories.ConversationRepository
	msgRepo     repositories.MessageRepository
	directory   repositories.DirectoryRepository
	broadcaster Broadcaster
	publisher   rabbitmq.Publisher
	logger      *zap.Logger
}

// NewConversationService builds a ConversationService.
func NewConversationService(
	convRepo repositories.ConversationRepository,
	msgRepo repositories.MessageRepository,
	directory repositories.DirectoryRepository,
	broadcaster Broadcaster,
	publisher rabbitmq.Publisher,
	logger *zap.Logger,
) *ConversationService {
	return &ConversationService{
		convRepo:    convRepo,
		msgRepo:     msgRepo,
		directory:   directory,
		broadcaster: broadcaster,
		publisher:   publisher,
		logger:      logger,
	}
}

// GetOrCreateForApplication returns the single conversation attached to a
// job application, creating it on first access. Only the two canonical
// participants may open it.
func (s *ConversationService) GetOrCreateForApplication(ctx context.Context, applicationID int, requesterID int) (models.ConversationSummary, error) {
	app, err := s.directory.GetApplication(ctx, applicationID)
	if err != nil {
		return models.ConversationSummary{}, err
	}

	participants := []int{app.ApplicantID, app.PosterID}
	if requesterID != app.ApplicantID && requesterID != app.PosterID {
		return models.ConversationSummary{}, apperrors.ErrUnauthorized
	}

	conv, err := s.convRepo.CreateOrGetByApplication(ctx, applicationID, participants)
	if err != nil {
		return models.ConversationSummary{}, err
	}
	return s.summarize(ctx, conv, requesterID)
}

// GetOrCreateForCompetition is the competition-registration variant.
func (s *ConversationService) GetOrCreateForCompetition(ctx context.Context, entryID int, requesterID int) (models.ConversationSummary, error) {
	entry, err := s.directory.GetCompetitionEntry(ctx, entryID)
	if err != nil {
		return models.ConversationSummary{}, err
	}

	participants := []int{entry.RegistrantID, entry.OrganizerID}
	if requesterID != entry.RegistrantID && requesterID != entry.OrganizerID {
		return models.ConversationSummary{}, apperrors.ErrUnauthorized
	}

	conv, err := s.convRepo.CreateOrGetByCompetition(ctx, entryID, participants)
	if err != nil {
		return models.ConversationSummary{}, err
	}
	return s.summarize(ctx, conv, requesterID)
}

// SendMessage validates, persists and then fans out. The broadcast and the
// outbound event are best-effort: once the transaction commits, persisted
// truth stays ahead of whatever connected clients have seen.
func (s *ConversationService) SendMessage(ctx context.Context, conversationID int, senderID int, content string) (models.MessageView, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return models.MessageView{}, apperrors.ErrInvalidArgument
	}

	if _, err := s.convRepo.GetConversation(ctx, conversationID); err != nil {
		return models.MessageView{}, err
	}
	member, err := s.convRepo.IsParticipant(ctx, conversationID, senderID)
	if err != nil {
		return models.MessageView{}, err
	}
	if !member {
		return models.MessageView{}, apperrors.ErrUnauthorized
	}

	sender, err := s.directory.GetUser(ctx, senderID)
	if err != nil {
		return models.MessageView{}, err
	}

	msg, err := s.msgRepo.CreateMessage(ctx, conversationID, senderID, content)
	if err != nil {
		return models.MessageView{}, err
	}
	observability.IncMessageSent()

	view := models.MessageView{Message: msg, SenderName: sender.Name}
	s.broadcaster.BroadcastNewMessage(conversationID, view)

	if err := s.publisher.Publish(ctx, "messaging.message.sent", observability.EventEnvelope{
		EventType: "messaging",
		EventName: "message.sent",
		Payload:   view,
	}); err != nil {
		s.logger.Warn("message.sent publish failed", zap.Int("message_id", msg.ID), zap.Error(err))
	}

	return view, nil
}

// ListMessages returns the full ascending history of a conversation.
func (s *ConversationService) ListMessages(ctx context.Context, conversationID int, requesterID int) ([]models.MessageView, error) {
	if err := s.requireMember(ctx, conversationID, requesterID); err != nil {
		return nil, err
	}

	msgs, err := s.msgRepo.ListByConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	senderIDs := make([]int, 0, len(msgs))
	seen := map[int]struct{}{}
	for _, m := range msgs {
		if _, ok := seen[m.SenderID]; !ok {
			seen[m.SenderID] = struct{}{}
			senderIDs = append(senderIDs, m.SenderID)
		}
	}
	names, err := s.namesByID(ctx, senderIDs)
	if err != nil {
		return nil, err
	}

	views := make([]models.MessageView, 0, len(msgs))
	for _, m := range msgs {
		views = append(views, models.MessageView{Message: m, SenderName: names[m.SenderID]})
	}
	return views, nil
}

// ListConversationsFor returns the caller's conversations, most recently
// updated first, with participants and last message resolved.
func (s *ConversationService) ListConversationsFor(ctx context.Context, userID int) ([]models.ConversationSummary, error) {
	convs, err := s.convRepo.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	summaries := make([]models.ConversationSummary, 0, len(convs))
	for _, conv := range convs {
		summary, err := s.summarize(ctx, conv, userID)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// UnreadCountFor sums the caller's unread counters; the per-participant
// counter is the single source of truth for badge counts.
func (s *ConversationService) UnreadCountFor(ctx context.Context, userID int) (int, error) {
	return s.convRepo.UnreadTotal(ctx, userID)
}

// MarkRead stamps read_at and zeroes the caller's counter, then pings the
// caller's personal room so other tabs refresh. Idempotent.
func (s *ConversationService) MarkRead(ctx context.Context, conversationID int, userID int) error {
	if err := s.requireMember(ctx, conversationID, userID); err != nil {
		return err
	}

	if err := s.convRepo.MarkRead(ctx, conversationID, userID); err != nil {
		return err
	}

	s.broadcaster.NotifyMessagesRead(userID, conversationID)

	if err := s.publisher.Publish(ctx, "messaging.conversation.read", observability.EventEnvelope{
		EventType: "messaging",
		EventName: "conversation.read",
		Payload: map[string]int{
			"conversation_id": conversationID,
			"user_id":         userID,
		},
	}); err != nil {
		s.logger.Warn("conversation.read publish failed", zap.Int("conversation_id", conversationID), zap.Error(err))
	}
	return nil
}

func (s *ConversationService) requireMember(ctx context.Context, conversationID int, userID int) error {
	if _, err := s.convRepo.GetConversation(ctx, conversationID); err != nil {
		return err
	}
	member, err := s.convRepo.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		return err
	}
	if !member {
		return apperrors.ErrUnauthorized
	}
	return nil
}

func (s *ConversationService) summarize(ctx context.Context, conv models.Conversation, viewerID int) (models.ConversationSummary, error) {
	participants, err := s.convRepo.GetParticipants(ctx, conv.ID)
	if err != nil {
		return models.ConversationSummary{}, err
	}

	userIDs := make([]int, 0, len(participants))
	for _, p := range participants {
		userIDs = append(userIDs, p.UserID)
	}
	users, err := s.directory.BulkUsers(ctx, userIDs)
	if err != nil {
		return models.ConversationSummary{}, err
	}
	byID := map[int]models.User{}
	for _, u := range users {
		byID[u.ID] = u
	}

	summary := models.ConversationSummary{Conversation: conv}
	for _, p := range participants {
		user := byID[p.UserID]
		summary.Participants = append(summary.Participants, models.ParticipantView{
			UserID:      p.UserID,
			Name:        user.Name,
			Role:        user.Role,
			UnreadCount: p.UnreadCount,
		})
		if p.UserID == viewerID {
			summary.UnreadCount = p.UnreadCount
		}
	}

	if conv.LastMessageID != nil {
		last, err := s.msgRepo.GetMessage(ctx, *conv.LastMessageID)
		if err == nil {
			summary.LastMessage = &models.MessageView{
				Message:    last,
				SenderName: byID[last.SenderID].Name,
			}
		} else {
			s.logger.Warn("last message lookup failed",
				zap.Int("conversation_id", conv.ID), zap.Error(err))
		}
	}
	return summary, nil
}

func (s *ConversationService) namesByID(ctx context.Context, userIDs []int) (map[int]string, error) {
	users, err := s.directory.BulkUsers(ctx, userIDs)
	if err != nil {
		return nil, err
	}
	names := map[int]string{}
	for _, u := range users {
		names[u.ID] = u.Name
	}
	return names, nil
}
