package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"messaging-service/internal/models"
)

// ConversationRepositoryMock mocks repositories.ConversationRepository.
type ConversationRepositoryMock struct {
	mock.Mock
}

func (m *ConversationRepositoryMock) CreateOrGetByApplication(ctx context.Context, applicationID int, participantIDs []int) (models.Conversation, error) {
	args := m.Called(ctx, applicationID, participantIDs)
	return args.Get(0).(models.Conversation), args.Error(1)
}

func (m *ConversationRepositoryMock) CreateOrGetByCompetition(ctx context.Context, competitionID int, participantIDs []int) (models.Conversation, error) {
	args := m.Called(ctx, competitionID, participantIDs)
	return args.Get(0).(models.Conversation), args.Error(1)
}

func (m *ConversationRepositoryMock) GetConversation(ctx context.Context, conversationID int) (models.Conversation, error) {
	args := m.Called(ctx, conversationID)
	return args.Get(0).(models.Conversation), args.Error(1)
}

func (m *ConversationRepositoryMock) IsParticipant(ctx context.Context, conversationID int, userID int) (bool, error) {
	args := m.Called(ctx, conversationID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *ConversationRepositoryMock) GetParticipants(ctx context.Context, conversationID int) ([]models.Participant, error) {
	args := m.Called(ctx, conversationID)
	return args.Get(0).([]models.Participant), args.Error(1)
}

func (m *ConversationRepositoryMock) ListForUser(ctx context.Context, userID int) ([]models.Conversation, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]models.Conversation), args.Error(1)
}

func (m *ConversationRepositoryMock) MarkRead(ctx context.Context, conversationID int, userID int) error {
	args := m.Called(ctx, conversationID, userID)
	return args.Error(0)
}

func (m *ConversationRepositoryMock) UnreadTotal(ctx context.Context, userID int) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

// MessageRepositoryMock mocks repositories.MessageRepository.
type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) CreateMessage(ctx context.Context, conversationID int, senderID int, content string) (models.Message, error) {
	args := m.Called(ctx, conversationID, senderID, content)
	return args.Get(0).(models.Message), args.Error(1)
}

func (m *MessageRepositoryMock) ListByConversation(ctx context.Context, conversationID int) ([]models.Message, error) {
	args := m.Called(ctx, conversationID)
	return args.Get(0).([]models.Message), args.Error(1)
}

func (m *MessageRepositoryMock) GetMessage(ctx context.Context, messageID int) (models.Message, error) {
	args := m.Called(ctx, messageID)
	return args.Get(0).(models.Message), args.Error(1)
}

// DirectoryRepositoryMock mocks repositories.DirectoryRepository.
type DirectoryRepositoryMock struct {
	mock.Mock
}

func (m *DirectoryRepositoryMock) GetUser(ctx context.Context, userID int) (models.User, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(models.User), args.Error(1)
}

func (m *DirectoryRepositoryMock) BulkUsers(ctx context.Context, userIDs []int) ([]models.User, error) {
	args := m.Called(ctx, userIDs)
	return args.Get(0).([]models.User), args.Error(1)
}

func (m *DirectoryRepositoryMock) GetApplication(ctx context.Context, applicationID int) (models.ApplicationRef, error) {
	args := m.Called(ctx, applicationID)
	return args.Get(0).(models.ApplicationRef), args.Error(1)
}

func (m *DirectoryRepositoryMock) GetCompetitionEntry(ctx context.Context, entryID int) (models.CompetitionRef, error) {
	args := m.Called(ctx, entryID)
	return args.Get(0).(models.CompetitionRef), args.Error(1)
}

// BroadcasterMock mocks services.Broadcaster.
type BroadcasterMock struct {
	mock.Mock
}

func (m *BroadcasterMock) BroadcastNewMessage(conversationID int, msg models.MessageView) {
	m.Called(conversationID, msg)
}

func (m *BroadcasterMock) NotifyMessagesRead(userID int, conversationID int) {
	m.Called(userID, conversationID)
}
