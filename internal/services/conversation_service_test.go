package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"messaging-service/internal/apperrors"
	"messaging-service/internal/mocks"
	"messaging-service/internal/models"
)

type serviceFixture struct {
	convRepo    *mocks.ConversationRepositoryMock
	msgRepo     *mocks.MessageRepositoryMock
	directory   *mocks.DirectoryRepositoryMock
	broadcaster *mocks.BroadcasterMock
	publisher   *mocks.PublisherMock
	service     *ConversationService
}

func newServiceFixture() *serviceFixture {
	f := &serviceFixture{
		convRepo:    new(mocks.ConversationRepositoryMock),
		msgRepo:     new(mocks.MessageRepositoryMock),
		directory:   new(mocks.DirectoryRepositoryMock),
		broadcaster: new(mocks.BroadcasterMock),
		publisher:   new(mocks.PublisherMock),
	}
	f.service = NewConversationService(f.convRepo, f.msgRepo, f.directory, f.broadcaster, f.publisher, zap.NewNop())
	return f
}

func (f *serviceFixture) assertExpectations(t *testing.T) {
	t.Helper()
	f.convRepo.AssertExpectations(t)
	f.msgRepo.AssertExpectations(t)
	f.directory.AssertExpectations(t)
	f.broadcaster.AssertExpectations(t)
	f.publisher.AssertExpectations(t)
}

func TestSendMessageEmptyContentSkipsStore(t *testing.T) {
	f := newServiceFixture()

	_, err := f.service.SendMessage(context.Background(), 5, 1, "   \n\t ")

	require.ErrorIs(t, err, apperrors.ErrInvalidArgument)
	f.msgRepo.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.convRepo.AssertNotCalled(t, "GetConversation", mock.Anything, mock.Anything)
	f.broadcaster.AssertNotCalled(t, "BroadcastNewMessage", mock.Anything, mock.Anything)
}

func TestSendMessageSuccess(t *testing.T) {
	f := newServiceFixture()

	msg := models.Message{ID: 42, ConversationID: 5, SenderID: 1, Content: "hello"}
	f.convRepo.On("GetConversation", mock.Anything, 5).Return(models.Conversation{ID: 5}, nil).Once()
	f.convRepo.On("IsParticipant", mock.Anything, 5, 1).Return(true, nil).Once()
	f.directory.On("GetUser", mock.Anything, 1).Return(models.User{ID: 1, Name: "alice"}, nil).Once()
	f.msgRepo.On("CreateMessage", mock.Anything, 5, 1, "hello").Return(msg, nil).Once()
	f.broadcaster.On("BroadcastNewMessage", 5, models.MessageView{Message: msg, SenderName: "alice"}).Once()
	f.publisher.On("Publish", mock.Anything, "messaging.message.sent", mock.Anything).Return(nil).Once()

	view, err := f.service.SendMessage(context.Background(), 5, 1, "  hello ")

	require.NoError(t, err)
	assert.Equal(t, 42, view.ID)
	assert.Equal(t, "alice", view.SenderName)
	f.assertExpectations(t)
}

func TestSendMessagePublishFailureSwallowed(t *testing.T) {
	f := newServiceFixture()

	msg := models.Message{ID: 7, ConversationID: 2, SenderID: 3, Content: "hi"}
	f.convRepo.On("GetConversation", mock.Anything, 2).Return(models.Conversation{ID: 2}, nil).Once()
	f.convRepo.On("IsParticipant", mock.Anything, 2, 3).Return(true, nil).Once()
	f.directory.On("GetUser", mock.Anything, 3).Return(models.User{ID: 3, Name: "bob"}, nil).Once()
	f.msgRepo.On("CreateMessage", mock.Anything, 2, 3, "hi").Return(msg, nil).Once()
	f.broadcaster.On("BroadcastNewMessage", 2, mock.Anything).Once()
	f.publisher.On("Publish", mock.Anything, "messaging.message.sent", mock.Anything).Return(assert.AnError).Once()

	_, err := f.service.SendMessage(context.Background(), 2, 3, "hi")

	require.NoError(t, err)
	f.assertExpectations(t)
}

func TestSendMessageNonParticipant(t *testing.T) {
	f := newServiceFixture()

	f.convRepo.On("GetConversation", mock.Anything, 5).Return(models.Conversation{ID: 5}, nil).Once()
	f.convRepo.On("IsParticipant", mock.Anything, 5, 9).Return(false, nil).Once()

	_, err := f.service.SendMessage(context.Background(), 5, 9, "hey")

	require.ErrorIs(t, err, apperrors.ErrUnauthorized)
	f.msgRepo.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSendMessageConversationMissing(t *testing.T) {
	f := newServiceFixture()

	f.convRepo.On("GetConversation", mock.Anything, 99).Return(models.Conversation{}, apperrors.ErrNotFound).Once()

	_, err := f.service.SendMessage(context.Background(), 99, 1, "hey")

	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestGetOrCreateForApplicationOutsider(t *testing.T) {
	f := newServiceFixture()

	f.directory.On("GetApplication", mock.Anything, 11).
		Return(models.ApplicationRef{ID: 11, ApplicantID: 1, PosterID: 2}, nil).Once()

	_, err := f.service.GetOrCreateForApplication(context.Background(), 11, 3)

	require.ErrorIs(t, err, apperrors.ErrUnauthorized)
	f.convRepo.AssertNotCalled(t, "CreateOrGetByApplication", mock.Anything, mock.Anything, mock.Anything)
}

func TestGetOrCreateForApplicationSuccess(t *testing.T) {
	f := newServiceFixture()

	conv := models.Conversation{ID: 4}
	f.directory.On("GetApplication", mock.Anything, 11).
		Return(models.ApplicationRef{ID: 11, ApplicantID: 1, PosterID: 2}, nil).Once()
	f.convRepo.On("CreateOrGetByApplication", mock.Anything, 11, []int{1, 2}).Return(conv, nil).Once()
	f.convRepo.On("GetParticipants", mock.Anything, 4).Return([]models.Participant{
		{ConversationID: 4, UserID: 1, UnreadCount: 0},
		{ConversationID: 4, UserID: 2, UnreadCount: 3},
	}, nil).Once()
	f.directory.On("BulkUsers", mock.Anything, []int{1, 2}).Return([]models.User{
		{ID: 1, Name: "alice"}, {ID: 2, Name: "bob"},
	}, nil).Once()

	summary, err := f.service.GetOrCreateForApplication(context.Background(), 11, 1)

	require.NoError(t, err)
	assert.Equal(t, 4, summary.ID)
	assert.Len(t, summary.Participants, 2)
	assert.Equal(t, 0, summary.UnreadCount)
	f.assertExpectations(t)
}

func TestMarkReadNotifiesPersonalRoom(t *testing.T) {
	f := newServiceFixture()

	f.convRepo.On("GetConversation", mock.Anything, 6).Return(models.Conversation{ID: 6}, nil).Once()
	f.convRepo.On("IsParticipant", mock.Anything, 6, 2).Return(true, nil).Once()
	f.convRepo.On("MarkRead", mock.Anything, 6, 2).Return(nil).Once()
	f.broadcaster.On("NotifyMessagesRead", 2, 6).Once()
	f.publisher.On("Publish", mock.Anything, "messaging.conversation.read", mock.Anything).Return(assert.AnError).Once()

	err := f.service.MarkRead(context.Background(), 6, 2)

	require.NoError(t, err)
	f.assertExpectations(t)
}

func TestMarkReadNonParticipant(t *testing.T) {
	f := newServiceFixture()

	f.convRepo.On("GetConversation", mock.Anything, 6).Return(models.Conversation{ID: 6}, nil).Once()
	f.convRepo.On("IsParticipant", mock.Anything, 6, 8).Return(false, nil).Once()

	err := f.service.MarkRead(context.Background(), 6, 8)

	require.ErrorIs(t, err, apperrors.ErrUnauthorized)
	f.convRepo.AssertNotCalled(t, "MarkRead", mock.Anything, mock.Anything, mock.Anything)
	f.broadcaster.AssertNotCalled(t, "NotifyMessagesRead", mock.Anything, mock.Anything)
}

func TestListMessagesResolvesSenderNames(t *testing.T) {
	f := newServiceFixture()

	f.convRepo.On("GetConversation", mock.Anything, 3).Return(models.Conversation{ID: 3}, nil).Once()
	f.convRepo.On("IsParticipant", mock.Anything, 3, 1).Return(true, nil).Once()
	f.msgRepo.On("ListByConversation", mock.Anything, 3).Return([]models.Message{
		{ID: 1, ConversationID: 3, SenderID: 1, Content: "a"},
		{ID: 2, ConversationID: 3, SenderID: 2, Content: "b"},
		{ID: 3, ConversationID: 3, SenderID: 1, Content: "c"},
	}, nil).Once()
	f.directory.On("BulkUsers", mock.Anything, []int{1, 2}).Return([]models.User{
		{ID: 1, Name: "alice"}, {ID: 2, Name: "bob"},
	}, nil).Once()

	views, err := f.service.ListMessages(context.Background(), 3, 1)

	require.NoError(t, err)
	require.Len(t, views, 3)
	assert.Equal(t, "alice", views[0].SenderName)
	assert.Equal(t, "bob", views[1].SenderName)
	f.assertExpectations(t)
}

func TestUnreadCountFor(t *testing.T) {
	f := newServiceFixture()

	f.convRepo.On("UnreadTotal", mock.Anything, 1).Return(7, nil).Once()

	count, err := f.service.UnreadCountFor(context.Background(), 1)

	require.NoError(t, err)
	assert.Equal(t, 7, count)
}
