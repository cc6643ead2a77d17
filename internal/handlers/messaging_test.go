package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"messaging-service/internal/apperrors"
	"messaging-service/internal/mocks"
	"messaging-service/internal/models"
	"messaging-service/internal/services"
)

type handlerFixture struct {
	convRepo    *mocks.ConversationRepositoryMock
	msgRepo     *mocks.MessageRepositoryMock
	directory   *mocks.DirectoryRepositoryMock
	broadcaster *mocks.BroadcasterMock
	publisher   *mocks.PublisherMock
	router      *gin.Engine
}

func newHandlerFixture() *handlerFixture {
	gin.SetMode(gin.TestMode)

	f := &handlerFixture{
		convRepo:    new(mocks.ConversationRepositoryMock),
		msgRepo:     new(mocks.MessageRepositoryMock),
		directory:   new(mocks.DirectoryRepositoryMock),
		broadcaster: new(mocks.BroadcasterMock),
		publisher:   new(mocks.PublisherMock),
	}
	service := services.NewConversationService(f.convRepo, f.msgRepo, f.directory, f.broadcaster, f.publisher, zap.NewNop())
	handler := NewMessagingHandler(service)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", 1)
		c.Next()
	})
	r.POST("/conversations/applications/:application_id", handler.StartApplicationConversation)
	r.POST("/conversations/competitions/:competition_id", handler.StartCompetitionConversation)
	r.GET("/conversations", handler.ListConversations)
	r.GET("/conversations/:conversation_id/messages", handler.GetMessages)
	r.POST("/conversations/:conversation_id/messages", handler.PostMessage)
	r.POST("/conversations/:conversation_id/read", handler.MarkRead)
	r.GET("/unread-count", handler.UnreadCount)
	f.router = r
	return f
}

func (f *handlerFixture) do(method, path string, body string) *httptest.ResponseRecorder {
	var reader *bytes.Buffer
	if body == "" {
		reader = bytes.NewBuffer(nil)
	} else {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestPostMessageSuccess(t *testing.T) {
	f := newHandlerFixture()

	msg := models.Message{ID: 10, ConversationID: 5, SenderID: 1, Content: "hello"}
	f.convRepo.On("GetConversation", mock.Anything, 5).Return(models.Conversation{ID: 5}, nil).Once()
	f.convRepo.On("IsParticipant", mock.Anything, 5, 1).Return(true, nil).Once()
	f.directory.On("GetUser", mock.Anything, 1).Return(models.User{ID: 1, Name: "alice"}, nil).Once()
	f.msgRepo.On("CreateMessage", mock.Anything, 5, 1, "hello").Return(msg, nil).Once()
	f.broadcaster.On("BroadcastNewMessage", 5, mock.Anything).Once()
	f.publisher.On("Publish", mock.Anything, "messaging.message.sent", mock.Anything).Return(nil).Once()

	rec := f.do(http.MethodPost, "/conversations/5/messages", `{"content":"hello"}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp models.MessageView
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 10, resp.ID)
	assert.Equal(t, "alice", resp.SenderName)
	f.convRepo.AssertExpectations(t)
	f.msgRepo.AssertExpectations(t)
}

func TestPostMessageEmptyContent(t *testing.T) {
	f := newHandlerFixture()

	rec := f.do(http.MethodPost, "/conversations/5/messages", `{"content":"   "}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	f.msgRepo.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPostMessageBadConversationID(t *testing.T) {
	f := newHandlerFixture()

	rec := f.do(http.MethodPost, "/conversations/abc/messages", `{"content":"hi"}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetMessagesForbiddenForOutsider(t *testing.T) {
	f := newHandlerFixture()

	f.convRepo.On("GetConversation", mock.Anything, 5).Return(models.Conversation{ID: 5}, nil).Once()
	f.convRepo.On("IsParticipant", mock.Anything, 5, 1).Return(false, nil).Once()

	rec := f.do(http.MethodGet, "/conversations/5/messages", "")

	require.Equal(t, http.StatusForbidden, rec.Code)
	f.msgRepo.AssertNotCalled(t, "ListByConversation", mock.Anything, mock.Anything)
}

func TestGetMessagesSuccess(t *testing.T) {
	f := newHandlerFixture()

	f.convRepo.On("GetConversation", mock.Anything, 5).Return(models.Conversation{ID: 5}, nil).Once()
	f.convRepo.On("IsParticipant", mock.Anything, 5, 1).Return(true, nil).Once()
	f.msgRepo.On("ListByConversation", mock.Anything, 5).Return([]models.Message{
		{ID: 1, ConversationID: 5, SenderID: 2, Content: "hi"},
	}, nil).Once()
	f.directory.On("BulkUsers", mock.Anything, []int{2}).Return([]models.User{{ID: 2, Name: "bob"}}, nil).Once()

	rec := f.do(http.MethodGet, "/conversations/5/messages", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string][]models.MessageView
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp["messages"], 1)
	assert.Equal(t, "bob", resp["messages"][0].SenderName)
}

func TestStartApplicationConversationNotFound(t *testing.T) {
	f := newHandlerFixture()

	f.directory.On("GetApplication", mock.Anything, 44).
		Return(models.ApplicationRef{}, apperrors.ErrNotFound).Once()

	rec := f.do(http.MethodPost, "/conversations/applications/44", "")

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStartApplicationConversationSuccess(t *testing.T) {
	f := newHandlerFixture()

	conv := models.Conversation{ID: 9}
	f.directory.On("GetApplication", mock.Anything, 44).
		Return(models.ApplicationRef{ID: 44, ApplicantID: 1, PosterID: 2}, nil).Once()
	f.convRepo.On("CreateOrGetByApplication", mock.Anything, 44, []int{1, 2}).Return(conv, nil).Once()
	f.convRepo.On("GetParticipants", mock.Anything, 9).Return([]models.Participant{
		{ConversationID: 9, UserID: 1}, {ConversationID: 9, UserID: 2},
	}, nil).Once()
	f.directory.On("BulkUsers", mock.Anything, []int{1, 2}).Return([]models.User{
		{ID: 1, Name: "alice"}, {ID: 2, Name: "bob"},
	}, nil).Once()

	rec := f.do(http.MethodPost, "/conversations/applications/44", "")

	require.Equal(t, http.StatusOK, rec.Code)
	f.convRepo.AssertExpectations(t)
}

func TestMarkReadUnknownConversation(t *testing.T) {
	f := newHandlerFixture()

	f.convRepo.On("GetConversation", mock.Anything, 77).
		Return(models.Conversation{}, apperrors.ErrNotFound).Once()

	rec := f.do(http.MethodPost, "/conversations/77/read", "")

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUnreadCount(t *testing.T) {
	f := newHandlerFixture()

	f.convRepo.On("UnreadTotal", mock.Anything, 1).Return(4, nil).Once()

	rec := f.do(http.MethodGet, "/unread-count", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]int
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 4, resp["unread_count"])
}

func TestListConversations(t *testing.T) {
	f := newHandlerFixture()

	f.convRepo.On("ListForUser", mock.Anything, 1).Return([]models.Conversation{{ID: 2}}, nil).Once()
	f.convRepo.On("GetParticipants", mock.Anything, 2).Return([]models.Participant{
		{ConversationID: 2, UserID: 1, UnreadCount: 5},
	}, nil).Once()
	f.directory.On("BulkUsers", mock.Anything, []int{1}).Return([]models.User{{ID: 1, Name: "alice"}}, nil).Once()

	rec := f.do(http.MethodGet, "/conversations", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string][]models.ConversationSummary
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp["conversations"], 1)
	assert.Equal(t, 5, resp["conversations"][0].UnreadCount)
}
