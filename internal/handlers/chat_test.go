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

	"chat-backend/internal/mocks"
	"chat-backend/internal/models"
	"chat-backend/internal/ws"
)

func setupChatRouter(handler *ChatHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", 1)
		c.Next()
	})
	r.GET("/chats", handler.ListChats)
	r.POST("/chats", handler.CreateChat)
	r.GET("/chats/:chat_id/messages", handler.GetChatMessages)
	r.POST("/chats/:chat_id/messages", handler.PostChatMessage)
	r.POST("/chats/:chat_id/participants", handler.AddParticipant)
	return r
}

func newChatHandler(chatRepo *mocks.ChatRepositoryMock, messageRepo *mocks.MessageRepositoryMock, userRepo *mocks.UserRepositoryMock) *ChatHandler {
	dispatcher := ws.NewDispatcher(ws.NewRegistry(), chatRepo)
	return NewChatHandler(chatRepo, messageRepo, userRepo, dispatcher, nil)
}

func TestListChatsSuccess(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	handler := newChatHandler(chatRepo, new(mocks.MessageRepositoryMock), new(mocks.UserRepositoryMock))
	router := setupChatRouter(handler)

	name := "team"
	chatRepo.On("ListChatsForUser", mock.Anything, 1).
		Return([]models.ChatSummary{{ID: 3, Name: &name, ParticipantCount: 2}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/chats", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	chatRepo.AssertExpectations(t)
}

func TestListChatsRepoError(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	handler := newChatHandler(chatRepo, new(mocks.MessageRepositoryMock), new(mocks.UserRepositoryMock))
	router := setupChatRouter(handler)

	chatRepo.On("ListChatsForUser", mock.Anything, 1).
		Return(([]models.ChatSummary)(nil), assert.AnError).Once()

	req := httptest.NewRequest(http.MethodGet, "/chats", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	chatRepo.AssertExpectations(t)
}

func TestCreateChatAddsCaller(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	handler := newChatHandler(chatRepo, new(mocks.MessageRepositoryMock), new(mocks.UserRepositoryMock))
	router := setupChatRouter(handler)

	chatRepo.On("CreateChat", mock.Anything, (*string)(nil), []int{2, 1}).
		Return(models.Chat{ID: 9}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/chats", bytes.NewBufferString(`{"participant_ids":[2]}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	chatRepo.AssertExpectations(t)
}

func TestCreateChatCallerAlreadyListed(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	handler := newChatHandler(chatRepo, new(mocks.MessageRepositoryMock), new(mocks.UserRepositoryMock))
	router := setupChatRouter(handler)

	chatRepo.On("CreateChat", mock.Anything, (*string)(nil), []int{1, 2}).
		Return(models.Chat{ID: 9}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/chats", bytes.NewBufferString(`{"participant_ids":[1,2]}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	chatRepo.AssertExpectations(t)
}

func TestGetChatMessagesSuccess(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	userRepo := new(mocks.UserRepositoryMock)
	handler := newChatHandler(chatRepo, messageRepo, userRepo)
	router := setupChatRouter(handler)

	chatRepo.On("IsParticipant", mock.Anything, 5, 1).Return(true, nil).Once()
	messageRepo.On("ListMessages", mock.Anything, 5).
		Return([]models.Message{{ID: 1, ChatID: 5, SenderID: 2, Content: "hey"}}, nil).Once()
	userRepo.On("ListUsers", mock.Anything).
		Return([]models.User{{ID: 2, Name: "bob"}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/chats/5/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Messages []struct {
			Content    string `json:"content"`
			SenderName string `json:"sender_name"`
		} `json:"messages"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Messages, 1)
	require.Equal(t, "bob", resp.Messages[0].SenderName)

	chatRepo.AssertExpectations(t)
	messageRepo.AssertExpectations(t)
	userRepo.AssertExpectations(t)
}

func TestGetChatMessagesNonMember(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := newChatHandler(chatRepo, messageRepo, new(mocks.UserRepositoryMock))
	router := setupChatRouter(handler)

	chatRepo.On("IsParticipant", mock.Anything, 5, 1).Return(false, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/chats/5/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	messageRepo.AssertNotCalled(t, "ListMessages", mock.Anything, mock.Anything)
	chatRepo.AssertExpectations(t)
}

func TestGetChatMessagesInvalidID(t *testing.T) {
	handler := newChatHandler(new(mocks.ChatRepositoryMock), new(mocks.MessageRepositoryMock), new(mocks.UserRepositoryMock))
	router := setupChatRouter(handler)

	req := httptest.NewRequest(http.MethodGet, "/chats/abc/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPostChatMessageSuccess(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	userRepo := new(mocks.UserRepositoryMock)
	handler := newChatHandler(chatRepo, messageRepo, userRepo)
	router := setupChatRouter(handler)

	chatRepo.On("IsParticipant", mock.Anything, 5, 1).Return(true, nil).Once()
	messageRepo.On("AppendMessage", mock.Anything, 5, 1, "hi").
		Return(models.Message{ID: 7, ChatID: 5, SenderID: 1, Content: "hi"}, nil).Once()
	userRepo.On("GetUser", mock.Anything, 1).Return(models.User{ID: 1, Name: "alice"}, nil).Once()
	chatRepo.On("ListParticipantIDs", mock.Anything, 5).Return([]int{1, 2}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/chats/5/messages", bytes.NewBufferString(`{"content":"hi"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var event models.MessageEvent
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&event))
	require.Equal(t, "message", event.Type)
	require.Equal(t, "alice", event.SenderName)

	chatRepo.AssertExpectations(t)
	messageRepo.AssertExpectations(t)
	userRepo.AssertExpectations(t)
}

func TestPostChatMessageNonMember(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := newChatHandler(chatRepo, messageRepo, new(mocks.UserRepositoryMock))
	router := setupChatRouter(handler)

	chatRepo.On("IsParticipant", mock.Anything, 5, 1).Return(false, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/chats/5/messages", bytes.NewBufferString(`{"content":"hi"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	messageRepo.AssertNotCalled(t, "AppendMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	chatRepo.AssertExpectations(t)
}

func TestAddParticipantSuccess(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	userRepo := new(mocks.UserRepositoryMock)
	handler := newChatHandler(chatRepo, new(mocks.MessageRepositoryMock), userRepo)
	router := setupChatRouter(handler)

	chatRepo.On("IsParticipant", mock.Anything, 5, 1).Return(true, nil).Once()
	userRepo.On("GetUser", mock.Anything, 2).Return(models.User{ID: 2, Name: "bob"}, nil).Once()
	chatRepo.On("AddParticipant", mock.Anything, 5, 2).Return(nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/chats/5/participants", bytes.NewBufferString(`{"user_id":2}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	chatRepo.AssertExpectations(t)
	userRepo.AssertExpectations(t)
}
