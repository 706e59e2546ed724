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

	"messaging-service/internal/mocks"
	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
)

func setupChatRouter(handler *ChatHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", "u1")
		c.Next()
	})
	r.GET("/api/chats", handler.ListChats)
	r.POST("/api/chats", handler.CreateChat)
	return r
}

func TestListChatsDerivesDirectName(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	handler := NewChatHandler(chatRepo, new(mocks.UserRepositoryMock), nil)
	router := setupChatRouter(handler)

	chatRepo.On("ListChatsForUser", mock.Anything, "u1").
		Return([]models.Chat{{ID: "c1", IsGroup: false}}, nil).Once()
	chatRepo.On("ListParticipants", mock.Anything, "c1").
		Return([]models.User{{ID: "u1", Username: "alice"}, {ID: "u2", Username: "bob"}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/api/chats", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Chats []models.ChatSummary `json:"chats"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Chats, 1)
	assert.Equal(t, "bob", resp.Chats[0].Name)
	assert.Len(t, resp.Chats[0].Participants, 2)

	chatRepo.AssertExpectations(t)
}

func TestListChatsUsesGroupName(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	handler := NewChatHandler(chatRepo, new(mocks.UserRepositoryMock), nil)
	router := setupChatRouter(handler)

	name := "project"
	chatRepo.On("ListChatsForUser", mock.Anything, "u1").
		Return([]models.Chat{{ID: "c1", Name: &name, IsGroup: true}}, nil).Once()
	chatRepo.On("ListParticipants", mock.Anything, "c1").
		Return([]models.User{{ID: "u1"}, {ID: "u2"}, {ID: "u3"}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/api/chats", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Chats []models.ChatSummary `json:"chats"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Chats, 1)
	assert.Equal(t, "project", resp.Chats[0].Name)
	assert.True(t, resp.Chats[0].IsGroup)
}

func TestCreateChatNoParticipants(t *testing.T) {
	handler := NewChatHandler(new(mocks.ChatRepositoryMock), new(mocks.UserRepositoryMock), nil)
	router := setupChatRouter(handler)

	req := httptest.NewRequest(http.MethodPost, "/api/chats", bytes.NewBufferString(`{"participants":[]}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "No participants specified")
}

func TestCreateDirectChatNew(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	userRepo := new(mocks.UserRepositoryMock)
	handler := NewChatHandler(chatRepo, userRepo, nil)
	router := setupChatRouter(handler)

	userRepo.On("GetUser", mock.Anything, "u2").Return(models.User{ID: "u2", Username: "bob"}, nil).Once()
	chatRepo.On("FindDirectChat", mock.Anything, "u1", "u2").
		Return(models.Chat{}, repositories.ErrChatNotFound).Once()
	chatRepo.On("CreateChat", mock.Anything, "u1", []string{"u2"}, "").
		Return(models.Chat{ID: "c9", IsGroup: false}, nil).Once()
	chatRepo.On("ListParticipants", mock.Anything, "c9").
		Return([]models.User{{ID: "u1", Username: "alice"}, {ID: "u2", Username: "bob"}}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/api/chats", bytes.NewBufferString(`{"participants":["u2"]}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), "Chat created successfully")

	chatRepo.AssertExpectations(t)
	userRepo.AssertExpectations(t)
}

func TestCreateDirectChatAlreadyExists(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	userRepo := new(mocks.UserRepositoryMock)
	handler := NewChatHandler(chatRepo, userRepo, nil)
	router := setupChatRouter(handler)

	userRepo.On("GetUser", mock.Anything, "u2").Return(models.User{ID: "u2", Username: "bob"}, nil).Once()
	chatRepo.On("FindDirectChat", mock.Anything, "u1", "u2").
		Return(models.Chat{ID: "c5", IsGroup: false}, nil).Once()
	chatRepo.On("ListParticipants", mock.Anything, "c5").
		Return([]models.User{{ID: "u1", Username: "alice"}, {ID: "u2", Username: "bob"}}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/api/chats", bytes.NewBufferString(`{"participants":["u2"]}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Chat already exists")

	chatRepo.AssertExpectations(t)
}

func TestCreateDirectChatUnknownParticipant(t *testing.T) {
	userRepo := new(mocks.UserRepositoryMock)
	handler := NewChatHandler(new(mocks.ChatRepositoryMock), userRepo, nil)
	router := setupChatRouter(handler)

	userRepo.On("GetUser", mock.Anything, "ghost").
		Return(models.User{}, repositories.ErrUserNotFound).Once()

	req := httptest.NewRequest(http.MethodPost, "/api/chats", bytes.NewBufferString(`{"participants":["ghost"]}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Participant not found")
}

func TestCreateGroupChatSuccess(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	handler := NewChatHandler(chatRepo, new(mocks.UserRepositoryMock), nil)
	router := setupChatRouter(handler)

	name := "team"
	chatRepo.On("CreateChat", mock.Anything, "u1", []string{"u2", "u3"}, "team").
		Return(models.Chat{ID: "c7", Name: &name, IsGroup: true}, nil).Once()
	chatRepo.On("ListParticipants", mock.Anything, "c7").
		Return([]models.User{{ID: "u1"}, {ID: "u2"}, {ID: "u3"}}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/api/chats", bytes.NewBufferString(`{"participants":["u2","u3"],"name":"team"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	chatRepo.AssertExpectations(t)
}

func TestCreateGroupChatUnknownParticipant(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	handler := NewChatHandler(chatRepo, new(mocks.UserRepositoryMock), nil)
	router := setupChatRouter(handler)

	chatRepo.On("CreateChat", mock.Anything, "u1", []string{"u2", "ghost"}, "team").
		Return(models.Chat{}, repositories.ErrUserNotFound).Once()

	req := httptest.NewRequest(http.MethodPost, "/api/chats", bytes.NewBufferString(`{"participants":["u2","ghost"],"name":"team"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	chatRepo.AssertExpectations(t)
}
