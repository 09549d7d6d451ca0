package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/behzadon/songvote/internal/allocation"
	"github.com/behzadon/songvote/internal/auth"
	"github.com/behzadon/songvote/internal/domain"
	"github.com/behzadon/songvote/internal/realtime"
	"github.com/behzadon/songvote/internal/retry"
	"github.com/behzadon/songvote/internal/service"
	"github.com/behzadon/songvote/internal/session"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupAuthHandler(t *testing.T) (*AuthHandler, *service.MockService, *auth.MockJWTManager, *session.Manager) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	mockService := new(service.MockService)
	mockJWTManager := new(auth.MockJWTManager)
	sessions := session.NewManager(mockService, nil, session.Config{
		Limits:   allocation.DefaultLimits(),
		Retry:    retry.Policy{Attempts: 1, BaseDelay: time.Millisecond, Factor: 2},
		Realtime: realtime.Config{Debounce: 10 * time.Millisecond},
	}, zap.NewNop())
	t.Cleanup(sessions.Shutdown)
	return NewAuthHandler(mockService, sessions, mockJWTManager, zap.NewNop()), mockService, mockJWTManager, sessions
}

func postJSON(handler gin.HandlerFunc, path string, body interface{}) *httptest.ResponseRecorder {
	payload, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBuffer(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router := gin.New()
	router.POST(path, handler)
	router.ServeHTTP(w, req)
	return w
}

func TestAuthHandler_Register(t *testing.T) {
	valid := domain.RegisterRequest{
		Email:    "ana@example.com",
		Password: "password123",
		Username: "ana",
	}

	tests := []struct {
		name           string
		request        domain.RegisterRequest
		mockSetup      func(m *service.MockService)
		expectedStatus int
		expectedBody   map[string]interface{}
	}{
		{
			name:    "successful registration",
			request: valid,
			mockSetup: func(m *service.MockService) {
				m.On("RegisterVoter", mock.Anything, mock.MatchedBy(func(req *domain.RegisterRequest) bool {
					return req.Email == "ana@example.com" && req.Username == "ana"
				})).Return(&domain.Voter{ID: uuid.New(), Username: "ana"}, nil)
			},
			expectedStatus: http.StatusCreated,
			expectedBody: map[string]interface{}{
				"status": "success",
			},
		},
		{
			name:    "email already exists",
			request: valid,
			mockSetup: func(m *service.MockService) {
				m.On("RegisterVoter", mock.Anything, mock.Anything).Return(nil, domain.ErrEmailAlreadyExists)
			},
			expectedStatus: http.StatusConflict,
			expectedBody: map[string]interface{}{
				"status":  "error",
				"message": domain.ErrEmailAlreadyExists.Error(),
			},
		},
		{
			name: "invalid body",
			request: domain.RegisterRequest{
				Email:    "not-an-email",
				Password: "123",
			},
			mockSetup:      func(m *service.MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody: map[string]interface{}{
				"status": "error",
			},
		},
		{
			name:    "store failure",
			request: valid,
			mockSetup: func(m *service.MockService) {
				m.On("RegisterVoter", mock.Anything, mock.Anything).Return(nil, errors.New("connection reset"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody: map[string]interface{}{
				"status":  "error",
				"message": "failed to register",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, mockService, _, _ := setupAuthHandler(t)
			tt.mockSetup(mockService)

			w := postJSON(handler.Register, "/api/auth/register", tt.request)

			assert.Equal(t, tt.expectedStatus, w.Code)
			var response map[string]interface{}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
			for key, value := range tt.expectedBody {
				assert.Equal(t, value, response[key])
			}
		})
	}
}

func TestAuthHandler_Login(t *testing.T) {
	voter := &domain.Voter{ID: uuid.New(), Username: "ana", Email: "ana@example.com"}
	song := domain.Song{ID: uuid.New()}
	login := domain.LoginRequest{Email: "ana@example.com", Password: "password123"}

	t.Run("opens a session", func(t *testing.T) {
		handler, mockService, mockJWT, sessions := setupAuthHandler(t)
		mockService.On("Authenticate", mock.Anything, login.Email, login.Password).Return(voter, nil)
		mockJWT.On("GenerateToken", voter).Return("signed-token", nil)
		mockService.On("FetchSongs", mock.Anything).Return([]domain.Song{song}, nil)
		mockService.On("FetchVotes", mock.Anything, voter.ID).Return([]domain.VoteRecord{{SongID: song.ID, Points: 2}}, nil)

		w := postJSON(handler.Login, "/api/auth/login", login)

		require.Equal(t, http.StatusOK, w.Code)
		var resp struct {
			Status string `json:"status"`
			Token  string `json:"token"`
			Data   struct {
				Voter domain.Voter     `json:"voter"`
				View  domain.ViewModel `json:"view"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "signed-token", resp.Token)
		assert.Equal(t, voter.ID, resp.Data.Voter.ID)
		assert.Equal(t, 8, resp.Data.View.RemainingBudget)
		assert.Equal(t, 1, sessions.Count())
	})

	t.Run("invalid credentials", func(t *testing.T) {
		handler, mockService, mockJWT, sessions := setupAuthHandler(t)
		mockService.On("Authenticate", mock.Anything, login.Email, login.Password).Return(nil, domain.ErrInvalidCredentials)

		w := postJSON(handler.Login, "/api/auth/login", login)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		mockJWT.AssertNotCalled(t, "GenerateToken", mock.Anything)
		assert.Equal(t, 0, sessions.Count())
	})

	t.Run("fatal load refuses the session", func(t *testing.T) {
		handler, mockService, mockJWT, sessions := setupAuthHandler(t)
		mockService.On("Authenticate", mock.Anything, login.Email, login.Password).Return(voter, nil)
		mockJWT.On("GenerateToken", voter).Return("signed-token", nil)
		mockService.On("FetchSongs", mock.Anything).Return([]domain.Song{}, nil)
		mockService.On("FetchVotes", mock.Anything, voter.ID).
			Return(nil, domain.NewStoreError("FetchVotes", domain.KindPermissionDenied, domain.ErrPermissionDenied))

		w := postJSON(handler.Login, "/api/auth/login", login)

		assert.Equal(t, http.StatusForbidden, w.Code)
		var resp map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, string(domain.KindPermissionDenied), resp["kind"])
		assert.Equal(t, 0, sessions.Count())
	})
}

func TestAuthHandler_Logout(t *testing.T) {
	handler, mockService, _, sessions := setupAuthHandler(t)
	voter := domain.Voter{ID: uuid.New()}
	song := domain.Song{ID: uuid.New()}
	mockService.On("FetchSongs", mock.Anything).Return([]domain.Song{song}, nil)
	mockService.On("FetchVotes", mock.Anything, voter.ID).Return([]domain.VoteRecord{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	s, err := sessions.Open(ctx, voter)
	require.NoError(t, err)
	require.True(t, s.Controller.AddVote(song.ID))

	router := gin.New()
	router.POST("/api/auth/logout", func(c *gin.Context) {
		c.Set(auth.ContextVoterID, voter.ID)
		c.Next()
	}, handler.Logout)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, sessions.Count())
	assert.Equal(t, 0, s.Controller.View().PerSong[song.ID].Pending, "pending points are discarded")
	mockService.AssertNotCalled(t, "InsertVote", mock.Anything, mock.Anything)
}
