package handlers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/eventhub/internal/helpers"
	"github.com/joshua-takyi/eventhub/internal/middleware"
	"github.com/joshua-takyi/eventhub/internal/models"
	"github.com/joshua-takyi/eventhub/internal/services"
	"github.com/joshua-takyi/eventhub/internal/services/servicetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testAPI struct {
	router   *gin.Engine
	issuer   *helpers.TokenIssuer
	events   *servicetest.Events
	images   *servicetest.Images
	notifier *servicetest.Notifier
}

func newTestAPI(t *testing.T, events ...*models.Event) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	api := &testAPI{
		issuer:   helpers.NewTokenIssuer("test-secret", time.Hour),
		events:   servicetest.NewEvents(events...),
		images:   &servicetest.Images{},
		notifier: &servicetest.Notifier{},
	}
	users := servicetest.NewUsers(
		&models.User{ID: "alice", Name: "Alice", Email: "alice@example.com"},
		&models.User{ID: "bob", Name: "Bob", Email: "bob@example.com"},
	)
	logger := servicetest.Logger()
	es := services.NewEventService(api.events, users, api.images, api.notifier, logger, 100)
	us := services.NewUserService(users, services.NewLocalIdentity(users, api.issuer))

	r := gin.New()
	r.Use(middleware.RequestID(), middleware.ErrorHandler(logger))
	auth := middleware.AuthMiddleware(api.issuer, logger)
	cookies := CookieOptions{}

	ev := r.Group("/api/v1/events")
	ev.GET("/search", SearchEvents(es))
	ev.GET("", ListEvents(es))
	ev.GET("/:id", GetEvent(es))
	ev.POST("", auth, CreateEvent(es))
	ev.PUT("/:id", auth, UpdateEvent(es))
	ev.DELETE("/:id", auth, DeleteEvent(es))
	ev.POST("/:id/join", auth, JoinEvent(es))
	ev.POST("/:id/leave", auth, LeaveEvent(es))

	u := r.Group("/api/v1/users")
	u.POST("/register", Register(us, cookies))
	u.POST("/login", Login(us, cookies))
	u.POST("/logout", Logout(cookies))
	u.GET("/profile", auth, Profile(us))

	api.router = r
	return api
}

func (api *testAPI) do(t *testing.T, req *http.Request, userID string) *httptest.ResponseRecorder {
	t.Helper()
	if userID != "" {
		token, err := api.issuer.Generate(userID, "", "")
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)
	return rec
}

func jsonRequest(method, path string, body any) *http.Request {
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(method, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func multipartRequest(t *testing.T, method, path string, fields map[string]string, image []byte, imageType string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if image != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="image"; filename="poster.jpg"`)
		h.Set("Content-Type", imageType)
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(image)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func sampleEvent(id string, max int, attendees ...string) *models.Event {
	return &models.Event{
		ID:           id,
		Title:        "Go meetup",
		Description:  "Talks and pizza",
		Date:         time.Date(2030, 5, 1, 18, 0, 0, 0, time.UTC),
		Location:     "Accra",
		Category:     "tech",
		Creator:      "alice",
		Attendees:    attendees,
		MaxAttendees: max,
	}
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) models.ErrorBody {
	t.Helper()
	var body models.ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestCreateEventMultipart(t *testing.T) {
	api := newTestAPI(t)

	fields := map[string]string{
		"title":        "Go meetup",
		"description":  "Talks and pizza",
		"date":         "2030-05-01",
		"location":     "Accra",
		"category":     "tech",
		"maxAttendees": "25",
	}
	rec := api.do(t, multipartRequest(t, http.MethodPost, "/api/v1/events", fields, []byte("jpeg"), "image/jpeg"), "alice")

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var event models.ResolvedEvent
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &event))
	assert.Equal(t, "Go meetup", event.Title)
	assert.Equal(t, 25, event.MaxAttendees)
	assert.Equal(t, "Alice", event.Creator.Name)
	assert.Equal(t, "https://img.test/events/poster.jpg.jpg", event.ImageURL)
	assert.Equal(t, time.Date(2030, 5, 1, 0, 0, 0, 0, time.UTC), event.Date)
	assert.NotContains(t, rec.Body.String(), "imagePublicId")
}

func TestCreateEventRejects(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, jsonRequest(http.MethodPost, "/api/v1/events", map[string]any{"title": "x"}), "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do(t, jsonRequest(http.MethodPost, "/api/v1/events", map[string]any{
		"title": "x", "description": "y", "date": "soon", "location": "z", "category": "c", "maxAttendees": 3,
	}), "alice")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, jsonRequest(http.MethodPost, "/api/v1/events", map[string]any{
		"title": "", "description": "y", "date": "2030-01-01", "location": "z", "category": "c", "maxAttendees": 3,
	}), "alice")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid", decodeError(t, rec).Code)

	fields := map[string]string{
		"title": "x", "description": "y", "date": "2030-01-01", "location": "z", "category": "c", "maxAttendees": "3",
	}
	rec = api.do(t, multipartRequest(t, http.MethodPost, "/api/v1/events", fields, []byte("%PDF"), "application/pdf"), "alice")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, api.images.Uploads())
}

func TestCreateEventUploadFailure(t *testing.T) {
	api := newTestAPI(t)
	api.images.UploadErr = assert.AnError

	fields := map[string]string{
		"title": "x", "description": "y", "date": "2030-01-01", "location": "z", "category": "c", "maxAttendees": "3",
	}
	rec := api.do(t, multipartRequest(t, http.MethodPost, "/api/v1/events", fields, []byte("jpeg"), "image/png"), "alice")

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"message":"Server error","code":"server_error","request_id":"`+rec.Header().Get("X-Request-ID")+`"}`, rec.Body.String())
	assert.Empty(t, api.notifier.Calls())
}

func TestListAndSearchEvents(t *testing.T) {
	e2 := sampleEvent("e2", 5)
	e2.Date = e2.Date.AddDate(0, 1, 0)
	e2.Category = "music"
	api := newTestAPI(t, sampleEvent("e1", 5), e2)

	rec := api.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/events?category=music", nil), "")
	require.Equal(t, http.StatusOK, rec.Code)
	var page models.EventPage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Len(t, page.Events, 1)
	assert.Equal(t, "e2", page.Events[0].ID)
	assert.Equal(t, int64(1), page.Pagination.TotalEvents)

	rec = api.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/events?date=2030-05-15&limit=1&page=1", nil), "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Len(t, page.Events, 1)
	assert.Equal(t, "e2", page.Events[0].ID)

	rec = api.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/events?page=abc", nil), "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/events/search?search=PIZZA&location=accra", nil), "")
	require.Equal(t, http.StatusOK, rec.Code)
	var found []models.ResolvedEvent
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &found))
	assert.Len(t, found, 2)
}

func TestGetEvent(t *testing.T) {
	api := newTestAPI(t, sampleEvent("e1", 5, "bob"))

	rec := api.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/events/e1", nil), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"_id":"e1"`)
	assert.Contains(t, rec.Body.String(), `"name":"Bob"`)

	rec = api.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/events/missing", nil), "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, models.ErrorBody{Message: "Event not found", Code: "not_found"}, decodeError(t, rec))
}

func TestUpdateEvent(t *testing.T) {
	api := newTestAPI(t, sampleEvent("e1", 5))

	rec := api.do(t, jsonRequest(http.MethodPut, "/api/v1/events/e1", map[string]any{"title": "Renamed"}), "bob")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Not authorized", decodeError(t, rec).Message)

	rec = api.do(t, jsonRequest(http.MethodPut, "/api/v1/events/e1", map[string]any{"title": "Renamed", "maxAttendees": 8}), "alice")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	stored := api.events.Get("e1")
	assert.Equal(t, "Renamed", stored.Title)
	assert.Equal(t, 8, stored.MaxAttendees)
	assert.Equal(t, "Accra", stored.Location)

	rec = api.do(t, multipartRequest(t, http.MethodPut, "/api/v1/events/e1", map[string]string{"location": "Tema"}, []byte("png"), "image/png"), "alice")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Tema", api.events.Get("e1").Location)
	assert.NotEmpty(t, api.events.Get("e1").ImageURL)
}

func TestDeleteEvent(t *testing.T) {
	api := newTestAPI(t, sampleEvent("e1", 5))

	rec := api.do(t, httptest.NewRequest(http.MethodDelete, "/api/v1/events/e1", nil), "bob")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do(t, httptest.NewRequest(http.MethodDelete, "/api/v1/events/e1", nil), "alice")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Event removed"}`, rec.Body.String())

	rec = api.do(t, httptest.NewRequest(http.MethodDelete, "/api/v1/events/e1", nil), "alice")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestJoinAndLeaveEvent(t *testing.T) {
	api := newTestAPI(t, sampleEvent("e1", 1))

	rec := api.do(t, httptest.NewRequest(http.MethodPost, "/api/v1/events/e1/join", nil), "bob")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"Bob"`)

	rec = api.do(t, httptest.NewRequest(http.MethodPost, "/api/v1/events/e1/join", nil), "bob")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, models.ErrorBody{Message: "Already joined", Code: "already_member"}, decodeError(t, rec))

	rec = api.do(t, httptest.NewRequest(http.MethodPost, "/api/v1/events/e1/join", nil), "alice")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Event is full", decodeError(t, rec).Message)

	rec = api.do(t, httptest.NewRequest(http.MethodPost, "/api/v1/events/e1/leave", nil), "alice")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Not joined", decodeError(t, rec).Message)

	rec = api.do(t, httptest.NewRequest(http.MethodPost, "/api/v1/events/e1/leave", nil), "bob")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(t, httptest.NewRequest(http.MethodPost, "/api/v1/events/e1/join", nil), "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUserFlow(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, jsonRequest(http.MethodPost, "/api/v1/users/register", map[string]string{
		"name": "Ada", "email": "ada@example.com", "password": "Passw0rd!",
	}), "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var reg models.AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reg))
	assert.NotEmpty(t, reg.ID)
	assert.NotEmpty(t, reg.Token)

	rec = api.do(t, jsonRequest(http.MethodPost, "/api/v1/users/register", map[string]string{
		"name": "Ada", "email": "ada@example.com", "password": "Passw0rd!",
	}), "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = api.do(t, jsonRequest(http.MethodPost, "/api/v1/users/login", map[string]string{
		"email": "ada@example.com", "password": "Passw0rd!",
	}), "")
	require.Equal(t, http.StatusOK, rec.Code)
	cookie := rec.Header().Get("Set-Cookie")
	assert.True(t, strings.HasPrefix(cookie, middleware.AccessTokenCookie+"="))
	assert.Contains(t, cookie, "HttpOnly")

	rec = api.do(t, jsonRequest(http.MethodPost, "/api/v1/users/login", map[string]string{
		"email": "ada@example.com", "password": "nope",
	}), "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid_credentials", decodeError(t, rec).Code)

	rec = api.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/users/profile", nil), reg.ID)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"email":"ada@example.com"`)
	assert.NotContains(t, rec.Body.String(), "passwordHash")

	rec = api.do(t, httptest.NewRequest(http.MethodPost, "/api/v1/users/logout", nil), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Set-Cookie"), "Max-Age=0")
}

func TestGoogleAuthRedirects(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/auth/google", GoogleAuth("https://xyz.supabase.co", "http://localhost:5173"))
	r.GET("/auth/google/callback", GoogleAuthCallback("http://localhost:5173"))

	cases := []struct {
		name     string
		path     string
		location string
	}{
		{
			name:     "default redirect",
			path:     "/auth/google",
			location: "https://xyz.supabase.co/auth/v1/authorize?provider=google&redirect_to=http%3A%2F%2Flocalhost%3A5173%2Fauth%2Fcallback",
		},
		{
			name:     "foreign redirect ignored",
			path:     "/auth/google?redirect_to=https://evil.example/steal",
			location: "https://xyz.supabase.co/auth/v1/authorize?provider=google&redirect_to=http%3A%2F%2Flocalhost%3A5173%2Fauth%2Fcallback",
		},
		{
			name:     "frontend redirect kept",
			path:     "/auth/google?redirect_to=http://localhost:5173/events",
			location: "https://xyz.supabase.co/auth/v1/authorize?provider=google&redirect_to=http%3A%2F%2Flocalhost%3A5173%2Fevents",
		},
		{
			name:     "callback success",
			path:     "/auth/google/callback",
			location: "http://localhost:5173/auth/callback",
		},
		{
			name:     "callback error",
			path:     "/auth/google/callback?error=access_denied&error_description=User+cancelled",
			location: "http://localhost:5173/auth/signin?error=access_denied&error_description=User+cancelled",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.path, nil))
			assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
			assert.Equal(t, tc.location, rec.Header().Get("Location"))
		})
	}
}
