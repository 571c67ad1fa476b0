package http

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	stdhttp "net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/relaychat/relaychat-server/internal/auth"
	"github.com/relaychat/relaychat-server/internal/blob"
	"github.com/relaychat/relaychat-server/internal/config"
	"github.com/relaychat/relaychat-server/internal/core"
	"github.com/relaychat/relaychat-server/internal/store"
	"github.com/relaychat/relaychat-server/internal/store/sqlite"
)

type testEnv struct {
	handler   stdhttp.Handler
	store     *sqlite.SQLiteStore
	hub       *core.Hub
	uploadDir string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()

	st, err := sqlite.New(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	uploadDir := filepath.Join(dir, "uploads")
	blobs, err := blob.NewStore(uploadDir, "/uploads")
	require.NoError(t, err)

	logger := zerolog.Nop()
	jwtCfg := &auth.JWTConfig{
		Secret:   []byte("test-secret"),
		Issuer:   "relaychat-test",
		Audience: "relaychat",
		TTL:      time.Hour,
	}
	authService := auth.NewService(st, jwtCfg)
	hub := core.NewHub(core.NewRegistry(), core.NewRoomIndex(), core.NewTypingTracker(), st, st, &logger)

	cfg := config.Default()
	cfg.Addr = "127.0.0.1:0"
	srv := NewServer(hub, authService, st, blobs, cfg, &logger)

	return &testEnv{handler: srv.Handler, store: st, hub: hub, uploadDir: uploadDir}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, "GET", "/health", nil, nil)
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())
}

func TestRegisterLoginFlow(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, "POST", "/api/auth/register", RegisterRequest{Username: "alice", Password: "password123"}, nil)
	require.Equal(t, stdhttp.StatusCreated, rec.Code)
	var resp AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)

	rec = env.do(t, "POST", "/api/auth/register", RegisterRequest{Username: "alice", Password: "password123"}, nil)
	require.Equal(t, stdhttp.StatusConflict, rec.Code)

	rec = env.do(t, "POST", "/api/auth/login", LoginRequest{Username: "alice", Password: "password123"}, nil)
	require.Equal(t, stdhttp.StatusOK, rec.Code)

	rec = env.do(t, "POST", "/api/auth/login", LoginRequest{Username: "alice", Password: "wrong-pass"}, nil)
	require.Equal(t, stdhttp.StatusUnauthorized, rec.Code)
}

func TestRegisterValidatesBody(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, "POST", "/api/auth/register", RegisterRequest{Username: "ab", Password: "password123"}, nil)
	require.Equal(t, stdhttp.StatusBadRequest, rec.Code)

	rec = env.do(t, "POST", "/api/auth/register", RegisterRequest{Username: "alice", Password: "short"}, nil)
	require.Equal(t, stdhttp.StatusBadRequest, rec.Code)
}

func TestRoomsRequireAuthForCreation(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, "POST", "/api/rooms", CreateRoomRequest{Name: "general"}, nil)
	require.Equal(t, stdhttp.StatusUnauthorized, rec.Code)

	rec = env.do(t, "POST", "/api/auth/register", RegisterRequest{Username: "alice", Password: "password123"}, nil)
	require.Equal(t, stdhttp.StatusCreated, rec.Code)
	var resp AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	authed := map[string]string{"Authorization": "Bearer " + resp.Token}

	rec = env.do(t, "POST", "/api/rooms", CreateRoomRequest{Name: "general"}, authed)
	require.Equal(t, stdhttp.StatusCreated, rec.Code)

	rec = env.do(t, "POST", "/api/rooms", CreateRoomRequest{Name: "general"}, authed)
	require.Equal(t, stdhttp.StatusConflict, rec.Code)

	rec = env.do(t, "GET", "/api/rooms", nil, nil)
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	var rooms []RoomResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rooms))
	require.Len(t, rooms, 1)
	require.Equal(t, "general", rooms[0].Name)
}

func TestListMessagesSearchAndPagination(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for _, body := range []string{"deploy started", "lunch?", "deploy finished"} {
		require.NoError(t, env.store.CreateMessage(ctx, &store.Message{
			ID: uuid.NewString(), Sender: "alice", SenderID: "s1", Body: body, CreatedAt: time.Now().UTC(),
		}))
	}

	rec := env.do(t, "GET", "/api/messages?search=deploy", nil, nil)
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	var msgs []MessageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msgs))
	require.Len(t, msgs, 2)
	require.Equal(t, "deploy started", msgs[0].Message)

	rec = env.do(t, "GET", "/api/messages?page=2&limit=2", nil, nil)
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	msgs = nil
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msgs))
	require.Len(t, msgs, 1)
}

func TestUploadFile(t *testing.T) {
	env := newTestEnv(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "report.pdf")
	require.NoError(t, err)
	_, err = fw.Write([]byte("pdf bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("sender", "alice"))
	require.NoError(t, mw.WriteField("senderId", "s1"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", "/api/messages/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	require.Equal(t, stdhttp.StatusCreated, rec.Code)
	var resp MessageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "report.pdf", resp.Message)
	require.Equal(t, "alice", resp.Sender)
	require.Contains(t, resp.FileURL, "/uploads/")

	entries, err := os.ReadDir(env.uploadDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	got, err := env.store.GetMessage(context.Background(), resp.ID)
	require.NoError(t, err)
	require.Equal(t, resp.FileURL, got.FileURL)
}

func TestUploadWithoutFile(t *testing.T) {
	env := newTestEnv(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("sender", "alice"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", "/api/messages/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	require.Equal(t, stdhttp.StatusBadRequest, rec.Code)
}

func TestListOnlineUsers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.store.UpsertOnlineStatus(ctx, "alice", "sock-1", true)
	require.NoError(t, err)
	_, err = env.store.UpsertOnlineStatus(ctx, "bob", "sock-2", false)
	require.NoError(t, err)

	rec := env.do(t, "GET", "/api/users", nil, nil)
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	var users []UserResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &users))
	require.Len(t, users, 1)
	require.Equal(t, "alice", users[0].Username)
	require.True(t, users[0].Online)
}
