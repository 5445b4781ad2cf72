package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strconv"
	"strings"
	"testing"
	"time"

	"skyvault/file-api/internal/model"
	"skyvault/file-api/internal/service"
	"skyvault/file-api/internal/storage"
	"skyvault/file-api/pkg/middleware"
	"skyvault/file-api/pkg/security"

	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testPassword = "correct horse battery staple"

func newTestAPI(t *testing.T) *API {
	t.Helper()

	gin.SetMode(gin.TestMode)

	viper.Set("jwt.secret", "api-test-secret")
	viper.Set("upload.max_size", int64(10<<20))
	viper.Set("ratelimit.rps", 100)
	viper.Set("ratelimit.burst", 200)
	viper.Set("cache.redis_addr", "")
	makeCacheStore()

	d, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, d.AutoMigrate(model.User{}, model.File{}, model.Log{}))

	mem := storage.NewMem()

	audit := service.NewAudit(d, 64, 1)
	audit.Start()

	a := &API{
		DB:     d,
		Router: gin.New(),
		Argon:  security.New(),
		Store:  mem,
		Audit:  audit,
		Files: service.NewFiles(d, mem, audit, service.FilesConfig{
			MaxUploadSize: 10 << 20,
			SignedURLTTL:  time.Hour,
			ShareBaseURL:  "http://localhost:5173",
		}),
	}

	a.Router.Use(gin.Recovery(), middleware.NewRequestIDMiddleware())
	a.setupRoutes()

	return a
}

func (a *API) do(method, path, token string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	w := httptest.NewRecorder()
	a.Router.ServeHTTP(w, req)
	return w
}

func (a *API) doJSON(method, path, token string, body any) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	return a.do(method, path, token, bytes.NewReader(raw), "application/json")
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), "body: %s", w.Body.String())
	return out
}

func register(t *testing.T, a *API, username string) (token, userID string) {
	t.Helper()

	w := a.doJSON(http.MethodPost, "/api/auth/register", "", gin.H{
		"username": username,
		"password": testPassword,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	body := decode(t, w)
	token = body["token"].(string)
	userID = body["user"].(map[string]any)["id"].(string)

	require.NotEmpty(t, token)
	require.NotEmpty(t, userID)
	return token, userID
}

func multipartFile(t *testing.T, name, content string, public bool) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, name))
	h.Set("Content-Type", "application/pdf")

	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)

	require.NoError(t, w.WriteField("is_public", strconv.FormatBool(public)))
	require.NoError(t, w.Close())

	return &buf, w.FormDataContentType()
}

func upload(t *testing.T, a *API, token, name string, public bool) string {
	t.Helper()

	body, contentType := multipartFile(t, name, "contents of "+name, public)

	w := a.do(http.MethodPost, "/api/file/upload", token, body, contentType)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	return decode(t, w)["file"].(map[string]any)["id"].(string)
}

func TestHeartbeat(t *testing.T) {
	a := newTestAPI(t)

	w := a.do(http.MethodHead, "/api/heartbeat", "", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthFlow(t *testing.T) {
	a := newTestAPI(t)

	register(t, a, "alice")

	// The username is now taken
	w := a.doJSON(http.MethodPost, "/api/auth/register", "", gin.H{
		"username": "alice",
		"password": testPassword,
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = a.doJSON(http.MethodPost, "/api/auth/register", "", gin.H{
		"username": "bob",
		"password": "short",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.doJSON(http.MethodPost, "/api/auth/login", "", gin.H{
		"username_or_email": "alice",
		"password":          "wrong password",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = a.doJSON(http.MethodPost, "/api/auth/login", "", gin.H{
		"username_or_email": "nobody",
		"password":          testPassword,
	})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = a.doJSON(http.MethodPost, "/api/auth/login", "", gin.H{
		"username_or_email": "alice",
		"password":          testPassword,
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, decode(t, w)["token"])
}

func TestUploadRequiresAuth(t *testing.T) {
	a := newTestAPI(t)

	body, contentType := multipartFile(t, "a.pdf", "x", false)
	w := a.do(http.MethodPost, "/api/file/upload", "", body, contentType)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUploadRejectsMissingFile(t *testing.T) {
	a := newTestAPI(t)
	token, _ := register(t, a, "alice")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("is_public", "false"))
	require.NoError(t, mw.Close())

	w := a.do(http.MethodPost, "/api/file/upload", token, &buf, mw.FormDataContentType())
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFileLifecycleOverHTTP(t *testing.T) {
	a := newTestAPI(t)

	alice, _ := register(t, a, "alice")
	bob, _ := register(t, a, "bob")

	fileID := upload(t, a, alice, "report.pdf", false)

	// Private file, anonymous and foreign callers get refused
	w := a.do(http.MethodGet, "/api/file/"+fileID+"/url", "", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = a.do(http.MethodGet, "/api/file/"+fileID+"/url", bob, nil, "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = a.do(http.MethodGet, "/api/file/"+fileID+"/url", alice, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(decode(t, w)["url"].(string), "mem://signed/"))

	// Sharing a private file is refused even for the owner
	w = a.do(http.MethodGet, "/api/file/"+fileID+"/share", alice, nil, "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Only the owner may toggle
	w = a.do(http.MethodPatch, "/api/file/"+fileID+"/visibility", bob, nil, "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = a.do(http.MethodPatch, "/api/file/"+fileID+"/visibility", alice, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "File is now public", body["message"])

	// Now anonymous readers get the direct URL and the share link
	w = a.do(http.MethodGet, "/api/file/"+fileID+"/url", "", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(decode(t, w)["url"].(string), "mem://public/"))

	w = a.do(http.MethodGet, "/api/file/"+fileID+"/share", "", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "http://localhost:5173/file/view/"+fileID, decode(t, w)["shareUrl"])

	// Deletion is owner-only
	w = a.do(http.MethodDelete, "/api/file/"+fileID, bob, nil, "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = a.do(http.MethodDelete, "/api/file/"+fileID, alice, nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = a.do(http.MethodGet, "/api/file/"+fileID+"/url", alice, nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestFileListScopedToCallerAndFolder(t *testing.T) {
	a := newTestAPI(t)

	alice, _ := register(t, a, "alice")
	bob, _ := register(t, a, "bob")

	upload(t, a, alice, "mine.pdf", false)
	upload(t, a, bob, "theirs.pdf", false)

	w := a.do(http.MethodGet, "/api/file/list", alice, nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	files := decode(t, w)["files"].([]any)
	require.Len(t, files, 1)
	assert.Equal(t, "mine.pdf", files[0].(map[string]any)["name"])

	w = a.do(http.MethodGet, "/api/file/list", "", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPasswordChangeRevokesOldTokens(t *testing.T) {
	a := newTestAPI(t)
	oldToken, _ := register(t, a, "alice")

	w := a.doJSON(http.MethodPut, "/api/user/password", oldToken, gin.H{
		"current_password": "not the password",
		"new_password":     "anotherStrongOne",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.doJSON(http.MethodPut, "/api/user/password", oldToken, gin.H{
		"current_password": testPassword,
		"new_password":     "anotherStrongOne",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = a.do(http.MethodGet, "/api/file/list", oldToken, nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code, "tokens issued before the change must stop working")

	w = a.doJSON(http.MethodPost, "/api/auth/login", "", gin.H{
		"username_or_email": "alice",
		"password":          "anotherStrongOne",
	})
	require.Equal(t, http.StatusOK, w.Code)
}

func TestProfileUpdate(t *testing.T) {
	a := newTestAPI(t)
	token, _ := register(t, a, "alice")

	w := a.doJSON(http.MethodPut, "/api/user/profile", token, gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.doJSON(http.MethodPut, "/api/user/profile", token, gin.H{
		"email":     "not-an-email",
		"firstname": "Alice",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.doJSON(http.MethodPut, "/api/user/profile", token, gin.H{
		"email":     "alice@example.com",
		"firstname": "Alice",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	user := decode(t, w)["user"].(map[string]any)
	assert.Equal(t, "alice@example.com", user["email"])
	assert.Equal(t, "Alice", user["firstname"])

	// A second account can't claim the same email
	other, _ := register(t, a, "bob")
	w = a.doJSON(http.MethodPut, "/api/user/profile", other, gin.H{
		"email": "alice@example.com",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestLogEndpoints(t *testing.T) {
	a := newTestAPI(t)

	alice, _ := register(t, a, "alice")
	bob, _ := register(t, a, "bob")

	fileID := upload(t, a, alice, "report.pdf", false)

	w := a.do(http.MethodGet, "/api/file/"+fileID+"/url", alice, nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	a.Audit.Flush()

	w = a.do(http.MethodGet, "/api/logs", alice, nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	logs := body["logs"].([]any)
	require.NotEmpty(t, logs)

	pagination := body["pagination"].(map[string]any)
	assert.EqualValues(t, 1, pagination["page"])

	// Filtered by action
	w = a.do(http.MethodGet, "/api/logs?action="+string(model.ActionUpload), alice, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	filtered := decode(t, w)["logs"].([]any)
	require.Len(t, filtered, 1)
	logID := filtered[0].(map[string]any)["id"].(string)

	// Bob never uploaded anything, the listing is scoped to the caller
	w = a.do(http.MethodGet, "/api/logs?action="+string(model.ActionUpload), bob, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode(t, w)["logs"])

	// Fetching a single entry is owner-only
	w = a.do(http.MethodGet, "/api/logs/"+logID, alice, nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = a.do(http.MethodGet, "/api/logs/"+logID, bob, nil, "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = a.do(http.MethodGet, "/api/logs/missing", alice, nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Per-file activity is gated on file ownership
	w = a.do(http.MethodGet, "/api/logs/file/"+fileID, alice, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, decode(t, w)["logs"])

	w = a.do(http.MethodGet, "/api/logs/file/"+fileID, bob, nil, "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = a.do(http.MethodGet, "/api/logs/stats", alice, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	stats := decode(t, w)
	assert.NotEmpty(t, stats["stats"])
	assert.Greater(t, stats["total"].(float64), float64(0))
}

func TestLogListValidation(t *testing.T) {
	a := newTestAPI(t)
	token, _ := register(t, a, "alice")

	for _, query := range []string{
		"page=0",
		"page=abc",
		"limit=0",
		"limit=251",
		"sort_by=details",
		"sort_order=sideways",
		"start_date=yesterday",
		"end_date=2026-13-45",
	} {
		w := a.do(http.MethodGet, "/api/logs?"+query, token, nil, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, "query %q must be rejected", query)
	}
}
