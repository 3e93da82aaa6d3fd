package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"safemaint-backend/config"
	"safemaint-backend/internal/auth"
	"safemaint-backend/internal/document"
	"safemaint-backend/internal/events"
	"safemaint-backend/internal/maintenance"
	"safemaint-backend/internal/mirror"
	"safemaint-backend/internal/model"
	"safemaint-backend/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	router *gin.Engine
	repos  *store.Repositories
	bus    *events.Bus
	admin  string
	op     string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	bus := events.NewBus()
	m := mirror.New(mirror.NewMemoryBackend(0), mirror.Options{}, nil)
	repos := store.NewRepositories(store.Deps{Mirror: m, Bus: bus})

	authSvc := auth.NewService(config.AuthConfig{
		AdminUsername: "admin",
		AdminPassword: "admin-pw",
		AdminName:     "Administrador",
		SessionTTL:    time.Hour,
	}, repos.Users, auth.NewMemoryStore(), nil)
	_, err := authSvc.SaveUser(context.Background(), auth.UserInput{Username: "joao", Password: "pw", Role: model.RoleOperator})
	require.NoError(t, err)

	router := NewRouter(config.ServerConfig{}, Deps{
		Repos:       repos,
		Maintenance: maintenance.NewService(repos, nil, nil),
		Documents:   document.NewService(repos.Documents, nil),
		Auth:        authSvc,
		Bus:         bus,
		Webpush:     &webpush.Options{VAPIDPublicKey: "vapid-pub"},
	})

	env := &testEnv{router: router, repos: repos, bus: bus}
	env.admin = env.login(t, "admin", "admin-pw")
	env.op = env.login(t, "joao", "pw")
	return env
}

func (e *testEnv) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) login(t *testing.T, username, password string) string {
	t.Helper()
	w := e.do(http.MethodPost, "/api/auth/login", "", gin.H{"username": username, "password": password})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestAuthRoutes(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/auth/login", "", gin.H{"username": "admin", "password": "bad"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(http.MethodPost, "/api/auth/login", "", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"invalid request"}`, w.Body.String())

	w = env.do(http.MethodGet, "/api/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(http.MethodGet, "/api/auth/me", env.op, nil)
	require.Equal(t, http.StatusOK, w.Code)
	me := decode[auth.Session](t, w)
	assert.Equal(t, "joao", me.Username)
	assert.Equal(t, model.RoleOperator, me.Role)

	w = env.do(http.MethodPost, "/api/auth/logout", env.op, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = env.do(http.MethodGet, "/api/auth/me", env.op, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUsersAdminOnly(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/api/users", env.op, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(http.MethodPut, "/api/users", env.admin, gin.H{"username": "maria", "password": "x", "role": "SUPERVISOR"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(http.MethodGet, "/api/users", env.admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	users := decode[[]model.User](t, w)
	assert.Len(t, users, 2)
	for _, u := range users {
		assert.Empty(t, u.PasswordHash)
	}
	assert.NotContains(t, w.Body.String(), "$2a$")
}

func TestMaintenanceFlow(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/maintenances", env.op, gin.H{
		"artId":  "art-1",
		"origin": "CORRETIVA",
		"header": gin.H{"om": "OM-1", "tag": "bc-02"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	m := decode[model.ActiveMaintenance](t, w)
	assert.Equal(t, "joao", m.OpenedBy)
	assert.Equal(t, "BC-02", m.Header.Tag)

	w = env.do(http.MethodGet, "/api/maintenances", env.op, nil)
	require.Equal(t, http.StatusOK, w.Code)
	views := decode[[]maintenance.View](t, w)
	require.Len(t, views, 1)
	assert.Equal(t, m.ID, views[0].ID)

	w = env.do(http.MethodPost, "/api/maintenances/"+m.ID+"/pause", env.op, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodPost, "/api/maintenances/"+m.ID+"/pause", env.op, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(http.MethodPost, "/api/maintenances/"+m.ID+"/link-om", env.op, gin.H{"omId": "missing"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(http.MethodPost, "/api/maintenances/"+m.ID+"/complete", env.op, gin.H{"keepHistory": true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(http.MethodGet, "/api/maintenances/"+m.ID, env.op, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(http.MethodGet, "/api/history?origin=CORRETIVA&area=bc", env.op, nil)
	require.Equal(t, http.StatusOK, w.Code)
	report := decode[historyReport](t, w)
	require.Equal(t, 1, report.Count)
	assert.Equal(t, "OM-1", report.Entries[0].OM)
	assert.Equal(t, 1, report.ByOrigin[model.OriginCorrective])

	w = env.do(http.MethodGet, "/api/history?origin=PREVENTIVA", env.op, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, decode[historyReport](t, w).Count)
}

func TestTables(t *testing.T) {
	env := newTestEnv(t)
	pdf := "data:application/pdf;base64," + base64.StdEncoding.EncodeToString([]byte("%PDF-1.4"))

	w := env.do(http.MethodPut, "/api/tables/orders", env.op, gin.H{"id": "om-1", "om": "4501"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(http.MethodPut, "/api/tables/orders", env.admin, gin.H{"om": "4501"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodGet, "/api/tables/orders", env.op, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = env.do(http.MethodPut, "/api/tables/orders", env.admin, gin.H{"id": "om-1", "om": "4501", "status": "PENDENTE", "pdf": gin.H{"data": pdf}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// The cached empty list is flushed by the write.
	w = env.do(http.MethodGet, "/api/tables/orders", env.op, nil)
	require.Equal(t, http.StatusOK, w.Code)
	orders := decode[[]model.WorkOrder](t, w)
	require.Len(t, orders, 1)
	assert.Equal(t, "4501", orders[0].Number)

	w = env.do(http.MethodGet, "/api/tables/orders/om-1/file", env.op, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, "%PDF-1.4", w.Body.String())

	w = env.do(http.MethodGet, "/api/tables/employees/x/file", env.op, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Any user may write shop-floor tables.
	w = env.do(http.MethodPut, "/api/tables/chat_messages", env.op, gin.H{"id": "c-1", "sender": "joao", "text": "ok"})
	require.Equal(t, http.StatusOK, w.Code)
	w = env.do(http.MethodDelete, "/api/tables/chat_messages/c-1", env.op, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = env.do(http.MethodDelete, "/api/tables/chat_messages/c-1", env.op, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(http.MethodGet, "/api/tables/users", env.admin, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = env.do(http.MethodGet, "/api/tables/nope", env.op, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDocuments(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/documents", env.op, gin.H{"type": "CHECKLIST"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	doc := decode[model.DocumentRecord](t, w)

	w = env.do(http.MethodPost, "/api/documents", env.op, gin.H{"type": "MEMO"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodPost, "/api/documents/"+doc.ID+"/restore", env.op, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(http.MethodPost, "/api/documents/"+doc.ID+"/trash", env.op, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodGet, "/api/documents?status=LIXEIRA", env.op, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]model.DocumentRecord](t, w), 1)

	w = env.do(http.MethodDelete, "/api/documents/trash", env.op, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"removed":1}`, w.Body.String())

	w = env.do(http.MethodGet, "/api/documents/"+doc.ID, env.op, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSubscriptionsAndVAPID(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPut, "/api/subscriptions", env.op, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"invalid request"}`, w.Body.String())

	w = env.do(http.MethodPut, "/api/subscriptions", env.op, gin.H{"endpoint": "https://push.example/abc", "p256dh": "k", "auth": "a"})
	assert.Equal(t, http.StatusCreated, w.Code)

	subs := env.repos.Subscriptions.List()
	require.Len(t, subs, 1)
	assert.Equal(t, "joao", subs[0].Username)

	w = env.do(http.MethodGet, "/api/subscriptions?endpoint=https://push.example/abc", env.op, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodDelete, "/api/subscriptions", env.op, gin.H{"endpoint": "https://push.example/abc"})
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, env.repos.Subscriptions.List())

	w = env.do(http.MethodGet, "/api/vapid_public_key", "", nil)
	assert.JSONEq(t, `{"public_key":"vapid-pub"}`, w.Body.String())

	w = env.do(http.MethodPost, "/api/sync", env.op, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestEventsStream(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/events?token="+env.op, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	reader := bufio.NewReader(resp.Body)
	readEvent := func() string {
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			if strings.HasPrefix(line, "event:") {
				return strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			}
		}
	}
	assert.Equal(t, "ready", readEvent())

	require.NoError(t, env.repos.Availability.Save(context.Background(), model.AvailabilityEntry{ID: "a-1", Tag: "BC-01"}))
	assert.Equal(t, "change", readEvent())
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Contains(t, line, `"key":"availability"`)
}
