package routes

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"membership-admin/internal/adapters/http/middleware"
	"membership-admin/internal/adapters/persistence/repositories"
	"membership-admin/internal/config"
	"membership-admin/internal/core/domain"
	"membership-admin/internal/core/services"
	"membership-admin/internal/pkg/metrics"
	"membership-admin/internal/pkg/upload"
	"membership-admin/internal/pkg/yearlock"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPassword = "correct-horse"

type envelope struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Error   string            `json:"error"`
	Fields  map[string]string `json:"fields"`
	Data    json.RawMessage   `json:"data"`
}

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	dir := t.TempDir()

	cfg := &config.Config{
		AppMode:  "dev",
		Timezone: time.UTC,
		Admin:    config.AdminConfig{Username: "admin", Password: testPassword},
		JWT:      config.JWTConfig{Secret: "test-secret", AccessTokenMins: 15},
		Upload:   config.UploadConfig{Dir: filepath.Join(dir, "uploads"), MaxBytes: 1 << 20},
		Membership: config.MembershipConfig{
			IDPrefix: "MEM",
			IDWidth:  4,
		},
	}

	store, err := repositories.NewJSONFileStore(filepath.Join(dir, "members.json"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	uploads, err := upload.NewStore(cfg.Upload.Dir, cfg.Upload.MaxBytes)
	require.NoError(t, err)

	clock := domain.FixedClock(time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC))
	m := metrics.New()
	members := services.NewMemberService(store, domain.NewIDAllocator("MEM", 4), yearlock.NewLocal(), clock, uploads, m)
	auth, err := services.NewAuthService(cfg)
	require.NoError(t, err)

	app := fiber.New(fiber.Config{ErrorHandler: middleware.CustomErrorHandler})
	middleware.Setup(app, cfg)
	Setup(app, &Dependencies{
		Config:    cfg,
		Store:     store,
		Members:   members,
		Auth:      auth,
		Dashboard: services.NewDashboardService(members, clock, time.Minute),
		Metrics:   m,
	})
	return app
}

func do(t *testing.T, app *fiber.App, req *http.Request, token string) (*http.Response, envelope) {
	t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()

	var env envelope
	if strings.HasPrefix(resp.Header.Get("Content-Type"), fiber.MIMEApplicationJSON) {
		require.NoError(t, json.Unmarshal(body, &env), string(body))
	}
	return resp, env
}

func jsonRequest(method, target string, body interface{}) *http.Request {
	var r io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, r)
	req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)
	return req
}

func login(t *testing.T, app *fiber.App) string {
	t.Helper()
	resp, env := do(t, app, jsonRequest(http.MethodPost, "/api/v1/auth/login", fiber.Map{
		"username": "admin",
		"password": testPassword,
	}), "")
	require.Equal(t, http.StatusOK, resp.StatusCode, env.Error)

	var auth services.AuthResponse
	require.NoError(t, json.Unmarshal(env.Data, &auth))
	require.NotEmpty(t, auth.AccessToken)
	return auth.AccessToken
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v), string(env.Data))
	return v
}

func TestHealthAndInfo(t *testing.T) {
	app := newTestApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	app := newTestApp(t)

	for _, path := range []string{"/api/v1/members", "/api/v1/dashboard", "/api/v1/auth/me"} {
		resp, env := do(t, app, httptest.NewRequest(http.MethodGet, path, nil), "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)
		assert.False(t, env.Success)
	}

	resp, _ := do(t, app, httptest.NewRequest(http.MethodGet, "/api/v1/members", nil), "not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLoginMeLogout(t *testing.T) {
	app := newTestApp(t)

	resp, env := do(t, app, jsonRequest(http.MethodPost, "/api/v1/auth/login", fiber.Map{
		"username": "admin",
		"password": "wrong-password",
	}), "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Invalid username or password", env.Error)

	token := login(t, app)

	resp, env = do(t, app, httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil), token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	me := decode[struct {
		Admin services.AdminResponse `json:"admin"`
	}](t, env)
	assert.Equal(t, "admin", me.Admin.Username)
	assert.Equal(t, domain.RoleAdmin, me.Admin.Role)

	resp, _ = do(t, app, httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil), token)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, env = do(t, app, httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil), token)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Session has been signed out", env.Error)
}

func TestMemberLifecycle(t *testing.T) {
	app := newTestApp(t)
	token := login(t, app)

	// JSON registration
	resp, env := do(t, app, jsonRequest(http.MethodPost, "/api/v1/members", fiber.Map{
		"organization_name": "Sunrise Traders",
		"first_name":        "Asha",
		"email":             "asha@sunrise.example",
		"primary_mobile":    "9800000001",
		"start_date":        "2024-06-01",
		"duration_months":   12,
	}), token)
	require.Equal(t, http.StatusCreated, resp.StatusCode, env.Error)
	first := decode[services.MemberDetail](t, env)
	assert.Equal(t, "MEM-2024-0001", first.Member.MembershipID)
	assert.Equal(t, domain.StatusActive, first.Member.Status)
	require.NotNil(t, first.Member.EndDate)
	assert.Equal(t, "2025-06-01", *first.Member.EndDate)

	// multipart registration with a logo, starting next month
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	require.NoError(t, w.WriteField("first_name", "Ravi"))
	require.NoError(t, w.WriteField("email", "ravi@example.com"))
	require.NoError(t, w.WriteField("start_date", "2024-07-01"))
	require.NoError(t, w.WriteField("duration_months", "6"))
	part, err := w.CreateFormFile("logo", "logo.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("\x89PNG fake image"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/members", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	resp, env = do(t, app, req, token)
	require.Equal(t, http.StatusCreated, resp.StatusCode, env.Error)
	second := decode[services.MemberDetail](t, env)
	assert.Equal(t, "MEM-2024-0002", second.Member.MembershipID)
	assert.Equal(t, domain.StatusInProgress, second.Member.Status)
	require.NotEmpty(t, second.Member.LogoURL)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, second.Member.LogoURL, nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// lookup is case-insensitive on the identifier
	resp, env = do(t, app, httptest.NewRequest(http.MethodGet, "/api/v1/members/mem-2024-0001", nil), token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[services.MemberDetail](t, env)
	assert.Equal(t, "Sunrise Traders", got.Member.OrganizationName)
	assert.Len(t, got.Memberships, 1)

	// search by status
	resp, env = do(t, app, httptest.NewRequest(http.MethodGet, "/api/v1/members?status=in_progress", nil), token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	page := decode[struct {
		Data []*services.MemberResponse `json:"data"`
		Meta struct {
			Total int64 `json:"total"`
		} `json:"meta"`
	}](t, env)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "MEM-2024-0002", page.Data[0].MembershipID)
	assert.EqualValues(t, 1, page.Meta.Total)

	// partial update
	resp, env = do(t, app, jsonRequest(http.MethodPut, "/api/v1/members/MEM-2024-0001", fiber.Map{
		"city": "Mumbai",
	}), token)
	require.Equal(t, http.StatusOK, resp.StatusCode, env.Error)
	updated := decode[services.MemberDetail](t, env)
	assert.Equal(t, "Mumbai", updated.Member.City)
	assert.Equal(t, "Sunrise Traders", updated.Member.OrganizationName)

	// renewal continues after the current interval
	resp, env = do(t, app, jsonRequest(http.MethodPost, "/api/v1/members/MEM-2024-0001/renew", fiber.Map{
		"duration_months": 12,
	}), token)
	require.Equal(t, http.StatusCreated, resp.StatusCode, env.Error)
	renewed := decode[services.MemberDetail](t, env)
	require.Len(t, renewed.Memberships, 2)
	assert.Equal(t, "2025-06-02", renewed.Memberships[0].StartDate)
	assert.Equal(t, domain.StatusInProgress, renewed.Memberships[0].Status)
	assert.Equal(t, domain.StatusActive, renewed.Member.Status)

	resp, env = do(t, app, httptest.NewRequest(http.MethodGet, "/api/v1/members/MEM-2024-0001/memberships", nil), token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]*services.MembershipResponse](t, env), 2)

	// dashboard
	resp, env = do(t, app, httptest.NewRequest(http.MethodGet, "/api/v1/dashboard", nil), token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	dash := decode[services.DashboardData](t, env)
	assert.EqualValues(t, 2, dash.TotalMembers)
	assert.EqualValues(t, 1, dash.Active)
	assert.EqualValues(t, 1, dash.InProgress)

	// metrics
	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `membership_ids_allocated_total{year="2024"} 2`)
	assert.Contains(t, string(raw), `membership_renewals_total 1`)
}

func TestMemberErrors(t *testing.T) {
	app := newTestApp(t)
	token := login(t, app)

	tests := []struct {
		name   string
		req    *http.Request
		status int
		field  string
	}{
		{
			name:   "unknown member",
			req:    httptest.NewRequest(http.MethodGet, "/api/v1/members/MEM-2024-9999", nil),
			status: http.StatusNotFound,
		},
		{
			name:   "renew unknown member",
			req:    jsonRequest(http.MethodPost, "/api/v1/members/MEM-2024-9999/renew", fiber.Map{"duration_months": 12}),
			status: http.StatusNotFound,
		},
		{
			name: "malformed start date",
			req: jsonRequest(http.MethodPost, "/api/v1/members", fiber.Map{
				"first_name": "Asha",
				"start_date": "15/06/2024",
			}),
			status: http.StatusBadRequest,
			field:  "start_date",
		},
		{
			name: "end before start",
			req: jsonRequest(http.MethodPost, "/api/v1/members", fiber.Map{
				"first_name": "Asha",
				"start_date": "2024-06-15",
				"end_date":   "2024-06-14",
			}),
			status: http.StatusBadRequest,
			field:  "end_date",
		},
		{
			name: "end date and duration together",
			req: jsonRequest(http.MethodPost, "/api/v1/members", fiber.Map{
				"first_name":      "Asha",
				"start_date":      "2024-06-15",
				"end_date":        "2025-06-14",
				"duration_months": 12,
			}),
			status: http.StatusBadRequest,
		},
		{
			name:   "unknown status filter",
			req:    httptest.NewRequest(http.MethodGet, "/api/v1/members?status=suspended", nil),
			status: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, env := do(t, app, tt.req, token)
			assert.Equal(t, tt.status, resp.StatusCode, env.Error)
			assert.False(t, env.Success)
			if tt.field != "" {
				assert.Contains(t, env.Fields, tt.field)
			}
		})
	}

	// nothing was stored by the rejected registrations
	resp, env := do(t, app, httptest.NewRequest(http.MethodGet, "/api/v1/members", nil), token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	page := decode[struct {
		Data []*services.MemberResponse `json:"data"`
	}](t, env)
	assert.Empty(t, page.Data)
}

func TestSearchHugePage(t *testing.T) {
	app := newTestApp(t)
	token := login(t, app)

	resp, env := do(t, app, jsonRequest(http.MethodPost, "/api/v1/members", fiber.Map{
		"first_name": "Asha",
		"start_date": "2024-06-01",
	}), token)
	require.Equal(t, http.StatusCreated, resp.StatusCode, env.Error)

	resp, env = do(t, app, httptest.NewRequest(http.MethodGet, "/api/v1/members?page=500000000000000001", nil), token)
	require.Equal(t, http.StatusOK, resp.StatusCode, env.Error)
	page := decode[struct {
		Data []*services.MemberResponse `json:"data"`
		Meta struct {
			Total int64 `json:"total"`
		} `json:"meta"`
	}](t, env)
	assert.Empty(t, page.Data)
	assert.EqualValues(t, 1, page.Meta.Total)
}
