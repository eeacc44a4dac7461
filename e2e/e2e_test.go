//go:build e2e
// +build e2e

package e2e_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/botio91514/gym-backend/internal/app"
	"github.com/botio91514/gym-backend/internal/config"
	"github.com/botio91514/gym-backend/internal/db"
	"github.com/botio91514/gym-backend/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	adminEmail    = "admin@gym.com"
	adminPassword = "e2e-admin-pass"
)

type testEnv struct {
	server *httptest.Server
	app    *app.App
	db     *gorm.DB
	client *http.Client
	token  string
}

func setupE2E(t *testing.T) *testEnv {
	t.Helper()

	dsn := os.Getenv("E2E_DB_DSN")
	if dsn == "" {
		t.Skip("E2E_DB_DSN not set; skipping e2e tests")
	}

	log := logger.Nop()
	hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.MinCost)
	require.NoError(t, err)

	cfg := config.Config{
		HTTPPort: "0",
		Env:      "test",
		DB:       config.DBConfig{Driver: config.DBDriverPostgres, DSN: dsn},
		Mail:     config.MailConfig{Driver: config.MailDriverLog},
		Receipts: config.ReceiptsConfig{Dir: t.TempDir(), URLPrefix: "/receipts/"},
		Scheduler: config.SchedulerConfig{
			Timezone:       "UTC",
			ReminderWindow: 7 * 24 * time.Hour,
		},
		Notifications: config.NotificationsConfig{MaxAttempts: 1, SendTimeout: 5 * time.Second},
		Auth: config.AuthConfig{
			JWTSecret:         "e2e-secret",
			Issuer:            "gym-e2e",
			TokenTTL:          time.Hour,
			AdminEmail:        adminEmail,
			AdminPasswordHash: string(hash),
		},
		RateLimit: config.RateLimitConfig{RegistrationsPerMinute: 600, Burst: 100},
	}

	require.NoError(t, db.Migrate(cfg.DB.MigrateURL(), db.DirectionUp, log), "migrate")

	dbConn, err := db.NewPostgres(cfg.DB, log)
	require.NoError(t, err, "db connect")
	require.NoError(t, cleanDB(dbConn), "clean db")

	application, err := app.NewWithConfig(context.Background(), cfg, log)
	require.NoError(t, err, "app init")

	env := &testEnv{
		server: httptest.NewServer(application.HTTPServer().Handler),
		app:    application,
		db:     dbConn,
		client: &http.Client{Timeout: 10 * time.Second},
	}
	t.Cleanup(env.Close)

	env.token = env.login(t)
	return env
}

func (e *testEnv) Close() {
	e.server.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = e.app.Close(ctx)
	if sqlDB, err := e.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func cleanDB(dbConn *gorm.DB) error {
	return dbConn.WithContext(context.Background()).Exec(
		"TRUNCATE TABLE members, scheduler_runs",
	).Error
}

func (e *testEnv) request(t *testing.T, method, path, token string, payload any) (*http.Response, []byte) {
	t.Helper()

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, e.server.URL+path, body)
	require.NoError(t, err)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, respBody
}

func (e *testEnv) login(t *testing.T) string {
	t.Helper()
	resp, body := e.request(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    adminEmail,
		"password": adminPassword,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var out struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	return out.Token
}

type memberResponse struct {
	ID                 string    `json:"id"`
	Email              string    `json:"email"`
	Plan               string    `json:"plan"`
	StartDate          time.Time `json:"startDate"`
	EndDate            time.Time `json:"endDate"`
	PaymentStatus      string    `json:"paymentStatus"`
	SubscriptionStatus string    `json:"subscriptionStatus"`
	ReceiptURL         string    `json:"receiptUrl"`
}

type approvalResponse struct {
	Member           memberResponse `json:"member"`
	AlreadyConfirmed bool           `json:"alreadyConfirmed"`
	ReceiptURL       string         `json:"receiptUrl"`
	Notification     string         `json:"notification"`
}

type errorEnvelope struct {
	Error struct {
		Code  string `json:"code"`
		Field string `json:"field"`
	} `json:"error"`
}

func registration(email, phone string) map[string]any {
	return map[string]any{
		"name":          "Asha Rao",
		"email":         email,
		"phone":         phone,
		"dob":           "1995-04-12",
		"plan":          "1month",
		"startDate":     time.Now().UTC().Format("2006-01-02"),
		"paymentMethod": "online",
	}
}

func TestE2EHealth(t *testing.T) {
	env := setupE2E(t)

	resp, body := env.request(t, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.JSONEq(t, `{"status":"ok","store":"ok"}`, string(body))
}

func TestE2ERegisterApproveAndReceipt(t *testing.T) {
	env := setupE2E(t)

	resp, body := env.request(t, http.MethodPost, "/api/members/register", "", registration("Asha@Example.com", "9876543210"))
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var registered memberResponse
	require.NoError(t, json.Unmarshal(body, &registered))
	assert.Equal(t, "asha@example.com", registered.Email)
	assert.Equal(t, "pending", registered.PaymentStatus)
	assert.True(t, registered.StartDate.AddDate(0, 1, 0).Equal(registered.EndDate), "end date %s", registered.EndDate)

	resp, body = env.request(t, http.MethodPost, "/api/members/register", "", registration("asha@example.com", "9000000000"))
	require.Equal(t, http.StatusConflict, resp.StatusCode, string(body))
	var conflict errorEnvelope
	require.NoError(t, json.Unmarshal(body, &conflict))
	assert.Equal(t, "email", conflict.Error.Field)

	resp, _ = env.request(t, http.MethodPatch, "/api/members/approve/"+registered.ID, "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body = env.request(t, http.MethodPatch, "/api/members/approve/"+registered.ID, env.token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var approved approvalResponse
	require.NoError(t, json.Unmarshal(body, &approved))
	assert.False(t, approved.AlreadyConfirmed)
	assert.Equal(t, "confirmed", approved.Member.PaymentStatus)
	assert.Equal(t, "active", approved.Member.SubscriptionStatus)
	assert.Equal(t, "sent", approved.Notification)
	require.NotEmpty(t, approved.ReceiptURL)

	resp, body = env.request(t, http.MethodGet, approved.ReceiptURL, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, bytes.HasPrefix(body, []byte("%PDF")))

	resp, body = env.request(t, http.MethodPatch, "/api/members/approve/"+registered.ID, env.token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var again approvalResponse
	require.NoError(t, json.Unmarshal(body, &again))
	assert.True(t, again.AlreadyConfirmed)
	assert.Equal(t, "none", again.Notification)

	resp, body = env.request(t, http.MethodGet, "/api/members?payment_status=confirmed", env.token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var list struct {
		Items []memberResponse `json:"items"`
		Total int64            `json:"total"`
	}
	require.NoError(t, json.Unmarshal(body, &list))
	assert.EqualValues(t, 1, list.Total)
}

func TestE2ESchedulerExpiresLapsedMember(t *testing.T) {
	env := setupE2E(t)

	payload := registration("ravi@example.com", "9876500000")
	payload["startDate"] = time.Now().UTC().AddDate(0, -2, 0).Format("2006-01-02")
	resp, body := env.request(t, http.MethodPost, "/api/members/register", "", payload)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var registered memberResponse
	require.NoError(t, json.Unmarshal(body, &registered))

	resp, body = env.request(t, http.MethodPatch, "/api/members/approve/"+registered.ID, env.token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var approved approvalResponse
	require.NoError(t, json.Unmarshal(body, &approved))
	assert.Equal(t, "expired", approved.Member.SubscriptionStatus)

	resp, body = env.request(t, http.MethodPost, "/api/admin/scheduler/run", env.token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var count int64
	require.NoError(t, env.db.Table("scheduler_runs").Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestE2EDeleteMember(t *testing.T) {
	env := setupE2E(t)

	resp, body := env.request(t, http.MethodPost, "/api/members/register", "", registration("gone@example.com", "9111111111"))
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var registered memberResponse
	require.NoError(t, json.Unmarshal(body, &registered))

	resp, _ = env.request(t, http.MethodDelete, "/api/members/"+registered.ID, env.token, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = env.request(t, http.MethodGet, "/api/members/"+registered.ID, env.token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, string(body))

	resp, body = env.request(t, http.MethodGet, "/api/members/check-email?email=gone@example.com", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.JSONEq(t, `{"email":"gone@example.com","available":true}`, string(body))
}
