package router

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/amirphl/sms-receiver/app/dto"
	"github.com/amirphl/sms-receiver/app/handlers"
	"github.com/amirphl/sms-receiver/app/middleware"
	"github.com/amirphl/sms-receiver/app/services"
	businessflow "github.com/amirphl/sms-receiver/business_flow"
	"github.com/amirphl/sms-receiver/config"
	"github.com/amirphl/sms-receiver/models"
	"github.com/amirphl/sms-receiver/repository"
	"github.com/amirphl/sms-receiver/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const testAdminKey = "test-admin-key"

type testServer struct {
	app *fiber.App
	mr  *miniredis.Miniredis
	rdb *redis.Client
}

func testConfig() *config.ProductionConfig {
	return &config.ProductionConfig{
		Server: config.ServerConfig{
			ReadTimeout:    5 * time.Second,
			WriteTimeout:   5 * time.Second,
			IdleTimeout:    5 * time.Second,
			RequestTimeout: 5 * time.Second,
			AdminTimeout:   5 * time.Second,
			BodyLimit:      1024 * 1024,
		},
		Redis: config.RedisConfig{KeyPrefix: "routertest:"},
		Security: config.SecurityConfig{
			AllowedOrigins:    []string{"*"},
			AdminAPIKeyHeader: "X-API-Key",
			AdminAPIKeys:      []string{testAdminKey},
		},
		SMS:        config.SMSConfig{Carrier: services.CarrierLog, Retention: utils.SMSRetention},
		Metrics:    config.MetricsConfig{Enabled: true, Path: "/metrics"},
		Deployment: config.DeploymentConfig{Version: "test"},
	}
}

// newTestServer wires the full application against miniredis. withStore=false
// builds the app as if redis were disabled.
func newTestServer(t *testing.T, withStore bool, mutate ...func(*config.ProductionConfig)) *testServer {
	t.Helper()
	cfg := testConfig()
	for _, m := range mutate {
		m(cfg)
	}
	log := zaptest.NewLogger(t)

	s := &testServer{}
	var store redis.Cmdable
	var pinger handlers.Pinger
	if withStore {
		s.mr = miniredis.RunT(t)
		s.rdb = redis.NewClient(&redis.Options{Addr: s.mr.Addr()})
		t.Cleanup(func() { _ = s.rdb.Close() })
		store = s.rdb
	}

	smsRepo := repository.NewSMSRepository(store, cfg.Redis.KeyPrefix, cfg.SMS.Retention)
	indexRepo := repository.NewSMSIndexRepository(store, cfg.Redis.KeyPrefix, cfg.SMS.Retention)
	if withStore {
		pinger = smsRepo
	}

	carrier, err := services.NewSMSCarrier(cfg.SMS, log)
	require.NoError(t, err)

	ingestFlow := businessflow.NewSMSIngestFlow(smsRepo, indexRepo, carrier, log)
	queryFlow := businessflow.NewSMSQueryFlow(smsRepo, indexRepo, log)
	repairFlow := businessflow.NewSMSRepairFlow(smsRepo, indexRepo, log)

	r := NewFiberRouter(
		cfg,
		log,
		handlers.NewSMSHandler(ingestFlow, queryFlow, log, cfg.Server.RequestTimeout),
		handlers.NewHealthHandler(pinger, cfg.Deployment.Version, log),
		handlers.NewDashboardHandler(queryFlow, log, cfg.Server.RequestTimeout),
		handlers.NewAdminHandler(repairFlow, log, cfg.Server.AdminTimeout),
		middleware.NewAPIKeyMiddleware(cfg.Security.AdminAPIKeyHeader, cfg.Security.AdminAPIKeys, log),
	)
	r.SetupRoutes()
	s.app = r.GetApp()
	return s
}

// storeDown makes every subsequent redis command fail
func (s *testServer) storeDown(t *testing.T) {
	t.Helper()
	require.NoError(t, s.rdb.Ping(context.Background()).Err())
	s.mr.SetError("ERR store down")
}

func (s *testServer) do(t *testing.T, req *http.Request) (*http.Response, []byte) {
	t.Helper()
	resp, err := s.app.Test(req, fiber.TestConfig{Timeout: 5 * time.Second})
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()
	return resp, body
}

func (s *testServer) post(t *testing.T, path, contentType, body string) (*http.Response, []byte) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set(fiber.HeaderContentType, contentType)
	}
	return s.do(t, req)
}

func (s *testServer) get(t *testing.T, path string) (*http.Response, []byte) {
	t.Helper()
	return s.do(t, httptest.NewRequest(http.MethodGet, path, nil))
}

func decode[T any](t *testing.T, body []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(body, &v), string(body))
	return v
}

func TestRoutes_ReceiveThenGet(t *testing.T) {
	s := newTestServer(t, true)

	resp, body := s.post(t, "/sms/receive", fiber.MIMEApplicationJSON, `{"originator":"+15551234567","message":"Hello"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ingested := decode[dto.IngestSMSResponse](t, body)
	assert.Equal(t, dto.StatusSuccess, ingested.Status)
	assert.Equal(t, "SMS received successfully", ingested.Message)
	require.NotEmpty(t, ingested.SMSID)

	resp, body = s.get(t, "/sms/"+ingested.SMSID)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[dto.GetSMSResponse](t, body)
	assert.Equal(t, dto.StatusSuccess, got.Status)
	assert.Equal(t, ingested.SMSID, got.SMS.ID)
	assert.Equal(t, models.SMSTypeInbound, got.SMS.Type)
	assert.Equal(t, "+15551234567", got.SMS.Phone)
	assert.Equal(t, "Hello", got.SMS.Message)
	assert.Equal(t, models.SMSStatusPending, got.SMS.Status)
	assert.False(t, got.SMS.Processed)
	assert.NotEmpty(t, resp.Header.Get(fiber.HeaderXRequestID))
}

func TestRoutes_SendForm(t *testing.T) {
	s := newTestServer(t, true)

	resp, body := s.post(t, "/sms/send", fiber.MIMEApplicationForm, "to=%2B15557654321&text=hi+there")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ingested := decode[dto.IngestSMSResponse](t, body)
	assert.Equal(t, "SMS sent successfully", ingested.Message)

	resp, body = s.get(t, "/sms/list?type=outbound")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decode[dto.ListSMSResponse](t, body)
	require.Equal(t, 1, list.Count)
	assert.Equal(t, ingested.SMSID, list.SMS[0].ID)
	assert.Equal(t, "+15557654321", list.SMS[0].Phone)
	assert.Equal(t, "hi there", list.SMS[0].Message)
	assert.Equal(t, models.SMSStatusSent, list.SMS[0].Status)
}

func TestRoutes_ReceiveMultipart(t *testing.T) {
	s := newTestServer(t, true)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("originator", "+15551234567"))
	require.NoError(t, w.WriteField("message", "C++ at 50%"))
	require.NoError(t, w.Close())

	resp, body := s.post(t, "/sms/receive", w.FormDataContentType(), buf.String())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ingested := decode[dto.IngestSMSResponse](t, body)
	require.NotEmpty(t, ingested.SMSID)

	_, body = s.get(t, "/sms/"+ingested.SMSID)
	got := decode[dto.GetSMSResponse](t, body)
	assert.Equal(t, "+15551234567", got.SMS.Phone)
	assert.Equal(t, "C++ at 50%", got.SMS.Message)
	assert.Equal(t, map[string]string{"originator": "+15551234567", "message": "C++ at 50%"}, got.SMS.RawData)
}

func TestRoutes_ReceiveJSONKeepsMessageVerbatim(t *testing.T) {
	s := newTestServer(t, true)

	resp, body := s.post(t, "/sms/receive", fiber.MIMEApplicationJSON, `{"originator":"+1","message":"x+y@mail.com"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ingested := decode[dto.IngestSMSResponse](t, body)

	_, body = s.get(t, "/sms/"+ingested.SMSID)
	assert.Equal(t, "x+y@mail.com", decode[dto.GetSMSResponse](t, body).SMS.Message)
}

func TestRoutes_ReceiveUnparseableJSON(t *testing.T) {
	s := newTestServer(t, true)

	resp, body := s.post(t, "/sms/receive", fiber.MIMEApplicationJSON, `{not json`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ingested := decode[dto.IngestSMSResponse](t, body)
	require.NotEmpty(t, ingested.SMSID)

	_, body = s.get(t, "/sms/"+ingested.SMSID)
	got := decode[dto.GetSMSResponse](t, body)
	assert.Equal(t, models.UnknownPhone, got.SMS.Phone)
	assert.Equal(t, `{not json`, got.SMS.Message)
}

func TestRoutes_Stats(t *testing.T) {
	s := newTestServer(t, true)
	for _, phone := range []string{"+1", "+2", "+3"} {
		resp, _ := s.post(t, "/sms/receive", fiber.MIMEApplicationJSON, `{"originator":"`+phone+`","message":"x"}`)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp, body := s.get(t, "/sms/stats")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	stats := decode[dto.SMSStatsResponse](t, body)
	assert.Equal(t, models.SMSStats{Total: 3, Unprocessed: 3, Today: 3, Inbound: 3}, stats.Stats)
}

func TestRoutes_GetNotFound(t *testing.T) {
	s := newTestServer(t, true)

	resp, body := s.get(t, "/sms/does-not-exist")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	res := decode[dto.APIResponse](t, body)
	assert.Equal(t, dto.StatusError, res.Status)
	assert.Equal(t, "SMS not found", res.Error)
}

func TestRoutes_ListValidation(t *testing.T) {
	s := newTestServer(t, true)

	for _, query := range []string{
		"limit=5000",
		"limit=-1",
		"limit=abc",
		"offset=-3",
		"date=01-02-2025",
		"type=sideways",
	} {
		t.Run(query, func(t *testing.T) {
			resp, body := s.get(t, "/sms/list?"+query)
			require.Equal(t, http.StatusBadRequest, resp.StatusCode, string(body))
			assert.Equal(t, dto.StatusError, decode[dto.APIResponse](t, body).Status)
		})
	}
}

func TestRoutes_StoreDown(t *testing.T) {
	s := newTestServer(t, true)
	s.storeDown(t)

	for _, path := range []string{"/sms/list", "/sms/list?phone=%2B1", "/sms/stats", "/sms/some-id", "/sms/export"} {
		t.Run(path, func(t *testing.T) {
			resp, body := s.get(t, path)
			require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode, string(body))
			assert.Equal(t, "STORAGE_UNAVAILABLE", decode[dto.APIResponse](t, body).Code)
		})
	}

	// ingestion still acknowledges the gateway
	resp, body := s.post(t, "/sms/receive", fiber.MIMEApplicationJSON, `{"originator":"+1","message":"lost"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ingested := decode[dto.IngestSMSResponse](t, body)
	assert.Equal(t, dto.StatusSuccess, ingested.Status)
	assert.Empty(t, ingested.SMSID)

	_, body = s.get(t, "/health")
	health := decode[dto.HealthResponse](t, body)
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, handlers.StoreUnhealthy, health.Redis)
}

func TestRoutes_StoreDisabled(t *testing.T) {
	s := newTestServer(t, false)

	resp, body := s.get(t, "/health")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	health := decode[dto.HealthResponse](t, body)
	assert.Equal(t, handlers.StoreUnavailable, health.Redis)
	assert.Equal(t, "test", health.Version)

	resp, _ = s.get(t, "/sms/list")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp, body = s.post(t, "/sms/receive", "", "originator=%2B1&message=hi")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decode[dto.IngestSMSResponse](t, body).SMSID)
}

func TestRoutes_HealthHealthy(t *testing.T) {
	s := newTestServer(t, true)

	resp, body := s.get(t, "/health")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	health := decode[dto.HealthResponse](t, body)
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, handlers.StoreHealthy, health.Redis)
	_, err := utils.ParseTimestamp(health.Timestamp)
	assert.NoError(t, err)
}

func TestRoutes_AdminAuth(t *testing.T) {
	adminRequest := func(method, path, key string) *http.Request {
		req := httptest.NewRequest(method, path, nil)
		if key != "" {
			req.Header.Set("X-API-Key", key)
		}
		return req
	}

	t.Run("missing and invalid key", func(t *testing.T) {
		s := newTestServer(t, true)
		resp, body := s.do(t, adminRequest(http.MethodPost, "/sms/admin/repair", ""))
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "MISSING_API_KEY", decode[dto.APIResponse](t, body).Code)

		resp, body = s.do(t, adminRequest(http.MethodDelete, "/sms/admin/clear", "wrong"))
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "INVALID_API_KEY", decode[dto.APIResponse](t, body).Code)
	})

	t.Run("no keys configured", func(t *testing.T) {
		s := newTestServer(t, true, func(cfg *config.ProductionConfig) {
			cfg.Security.AdminAPIKeys = nil
		})
		resp, body := s.do(t, adminRequest(http.MethodPost, "/sms/admin/repair", testAdminKey))
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		assert.Equal(t, "ADMIN_API_DISABLED", decode[dto.APIResponse](t, body).Code)
	})

	t.Run("repair and clear", func(t *testing.T) {
		s := newTestServer(t, true)
		for range 2 {
			resp, _ := s.post(t, "/sms/receive", fiber.MIMEApplicationJSON, `{"originator":"+1","message":"x"}`)
			require.Equal(t, http.StatusOK, resp.StatusCode)
		}

		resp, body := s.do(t, adminRequest(http.MethodPost, "/sms/admin/repair", testAdminKey))
		require.Equal(t, http.StatusOK, resp.StatusCode)
		repaired := decode[dto.RepairSMSResponse](t, body)
		assert.Equal(t, models.RepairResult{Scanned: 2, ChronologicalTotal: 2}, *repaired.Result)

		resp, body = s.do(t, adminRequest(http.MethodDelete, "/sms/admin/clear", testAdminKey))
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Positive(t, decode[dto.ClearSMSResponse](t, body).Deleted)

		_, body = s.get(t, "/sms/stats")
		assert.Equal(t, models.SMSStats{}, decode[dto.SMSStatsResponse](t, body).Stats)
	})
}

func TestRoutes_Dashboard(t *testing.T) {
	s := newTestServer(t, true)
	resp, _ := s.post(t, "/sms/receive", fiber.MIMEApplicationJSON, `{"originator":"+15550001","message":"dashboard line"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := s.get(t, "/")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get(fiber.HeaderContentType), "text/html")
	assert.Contains(t, string(body), "dashboard line")
	assert.NotContains(t, string(body), "Storage is unavailable")

	s.storeDown(t)
	resp, body = s.get(t, "/")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "Storage is unavailable")
}

func TestRoutes_Export(t *testing.T) {
	s := newTestServer(t, true)
	for _, phone := range []string{"+1", "+2"} {
		resp, _ := s.post(t, "/sms/receive", fiber.MIMEApplicationJSON, `{"originator":"`+phone+`","message":"x"}`)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp, body := s.get(t, "/sms/export?phone=%2B2")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get(fiber.HeaderContentDisposition), "attachment")
	assert.Contains(t, resp.Header.Get(fiber.HeaderContentDisposition), ".csv")
	assert.Equal(t, "1", resp.Header.Get("X-Total-Count"))
	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	assert.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "id,type,phone,message"))

	resp, _ = s.get(t, "/sms/export?format=pdf")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRoutes_NotFoundAndMetrics(t *testing.T) {
	s := newTestServer(t, true)

	resp, body := s.get(t, "/nope")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", decode[dto.APIResponse](t, body).Code)

	resp, _ = s.post(t, "/sms/receive", fiber.MIMEApplicationJSON, `{"originator":"+1","message":"x"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = s.get(t, "/metrics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "http_requests_total")
	assert.Contains(t, string(body), "sms_ingested_total")
}
