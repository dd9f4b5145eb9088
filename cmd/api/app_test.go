package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcmysql "github.com/testcontainers/testcontainers-go/modules/mysql"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/xiebiao/ebookstore/internal/domain/payment"
	"github.com/xiebiao/ebookstore/internal/infrastructure/config"
	"github.com/xiebiao/ebookstore/internal/infrastructure/persistence/mysql"
	"github.com/xiebiao/ebookstore/internal/interface/http/middleware"
)

const e2eWebhookSecret = "whsec_e2e"

// fakePaygate 只实现下单需要的初始化接口
func fakePaygate(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/transaction/initialize", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Reference string `json:"reference"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status":  true,
			"message": "Authorization URL created",
			"data": map[string]string{
				"authorization_url": "https://checkout.paygate.example/" + req.Reference,
				"access_code":       "ac_" + req.Reference,
				"reference":         req.Reference,
			},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func e2eConfig(t *testing.T, paygateURL string) *config.Config {
	t.Helper()
	ctx := context.Background()

	mysqlC, err := tcmysql.Run(ctx, "mysql:8.0",
		tcmysql.WithDatabase("ebookstore"),
		tcmysql.WithUsername("test"),
		tcmysql.WithPassword("test"),
	)
	require.NoError(t, err)
	testcontainers.CleanupContainer(t, mysqlC)
	mysqlHost, err := mysqlC.Host(ctx)
	require.NoError(t, err)
	mysqlPort, err := mysqlC.MappedPort(ctx, "3306/tcp")
	require.NoError(t, err)

	redisC, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	testcontainers.CleanupContainer(t, redisC)
	redisHost, err := redisC.Host(ctx)
	require.NoError(t, err)
	redisPort, err := redisC.MappedPort(ctx, "6379/tcp")
	require.NoError(t, err)

	return &config.Config{
		Server: config.ServerConfig{Mode: "test"},
		Database: config.DatabaseConfig{
			Host: mysqlHost, Port: mysqlPort.Int(), User: "test", Password: "test", DBName: "ebookstore",
			Charset: "utf8mb4", ParseTime: true, Loc: "Local",
			MaxOpenConns: 10, MaxIdleConns: 2, ConnMaxLifetime: time.Hour, AutoMigrate: true,
		},
		Redis: config.RedisConfig{
			Host: redisHost, Port: redisPort.Int(), PoolSize: 5,
			DialTimeout: 5 * time.Second, ReadTimeout: 3 * time.Second, WriteTimeout: 3 * time.Second,
		},
		JWT: config.JWTConfig{Secret: "e2e-secret", AccessTokenExpire: time.Hour, RefreshTokenExpire: 24 * time.Hour},
		Payment: config.PaymentConfig{
			BaseURL: paygateURL, SecretKey: "sk_test", WebhookSecret: e2eWebhookSecret, Currency: "NGN",
			Timeout: 2 * time.Second, MaxRetries: 1, WebhookAllowList: []string{"127.0.0.1", "::1"},
			BreakerFailures: 5, BreakerTimeout: time.Second, CheckoutTimeout: 10 * time.Second,
		},
		Payout: config.PayoutConfig{WalletID: "e2e-wallet", LockTTL: time.Minute, MaxAttempts: 1},
		Storage: config.StorageConfig{
			Region: "us-east-1", Bucket: "ebookstore-assets", Endpoint: "http://127.0.0.1:9000",
			AccessKey: "minioadmin", SecretKey: "minioadmin", PathStyle: true, URLExpiry: 5 * time.Minute,
		},
		Cart: config.CartConfig{GuestTTL: time.Hour, MergeLockTTL: 5 * time.Second},
	}
}

type apiClient struct {
	t       *testing.T
	baseURL string
}

type apiResponse struct {
	status  int
	headers http.Header
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (c apiClient) call(method, path string, body []byte, headers map[string]string) apiResponse {
	c.t.Helper()
	req, err := http.NewRequest(method, c.baseURL+path, bytes.NewReader(body))
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	out := apiResponse{status: resp.StatusCode, headers: resp.Header}
	require.NoError(c.t, json.NewDecoder(resp.Body).Decode(&out), "%s %s", method, path)
	return out
}

func (c apiClient) json(method, path string, body interface{}, headers map[string]string) apiResponse {
	c.t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(c.t, err)
	return c.call(method, path, raw, headers)
}

func decode[T any](t *testing.T, r apiResponse) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(r.Data, &v), string(r.Data))
	return v
}

// TestCheckoutToDownload 游客加购 → 登录合并 → 下单 → 支付回调 → 下载
func TestCheckoutToDownload(t *testing.T) {
	if testing.Short() {
		t.Skip("-short模式跳过端到端测试")
	}

	cfg := e2eConfig(t, fakePaygate(t).URL)
	engine, cleanup, err := newApp(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(cleanup)

	db, err := mysql.Shared(cfg, zerolog.Nop())
	require.NoError(t, err)
	book := mysql.BookModel{Title: "Go语言圣经", Author: "Donovan", Price: 4500, AssetKey: "books/gopl.epub"}
	require.NoError(t, db.Create(&book).Error)

	srv := httptest.NewServer(engine)
	t.Cleanup(srv.Close)
	api := apiClient{t: t, baseURL: srv.URL + "/api/v1"}

	// 游客加购
	guest := api.json(http.MethodPost, "/guest-cart", map[string]interface{}{
		"items": []map[string]interface{}{{"book_id": book.ID, "quantity": 2}},
	}, nil)
	require.Equal(t, http.StatusOK, guest.status, guest.Message)
	guestID := guest.headers.Get(middleware.HeaderGuestID)
	require.NotEmpty(t, guestID)

	// 注册并携带guest_id登录
	reg := api.json(http.MethodPost, "/users/register", map[string]string{
		"email": "e2e@example.com", "password": "secret123", "nickname": "端到端",
	}, nil)
	require.Equal(t, http.StatusCreated, reg.status, reg.Message)

	login := api.json(http.MethodPost, "/users/login", map[string]string{
		"email": "e2e@example.com", "password": "secret123", "guest_id": guestID,
	}, nil)
	require.Equal(t, http.StatusOK, login.status, login.Message)
	session := decode[struct {
		AccessToken string `json:"access_token"`
		CartMerge   string `json:"cart_merge"`
	}](t, login)
	assert.Equal(t, "merged", session.CartMerge)
	auth := map[string]string{"Authorization": "Bearer " + session.AccessToken}

	userCart := decode[struct {
		Total int64 `json:"total"`
	}](t, api.call(http.MethodGet, "/cart", nil, auth))
	assert.Equal(t, int64(9000), userCart.Total, "游客购物车应并入用户购物车")

	// 下单
	created := api.json(http.MethodPost, "/orders", map[string]interface{}{
		"items": []map[string]interface{}{{"book_id": book.ID, "quantity": 2}},
	}, auth)
	require.Equal(t, http.StatusCreated, created.status, created.Message)
	checkout := decode[struct {
		Order struct {
			ID       uint   `json:"id"`
			CustomID string `json:"custom_id"`
			Total    int64  `json:"total_amount"`
			Status   string `json:"status"`
		} `json:"order"`
		Payment struct {
			AuthorizationURL string `json:"authorization_url"`
		} `json:"payment"`
	}](t, created)
	assert.Regexp(t, `^ORD-\d{6}-\d{4}$`, checkout.Order.CustomID)
	assert.Equal(t, "pending", checkout.Order.Status)
	assert.True(t, strings.HasSuffix(checkout.Payment.AuthorizationURL, checkout.Order.CustomID))

	download := map[string]uint{"order_id": checkout.Order.ID, "book_id": book.ID}
	early := api.json(http.MethodPost, "/download", download, auth)
	assert.Equal(t, http.StatusForbidden, early.status, "未支付订单不能下载")

	// 支付回调
	body := []byte(fmt.Sprintf(`{"id":"evt_1","event":"charge.success","data":{"id":1,"reference":%q,"status":"success","amount":%d}}`,
		checkout.Order.CustomID, checkout.Order.Total))
	signature := map[string]string{"X-Paygate-Signature": payment.Sign([]byte(e2eWebhookSecret), body)}
	for i, want := range []string{"processed", "duplicate"} {
		hook := api.call(http.MethodPost, "/payments/webhook", body, signature)
		require.Equal(t, http.StatusOK, hook.status, hook.Message)
		result := decode[struct {
			Result string `json:"result"`
		}](t, hook)
		assert.Equal(t, want, result.Result, "第%d次投递", i+1)
	}

	byRef := decode[struct {
		Status string `json:"status"`
	}](t, api.call(http.MethodGet, "/orders/by-ref/"+checkout.Order.CustomID, nil, auth))
	assert.Equal(t, "completed", byRef.Status)

	userCart = decode[struct {
		Total int64 `json:"total"`
	}](t, api.call(http.MethodGet, "/cart", nil, auth))
	assert.Zero(t, userCart.Total, "支付完成后清空购物车")

	// 下载
	granted := api.json(http.MethodPost, "/download", download, auth)
	require.Equal(t, http.StatusOK, granted.status, granted.Message)
	link := decode[struct {
		URL       string `json:"url"`
		ExpiresIn int64  `json:"expires_in"`
	}](t, granted)
	assert.Contains(t, link.URL, "/ebookstore-assets/books/gopl.epub")
	assert.Contains(t, link.URL, "X-Amz-Signature=")
	assert.Equal(t, int64(300), link.ExpiresIn)
}
