package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/inkstone/internal/constants"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func TestRateLimitMiddlewarePassthroughWithoutRedis(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(RateLimitMiddleware(nil, RateLimitRule{WindowSeconds: 60, MaxRequests: 1}, KeyByIP))
	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})

	// Redis 未启用时不做限流，连续请求全部放行
	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, w.Code)
		}
	}
}

func TestRateLimitMiddlewarePassthroughWithZeroRule(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(RateLimitMiddleware(nil, RateLimitRule{}, KeyByIP))
	r.GET("/ping", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestRateLimitMiddlewareDeniesOverLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	r := gin.New()
	r.Use(RateLimitMiddleware(client, RateLimitRule{
		Prefix:        "t:rate:api",
		WindowSeconds: 60,
		MaxRequests:   30,
	}, KeyByIP))
	r.GET("/ping", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	for i := 0; i < 30; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, w.Code)
		}
	}

	// 窗口内第 31 个请求被拒
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 for request 31, got %d", w.Code)
	}
	var body struct {
		StatusCode int    `json:"status_code"`
		Msg        string `json:"msg"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body failed: %v", err)
	}
	if body.Msg != constants.DenyReasonAPILimit {
		t.Fatalf("expected APILimit reason, got %q", body.Msg)
	}

	// 窗口过期后恢复放行
	mr.FastForward(61 * time.Second)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 after window reset, got %d", w.Code)
	}
}

func TestKeyByIPAndJSONField(t *testing.T) {
	gin.SetMode(gin.TestMode)

	keyFunc := KeyByIPAndJSONField("email")

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodPost, "/auth/login",
		strings.NewReader(`{"email":"User@Example.com","password":"x"}`))
	c.Request.RemoteAddr = "1.2.3.4:5678"

	key := keyFunc(c)
	if key != "user@example.com|1.2.3.4" {
		t.Fatalf("unexpected key: %s", key)
	}

	// 限流读取 body 后处理器仍能正常绑定 JSON
	var payload struct {
		Email string `json:"email"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		t.Fatalf("body must be re-readable after key extraction: %v", err)
	}
	if payload.Email != "User@Example.com" {
		t.Fatalf("unexpected body after re-read: %s", payload.Email)
	}
}

func TestKeyByIPAndJSONFieldFallsBackToIP(t *testing.T) {
	gin.SetMode(gin.TestMode)

	keyFunc := KeyByIPAndJSONField("email")

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`not-json`))
	c.Request.RemoteAddr = "1.2.3.4:5678"

	if key := keyFunc(c); key != "1.2.3.4" {
		t.Fatalf("expected ip fallback, got %s", key)
	}
}

func TestToInt64(t *testing.T) {
	cases := []struct {
		value interface{}
		want  int64
		ok    bool
	}{
		{value: int64(31), want: 31, ok: true},
		{value: 7, want: 7, ok: true},
		{value: float64(12.0), want: 12, ok: true},
		{value: "31", ok: false},
		{value: nil, ok: false},
	}
	for _, tc := range cases {
		got, ok := toInt64(tc.value)
		if ok != tc.ok || (ok && got != tc.want) {
			t.Fatalf("toInt64(%v) = (%d, %v), want (%d, %v)", tc.value, got, ok, tc.want, tc.ok)
		}
	}
}
