// Package provider 支付服务商HTTP接口
//
// 同一个Client既是收款网关（payment.Gateway），也是分账使用的结算钱包（payout.Wallet）。
// 所有调用都带超时并经过熔断器；传输错误和5xx视为暂时故障，4xx视为明确拒绝。
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/xiebiao/ebookstore/pkg/circuitbreaker"
	apperrors "github.com/xiebiao/ebookstore/pkg/errors"
	"github.com/xiebiao/ebookstore/pkg/metrics"
)

// Options 客户端配置
type Options struct {
	BaseURL         string
	SecretKey       string
	Currency        string
	WalletID        string
	Timeout         time.Duration
	MaxRetries      int
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

// Client 支付服务商客户端
type Client struct {
	baseURL    string
	secretKey  string
	currency   string
	walletID   string
	maxRetries int
	httpClient *http.Client
	breaker    *circuitbreaker.CircuitBreaker
	newBackOff func() backoff.BackOff
	logger     zerolog.Logger
}

// NewClient 创建客户端
func NewClient(opts Options, logger zerolog.Logger) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Currency == "" {
		opts.Currency = "NGN"
	}
	if opts.WalletID == "" {
		opts.WalletID = "default"
	}

	logger = logger.With().Str("component", "payment_provider").Logger()
	breaker := circuitbreaker.NewCircuitBreaker("payment_provider", circuitbreaker.Config{
		Timeout:     opts.BreakerTimeout,
		ReadyToTrip: circuitbreaker.ConsecutiveFailures(max(opts.BreakerFailures, 1)),
	})
	breaker.SetStateChangeCallback(func(name string, from, to circuitbreaker.State) {
		logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("熔断器状态变化")
	})

	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		secretKey:  opts.SecretKey,
		currency:   opts.Currency,
		walletID:   opts.WalletID,
		maxRetries: opts.MaxRetries,
		httpClient: &http.Client{Timeout: opts.Timeout},
		breaker:    breaker,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 200 * time.Millisecond
			b.MaxInterval = 2 * time.Second
			return b
		},
		logger: logger,
	}
}

// envelope 服务商统一响应格式
type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// statusError 非2xx响应
type statusError struct {
	Code int
	Body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("provider responded %d: %s", e.Code, e.Body)
}

func (e *statusError) temporary() bool {
	return e.Code >= 500 || e.Code == http.StatusTooManyRequests
}

// call 发送请求并把data解码到out
// retry为false时只尝试一次，由调用方决定是否重试
func (c *Client) call(ctx context.Context, op, method, path string, in, out interface{}, retry bool) error {
	start := time.Now()

	attempt := func() error {
		// 明确拒绝说明服务商是健康的，不计入熔断失败
		var rejected error
		err := c.breaker.Execute(func() error {
			err := c.do(ctx, method, path, in, out)
			var se *statusError
			if errors.As(err, &se) && !se.temporary() {
				rejected = err
				return nil
			}
			return err
		})
		if rejected != nil {
			return backoff.Permanent(rejected)
		}
		if err == nil {
			return nil
		}
		if errors.Is(err, circuitbreaker.ErrOpenState) || ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		var de *decodeError
		if errors.As(err, &de) {
			return backoff.Permanent(err)
		}
		return err
	}

	var err error
	if retry && c.maxRetries > 0 {
		policy := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), uint64(c.maxRetries)), ctx)
		err = backoff.Retry(attempt, policy)
	} else {
		err = attempt()
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			err = perm.Err
		}
	}

	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	metrics.ObserveHistogramVec(metrics.PaymentProviderDuration,
		map[string]string{"operation": op, "outcome": outcome}, time.Since(start).Seconds())

	if err == nil {
		return nil
	}

	// 服务商返回内容只进日志
	c.logger.Error().Err(err).Str("operation", op).Str("path", path).Msg("支付服务商调用失败")
	var se *statusError
	if errors.As(err, &se) && !se.temporary() {
		return apperrors.ErrProviderRejected.WithErr(err)
	}
	return apperrors.ErrExternalService.WithErr(err)
}

type decodeError struct {
	err error
}

func (e *decodeError) Error() string { return "decode provider response: " + e.err.Error() }

func (e *decodeError) Unwrap() error { return e.err }

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return &decodeError{err: err}
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return &decodeError{err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &statusError{Code: resp.StatusCode, Body: string(raw)}
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return &decodeError{err: err}
	}
	if !env.Status {
		return &statusError{Code: http.StatusUnprocessableEntity, Body: env.Message}
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return &decodeError{err: err}
	}
	return nil
}
