package provider

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/xiebiao/ebookstore/internal/domain/payment"
	"github.com/xiebiao/ebookstore/internal/domain/payout"
)

var (
	_ payment.Gateway = (*Client)(nil)
	_ payout.Wallet   = (*Client)(nil)
)

type initializeRequest struct {
	Email       string `json:"email"`
	Amount      int64  `json:"amount"`
	Reference   string `json:"reference"`
	Currency    string `json:"currency"`
	CallbackURL string `json:"callback_url,omitempty"`
}

type initializeData struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

// InitializeTransaction 创建支付会话，reference重复提交由服务商去重
func (c *Client) InitializeTransaction(ctx context.Context, req payment.InitRequest) (*payment.Session, error) {
	var data initializeData
	err := c.call(ctx, "initialize", http.MethodPost, "/transaction/initialize", initializeRequest{
		Email:       req.Email,
		Amount:      req.Amount,
		Reference:   req.Reference,
		Currency:    c.currency,
		CallbackURL: req.CallbackURL,
	}, &data, true)
	if err != nil {
		return nil, err
	}

	if data.Reference == "" {
		data.Reference = req.Reference
	}
	return &payment.Session{
		AuthorizationURL: data.AuthorizationURL,
		AccessCode:       data.AccessCode,
		Reference:        data.Reference,
	}, nil
}

type verifyData struct {
	Reference string     `json:"reference"`
	Status    string     `json:"status"`
	Amount    int64      `json:"amount"`
	PaidAt    *time.Time `json:"paid_at"`
}

// VerifyTransaction 查询交易结果
func (c *Client) VerifyTransaction(ctx context.Context, reference string) (*payment.Verification, error) {
	var data verifyData
	path := "/transaction/verify/" + url.PathEscape(reference)
	if err := c.call(ctx, "verify", http.MethodGet, path, nil, &data, true); err != nil {
		return nil, err
	}

	return &payment.Verification{
		Reference: reference,
		Status:    payment.TransactionStatus(data.Status),
		Amount:    data.Amount,
		PaidAt:    data.PaidAt,
	}, nil
}

// ID 钱包标识，用作分账锁的key
func (c *Client) ID() string {
	return c.walletID
}

type balanceData struct {
	Currency string `json:"currency"`
	Balance  int64  `json:"balance"`
}

// Balance 结算币种的可用余额，没有该币种时视为0
func (c *Client) Balance(ctx context.Context) (int64, error) {
	var data []balanceData
	if err := c.call(ctx, "balance", http.MethodGet, "/balance", nil, &data, true); err != nil {
		return 0, err
	}
	for _, b := range data {
		if b.Currency == c.currency {
			return b.Balance, nil
		}
	}
	return 0, nil
}

type transferRequest struct {
	Source    string `json:"source"`
	Amount    int64  `json:"amount"`
	Recipient string `json:"recipient"`
	Reference string `json:"reference"`
	Reason    string `json:"reason,omitempty"`
	Currency  string `json:"currency"`
}

type transferData struct {
	TransferCode string `json:"transfer_code"`
	Status       string `json:"status"`
}

// Transfer 转账只尝试一次，重试由分账用例负责（每次重试前要重新核对余额）
func (c *Client) Transfer(ctx context.Context, req payout.TransferRequest) (*payout.TransferResult, error) {
	var data transferData
	err := c.call(ctx, "transfer", http.MethodPost, "/transfer", transferRequest{
		Source:    "balance",
		Amount:    req.Amount,
		Recipient: req.Destination,
		Reference: req.Reference,
		Reason:    req.Reason,
		Currency:  c.currency,
	}, &data, false)
	if err != nil {
		return nil, err
	}
	return &payout.TransferResult{TransferCode: data.TransferCode, Status: data.Status}, nil
}
