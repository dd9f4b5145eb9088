package payment

import (
	"encoding/json"
	"time"
)

// 支付服务商回调事件类型
const (
	EventChargeSuccess = "charge.success"
	EventChargeFailed  = "charge.failed"
)

// TransactionStatus 服务商侧的交易状态
type TransactionStatus string

const (
	StatusSuccess   TransactionStatus = "success"
	StatusFailed    TransactionStatus = "failed"
	StatusAbandoned TransactionStatus = "abandoned"
	StatusPending   TransactionStatus = "pending"
)

// IsFinal 是否已有最终结论
func (s TransactionStatus) IsFinal() bool {
	return s == StatusSuccess || s == StatusFailed || s == StatusAbandoned
}

// InitRequest 初始化支付会话
type InitRequest struct {
	Reference   string // 订单customId，同时作为服务商侧幂等键
	Amount      int64
	Email       string
	CallbackURL string
}

// Session 支付会话，前端据此拉起支付组件
type Session struct {
	AuthorizationURL string
	AccessCode       string
	Reference        string
}

// Verification 服务端主动查询的交易结果
type Verification struct {
	Reference string
	Status    TransactionStatus
	Amount    int64
	PaidAt    *time.Time
}

// Event 已通过签名校验的回调事件
type Event struct {
	ID        string
	Type      string
	Reference string
	Status    TransactionStatus
	Amount    int64
}

// Outcome 支付结论
type Outcome struct {
	Reference string
	Success   bool
	Amount    int64
}

// Outcome 把事件归约为支付结论；未知事件类型返回false
func (e *Event) Outcome() (Outcome, bool) {
	switch e.Type {
	case EventChargeSuccess:
		return Outcome{Reference: e.Reference, Success: e.Status == StatusSuccess, Amount: e.Amount}, true
	case EventChargeFailed:
		return Outcome{Reference: e.Reference, Success: false, Amount: e.Amount}, true
	}
	return Outcome{}, false
}

// eventID 服务商的ID可能是数字也可能是字符串
type eventID string

func (id *eventID) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = eventID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = eventID(n.String())
	return nil
}

type wireEvent struct {
	ID    eventID `json:"id"`
	Event string  `json:"event"`
	Data  struct {
		ID        eventID `json:"id"`
		Reference string  `json:"reference"`
		Status    string  `json:"status"`
		Amount    int64   `json:"amount"`
	} `json:"data"`
}

// ParseEvent 解析回调正文
// 事件ID缺省时退化为 <event>:<data.id>:<reference>，保证同一笔交易的同类事件可去重
func ParseEvent(body []byte) (*Event, error) {
	var w wireEvent
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, ErrMalformedEvent.WithErr(err)
	}
	if w.Event == "" || w.Data.Reference == "" {
		return nil, ErrMalformedEvent
	}

	id := string(w.ID)
	if id == "" {
		id = w.Event + ":" + string(w.Data.ID) + ":" + w.Data.Reference
	}
	return &Event{
		ID:        id,
		Type:      w.Event,
		Reference: w.Data.Reference,
		Status:    TransactionStatus(w.Data.Status),
		Amount:    w.Data.Amount,
	}, nil
}
