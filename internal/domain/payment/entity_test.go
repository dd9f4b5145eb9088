package payment

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignature(t *testing.T) {
	secret := []byte("whsec_test")
	body := []byte(`{"event":"charge.success"}`)

	sig := Sign(secret, body)
	assert.Len(t, sig, 128)
	assert.True(t, VerifySignature(secret, body, sig))
	assert.True(t, VerifySignature(secret, body, strings.ToUpper(sig)), "十六进制大小写不敏感")

	assert.False(t, VerifySignature([]byte("other"), body, sig))
	assert.False(t, VerifySignature(secret, []byte(`{"event":"charge.failed"}`), sig))
	assert.False(t, VerifySignature(secret, body, ""))
	assert.False(t, VerifySignature(secret, body, "zz"))
}

func TestParseEvent(t *testing.T) {
	body := `{"id": 9001, "event": "charge.success", "data": {"id": 77, "reference": "ORD-202401-0001", "status": "success", "amount": 4500}}`

	ev, err := ParseEvent([]byte(body))
	require.NoError(t, err)
	assert.Equal(t, "9001", ev.ID)
	assert.Equal(t, EventChargeSuccess, ev.Type)
	assert.Equal(t, "ORD-202401-0001", ev.Reference)
	assert.Equal(t, int64(4500), ev.Amount)

	out, ok := ev.Outcome()
	require.True(t, ok)
	assert.True(t, out.Success)
}

func TestParseEvent_IDForms(t *testing.T) {
	cases := []struct {
		name string
		id   string
		want string
	}{
		{"数字", `9001`, "9001"},
		{"字符串", `"evt_1"`, "evt_1"},
		{"数字字符串", `"42"`, "42"},
		{"null退化", `null`, "charge.success:7:ORD-202401-0003"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			body := `{"id":` + tc.id + `,"event":"charge.success","data":{"id":"7","reference":"ORD-202401-0003","status":"success","amount":100}}`
			ev, err := ParseEvent([]byte(body))
			require.NoError(t, err)
			assert.Equal(t, tc.want, ev.ID)
		})
	}

	_, err := ParseEvent([]byte(`{"id":true,"event":"charge.success","data":{"reference":"ORD-202401-0003"}}`))
	assert.ErrorIs(t, err, ErrMalformedEvent, "布尔ID视为格式错误")
}

func TestParseEvent_FallbackID(t *testing.T) {
	ev, err := ParseEvent([]byte(`{"event":"charge.failed","data":{"id":"77","reference":"ORD-202401-0002","status":"failed"}}`))
	require.NoError(t, err)
	assert.Equal(t, "charge.failed:77:ORD-202401-0002", ev.ID)

	out, ok := ev.Outcome()
	require.True(t, ok)
	assert.False(t, out.Success)
}

func TestParseEvent_Invalid(t *testing.T) {
	for _, body := range []string{`not json`, `{}`, `{"event":"charge.success","data":{}}`} {
		_, err := ParseEvent([]byte(body))
		assert.ErrorIs(t, err, ErrMalformedEvent, body)
	}
}

func TestEvent_Outcome_UnknownType(t *testing.T) {
	ev := &Event{Type: "transfer.success", Reference: "x"}
	_, ok := ev.Outcome()
	assert.False(t, ok)

	ev = &Event{Type: EventChargeSuccess, Status: StatusFailed}
	out, ok := ev.Outcome()
	assert.True(t, ok)
	assert.False(t, out.Success, "charge.success但状态非success时不算成功")
}
