package payments

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey2 = "callback-secret"

func signedCallback(t *testing.T, data map[string]any) []byte {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	body, err := json.Marshal(map[string]any{
		"data": string(raw),
		"mac":  Sign(string(raw), testKey2),
		"type": 1,
	})
	require.NoError(t, err)
	return body
}

func TestParseCallbackAcceptsNumericAndStringIDs(t *testing.T) {
	body := signedCallback(t, map[string]any{
		"app_id":       2553,
		"app_trans_id": "1768469400000_SF260115-ABC123",
		"zp_trans_id":  240115000012345,
		"amount":       300000,
		"server_time":  1768469460000,
	})

	data, err := ParseCallback(body, testKey2)
	require.NoError(t, err)
	assert.Equal(t, "240115000012345", data.ZPTransID.String())
	assert.Equal(t, "2553", data.AppID.String())
	assert.True(t, data.Succeeded())

	status := 2
	data.Status = &status
	assert.False(t, data.Succeeded())
}

func TestParseCallbackRejects(t *testing.T) {
	valid := signedCallback(t, map[string]any{"app_trans_id": "1768469400000_x"})

	tests := []struct {
		name string
		body []byte
		key  string
	}{
		{name: "not json", body: []byte("status=1"), key: testKey2},
		{name: "empty envelope", body: []byte(`{}`), key: testKey2},
		{name: "wrong key", body: valid, key: "other"},
		{name: "mac not hex", body: []byte(`{"data":"{}","mac":"zz"}`), key: testKey2},
		{name: "no reference", body: signedCallback(t, map[string]any{"amount": 1}), key: testKey2},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseCallback(tc.body, tc.key)
			assert.Error(t, err)
		})
	}
}

func TestVerifyMACIsCaseInsensitive(t *testing.T) {
	mac := Sign(`{"a":1}`, "k")
	assert.True(t, VerifyMAC(`{"a":1}`, mac, "k"))
	assert.True(t, VerifyMAC(`{"a":1}`, " "+strings.ToUpper(mac)+" ", "k"))
	assert.False(t, VerifyMAC(`{"a":2}`, mac, "k"))
}
