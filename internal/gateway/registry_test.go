package gateway

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateways.json")
	body := `{"gateways":[
		{"name":"stripe","display_name":"Stripe","webhook_secret":"whsec","enabled":true},
		{"name":"paypal","webhook_secret":"pp","enabled":false}
	]}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	r, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, 2, r.Count())
	assert.Equal(t, []string{"paypal", "stripe"}, r.Names())
	assert.True(t, r.Enabled("stripe"))
	assert.False(t, r.Enabled("paypal"))
	assert.False(t, r.Enabled("braintree"))
	assert.True(t, r.Enabled(Manual))
	assert.Equal(t, "whsec", r.WebhookSecret("stripe"))
	assert.Empty(t, r.WebhookSecret("braintree"))
}

func TestLoadFromFile_Errors(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"gateways":[{"enabled":true}]}`), 0o600))
	_, err = LoadFromFile(path)
	assert.Error(t, err)
}

func TestVerifySignature(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"payment_succeeded"}`)
	sig := Sign(payload, "secret")

	assert.True(t, VerifySignature(payload, sig, "secret"))
	assert.True(t, VerifySignature(payload, "sha256="+sig, "secret"))
	assert.False(t, VerifySignature(payload, sig, "other"))
	assert.False(t, VerifySignature([]byte("tampered"), sig, "secret"))
	assert.False(t, VerifySignature(payload, "not-hex", "secret"))
	assert.False(t, VerifySignature(payload, "", "secret"))
	assert.False(t, VerifySignature(payload, sig, ""))
}
