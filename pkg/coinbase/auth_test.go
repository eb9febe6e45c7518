package coinbase

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLegacyAuthenticatorSignature(t *testing.T) {
	t.Parallel()

	// Secret is base64("test-secret"); message is timestamp+method+path.
	auth := NewLegacyAuthenticator("key-id", "dGVzdC1zZWNyZXQ=", "phrase")
	auth.now = func() time.Time { return time.Unix(1700000000, 0) }

	req, err := http.NewRequest(http.MethodGet, "https://example.com/products", nil)
	require.NoError(t, err)
	require.NoError(t, auth.AddAuthHeaders(req, "GET", "/products", ""))

	assert.Equal(t, "key-id", req.Header.Get("CB-ACCESS-KEY"))
	assert.Equal(t, "1700000000", req.Header.Get("CB-ACCESS-TIMESTAMP"))
	assert.Equal(t, "phrase", req.Header.Get("CB-ACCESS-PASSPHRASE"))
	assert.Equal(t, "fcZ76UTc0K06sGP32whZo6itspn4QHY3myRoVnEmPEw=", req.Header.Get("CB-ACCESS-SIGN"))
}

func TestLegacyAuthenticatorRejectsBadSecret(t *testing.T) {
	t.Parallel()

	auth := NewLegacyAuthenticator("key-id", "not base64!!", "phrase")
	req, err := http.NewRequest(http.MethodGet, "https://example.com/products", nil)
	require.NoError(t, err)

	assert.Error(t, auth.AddAuthHeaders(req, "GET", "/products", ""))
}
