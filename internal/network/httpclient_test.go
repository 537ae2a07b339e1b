// internal/network/httpclient_test.go
package network

import (
	"crypto/tls"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestNewDefaultClientConfig(t *testing.T) {
	config := NewDefaultClientConfig()

	assert.Equal(t, DefaultRequestTimeout, config.RequestTimeout)
	assert.Equal(t, DefaultDialTimeout, config.DialTimeout)
	assert.Equal(t, DefaultMaxIdleConnsPerHost, config.MaxIdleConnsPerHost)
	assert.True(t, config.ForceHTTP2, "HTTP/2 should be preferred by default")
	assert.False(t, config.IgnoreTLSErrors)
}

func TestConfigureTLS(t *testing.T) {
	config := NewDefaultClientConfig()
	tlsConfig := configureTLS(config)
	assert.Equal(t, uint16(tls.VersionTLS12), tlsConfig.MinVersion)
	assert.False(t, tlsConfig.InsecureSkipVerify)
	assert.NotNil(t, tlsConfig.ClientSessionCache)

	config.IgnoreTLSErrors = true
	assert.True(t, configureTLS(config).InsecureSkipVerify)
}

func TestNewHTTPTransport_HTTP1Only(t *testing.T) {
	config := NewDefaultClientConfig()
	config.ForceHTTP2 = false
	transport := NewHTTPTransport(config)
	assert.Equal(t, []string{"http/1.1"}, transport.TLSClientConfig.NextProtos)
	assert.False(t, transport.ForceAttemptHTTP2)
}

func TestNewClient_RoundTrip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "pong")
	}))
	defer server.Close()

	config := NewDefaultClientConfig()
	config.Logger = zaptest.NewLogger(t)
	client := NewClient(config)

	resp, err := client.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "pong", string(body))
	assert.Equal(t, DefaultRequestTimeout, client.Timeout)
}

func TestNewClient_TLSVerification(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	strict := NewClient(NewDefaultClientConfig())
	_, err := strict.Get(server.URL)
	require.Error(t, err, "self-signed certificates are rejected by default")

	config := NewDefaultClientConfig()
	config.IgnoreTLSErrors = true
	resp, err := NewClient(config).Get(server.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}
