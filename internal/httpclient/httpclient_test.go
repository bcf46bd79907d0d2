package httpclient_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tokengate/tokengate/internal/config"
	"github.com/tokengate/tokengate/internal/httpclient"
)

func TestNewDefaultVerifies(t *testing.T) {
	client, err := httpclient.New(&config.Config{VerifySSL: true})
	require.NoError(t, err)

	transport := client.Transport.(*http.Transport)
	require.Nil(t, transport.TLSClientConfig)
}

func TestNewInsecureSkipsVerification(t *testing.T) {
	client, err := httpclient.New(&config.Config{VerifySSL: false})
	require.NoError(t, err)

	transport := client.Transport.(*http.Transport)
	require.NotNil(t, transport.TLSClientConfig)
	require.True(t, transport.TLSClientConfig.InsecureSkipVerify)
}

func TestNewMissingCABundle(t *testing.T) {
	_, err := httpclient.New(&config.Config{VerifySSL: true, CABundlePath: "/does/not/exist.pem"})
	require.Error(t, err)
}
