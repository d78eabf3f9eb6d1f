package storage //nolint:testpackage // exercises unexported endpoint handling

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormaliseEndpoint(t *testing.T) {
	testCases := []struct {
		name     string
		endpoint string
		expected string
	}{
		{name: "bare host", endpoint: "http://127.0.0.1:4443", expected: "http://127.0.0.1:4443/storage/v1/"},
		{name: "trailing slash", endpoint: "http://127.0.0.1:4443/", expected: "http://127.0.0.1:4443/storage/v1/"},
		{name: "explicit path", endpoint: "https://storage.example.com/storage/v1", expected: "https://storage.example.com/storage/v1/"},
		{name: "explicit path with slash", endpoint: "https://storage.example.com/storage/v1/", expected: "https://storage.example.com/storage/v1/"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := normaliseEndpoint(tc.endpoint)
			require.NoError(t, err)
			require.Equal(t, tc.expected, got)
		})
	}

	_, err := normaliseEndpoint("http://[::1")
	require.Error(t, err)
}

func TestCredentialsKindString(t *testing.T) {
	require.Equal(t, "not-found", CredentialsNotFound.String())
	require.Equal(t, "malformed", CredentialsMalformed.String())
	require.Equal(t, "unknown", CredentialsKind(0).String())
}
