package unfurl

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFetchError_Messages(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")

	tests := []struct {
		name string
		err  *FetchError
		want string
	}{
		{"timeout", &FetchError{Kind: KindTimeout, Err: cause}, "upstream fetch timed out"},
		{"status", &FetchError{Kind: KindUpstreamStatus, StatusCode: 503}, "upstream returned 503"},
		{"content type", &FetchError{Kind: KindUnsupportedContentType, ContentType: "application/pdf"}, "unsupported content-type: application/pdf"},
		{"too large", &FetchError{Kind: KindResponseTooLarge}, "response too large"},
		{"connect", &FetchError{Kind: KindConnectFailure, Err: cause}, "upstream unreachable: dial tcp: connection refused"},
		{"connect bare", &FetchError{Kind: KindConnectFailure}, "connect_failure"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.EqualError(t, tt.err, tt.want)
		})
	}
}

func TestFetchError_IsAndAs(t *testing.T) {
	cause := errors.New("boom")
	err := fmt.Errorf("preview: %w", &FetchError{Kind: KindConnectFailure, URL: "https://x.test", Err: cause})

	require.ErrorIs(t, err, ErrConnectFailure)
	require.ErrorIs(t, err, cause)
	require.NotErrorIs(t, err, ErrTimeout)

	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	require.Equal(t, "https://x.test", fe.URL)
}

func TestKindOf(t *testing.T) {
	kind, ok := KindOf(&FetchError{Kind: KindResponseTooLarge})
	require.True(t, ok)
	require.Equal(t, KindResponseTooLarge, kind)

	_, ok = KindOf(errors.New("plain"))
	require.False(t, ok)

	_, ok = KindOf(nil)
	require.False(t, ok)
}

func TestKindString(t *testing.T) {
	require.Equal(t, "timeout", KindTimeout.String())
	require.Equal(t, "unsupported_content_type", KindUnsupportedContentType.String())
	require.Equal(t, "unknown", Kind(0).String())
}
