package firewall

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"verax/internal/redact"
)

func TestMutatingMethodsClosedSet(t *testing.T) {
	for _, m := range []string{"POST", "PUT", "PATCH", "DELETE"} {
		assert.True(t, mutatingMethods[m], "%s should be mutating", m)
	}
	for _, m := range []string{"GET", "HEAD", "OPTIONS"} {
		assert.False(t, mutatingMethods[m], "%s should not be mutating", m)
	}
}

func TestGetSummaryReflectsBlockedRequests(t *testing.T) {
	f := &Firewall{blocked: []BlockedRequest{
		{Method: "POST", URL: "https://example.com/api"},
	}}
	summary := f.GetSummary()
	assert.Equal(t, 1, summary.BlockedCount)
	assert.Equal(t, "POST", summary.Blocked[0].Method)
}

func TestCloseWithoutInstallIsSafe(t *testing.T) {
	f := &Firewall{}
	assert.NotPanics(t, func() {
		assert.NoError(t, f.Close())
	})
}

func TestNotifyCallsObserverWhenSet(t *testing.T) {
	var got []string
	f := &Firewall{observer: func(method, url string, status int) {
		got = append(got, method+" "+url)
	}}
	f.notify("GET", "https://example.com/x", 200)
	assert.Equal(t, []string{"GET https://example.com/x"}, got)
}

func TestNotifyIsNoOpWithoutObserver(t *testing.T) {
	f := &Firewall{}
	assert.NotPanics(t, func() {
		f.notify("GET", "https://example.com/x", 200)
	})
}

func TestBlockedRequestCarriesReasonAndRedactedURL(t *testing.T) {
	url := "https://example.com/api?token=secret123"
	f := &Firewall{blocked: []BlockedRequest{
		{
			Method:    "POST",
			URL:       redact.URL(url),
			Reason:    writeBlockedReason,
			Timestamp: "2026-01-01T00:00:00Z",
		},
	}}
	got := f.Blocked()
	require := assert.New(t)
	require.Len(got, 1)
	require.Equal("write-blocked-read-only-mode", got[0].Reason)
	require.Equal("2026-01-01T00:00:00Z", got[0].Timestamp)
	require.NotContains(got[0].URL, "secret123")
}
