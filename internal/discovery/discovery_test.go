package discovery

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verax/internal/model"
)

func mustParse(t *testing.T, s string) *url.URL {
	t.Helper()
	u, err := url.Parse(s)
	require.NoError(t, err)
	return u
}

func TestNormalizeHrefRejectsNonNavigableSchemes(t *testing.T) {
	base := mustParse(t, "https://example.com/app")
	for _, href := range []string{"javascript:void(0)", "mailto:a@b.com", "tel:+1234", "sms:123", "data:text/plain;base64,abc"} {
		_, ok := normalizeHref(href, base)
		assert.Falsef(t, ok, "expected %q to be rejected", href)
	}
}

func TestNormalizeHrefRejectsHashOnly(t *testing.T) {
	base := mustParse(t, "https://example.com/app")
	_, ok := normalizeHref("#", base)
	assert.False(t, ok)
}

func TestNormalizeHrefResolvesRelative(t *testing.T) {
	base := mustParse(t, "https://example.com/app/page")
	got, ok := normalizeHref("../other", base)
	require.True(t, ok)
	assert.Equal(t, "https://example.com/other", got)
}

func TestNormalizeDeduplicateSortDropsCrossOriginByDefault(t *testing.T) {
	base := mustParse(t, "https://example.com")
	targets := []model.RuntimeTarget{
		{NormalizedHref: "https://example.com/a", TagName: "a", SelectorPath: "a:nth-child(1)"},
		{NormalizedHref: "https://other.com/b", TagName: "a", SelectorPath: "a:nth-child(2)"},
	}
	out := normalizeDeduplicateSort(targets, base, Options{AllowCrossOrigin: false, MaxTargets: 25})
	require.Len(t, out, 1)
	assert.Equal(t, "https://example.com/a", out[0].NormalizedHref)
}

func TestNormalizeDeduplicateSortDedupesAndSorts(t *testing.T) {
	base := mustParse(t, "https://example.com")
	targets := []model.RuntimeTarget{
		{NormalizedHref: "https://example.com/b", TagName: "a", SelectorPath: "p2"},
		{NormalizedHref: "https://example.com/a", TagName: "a", SelectorPath: "p1"},
		{NormalizedHref: "https://example.com/a", TagName: "a", SelectorPath: "p1"},
	}
	out := normalizeDeduplicateSort(targets, base, Options{AllowCrossOrigin: false, MaxTargets: 25})
	require.Len(t, out, 2)
	assert.Equal(t, "https://example.com/a", out[0].NormalizedHref)
	assert.Equal(t, "https://example.com/b", out[1].NormalizedHref)
}

func TestNormalizeDeduplicateSortTruncatesToMaxTargets(t *testing.T) {
	base := mustParse(t, "https://example.com")
	var targets []model.RuntimeTarget
	for i := 0; i < 30; i++ {
		targets = append(targets, model.RuntimeTarget{
			NormalizedHref: "https://example.com/" + string(rune('a'+i)),
			TagName:        "a",
			SelectorPath:   "p",
		})
	}
	out := normalizeDeduplicateSort(targets, base, Options{AllowCrossOrigin: false, MaxTargets: 10})
	assert.Len(t, out, 10)
}

func TestRuntimeNavIDIsStableAcrossCalls(t *testing.T) {
	base := mustParse(t, "https://example.com")
	targets := []model.RuntimeTarget{
		{NormalizedHref: "https://example.com/a", TagName: "a", SelectorPath: "p1", Role: ""},
	}
	first := normalizeDeduplicateSort(targets, base, DefaultOptions())
	second := normalizeDeduplicateSort(targets, base, DefaultOptions())
	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.Contains(t, first[0].ID, "runtime-nav-")
}
