package crawler

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFilterChainHostAllowList(t *testing.T) {
	fc, err := NewFilterChain([]string{"canada.ca"}, nil)
	require.NoError(t, err)

	require.True(t, fc.Accept("https://canada.ca/en/page"))
	require.True(t, fc.Accept("https://www.canada.ca/en/page"), "subdomains are in scope")
	require.False(t, fc.Accept("https://evil.example.org/en/page"))
	require.False(t, fc.Accept("https://notcanada.ca.example.org/"), "suffix match requires a dot boundary")
}

func TestFilterChainURLScope(t *testing.T) {
	fc, err := NewFilterChain([]string{"https://laws-lois.justice.gc.ca/eng/acts/I-3.3/**"}, nil)
	require.NoError(t, err)

	require.True(t, fc.Accept("https://laws-lois.justice.gc.ca/eng/acts/I-3.3/section-2.html"))
	require.True(t, fc.Accept("https://laws-lois.justice.gc.ca/eng/acts/I-3.3/"))
	require.False(t, fc.Accept("https://laws-lois.justice.gc.ca/eng/acts/E-15/section-1.html"), "outside the act's scope")
	require.False(t, fc.Accept("https://other.gc.ca/eng/acts/I-3.3/section-2.html"), "host check runs first")
}

func TestFilterChainExclusions(t *testing.T) {
	fc, err := NewFilterChain(
		[]string{"canada.ca"},
		[]string{"*.pdf", "/fra/", "mailto:"},
	)
	require.NoError(t, err)

	require.False(t, fc.Accept("https://canada.ca/en/form-t1.PDF"), "wildcard exclusion is case-insensitive")
	require.False(t, fc.Accept("https://canada.ca/fra/page"))
	require.True(t, fc.Accept("https://canada.ca/en/page.html"))
}

func TestFilterChainWildcardExclusion(t *testing.T) {
	fc, err := NewFilterChain(
		[]string{"canada.ca"},
		[]string{"https://canada.ca/en/archive/**.html"},
	)
	require.NoError(t, err)

	require.False(t, fc.Accept("https://canada.ca/en/archive/2019/old.html"))
	require.True(t, fc.Accept("https://canada.ca/en/current/new.html"))
}

func TestFilterChainRequiresAllowList(t *testing.T) {
	_, err := NewFilterChain(nil, nil)
	require.Error(t, err)
}
