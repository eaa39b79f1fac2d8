package crawler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRobotsEnforcer(t *testing.T) {
	ctx := context.Background()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			fmt.Fprint(w, "User-agent: *\nDisallow: /blocked\n")
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	enforcer := NewRobotsEnforcer("taxcrawler-test", zap.NewNop())
	require.True(t, enforcer.Allowed(ctx, srv.URL+"/allowed"))
	require.False(t, enforcer.Allowed(ctx, srv.URL+"/blocked/page"))
}

func TestRobotsEnforcerMissingFileAllows(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	enforcer := NewRobotsEnforcer("taxcrawler-test", zap.NewNop())
	require.True(t, enforcer.Allowed(context.Background(), srv.URL+"/anything"))
}

func TestRobotsEnforcerFailsClosed(t *testing.T) {
	// A host whose robots.txt cannot be fetched must not be crawled.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	srvURL := srv.URL
	srv.Close()

	enforcer := NewRobotsEnforcer("taxcrawler-test", zap.NewNop())
	require.False(t, enforcer.Allowed(context.Background(), srvURL+"/page"))
}

func TestRobotsEnforcerCachesPerHost(t *testing.T) {
	var robotsHits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			robotsHits++
			fmt.Fprint(w, "User-agent: *\nAllow: /\n")
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	enforcer := NewRobotsEnforcer("taxcrawler-test", zap.NewNop())
	ctx := context.Background()
	require.True(t, enforcer.Allowed(ctx, srv.URL+"/one"))
	require.True(t, enforcer.Allowed(ctx, srv.URL+"/two"))
	require.Equal(t, 1, robotsHits)
}

func TestAllowAllRobots(t *testing.T) {
	require.True(t, AllowAllRobots().Allowed(context.Background(), "https://example.org/anything"))
}
