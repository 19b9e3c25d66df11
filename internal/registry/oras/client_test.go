// Copyright (c) 2026 HMCTS
// Licensed under the MIT License. See LICENSE file in the project root for details.

package oras

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hmcts/acr-transfer/internal/pkg/logger"
)

func TestHostOf(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "myacr.azurecr.io", hostOf("myacr"))
	assert.Equal(t, "registry.example.com", hostOf("registry.example.com"))
	assert.Equal(t, "localhost:5000", hostOf("localhost:5000"), "port-qualified hosts pass through")
}

func TestSplitRef(t *testing.T) {
	t.Parallel()

	repo, tag, err := splitRef("team/app:v1.2")
	require.NoError(t, err)
	assert.Equal(t, "team/app", repo)
	assert.Equal(t, "v1.2", tag)

	for _, ref := range []string{"app", "app:", ":v1", ""} {
		_, _, err := splitRef(ref)
		assert.Error(t, err, "ref %q", ref)
	}
}

// fakeRegistry serves the minimal distribution API surface the client uses.
type fakeRegistry struct {
	repos []string
	// repo -> tag -> digest
	tags map[string]map[string]string
}

func (f *fakeRegistry) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/v2/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v2/" {
			w.WriteHeader(http.StatusOK)
			return
		}
		http.NotFound(w, r)
	})
	mux.HandleFunc("/v2/_catalog", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"repositories": f.repos})
	})
	for repo, tagDigests := range f.tags {
		repo, tagDigests := repo, tagDigests
		mux.HandleFunc("/v2/"+repo+"/tags/list", func(w http.ResponseWriter, r *http.Request) {
			var names []string
			for tag := range tagDigests {
				names = append(names, tag)
			}
			json.NewEncoder(w).Encode(map[string]interface{}{"name": repo, "tags": names})
		})
		mux.HandleFunc("/v2/"+repo+"/manifests/", func(w http.ResponseWriter, r *http.Request) {
			tag := r.URL.Path[len("/v2/"+repo+"/manifests/"):]
			dgst, ok := tagDigests[tag]
			if !ok {
				writeDistributionError(w, http.StatusNotFound, "MANIFEST_UNKNOWN", "manifest unknown")
				return
			}
			w.Header().Set("Content-Type", "application/vnd.oci.image.manifest.v1+json")
			w.Header().Set("Docker-Content-Digest", dgst)
			w.Header().Set("Content-Length", "2")
			w.WriteHeader(http.StatusOK)
		})
	}
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeDistributionError(w, http.StatusNotFound, "NAME_UNKNOWN", "repository name not known to registry")
	})
	return mux
}

func writeDistributionError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"errors":[{"code":%q,"message":%q}]}`, code, message)
}

func newTestRegistry(t *testing.T, fake *fakeRegistry) string {
	t.Helper()
	server := httptest.NewServer(fake.handler())
	t.Cleanup(server.Close)
	u, err := url.Parse(server.URL)
	require.NoError(t, err)
	return u.Host
}

func TestListRepositories(t *testing.T) {
	t.Parallel()

	host := newTestRegistry(t, &fakeRegistry{repos: []string{"beta/app", "alpha/app"}})
	client := NewClient(logger.NewWithLevel(logger.LevelError), WithPlainHTTP(true))

	repos, err := client.ListRepositories(context.Background(), host)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha/app", "beta/app"}, repos, "catalog results are sorted")
}

func TestListTagDigests(t *testing.T) {
	t.Parallel()

	host := newTestRegistry(t, &fakeRegistry{
		repos: []string{"team/app"},
		tags: map[string]map[string]string{
			"team/app": {
				"v1":     "sha256:1111111111111111111111111111111111111111111111111111111111111111",
				"stable": "sha256:1111111111111111111111111111111111111111111111111111111111111111",
				"v2":     "sha256:2222222222222222222222222222222222222222222222222222222222222222",
			},
		},
	})
	client := NewClient(logger.NewWithLevel(logger.LevelError), WithPlainHTTP(true))

	digests, err := client.ListTagDigests(context.Background(), host, "team/app")
	require.NoError(t, err)
	require.Len(t, digests, 3)
	assert.Equal(t, digests["v1"], digests["stable"], "re-tagged digests are shared")
	assert.NotEqual(t, digests["v1"], digests["v2"])
}

func TestListTagDigestsUnknownRepository(t *testing.T) {
	t.Parallel()

	host := newTestRegistry(t, &fakeRegistry{repos: []string{"team/app"}})
	client := NewClient(logger.NewWithLevel(logger.LevelError), WithPlainHTTP(true))

	digests, err := client.ListTagDigests(context.Background(), host, "missing/app")
	require.NoError(t, err, "unknown repository is an empty map, not an error")
	assert.Empty(t, digests)
}

func TestResolveEndpoint(t *testing.T) {
	t.Parallel()

	host := newTestRegistry(t, &fakeRegistry{})
	client := NewClient(logger.NewWithLevel(logger.LevelError), WithPlainHTTP(true))

	endpoint, err := client.ResolveEndpoint(context.Background(), host)
	require.NoError(t, err)
	assert.Equal(t, host, endpoint.LoginServer)
	assert.Equal(t, host, endpoint.ResourceID)
}
