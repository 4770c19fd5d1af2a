package yandex

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/de-tools/inventory-atlas/pkg/models/domain"
	"github.com/de-tools/inventory-atlas/pkg/providers"
)

func testKey(t *testing.T) (*rsa.PrivateKey, string) {
	t.Helper()
	pk, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKCS8PrivateKey(pk)
	require.NoError(t, err)
	block := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})

	doc, err := json.Marshal(ServiceAccountKey{
		ID:               "ajekey",
		ServiceAccountID: "ajesa",
		PrivateKey:       "PLEASE DO NOT REMOVE THIS LINE! Yandex.Cloud SA Key ID <ajekey>\n" + string(block),
	})
	require.NoError(t, err)
	return pk, string(doc)
}

func TestAdapter_Authenticate(t *testing.T) {
	pk, doc := testKey(t)
	expires := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		token, err := jwt.Parse(body["jwt"], func(token *jwt.Token) (any, error) {
			assert.Equal(t, "ajekey", token.Header["kid"])
			return &pk.PublicKey, nil
		}, jwt.WithValidMethods([]string{"PS256"}), jwt.WithAudience(IAMTokenURL), jwt.WithIssuer("ajesa"))
		if err != nil || !token.Valid {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"iamToken": "t1.iam", "expiresAt": expires})
	}))
	defer srv.Close()

	a := New(srv.Client())
	a.tokenURL = srv.URL

	sess, err := a.Authenticate(context.Background(), domain.CredentialHandle{Source: "key", Value: doc})
	require.NoError(t, err)
	assert.Equal(t, "t1.iam", sess.Token)
	assert.True(t, expires.Equal(sess.ExpiresAt))
}

func TestAdapter_AuthenticateRejected(t *testing.T) {
	_, doc := testKey(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	a := New(srv.Client())
	a.tokenURL = srv.URL

	_, err := a.Authenticate(context.Background(), domain.CredentialHandle{Source: "key", Value: doc})
	assert.True(t, providers.IsCategory(err, providers.CategoryAuthentication))

	_, err = a.Authenticate(context.Background(), domain.CredentialHandle{Source: "key", Value: "{}"})
	assert.True(t, providers.IsCategory(err, providers.CategoryAuthentication))
}

func TestAdapter_ListPageAcrossFolders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/compute/v1/instances", r.URL.Path)
		assert.Equal(t, "Bearer t1.iam", r.Header.Get("Authorization"))

		q := r.URL.Query()
		switch fmt.Sprintf("%s/%s", q.Get("folderId"), q.Get("pageToken")) {
		case "f1/":
			fmt.Fprint(w, `{"instances":[{"id":"i1","resources":{"cores":"2","memory":"4294967296"}}],"nextPageToken":"n1"}`)
		case "f1/n1":
			fmt.Fprint(w, `{"instances":[{"id":"i2"}]}`)
		case "f2/":
			fmt.Fprint(w, `{}`)
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	defer srv.Close()

	a := New(srv.Client())
	a.baseURL = srv.URL
	sess := providers.Session{Token: "t1.iam"}
	scope := domain.Scope{FolderIDs: []string{"f1", "f2"}}

	var ids []string
	var tokens []string
	token := ""
	for {
		page, err := a.ListPage(context.Background(), sess, scope, domain.ResourceComputeInstance, token)
		require.NoError(t, err)
		for _, e := range page.Entries {
			ids = append(ids, e.ID)
		}
		if page.NextToken == "" {
			break
		}
		tokens = append(tokens, page.NextToken)
		token = page.NextToken
	}

	assert.Equal(t, []string{"i1", "i2"}, ids)
	assert.Equal(t, []string{"f1|n1", "f2|"}, tokens)
}

func TestAdapter_ListPageStatus(t *testing.T) {
	tests := []struct {
		status   int
		category providers.Category
	}{
		{http.StatusUnauthorized, providers.CategorySessionExpired},
		{http.StatusForbidden, providers.CategoryUnavailable},
		{http.StatusNotFound, providers.CategoryUnavailable},
		{http.StatusNotImplemented, providers.CategoryUnavailable},
		{http.StatusTooManyRequests, providers.CategoryTransient},
		{http.StatusServiceUnavailable, providers.CategoryTransient},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			a := New(srv.Client())
			a.baseURL = srv.URL

			_, err := a.ListPage(context.Background(), providers.Session{Token: "t"},
				domain.Scope{FolderIDs: []string{"f1"}}, domain.ResourceRegistry, "")
			assert.True(t, providers.IsCategory(err, tt.category))
		})
	}
}

func TestAdapter_ListPageScopeErrorsAreNotRetried(t *testing.T) {
	tests := []struct {
		name  string
		scope domain.Scope
		token string
	}{
		{name: "no folders", scope: domain.Scope{}},
		{name: "token outside scope", scope: domain.Scope{FolderIDs: []string{"f1"}}, token: "f9|n1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				t.Error("no request expected")
			}))
			defer srv.Close()

			a := New(srv.Client())
			a.baseURL = srv.URL

			_, err := a.ListPage(context.Background(), providers.Session{Token: "t"}, tt.scope, domain.ResourceBlockVolume, tt.token)
			require.Error(t, err)
			assert.True(t, providers.IsCategory(err, providers.CategoryUnavailable))
		})
	}
}
