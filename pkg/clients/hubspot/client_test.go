package hubspot

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedUpsert struct {
	Inputs []struct {
		Properties map[string]string `json:"properties"`
	} `json:"inputs"`
}

func TestUpsertContact_SendsBatchUpsert(t *testing.T) {
	var got capturedUpsert
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/crm/v3/objects/contacts/batch/upsert", r.URL.Path)
		assert.Equal(t, "email", r.URL.Query().Get("idProperty"))
		assert.Equal(t, "Bearer pat-na1-xyz", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"COMPLETE","results":[]}`))
	}))
	defer srv.Close()

	c := NewClient("pat-na1-xyz", WithBaseURL(srv.URL))
	out, err := c.UpsertContact(context.Background(), Contact{
		Email:       "jane@example.com",
		Name:        "Jane Doe",
		CompanyName: "Acme",
		PhoneNumber: "+1 555 0100",
	})
	require.NoError(t, err)
	assert.Equal(t, true, out.OK)

	require.Len(t, got.Inputs, 1)
	assert.Equal(t, map[string]string{
		"email":                      "jane@example.com",
		"firstname":                  "Jane",
		"lastname":                   "Doe",
		"company":                    "Acme",
		"phone":                      "+1 555 0100",
		"hs_legal_basis":             "CONSENT_WITH_NOTICE",
		"hs_legal_basis_explanation": "User consented via newsletter signup form on website.",
	}, got.Inputs[0].Properties)
}

func TestUpsertContact_OmitsEmptyOptionalProperties(t *testing.T) {
	var got capturedUpsert
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	out, err := NewClient("tok", WithBaseURL(srv.URL)).UpsertContact(context.Background(), Contact{
		Email: "madonna@example.com",
		Name:  "Madonna",
	})
	require.NoError(t, err)
	assert.True(t, out.OK)

	require.Len(t, got.Inputs, 1)
	props := got.Inputs[0].Properties
	assert.Equal(t, "Madonna", props["firstname"])
	assert.NotContains(t, props, "lastname")
	assert.NotContains(t, props, "company")
	assert.NotContains(t, props, "phone")
}

func TestUpsertContact_NonSuccessKeepsRawBody(t *testing.T) {
	const body = `{"status":"error","message":"Authentication credentials not found.","correlationId":"c-1","category":"INVALID_AUTHENTICATION"}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	out, err := NewClient("bad", WithBaseURL(srv.URL)).UpsertContact(context.Background(), Contact{Email: "a@b.co", Name: "A B"})
	require.NoError(t, err)

	assert.False(t, out.OK)
	assert.Equal(t, http.StatusUnauthorized, out.Status)
	assert.Equal(t, body, out.Message)
}

func TestUpsertContact_MissingTokenSkipsNetwork(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	_, err := NewClient("", WithBaseURL(srv.URL)).UpsertContact(context.Background(), Contact{Email: "a@b.co"})
	assert.ErrorIs(t, err, ErrMissingAccessToken)
	assert.EqualError(t, err, "Missing HUBSPOT_ACCESS_TOKEN")
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestUpsertContact_HonoursContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewClient("tok", WithBaseURL(srv.URL)).UpsertContact(ctx, Contact{Email: "a@b.co"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
