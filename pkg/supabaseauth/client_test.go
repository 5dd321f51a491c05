package supabaseauth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignUpSendsFullName(t *testing.T) {
	var got struct {
		Email string            `json:"email"`
		Data  map[string]string `json:"data"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/v1/signup", r.URL.Path)
		assert.Equal(t, "anon-key", r.Header.Get("apikey"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"id": "user-42", "email": got.Email})
	}))
	defer server.Close()

	client, err := New(server.URL, "anon-key")
	require.NoError(t, err)

	session, err := client.SignUp(context.Background(), "budi@example.com", "Str0ng!pass", "Budi Santoso")
	require.NoError(t, err)
	assert.Equal(t, "user-42", session.UserID)
	assert.Equal(t, "budi@example.com", got.Email)
	assert.Equal(t, "Budi Santoso", got.Data["full_name"])
	assert.Equal(t, "user", got.Data["role"])
}

func TestNewRequiresSettings(t *testing.T) {
	if _, err := New("", "key"); err == nil {
		t.Fatal("expected error without base url")
	}
	if _, err := New("https://project.supabase.co", ""); err == nil {
		t.Fatal("expected error without anon key")
	}
}
