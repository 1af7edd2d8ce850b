package request

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/movienight/internal/api/apierr"
)

func decode(t *testing.T, body string, dst any) error {
	t.Helper()
	return Decode(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)), dst)
}

func TestDecodeValid(t *testing.T) {
	var req AddMovieRequest
	require.NoError(t, decode(t, `{"title":"Heat","year":1995}`, &req))
	assert.Equal(t, AddMovieRequest{Title: "Heat", Year: 1995}, req)
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		dst     any
		message string
	}{
		{"malformed json", `{"title":`, &AddMovieRequest{}, "invalid request body"},
		{"missing field", `{}`, &CreateGroupRequest{}, "group_name is required"},
		{"too short", `{"username":"al","password":"pw"}`, &RegisterRequest{}, "username must be at least 3"},
		{"year out of range", `{"title":"Heat","year":1700}`, &AddMovieRequest{}, "year must be at least 1870"},
		{"missing pointer", `{}`, &ReadyRequest{}, "ready is required"},
		{"several fields", `{}`, &LoginRequest{}, "username is required; password is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := decode(t, tt.body, tt.dst)
			require.Error(t, err)
			assert.Equal(t, http.StatusBadRequest, apierr.Status(err))
			assert.Equal(t, tt.message, err.Error())
		})
	}
}

func TestDecodeBodyTooLarge(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"title":"`+strings.Repeat("a", 64)+`"}`))
	r.Body = http.MaxBytesReader(httptest.NewRecorder(), r.Body, 16)

	err := Decode(r, &AddMovieRequest{})
	assert.Equal(t, http.StatusRequestEntityTooLarge, apierr.Status(err))
	assert.Equal(t, "request body exceeds 16 bytes", err.Error())
}
