package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calcdesk/internal/calcapi"
)

func TestReadLines(t *testing.T) {
	lines, err := readLines(strings.NewReader("1+1\n\n   \n  sqrt(16) \r\nsin(0)"))
	require.NoError(t, err)
	assert.Equal(t, []string{"1+1", "sqrt(16)", "sin(0)"}, lines)
}

func TestUsageError(t *testing.T) {
	assert.Equal(t, 0, usageError(flag.ErrHelp))
	assert.Equal(t, 2, usageError(errors.New("flag provided but not defined: -nope")))
}

func TestReadPassword(t *testing.T) {
	pw, err := readPassword(strings.NewReader(" s3cret \r\nignored\n"))
	require.NoError(t, err)
	assert.Equal(t, " s3cret ", pw)

	pw, err = readPassword(strings.NewReader("no-newline"))
	require.NoError(t, err)
	assert.Equal(t, "no-newline", pw)
}

func TestRegisterAccount(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/register", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		if r.PostForm.Get("username") == "ada" {
			http.Redirect(w, r, "/register", http.StatusFound)
			return
		}
		http.Redirect(w, r, "/login", http.StatusFound)
	})
	r.Get("/register", func(w http.ResponseWriter, r *http.Request) { _, _ = io.WriteString(w, "taken") })
	r.Get("/login", func(w http.ResponseWriter, r *http.Request) { _, _ = io.WriteString(w, "login") })
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	c := calcapi.New(srv.URL, 5*time.Second)

	var out bytes.Buffer
	require.NoError(t, registerAccount(context.Background(), c, "grace", "pw", &out))
	assert.Equal(t, "registered grace, you can now log in\n", out.String())

	out.Reset()
	err := registerAccount(context.Background(), c, "ada", "pw", &out)
	require.EqualError(t, err, `username "ada" already exists`)
	assert.Empty(t, out.String())
}
