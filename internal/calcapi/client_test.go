package calcapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, r chi.Router) *Client {
	t.Helper()
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return New(srv.URL, 5*time.Second)
}

func writeRaw(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func TestClient_Evaluate(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantResult string
		wantAPIErr string
		wantDecode bool
	}{
		{name: "string result", status: http.StatusOK, body: `{"ok":true,"result":"7"}`, wantResult: `"7"`},
		{name: "number result", status: http.StatusOK, body: `{"ok":true,"result":11.3}`, wantResult: `11.3`},
		{name: "missing result", status: http.StatusOK, body: `{"ok":true}`},
		{name: "application error", status: http.StatusOK, body: `{"ok":false,"error":"bad token"}`, wantAPIErr: "bad token"},
		{name: "application error with 400", status: http.StatusBadRequest, body: `{"ok":false,"error":"empty"}`, wantAPIErr: "empty"},
		{name: "application error without message", status: http.StatusOK, body: `{"ok":false}`, wantAPIErr: "unknown error"},
		{name: "non-string error", status: http.StatusOK, body: `{"ok":false,"error":{"code":3}}`, wantAPIErr: `{"code":3}`},
		{name: "html error page", status: http.StatusBadGateway, body: `<html>bad gateway</html>`, wantDecode: true},
		{name: "missing ok", status: http.StatusOK, body: `{"result":1}`, wantDecode: true},
		{name: "ok is a string", status: http.StatusOK, body: `{"ok":"true","result":1}`, wantDecode: true},
		{name: "top level array", status: http.StatusOK, body: `[1,2]`, wantDecode: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotBody EvaluateRequest
			r := chi.NewRouter()
			r.Post("/api/evaluate", func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
				writeRaw(w, tt.status, tt.body)
			})
			c := newTestServer(t, r)

			res, err := c.Evaluate(context.Background(), "2+5")
			assert.Equal(t, "2+5", gotBody.Expr)

			switch {
			case tt.wantAPIErr != "":
				var apiErr *APIError
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, tt.wantAPIErr, apiErr.Message)
				assert.Equal(t, "/api/evaluate", apiErr.Endpoint)
				assert.True(t, IsAPIError(err))
			case tt.wantDecode:
				var decErr *DecodeError
				require.ErrorAs(t, err, &decErr)
				assert.Equal(t, tt.status, decErr.Status)
				assert.False(t, IsAPIError(err))
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.wantResult, string(res))
			}
		})
	}
}

func TestClient_Matrix_SendsNullOperands(t *testing.T) {
	var got map[string]json.RawMessage
	r := chi.NewRouter()
	r.Post("/api/matrix", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeRaw(w, http.StatusOK, `{"ok":true,"result":[[1,2],[3,4]]}`)
	})
	c := newTestServer(t, r)

	res, err := c.Matrix(context.Background(), "transpose", json.RawMessage(`[[1,3],[2,4]]`), nil)
	require.NoError(t, err)
	assert.Equal(t, `[[1,2],[3,4]]`, string(res))

	assert.JSONEq(t, `"transpose"`, string(got["op"]))
	assert.JSONEq(t, `[[1,3],[2,4]]`, string(got["a"]))
	assert.Equal(t, "null", string(got["b"]))
}

func TestClient_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(url, time.Second)
	_, err := c.Evaluate(context.Background(), "1+1")
	require.Error(t, err)
	assert.False(t, IsAPIError(err))
}

func TestClient_CanceledContext(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/api/evaluate", func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	c := newTestServer(t, r)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Evaluate(ctx, "1+1")
	require.ErrorIs(t, err, context.Canceled)
}

func TestClient_Login(t *testing.T) {
	newBackend := func() chi.Router {
		r := chi.NewRouter()
		r.Post("/login", func(w http.ResponseWriter, r *http.Request) {
			assert.NoError(t, r.ParseForm())
			if r.PostForm.Get("username") == "ada" && r.PostForm.Get("password") == "lovelace" {
				http.SetCookie(w, &http.Cookie{Name: "session", Value: "s1", Path: "/"})
				http.Redirect(w, r, "/calculator", http.StatusFound)
				return
			}
			_, _ = io.WriteString(w, "<html>Invalid username or password</html>")
		})
		r.Get("/calculator", func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, "<html>calculator</html>")
		})
		r.Post("/api/evaluate", func(w http.ResponseWriter, r *http.Request) {
			if c, err := r.Cookie("session"); err != nil || c.Value != "s1" {
				writeRaw(w, http.StatusUnauthorized, `{"ok":false,"error":"login required"}`)
				return
			}
			writeRaw(w, http.StatusOK, `{"ok":true,"result":"2"}`)
		})
		r.Get("/logout", func(w http.ResponseWriter, r *http.Request) {
			http.SetCookie(w, &http.Cookie{Name: "session", Value: "", Path: "/", MaxAge: -1})
			_, _ = io.WriteString(w, "<html>bye</html>")
		})
		return r
	}

	t.Run("accepted", func(t *testing.T) {
		c := newTestServer(t, newBackend())
		require.NoError(t, c.Login(context.Background(), "ada", "lovelace"))

		res, err := c.Evaluate(context.Background(), "1+1")
		require.NoError(t, err)
		assert.Equal(t, `"2"`, string(res))

		require.NoError(t, c.Logout(context.Background()))
		_, err = c.Evaluate(context.Background(), "1+1")
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, "login required", apiErr.Message)
	})

	t.Run("rejected", func(t *testing.T) {
		c := newTestServer(t, newBackend())
		err := c.Login(context.Background(), "ada", "wrong")
		require.ErrorIs(t, err, ErrLoginRejected)
	})

	t.Run("empty username", func(t *testing.T) {
		c := New("http://127.0.0.1:1", time.Second)
		require.Error(t, c.Login(context.Background(), "  ", "x"))
	})
}

func TestClient_Register(t *testing.T) {
	newBackend := func() chi.Router {
		taken := map[string]bool{"ada": true}
		r := chi.NewRouter()
		r.Post("/register", func(w http.ResponseWriter, r *http.Request) {
			assert.NoError(t, r.ParseForm())
			name := r.PostForm.Get("username")
			if taken[name] {
				http.Redirect(w, r, "/register", http.StatusFound)
				return
			}
			taken[name] = true
			http.Redirect(w, r, "/login", http.StatusFound)
		})
		r.Get("/register", func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, "<html>Username already exists!</html>")
		})
		r.Get("/login", func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, "<html>Registration successful! Please log in.</html>")
		})
		return r
	}

	tests := []struct {
		name     string
		username string
		wantErr  error
		anyErr   bool
	}{
		{name: "new account", username: "grace"},
		{name: "taken", username: "ada", wantErr: ErrUsernameTaken},
		{name: "blank username", username: " ", anyErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestServer(t, newBackend())
			err := c.Register(context.Background(), tt.username, "pw")
			switch {
			case tt.wantErr != nil:
				require.ErrorIs(t, err, tt.wantErr)
			case tt.anyErr:
				require.Error(t, err)
			default:
				require.NoError(t, err)
			}
		})
	}

	t.Run("second registration of the same name", func(t *testing.T) {
		c := newTestServer(t, newBackend())
		require.NoError(t, c.Register(context.Background(), "linus", "pw"))
		require.ErrorIs(t, c.Register(context.Background(), "linus", "pw"), ErrUsernameTaken)
	})

	t.Run("server error", func(t *testing.T) {
		r := chi.NewRouter()
		r.Post("/register", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})
		c := newTestServer(t, r)
		err := c.Register(context.Background(), "grace", "pw")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "register http 500")
	})
}

func TestNew_Defaults(t *testing.T) {
	c := New("  http://calc.local:5000/ ", 0)
	assert.Equal(t, "http://calc.local:5000", c.BaseURL)
	assert.Equal(t, DefaultTimeout, c.HTTP.Timeout)
	assert.NotNil(t, c.HTTP.Jar)

	c = New("", time.Second)
	assert.Equal(t, DefaultBaseURL, c.BaseURL)
}
