package authctl

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// stubPassword replaces the terminal password reader for the duration of a
// test.
func stubPassword(t *testing.T, passwords ...string) {
	t.Helper()
	orig := readPassword
	i := 0
	readPassword = func(int) ([]byte, error) {
		if i >= len(passwords) {
			t.Fatal("unexpected extra password prompt")
		}
		pw := passwords[i]
		i++
		return []byte(pw), nil
	}
	t.Cleanup(func() { readPassword = orig })
}

func TestCreateUserHappyPath(t *testing.T) {
	stubPassword(t, "s3cret", "s3cret")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/v1/users" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer admin-tok" {
			t.Errorf("admin bearer missing, got %q", got)
		}
		var req createUserRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad body: %v", err)
		}
		if req.Username != "alice" || req.Email != "alice@example.org" || req.Password != "s3cret" {
			t.Errorf("unexpected request: %+v", req)
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(createUserResponse{Success: true, Username: req.Username})
	}))
	defer srv.Close()

	var out bytes.Buffer
	app := NewApp(srv.URL, "admin-tok", strings.NewReader("alice\nalice@example.org\n"), &out)

	if err := app.Run(context.Background(), "create-user"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "created user alice") {
		t.Fatalf("missing confirmation in output: %q", out.String())
	}
}

func TestCreateUserPasswordMismatch(t *testing.T) {
	stubPassword(t, "one", "two")

	var out bytes.Buffer
	app := NewApp("http://localhost:0", "tok", strings.NewReader("a\na@b\n"), &out)

	err := app.CreateUser(context.Background())
	if err == nil || !strings.Contains(err.Error(), "do not match") {
		t.Fatalf("want mismatch error, got %v", err)
	}
}

func TestCreateUserServerRefusal(t *testing.T) {
	stubPassword(t, "pw", "pw")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(errorBody{Error: "forbidden", Reason: "admin_required", Message: "admin token required"})
	}))
	defer srv.Close()

	var out bytes.Buffer
	app := NewApp(srv.URL, "wrong", strings.NewReader("a\na@b\n"), &out)

	err := app.CreateUser(context.Background())
	if err == nil || !strings.Contains(err.Error(), "admin token required") {
		t.Fatalf("want refusal with server message, got %v", err)
	}
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/v1/health" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}))
	defer srv.Close()

	var out bytes.Buffer
	app := NewApp(srv.URL, "", strings.NewReader(""), &out)
	if err := app.Run(context.Background(), "health"); err != nil {
		t.Fatal(err)
	}
}

func TestUnknownCommand(t *testing.T) {
	var out bytes.Buffer
	app := NewApp("http://localhost:0", "", strings.NewReader(""), &out)
	if err := app.Run(context.Background(), "bogus"); err == nil {
		t.Fatal("want error for unknown command")
	}
}
