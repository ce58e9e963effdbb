package facebook

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestProvider(tokenStatus, profileStatus int, profileBody string) (*Provider, *httptest.Server) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("code") == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(tokenStatus)
		if tokenStatus == http.StatusOK {
			_, _ = w.Write([]byte(`{"access_token":"fb-token"}`))
		}
	})
	mux.HandleFunc("/me", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(profileStatus)
		if profileStatus == http.StatusOK {
			_, _ = w.Write([]byte(profileBody))
		}
	})
	srv := httptest.NewServer(mux)

	p := New("app-id", "app-secret", "https://accounts.example.com/auth/oauth", time.Second)
	p.TokenURL = srv.URL + "/oauth/access_token"
	p.ProfileURL = srv.URL + "/me"
	return p, srv
}

func TestExchangeCodeAndFetchProfile(t *testing.T) {
	p, srv := newTestProvider(http.StatusOK, http.StatusOK,
		`{"email":"jane@example.com","first_name":"Jane","last_name":"Doe"}`)
	defer srv.Close()

	tok, err := p.ExchangeCode(context.Background(), "the-code")
	if err != nil {
		t.Fatal(err)
	}
	if tok != "fb-token" {
		t.Fatalf("token = %q", tok)
	}

	prof, err := p.FetchProfile(context.Background(), tok)
	if err != nil {
		t.Fatal(err)
	}
	if prof.Email != "jane@example.com" || prof.FirstName != "Jane" || prof.LastName != "Doe" {
		t.Fatalf("profile = %+v", prof)
	}
}

func TestExchangeCodeDenied(t *testing.T) {
	p, srv := newTestProvider(http.StatusUnauthorized, http.StatusOK, `{}`)
	defer srv.Close()

	_, err := p.ExchangeCode(context.Background(), "bad-code")
	if !errors.Is(err, ErrDenied) {
		t.Fatalf("err = %v, want ErrDenied", err)
	}
}

func TestFetchProfileDenied(t *testing.T) {
	p, srv := newTestProvider(http.StatusOK, http.StatusForbidden, "")
	defer srv.Close()

	_, err := p.FetchProfile(context.Background(), "fb-token")
	if !errors.Is(err, ErrDenied) {
		t.Fatalf("err = %v, want ErrDenied", err)
	}
}

func TestTransportErrorIsNotDenied(t *testing.T) {
	p, srv := newTestProvider(http.StatusOK, http.StatusOK, `{}`)
	srv.Close() // force connection refused

	_, err := p.ExchangeCode(context.Background(), "code")
	if err == nil {
		t.Fatal("expected transport error")
	}
	if errors.Is(err, ErrDenied) {
		t.Fatal("transport failure must stay distinct from a provider denial")
	}
}
