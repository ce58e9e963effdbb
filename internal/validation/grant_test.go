package validation

import (
	"testing"

	"github.com/seralabs/tokend/internal/grant"
)

func TestSanitizeGrant(t *testing.T) {
	req := grant.Request{
		GrantType: " password ",
		Username:  "  Alice@Example.COM ",
		Password:  "  spaces kept  ",
		ClientID:  " c1 ",
	}
	SanitizeGrant(&req)
	if req.GrantType != "password" {
		t.Errorf("grant_type = %q", req.GrantType)
	}
	if req.Username != "alice@example.com" {
		t.Errorf("username = %q", req.Username)
	}
	if req.Password != "  spaces kept  " {
		t.Errorf("password was modified: %q", req.Password)
	}
	if req.ClientID != "c1" {
		t.Errorf("client_id = %q", req.ClientID)
	}
}

func TestValidateGrant(t *testing.T) {
	cases := []struct {
		name    string
		req     grant.Request
		wantErr bool
	}{
		{"password ok", grant.Request{GrantType: "password", Username: "a@b.com", Password: "x", ClientID: "c"}, false},
		{"password missing username", grant.Request{GrantType: "password", Password: "x", ClientID: "c"}, true},
		{"password bad email", grant.Request{GrantType: "password", Username: "not-an-email", Password: "x", ClientID: "c"}, true},
		{"password missing client", grant.Request{GrantType: "password", Username: "a@b.com", Password: "x"}, true},
		{"refresh ok", grant.Request{GrantType: "refresh_token", RefreshToken: "r"}, false},
		{"refresh missing token", grant.Request{GrantType: "refresh_token"}, true},
		{"facebook ok", grant.Request{GrantType: "facebook", Code: "c"}, false},
		{"facebook missing code", grant.Request{GrantType: "facebook"}, true},
		{"empty grant_type", grant.Request{}, true},
		{"unknown type passes through", grant.Request{GrantType: "client_credentials"}, false},
	}
	for _, tc := range cases {
		err := ValidateGrant(tc.req)
		if (err != nil) != tc.wantErr {
			t.Errorf("%s: err = %v, wantErr = %v", tc.name, err, tc.wantErr)
		}
	}
}
