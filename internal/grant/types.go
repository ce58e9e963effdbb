package grant

import (
	"time"

	"github.com/seralabs/tokend/internal/permission"
)

// Grant type discriminators accepted by the dispatcher.
const (
	TypePassword = "password"
	TypeRefresh  = "refresh_token"
	TypeFacebook = "facebook"
)

// Request is a parsed grant request; which fields matter depends on
// GrantType.
type Request struct {
	GrantType    string
	Username     string
	Password     string
	ClientID     string
	RefreshToken string
	Code         string
}

// TokenResponse is the success body for every grant path. ID is set only on
// the issue-or-reuse path, never on refresh. ExpiresIn is in seconds.
type TokenResponse struct {
	ID           string `json:"id,omitempty"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// InspectResponse mirrors the stored token record plus the merged effective
// permission set. Accessible/Refreshable are the configured lifetimes in
// seconds.
type InspectResponse struct {
	ID          string         `json:"id"`
	User        string         `json:"user"`
	Client      string         `json:"client"`
	Access      string         `json:"access"`
	Refresh     string         `json:"refresh"`
	Created     time.Time      `json:"created"`
	Accessible  int64          `json:"accessible"`
	Refreshable int64          `json:"refreshable"`
	Has         permission.Set `json:"has"`
}

func seconds(d time.Duration) int64 { return int64(d / time.Second) }
