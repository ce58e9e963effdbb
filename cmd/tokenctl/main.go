package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/seralabs/tokend/internal/config"
	"github.com/seralabs/tokend/internal/security/password"
	tokens "github.com/seralabs/tokend/internal/security/token"
	"github.com/seralabs/tokend/internal/store"
	"github.com/seralabs/tokend/internal/store/core"
	"github.com/seralabs/tokend/internal/store/pg"
)

type client struct {
	BaseURL string
	HTTP    *http.Client
}

func (c *client) postForm(path string, form url.Values) (int, []byte, error) {
	u := strings.TrimRight(c.BaseURL, "/") + path
	resp, err := c.HTTP.Post(u, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, b, nil
}

func (c *client) do(method, path, bearer string) (int, []byte, error) {
	u := strings.TrimRight(c.BaseURL, "/") + path
	req, err := http.NewRequest(method, u, nil)
	if err != nil {
		return 0, nil, err
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, b, nil
}

func printBody(status int, body []byte) {
	var v any
	if json.Unmarshal(body, &v) == nil {
		p, _ := json.MarshalIndent(v, "", "  ")
		fmt.Println(string(p))
		return
	}
	if len(body) > 0 {
		fmt.Println(string(body))
		return
	}
	fmt.Printf("status=%d\n", status)
}

// openStore wires a repository straight from config; used by the seed
// commands that bypass the HTTP surface.
func openStore(configPath string) (core.Repository, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	sc := store.Config{Driver: cfg.Storage.Driver, DSN: cfg.Storage.DSN}
	sc.Postgres.MaxConns = int32(cfg.Storage.Postgres.MaxConns)
	sc.Postgres.MinConns = int32(cfg.Storage.Postgres.MinConns)
	return store.Open(context.Background(), sc)
}

func main() {
	_ = godotenv.Load()

	var (
		baseURL    = envOr("TOKEND_URL", "http://localhost:4040")
		configPath string
	)

	root := &cobra.Command{
		Use:   "tokenctl",
		Short: "Operator CLI for the token service",
	}
	root.PersistentFlags().StringVar(&baseURL, "url", baseURL, "service base URL (env TOKEND_URL)")
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml (seed commands)")

	httpClient := &http.Client{Timeout: 30 * time.Second}
	cl := &client{BaseURL: baseURL, HTTP: httpClient}

	// ── seed ──
	seedCmd := &cobra.Command{
		Use:   "seed",
		Short: "Create users and clients directly in the store",
	}

	var clientName string
	seedClientCmd := &cobra.Command{
		Use:   "client",
		Short: "Create an API client",
		RunE: func(cmd *cobra.Command, args []string) error {
			if clientName == "" {
				return fmt.Errorf("--name is required")
			}
			st, err := openStore(configPath)
			if err != nil {
				return err
			}
			defer st.Close()

			created, err := st.CreateClient(cmd.Context(), &core.Client{
				ID:     uuid.NewString(),
				Name:   clientName,
				Secret: tokens.MustGenerate(32),
			})
			if err != nil {
				return err
			}
			fmt.Printf("id=%s name=%s secret=%s\n", created.ID, created.Name, created.Secret)
			return nil
		},
	}
	seedClientCmd.Flags().StringVar(&clientName, "name", "", "client name (unique)")

	var seedEmail, seedPassword, seedFirst, seedLast string
	seedUserCmd := &cobra.Command{
		Use:   "user",
		Short: "Create a user with a password credential",
		RunE: func(cmd *cobra.Command, args []string) error {
			if seedEmail == "" || seedPassword == "" {
				return fmt.Errorf("--email and --password are required")
			}
			st, err := openStore(configPath)
			if err != nil {
				return err
			}
			defer st.Close()

			hash, err := password.Hash(password.Default, seedPassword)
			if err != nil {
				return err
			}
			created, err := st.CreateUser(cmd.Context(), &core.User{
				ID:           uuid.NewString(),
				Email:        strings.ToLower(strings.TrimSpace(seedEmail)),
				FirstName:    seedFirst,
				LastName:     seedLast,
				PasswordHash: hash,
			})
			if err != nil {
				return err
			}
			fmt.Printf("id=%s email=%s\n", created.ID, created.Email)
			return nil
		},
	}
	seedUserCmd.Flags().StringVar(&seedEmail, "email", "", "user email (unique)")
	seedUserCmd.Flags().StringVar(&seedPassword, "password", "", "plaintext password to hash")
	seedUserCmd.Flags().StringVar(&seedFirst, "first-name", "", "first name")
	seedUserCmd.Flags().StringVar(&seedLast, "last-name", "", "last name")

	seedCmd.AddCommand(seedClientCmd, seedUserCmd)

	// ── migrate ──
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded postgres schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(configPath)
			if err != nil {
				return err
			}
			defer st.Close()

			pgStore, ok := st.(*pg.Store)
			if !ok {
				return fmt.Errorf("migrate requires the postgres driver")
			}
			if err := pgStore.Migrate(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("migrations applied")
			return nil
		},
	}

	// ── grant ──
	grantCmd := &cobra.Command{
		Use:   "grant",
		Short: "Request tokens from POST /tokens",
	}

	var gUser, gPass, gClient string
	grantPasswordCmd := &cobra.Command{
		Use:   "password",
		Short: "Password grant",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, body, err := cl.postForm("/tokens", url.Values{
				"grant_type": {"password"},
				"username":   {gUser},
				"password":   {gPass},
				"client_id":  {gClient},
			})
			if err != nil {
				return err
			}
			printBody(status, body)
			return nil
		},
	}
	grantPasswordCmd.Flags().StringVar(&gUser, "username", "", "user email")
	grantPasswordCmd.Flags().StringVar(&gPass, "password", "", "password")
	grantPasswordCmd.Flags().StringVar(&gClient, "client", "", "client id")

	var gRefresh string
	grantRefreshCmd := &cobra.Command{
		Use:   "refresh",
		Short: "Refresh-token grant",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, body, err := cl.postForm("/tokens", url.Values{
				"grant_type":    {"refresh_token"},
				"refresh_token": {gRefresh},
			})
			if err != nil {
				return err
			}
			printBody(status, body)
			return nil
		},
	}
	grantRefreshCmd.Flags().StringVar(&gRefresh, "token", "", "refresh token string")

	var gCode string
	grantFacebookCmd := &cobra.Command{
		Use:   "facebook",
		Short: "Facebook code grant",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, body, err := cl.postForm("/tokens", url.Values{
				"grant_type": {"facebook"},
				"code":       {gCode},
			})
			if err != nil {
				return err
			}
			printBody(status, body)
			return nil
		},
	}
	grantFacebookCmd.Flags().StringVar(&gCode, "code", "", "facebook oauth code")

	grantCmd.AddCommand(grantPasswordCmd, grantRefreshCmd, grantFacebookCmd)

	// ── inspect / revoke ──
	var inspectID, inspectBearer string
	inspectCmd := &cobra.Command{
		Use:   "inspect",
		Short: "Read a token record (requires capability over it)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if inspectID == "" || inspectBearer == "" {
				return fmt.Errorf("--id and --access are required")
			}
			status, body, err := cl.do("GET", "/tokens/"+inspectID, inspectBearer)
			if err != nil {
				return err
			}
			printBody(status, body)
			return nil
		},
	}
	inspectCmd.Flags().StringVar(&inspectID, "id", "", "token id")
	inspectCmd.Flags().StringVar(&inspectBearer, "access", "", "bearer access token")

	var revokeAccess string
	revokeCmd := &cobra.Command{
		Use:   "revoke",
		Short: "Revoke a token by its access string",
		RunE: func(cmd *cobra.Command, args []string) error {
			if revokeAccess == "" {
				return fmt.Errorf("--access is required")
			}
			status, body, err := cl.do("DELETE", "/tokens/"+revokeAccess, "")
			if err != nil {
				return err
			}
			if status == http.StatusNoContent {
				fmt.Println("revoked")
				return nil
			}
			printBody(status, body)
			return nil
		},
	}
	revokeCmd.Flags().StringVar(&revokeAccess, "access", "", "access token string")

	root.AddCommand(seedCmd, migrateCmd, grantCmd, inspectCmd, revokeCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
