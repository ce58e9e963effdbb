// Package grant implements the token grant engine: issue-or-reuse for the
// password and federated paths, in-place renewal for the refresh path, and
// the conflict-retry protocol that makes concurrent renewals safe.
package grant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/seralabs/tokend/internal/metrics"
	"github.com/seralabs/tokend/internal/oauth/facebook"
	"github.com/seralabs/tokend/internal/observability/logger"
	"github.com/seralabs/tokend/internal/permission"
	"github.com/seralabs/tokend/internal/retry"
	"github.com/seralabs/tokend/internal/security/password"
	"github.com/seralabs/tokend/internal/security/token"
	"github.com/seralabs/tokend/internal/store/core"
)

// IdentityProvider is the outbound federation contract (see oauth/facebook).
type IdentityProvider interface {
	ExchangeCode(ctx context.Context, code string) (string, error)
	FetchProfile(ctx context.Context, accessToken string) (*facebook.Profile, error)
}

type Options struct {
	// Accessible and Refreshable are the lifetimes stamped on new tokens.
	Accessible  time.Duration
	Refreshable time.Duration

	// MinAccessibility is the reuse threshold: an existing token is
	// returned as-is while its accessibility is strictly above this.
	MinAccessibility time.Duration

	// Refresh conflict-retry budget.
	RetryAttempts int
	RetryDelay    time.Duration
}

func (o *Options) defaults() {
	if o.Accessible <= 0 {
		o.Accessible = time.Hour
	}
	if o.Refreshable <= 0 {
		o.Refreshable = 30 * 24 * time.Hour
	}
	if o.MinAccessibility <= 0 {
		o.MinAccessibility = 20 * time.Second
	}
	if o.RetryAttempts <= 0 {
		o.RetryAttempts = 4
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = 500 * time.Millisecond
	}
}

type Service struct {
	repo       core.Repository
	firstParty core.Client
	provider   IdentityProvider
	opts       Options
	grants     *metrics.Grants
	log        *zap.Logger

	now func() time.Time
}

// New wires the engine. firstParty is the platform's own client, resolved
// once at startup and injected here; the engine never re-reads it.
func New(repo core.Repository, firstParty core.Client, provider IdentityProvider, opts Options, grants *metrics.Grants) *Service {
	opts.defaults()
	return &Service{
		repo:       repo,
		firstParty: firstParty,
		provider:   provider,
		opts:       opts,
		grants:     grants,
		log:        logger.Named("grant"),
		now:        time.Now,
	}
}

// Grant routes a parsed request to the password, refresh or federated path.
func (s *Service) Grant(ctx context.Context, req Request) (*TokenResponse, error) {
	var (
		resp *TokenResponse
		err  error
	)
	switch req.GrantType {
	case TypePassword:
		resp, err = s.PasswordGrant(ctx, req.Username, req.Password, req.ClientID)
	case TypeRefresh:
		resp, err = s.RefreshGrant(ctx, req.RefreshToken)
	case TypeFacebook:
		resp, err = s.FacebookGrant(ctx, req.Code)
	default:
		return nil, fmt.Errorf("%w: unknown grant_type %q", ErrUnprocessable, req.GrantType)
	}
	s.grants.Observe(req.GrantType, result(err))
	return resp, err
}

func result(err error) string {
	if err == nil {
		return "ok"
	}
	switch {
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrUnprocessable):
		return "unprocessable"
	default:
		return "error"
	}
}

// PasswordGrant authenticates the resource owner and issues (or reuses) a
// token for the requested client.
func (s *Service) PasswordGrant(ctx context.Context, username, plaintext, clientID string) (*TokenResponse, error) {
	user, err := s.repo.FindUserByEmail(ctx, username)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, ErrUnauthorized
		}
		s.log.Error("user lookup failed", zap.Error(err))
		return nil, ErrServer
	}
	if !password.Verify(plaintext, user.PasswordHash) {
		return nil, ErrUnauthorized
	}
	return s.sendToken(ctx, clientID, user)
}

// sendToken is the shared issue-or-reuse primitive. It never renews: an
// existing token still strictly above the threshold is returned untouched;
// anything else gets a fresh token for the (user, client) pair.
func (s *Service) sendToken(ctx context.Context, clientID string, user *core.User) (*TokenResponse, error) {
	client, err := s.repo.FindClientByID(ctx, clientID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, ErrUnauthorized
		}
		s.log.Error("client lookup failed", zap.Error(err))
		return nil, ErrServer
	}

	existing, err := s.repo.FindTokenByUserClient(ctx, user.ID, client.ID)
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		s.log.Error("token lookup failed", zap.Error(err))
		return nil, ErrServer
	}
	if existing != nil {
		if left := existing.Accessibility(s.now()); left > s.opts.MinAccessibility {
			return &TokenResponse{
				ID:           existing.ID,
				AccessToken:  existing.Access,
				RefreshToken: existing.Refresh,
				ExpiresIn:    seconds(left),
			}, nil
		}
		// Stale row for the pair; clear it so the insert below can land.
		// A racer deleting the same row is harmless.
		if err := s.repo.DeleteToken(ctx, existing.ID); err != nil && !errors.Is(err, core.ErrNotFound) {
			s.log.Error("stale token delete failed", zap.Error(err))
			return nil, ErrServer
		}
	}

	created, err := s.createToken(ctx, user.ID, client.ID)
	if err != nil {
		// A lost creation race lands here too; this path carries no
		// retry protocol, the caller simply tries again.
		s.log.Error("token create failed", zap.Error(err))
		return nil, ErrServer
	}
	return &TokenResponse{
		ID:           created.ID,
		AccessToken:  created.Access,
		RefreshToken: created.Refresh,
		ExpiresIn:    seconds(created.Accessible),
	}, nil
}

func (s *Service) createToken(ctx context.Context, userID, clientID string) (*core.Token, error) {
	access, err := token.Generate(32)
	if err != nil {
		return nil, err
	}
	refresh, err := token.Generate(32)
	if err != nil {
		return nil, err
	}
	id := uuid.NewString()
	t := &core.Token{
		ID:          id,
		UserID:      userID,
		ClientID:    clientID,
		Access:      access,
		Refresh:     refresh,
		Created:     s.now(),
		Accessible:  s.opts.Accessible,
		Refreshable: s.opts.Refreshable,
		// The token can always read itself.
		Has: permission.Set{"tokens:" + id: {"read"}},
	}
	return s.repo.CreateToken(ctx, t)
}

// RefreshGrant runs the refresh sequence under the conflict-retry wrapper:
// a storage conflict (a concurrent caller renewed first) retries the whole
// sequence so the loser observes the winner's renewed token.
func (s *Service) RefreshGrant(ctx context.Context, refreshString string) (*TokenResponse, error) {
	var (
		resp    *TokenResponse
		tokenID string
	)
	err := retry.Do(ctx, retry.Policy{
		Attempts: s.opts.RetryAttempts,
		Delay:    s.opts.RetryDelay,
		RetryIf:  func(err error) bool { return errors.Is(err, core.ErrConflict) },
	}, func(ctx context.Context) error {
		var attemptErr error
		resp, tokenID, attemptErr = s.sendRefreshToken(ctx, refreshString, tokenID)
		return attemptErr
	})
	if errors.Is(err, core.ErrConflict) {
		// Retry budget exhausted.
		return nil, ErrConflict
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// sendRefreshToken is one refresh attempt. It returns core.ErrConflict
// (unwrapped) as the transient lost-the-race signal; every other failure is
// already mapped to a grant kind and is terminal.
//
// priorID is the token id resolved by an earlier attempt. When the refresh
// string no longer resolves because a concurrent winner rotated it, the
// retry falls back to the id so the loser observes the winner's renewed
// token instead of failing outright.
func (s *Service) sendRefreshToken(ctx context.Context, refreshString, priorID string) (*TokenResponse, string, error) {
	tok, err := s.repo.FindTokenByRefresh(ctx, refreshString)
	if errors.Is(err, core.ErrNotFound) && priorID != "" {
		tok, err = s.repo.FindTokenByID(ctx, priorID)
	}
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, priorID, ErrUnauthorized
		}
		s.log.Error("refresh lookup failed", zap.Error(err))
		return nil, priorID, ErrServer
	}

	now := s.now()
	if tok.Refreshability(now) == 0 {
		// Refresh window fully elapsed; re-authenticate from scratch.
		return nil, tok.ID, ErrUnauthorized
	}
	if left := tok.Accessibility(now); left > s.opts.MinAccessibility {
		// Refreshing a still-fresh token is an idempotent read.
		return &TokenResponse{
			AccessToken:  tok.Access,
			RefreshToken: tok.Refresh,
			ExpiresIn:    seconds(left),
		}, tok.ID, nil
	}

	access, err := token.Generate(32)
	if err != nil {
		return nil, tok.ID, ErrServer
	}
	refresh, err := token.Generate(32)
	if err != nil {
		return nil, tok.ID, ErrServer
	}
	if err := s.repo.RenewToken(ctx, tok.ID, tok.Created, access, refresh, now); err != nil {
		if errors.Is(err, core.ErrConflict) {
			s.grants.Conflicted()
			return nil, tok.ID, core.ErrConflict
		}
		s.log.Error("token renew failed", zap.Error(err))
		return nil, tok.ID, ErrServer
	}
	s.grants.Renewed()

	renewed, err := s.repo.FindTokenByID(ctx, tok.ID)
	if err != nil {
		s.log.Error("token reload failed", zap.Error(err))
		return nil, tok.ID, ErrServer
	}
	return &TokenResponse{
		AccessToken:  renewed.Access,
		RefreshToken: renewed.Refresh,
		ExpiresIn:    seconds(renewed.Accessible),
	}, tok.ID, nil
}

// FacebookGrant exchanges a federated authorization code for a local token
// against the first-party client, creating the local user on first login.
func (s *Service) FacebookGrant(ctx context.Context, code string) (*TokenResponse, error) {
	providerToken, err := s.provider.ExchangeCode(ctx, code)
	if err != nil {
		return nil, s.mapProviderErr("code exchange", err)
	}
	prof, err := s.provider.FetchProfile(ctx, providerToken)
	if err != nil {
		return nil, s.mapProviderErr("profile fetch", err)
	}
	if prof.Email == "" {
		// The provider's identity contract is broken; never create a user.
		s.log.Error("provider profile missing email")
		return nil, ErrServer
	}

	user, err := s.repo.FindUserByEmail(ctx, prof.Email)
	switch {
	case err == nil:
		return s.sendToken(ctx, s.firstParty.ID, user)
	case errors.Is(err, core.ErrNotFound):
		// fall through to create
	default:
		s.log.Error("user lookup failed", zap.Error(err))
		return nil, ErrServer
	}

	user, err = s.repo.CreateUser(ctx, &core.User{
		ID:        uuid.NewString(),
		Email:     prof.Email,
		FirstName: prof.FirstName,
		LastName:  prof.LastName,
		CreatedAt: s.now(),
	})
	if err != nil {
		if errors.Is(err, core.ErrConflict) {
			// Concurrent federated signup for the same email; the row
			// exists now, use it.
			user, err = s.repo.FindUserByEmail(ctx, prof.Email)
			if err != nil {
				s.log.Error("user re-query failed", zap.Error(err))
				return nil, ErrServer
			}
			return s.sendToken(ctx, s.firstParty.ID, user)
		}
		s.log.Error("user create failed", zap.Error(err))
		return nil, ErrServer
	}
	s.grants.UserCreated()
	return s.sendToken(ctx, s.firstParty.ID, user)
}

func (s *Service) mapProviderErr(op string, err error) error {
	if errors.Is(err, facebook.ErrDenied) {
		return ErrUnauthorized
	}
	s.log.Error("provider call failed", zap.String("op", op), zap.Error(err))
	return ErrServer
}

// Authenticate resolves a bearer access string to its live token. Used by
// the HTTP auth middleware.
func (s *Service) Authenticate(ctx context.Context, access string) (*core.Token, error) {
	tok, err := s.repo.FindTokenByAccess(ctx, access)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, ErrUnauthorized
		}
		s.log.Error("access lookup failed", zap.Error(err))
		return nil, ErrServer
	}
	if tok.Accessibility(s.now()) == 0 {
		return nil, ErrUnauthorized
	}
	return tok, nil
}

// Inspect returns the target token's record with its effective permission
// set (token ∪ client ∪ user). The caller's own effective set must grant
// read on "tokens:<id>"; absence of the target is indistinguishable from a
// failed capability check.
func (s *Service) Inspect(ctx context.Context, caller *core.Token, targetID string) (*InspectResponse, error) {
	callerSet, err := s.effectiveSet(ctx, caller)
	if err != nil {
		return nil, err
	}
	if !callerSet.Can("tokens:"+targetID, "read") {
		return nil, ErrUnauthorized
	}

	target, err := s.repo.FindTokenByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, ErrUnauthorized
		}
		s.log.Error("token lookup failed", zap.Error(err))
		return nil, ErrServer
	}
	has, err := s.effectiveSet(ctx, target)
	if err != nil {
		return nil, err
	}
	return &InspectResponse{
		ID:          target.ID,
		User:        target.UserID,
		Client:      target.ClientID,
		Access:      target.Access,
		Refresh:     target.Refresh,
		Created:     target.Created,
		Accessible:  seconds(target.Accessible),
		Refreshable: seconds(target.Refreshable),
		Has:         has,
	}, nil
}

func (s *Service) effectiveSet(ctx context.Context, tok *core.Token) (permission.Set, error) {
	user, err := s.repo.FindUserByID(ctx, tok.UserID)
	if err != nil {
		s.log.Error("user lookup failed", zap.Error(err))
		return nil, ErrServer
	}
	client, err := s.repo.FindClientByID(ctx, tok.ClientID)
	if err != nil {
		s.log.Error("client lookup failed", zap.Error(err))
		return nil, ErrServer
	}
	return permission.Merge(tok.Has, client.Has, user.Has), nil
}

// Revoke deletes the token matching the access string. A missing token is
// unauthorized, not "not found": existence is never leaked.
func (s *Service) Revoke(ctx context.Context, access string) error {
	tok, err := s.repo.FindTokenByAccess(ctx, access)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return ErrUnauthorized
		}
		s.log.Error("access lookup failed", zap.Error(err))
		return ErrServer
	}
	if err := s.repo.DeleteToken(ctx, tok.ID); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return ErrUnauthorized
		}
		s.log.Error("token delete failed", zap.Error(err))
		return ErrServer
	}
	return nil
}
