// Package handlers wires the grant engine to its HTTP surface.
package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/seralabs/tokend/internal/cache"
	"github.com/seralabs/tokend/internal/grant"
	httpx "github.com/seralabs/tokend/internal/http"
	"github.com/seralabs/tokend/internal/validation"
)

type TokenHandler struct {
	Svc   *grant.Service
	Cache cache.Client
}

// Issue handles POST /tokens. The body is a classic urlencoded grant form;
// which fields are required depends on grant_type.
func (h *TokenHandler) Issue(w http.ResponseWriter, r *http.Request) {
	if !httpx.ReadForm(w, r) {
		return
	}

	req := grant.Request{
		GrantType:    r.PostFormValue("grant_type"),
		Username:     r.PostFormValue("username"),
		Password:     r.PostFormValue("password"),
		ClientID:     r.PostFormValue("client_id"),
		RefreshToken: r.PostFormValue("refresh_token"),
		Code:         r.PostFormValue("code"),
	}
	validation.SanitizeGrant(&req)
	if err := validation.ValidateGrant(req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	resp, err := h.Svc.Grant(r.Context(), req)
	if err != nil {
		writeGrantError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// Inspect handles GET /tokens/{id}. The bearer token must carry read
// capability over the target.
func (h *TokenHandler) Inspect(w http.ResponseWriter, r *http.Request) {
	caller, ok := httpx.TokenFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_token", "missing bearer token")
		return
	}

	resp, err := h.Svc.Inspect(r.Context(), caller, chi.URLParam(r, "id"))
	if err != nil {
		writeGrantError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// Revoke handles DELETE /tokens/{access}. The path carries the access
// string itself; a revoked or unknown string is a 401 either way.
func (h *TokenHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	access := chi.URLParam(r, "id")
	if err := h.Svc.Revoke(r.Context(), access); err != nil {
		writeGrantError(w, err)
		return
	}
	httpx.DropCachedToken(h.Cache, access)
	w.WriteHeader(http.StatusNoContent)
}

func writeGrantError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, grant.ErrUnauthorized):
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_grant", "credentials are invalid or expired")
	case errors.Is(err, grant.ErrUnprocessable):
		httpx.WriteError(w, http.StatusUnprocessableEntity, "unsupported_grant_type", "unknown grant_type")
	case errors.Is(err, grant.ErrConflict):
		httpx.WriteError(w, http.StatusConflict, "conflict", "token was renewed concurrently, retry")
	default:
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
	}
}
