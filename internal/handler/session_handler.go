package handler

import (
	"log/slog"
	"net/http"

	"github.com/hitoshi/freshmart/internal/model"
	"github.com/hitoshi/freshmart/internal/storefront"
)

// SessionHandler はログイン状態のHTTPハンドラー。
type SessionHandler struct {
	base
}

// NewSessionHandler はSessionHandlerを生成する。
func NewSessionHandler(states StateOpener, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{base{states: states, logger: logger}}
}

type sessionResponse struct {
	Authenticated bool        `json:"authenticated"`
	User          *model.User `json:"user"`
	IsAdmin       bool        `json:"is_admin"`
}

func newSessionResponse(sess model.Session) sessionResponse {
	if !sess.Authenticated() {
		return sessionResponse{}
	}
	return sessionResponse{Authenticated: true, User: sess.User, IsAdmin: sess.User.IsAdmin()}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Get は現在のログイン状態を返す。トークンは返さない。
// GET /api/session
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	h.withState(w, r, func(st *storefront.State) {
		writeJSON(w, http.StatusOK, newSessionResponse(st.Session.Get()))
	})
}

// Login はユーザー名とパスワードでログインする。
// POST /api/session/login
func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	h.withState(w, r, func(st *storefront.State) {
		if _, err := st.Auth().Login(r.Context(), req.Username, req.Password); err != nil {
			handleServiceError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, newSessionResponse(st.Session.Get()))
	})
}

// Register はアカウントを作成し、そのままログインする。
// POST /api/session/register
func (h *SessionHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req model.Registration
	if !decodeJSON(w, r, &req, false) {
		return
	}

	h.withState(w, r, func(st *storefront.State) {
		if _, err := st.Auth().Register(r.Context(), req); err != nil {
			handleServiceError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, newSessionResponse(st.Session.Get()))
	})
}

// Logout はセッションを破棄する。カートは保持する。
// POST /api/session/logout
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.withState(w, r, func(st *storefront.State) {
		if err := st.Auth().Logout(r.Context()); err != nil {
			handleServiceError(w, h.logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}
