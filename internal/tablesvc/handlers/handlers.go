package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/jwtauth"
	log "github.com/sirupsen/logrus"

	"github.com/avvvet/pokerclub-services/internal/comm"
	"github.com/avvvet/pokerclub-services/internal/tablesvc/models"
	"github.com/avvvet/pokerclub-services/internal/tablesvc/service"
	"github.com/avvvet/pokerclub-services/internal/tablesvc/store"
)

type InviteManager interface {
	Create(ctx context.Context, req service.CreateInvite) (*service.CreatedInvite, error)
	Resolve(ctx context.Context, token string) (models.Resolution, error)
	Consume(ctx context.Context, token string) (*models.Invite, error)
	ListByTable(ctx context.Context, tableID string) ([]models.Invite, error)
}

type TableReader interface {
	GetTable(ctx context.Context, id string) (*models.Table, error)
	LoadAll(ctx context.Context) ([]models.Table, error)
}

type HandReader interface {
	ListHands(ctx context.Context, tableID string, limit, offset int) ([]models.Hand, error)
	ListActions(ctx context.Context, handID int64) ([]models.Action, error)
}

type UserReader interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
}

type Handler struct {
	tokenAuth *jwtauth.JWTAuth
	invites   InviteManager
	tables    TableReader
	hands     HandReader
	users     UserReader
	port      string
}

func NewHandler(invites InviteManager, tables TableReader, hands HandReader, users UserReader, port string) *Handler {
	return &Handler{
		invites: invites,
		tables:  tables,
		hands:   hands,
		users:   users,
		port:    port,
	}
}

type Response struct {
	Message string      `json:"message"`
	Code    int         `json:"code"`
	Data    interface{} `json:"data"`
	Error   string      `json:"error"`
}

func (h *Handler) CreateResponse(w http.ResponseWriter, rsp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rsp.Code)

	json.NewEncoder(w).Encode(rsp)
}

// writeJSON is for the public routes, which the mobile client reads as a
// flat object.
func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	json.NewEncoder(w).Encode(v)
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	if errors.Is(err, service.ErrForbidden) {
		return http.StatusForbidden
	}
	switch comm.CodeFor(err) {
	case comm.CodeNotFound:
		return http.StatusNotFound
	case comm.CodeExpired, comm.CodeExhausted:
		return http.StatusGone
	case comm.CodeInvalid:
		return http.StatusBadRequest
	case comm.CodeVersionConflict, comm.CodeHandFinished:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		log.Errorf("%s %s: %s", r.Method, r.URL.Path, err)
	}
	msg := err.Error()
	if code == http.StatusInternalServerError {
		msg = "internal error"
	}
	h.CreateResponse(w, Response{Message: "request failed", Code: code, Error: msg})
}

func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	rsp := Response{
		Message: "table service is running at port " + h.port,
		Code:    200,
		Data:    nil,
	}
	h.CreateResponse(w, rsp)
}

type inviteView struct {
	TableID       string     `json:"tableId"`
	ExpiresAt     *time.Time `json:"expiresAt"`
	RemainingUses int        `json:"remainingUses"`
}

type publicError struct {
	Error string `json:"error"`
}

// ResolveInvite answers GET /invites/{token} without consuming a use.
func (h *Handler) ResolveInvite(w http.ResponseWriter, r *http.Request) {
	res, err := h.invites.Resolve(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		h.publicFail(w, r, err)
		return
	}
	if !res.Valid() {
		writeJSON(w, http.StatusGone, publicError{Error: string(res.Status)})
		return
	}
	writeJSON(w, http.StatusOK, inviteView{
		TableID:       res.Invite.TableID,
		ExpiresAt:     res.Invite.ExpiresAt,
		RemainingUses: res.Invite.RemainingUses(),
	})
}

func (h *Handler) ConsumeInvite(w http.ResponseWriter, r *http.Request) {
	inv, err := h.invites.Consume(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		h.publicFail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		TableID   string `json:"tableId"`
		UsedCount int    `json:"usedCount"`
	}{inv.TableID, inv.UsedCount})
}

func (h *Handler) publicFail(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	var msg string
	switch {
	case errors.Is(err, store.ErrNotFound):
		msg = "not found"
	case errors.Is(err, store.ErrExpired):
		msg = string(models.InviteExpired)
	case errors.Is(err, store.ErrExhausted):
		msg = string(models.InviteExhausted)
	default:
		log.Errorf("%s %s: %s", r.Method, r.URL.Path, err)
		msg = "internal error"
	}
	writeJSON(w, code, publicError{Error: msg})
}

type createInviteRequest struct {
	ExpiresInSeconds *int64 `json:"expiresInSeconds"`
	MaxUses          *int   `json:"maxUses"`
}

func (h *Handler) CreateInvite(w http.ResponseWriter, r *http.Request) {
	var req createInviteRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.CreateResponse(w, Response{Message: "invalid body", Code: http.StatusBadRequest, Error: err.Error()})
			return
		}
	}

	created, err := h.invites.Create(r.Context(), service.CreateInvite{
		TableID:          chi.URLParam(r, "tableId"),
		ExpiresInSeconds: req.ExpiresInSeconds,
		MaxUses:          req.MaxUses,
		RequesterID:      requesterID(r),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.CreateResponse(w, Response{Message: "invite created", Code: http.StatusCreated, Data: created})
}

func (h *Handler) ListInvites(w http.ResponseWriter, r *http.Request) {
	invites, err := h.invites.ListByTable(r.Context(), chi.URLParam(r, "tableId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.CreateResponse(w, Response{Message: "ok", Code: http.StatusOK, Data: invites})
}

func (h *Handler) ListTables(w http.ResponseWriter, r *http.Request) {
	tables, err := h.tables.LoadAll(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.CreateResponse(w, Response{Message: "ok", Code: http.StatusOK, Data: tables})
}

func (h *Handler) GetTable(w http.ResponseWriter, r *http.Request) {
	table, err := h.tables.GetTable(r.Context(), chi.URLParam(r, "tableId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.CreateResponse(w, Response{Message: "ok", Code: http.StatusOK, Data: table})
}

func (h *Handler) ListHands(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		h.CreateResponse(w, Response{Message: "invalid limit", Code: http.StatusBadRequest, Error: err.Error()})
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		h.CreateResponse(w, Response{Message: "invalid offset", Code: http.StatusBadRequest, Error: err.Error()})
		return
	}

	hands, err := h.hands.ListHands(r.Context(), chi.URLParam(r, "tableId"), limit, offset)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.CreateResponse(w, Response{Message: "ok", Code: http.StatusOK, Data: hands})
}

func (h *Handler) ListActions(w http.ResponseWriter, r *http.Request) {
	handID, err := strconv.ParseInt(chi.URLParam(r, "handId"), 10, 64)
	if err != nil {
		h.CreateResponse(w, Response{Message: "invalid hand id", Code: http.StatusBadRequest, Error: err.Error()})
		return
	}

	actions, err := h.hands.ListActions(r.Context(), handID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.CreateResponse(w, Response{Message: "ok", Code: http.StatusOK, Data: actions})
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.GetUser(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.CreateResponse(w, Response{Message: "ok", Code: http.StatusOK, Data: user})
}

func queryInt(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

// requesterID is the user_id claim of the verified token. Service tokens
// carry no user_id and skip the owner check.
func requesterID(r *http.Request) string {
	_, claims, err := jwtauth.FromContext(r.Context())
	if err != nil {
		return ""
	}
	switch v := claims["user_id"].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatInt(int64(v), 10)
	default:
		return ""
	}
}
