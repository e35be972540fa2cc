// sessions.go — HTTP handlers операций над сессиями.
// Create/load, просмотр, каталог сетей, конвертация, настройки,
// смена текущей сети, проверка пароля, шаринг.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/sogi-tools/session-module/internal/api/errors"
	"github.com/sogi-tools/session-module/internal/domain/model"
	"github.com/sogi-tools/session-module/internal/service"
)

// SessionsHandler — обработчик endpoints сессий.
type SessionsHandler struct {
	svc *service.SessionService
}

// NewSessionsHandler создаёт обработчик endpoints сессий.
func NewSessionsHandler(svc *service.SessionService) *SessionsHandler {
	return &SessionsHandler{svc: svc}
}

// sessionView — представление сессии в API. Хэш пароля наружу
// не отдаётся, только флаг protected.
type sessionView struct {
	Seed         string             `json:"seed"`
	Title        string             `json:"title"`
	InterfaceURI string             `json:"interface_uri"`
	Privacy      model.Privacy      `json:"privacy"`
	Protected    bool               `json:"protected"`
	CurrentNet   string             `json:"current_net,omitempty"`
	JobState     model.JobState     `json:"job_state"`
	LastJobLabel string             `json:"last_job_label,omitempty"`
	LastJobAt    *time.Time         `json:"last_job_at,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
}

func toSessionView(s *model.Session) sessionView {
	return sessionView{
		Seed:         s.Seed,
		Title:        s.Title,
		InterfaceURI: s.InterfaceURI,
		Privacy:      s.Privacy,
		Protected:    s.Protected(),
		CurrentNet:   s.CurrentNet,
		JobState:     s.JobState,
		LastJobLabel: s.LastJobLabel,
		LastJobAt:    s.LastJobAt,
		CreatedAt:    s.CreatedAt,
	}
}

// writeServiceError преобразует ошибку сервисного слоя в HTTP-ответ.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		apierrors.ValidationError(w, err.Error())
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, err.Error())
	case errors.Is(err, service.ErrBusy):
		apierrors.JobRunning(w, err.Error())
	case errors.Is(err, service.ErrConflict):
		apierrors.CreationConflict(w, err.Error())
	default:
		apierrors.InternalError(w, err.Error())
	}
}

// CreateSession обрабатывает POST /api/v1/sessions.
// Возвращает 201 при создании и 200, если сессия уже существовала.
func (h *SessionsHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Seed     string `json:"seed"`
		Title    string `json:"title"`
		Owner    string `json:"owner"`
		Privacy  string `json:"privacy"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, fmt.Sprintf("Некорректный JSON: %s", err.Error()))
		return
	}

	sess, created, err := h.svc.CreateOrLoad(r.Context(), service.CreateParams{
		Seed:     req.Seed,
		Title:    req.Title,
		Owner:    req.Owner,
		Privacy:  req.Privacy,
		Password: req.Password,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, toSessionView(sess))
}

// GetSession обрабатывает GET /api/v1/sessions/{seed}.
func (h *SessionsHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.svc.Get(r.Context(), chi.URLParam(r, "seed"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionView(sess))
}

// ListNetworks обрабатывает GET /api/v1/sessions/{seed}/networks.
// Каждый запрос — свежий скан директории сессии.
func (h *SessionsHandler) ListNetworks(w http.ResponseWriter, r *http.Request) {
	networks, err := h.svc.NetworkList(r.Context(), chi.URLParam(r, "seed"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"networks": networks})
}

// Convert обрабатывает POST /api/v1/sessions/{seed}/convert.
// 409 JOB_RUNNING — для сессии уже выполняется операция.
func (h *SessionsHandler) Convert(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Network string `json:"network"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, fmt.Sprintf("Некорректный JSON: %s", err.Error()))
		return
	}

	out, err := h.svc.Convert(r.Context(), chi.URLParam(r, "seed"), req.Network)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"network": req.Network,
		"output":  string(out),
	})
}

// GetSettings обрабатывает GET /api/v1/sessions/{seed}/settings.
// В ответе присутствуют все whitelisted-ключи; незаписанные — null.
func (h *SessionsHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.svc.ReadSettings(r.Context(), chi.URLParam(r, "seed"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"settings": settings})
}

// PatchSettings обрабатывает PATCH /api/v1/sessions/{seed}/settings.
// Ключи вне whitelist принимаются и молча игнорируются.
func (h *SessionsHandler) PatchSettings(w http.ResponseWriter, r *http.Request) {
	var req map[string]string
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, fmt.Sprintf("Некорректный JSON: %s", err.Error()))
		return
	}

	seed := chi.URLParam(r, "seed")
	if err := h.svc.ApplySettings(r.Context(), seed, req); err != nil {
		writeServiceError(w, err)
		return
	}

	settings, err := h.svc.ReadSettings(r.Context(), seed)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"settings": settings})
}

// SetPrivacy обрабатывает PUT /api/v1/sessions/{seed}/privacy.
func (h *SessionsHandler) SetPrivacy(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Privacy string `json:"privacy"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, fmt.Sprintf("Некорректный JSON: %s", err.Error()))
		return
	}

	if err := h.svc.SetPrivacy(r.Context(), chi.URLParam(r, "seed"), req.Privacy); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"privacy": req.Privacy})
}

// SetCurrentNetwork обрабатывает PUT /api/v1/sessions/{seed}/current-network.
func (h *SessionsHandler) SetCurrentNetwork(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Network string `json:"network"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, fmt.Sprintf("Некорректный JSON: %s", err.Error()))
		return
	}

	if err := h.svc.SetCurrentNetwork(r.Context(), chi.URLParam(r, "seed"), req.Network); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"current_net": req.Network})
}

// CheckPassword обрабатывает POST /api/v1/sessions/{seed}/password-check.
// Для незащищённой сессии match всегда false.
func (h *SessionsHandler) CheckPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, fmt.Sprintf("Некорректный JSON: %s", err.Error()))
		return
	}

	match, err := h.svc.IsPasswordMatch(r.Context(), chi.URLParam(r, "seed"), req.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"match": match})
}

// ListShares обрабатывает GET /api/v1/sessions/{seed}/shares.
func (h *SessionsHandler) ListShares(w http.ResponseWriter, r *http.Request) {
	nicknames, err := h.svc.SharedWith(r.Context(), chi.URLParam(r, "seed"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if nicknames == nil {
		nicknames = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"shared_with": nicknames})
}

// AddShare обрабатывает POST /api/v1/sessions/{seed}/shares.
// Повторный шаринг и шаринг с владельцем — no-op (added: false).
func (h *SessionsHandler) AddShare(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Nickname string `json:"nickname"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, fmt.Sprintf("Некорректный JSON: %s", err.Error()))
		return
	}
	if req.Nickname == "" {
		apierrors.ValidationError(w, "Поле 'nickname' обязательно")
		return
	}

	added, err := h.svc.ShareWith(r.Context(), chi.URLParam(r, "seed"), req.Nickname)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"nickname": req.Nickname,
		"added":    added,
	})
}

// RemoveShare обрабатывает DELETE /api/v1/sessions/{seed}/shares/{nickname}.
func (h *SessionsHandler) RemoveShare(w http.ResponseWriter, r *http.Request) {
	err := h.svc.RevokeShareWith(r.Context(),
		chi.URLParam(r, "seed"), chi.URLParam(r, "nickname"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
