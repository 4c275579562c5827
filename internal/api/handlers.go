package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/callcenter-console/internal/models"
)

const (
	msgCredentialsRequired = "Логин и пароль обязательны"
	msgInvalidCredentials  = "Неверный логин или пароль"
	msgLockedOut           = "Слишком много попыток входа, попробуйте позже"
	msgTooManyRequests     = "Слишком много запросов"
	msgBadRequest          = "Некорректный запрос"
	msgBadID               = "Некорректный идентификатор"
	msgInternal            = "Внутренняя ошибка сервера"

	msgUserCreated = "Пользователь создан"
	msgUserUpdated = "Пользователь обновлен"
	msgUserDeleted = "Пользователь удален"
	msgCallEnded   = "Звонок завершен"
	msgUnknownOp   = "Неизвестное действие"
)

// errorMessages maps store errors to the status and text sent to clients.
var errorMessages = []struct {
	err     error
	status  int
	message string
}{
	{models.ErrInvalidCredentials, http.StatusUnauthorized, msgInvalidCredentials},
	{models.ErrLockedOut, http.StatusTooManyRequests, msgLockedOut},
	{models.ErrUserNotFound, http.StatusNotFound, "Пользователь не найден"},
	{models.ErrUserAlreadyExists, http.StatusConflict, "Пользователь с таким логином уже существует"},
	{models.ErrInvalidRole, http.StatusBadRequest, "Недопустимая роль"},
	{models.ErrInvalidStatus, http.StatusBadRequest, "Недопустимый статус"},
	{models.ErrMissingFields, http.StatusBadRequest, "Заполните обязательные поля"},
	{models.ErrCallNotFound, http.StatusNotFound, "Звонок не найден"},
	{models.ErrCallNotActive, http.StatusConflict, "Звонок уже завершен"},
	{models.ErrMissingNumber, http.StatusBadRequest, "Укажите номер телефона"},
	{models.ErrNegativeDuration, http.StatusBadRequest, "Длительность не может быть отрицательной"},
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[API] Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, models.ErrorResponse{Error: message})
}

// writeStoreError translates err into a client response. Unknown errors are
// logged and reported without details.
func writeStoreError(w http.ResponseWriter, op string, err error) {
	for _, m := range errorMessages {
		if errors.Is(err, m.err) {
			writeError(w, m.status, m.message)
			return
		}
	}
	log.Printf("[API] %s error: %v", op, err)
	writeError(w, http.StatusInternalServerError, msgInternal)
}

func decodeBody(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func (s *Server) handleAuth(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgBadRequest)
		return
	}

	username := models.NormalizeUsername(req.Username)
	if username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, msgCredentialsRequired)
		return
	}

	ctx := r.Context()
	if s.lockout != nil {
		locked, err := s.lockout.Locked(ctx, username)
		if err != nil {
			log.Printf("[API] Lockout check failed for %q: %v", username, err)
		} else if locked {
			writeStoreError(w, "auth", models.ErrLockedOut)
			return
		}
	}

	user, err := s.store.Authenticate(ctx, username, req.Password)
	if err != nil {
		if errors.Is(err, models.ErrInvalidCredentials) && s.lockout != nil {
			if ferr := s.lockout.Fail(ctx, username); ferr != nil {
				log.Printf("[API] Failed to record login failure for %q: %v", username, ferr)
			}
		}
		writeStoreError(w, "auth", err)
		return
	}

	if s.lockout != nil {
		if err := s.lockout.Reset(ctx, username); err != nil {
			log.Printf("[API] Failed to reset login failures for %q: %v", username, err)
		}
	}

	log.Printf("[API] User %q signed in (id=%d, role=%s)", user.Username, user.ID, user.Role)
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.store.ListUsers(r.Context())
	if err != nil {
		writeStoreError(w, "list users", err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req models.CreateUserRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgBadRequest)
		return
	}

	id, err := s.store.CreateUser(r.Context(), req)
	if err != nil {
		writeStoreError(w, "create user", err)
		return
	}
	writeJSON(w, http.StatusCreated, models.CreateUserResponse{ID: id, Message: msgUserCreated})
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateUserRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgBadRequest)
		return
	}
	if req.ID <= 0 {
		writeError(w, http.StatusBadRequest, msgBadID)
		return
	}

	if err := s.store.UpdateUser(r.Context(), req); err != nil {
		writeStoreError(w, "update user", err)
		return
	}
	writeJSON(w, http.StatusOK, models.MessageResponse{Message: msgUserUpdated})
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.URL.Query().Get("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, msgBadID)
		return
	}

	if err := s.store.DeleteUser(r.Context(), id); err != nil {
		writeStoreError(w, "delete user", err)
		return
	}
	writeJSON(w, http.StatusOK, models.MessageResponse{Message: msgUserDeleted})
}

func (s *Server) handleListCalls(w http.ResponseWriter, r *http.Request) {
	calls, err := s.store.ListCalls(r.Context(), s.callLimit)
	if err != nil {
		writeStoreError(w, "list calls", err)
		return
	}
	writeJSON(w, http.StatusOK, calls)
}

func (s *Server) handleCallAction(w http.ResponseWriter, r *http.Request) {
	var req models.CallActionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgBadRequest)
		return
	}

	switch req.Action {
	case models.ActionInitiate:
		log.Printf("[API] Initiate call: caller_number=%s", req.CallerNumber)
		res, err := s.store.InitiateCall(r.Context(), req.CallerNumber)
		if err != nil {
			writeStoreError(w, "initiate call", err)
			return
		}
		writeJSON(w, http.StatusOK, res)

	case models.ActionEnd:
		if req.CallID <= 0 {
			writeError(w, http.StatusBadRequest, msgBadID)
			return
		}
		err := s.store.EndCall(r.Context(), models.EndCallRequest{
			CallID:   req.CallID,
			Duration: req.Duration,
			Notes:    req.Notes,
		})
		if err != nil {
			writeStoreError(w, "end call", err)
			return
		}
		writeJSON(w, http.StatusOK, models.MessageResponse{Message: msgCallEnded})

	default:
		writeError(w, http.StatusBadRequest, msgUnknownOp)
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.GetStatistics(r.Context())
	if err != nil {
		writeStoreError(w, "stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}
