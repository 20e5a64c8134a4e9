package handlers

import (
	"encoding/json"

	"github.com/examviewer/backend/pkg/models"
	"github.com/examviewer/backend/pkg/services"
	"github.com/valyala/fasthttp"
)

// SessionHandler maneja las peticiones HTTP del historial de sesiones
type SessionHandler struct {
	sessionService *services.SessionService
	stateService   *services.StateService
	bankService    *services.BankService
}

// NewSessionHandler crea una nueva instancia del handler
func NewSessionHandler(sessionService *services.SessionService, stateService *services.StateService, bankService *services.BankService) *SessionHandler {
	return &SessionHandler{
		sessionService: sessionService,
		stateService:   stateService,
		bankService:    bankService,
	}
}

// GetCurrentSession maneja GET /api/sessions/current
func (h *SessionHandler) GetCurrentSession(ctx *fasthttp.RequestCtx) {
	code, _ := h.bankService.CurrentExam()
	session := h.sessionService.CurrentSession(code)
	if session == nil {
		respondWithError(ctx, fasthttp.StatusNotFound, "No hay sesión en curso")
		return
	}

	respondWithSuccess(ctx, models.SessionResponse{Session: session}, "Sesión actual obtenida")
}

// GetHistory maneja GET /api/sessions?exam=CODE
func (h *SessionHandler) GetHistory(ctx *fasthttp.RequestCtx) {
	examCode := string(ctx.QueryArgs().Peek("exam"))
	sessions := h.sessionService.GetSessionHistory(examCode)

	respondWithSuccess(ctx, models.SessionResponse{Sessions: sessions}, "Historial de sesiones obtenido")
}

// EndCurrentSession maneja POST /api/sessions/end
// Se invoca cuando el usuario navega fuera del examen o lo reinicia.
func (h *SessionHandler) EndCurrentSession(ctx *fasthttp.RequestCtx) {
	code, _ := h.bankService.CurrentExam()
	if code == "" {
		respondWithError(ctx, fasthttp.StatusNotFound, "No hay examen cargado")
		return
	}

	h.sessionService.EndSession(code, h.stateService.Progress())
	respondWithSuccess(ctx, nil, "Sesión cerrada exitosamente")
}

// ClearHistory maneja POST /api/sessions/clear
// Conserva siempre la sesión más reciente de cada examen afectado.
func (h *SessionHandler) ClearHistory(ctx *fasthttp.RequestCtx) {
	var req struct {
		ExamCode string `json:"examCode,omitempty"`
	}
	if len(ctx.PostBody()) > 0 {
		if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
			respondWithError(ctx, fasthttp.StatusBadRequest, "Cuerpo de petición inválido")
			return
		}
	}

	removed := h.sessionService.ClearSessionHistory(req.ExamCode)
	respondWithSuccess(ctx, map[string]interface{}{
		"removed": removed,
	}, "Historial limpiado exitosamente")
}

// FinalizePending maneja POST /api/sessions/finalize
func (h *SessionHandler) FinalizePending(ctx *fasthttp.RequestCtx) {
	closed := h.sessionService.FinalizePendingSessions()
	respondWithSuccess(ctx, map[string]interface{}{
		"closed": closed,
	}, "Sesiones abandonadas cerradas")
}
