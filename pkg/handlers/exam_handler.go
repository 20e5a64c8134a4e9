package handlers

import (
	"encoding/json"
	"log"
	"strconv"

	"github.com/examviewer/backend/pkg/models"
	"github.com/examviewer/backend/pkg/services"
	websocketHub "github.com/examviewer/backend/pkg/websocket"
	"github.com/fasthttp/websocket"
	"github.com/valyala/fasthttp"
)

// ExamHandler maneja el modo examen: inicio, envío, marcas de repaso y la
// conexión WebSocket por la que llegan los ticks y avisos del temporizador
type ExamHandler struct {
	examService    *services.ExamService
	sessionService *services.SessionService
	stateService   *services.StateService
	bankService    *services.BankService
	hub            *websocketHub.Hub
}

// NewExamHandler crea una nueva instancia del handler
func NewExamHandler(examService *services.ExamService, sessionService *services.SessionService, stateService *services.StateService, bankService *services.BankService, hub *websocketHub.Hub) *ExamHandler {
	return &ExamHandler{
		examService:    examService,
		sessionService: sessionService,
		stateService:   stateService,
		bankService:    bankService,
		hub:            hub,
	}
}

var upgrader = websocket.FastHTTPUpgrader{
	CheckOrigin: func(ctx *fasthttp.RequestCtx) bool {
		return true // herramienta local de un solo usuario
	},
}

// HandleWebSocket maneja las conexiones WebSocket
func (h *ExamHandler) HandleWebSocket(ctx *fasthttp.RequestCtx) {
	err := upgrader.Upgrade(ctx, func(ws *websocket.Conn) {
		defer ws.Close()

		h.hub.Register(ws)
		defer h.hub.Unregister(ws)

		// Enviar el estado actual del examen al conectarse
		state := h.examService.ExamState()
		message := websocketHub.Message{
			Type: "examState",
			Data: state,
		}
		data, _ := json.Marshal(message)
		ws.WriteMessage(websocket.TextMessage, data)

		for {
			_, _, err := ws.ReadMessage()
			if err != nil {
				break
			}
		}
	})

	if err != nil {
		log.Printf("Error upgrading to WebSocket: %v", err)
		ctx.Error("Error upgrading to WebSocket", fasthttp.StatusInternalServerError)
	}
}

// StartExam maneja POST /api/exam/start
func (h *ExamHandler) StartExam(ctx *fasthttp.RequestCtx) {
	var config models.ExamConfig
	if err := json.Unmarshal(ctx.PostBody(), &config); err != nil {
		respondWithError(ctx, fasthttp.StatusBadRequest, "Configuración de examen inválida")
		return
	}
	if config.QuestionSelection == "" {
		config.QuestionSelection = models.SelectionAll
	}

	indices, err := h.examService.StartExam(config)
	if err != nil {
		respondWithError(ctx, fasthttp.StatusBadRequest, err.Error())
		return
	}

	respondWithSuccess(ctx, map[string]interface{}{
		"filteredIndices": indices,
		"count":           len(indices),
		"state":           h.examService.ExamState(),
	}, "Examen iniciado exitosamente")
}

// FinishExam maneja POST /api/exam/finish
func (h *ExamHandler) FinishExam(ctx *fasthttp.RequestCtx) {
	result, err := h.examService.SubmitExam()
	if err != nil {
		respondWithError(ctx, fasthttp.StatusBadRequest, err.Error())
		return
	}

	// El envío cierra también la sesión de estudio en curso
	if code, _ := h.bankService.CurrentExam(); code != "" {
		h.sessionService.EndSession(code, h.stateService.Progress())
	}

	respondWithSuccess(ctx, result, "Examen enviado exitosamente")
}

// GetExamState maneja GET /api/exam/state
func (h *ExamHandler) GetExamState(ctx *fasthttp.RequestCtx) {
	respondWithSuccess(ctx, h.examService.ExamState(), "Estado del examen obtenido")
}

// GetResult maneja GET /api/exam/result
func (h *ExamHandler) GetResult(ctx *fasthttp.RequestCtx) {
	result := h.examService.Result()
	if result == nil {
		respondWithError(ctx, fasthttp.StatusNotFound, "Todavía no hay resultado de examen")
		return
	}
	respondWithSuccess(ctx, result, "Resultado obtenido exitosamente")
}

// ToggleReview maneja POST /api/exam/review/{index}
func (h *ExamHandler) ToggleReview(ctx *fasthttp.RequestCtx) {
	idxStr, _ := ctx.UserValue("index").(string)
	index, err := strconv.Atoi(idxStr)
	if err != nil || index < 0 {
		respondWithError(ctx, fasthttp.StatusBadRequest, "Índice de pregunta inválido")
		return
	}

	h.examService.ToggleQuestionForReview(index)
	respondWithSuccess(ctx, map[string]interface{}{
		"questionsMarkedForReview": h.examService.ExamState().QuestionsMarkedForReview,
	}, "Marca de repaso actualizada")
}

// PauseTimer maneja POST /api/exam/timer/pause
func (h *ExamHandler) PauseTimer(ctx *fasthttp.RequestCtx) {
	h.examService.PauseTimer()
	respondWithSuccess(ctx, h.examService.ExamState().Timer, "Temporizador pausado")
}

// ResumeTimer maneja POST /api/exam/timer/resume
func (h *ExamHandler) ResumeTimer(ctx *fasthttp.RequestCtx) {
	h.examService.ResumeTimer()
	respondWithSuccess(ctx, h.examService.ExamState().Timer, "Temporizador reanudado")
}

// ResetExam maneja POST /api/exam/reset
func (h *ExamHandler) ResetExam(ctx *fasthttp.RequestCtx) {
	h.examService.Reset()
	respondWithSuccess(ctx, h.examService.ExamState(), "Modo examen reiniciado")
}
