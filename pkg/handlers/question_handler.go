package handlers

import (
	"fmt"
	"strconv"

	"github.com/examviewer/backend/pkg/models"
	"github.com/examviewer/backend/pkg/services"
	"github.com/valyala/fasthttp"
)

// QuestionHandler maneja las peticiones HTTP para el manifest, la carga de
// exámenes y la consulta de preguntas. La carga de un examen orquesta el
// resto de servicios: autocierre de sesiones viejas, reinicio del estado
// por pregunta, restauración de anotaciones y arranque de sesión.
type QuestionHandler struct {
	bankService    *services.BankService
	stateService   *services.StateService
	sessionService *services.SessionService
	examService    *services.ExamService
}

// NewQuestionHandler crea una nueva instancia del handler
func NewQuestionHandler(bankService *services.BankService, stateService *services.StateService, sessionService *services.SessionService, examService *services.ExamService) *QuestionHandler {
	return &QuestionHandler{
		bankService:    bankService,
		stateService:   stateService,
		sessionService: sessionService,
		examService:    examService,
	}
}

// GetManifest maneja GET /api/exams
func (h *QuestionHandler) GetManifest(ctx *fasthttp.RequestCtx) {
	manifest := h.bankService.Manifest()
	if manifest == nil {
		var err error
		manifest, err = h.bankService.LoadManifest()
		if err != nil {
			respondWithError(ctx, fasthttp.StatusServiceUnavailable, fmt.Sprintf("Error cargando manifest: %v", err))
			return
		}
	}

	respondWithSuccess(ctx, models.QuestionResponse{Manifest: manifest}, "Manifest obtenido exitosamente")
}

// LoadExam maneja POST /api/exams/{code}/load
func (h *QuestionHandler) LoadExam(ctx *fasthttp.RequestCtx) {
	code := ctx.UserValue("code").(string)
	if code == "" {
		respondWithError(ctx, fasthttp.StatusBadRequest, "Código de examen requerido")
		return
	}

	// Cerrar sesiones abandonadas antes de abrir una nueva
	h.sessionService.FinalizePendingSessions()

	// Si había otro examen con sesión activa, cerrarla
	if prevCode, _ := h.bankService.CurrentExam(); prevCode != "" && prevCode != code {
		h.sessionService.EndSession(prevCode, h.stateService.Progress())
		h.examService.Reset()
	}

	if err := h.bankService.LoadExam(code); err != nil {
		respondWithError(ctx, fasthttp.StatusNotFound, fmt.Sprintf("Error cargando examen: %v", err))
		return
	}

	// Intento fresco: el estado vivo se reinicia, las anotaciones se restauran
	questions := h.bankService.Questions()
	h.stateService.ResetForExam(code, questions)

	_, name := h.bankService.CurrentExam()
	session := h.sessionService.StartSession(code, name)

	respondWithSuccess(ctx, map[string]interface{}{
		"examCode":      code,
		"examName":      name,
		"questionCount": len(questions),
		"sessionId":     session.ID,
	}, "Examen cargado exitosamente")
}

// GetAllQuestions maneja GET /api/questions
func (h *QuestionHandler) GetAllQuestions(ctx *fasthttp.RequestCtx) {
	code, _ := h.bankService.CurrentExam()
	if code == "" {
		respondWithError(ctx, fasthttp.StatusNotFound, "No hay examen cargado")
		return
	}

	questions := h.bankService.Questions()
	if !h.examService.ShouldShowFeedback() {
		questions = hideFeedback(questions)
	}

	respondWithSuccess(ctx, models.QuestionResponse{
		Questions: questions,
		Count:     len(questions),
	}, "Preguntas obtenidas exitosamente")
}

// GetQuestion maneja GET /api/questions/{index}
func (h *QuestionHandler) GetQuestion(ctx *fasthttp.RequestCtx) {
	idxStr := ctx.UserValue("index").(string)
	index, err := strconv.Atoi(idxStr)
	if err != nil {
		respondWithError(ctx, fasthttp.StatusBadRequest, "Índice de pregunta inválido")
		return
	}

	question := h.bankService.Question(index)
	if question == nil {
		respondWithError(ctx, fasthttp.StatusNotFound, fmt.Sprintf("Pregunta %d no encontrada", index))
		return
	}

	// Durante un examen activo sin enviar se suprime toda la corrección
	if !h.examService.ShouldShowFeedback() {
		hidden := hideFeedback([]models.Question{*question})
		question = &hidden[0]
	}

	respondWithSuccess(ctx, models.QuestionResponse{Question: question}, "Pregunta obtenida exitosamente")
}

// hideFeedback devuelve copias sin indicadores de corrección, explicaciones
// ni comentarios de la comunidad
func hideFeedback(questions []models.Question) []models.Question {
	out := make([]models.Question, len(questions))
	for i, q := range questions {
		q.MostVoted = ""
		q.CorrectAnswer = ""
		q.CorrectAnswers = nil
		q.Explanation = ""
		q.Comments = nil
		out[i] = q
	}
	return out
}

// HealthCheck maneja GET /api/health
func (h *QuestionHandler) HealthCheck(ctx *fasthttp.RequestCtx) {
	if err := h.bankService.HealthCheck(); err != nil {
		respondWithError(ctx, fasthttp.StatusServiceUnavailable, fmt.Sprintf("Servicio no disponible: %v", err))
		return
	}

	respondWithSuccess(ctx, map[string]interface{}{
		"status":    "healthy",
		"isLoading": h.bankService.IsLoading(),
		"loadError": h.bankService.LoadError(),
	}, "Servicio funcionando correctamente")
}
