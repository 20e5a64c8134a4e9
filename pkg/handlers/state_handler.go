package handlers

import (
	"encoding/json"
	"strconv"

	"github.com/examviewer/backend/pkg/models"
	"github.com/examviewer/backend/pkg/services"
	"github.com/valyala/fasthttp"
)

// StateHandler maneja las mutaciones del estado por pregunta y el motor de
// filtros sobre el examen cargado
type StateHandler struct {
	stateService  *services.StateService
	bankService   *services.BankService
	filterService *services.FilterService
	examService   *services.ExamService
}

// NewStateHandler crea una nueva instancia del handler
func NewStateHandler(stateService *services.StateService, bankService *services.BankService, filterService *services.FilterService, examService *services.ExamService) *StateHandler {
	return &StateHandler{
		stateService:  stateService,
		bankService:   bankService,
		filterService: filterService,
		examService:   examService,
	}
}

func (h *StateHandler) parseIndex(ctx *fasthttp.RequestCtx) (int, bool) {
	idxStr, _ := ctx.UserValue("index").(string)
	index, err := strconv.Atoi(idxStr)
	if err != nil || index < 0 {
		respondWithError(ctx, fasthttp.StatusBadRequest, "Índice de pregunta inválido")
		return 0, false
	}
	return index, true
}

// SubmitAnswer maneja POST /api/state/{index}/answer
func (h *StateHandler) SubmitAnswer(ctx *fasthttp.RequestCtx) {
	index, ok := h.parseIndex(ctx)
	if !ok {
		return
	}

	var req struct {
		SelectedAnswers []string `json:"selectedAnswers"`
	}
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		respondWithError(ctx, fasthttp.StatusBadRequest, "Cuerpo de petición inválido")
		return
	}

	h.stateService.SubmitAnswer(index, req.SelectedAnswers)

	state, _ := h.stateService.State(index)
	if !h.examService.ShouldShowFeedback() {
		// Durante el examen activo no se revela la corrección
		respondWithSuccess(ctx, map[string]interface{}{
			"status": models.StatusAnswered,
		}, "Respuesta registrada")
		return
	}

	respondWithSuccess(ctx, state, "Respuesta registrada")
}

// MarkAsPreview maneja POST /api/state/{index}/preview
func (h *StateHandler) MarkAsPreview(ctx *fasthttp.RequestCtx) {
	index, ok := h.parseIndex(ctx)
	if !ok {
		return
	}

	h.stateService.MarkAsPreview(index)
	state, _ := h.stateService.State(index)
	respondWithSuccess(ctx, state, "Pregunta marcada como vista previa")
}

// ResetQuestion maneja POST /api/state/{index}/reset
func (h *StateHandler) ResetQuestion(ctx *fasthttp.RequestCtx) {
	index, ok := h.parseIndex(ctx)
	if !ok {
		return
	}

	h.stateService.ResetQuestion(index)
	state, _ := h.stateService.State(index)
	respondWithSuccess(ctx, state, "Pregunta reiniciada")
}

// ToggleFavorite maneja POST /api/state/{index}/favorite
func (h *StateHandler) ToggleFavorite(ctx *fasthttp.RequestCtx) {
	index, ok := h.parseIndex(ctx)
	if !ok {
		return
	}

	h.stateService.ToggleFavorite(index)
	state, _ := h.stateService.State(index)
	respondWithSuccess(ctx, state, "Favorito actualizado")
}

// SetAnnotation maneja POST /api/state/{index}/annotation
// Acepta dificultad, notas y categoría en un solo cuerpo.
func (h *StateHandler) SetAnnotation(ctx *fasthttp.RequestCtx) {
	index, ok := h.parseIndex(ctx)
	if !ok {
		return
	}

	var req struct {
		Difficulty *string `json:"difficulty,omitempty"`
		Notes      *string `json:"notes,omitempty"`
		Category   *string `json:"category,omitempty"`
	}
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		respondWithError(ctx, fasthttp.StatusBadRequest, "Cuerpo de petición inválido")
		return
	}

	if req.Difficulty != nil {
		h.stateService.SetDifficulty(index, *req.Difficulty)
	}
	if req.Notes != nil {
		h.stateService.SetNotes(index, *req.Notes)
	}
	if req.Category != nil {
		h.stateService.SetCategory(index, *req.Category)
	}

	state, _ := h.stateService.State(index)
	respondWithSuccess(ctx, state, "Anotaciones actualizadas")
}

// GetQuestionState maneja GET /api/state/{index}
func (h *StateHandler) GetQuestionState(ctx *fasthttp.RequestCtx) {
	index, ok := h.parseIndex(ctx)
	if !ok {
		return
	}

	state, found := h.stateService.State(index)
	if !found {
		respondWithError(ctx, fasthttp.StatusNotFound, "Pregunta fuera de rango o examen no cargado")
		return
	}

	respondWithSuccess(ctx, map[string]interface{}{
		"state":             state,
		"status":            h.stateService.GetQuestionStatus(index),
		"firstAnswerStatus": h.stateService.GetFirstAnswerStatus(index),
	}, "Estado obtenido exitosamente")
}

// GetAllStates maneja GET /api/state
func (h *StateHandler) GetAllStates(ctx *fasthttp.RequestCtx) {
	respondWithSuccess(ctx, map[string]interface{}{
		"examCode": h.stateService.ExamCode(),
		"states":   h.stateService.States(),
		"progress": h.stateService.Progress(),
	}, "Estado completo obtenido")
}

// ApplyFilters maneja POST /api/filters
// Recalcula la lista filtrada, la persiste como preferencia del examen y
// resuelve la navegación si el índice actual quedó fuera del conjunto.
func (h *StateHandler) ApplyFilters(ctx *fasthttp.RequestCtx) {
	var req struct {
		Filter       models.FilterOptions `json:"filter"`
		CurrentIndex int                  `json:"currentIndex"`
	}
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		respondWithError(ctx, fasthttp.StatusBadRequest, "Cuerpo de petición inválido")
		return
	}

	questions := h.bankService.Questions()
	states := h.stateService.States()
	filtered := services.ApplyFilters(questions, states, req.Filter)
	target, navigated := services.ResolveCurrentIndex(req.CurrentIndex, filtered)

	code, _ := h.bankService.CurrentExam()
	h.filterService.SaveFilterPrefs(code, req.Filter)

	respondWithSuccess(ctx, map[string]interface{}{
		"filteredIndices": filtered,
		"count":           len(filtered),
		"currentIndex":    target,
		"navigated":       navigated,
	}, "Filtros aplicados exitosamente")
}

// GetFilterPrefs maneja GET /api/filters
func (h *StateHandler) GetFilterPrefs(ctx *fasthttp.RequestCtx) {
	code, _ := h.bankService.CurrentExam()
	respondWithSuccess(ctx, h.filterService.LoadFilterPrefs(code), "Preferencias de filtro obtenidas")
}
