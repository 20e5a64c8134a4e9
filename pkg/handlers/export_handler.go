package handlers

import (
	"fmt"

	"github.com/examviewer/backend/pkg/models"
	"github.com/examviewer/backend/pkg/services"
	"github.com/valyala/fasthttp"
)

// ExportHandler maneja la exportación e importación de estadísticas y los
// volcados de preguntas
type ExportHandler struct {
	exportService *services.ExportService
}

// NewExportHandler crea una nueva instancia del handler
func NewExportHandler(exportService *services.ExportService) *ExportHandler {
	return &ExportHandler{exportService: exportService}
}

// ExportStatistics maneja GET /api/statistics/export
func (h *ExportHandler) ExportStatistics(ctx *fasthttp.RequestCtx) {
	respondWithSuccess(ctx, h.exportService.ExportStatistics(), "Estadísticas exportadas exitosamente")
}

// ImportStatistics maneja POST /api/statistics/import
// La importación es todo o nada: datos malformados o parciales se rechazan
// sin tocar las estadísticas existentes.
func (h *ExportHandler) ImportStatistics(ctx *fasthttp.RequestCtx) {
	if !h.exportService.ImportStatistics(ctx.PostBody()) {
		respondWithError(ctx, fasthttp.StatusBadRequest, "Estadísticas inválidas: se requieren los campos numéricos totalAnswered, totalCorrect y totalTime")
		return
	}
	respondWithSuccess(ctx, nil, "Estadísticas importadas exitosamente")
}

// ExportQuestions maneja GET /api/export?format=json&includeAnswers=true...
func (h *ExportHandler) ExportQuestions(ctx *fasthttp.RequestCtx) {
	args := ctx.QueryArgs()
	opts := models.ExportOptions{
		Format:              string(args.Peek("format")),
		IncludeAnswers:      args.GetBool("includeAnswers"),
		IncludeExplanations: args.GetBool("includeExplanations"),
		IncludeStatistics:   args.GetBool("includeStatistics"),
		FilterByStatus:      string(args.Peek("filterByStatus")),
		FilterByDifficulty:  string(args.Peek("filterByDifficulty")),
	}

	data, contentType, err := h.exportService.ExportQuestions(opts)
	if err != nil {
		respondWithError(ctx, fasthttp.StatusBadRequest, fmt.Sprintf("Error exportando: %v", err))
		return
	}

	ctx.Response.Header.Set("Content-Type", contentType)
	ctx.SetStatusCode(fasthttp.StatusOK)
	ctx.SetBody(data)
}
