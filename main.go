package main

import (
	"log"
	"strings"

	"github.com/examviewer/backend/pkg/config"
	"github.com/examviewer/backend/pkg/handlers"
	"github.com/examviewer/backend/pkg/redis"
	"github.com/examviewer/backend/pkg/services"
	"github.com/examviewer/backend/pkg/websocket"
	"github.com/valyala/fasthttp"
)

var (
	cfg             *config.Config
	redisClient     *redis.RedisClient
	bankService     *services.BankService
	stateService    *services.StateService
	sessionService  *services.SessionService
	examService     *services.ExamService
	filterService   *services.FilterService
	exportService   *services.ExportService
	questionHandler *handlers.QuestionHandler
	stateHandler    *handlers.StateHandler
	sessionHandler  *handlers.SessionHandler
	examHandler     *handlers.ExamHandler
	exportHandler   *handlers.ExportHandler
	hub             *websocket.Hub
)

func main() {
	log.Println("🚀 Iniciando servidor Exam Viewer")

	var err error
	cfg, err = config.LoadConfig("config.yaml")
	if err != nil {
		log.Fatalf("❌ Error cargando configuración: %v", err)
	}

	initRedis()
	initServices()
	loadManifest()

	server := &fasthttp.Server{
		Handler: requestHandler,
		Name:    "ExamViewer Server",
	}

	log.Printf("📚 API disponible en http://localhost%s/api", cfg.Server.Addr)
	log.Println("🔄 Presiona Ctrl+C para detener el servidor")

	if err := server.ListenAndServe(cfg.Server.Addr); err != nil {
		log.Fatalf("Error al iniciar el servidor: %v", err)
	}
}

func initRedis() {
	log.Printf("🔌 Conectando a Redis en %s...", cfg.Redis.Addr)
	redisClient = redis.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
}

func initServices() {
	log.Println("⚙️  Inicializando servicios...")

	hub = websocket.NewHub()
	go hub.Run()

	bankService = services.NewBankService(redisClient, cfg.Data.Dir, cfg.Data.BaseURL)
	stateService = services.NewStateService(redisClient)
	sessionService = services.NewSessionService(redisClient, cfg.StaleAfter())
	filterService = services.NewFilterService(redisClient)
	examService = services.NewExamService(redisClient, hub)
	examService.SetStateService(stateService)
	examService.SetBankService(bankService)
	exportService = services.NewExportService(redisClient, sessionService, stateService, bankService)

	// El tracker de sesiones consume los eventos de respuesta en lugar de
	// que el almacén de estado lo invoque directamente
	stateService.Subscribe(func(evt services.AnswerEvent) {
		sessionService.UpdateCurrentSession(evt.ExamCode, evt.Progress)
		hub.BroadcastMessage("sessionUpdate", evt.Progress)
	})

	sessionService.RestoreFromRedis()
	sessionService.FinalizePendingSessions()

	questionHandler = handlers.NewQuestionHandler(bankService, stateService, sessionService, examService)
	stateHandler = handlers.NewStateHandler(stateService, bankService, filterService, examService)
	sessionHandler = handlers.NewSessionHandler(sessionService, stateService, bankService)
	examHandler = handlers.NewExamHandler(examService, sessionService, stateService, bankService, hub)
	exportHandler = handlers.NewExportHandler(exportService)
}

func loadManifest() {
	if _, err := bankService.LoadManifest(); err != nil {
		log.Printf("⚠️ No se pudo cargar el manifest: %v", err)
		log.Println("💡 El servidor continuará funcionando. Verifica el directorio de datos o DATA_BASE_URL")
	}
}

func requestHandler(ctx *fasthttp.RequestCtx) {
	path := string(ctx.Path())
	method := string(ctx.Method())

	log.Printf("📡 %s %s", method, path)

	ctx.Response.Header.Set("Server", "ExamViewer-FastHTTP/1.0")
	ctx.Response.Header.Set("Cache-Control", "no-cache")

	// Headers CORS para desarrollo
	ctx.Response.Header.Set("Access-Control-Allow-Origin", "*")
	ctx.Response.Header.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	ctx.Response.Header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

	if method == "OPTIONS" {
		ctx.SetStatusCode(fasthttp.StatusOK)
		return
	}

	switch {
	// API Routes - Health y manifest
	case path == "/api/health":
		questionHandler.HealthCheck(ctx)
	case path == "/api/exams" && method == "GET":
		questionHandler.GetManifest(ctx)

	// API Routes - Preguntas
	case path == "/api/questions" && method == "GET":
		questionHandler.GetAllQuestions(ctx)

	// API Routes - Estado
	case path == "/api/state" && method == "GET":
		stateHandler.GetAllStates(ctx)

	// API Routes - Filtros
	case path == "/api/filters" && method == "GET":
		stateHandler.GetFilterPrefs(ctx)
	case path == "/api/filters" && method == "POST":
		stateHandler.ApplyFilters(ctx)

	// API Routes - Sesiones
	case path == "/api/sessions" && method == "GET":
		sessionHandler.GetHistory(ctx)
	case path == "/api/sessions/current" && method == "GET":
		sessionHandler.GetCurrentSession(ctx)
	case path == "/api/sessions/end" && method == "POST":
		sessionHandler.EndCurrentSession(ctx)
	case path == "/api/sessions/clear" && method == "POST":
		sessionHandler.ClearHistory(ctx)
	case path == "/api/sessions/finalize" && method == "POST":
		sessionHandler.FinalizePending(ctx)

	// API Routes - Modo examen
	case path == "/api/exam/start" && method == "POST":
		examHandler.StartExam(ctx)
	case path == "/api/exam/finish" && method == "POST":
		examHandler.FinishExam(ctx)
	case path == "/api/exam/state" && method == "GET":
		examHandler.GetExamState(ctx)
	case path == "/api/exam/result" && method == "GET":
		examHandler.GetResult(ctx)
	case path == "/api/exam/reset" && method == "POST":
		examHandler.ResetExam(ctx)
	case path == "/api/exam/timer/pause" && method == "POST":
		examHandler.PauseTimer(ctx)
	case path == "/api/exam/timer/resume" && method == "POST":
		examHandler.ResumeTimer(ctx)

	// API Routes - Estadísticas y exportación
	case path == "/api/statistics/export" && method == "GET":
		exportHandler.ExportStatistics(ctx)
	case path == "/api/statistics/import" && method == "POST":
		exportHandler.ImportStatistics(ctx)
	case path == "/api/export" && method == "GET":
		exportHandler.ExportQuestions(ctx)

	// WebSocket Route
	case path == "/ws":
		examHandler.HandleWebSocket(ctx)

	// Rutas con parámetros
	case strings.HasPrefix(path, "/api/exams/") && method == "POST":
		handleExamRoutes(ctx, path)
	case strings.HasPrefix(path, "/api/questions/") && method == "GET":
		handleQuestionRoutes(ctx, path)
	case strings.HasPrefix(path, "/api/state/"):
		handleStateRoutes(ctx, path, method)
	case strings.HasPrefix(path, "/api/exam/review/") && method == "POST":
		handleReviewRoutes(ctx, path)

	default:
		serve404(ctx)
	}
}

func handleExamRoutes(ctx *fasthttp.RequestCtx, path string) {
	parts := strings.Split(path, "/")

	// /api/exams/{code}/load
	if len(parts) == 5 && parts[2] == "exams" && parts[4] == "load" {
		ctx.SetUserValue("code", parts[3])
		questionHandler.LoadExam(ctx)
		return
	}

	serve404(ctx)
}

func handleQuestionRoutes(ctx *fasthttp.RequestCtx, path string) {
	parts := strings.Split(path, "/")

	// /api/questions/{index}
	if len(parts) == 4 && parts[2] == "questions" {
		ctx.SetUserValue("index", parts[3])
		questionHandler.GetQuestion(ctx)
		return
	}

	serve404(ctx)
}

func handleStateRoutes(ctx *fasthttp.RequestCtx, path, method string) {
	parts := strings.Split(path, "/")

	// /api/state/{index}
	if len(parts) == 4 && method == "GET" {
		ctx.SetUserValue("index", parts[3])
		stateHandler.GetQuestionState(ctx)
		return
	}

	// /api/state/{index}/{action}
	if len(parts) == 5 && method == "POST" {
		ctx.SetUserValue("index", parts[3])
		switch parts[4] {
		case "answer":
			stateHandler.SubmitAnswer(ctx)
		case "preview":
			stateHandler.MarkAsPreview(ctx)
		case "reset":
			stateHandler.ResetQuestion(ctx)
		case "favorite":
			stateHandler.ToggleFavorite(ctx)
		case "annotation":
			stateHandler.SetAnnotation(ctx)
		default:
			serve404(ctx)
		}
		return
	}

	serve404(ctx)
}

func handleReviewRoutes(ctx *fasthttp.RequestCtx, path string) {
	parts := strings.Split(path, "/")

	// /api/exam/review/{index}
	if len(parts) == 5 && parts[3] == "review" {
		ctx.SetUserValue("index", parts[4])
		examHandler.ToggleReview(ctx)
		return
	}

	serve404(ctx)
}

func serve404(ctx *fasthttp.RequestCtx) {
	ctx.SetStatusCode(fasthttp.StatusNotFound)
	ctx.SetContentType("application/json")
	ctx.SetBodyString(`{"success": false, "error": "Ruta no encontrada"}`)
}
