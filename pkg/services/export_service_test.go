package services

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/examviewer/backend/pkg/models"
)

func newTestExportEnv() (*ExportService, *SessionService, *StateService) {
	questions := []models.Question{
		{Question: "What does Amazon S3 provide?", Answers: []string{"A. Object storage", "B. Block storage"}, MostVoted: "A", Explanation: "S3 es almacenamiento de objetos"},
		{Question: "Which service runs containers?", Answers: []string{"A. ECS", "B. S3"}, MostVoted: "A"},
		{Question: "What is Amazon EC2?", Answers: []string{"A. Compute", "B. Storage"}, MostVoted: "A"},
	}

	bank := NewBankService(nil, "", "")
	bank.mu.Lock()
	bank.currentCode = "SAA-C03"
	bank.currentName = "Solutions Architect"
	bank.questions = questions
	bank.mu.Unlock()

	state := NewStateService(nil)
	state.ResetForExam("SAA-C03", questions)

	session := NewSessionService(nil, time.Hour)
	export := NewExportService(nil, session, state, bank)
	return export, session, state
}

func seedFinishedSession(svc *SessionService, answered, correct int, spent time.Duration) {
	start := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	end := start.Add(spent)
	svc.ImportSessions([]models.StudySession{{
		ExamCode:          "SAA-C03",
		ExamName:          "Solutions Architect",
		StartTime:         start,
		EndTime:           &end,
		QuestionsAnswered: answered,
		CorrectAnswers:    correct,
		TimeSpent:         spent.Milliseconds(),
	}})
}

func TestExportStatisticsAggregates(t *testing.T) {
	export, session, _ := newTestExportEnv()
	seedFinishedSession(session, 10, 8, 20*time.Minute)
	seedFinishedSession(session, 5, 1, 10*time.Minute)

	stats := export.ExportStatistics()
	if stats.TotalAnswered != 15 {
		t.Errorf("TotalAnswered=%.0f, want 15", stats.TotalAnswered)
	}
	if stats.TotalCorrect != 9 {
		t.Errorf("TotalCorrect=%.0f, want 9", stats.TotalCorrect)
	}
	if want := float64((30 * time.Minute).Milliseconds()); stats.TotalTime != want {
		t.Errorf("TotalTime=%.0f, want %.0f", stats.TotalTime, want)
	}
	if stats.Accuracy != 60.0 {
		t.Errorf("Accuracy=%.1f, want 60.0", stats.Accuracy)
	}
	if len(stats.Sessions) != 2 {
		t.Errorf("Sessions=%d, want 2", len(stats.Sessions))
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	export, session, _ := newTestExportEnv()
	seedFinishedSession(session, 10, 8, 20*time.Minute)

	original := export.ExportStatistics()
	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("Marshal falló: %v", err)
	}

	// Importar sobre un entorno limpio reproduce las cifras campo a campo
	fresh, freshSession, _ := newTestExportEnv()
	if !fresh.ImportStatistics(data) {
		t.Fatal("ImportStatistics rechazó un respaldo válido")
	}
	if len(freshSession.GetSessionHistory("")) != 1 {
		t.Fatalf("sesiones importadas=%d, want 1", len(freshSession.GetSessionHistory("")))
	}

	restored := fresh.ExportStatistics()
	if restored.TotalAnswered != original.TotalAnswered ||
		restored.TotalCorrect != original.TotalCorrect ||
		restored.TotalTime != original.TotalTime ||
		restored.Accuracy != original.Accuracy {
		t.Fatalf("round-trip alteró las cifras: %+v vs %+v", restored, original)
	}
}

func TestImportStatisticsValidation(t *testing.T) {
	tests := []struct {
		name string
		data string
		want bool
	}{
		{"respaldo completo", `{"totalAnswered":10,"totalCorrect":8,"totalTime":120000}`, true},
		{"cifras en cero", `{"totalAnswered":0,"totalCorrect":0,"totalTime":0}`, true},
		{"falta totalTime", `{"totalAnswered":10,"totalCorrect":8}`, false},
		{"falta totalAnswered", `{"totalCorrect":8,"totalTime":120000}`, false},
		{"campo no numérico", `{"totalAnswered":"10","totalCorrect":8,"totalTime":120000}`, false},
		{"null no es número", `{"totalAnswered":null,"totalCorrect":8,"totalTime":120000}`, false},
		{"JSON malformado", `{"totalAnswered":10,`, false},
		{"objeto vacío", `{}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			export, _, _ := newTestExportEnv()
			if got := export.ImportStatistics([]byte(tt.data)); got != tt.want {
				t.Fatalf("ImportStatistics=%v, want %v", got, tt.want)
			}
		})
	}
}

func TestImportStatisticsRejectionLeavesStateUntouched(t *testing.T) {
	export, session, _ := newTestExportEnv()
	seedFinishedSession(session, 10, 8, 20*time.Minute)

	bad := `{"totalAnswered":99,"sessions":[{"examCode":"X"}]}`
	if export.ImportStatistics([]byte(bad)) {
		t.Fatal("un respaldo parcial debe rechazarse")
	}
	if len(session.GetSessionHistory("")) != 1 {
		t.Fatal("el rechazo no debe importar sesiones")
	}

	stats := export.ExportStatistics()
	if stats.TotalAnswered != 10 {
		t.Fatalf("TotalAnswered=%.0f tras el rechazo, want 10", stats.TotalAnswered)
	}
}

func TestExportQuestionsJSON(t *testing.T) {
	export, _, state := newTestExportEnv()
	state.SubmitAnswer(0, []string{"A"})
	state.ToggleFavorite(0)

	data, contentType, err := export.ExportQuestions(models.ExportOptions{
		Format:              models.FormatJSON,
		IncludeAnswers:      true,
		IncludeExplanations: true,
	})
	if err != nil {
		t.Fatalf("ExportQuestions falló: %v", err)
	}
	if contentType != "application/json" {
		t.Errorf("contentType=%q, want application/json", contentType)
	}

	var out struct {
		ExamCode  string `json:"examCode"`
		Questions []struct {
			Index       int      `json:"index"`
			Status      string   `json:"status"`
			MostVoted   string   `json:"mostVoted"`
			Selected    []string `json:"selectedAnswers"`
			Explanation string   `json:"explanation"`
			IsFavorite  bool     `json:"isFavorite"`
		} `json:"questions"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("la exportación no es JSON válido: %v", err)
	}
	if out.ExamCode != "SAA-C03" {
		t.Errorf("examCode=%q, want SAA-C03", out.ExamCode)
	}
	if len(out.Questions) != 3 {
		t.Fatalf("preguntas=%d, want 3", len(out.Questions))
	}
	first := out.Questions[0]
	if first.Status != "correct" || first.MostVoted != "A" || !first.IsFavorite {
		t.Errorf("fila 0 inesperada: %+v", first)
	}
	if len(first.Selected) != 1 || first.Selected[0] != "A" {
		t.Errorf("selectedAnswers=%v, want [A]", first.Selected)
	}
	if first.Explanation == "" {
		t.Error("con IncludeExplanations la explicación debe exportarse")
	}
}

func TestExportQuestionsFilters(t *testing.T) {
	export, _, state := newTestExportEnv()
	state.SubmitAnswer(0, []string{"A"})
	state.SubmitAnswer(1, []string{"B"})

	data, _, err := export.ExportQuestions(models.ExportOptions{
		Format:         models.FormatJSON,
		FilterByStatus: "incorrect",
	})
	if err != nil {
		t.Fatalf("ExportQuestions falló: %v", err)
	}

	var out struct {
		Questions []struct {
			Index int `json:"index"`
		} `json:"questions"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("JSON inválido: %v", err)
	}
	if len(out.Questions) != 1 || out.Questions[0].Index != 1 {
		t.Fatalf("filtrado=%+v, want solo el índice 1", out.Questions)
	}
}

func TestExportQuestionsCSVAndTXT(t *testing.T) {
	export, _, state := newTestExportEnv()
	state.SubmitAnswer(0, []string{"A"})

	csvData, contentType, err := export.ExportQuestions(models.ExportOptions{Format: models.FormatCSV, IncludeAnswers: true})
	if err != nil {
		t.Fatalf("exportación CSV falló: %v", err)
	}
	if contentType != "text/csv" {
		t.Errorf("contentType=%q, want text/csv", contentType)
	}
	lines := strings.Split(strings.TrimSpace(string(csvData)), "\n")
	if len(lines) != 4 {
		t.Fatalf("líneas CSV=%d, want cabecera + 3 filas", len(lines))
	}
	if !strings.HasPrefix(lines[0], "index,question,status") {
		t.Errorf("cabecera inesperada: %q", lines[0])
	}

	txtData, contentType, err := export.ExportQuestions(models.ExportOptions{Format: models.FormatTXT})
	if err != nil {
		t.Fatalf("exportación TXT falló: %v", err)
	}
	if !strings.HasPrefix(contentType, "text/plain") {
		t.Errorf("contentType=%q, want text/plain", contentType)
	}
	if !strings.Contains(string(txtData), "SAA-C03") {
		t.Error("el volcado TXT debe encabezarse con el código del examen")
	}

	if _, _, err := export.ExportQuestions(models.ExportOptions{Format: "xml"}); err == nil {
		t.Fatal("un formato desconocido debe devolver error")
	}
}
