package services

import (
	"testing"
	"time"

	"github.com/examviewer/backend/pkg/models"
)

// newTestSessionService devuelve el servicio con un reloj controlable
func newTestSessionService() (*SessionService, *time.Time) {
	svc := NewSessionService(nil, time.Hour)
	clock := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return clock }
	return svc, &clock
}

func TestStartSessionReusesUnfinished(t *testing.T) {
	svc, _ := newTestSessionService()

	first := svc.StartSession("SAA-C03", "Solutions Architect")
	second := svc.StartSession("SAA-C03", "Solutions Architect")

	if first.ID != second.ID {
		t.Fatalf("se esperaba reutilizar la sesión en curso: %s != %s", first.ID, second.ID)
	}
	if len(svc.AllSessions()) != 1 {
		t.Fatalf("sesiones=%d, want 1", len(svc.AllSessions()))
	}
}

func TestStartSessionAfterEndCreatesNew(t *testing.T) {
	svc, clock := newTestSessionService()

	first := svc.StartSession("SAA-C03", "Solutions Architect")
	*clock = clock.Add(10 * time.Minute)
	svc.EndSession("SAA-C03", models.SessionProgress{QuestionsAnswered: 5, CorrectAnswers: 4, TotalQuestions: 10})

	*clock = clock.Add(time.Minute)
	second := svc.StartSession("SAA-C03", "Solutions Architect")
	if first.ID == second.ID {
		t.Fatal("tras cerrar la sesión debe crearse una nueva")
	}
}

func TestSessionProgressMetrics(t *testing.T) {
	svc, clock := newTestSessionService()

	svc.StartSession("DVA-C02", "Developer Associate")
	*clock = clock.Add(5 * time.Minute)
	svc.UpdateCurrentSession("DVA-C02", models.SessionProgress{
		QuestionsAnswered: 8,
		CorrectAnswers:    6,
		TotalQuestions:    20,
	})

	session := svc.CurrentSession("DVA-C02")
	if session == nil {
		t.Fatal("CurrentSession devolvió nil")
	}
	if session.Accuracy != 75.0 {
		t.Errorf("Accuracy=%.1f, want 75.0", session.Accuracy)
	}
	if session.CompletionPercentage != 40.0 {
		t.Errorf("CompletionPercentage=%.1f, want 40.0", session.CompletionPercentage)
	}
	if session.TimeSpent != (5 * time.Minute).Milliseconds() {
		t.Errorf("TimeSpent=%d ms, want %d", session.TimeSpent, (5*time.Minute).Milliseconds())
	}
}

func TestAccuracyZeroWithoutAnswers(t *testing.T) {
	svc, _ := newTestSessionService()

	svc.StartSession("CLF-C02", "Cloud Practitioner")
	svc.UpdateCurrentSession("CLF-C02", models.SessionProgress{TotalQuestions: 65})

	session := svc.CurrentSession("CLF-C02")
	if session.Accuracy != 0 {
		t.Fatalf("Accuracy=%.1f con cero respuestas, want 0 (sin división por cero)", session.Accuracy)
	}
}

func TestFinalizePendingSessions(t *testing.T) {
	svc, clock := newTestSessionService()

	svc.StartSession("SAA-C03", "Solutions Architect")
	*clock = clock.Add(20 * time.Minute)
	svc.UpdateCurrentSession("SAA-C03", models.SessionProgress{QuestionsAnswered: 3, CorrectAnswers: 2, TotalQuestions: 10})

	// Aún dentro de la ventana: nada que cerrar
	if closed := svc.FinalizePendingSessions(); closed != 0 {
		t.Fatalf("closed=%d antes del umbral, want 0", closed)
	}

	// Pasada más de una hora desde el inicio, la sesión se autocierra
	*clock = clock.Add(50 * time.Minute)
	if closed := svc.FinalizePendingSessions(); closed != 1 {
		t.Fatalf("closed=%d, want 1", closed)
	}

	history := svc.GetSessionHistory("SAA-C03")
	if len(history) != 1 {
		t.Fatalf("historial=%d sesiones, want 1", len(history))
	}
	session := history[0]
	if session.EndTime == nil {
		t.Fatal("la sesión autocerrada debe tener hora de fin")
	}
	// Fin sintético: inicio + tiempo acumulado, no la hora del barrido
	wantEnd := session.StartTime.Add(time.Duration(session.TimeSpent) * time.Millisecond)
	if !session.EndTime.Equal(wantEnd) {
		t.Errorf("EndTime=%v, want %v", session.EndTime, wantEnd)
	}

	// Idempotente: un segundo barrido no encuentra nada
	if closed := svc.FinalizePendingSessions(); closed != 0 {
		t.Fatalf("segundo barrido closed=%d, want 0", closed)
	}
}

func TestGetSessionHistoryOrderAndFilter(t *testing.T) {
	svc, clock := newTestSessionService()

	for i := 0; i < 3; i++ {
		svc.StartSession("SAA-C03", "Solutions Architect")
		*clock = clock.Add(time.Minute)
		svc.EndSession("SAA-C03", models.SessionProgress{QuestionsAnswered: i + 1, TotalQuestions: 10})
		*clock = clock.Add(time.Minute)
	}
	svc.StartSession("DVA-C02", "Developer Associate")
	svc.EndSession("DVA-C02", models.SessionProgress{QuestionsAnswered: 1, TotalQuestions: 10})

	// La sesión en curso no aparece en el historial
	svc.StartSession("SAA-C03", "Solutions Architect")

	history := svc.GetSessionHistory("SAA-C03")
	if len(history) != 3 {
		t.Fatalf("historial=%d, want 3", len(history))
	}
	for i := 1; i < len(history); i++ {
		if history[i].StartTime.After(history[i-1].StartTime) {
			t.Fatal("el historial debe estar ordenado de más reciente a más antigua")
		}
	}

	all := svc.GetSessionHistory("")
	if len(all) != 4 {
		t.Fatalf("historial global=%d, want 4", len(all))
	}
}

func TestClearSessionHistoryKeepsNewest(t *testing.T) {
	svc, clock := newTestSessionService()

	var lastID string
	for i := 0; i < 3; i++ {
		s := svc.StartSession("SAA-C03", "Solutions Architect")
		lastID = s.ID
		*clock = clock.Add(time.Minute)
		svc.EndSession("SAA-C03", models.SessionProgress{QuestionsAnswered: 1, TotalQuestions: 10})
		*clock = clock.Add(time.Minute)
	}
	other := svc.StartSession("DVA-C02", "Developer Associate")
	svc.EndSession("DVA-C02", models.SessionProgress{QuestionsAnswered: 1, TotalQuestions: 10})

	removed := svc.ClearSessionHistory("SAA-C03")
	if removed != 2 {
		t.Fatalf("removed=%d, want 2", removed)
	}

	history := svc.GetSessionHistory("SAA-C03")
	if len(history) != 1 {
		t.Fatalf("historial=%d tras limpiar, want 1", len(history))
	}
	if history[0].ID != lastID {
		t.Errorf("sobrevivió %s, want la más reciente %s", history[0].ID, lastID)
	}

	// El otro examen queda intacto
	otherHistory := svc.GetSessionHistory("DVA-C02")
	if len(otherHistory) != 1 || otherHistory[0].ID != other.ID {
		t.Error("ClearSessionHistory de un examen no debe tocar los demás")
	}
}

func TestClearSessionHistoryAllExams(t *testing.T) {
	svc, clock := newTestSessionService()

	for _, code := range []string{"SAA-C03", "DVA-C02"} {
		for i := 0; i < 2; i++ {
			svc.StartSession(code, code)
			*clock = clock.Add(time.Minute)
			svc.EndSession(code, models.SessionProgress{QuestionsAnswered: 1, TotalQuestions: 10})
			*clock = clock.Add(time.Minute)
		}
	}

	removed := svc.ClearSessionHistory("")
	if removed != 2 {
		t.Fatalf("removed=%d, want 2: una sobreviviente por examen", removed)
	}
	if len(svc.GetSessionHistory("SAA-C03")) != 1 || len(svc.GetSessionHistory("DVA-C02")) != 1 {
		t.Fatal("cada examen debe conservar exactamente su sesión más reciente")
	}
}

func TestImportSessionsAssignsMissingIDs(t *testing.T) {
	svc, _ := newTestSessionService()

	end := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	svc.ImportSessions([]models.StudySession{
		{ExamCode: "SAA-C03", ExamName: "Solutions Architect", StartTime: end.Add(-time.Hour), EndTime: &end, QuestionsAnswered: 10, CorrectAnswers: 8},
		{ID: "fija", ExamCode: "DVA-C02", ExamName: "Developer Associate", StartTime: end.Add(-time.Hour), EndTime: &end},
	})

	all := svc.AllSessions()
	if len(all) != 2 {
		t.Fatalf("sesiones=%d, want 2", len(all))
	}
	for _, session := range all {
		if session.ID == "" {
			t.Error("toda sesión importada debe recibir un ID")
		}
	}
}
