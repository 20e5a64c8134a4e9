package models

import "time"

// ExamMode modo de trabajo de la aplicación
type ExamMode string

const (
	ModeStudy ExamMode = "study"
	ModeExam  ExamMode = "exam"
)

// ExamPhase fase de la máquina de estados del modo examen.
// Transiciones: configuration → active → completed. No hay vuelta atrás
// desde completed; de active solo se sale por envío manual o por
// expiración del temporizador.
type ExamPhase string

const (
	PhaseConfiguration ExamPhase = "configuration"
	PhaseActive        ExamPhase = "active"
	PhaseCompleted     ExamPhase = "completed"
)

// Selección de preguntas al iniciar un examen
const (
	SelectionAll    = "all"
	SelectionRandom = "random"
	SelectionCustom = "custom"
)

// ExamConfig configuración elegida antes de iniciar el examen
type ExamConfig struct {
	QuestionSelection string `json:"questionSelection"` // "all", "random" o "custom"
	QuestionCount     int    `json:"questionCount,omitempty"`
	TimeLimitMinutes  *int   `json:"timeLimitMinutes,omitempty"` // nil = sin temporizador
}

// Umbrales de aviso del temporizador, en minutos restantes.
// Cada umbral dispara como máximo un aviso por intento de examen.
var WarningThresholds = []float64{15, 5, 1, 0.5}

// ExamTimer temporizador del examen como objeto de valor: Tick es una
// función pura y el entorno anfitrión es dueño de la invocación periódica
type ExamTimer struct {
	IsActive      bool      `json:"isActive"`
	StartTime     time.Time `json:"startTime"`
	Duration      int64     `json:"duration"`      // milisegundos
	RemainingTime int64     `json:"remainingTime"` // milisegundos
	IsPaused      bool      `json:"isPaused"`
	WarningsShown []float64 `json:"warningsShown,omitempty"` // umbrales ya notificados
}

// Tick recalcula el tiempo restante en el instante dado. Devuelve el nuevo
// estado del temporizador, los umbrales de aviso recién cruzados y si el
// tiempo acaba de expirar. Solo avanza con el temporizador activo y sin
// pausa; el restante nunca es negativo.
func (t ExamTimer) Tick(now time.Time) (ExamTimer, []float64, bool) {
	if !t.IsActive || t.IsPaused {
		return t, nil, false
	}

	elapsed := now.Sub(t.StartTime).Milliseconds()
	remaining := t.Duration - elapsed
	if remaining < 0 {
		remaining = 0
	}

	expired := remaining <= 0 && t.RemainingTime > 0
	t.RemainingTime = remaining

	var fired []float64
	remainingMinutes := float64(remaining) / 60000.0
	for _, threshold := range WarningThresholds {
		// Un umbral igual o mayor que la duración nunca se cruza: el
		// intento empieza ya dentro de esa banda
		if threshold*60000 >= float64(t.Duration) {
			continue
		}
		if remaining > 0 && remainingMinutes <= threshold && !t.warningShown(threshold) {
			t.WarningsShown = append(t.WarningsShown, threshold)
			fired = append(fired, threshold)
		}
	}

	return t, fired, expired
}

func (t ExamTimer) warningShown(threshold float64) bool {
	for _, shown := range t.WarningsShown {
		if shown == threshold {
			return true
		}
	}
	return false
}

// ExamState estado completo del modo examen
type ExamState struct {
	Mode                     ExamMode   `json:"mode"`
	Phase                    ExamPhase  `json:"phase"`
	Config                   ExamConfig `json:"config"`
	Timer                    *ExamTimer `json:"timer,omitempty"`
	FilteredIndices          []int      `json:"filteredQuestionIndices,omitempty"`
	QuestionsMarkedForReview []int      `json:"questionsMarkedForReview"`
	StartTime                *time.Time `json:"startTime,omitempty"`
	SubmissionTime           *time.Time `json:"submissionTime,omitempty"`
	FinalScore               float64    `json:"finalScore"`
	IsSubmitted              bool       `json:"isSubmitted"`
}

// ExamResult instantánea inmutable producida al enviar el examen
type ExamResult struct {
	ExamCode          string           `json:"examCode"`
	SubmittedAt       time.Time        `json:"submittedAt"`
	TotalQuestions    int              `json:"totalQuestions"`
	AnsweredQuestions int              `json:"answeredQuestions"`
	CorrectAnswers    int              `json:"correctAnswers"`
	Score             float64          `json:"score"`  // porcentaje 0-100
	Passed            bool             `json:"passed"` // score >= 70
	Questions         []QuestionResult `json:"questions"`
}

// QuestionResult resultado por pregunta dentro de la instantánea final
type QuestionResult struct {
	Index           int      `json:"index"`
	SelectedAnswers []string `json:"selectedAnswers,omitempty"`
	CorrectLetters  []string `json:"correctLetters,omitempty"`
	Answered        bool     `json:"answered"`
	IsCorrect       bool     `json:"isCorrect"`
}
