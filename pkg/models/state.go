package models

import "time"

// QuestionStatus estado visible de una pregunta dentro de la sesión actual
type QuestionStatus string

const (
	StatusUnanswered QuestionStatus = "unanswered"
	StatusAnswered   QuestionStatus = "answered" // respondida sin clave de corrección conocida
	StatusCorrect    QuestionStatus = "correct"
	StatusIncorrect  QuestionStatus = "incorrect"
	StatusPreview    QuestionStatus = "preview" // respuesta revelada sin responder
)

// AnswerResult resultado de una acción del usuario sobre una pregunta.
// La vista previa es un caso de primera clase, no un booleano opcional:
// distingue "reveló la respuesta sin responder" de una respuesta incorrecta real.
type AnswerResult string

const (
	ResultPreview   AnswerResult = "preview"
	ResultCorrect   AnswerResult = "correct"
	ResultIncorrect AnswerResult = "incorrect"
	ResultUnknown   AnswerResult = "unknown" // sin clave de corrección disponible
)

// UserAnswer registro de una acción de respuesta del usuario
type UserAnswer struct {
	SelectedAnswers []string     `json:"selectedAnswers"` // letras seleccionadas, p.ej. ["A","D"]
	Timestamp       time.Time    `json:"timestamp"`
	Result          AnswerResult `json:"result"`
}

// QuestionState estado de una pregunta, una por índice.
// UserAnswer es el intento actual (reiniciable); FirstAnswer es el registro
// permanente de la primera acción de la sesión y nunca se sobrescribe:
// así los reintentos no corrompen las estadísticas de la sesión.
type QuestionState struct {
	Status      QuestionStatus `json:"status"`
	UserAnswer  *UserAnswer    `json:"userAnswer,omitempty"`
	FirstAnswer *UserAnswer    `json:"firstAnswer,omitempty"`
	IsFavorite  bool           `json:"isFavorite"`
	Difficulty  string         `json:"difficulty,omitempty"` // "easy", "medium", "hard" o vacío
	Notes       string         `json:"notes,omitempty"`
	Category    string         `json:"category,omitempty"`
}

// FirstAnswerStatus deriva el status permanente de la primera acción de la
// sesión. Las vistas de estadísticas y los filtros usan este status y no el
// vivo: los reintentos vía reset no alteran el registro acumulado.
func (s QuestionState) FirstAnswerStatus() QuestionStatus {
	if s.FirstAnswer != nil {
		switch s.FirstAnswer.Result {
		case ResultPreview:
			return StatusPreview
		case ResultCorrect:
			return StatusCorrect
		case ResultIncorrect:
			return StatusIncorrect
		default:
			return StatusAnswered
		}
	}
	if s.Status == StatusPreview {
		return StatusPreview
	}
	return StatusUnanswered
}

// QuestionAnnotations parte persistente del estado de una pregunta,
// guardada entre sesiones por código de examen + índice
type QuestionAnnotations struct {
	IsFavorite bool   `json:"isFavorite,omitempty"`
	Difficulty string `json:"difficulty,omitempty"`
	Notes      string `json:"notes,omitempty"`
	Category   string `json:"category,omitempty"`
}

// FilterOptions conjunto de predicados del buscador; cada campo es
// opcional y los activos se intersectan (AND lógico)
type FilterOptions struct {
	Query         string `json:"query,omitempty"`
	Status        string `json:"status,omitempty"`     // "all" o un QuestionStatus; compara contra FirstAnswerStatus
	Difficulty    string `json:"difficulty,omitempty"` // "all", "easy", "medium", "hard"
	FavoritesOnly bool   `json:"favoritesOnly,omitempty"`
	Category      string `json:"category,omitempty"`
}
