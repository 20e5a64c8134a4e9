package models

import "time"

// StudySession representa un intento de estudio sobre un examen
type StudySession struct {
	ID                   string              `json:"id"`
	ExamCode             string              `json:"examCode"`
	ExamName             string              `json:"examName"`
	StartTime            time.Time           `json:"startTime"`
	EndTime              *time.Time          `json:"endTime,omitempty"`
	QuestionsAnswered    int                 `json:"questionsAnswered"`
	CorrectAnswers       int                 `json:"correctAnswers"`
	Accuracy             float64             `json:"accuracy"`             // porcentaje 0-100
	TimeSpent            int64               `json:"timeSpent"`            // milisegundos
	CompletionPercentage float64             `json:"completionPercentage"` // porcentaje 0-100
	DifficultyBreakdown  DifficultyBreakdown `json:"difficultyBreakdown"`
}

// IsFinished indica si la sesión ya fue cerrada
func (s *StudySession) IsFinished() bool {
	return s.EndTime != nil
}

// DifficultyBreakdown desglose de respuestas por dificultad anotada
type DifficultyBreakdown struct {
	Easy   int `json:"easy"`
	Medium int `json:"medium"`
	Hard   int `json:"hard"`
}

// SessionProgress instantánea de progreso que el tracker recalcula
// después de cada acción de respuesta o vista previa
type SessionProgress struct {
	QuestionsAnswered   int                 `json:"questionsAnswered"`
	CorrectAnswers      int                 `json:"correctAnswers"`
	TotalQuestions      int                 `json:"totalQuestions"`
	DifficultyBreakdown DifficultyBreakdown `json:"difficultyBreakdown"`
}

// SessionResponse respuesta de sesión para la API
type SessionResponse struct {
	Session  *StudySession  `json:"session,omitempty"`
	Sessions []StudySession `json:"sessions,omitempty"`
	Message  string         `json:"message,omitempty"`
}
