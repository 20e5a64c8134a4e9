package models

// Question estructura para representar una pregunta del banco de examen.
// Las preguntas son inmutables una vez cargadas; su identidad es el índice
// posicional dentro de la lista del examen cargado.
type Question struct {
	Question       string    `json:"question"` // texto, puede incluir HTML e imágenes
	Answers        []string  `json:"answers"`  // opciones ordenadas ("A. ...", "B. ...")
	Explanation    string    `json:"explanation,omitempty"`
	Comments       []Comment `json:"comments,omitempty"`
	MostVoted      string    `json:"most_voted,omitempty"` // letras más votadas, p.ej. "AD"
	CorrectAnswer  string    `json:"correct_answer,omitempty"`
	CorrectAnswers []string  `json:"correct_answers,omitempty"`
}

// Comment comentario de la comunidad sobre una pregunta
type Comment struct {
	Content        string `json:"content"`
	SelectedAnswer string `json:"selected_answer,omitempty"`
}

// ExamData estructura para el JSON completo de un examen (<code>/exam.json)
type ExamData struct {
	Status    string     `json:"status"` // "complete", "partial" o "error"
	Error     string     `json:"error,omitempty"`
	Questions []Question `json:"questions"`
}

// Estados posibles de un archivo de examen
const (
	ExamStatusComplete = "complete"
	ExamStatusPartial  = "partial"
	ExamStatusError    = "error"
)

// Manifest índice optimizado de los exámenes disponibles (manifest.json)
type Manifest struct {
	Version        string          `json:"version"`
	Generated      string          `json:"generated"`
	TotalExams     int             `json:"totalExams"`
	TotalQuestions int             `json:"totalQuestions"`
	Exams          []ManifestEntry `json:"exams"`
}

// ManifestEntry metadatos de un examen dentro del manifest
type ManifestEntry struct {
	Code          string `json:"code"`
	Name          string `json:"name"`
	Description   string `json:"description,omitempty"`
	QuestionCount int    `json:"questionCount"`
	LastUpdated   string `json:"lastUpdated,omitempty"`
}

// APIResponse estructura estándar para respuestas de API
type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// QuestionResponse respuesta específica para preguntas
type QuestionResponse struct {
	Question  *Question  `json:"question,omitempty"`
	Questions []Question `json:"questions,omitempty"`
	Count     int        `json:"count,omitempty"`
	Manifest  *Manifest  `json:"manifest,omitempty"`
}
