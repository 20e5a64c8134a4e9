package models

// Formatos de exportación soportados
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
	FormatTXT  = "txt"
)

// ExportOptions opciones para exportar preguntas con el estado del usuario
type ExportOptions struct {
	Format              string `json:"format"` // "json", "csv" o "txt"
	IncludeAnswers      bool   `json:"includeAnswers"`
	IncludeExplanations bool   `json:"includeExplanations"`
	IncludeStatistics   bool   `json:"includeStatistics"`
	FilterByStatus      string `json:"filterByStatus,omitempty"`
	FilterByDifficulty  string `json:"filterByDifficulty,omitempty"`
}

// Statistics estadísticas acumuladas exportables. Los tres campos
// numéricos son obligatorios al importar: un JSON al que le falte
// alguno, o con un tipo distinto de número, se rechaza por completo.
type Statistics struct {
	TotalAnswered float64        `json:"totalAnswered"`
	TotalCorrect  float64        `json:"totalCorrect"`
	TotalTime     float64        `json:"totalTime"` // milisegundos
	Accuracy      float64        `json:"accuracy,omitempty"`
	Sessions      []StudySession `json:"sessions,omitempty"`
}
