package services

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/examviewer/backend/pkg/models"
	"github.com/examviewer/backend/pkg/redis"
)

// ExportService exporta e importa estadísticas acumuladas y genera
// volcados de preguntas en JSON, CSV o TXT
type ExportService struct {
	redisClient    *redis.RedisClient
	sessionService *SessionService
	stateService   *StateService
	bankService    *BankService
}

// NewExportService crea una nueva instancia del servicio de exportación
func NewExportService(redisClient *redis.RedisClient, sessionService *SessionService, stateService *StateService, bankService *BankService) *ExportService {
	return &ExportService{
		redisClient:    redisClient,
		sessionService: sessionService,
		stateService:   stateService,
		bankService:    bankService,
	}
}

// ExportStatistics produce el objeto de estadísticas acumuladas sobre el
// historial de sesiones terminadas
func (s *ExportService) ExportStatistics() models.Statistics {
	stats := models.Statistics{}
	if s.sessionService == nil {
		return stats
	}

	sessions := s.sessionService.GetSessionHistory("")
	for _, session := range sessions {
		stats.TotalAnswered += float64(session.QuestionsAnswered)
		stats.TotalCorrect += float64(session.CorrectAnswers)
		stats.TotalTime += float64(session.TimeSpent)
	}
	if stats.TotalAnswered > 0 {
		stats.Accuracy = stats.TotalCorrect / stats.TotalAnswered * 100
	}
	stats.Sessions = sessions
	return stats
}

// ImportStatistics valida e importa un respaldo de estadísticas. La
// validación exige que los tres campos numéricos obligatorios existan y
// sean números; un JSON malformado o parcial se rechaza por completo sin
// tocar las estadísticas existentes.
func (s *ExportService) ImportStatistics(data []byte) bool {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		log.Printf("⚠️ Importación rechazada: JSON inválido: %v", err)
		return false
	}

	for _, field := range []string{"totalAnswered", "totalCorrect", "totalTime"} {
		value, ok := raw[field]
		if !ok {
			log.Printf("⚠️ Importación rechazada: falta el campo %s", field)
			return false
		}
		if _, isNumber := value.(float64); !isNumber {
			log.Printf("⚠️ Importación rechazada: el campo %s no es numérico", field)
			return false
		}
	}

	var stats models.Statistics
	if err := json.Unmarshal(data, &stats); err != nil {
		log.Printf("⚠️ Importación rechazada: %v", err)
		return false
	}

	if s.sessionService != nil && len(stats.Sessions) > 0 {
		s.sessionService.ImportSessions(stats.Sessions)
	}
	s.persistStatistics(&stats)

	log.Printf("✅ Estadísticas importadas: %d respondidas, %d correctas",
		int(stats.TotalAnswered), int(stats.TotalCorrect))
	return true
}

func (s *ExportService) persistStatistics(stats *models.Statistics) {
	if s.redisClient == nil {
		return
	}
	data, err := json.Marshal(stats)
	if err != nil {
		log.Printf("⚠️ Error serializando estadísticas: %v", err)
		return
	}
	if err := s.redisClient.Set("exams:statistics", string(data), 0); err != nil {
		log.Printf("⚠️ Error guardando estadísticas en Redis: %v", err)
	}
}

// ExportQuestions genera un volcado de las preguntas del examen actual con
// el estado del usuario, según las opciones dadas. Devuelve el contenido y
// su content-type.
func (s *ExportService) ExportQuestions(opts models.ExportOptions) ([]byte, string, error) {
	if s.bankService == nil || s.stateService == nil {
		return nil, "", fmt.Errorf("servicios no inicializados")
	}

	questions := s.bankService.Questions()
	states := s.stateService.States()

	type row struct {
		index    int
		question models.Question
		state    models.QuestionState
	}

	var rows []row
	for i := range questions {
		var st models.QuestionState
		if i < len(states) {
			st = states[i]
		}
		if opts.FilterByStatus != "" && opts.FilterByStatus != "all" && string(st.Status) != opts.FilterByStatus {
			continue
		}
		if opts.FilterByDifficulty != "" && opts.FilterByDifficulty != "all" && st.Difficulty != opts.FilterByDifficulty {
			continue
		}
		rows = append(rows, row{index: i, question: questions[i], state: st})
	}

	switch opts.Format {
	case models.FormatJSON, "":
		type jsonRow struct {
			Index       int      `json:"index"`
			Question    string   `json:"question"`
			Answers     []string `json:"answers"`
			MostVoted   string   `json:"mostVoted,omitempty"`
			Explanation string   `json:"explanation,omitempty"`
			Status      string   `json:"status"`
			Selected    []string `json:"selectedAnswers,omitempty"`
			Difficulty  string   `json:"difficulty,omitempty"`
			Notes       string   `json:"notes,omitempty"`
			IsFavorite  bool     `json:"isFavorite,omitempty"`
		}
		out := struct {
			ExamCode   string             `json:"examCode"`
			Questions  []jsonRow          `json:"questions"`
			Statistics *models.Statistics `json:"statistics,omitempty"`
		}{}
		out.ExamCode, _ = s.bankService.CurrentExam()
		for _, r := range rows {
			jr := jsonRow{
				Index:      r.index,
				Question:   r.question.Question,
				Answers:    r.question.Answers,
				Status:     string(r.state.Status),
				Difficulty: r.state.Difficulty,
				Notes:      r.state.Notes,
				IsFavorite: r.state.IsFavorite,
			}
			if opts.IncludeAnswers {
				jr.MostVoted = r.question.MostVoted
				if r.state.UserAnswer != nil {
					jr.Selected = r.state.UserAnswer.SelectedAnswers
				}
			}
			if opts.IncludeExplanations {
				jr.Explanation = r.question.Explanation
			}
			out.Questions = append(out.Questions, jr)
		}
		if opts.IncludeStatistics {
			stats := s.ExportStatistics()
			out.Statistics = &stats
		}
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return nil, "", fmt.Errorf("error serializando exportación: %v", err)
		}
		return data, "application/json", nil

	case models.FormatCSV:
		var buf bytes.Buffer
		w := csv.NewWriter(&buf)
		header := []string{"index", "question", "status", "difficulty", "favorite"}
		if opts.IncludeAnswers {
			header = append(header, "mostVoted", "selected")
		}
		if opts.IncludeExplanations {
			header = append(header, "explanation")
		}
		if err := w.Write(header); err != nil {
			return nil, "", err
		}
		for _, r := range rows {
			record := []string{
				strconv.Itoa(r.index),
				r.question.Question,
				string(r.state.Status),
				r.state.Difficulty,
				strconv.FormatBool(r.state.IsFavorite),
			}
			if opts.IncludeAnswers {
				selected := ""
				if r.state.UserAnswer != nil {
					selected = strings.Join(r.state.UserAnswer.SelectedAnswers, "")
				}
				record = append(record, r.question.MostVoted, selected)
			}
			if opts.IncludeExplanations {
				record = append(record, r.question.Explanation)
			}
			if err := w.Write(record); err != nil {
				return nil, "", err
			}
		}
		w.Flush()
		if err := w.Error(); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "text/csv", nil

	case models.FormatTXT:
		var sb strings.Builder
		code, name := s.bankService.CurrentExam()
		fmt.Fprintf(&sb, "%s - %s\n\n", code, name)
		for _, r := range rows {
			fmt.Fprintf(&sb, "Pregunta %d [%s]\n%s\n", r.index+1, r.state.Status, r.question.Question)
			for _, answer := range r.question.Answers {
				fmt.Fprintf(&sb, "  %s\n", answer)
			}
			if opts.IncludeAnswers && r.question.MostVoted != "" {
				fmt.Fprintf(&sb, "Respuesta más votada: %s\n", r.question.MostVoted)
			}
			if opts.IncludeExplanations && r.question.Explanation != "" {
				fmt.Fprintf(&sb, "Explicación: %s\n", r.question.Explanation)
			}
			sb.WriteString("\n")
		}
		if opts.IncludeStatistics {
			stats := s.ExportStatistics()
			fmt.Fprintf(&sb, "Respondidas: %d | Correctas: %d | Precisión: %.1f%%\n",
				int(stats.TotalAnswered), int(stats.TotalCorrect), stats.Accuracy)
		}
		return []byte(sb.String()), "text/plain; charset=utf-8", nil
	}

	return nil, "", fmt.Errorf("formato de exportación desconocido: %s", opts.Format)
}
