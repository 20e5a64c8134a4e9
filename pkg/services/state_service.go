package services

import (
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/examviewer/backend/pkg/models"
	"github.com/examviewer/backend/pkg/redis"
)

// AnswerEvent se emite después de cada acción de respuesta o vista previa.
// El tracker de sesiones se suscribe a estos eventos en lugar de que este
// servicio lo invoque directamente.
type AnswerEvent struct {
	ExamCode string
	Index    int
	Result   models.AnswerResult
	Progress models.SessionProgress
}

// StateService almacena el estado por pregunta del examen cargado.
// El estado vivo (respuesta actual, status) se reinicia con cada carga de
// examen; las anotaciones (favorito, dificultad, notas, categoría) se
// restauran desde Redis por código de examen. FirstAnswer se escribe una
// sola vez por sesión de carga y nunca se sobrescribe.
type StateService struct {
	redisClient *redis.RedisClient

	mu          sync.RWMutex
	examCode    string
	states      []models.QuestionState
	answerKeys  [][]string // letras correctas por índice, derivadas al cargar
	subscribers []func(AnswerEvent)
}

// NewStateService crea una nueva instancia del almacén de estado
func NewStateService(redisClient *redis.RedisClient) *StateService {
	return &StateService{redisClient: redisClient}
}

// Subscribe registra un consumidor de eventos de respuesta
func (s *StateService) Subscribe(fn func(AnswerEvent)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

// ResetForExam descarta el estado vivo anterior, dimensiona el estado para
// el examen recién cargado y restaura las anotaciones persistidas.
// El estado de respuestas en curso no sobrevive a una recarga: cada carga
// es un intento fresco.
func (s *StateService) ResetForExam(examCode string, questions []models.Question) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.examCode = examCode
	s.states = make([]models.QuestionState, len(questions))
	s.answerKeys = make([][]string, len(questions))
	for i := range s.states {
		s.states[i].Status = models.StatusUnanswered
		s.answerKeys[i] = answerKey(&questions[i])
	}

	s.restoreAnnotationsLocked()
}

// answerKey deriva las letras correctas de una pregunta: primero la
// respuesta más votada, luego las respuestas canónicas si existen
func answerKey(q *models.Question) []string {
	if q.MostVoted != "" {
		return splitLetters(q.MostVoted)
	}
	if len(q.CorrectAnswers) > 0 {
		return normalizeLetters(q.CorrectAnswers)
	}
	if q.CorrectAnswer != "" {
		return splitLetters(q.CorrectAnswer)
	}
	return nil
}

// splitLetters convierte "AD" en ["A","D"]
func splitLetters(letters string) []string {
	out := make([]string, 0, len(letters))
	for _, r := range strings.ToUpper(strings.TrimSpace(letters)) {
		if r >= 'A' && r <= 'Z' {
			out = append(out, string(r))
		}
	}
	return out
}

func normalizeLetters(letters []string) []string {
	out := make([]string, 0, len(letters))
	for _, l := range letters {
		out = append(out, splitLetters(l)...)
	}
	return out
}

// equalLetterSets compara dos conjuntos de letras sin importar el orden;
// se exige coincidencia exacta del conjunto completo
func equalLetterSets(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := map[string]int{}
	for _, l := range a {
		seen[strings.ToUpper(l)]++
	}
	for _, l := range b {
		seen[strings.ToUpper(l)]--
	}
	for _, v := range seen {
		if v != 0 {
			return false
		}
	}
	return true
}

// SubmitAnswer registra la respuesta del usuario para una pregunta.
// La corrección se calcula por igualdad exacta de conjuntos contra las
// letras más votadas. FirstAnswer solo se establece si aún no existe.
// Con examen no cargado o índice fuera de rango la llamada no hace nada.
func (s *StateService) SubmitAnswer(index int, selected []string) {
	s.mu.Lock()

	if !s.validIndexLocked(index) {
		s.mu.Unlock()
		return
	}

	letters := normalizeLetters(selected)
	sort.Strings(letters)

	key := s.answerKeys[index]
	var result models.AnswerResult
	var status models.QuestionStatus
	switch {
	case len(key) == 0:
		result = models.ResultUnknown
		status = models.StatusAnswered
	case equalLetterSets(letters, key):
		result = models.ResultCorrect
		status = models.StatusCorrect
	default:
		result = models.ResultIncorrect
		status = models.StatusIncorrect
	}

	answer := &models.UserAnswer{
		SelectedAnswers: letters,
		Timestamp:       time.Now(),
		Result:          result,
	}

	st := &s.states[index]
	st.Status = status
	st.UserAnswer = answer
	if st.FirstAnswer == nil {
		first := *answer
		st.FirstAnswer = &first
	}

	evt := AnswerEvent{
		ExamCode: s.examCode,
		Index:    index,
		Result:   result,
		Progress: s.progressLocked(),
	}
	subs := append([]func(AnswerEvent){}, s.subscribers...)
	s.mu.Unlock()

	for _, fn := range subs {
		fn(evt)
	}
}

// MarkAsPreview marca una pregunta como "respuesta revelada sin responder".
// Si es la primera acción sobre la pregunta, queda registrada como
// FirstAnswer con resultado de vista previa. No borra la respuesta actual.
func (s *StateService) MarkAsPreview(index int) {
	s.mu.Lock()

	if !s.validIndexLocked(index) {
		s.mu.Unlock()
		return
	}

	st := &s.states[index]
	st.Status = models.StatusPreview
	if st.FirstAnswer == nil {
		st.FirstAnswer = &models.UserAnswer{
			SelectedAnswers: nil,
			Timestamp:       time.Now(),
			Result:          models.ResultPreview,
		}
	}

	evt := AnswerEvent{
		ExamCode: s.examCode,
		Index:    index,
		Result:   models.ResultPreview,
		Progress: s.progressLocked(),
	}
	subs := append([]func(AnswerEvent){}, s.subscribers...)
	s.mu.Unlock()

	for _, fn := range subs {
		fn(evt)
	}
}

// ResetQuestion borra el intento actual de una pregunta y vuelve su status
// a sin responder. FirstAnswer se conserva intacto. Sin respuesta actual
// la llamada no hace nada.
func (s *StateService) ResetQuestion(index int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.validIndexLocked(index) {
		return
	}

	st := &s.states[index]
	if st.UserAnswer == nil {
		return
	}
	st.UserAnswer = nil
	st.Status = models.StatusUnanswered
}

// ToggleFavorite alterna el favorito de una pregunta y lo refleja en el
// almacén persistente por código de examen + índice
func (s *StateService) ToggleFavorite(index int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.validIndexLocked(index) {
		return
	}

	st := &s.states[index]
	st.IsFavorite = !st.IsFavorite

	if s.redisClient != nil {
		key := fmt.Sprintf("exams:favorites:%s", s.examCode)
		var err error
		if st.IsFavorite {
			err = s.redisClient.AddToSet(key, strconv.Itoa(index))
		} else {
			err = s.redisClient.RemoveFromSet(key, strconv.Itoa(index))
		}
		if err != nil {
			log.Printf("⚠️ Error actualizando favoritos en Redis: %v", err)
		}
	}

	s.persistAnnotationsLocked()
}

// SetDifficulty anota la dificultad percibida ("easy", "medium", "hard" o vacío)
func (s *StateService) SetDifficulty(index int, difficulty string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.validIndexLocked(index) {
		return
	}
	switch difficulty {
	case "", "easy", "medium", "hard":
	default:
		return
	}
	s.states[index].Difficulty = difficulty
	s.persistAnnotationsLocked()
}

// SetNotes guarda notas libres sobre una pregunta
func (s *StateService) SetNotes(index int, notes string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.validIndexLocked(index) {
		return
	}
	s.states[index].Notes = notes
	s.persistAnnotationsLocked()
}

// SetCategory asigna una categoría a una pregunta
func (s *StateService) SetCategory(index int, category string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.validIndexLocked(index) {
		return
	}
	s.states[index].Category = category
	s.persistAnnotationsLocked()
}

// GetQuestionStatus devuelve el status vivo de la pregunta
func (s *StateService) GetQuestionStatus(index int) models.QuestionStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.validIndexLocked(index) {
		return models.StatusUnanswered
	}
	return s.states[index].Status
}

// GetFirstAnswerStatus devuelve el status permanente derivado de la primera
// acción de la sesión. Las vistas de estadísticas deben usar este status y
// no el vivo: los reintentos vía ResetQuestion no alteran la precisión
// acumulada.
func (s *StateService) GetFirstAnswerStatus(index int) models.QuestionStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.validIndexLocked(index) {
		return models.StatusUnanswered
	}
	return s.states[index].FirstAnswerStatus()
}

// State devuelve una copia del estado de una pregunta
func (s *StateService) State(index int) (models.QuestionState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.validIndexLocked(index) {
		return models.QuestionState{}, false
	}
	return s.states[index], true
}

// States devuelve una copia del estado de todas las preguntas
func (s *StateService) States() []models.QuestionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.QuestionState(nil), s.states...)
}

// AnswerKey devuelve las letras correctas derivadas para una pregunta
func (s *StateService) AnswerKey(index int) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.validIndexLocked(index) {
		return nil
	}
	return append([]string(nil), s.answerKeys[index]...)
}

// ExamCode devuelve el código del examen cuyo estado se está siguiendo
func (s *StateService) ExamCode() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.examCode
}

// Progress devuelve la instantánea de progreso basada en FirstAnswer
func (s *StateService) Progress() models.SessionProgress {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.progressLocked()
}

// progressLocked calcula el progreso con el registro permanente de primeras
// respuestas: los reintentos no cuentan dos veces
func (s *StateService) progressLocked() models.SessionProgress {
	p := models.SessionProgress{TotalQuestions: len(s.states)}
	for i := range s.states {
		first := s.states[i].FirstAnswer
		if first == nil {
			continue
		}
		if first.Result != models.ResultCorrect && first.Result != models.ResultIncorrect {
			continue
		}
		p.QuestionsAnswered++
		if first.Result == models.ResultCorrect {
			p.CorrectAnswers++
		}
		switch s.states[i].Difficulty {
		case "easy":
			p.DifficultyBreakdown.Easy++
		case "medium":
			p.DifficultyBreakdown.Medium++
		case "hard":
			p.DifficultyBreakdown.Hard++
		}
	}
	return p
}

func (s *StateService) validIndexLocked(index int) bool {
	return s.examCode != "" && index >= 0 && index < len(s.states)
}

// persistAnnotationsLocked guarda las anotaciones en Redis (mejor esfuerzo).
// Un fallo de persistencia no interrumpe la mutación: el estado en memoria
// sigue siendo la autoridad para la sesión actual.
func (s *StateService) persistAnnotationsLocked() {
	if s.redisClient == nil || s.examCode == "" {
		return
	}

	annotations := map[string]models.QuestionAnnotations{}
	for i := range s.states {
		st := &s.states[i]
		if !st.IsFavorite && st.Difficulty == "" && st.Notes == "" && st.Category == "" {
			continue
		}
		annotations[strconv.Itoa(i)] = models.QuestionAnnotations{
			IsFavorite: st.IsFavorite,
			Difficulty: st.Difficulty,
			Notes:      st.Notes,
			Category:   st.Category,
		}
	}

	data, err := json.Marshal(annotations)
	if err != nil {
		log.Printf("⚠️ Error serializando anotaciones: %v", err)
		return
	}
	key := fmt.Sprintf("exams:annotations:%s", s.examCode)
	if err := s.redisClient.Set(key, string(data), 0); err != nil {
		log.Printf("⚠️ Error guardando anotaciones en Redis: %v", err)
	}
}

// restoreAnnotationsLocked restaura favoritos, dificultad, notas y
// categoría desde Redis para el examen recién cargado
func (s *StateService) restoreAnnotationsLocked() {
	if s.redisClient == nil || s.examCode == "" {
		return
	}

	key := fmt.Sprintf("exams:annotations:%s", s.examCode)
	if data, err := s.redisClient.Get(key); err == nil {
		var annotations map[string]models.QuestionAnnotations
		if err := json.Unmarshal([]byte(data), &annotations); err != nil {
			log.Printf("⚠️ Error parseando anotaciones de %s: %v", s.examCode, err)
		}
		for idxStr, a := range annotations {
			idx, err := strconv.Atoi(idxStr)
			if err != nil || idx < 0 || idx >= len(s.states) {
				continue
			}
			s.states[idx].IsFavorite = a.IsFavorite
			s.states[idx].Difficulty = a.Difficulty
			s.states[idx].Notes = a.Notes
			s.states[idx].Category = a.Category
		}
	}

	// El conjunto de favoritos se une al blob de anotaciones
	favKey := fmt.Sprintf("exams:favorites:%s", s.examCode)
	if members, err := s.redisClient.GetSetMembers(favKey); err == nil {
		mergeFavorites(s.states, members)
	}
}

// mergeFavorites marca como favoritas las preguntas cuyos índices aparecen
// en el conjunto persistido; las entradas no numéricas o fuera de rango se
// ignoran
func mergeFavorites(states []models.QuestionState, members []string) {
	for _, m := range members {
		idx, err := strconv.Atoi(m)
		if err != nil || idx < 0 || idx >= len(states) {
			continue
		}
		states[idx].IsFavorite = true
	}
}
