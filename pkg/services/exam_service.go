package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/examviewer/backend/pkg/models"
	"github.com/examviewer/backend/pkg/redis"
	"github.com/examviewer/backend/pkg/websocket"
)

// ExamService implementa la máquina de estados del modo examen:
// configuration → active → completed. Es dueño del goroutine que invoca el
// tick del temporizador cada segundo y lo desmonta al cambiar de fase, para
// que ningún tick huérfano siga llamando a SubmitExam tras el envío.
type ExamService struct {
	redisClient *redis.RedisClient
	hub         *websocket.Hub

	stateService *StateService
	bankService  *BankService

	mu           sync.Mutex
	state        models.ExamState
	marked       map[int]bool
	result       *models.ExamResult
	cancelTicker context.CancelFunc
}

// NewExamService crea una nueva instancia del controlador de examen
func NewExamService(redisClient *redis.RedisClient, hub *websocket.Hub) *ExamService {
	s := &ExamService{
		redisClient: redisClient,
		hub:         hub,
		marked:      make(map[int]bool),
	}
	s.state = freshExamState()
	return s
}

// SetStateService inyecta el almacén de estado para calcular la puntuación
func (s *ExamService) SetStateService(stateService *StateService) {
	s.stateService = stateService
}

// SetBankService inyecta el servicio de bancos para las letras canónicas
func (s *ExamService) SetBankService(bankService *BankService) {
	s.bankService = bankService
}

func freshExamState() models.ExamState {
	return models.ExamState{
		Mode:  models.ModeStudy,
		Phase: models.PhaseConfiguration,
	}
}

// selectQuestionIndices elige el subconjunto de preguntas del examen:
// "all" conserva el orden original; "random" y "custom" barajan todos los
// índices con una permutación uniforme y toman los primeros count.
func selectQuestionIndices(selection string, count, total int) []int {
	indices := make([]int, total)
	for i := range indices {
		indices[i] = i
	}

	if selection == models.SelectionAll {
		return indices
	}

	rand.Shuffle(len(indices), func(i, j int) {
		indices[i], indices[j] = indices[j], indices[i]
	})
	if count <= 0 || count > total {
		count = total
	}
	return indices[:count]
}

// StartExam pasa la máquina a la fase activa con la configuración dada.
// Con una partida ya activa devuelve error; desde completed se inicia un
// intento nuevo con estado fresco.
func (s *ExamService) StartExam(config models.ExamConfig) ([]int, error) {
	total := 0
	if s.bankService != nil {
		total = s.bankService.QuestionCount()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Phase == models.PhaseActive {
		return nil, fmt.Errorf("ya hay un examen activo")
	}
	if total == 0 {
		return nil, fmt.Errorf("no hay examen cargado")
	}

	s.stopTickerLocked()
	s.state = freshExamState()
	s.marked = make(map[int]bool)
	s.result = nil

	indices := selectQuestionIndices(config.QuestionSelection, config.QuestionCount, total)
	now := time.Now()

	s.state.Mode = models.ModeExam
	s.state.Phase = models.PhaseActive
	s.state.Config = config
	s.state.FilteredIndices = indices
	s.state.StartTime = &now
	s.state.IsSubmitted = false

	if config.TimeLimitMinutes != nil && *config.TimeLimitMinutes > 0 {
		duration := int64(*config.TimeLimitMinutes) * 60 * 1000
		s.state.Timer = &models.ExamTimer{
			IsActive:      true,
			StartTime:     now,
			Duration:      duration,
			RemainingTime: duration,
		}
		s.startTickerLocked()
	}

	if s.hub != nil {
		s.hub.BroadcastExamPhase(string(models.PhaseActive), 0, false, false)
	}

	log.Printf("🎯 Examen iniciado: %d preguntas, selección %s", len(indices), config.QuestionSelection)
	return append([]int(nil), indices...), nil
}

// startTickerLocked arranca el goroutine anfitrión del temporizador.
// Se detiene con la cancelación del contexto, que es idempotente: pausar,
// reanudar o enviar el examen no deja ticks huérfanos.
func (s *ExamService) startTickerLocked() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancelTicker = cancel

	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				if !s.Tick(now) {
					return
				}
			}
		}
	}()
}

func (s *ExamService) stopTickerLocked() {
	if s.cancelTicker != nil {
		s.cancelTicker()
		s.cancelTicker = nil
	}
}

// Tick avanza el temporizador al instante dado. Devuelve false cuando el
// examen ya no está activo y el goroutine anfitrión debe terminar.
// La expiración dispara el envío automático exactamente una vez.
func (s *ExamService) Tick(now time.Time) bool {
	s.mu.Lock()

	if s.state.Phase != models.PhaseActive || s.state.Timer == nil {
		s.mu.Unlock()
		return false
	}

	timer, warnings, expired := s.state.Timer.Tick(now)
	s.state.Timer = &timer
	remaining := timer.RemainingTime
	paused := timer.IsPaused
	s.mu.Unlock()

	if s.hub != nil {
		s.hub.BroadcastTimerTick(remaining, paused)
		for _, threshold := range warnings {
			log.Printf("⏰ Aviso: quedan %.1f minutos", threshold)
			s.hub.BroadcastTimerWarning(threshold, remaining)
		}
	}

	if expired {
		log.Println("⏰ Tiempo agotado: envío automático del examen")
		if _, err := s.submit(true); err != nil {
			log.Printf("⚠️ Error en el envío automático: %v", err)
		}
		return false
	}
	return true
}

// PauseTimer detiene el avance del temporizador
func (s *ExamService) PauseTimer() {
	s.pauseAt(time.Now())
}

// pauseAt ejecuta el tick de cierre y congela el temporizador. El tick se
// procesa completo: los avisos cruzados en ese instante se publican y una
// expiración justo antes de la pausa dispara el envío automático.
func (s *ExamService) pauseAt(now time.Time) {
	s.mu.Lock()

	if s.state.Phase != models.PhaseActive || s.state.Timer == nil || s.state.Timer.IsPaused {
		s.mu.Unlock()
		return
	}
	timer, warnings, expired := s.state.Timer.Tick(now)
	timer.IsPaused = true
	s.state.Timer = &timer
	remaining := timer.RemainingTime
	s.mu.Unlock()

	if s.hub != nil {
		for _, threshold := range warnings {
			log.Printf("⏰ Aviso: quedan %.1f minutos", threshold)
			s.hub.BroadcastTimerWarning(threshold, remaining)
		}
	}

	if expired {
		log.Println("⏰ Tiempo agotado durante la pausa: envío automático del examen")
		if _, err := s.submit(true); err != nil {
			log.Printf("⚠️ Error en el envío automático: %v", err)
		}
	}
}

// ResumeTimer reanuda el temporizador conservando el tiempo restante:
// se recoloca el inicio para que duración - transcurrido = restante
func (s *ExamService) ResumeTimer() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Phase != models.PhaseActive || s.state.Timer == nil || !s.state.Timer.IsPaused {
		return
	}
	timer := *s.state.Timer
	timer.IsPaused = false
	timer.StartTime = time.Now().Add(-time.Duration(timer.Duration-timer.RemainingTime) * time.Millisecond)
	s.state.Timer = &timer
}

// SubmitExam envía el examen manualmente
func (s *ExamService) SubmitExam() (*models.ExamResult, error) {
	return s.submit(false)
}

// submit puntúa el conjunto filtrado activo y pasa la fase a completed.
// El candado de envío se toma de forma síncrona antes de cualquier efecto:
// la expiración del temporizador y el envío manual pueden competir cerca de
// t=0 y solo uno debe puntuar.
func (s *ExamService) submit(auto bool) (*models.ExamResult, error) {
	s.mu.Lock()

	if s.state.IsSubmitted || s.state.Phase == models.PhaseCompleted {
		result := s.result
		s.mu.Unlock()
		return result, nil
	}
	if s.state.Phase != models.PhaseActive {
		s.mu.Unlock()
		return nil, fmt.Errorf("no hay examen activo para enviar")
	}
	s.state.IsSubmitted = true

	indices := append([]int(nil), s.state.FilteredIndices...)
	examCode := ""
	if s.bankService != nil {
		examCode, _ = s.bankService.CurrentExam()
	}

	now := time.Now()
	result := &models.ExamResult{
		ExamCode:       examCode,
		SubmittedAt:    now,
		TotalQuestions: len(indices),
	}

	for _, idx := range indices {
		qr := models.QuestionResult{Index: idx}
		if s.stateService != nil {
			if st, ok := s.stateService.State(idx); ok && st.UserAnswer != nil {
				qr.Answered = true
				qr.SelectedAnswers = append([]string(nil), st.UserAnswer.SelectedAnswers...)
				qr.IsCorrect = st.UserAnswer.Result == models.ResultCorrect
			}
			qr.CorrectLetters = s.stateService.AnswerKey(idx)
		}
		if qr.Answered {
			result.AnsweredQuestions++
		}
		if qr.IsCorrect {
			result.CorrectAnswers++
		}
		result.Questions = append(result.Questions, qr)
	}

	if result.TotalQuestions > 0 {
		result.Score = float64(result.CorrectAnswers) / float64(result.TotalQuestions) * 100
	}
	result.Passed = result.Score >= 70

	s.state.Phase = models.PhaseCompleted
	s.state.SubmissionTime = &now
	s.state.FinalScore = result.Score
	if s.state.Timer != nil {
		timer := *s.state.Timer
		timer.IsActive = false
		s.state.Timer = &timer
	}
	s.result = result
	s.stopTickerLocked()
	s.mu.Unlock()

	s.persistResult(result)

	if s.hub != nil {
		s.hub.BroadcastExamPhase(string(models.PhaseCompleted), result.Score, result.Passed, auto)
	}

	log.Printf("🏁 Examen enviado: %d/%d correctas, score %.1f%% (aprobado: %v)",
		result.CorrectAnswers, result.TotalQuestions, result.Score, result.Passed)
	return result, nil
}

// persistResult guarda la instantánea final en Redis (mejor esfuerzo)
func (s *ExamService) persistResult(result *models.ExamResult) {
	if s.redisClient == nil {
		return
	}
	data, err := json.Marshal(result)
	if err != nil {
		log.Printf("⚠️ Error serializando resultado: %v", err)
		return
	}
	key := fmt.Sprintf("exams:result:%s:%d", result.ExamCode, result.SubmittedAt.UnixMilli())
	if err := s.redisClient.Set(key, string(data), 0); err != nil {
		log.Printf("⚠️ Error guardando resultado en Redis: %v", err)
	}
}

// ToggleQuestionForReview alterna la marca de repaso de una pregunta.
// Es un marcador puro del usuario: no afecta la puntuación y es
// independiente de las anotaciones de favorito o dificultad.
func (s *ExamService) ToggleQuestionForReview(index int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Phase == models.PhaseConfiguration {
		return
	}
	if s.marked[index] {
		delete(s.marked, index)
	} else {
		s.marked[index] = true
	}
}

// ShouldShowFeedback decide si se puede mostrar corrección, puntuaciones,
// explicaciones y comentarios. Se suprimen solo durante un examen activo
// sin enviar; tras completed todo se revela, incluidas las preguntas que
// nunca se respondieron.
func (s *ExamService) ShouldShowFeedback() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !(s.state.Mode == models.ModeExam &&
		s.state.Phase == models.PhaseActive &&
		!s.state.IsSubmitted)
}

// ExamState devuelve una copia del estado del modo examen
func (s *ExamService) ExamState() models.ExamState {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.state
	state.FilteredIndices = append([]int(nil), s.state.FilteredIndices...)
	state.QuestionsMarkedForReview = s.markedSortedLocked()
	if s.state.Timer != nil {
		timer := *s.state.Timer
		state.Timer = &timer
	}
	return state
}

// Result devuelve la instantánea final del último examen enviado
func (s *ExamService) Result() *models.ExamResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Reset vuelve a la fase de configuración para un intento nuevo
func (s *ExamService) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopTickerLocked()
	s.state = freshExamState()
	s.marked = make(map[int]bool)
	s.result = nil
}

func (s *ExamService) markedSortedLocked() []int {
	out := make([]int, 0, len(s.marked))
	for idx := range s.marked {
		out = append(out, idx)
	}
	sort.Ints(out)
	return out
}
