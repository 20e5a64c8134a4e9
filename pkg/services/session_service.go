package services

import (
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/examviewer/backend/pkg/models"
	"github.com/examviewer/backend/pkg/redis"
	"github.com/google/uuid"
)

// SessionService registra los intentos de estudio para las estadísticas.
// Las sesiones viven en memoria y se reflejan en Redis como mejor esfuerzo;
// por examen solo puede haber una sesión "en curso" a la vez.
type SessionService struct {
	redisClient *redis.RedisClient
	staleAfter  time.Duration

	mu       sync.RWMutex
	sessions map[string]*models.StudySession
	now      func() time.Time
}

// NewSessionService crea una nueva instancia del tracker de sesiones.
// staleAfter define cuándo una sesión abierta se considera abandonada.
func NewSessionService(redisClient *redis.RedisClient, staleAfter time.Duration) *SessionService {
	if staleAfter <= 0 {
		staleAfter = time.Hour
	}
	return &SessionService{
		redisClient: redisClient,
		staleAfter:  staleAfter,
		sessions:    make(map[string]*models.StudySession),
		now:         time.Now,
	}
}

// RestoreFromRedis recupera el historial persistido al arrancar
func (s *SessionService) RestoreFromRedis() {
	if s.redisClient == nil {
		return
	}

	keys, err := s.redisClient.GetKeysByPattern("exams:session:*")
	if err != nil {
		log.Printf("⚠️ Error restaurando sesiones desde Redis: %v", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	restored := 0
	for _, key := range keys {
		data, err := s.redisClient.Get(key)
		if err != nil {
			continue
		}
		var session models.StudySession
		if err := json.Unmarshal([]byte(data), &session); err != nil {
			log.Printf("⚠️ Sesión corrupta en %s: %v", key, err)
			continue
		}
		s.sessions[session.ID] = &session
		restored++
	}
	if restored > 0 {
		log.Printf("📖 %d sesiones restauradas desde Redis", restored)
	}
}

// StartSession inicia una sesión de estudio para un examen. Si ya existe
// una sesión sin terminar para el mismo código se reutiliza: una recarga
// rápida no debe duplicar sesiones en curso.
func (s *SessionService) StartSession(examCode, examName string) *models.StudySession {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing := s.activeSessionLocked(examCode); existing != nil {
		log.Printf("🔄 Reutilizando sesión en curso para %s (ID: %s)", examCode, existing.ID)
		return s.copyOf(existing)
	}

	session := &models.StudySession{
		ID:        uuid.New().String(),
		ExamCode:  examCode,
		ExamName:  examName,
		StartTime: s.now(),
	}
	s.sessions[session.ID] = session
	s.persistLocked(session)

	log.Printf("✅ Nueva sesión de estudio para %s (ID: %s)", examCode, session.ID)
	return s.copyOf(session)
}

// UpdateCurrentSession recalcula el progreso de la sesión en curso de un
// examen; se invoca después de cada acción de respuesta o vista previa
func (s *SessionService) UpdateCurrentSession(examCode string, progress models.SessionProgress) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session := s.activeSessionLocked(examCode)
	if session == nil {
		return
	}

	s.applyProgressLocked(session, progress)
	s.persistLocked(session)
}

// EndSession cierra la sesión en curso de un examen y sella la hora de fin
func (s *SessionService) EndSession(examCode string, progress models.SessionProgress) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session := s.activeSessionLocked(examCode)
	if session == nil {
		return
	}

	s.applyProgressLocked(session, progress)
	end := s.now()
	session.EndTime = &end
	s.persistLocked(session)

	log.Printf("🏁 Sesión %s cerrada para %s", session.ID, examCode)
}

// FinalizePendingSessions barre todas las sesiones y autocierra las que
// quedaron abiertas más tiempo del permitido. La hora de fin sintética es
// startTime + timeSpent: mejor esfuerzo, no refleja el tiempo real si la
// pestaña quedó inactiva.
func (s *SessionService) FinalizePendingSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	closed := 0
	cutoff := s.now().Add(-s.staleAfter)
	for _, session := range s.sessions {
		if session.IsFinished() || !session.StartTime.Before(cutoff) {
			continue
		}
		end := session.StartTime.Add(time.Duration(session.TimeSpent) * time.Millisecond)
		session.EndTime = &end
		s.persistLocked(session)
		closed++
	}

	if closed > 0 {
		log.Printf("🧹 %d sesiones abandonadas autocerradas", closed)
	}
	return closed
}

// GetSessionHistory devuelve las sesiones terminadas, la más reciente
// primero. Con examCode vacío devuelve el historial de todos los exámenes.
func (s *SessionService) GetSessionHistory(examCode string) []models.StudySession {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var history []models.StudySession
	for _, session := range s.sessions {
		if !session.IsFinished() {
			continue
		}
		if examCode != "" && session.ExamCode != examCode {
			continue
		}
		history = append(history, *session)
	}

	sort.Slice(history, func(i, j int) bool {
		return history[i].StartTime.After(history[j].StartTime)
	})
	return history
}

// CurrentSession devuelve la sesión en curso de un examen, si existe
func (s *SessionService) CurrentSession(examCode string) *models.StudySession {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session := s.activeSessionLocked(examCode)
	if session == nil {
		return nil
	}
	return s.copyOf(session)
}

// ClearSessionHistory borra el historial de un examen conservando siempre
// la sesión más reciente; nunca deja un examen sin historial. Con código
// vacío aplica la misma regla a todos los exámenes.
func (s *SessionService) ClearSessionHistory(examCode string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	newest := map[string]*models.StudySession{}
	for _, session := range s.sessions {
		if examCode != "" && session.ExamCode != examCode {
			continue
		}
		best := newest[session.ExamCode]
		if best == nil || session.StartTime.After(best.StartTime) {
			newest[session.ExamCode] = session
		}
	}

	removed := 0
	for id, session := range s.sessions {
		if examCode != "" && session.ExamCode != examCode {
			continue
		}
		if newest[session.ExamCode] != nil && newest[session.ExamCode].ID == id {
			continue
		}
		delete(s.sessions, id)
		s.unpersistLocked(session)
		removed++
	}

	log.Printf("🧹 Historial limpiado: %d sesiones eliminadas", removed)
	return removed
}

// AllSessions devuelve una copia de todas las sesiones registradas
func (s *SessionService) AllSessions() []models.StudySession {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.StudySession, 0, len(s.sessions))
	for _, session := range s.sessions {
		out = append(out, *session)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartTime.After(out[j].StartTime)
	})
	return out
}

// ImportSessions incorpora sesiones de un respaldo importado
func (s *SessionService) ImportSessions(sessions []models.StudySession) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range sessions {
		session := sessions[i]
		if session.ID == "" {
			session.ID = uuid.New().String()
		}
		s.sessions[session.ID] = &session
		s.persistLocked(&session)
	}
}

// Métodos privados auxiliares

func (s *SessionService) activeSessionLocked(examCode string) *models.StudySession {
	var latest *models.StudySession
	for _, session := range s.sessions {
		if session.ExamCode != examCode || session.IsFinished() {
			continue
		}
		if latest == nil || session.StartTime.After(latest.StartTime) {
			latest = session
		}
	}
	return latest
}

func (s *SessionService) applyProgressLocked(session *models.StudySession, progress models.SessionProgress) {
	session.QuestionsAnswered = progress.QuestionsAnswered
	session.CorrectAnswers = progress.CorrectAnswers
	session.DifficultyBreakdown = progress.DifficultyBreakdown
	session.TimeSpent = s.now().Sub(session.StartTime).Milliseconds()

	if progress.QuestionsAnswered > 0 {
		session.Accuracy = float64(progress.CorrectAnswers) / float64(progress.QuestionsAnswered) * 100
	} else {
		session.Accuracy = 0
	}
	if progress.TotalQuestions > 0 {
		session.CompletionPercentage = float64(progress.QuestionsAnswered) / float64(progress.TotalQuestions) * 100
	}
}

func (s *SessionService) copyOf(session *models.StudySession) *models.StudySession {
	c := *session
	return &c
}

func (s *SessionService) persistLocked(session *models.StudySession) {
	if s.redisClient == nil {
		return
	}

	data, err := json.Marshal(session)
	if err != nil {
		log.Printf("⚠️ Error serializando sesión %s: %v", session.ID, err)
		return
	}
	key := fmt.Sprintf("exams:session:%s", session.ID)
	if err := s.redisClient.Set(key, string(data), 0); err != nil {
		log.Printf("⚠️ Error guardando sesión %s en Redis: %v", session.ID, err)
		return
	}
	if err := s.redisClient.AddToSet(fmt.Sprintf("exams:sessions:%s", session.ExamCode), session.ID); err != nil {
		log.Printf("⚠️ Error indexando sesión %s: %v", session.ID, err)
	}
}

func (s *SessionService) unpersistLocked(session *models.StudySession) {
	if s.redisClient == nil {
		return
	}
	if err := s.redisClient.Delete(fmt.Sprintf("exams:session:%s", session.ID)); err != nil {
		log.Printf("⚠️ Error eliminando sesión %s de Redis: %v", session.ID, err)
	}
	if err := s.redisClient.RemoveFromSet(fmt.Sprintf("exams:sessions:%s", session.ExamCode), session.ID); err != nil {
		log.Printf("⚠️ Error desindexando sesión %s: %v", session.ID, err)
	}
}
