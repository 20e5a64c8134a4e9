package services

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/examviewer/backend/pkg/models"
	"github.com/examviewer/backend/pkg/redis"
)

// FilterService deriva la lista filtrada de índices a partir del estado y
// los predicados del usuario, y persiste las preferencias de filtro por
// código de examen.
type FilterService struct {
	redisClient *redis.RedisClient
}

// NewFilterService crea una nueva instancia del motor de filtros
func NewFilterService(redisClient *redis.RedisClient) *FilterService {
	return &FilterService{redisClient: redisClient}
}

// ApplyFilters intersecta todos los predicados activos (AND lógico) y
// devuelve los índices que pasan, conservando el orden original ascendente.
// El predicado de estado compara contra el status permanente de primera
// respuesta: reiniciar una pregunta no la saca del filtro. La búsqueda de
// texto no distingue mayúsculas y cubre el enunciado y todas las opciones
// de respuesta.
func ApplyFilters(questions []models.Question, states []models.QuestionState, filter models.FilterOptions) []int {
	query := strings.ToLower(strings.TrimSpace(filter.Query))

	var indices []int
	for i := range questions {
		var st models.QuestionState
		if i < len(states) {
			st = states[i]
		} else {
			st.Status = models.StatusUnanswered
		}

		if filter.FavoritesOnly && !st.IsFavorite {
			continue
		}
		if filter.Status != "" && filter.Status != "all" && string(st.FirstAnswerStatus()) != filter.Status {
			continue
		}
		if filter.Difficulty != "" && filter.Difficulty != "all" && st.Difficulty != filter.Difficulty {
			continue
		}
		if filter.Category != "" && filter.Category != "all" && st.Category != filter.Category {
			continue
		}
		if query != "" && !matchesQuery(&questions[i], query) {
			continue
		}
		indices = append(indices, i)
	}
	return indices
}

func matchesQuery(q *models.Question, query string) bool {
	if strings.Contains(strings.ToLower(q.Question), query) {
		return true
	}
	for _, answer := range q.Answers {
		if strings.Contains(strings.ToLower(answer), query) {
			return true
		}
	}
	return false
}

// ResolveCurrentIndex decide a dónde navegar tras recalcular el filtro: si
// el índice mostrado sigue dentro del conjunto no hay navegación; si quedó
// fuera se navega al primer índice del conjunto nuevo; con conjunto vacío
// no se navega.
func ResolveCurrentIndex(current int, filtered []int) (int, bool) {
	if len(filtered) == 0 {
		return current, false
	}
	for _, idx := range filtered {
		if idx == current {
			return current, false
		}
	}
	return filtered[0], true
}

// SaveFilterPrefs persiste las preferencias de filtro del examen (mejor esfuerzo)
func (s *FilterService) SaveFilterPrefs(examCode string, filter models.FilterOptions) {
	if s.redisClient == nil || examCode == "" {
		return
	}

	data, err := json.Marshal(filter)
	if err != nil {
		log.Printf("⚠️ Error serializando filtros: %v", err)
		return
	}
	key := fmt.Sprintf("exams:filters:%s", examCode)
	if err := s.redisClient.Set(key, string(data), 0); err != nil {
		log.Printf("⚠️ Error guardando filtros en Redis: %v", err)
	}
}

// LoadFilterPrefs restaura las preferencias de filtro del examen
func (s *FilterService) LoadFilterPrefs(examCode string) models.FilterOptions {
	var filter models.FilterOptions
	if s.redisClient == nil || examCode == "" {
		return filter
	}

	key := fmt.Sprintf("exams:filters:%s", examCode)
	data, err := s.redisClient.Get(key)
	if err != nil {
		return filter // sin preferencias guardadas
	}
	if err := json.Unmarshal([]byte(data), &filter); err != nil {
		log.Printf("⚠️ Error parseando filtros de %s: %v", examCode, err)
	}
	return filter
}
