package services

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/examviewer/backend/pkg/models"
	"github.com/examviewer/backend/pkg/redis"
	"github.com/valyala/fasthttp"
)

// BankService carga el manifest y los bancos de preguntas por examen.
// Las preguntas cargadas viven en memoria; Redis solo guarda una copia
// espejo de mejor esfuerzo para inspección.
type BankService struct {
	redisClient *redis.RedisClient
	httpClient  *fasthttp.Client
	dataDir     string
	baseURL     string

	// fetchFn apunta a fetch; los tests lo reemplazan para simular
	// descargas lentas
	fetchFn func(relPath string) ([]byte, error)

	mu          sync.RWMutex
	manifest    *models.Manifest
	currentCode string
	currentName string
	questions   []models.Question
	isLoading   bool
	loadError   string
	generation  uint64
}

// NewBankService crea una nueva instancia del servicio de bancos.
// Si baseURL no está vacío los archivos se descargan por HTTP; si no,
// se leen del directorio local dataDir.
func NewBankService(redisClient *redis.RedisClient, dataDir, baseURL string) *BankService {
	s := &BankService{
		redisClient: redisClient,
		httpClient:  &fasthttp.Client{Name: "ExamViewer-Loader/1.0"},
		dataDir:     dataDir,
		baseURL:     baseURL,
	}
	s.fetchFn = s.fetch
	return s
}

// LoadManifest carga el índice de exámenes disponibles
func (s *BankService) LoadManifest() (*models.Manifest, error) {
	data, err := s.fetchFn("manifest.json")
	if err != nil {
		return nil, fmt.Errorf("error cargando manifest: %v", err)
	}

	var manifest models.Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("error parseando manifest: %v", err)
	}

	s.mu.Lock()
	s.manifest = &manifest
	s.mu.Unlock()

	log.Printf("📚 Manifest cargado: %d exámenes, %d preguntas", manifest.TotalExams, manifest.TotalQuestions)
	return &manifest, nil
}

// LoadExam carga el banco de preguntas de un examen y lo convierte en el
// examen actual. Cada carga lleva un número de generación: si una descarga
// lenta termina después de que el usuario ya seleccionó otro examen, la
// respuesta tardía se descarta en lugar de pisar la selección nueva.
func (s *BankService) LoadExam(code string) error {
	s.mu.Lock()
	entry := s.manifestEntryLocked(code)
	if s.manifest != nil && entry == nil {
		s.loadError = fmt.Sprintf("examen %s no encontrado en el manifest", code)
		s.mu.Unlock()
		return fmt.Errorf("%s", s.loadError)
	}
	s.generation++
	gen := s.generation
	s.isLoading = true
	s.loadError = ""
	s.mu.Unlock()

	data, err := s.fetchFn(filepath.Join(code, "exam.json"))

	s.mu.Lock()
	defer s.mu.Unlock()

	// Respuesta obsoleta: ya hubo una carga más reciente
	if gen != s.generation {
		log.Printf("⚠️ Descartando respuesta obsoleta para %s", code)
		return fmt.Errorf("carga de %s reemplazada por una selección más reciente", code)
	}
	s.isLoading = false

	if err != nil {
		s.loadError = fmt.Sprintf("error cargando examen %s: %v", code, err)
		return fmt.Errorf("%s", s.loadError)
	}

	var examData models.ExamData
	if err := json.Unmarshal(data, &examData); err != nil {
		s.loadError = fmt.Sprintf("error parseando examen %s: %v", code, err)
		return fmt.Errorf("%s", s.loadError)
	}

	if examData.Status == models.ExamStatusError {
		s.loadError = fmt.Sprintf("el banco %s está marcado con error: %s", code, examData.Error)
		return fmt.Errorf("%s", s.loadError)
	}
	if examData.Status == models.ExamStatusPartial {
		log.Printf("⚠️ El banco %s está incompleto (status=partial)", code)
	}

	s.currentCode = code
	s.currentName = code
	if entry != nil {
		s.currentName = entry.Name
	}
	s.questions = examData.Questions

	s.mirrorToRedis(code, examData.Questions)

	log.Printf("✅ Examen %s cargado: %d preguntas", code, len(examData.Questions))
	return nil
}

// fetch obtiene un archivo del banco por HTTP o del directorio local
func (s *BankService) fetch(relPath string) ([]byte, error) {
	if s.baseURL != "" {
		url := s.baseURL + "/" + filepath.ToSlash(relPath)
		statusCode, body, err := s.httpClient.Get(nil, url)
		if err != nil {
			return nil, fmt.Errorf("error descargando %s: %v", url, err)
		}
		if statusCode != fasthttp.StatusOK {
			return nil, fmt.Errorf("status %d descargando %s", statusCode, url)
		}
		return body, nil
	}

	data, err := os.ReadFile(filepath.Join(s.dataDir, relPath))
	if err != nil {
		return nil, fmt.Errorf("error leyendo archivo: %v", err)
	}
	return data, nil
}

// mirrorToRedis copia las preguntas cargadas a Redis (mejor esfuerzo)
func (s *BankService) mirrorToRedis(code string, questions []models.Question) {
	if s.redisClient == nil {
		return
	}

	data, err := json.Marshal(questions)
	if err != nil {
		log.Printf("⚠️ Error serializando preguntas de %s: %v", code, err)
		return
	}
	key := fmt.Sprintf("exams:questions:%s", code)
	if err := s.redisClient.Set(key, string(data), 0); err != nil {
		log.Printf("⚠️ Error guardando preguntas de %s en Redis: %v", code, err)
	}
}

func (s *BankService) manifestEntryLocked(code string) *models.ManifestEntry {
	if s.manifest == nil {
		return nil
	}
	for i := range s.manifest.Exams {
		if s.manifest.Exams[i].Code == code {
			return &s.manifest.Exams[i]
		}
	}
	return nil
}

// Manifest devuelve el manifest cargado (puede ser nil)
func (s *BankService) Manifest() *models.Manifest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.manifest
}

// CurrentExam devuelve código y nombre del examen actual
func (s *BankService) CurrentExam() (string, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentCode, s.currentName
}

// Questions devuelve una copia de la lista de preguntas del examen actual
func (s *BankService) Questions() []models.Question {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Question(nil), s.questions...)
}

// Question devuelve la pregunta en el índice dado, o nil si está fuera de rango
func (s *BankService) Question(index int) *models.Question {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if index < 0 || index >= len(s.questions) {
		return nil
	}
	q := s.questions[index]
	return &q
}

// QuestionCount devuelve el número de preguntas del examen actual
func (s *BankService) QuestionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.questions)
}

// IsLoading indica si hay una carga en curso
func (s *BankService) IsLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isLoading
}

// LoadError devuelve el último error de carga visible para el usuario
func (s *BankService) LoadError() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadError
}

// HealthCheck verifica la conexión con el almacenamiento
func (s *BankService) HealthCheck() error {
	if s.redisClient == nil {
		return nil
	}
	return s.redisClient.HealthCheck()
}
