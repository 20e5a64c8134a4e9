package websocket

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/fasthttp/websocket"
)

// Hub distribuye los eventos del examen (ticks del temporizador, avisos,
// cambios de fase, progreso de sesión) a los clientes conectados
type Hub struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	mutex      sync.RWMutex
}

type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// TimerTickMessage tick periódico del temporizador del examen
type TimerTickMessage struct {
	RemainingTime int64  `json:"remainingTime"` // milisegundos
	IsPaused      bool   `json:"isPaused"`
	Timestamp     string `json:"timestamp"`
}

// TimerWarningMessage aviso único al cruzar un umbral de tiempo restante
type TimerWarningMessage struct {
	ThresholdMinutes float64 `json:"thresholdMinutes"`
	RemainingTime    int64   `json:"remainingTime"`
	Timestamp        string  `json:"timestamp"`
}

// ExamPhaseMessage cambio de fase del modo examen
type ExamPhaseMessage struct {
	Phase      string  `json:"phase"`
	Score      float64 `json:"score,omitempty"`
	Passed     bool    `json:"passed,omitempty"`
	AutoSubmit bool    `json:"autoSubmit,omitempty"`
	Timestamp  string  `json:"timestamp"`
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			h.mutex.Unlock()
			log.Printf("Cliente WebSocket conectado. Total: %d", len(h.clients))

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
			}
			h.mutex.Unlock()
			log.Printf("Cliente WebSocket desconectado. Total: %d", len(h.clients))

		case message := <-h.broadcast:
			h.mutex.RLock()
			for client := range h.clients {
				err := client.WriteMessage(websocket.TextMessage, message)
				if err != nil {
					log.Printf("Error enviando mensaje WebSocket: %v", err)
					delete(h.clients, client)
					client.Close()
				}
			}
			h.mutex.RUnlock()
		}
	}
}

func (h *Hub) Register(conn *websocket.Conn) {
	h.register <- conn
}

func (h *Hub) Unregister(conn *websocket.Conn) {
	h.unregister <- conn
}

// BroadcastTimerTick publica el tiempo restante actual
func (h *Hub) BroadcastTimerTick(remainingMs int64, isPaused bool) {
	h.BroadcastMessage("timerTick", TimerTickMessage{
		RemainingTime: remainingMs,
		IsPaused:      isPaused,
		Timestamp:     time.Now().Format(time.RFC3339),
	})
}

// BroadcastTimerWarning publica un aviso de umbral cruzado
func (h *Hub) BroadcastTimerWarning(thresholdMinutes float64, remainingMs int64) {
	h.BroadcastMessage("timerWarning", TimerWarningMessage{
		ThresholdMinutes: thresholdMinutes,
		RemainingTime:    remainingMs,
		Timestamp:        time.Now().Format(time.RFC3339),
	})
}

// BroadcastExamPhase publica un cambio de fase del examen
func (h *Hub) BroadcastExamPhase(phase string, score float64, passed bool, autoSubmit bool) {
	h.BroadcastMessage("examPhase", ExamPhaseMessage{
		Phase:      phase,
		Score:      score,
		Passed:     passed,
		AutoSubmit: autoSubmit,
		Timestamp:  time.Now().Format(time.RFC3339),
	})
}

func (h *Hub) BroadcastMessage(msgType string, data interface{}) {
	msg := Message{
		Type: msgType,
		Data: data,
	}

	msgData, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Error serializando mensaje: %v", err)
		return
	}

	h.broadcast <- msgData
}
