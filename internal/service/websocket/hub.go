package websocket

import (
	"encoding/base64"
	"encoding/json"
	"sync"
	"time"

	"birdgate/internal/dto"
	"birdgate/internal/logger"

	"github.com/gorilla/websocket"
)

const (
	broadcastBuffer = 64
	writeWait       = 5 * time.Second
)

// Message types sent to viewers.
const (
	TypeFrame     = "frame"
	TypeDetection = "detection"
)

// Message is the JSON envelope pushed to every viewer.
type Message struct {
	Type      string               `json:"type"`
	Camera    string               `json:"camera"`
	Image     string               `json:"image,omitempty"` // base64 JPEG
	Detection *dto.DetectionResult `json:"detection,omitempty"`
}

type HubService struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	done       chan struct{}
	stopOnce   sync.Once
	mutex      sync.RWMutex
	logger     *logger.Logger
}

func NewHubService(logger *logger.Logger) *HubService {
	return &HubService{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte, broadcastBuffer),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run serves registrations and broadcasts until Stop is called.
func (h *HubService) Run() {
	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info("Client connected. Total: %d", count)

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
			}
			count := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info("Client disconnected. Total: %d", count)

		case message := <-h.broadcast:
			h.send(message)

		case <-h.done:
			h.mutex.Lock()
			for client := range h.clients {
				client.Close()
				delete(h.clients, client)
			}
			h.mutex.Unlock()
			return
		}
	}
}

func (h *HubService) send(message []byte) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for client := range h.clients {
		client.SetWriteDeadline(time.Now().Add(writeWait))
		if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
			h.logger.Error("Error sending message: %v", err)
			delete(h.clients, client)
			client.Close()
		}
	}
}

// Stop closes every viewer and ends Run.
func (h *HubService) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

func (h *HubService) Register(client *websocket.Conn) {
	select {
	case h.register <- client:
	case <-h.done:
		client.Close()
	}
}

func (h *HubService) Unregister(client *websocket.Conn) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Broadcast queues message for every viewer. It reports false when the
// queue is full and the message was dropped.
func (h *HubService) Broadcast(message []byte) bool {
	select {
	case h.broadcast <- message:
		return true
	default:
		return false
	}
}

// BroadcastFrame pushes a live camera frame.
func (h *HubService) BroadcastFrame(image []byte, camera string) bool {
	if h.GetClientCount() == 0 {
		return false
	}
	return h.broadcastMessage(Message{
		Type:   TypeFrame,
		Camera: camera,
		Image:  base64.StdEncoding.EncodeToString(image),
	})
}

// BroadcastDetection pushes a detection event with the annotated frame.
func (h *HubService) BroadcastDetection(event dto.DetectionResult, image []byte) bool {
	msg := Message{Type: TypeDetection, Camera: event.Camera, Detection: &event}
	if len(image) > 0 {
		msg.Image = base64.StdEncoding.EncodeToString(image)
	}
	return h.broadcastMessage(msg)
}

func (h *HubService) broadcastMessage(msg Message) bool {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Error encoding %s message: %v", msg.Type, err)
		return false
	}
	return h.Broadcast(data)
}

func (h *HubService) GetClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}
