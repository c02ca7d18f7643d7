package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/wfunc/tap-game/internal/config"
	"github.com/wfunc/tap-game/internal/game"
	"github.com/wfunc/tap-game/internal/logger"
	"github.com/wfunc/tap-game/internal/service"
	"go.uber.org/zap"
)

// MessageType 消息类型
const (
	// 系统消息
	MessageTypeConnected = "connected"
	MessageTypePing      = "ping"
	MessageTypePong      = "pong"
	MessageTypeError     = "error"

	// 游戏消息
	MessageTypeGameState           = "game_state"
	MessageTypeAchievementUnlocked = "achievement_unlocked"
)

// Message WebSocket消息
type Message struct {
	Type      string          `json:"type"`
	PlayerID  string          `json:"player_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"` // 毫秒
}

// StateProvider 客户端主动请求状态时使用
type StateProvider interface {
	GetGame(ctx context.Context, playerID string) (*service.GameView, error)
}

// Settings 连接参数
type Settings struct {
	ReadBufferSize    int
	WriteBufferSize   int
	MaxMessageSize    int64
	PingInterval      time.Duration
	PongTimeout       time.Duration
	WriteTimeout      time.Duration
	EnableCompression bool
}

// SettingsFromConfig 从配置生成连接参数
func SettingsFromConfig(cfg *config.WebSocketConfig) Settings {
	s := Settings{
		ReadBufferSize:    cfg.ReadBufferSize,
		WriteBufferSize:   cfg.WriteBufferSize,
		MaxMessageSize:    cfg.MaxMessageSize,
		PingInterval:      cfg.PingInterval,
		PongTimeout:       cfg.PongTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		EnableCompression: cfg.EnableCompression,
	}
	return s.withDefaults()
}

func (s Settings) withDefaults() Settings {
	if s.ReadBufferSize <= 0 {
		s.ReadBufferSize = 1024
	}
	if s.WriteBufferSize <= 0 {
		s.WriteBufferSize = 1024
	}
	if s.MaxMessageSize <= 0 {
		s.MaxMessageSize = 4096
	}
	if s.PongTimeout <= 0 {
		s.PongTimeout = 60 * time.Second
	}
	// ping周期必须小于pong超时
	if s.PingInterval <= 0 || s.PingInterval >= s.PongTimeout {
		s.PingInterval = s.PongTimeout * 9 / 10
	}
	if s.WriteTimeout <= 0 {
		s.WriteTimeout = 10 * time.Second
	}
	return s
}

// Hub WebSocket连接管理中心，按玩家推送消息
type Hub struct {
	// 客户端连接池
	clients   map[string]*Client
	clientsMu sync.RWMutex

	// 玩家ID到客户端的映射
	playerClients map[string][]*Client

	// 注册/注销通道
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	stopOnce   sync.Once

	upgrader websocket.Upgrader
	settings Settings
	provider StateProvider
	logger   *zap.Logger
}

// NewHub 创建Hub
func NewHub(settings Settings, log *zap.Logger) *Hub {
	settings = settings.withDefaults()
	if log == nil {
		log = logger.GetModuleLogger("websocket")
	}

	return &Hub{
		clients:       make(map[string]*Client),
		playerClients: make(map[string][]*Client),
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		done:          make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:    settings.ReadBufferSize,
			WriteBufferSize:   settings.WriteBufferSize,
			EnableCompression: settings.EnableCompression,
			// 同源限制由前端部署方式决定
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		settings: settings,
		logger:   log,
	}
}

// SetStateProvider 设置状态来源
func (h *Hub) SetStateProvider(p StateProvider) {
	h.provider = p
}

// Run 运行Hub，直到Stop被调用
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case <-h.done:
			h.closeAll()
			return
		}
	}
}

// Stop 停止Hub并关闭所有连接
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
	})
}

// registerClient 注册客户端
func (h *Hub) registerClient(client *Client) {
	h.clientsMu.Lock()
	h.clients[client.ID] = client
	h.playerClients[client.PlayerID] = append(h.playerClients[client.PlayerID], client)
	h.clientsMu.Unlock()

	h.logger.Info("WebSocket客户端连接",
		zap.String("client_id", client.ID),
		zap.String("player_id", client.PlayerID))

	h.SendToClient(client.ID, h.newMessage(MessageTypeConnected, client.PlayerID, map[string]string{
		"client_id": client.ID,
	}))
}

// unregisterClient 注销客户端
func (h *Hub) unregisterClient(client *Client) {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()

	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	delete(h.clients, client.ID)
	close(client.Send)

	clients := h.playerClients[client.PlayerID]
	for i, c := range clients {
		if c.ID == client.ID {
			h.playerClients[client.PlayerID] = append(clients[:i], clients[i+1:]...)
			break
		}
	}
	if len(h.playerClients[client.PlayerID]) == 0 {
		delete(h.playerClients, client.PlayerID)
	}

	h.logger.Info("WebSocket客户端断开",
		zap.String("client_id", client.ID),
		zap.String("player_id", client.PlayerID))
}

func (h *Hub) closeAll() {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()

	for id, client := range h.clients {
		close(client.Send)
		delete(h.clients, id)
	}
	h.playerClients = make(map[string][]*Client)
}

// SendToClient 发送消息给指定客户端
func (h *Hub) SendToClient(clientID string, message *Message) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()

	client, ok := h.clients[clientID]
	if !ok {
		return ErrClientNotFound
	}

	select {
	case client.Send <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// SendToPlayer 发送消息给指定玩家的所有客户端
func (h *Hub) SendToPlayer(playerID string, message *Message) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()

	clients := h.playerClients[playerID]
	if len(clients) == 0 {
		return ErrPlayerNotConnected
	}

	for _, client := range clients {
		select {
		case client.Send <- data:
		default:
			h.logger.Warn("玩家客户端发送缓冲区满",
				zap.String("client_id", client.ID),
				zap.String("player_id", playerID))
		}
	}
	logger.LogWebSocketMessage("out", message.Type, playerID)
	return nil
}

// PushGameState 推送最新状态
func (h *Hub) PushGameState(playerID string, result *service.ActionResult) {
	h.push(playerID, MessageTypeGameState, result)
}

// PushAchievements 推送新解锁的成就，每个成就一条消息
func (h *Hub) PushAchievements(playerID string, unlocked []game.UnlockedAchievement) {
	for _, a := range unlocked {
		h.push(playerID, MessageTypeAchievementUnlocked, a)
	}
}

// push 推送失败只记录日志
func (h *Hub) push(playerID, msgType string, payload interface{}) {
	err := h.SendToPlayer(playerID, h.newMessage(msgType, playerID, payload))
	if err != nil && err != ErrPlayerNotConnected {
		h.logger.Warn("推送失败",
			zap.String("player_id", playerID),
			zap.String("type", msgType),
			zap.Error(err))
	}
}

// GetOnlineCount 获取在线连接数
func (h *Hub) GetOnlineCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

// GetPlayerConnections 获取玩家的连接数
func (h *Hub) GetPlayerConnections(playerID string) int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.playerClients[playerID])
}

// Register 注册客户端
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister 注销客户端
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) newMessage(msgType, playerID string, payload interface{}) *Message {
	msg := &Message{
		Type:      msgType,
		PlayerID:  playerID,
		Timestamp: time.Now().UnixMilli(),
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			h.logger.Error("序列化消息失败", zap.String("type", msgType), zap.Error(err))
		} else {
			msg.Data = data
		}
	}
	return msg
}
