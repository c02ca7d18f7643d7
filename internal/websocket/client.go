package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	apperrors "github.com/wfunc/tap-game/internal/errors"
	"github.com/wfunc/tap-game/internal/logger"
	"go.uber.org/zap"
)

// 错误定义
var (
	ErrClientNotFound     = errors.New("客户端未找到")
	ErrPlayerNotConnected = errors.New("玩家未连接")
	ErrSendBufferFull     = errors.New("发送缓冲区已满")
	ErrHubStopped         = errors.New("Hub已停止")
)

const sendBufferSize = 256

// Client WebSocket客户端
type Client struct {
	ID       string          // 客户端ID
	PlayerID string          // 玩家ID
	Hub      *Hub            // Hub引用
	Conn     *websocket.Conn // WebSocket连接
	Send     chan []byte     // 发送通道
}

// NewClient 创建新客户端
func NewClient(hub *Hub, conn *websocket.Conn, playerID string) *Client {
	return &Client{
		ID:       uuid.New().String(),
		PlayerID: playerID,
		Hub:      hub,
		Conn:     conn,
		Send:     make(chan []byte, sendBufferSize),
	}
}

// ServeWS 升级HTTP连接并为玩家注册客户端，阻塞直到连接断开
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, playerID string) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrWebSocketConnect)
	}

	client := NewClient(h, conn, playerID)
	if !h.Register(client) {
		conn.Close()
		return ErrHubStopped
	}

	go client.WritePump()
	client.ReadPump()
	return nil
}

// ReadPump 读取消息
func (c *Client) ReadPump() {
	settings := c.Hub.settings
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(settings.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(settings.PongTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(settings.PongTimeout))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.logger.Error("WebSocket读取错误",
					zap.String("client_id", c.ID),
					zap.Error(err))
			}
			break
		}

		c.handleMessage(message)
	}
}

// WritePump 写入消息
func (c *Client) WritePump() {
	settings := c.Hub.settings
	ticker := time.NewTicker(settings.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(settings.WriteTimeout))
			if !ok {
				// Hub关闭了通道
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(settings.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage 处理客户端消息
func (c *Client) handleMessage(data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		c.Hub.logger.Warn("解析WebSocket消息失败",
			zap.String("client_id", c.ID),
			zap.Error(err))
		c.sendError(apperrors.ErrMessageFormat, "消息格式错误")
		return
	}
	logger.LogWebSocketMessage("in", msg.Type, c.PlayerID)

	switch msg.Type {
	case MessageTypePing:
		c.Hub.SendToClient(c.ID, c.Hub.newMessage(MessageTypePong, c.PlayerID, nil))

	case MessageTypePong:
		c.Hub.logger.Debug("收到pong", zap.String("client_id", c.ID))

	case MessageTypeGameState:
		c.sendGameState()

	default:
		c.sendError(apperrors.ErrMessageFormat, "不支持的消息类型: "+msg.Type)
	}
}

// sendGameState 发送当前完整状态
func (c *Client) sendGameState() {
	if c.Hub.provider == nil {
		c.sendError(apperrors.ErrNotImplemented, "状态查询不可用")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.Hub.settings.WriteTimeout)
	defer cancel()

	view, err := c.Hub.provider.GetGame(ctx, c.PlayerID)
	if err != nil {
		code := apperrors.GetCode(err)
		c.sendError(code, err.Error())
		return
	}
	c.Hub.SendToClient(c.ID, c.Hub.newMessage(MessageTypeGameState, c.PlayerID, view))
}

// sendError 发送错误消息
func (c *Client) sendError(code apperrors.ErrorCode, message string) {
	c.Hub.SendToClient(c.ID, c.Hub.newMessage(MessageTypeError, c.PlayerID, map[string]interface{}{
		"code":  code,
		"error": message,
	}))
}
