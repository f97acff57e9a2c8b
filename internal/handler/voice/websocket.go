package voice

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/techfala/ia-wizard/backend/internal/handler/respond"
	"github.com/techfala/ia-wizard/backend/internal/service/flow"
	"github.com/techfala/ia-wizard/backend/internal/service/voice"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 54 * time.Second
	writeTimeout = 10 * time.Second
)

type inboundMessage struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

type permissionPayload struct {
	Granted bool `json:"granted"`
}

type startPayload struct {
	Personalize bool `json:"personalize"`
}

type pcmPayload struct {
	Samples []int16 `json:"samples"`
}

// connection 单个 WebSocket 连接的状态。gorilla 连接只允许一个写入者，写操作经 writeMu 串行化。
type connection struct {
	conn     *websocket.Conn
	recorder *voice.Recorder
	flow     *flow.Flow
	log      *zap.Logger

	writeMu     sync.Mutex
	personalize bool
	stopClock   context.CancelFunc
}

func (c *connection) send(msgType string, data interface{}) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.conn.WriteJSON(outgoingMessage{Type: msgType, Data: data, Timestamp: time.Now().Unix()}); err != nil {
		c.log.Debug("websocket write failed", zap.String("type", msgType), zap.Error(err))
	}
}

func (c *connection) sendError(message string) {
	c.send("error", map[string]string{"message": message})
}

func (c *connection) ping() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
}

// handleWebSocket 处理语音采集连接
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	f, err := h.flows.FromContext(r.Context())
	if err != nil {
		respond.Error(w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()
	conn.SetReadLimit(int64(h.cfg.MaxBytes) + 64<<10)

	c := &connection{
		conn:     conn,
		recorder: voice.NewRecorder(h.cfg),
		flow:     f,
		log:      h.log.With(zap.String("visitor", f.ID())),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer c.stopElapsed()

	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	go h.pingLoop(ctx, c)

	c.log.Info("voice connection opened")
	c.send("permission_request", map[string]any{"bars": h.cfg.Bars, "mimeType": h.cfg.MIMEType})

	for {
		kind, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn("websocket read error", zap.Error(err))
			}
			c.recorder.Abort()
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))

		if kind == websocket.BinaryMessage {
			h.handleChunk(c, payload)
			continue
		}

		var msg inboundMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			c.sendError("invalid message")
			continue
		}
		h.handleMessage(c, &msg)
	}
}

func (h *Handler) handleMessage(c *connection, msg *inboundMessage) {
	switch msg.Type {
	case "permission":
		var p permissionPayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			c.sendError("invalid permission payload")
			return
		}
		c.recorder.SetPermission(p.Granted)
		c.send("permission", map[string]any{"state": c.recorder.Permission()})
	case "start":
		var p startPayload
		if len(msg.Data) > 0 {
			_ = json.Unmarshal(msg.Data, &p)
		}
		h.handleStart(c, p)
	case "pcm":
		var p pcmPayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			c.sendError("invalid pcm payload")
			return
		}
		c.send("levels", map[string]any{"levels": c.recorder.Analyze(p.Samples)})
	case "stop":
		h.handleStop(c)
	case "abort":
		c.stopElapsed()
		c.recorder.Abort()
		c.send("aborted", map[string]any{"levels": c.recorder.Levels()})
	case "ping":
		c.send("pong", nil)
	default:
		c.sendError("unknown message type")
	}
}

func (h *Handler) handleStart(c *connection, p startPayload) {
	if err := c.recorder.Start(); err != nil {
		if errors.Is(err, voice.ErrPermissionDenied) {
			c.recorder.SetPermission(false)
			c.send("permission", map[string]any{"state": c.recorder.Permission()})
		}
		c.sendError(err.Error())
		return
	}

	c.personalize = p.Personalize
	if c.personalize {
		pers := c.flow.Personalization()
		if pers.View().Step == voice.StepIntro {
			_ = pers.Begin()
		}
	}

	c.startElapsed()
	c.send("recording", map[string]any{"elapsed": 0, "clock": c.recorder.Clock()})
}

func (h *Handler) handleChunk(c *connection, chunk []byte) {
	if err := c.recorder.Write(chunk); err != nil {
		c.sendError(err.Error())
		if errors.Is(err, voice.ErrClipTooLarge) {
			c.stopElapsed()
			c.recorder.Abort()
		}
	}
}

func (h *Handler) handleStop(c *connection) {
	c.stopElapsed()
	clip, err := c.recorder.Stop()
	if err != nil {
		c.sendError(err.Error())
		return
	}
	h.metrics.ClipCaptured()
	c.log.Info("voice clip captured", zap.Int("bytes", clip.Size), zap.Duration("duration", clip.Duration))

	if c.personalize {
		if err := c.flow.Personalization().ClipReady(clip); err != nil {
			c.log.Debug("personalisation not expecting a clip", zap.Error(err))
		}
	}
	c.send("clip", map[string]any{"clip": clip, "levels": c.recorder.Levels()})
}

// startElapsed 录音期间每秒推送一次已录时长
func (c *connection) startElapsed() {
	c.stopElapsed()
	ctx, cancel := context.WithCancel(context.Background())
	c.stopClock = cancel
	go func() {
		t := time.NewTicker(time.Second)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if !c.recorder.Recording() {
					return
				}
				elapsed := c.recorder.TickSecond()
				c.send("elapsed", map[string]any{"elapsed": elapsed, "clock": c.recorder.Clock()})
			}
		}
	}()
}

func (c *connection) stopElapsed() {
	if c.stopClock != nil {
		c.stopClock()
		c.stopClock = nil
	}
}

// pingLoop 定期发送ping消息
func (h *Handler) pingLoop(ctx context.Context, c *connection) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.ping(); err != nil {
				return
			}
		}
	}
}
