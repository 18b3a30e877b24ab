package eventbus

import (
	"pose-stream-server-go/internal/utils"
)

// LogHandler writes a log line for every lifecycle event.
type LogHandler struct {
	logger *utils.Logger
}

// NewLogHandler 创建日志事件处理器
func NewLogHandler(logger *utils.Logger) *LogHandler {
	return &LogHandler{logger: logger}
}

func (h *LogHandler) onSettings(evt SettingsEventData) {
	h.logger.InfoTag("Settings", "%s applied, rebuild=%v", evt.Op, evt.NeedsRebuild)
}

func (h *LogHandler) onRegistry(evt RegistryEventData) {
	h.logger.InfoTag("Registry", "refreshed: %+v", evt.Report)
}

func (h *LogHandler) onConnection(evt ConnectionEventData) {
	h.logger.DebugTag("WebSocket", "connection %s (%s), active=%d", evt.SessionID, evt.RemoteAddr, evt.Active)
}

// Register subscribes the handler to every known topic.
func (h *LogHandler) Register(sub Subscriber) error {
	subs := []struct {
		topic string
		fn    interface{}
	}{
		{EventSettingsUpdated, h.onSettings},
		{EventSettingsReset, h.onSettings},
		{EventRegistryRefreshed, h.onRegistry},
		{EventConnectionOpened, h.onConnection},
		{EventConnectionClosed, h.onConnection},
	}
	for _, s := range subs {
		if err := sub.Subscribe(s.topic, s.fn); err != nil {
			return err
		}
	}
	return nil
}
