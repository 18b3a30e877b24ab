// Package eventbus is the in-process publish/subscribe hub between the
// settings store, the registry and the websocket layer.
package eventbus

import (
	evbus "github.com/asaskevich/EventBus"
)

// Publisher is the narrow side used by producers.
type Publisher interface {
	Publish(topic string, args ...interface{})
	PublishAsync(topic string, args ...interface{})
}

// Subscriber is the narrow side used by consumers.
type Subscriber interface {
	Subscribe(topic string, fn interface{}) error
	Unsubscribe(topic string, fn interface{}) error
}

// New 创建新的同步事件总线
func New() evbus.Bus {
	return evbus.New()
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(string, ...interface{})      {}
func (Nop) PublishAsync(string, ...interface{}) {}
