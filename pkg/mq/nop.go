package mq

import (
	"context"

	"github.com/rs/zerolog"
)

// NopPublisher mq.enabled为false时使用，只打调试日志
type NopPublisher struct {
	Logger zerolog.Logger
}

func (p NopPublisher) Publish(_ context.Context, routingKey string, _ interface{}) error {
	p.Logger.Debug().Str("routing_key", routingKey).Msg("消息队列未启用，事件已丢弃")
	return nil
}
