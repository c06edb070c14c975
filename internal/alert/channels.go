package alert

import (
	"fmt"
	"net/http"

	goredis "github.com/redis/go-redis/v9"

	"github.com/jonathan/job-radar/internal/config"
	"github.com/jonathan/job-radar/internal/logging"
)

// Channels holds the channels built from config and the clients they own.
type Channels struct {
	List    []Channel
	closers []func()
}

// Close releases the clients opened for the channels.
func (c *Channels) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

// BuildChannels creates the channels enabled in cfg. The log channel is added
// when requested or when nothing else is configured.
func BuildChannels(cfg *config.Config, logger logging.Logger) (*Channels, error) {
	a := cfg.Alerts
	out := &Channels{}

	if a.Webhook != nil {
		out.List = append(out.List, NewWebhookChannel(a.Webhook.URL, a.Webhook.Headers, &http.Client{Timeout: a.Timeout.Duration}))
	}

	if a.Email != nil {
		out.List = append(out.List, NewEmailChannel(EmailConfig{
			Host:     a.Email.Host,
			Port:     a.Email.Port,
			Username: a.Email.Username,
			Password: a.Email.Password,
			From:     a.Email.From,
			To:       a.Email.To,
		}))
	}

	if a.Redis != nil {
		opts, err := goredis.ParseURL(cfg.RedisURL)
		if err != nil {
			out.Close()
			return nil, fmt.Errorf("invalid redis_url: %w", err)
		}
		client := goredis.NewClient(opts)
		out.closers = append(out.closers, func() { _ = client.Close() })
		out.List = append(out.List, NewRedisChannel(client, a.Redis.Channel))
	}

	if a.Kafka != nil {
		ch, err := NewKafkaChannel(a.Kafka.Brokers, a.Kafka.Topic)
		if err != nil {
			out.Close()
			return nil, err
		}
		out.closers = append(out.closers, ch.Close)
		out.List = append(out.List, ch)
	}

	if a.Log || len(out.List) == 0 {
		out.List = append(out.List, NewLogChannel(logger))
	}
	return out, nil
}
