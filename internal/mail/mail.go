// Package mail sends rendered HTML emails.
package mail

import (
	"context"
	"fmt"

	"accessdesk/pkg/circuitbreaker"
	"accessdesk/pkg/config"

	"go.uber.org/zap"
)

type Message struct {
	To      string
	Subject string
	HTML    string
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// NewSender 根据 smtp.driver 选择实现；smtp 模式外面包一层熔断器
func NewSender(cfg config.SMTPConfig, logger *zap.Logger) (Sender, error) {
	switch cfg.Driver {
	case "", "log":
		return NewLogSender(logger), nil
	case "smtp":
		if cfg.Host == "" {
			return nil, fmt.Errorf("smtp driver requires smtp.host")
		}
		return NewBreakerSender(NewSMTPSender(cfg), circuitbreaker.DefaultConfig(), logger), nil
	default:
		return nil, fmt.Errorf("unknown smtp driver %q", cfg.Driver)
	}
}

// LogSender only logs; used in local development.
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.logger.Info("Email (log driver)",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.Int("html_bytes", len(msg.HTML)),
	)
	return nil
}

// BreakerSender fails fast with circuitbreaker.ErrCircuitBreakerOpen while the
// wrapped sender keeps failing.
type BreakerSender struct {
	next    Sender
	breaker *circuitbreaker.CircuitBreaker
}

func NewBreakerSender(next Sender, cfg circuitbreaker.Config, logger *zap.Logger) *BreakerSender {
	cfg.OnStateChange = func(from, to circuitbreaker.State) {
		logger.Warn("SMTP circuit breaker state changed",
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
	}
	return &BreakerSender{next: next, breaker: circuitbreaker.NewCircuitBreaker(cfg)}
}

func (s *BreakerSender) Send(ctx context.Context, msg Message) error {
	return s.breaker.Execute(ctx, func(ctx context.Context) error {
		return s.next.Send(ctx, msg)
	})
}
