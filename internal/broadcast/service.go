// Package broadcast delivers the daily notification to the configured chat.
package broadcast

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	kit "timetablebot/internal/transport"
	logx "timetablebot/pkg/logx"
	"timetablebot/pkg/tgui"
)

// ErrDispatch marks a broadcast that did not reach the destination chat.
var ErrDispatch = errors.New("broadcast dispatch failed")

type Config struct {
	Target     kit.ChatTarget
	Timeout    time.Duration // whole dispatch, all chunks included
	RatePerSec int           // chunk pacing
}

// Service sends rendered text to one chat. Oversized text is split into
// message-sized chunks that are paced by a limiter.
type Service struct {
	mu      sync.Mutex
	cfg     Config
	sender  tgui.TextSender
	limiter *rate.Limiter
	log     logx.Logger
}

func New(cfg Config, sender tgui.TextSender, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{sender: sender, log: log}
	s.Apply(cfg)
	return s
}

func (s *Service) Apply(cfg Config) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 1
	}
	s.mu.Lock()
	s.cfg = cfg
	s.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	s.mu.Unlock()
}

func (s *Service) Target() kit.ChatTarget {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Target
}

// Send delivers text within the configured timeout. Any failure wraps ErrDispatch.
func (s *Service) Send(ctx context.Context, text string) error {
	s.mu.Lock()
	cfg := s.cfg
	lim := s.limiter
	s.mu.Unlock()

	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: empty message", ErrDispatch)
	}
	if cfg.Target.ChatID == 0 {
		return fmt.Errorf("%w: no destination chat", ErrDispatch)
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	start := time.Now()
	p := &pacedSender{next: s.sender, lim: lim}
	if _, err := tgui.Text(text).Send(ctx, p, cfg.Target); err != nil {
		s.log.Warn("broadcast send failed",
			logx.Int64("chat_id", cfg.Target.ChatID),
			logx.Int("thread_id", cfg.Target.ThreadID),
			logx.Int("chunks_sent", p.sent),
			logx.Err(err))
		return fmt.Errorf("%w: %w", ErrDispatch, err)
	}
	s.log.Debug("broadcast sent",
		logx.Int64("chat_id", cfg.Target.ChatID),
		logx.Int("chunks", p.sent),
		logx.Duration("dur", time.Since(start)))
	return nil
}

// pacedSender waits on the limiter before every chunk. A failed chunk is
// never resent: Telegram may have accepted it even when the call errored.
type pacedSender struct {
	next tgui.TextSender
	lim  *rate.Limiter
	sent int
}

func (p *pacedSender) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	if err := p.lim.Wait(ctx); err != nil {
		return kit.MessageRef{}, err
	}
	ref, err := p.next.SendText(ctx, to, text, opt)
	if err != nil {
		return kit.MessageRef{}, err
	}
	p.sent++
	return ref, nil
}
