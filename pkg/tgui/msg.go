package tgui

import (
	"context"

	kit "timetablebot/internal/transport"
)

type TextSender interface {
	SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error)
}

// Message is rendered text plus send options. Send splits it into chunks of
// at most MaxMessageRunes; the keyboard goes with the first chunk only.
type Message struct {
	Text string
	Opt  *kit.SendOptions
}

func Text(s string) Message { return Message{Text: s, Opt: &kit.SendOptions{DisablePreview: true}} }

func (m Message) WithKeyboard(rows [][]string) Message {
	opt := kit.SendOptions{DisablePreview: true}
	if m.Opt != nil {
		opt = *m.Opt
	}
	opt.Keyboard = rows
	m.Opt = &opt
	return m
}

// Send returns the reference of the first chunk sent. It stops at the first error.
func (m Message) Send(ctx context.Context, s TextSender, to kit.ChatTarget) (kit.MessageRef, error) {
	opt := kit.SendOptions{DisablePreview: true}
	if m.Opt != nil {
		opt = *m.Opt
	}
	var first kit.MessageRef
	for i, part := range ChunkTrimmed(m.Text, MaxMessageRunes) {
		if err := ctx.Err(); err != nil {
			return first, err
		}
		o := opt
		if i > 0 {
			o.Keyboard = nil
		}
		ref, err := s.SendText(ctx, to, part, &o)
		if err != nil {
			return first, err
		}
		if i == 0 {
			first = ref
		}
	}
	return first, nil
}
