// Package router turns incoming chat messages into command handler calls.
package router

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"runtime/debug"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	rtsup "timetablebot/internal/runtime/supervisor"
	kit "timetablebot/internal/transport"
	logx "timetablebot/pkg/logx"
)

type Access int

const (
	AccessEveryone Access = iota
	AccessOwnerOnly
)

type Command struct {
	Name        string // without the slash
	Aliases     []string
	Buttons     []string // reply keyboard texts that run this command
	Description string
	Access      Access
	Hidden      bool // kept out of the command menu
	Timeout     time.Duration
	Handle      HandlerFunc
}

type Request struct {
	Message kit.Message
	Chat    kit.ChatTarget
	FromID  int64
	Command string
	Args    []string
	IsOwner bool
	ReqID   string

	Adapter kit.Adapter
	Logger  logx.Logger
}

const (
	textUnknown      = "Неизвестная команда. Список команд: /help"
	textUnauthorized = "Команда доступна только владельцу бота."
	textBusy         = "Бот занят, попробуйте ещё раз."

	replyTimeout     = 10 * time.Second
	busyReplyTimeout = 2 * time.Second
)

// CommandManager routes messages to commands on a bounded worker pool so a
// slow handler never stalls the update loop.
type CommandManager struct {
	mu       sync.RWMutex
	commands map[string]Command // name and aliases
	buttons  map[string]Command
	owners   []int64
	username string

	log     logx.Logger
	adapter kit.Adapter
	workers int
	jobs    chan func()
	sup     *rtsup.Supervisor // parent for background tasks; may be nil
}

type Option func(*CommandManager)

// WithWorkers sets the handler pool size.
func WithWorkers(n int) Option { return func(m *CommandManager) { m.workers = n } }

// WithSupervisor runs background work such as menu updates under sup.
func WithSupervisor(sup *rtsup.Supervisor) Option { return func(m *CommandManager) { m.sup = sup } }

func NewCommandManager(log logx.Logger, adapter kit.Adapter, owners []int64, opts ...Option) *CommandManager {
	if log.IsZero() {
		log = logx.Nop()
	}
	m := &CommandManager{
		commands: map[string]Command{},
		buttons:  map[string]Command{},
		owners:   append([]int64(nil), owners...),
		log:      log,
		adapter:  adapter,
		workers:  4,
		jobs:     make(chan func(), 128),
	}
	for _, o := range opts {
		o(m)
	}
	if m.workers < 1 {
		m.workers = 1
	}
	return m
}

// SetOwners replaces the owner list; safe during hot reload.
func (m *CommandManager) SetOwners(owners []int64) {
	cp := append([]int64(nil), owners...)
	m.mu.Lock()
	m.owners = cp
	m.mu.Unlock()
}

// SetUsername makes "/cmd@name" addressed to other bots ignored in groups.
func (m *CommandManager) SetUsername(name string) {
	m.mu.Lock()
	m.username = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), "@"))
	m.mu.Unlock()
}

func (m *CommandManager) isOwner(id int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Contains(m.owners, id)
}

// SetRegistry installs cmds and publishes the public ones as the command menu.
func (m *CommandManager) SetRegistry(cmds []Command) {
	byName := map[string]Command{}
	byButton := map[string]Command{}
	for _, c := range cmds {
		name := sanitizeCommand(c.Name)
		if name == "" || c.Handle == nil {
			continue
		}
		c.Name = name
		byName[name] = c
		for _, a := range c.Aliases {
			if a = sanitizeCommand(a); a != "" {
				byName[a] = c
			}
		}
		for _, b := range c.Buttons {
			if b = strings.TrimSpace(b); b != "" {
				byButton[b] = c
			}
		}
	}
	m.mu.Lock()
	m.commands = byName
	m.buttons = byButton
	m.mu.Unlock()

	up, ok := m.adapter.(kit.CommandMenuUpdater)
	if !ok {
		return
	}
	menu := buildMenu(cmds)
	run := func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := up.UpdateMenuCommands(ctx, menu); err != nil {
			m.log.Warn("command menu update failed", logx.Err(err))
		}
	}
	if m.sup != nil {
		m.sup.Go0("telegram.menu.update", run)
	} else {
		go run(context.Background())
	}
}

// DispatchLoop consumes messages until ctx is done or in is closed.
func (m *CommandManager) DispatchLoop(ctx context.Context, in <-chan kit.Message) error {
	sup := rtsup.NewSupervisor(ctx,
		rtsup.WithLogger(m.log.With(logx.String("comp", "telegram.router"))),
		rtsup.WithCancelOnError(false),
	)
	for i := 0; i < m.workers; i++ {
		idx := i
		sup.GoRestart("command.worker."+strconv.Itoa(idx), func(c context.Context) error {
			for {
				select {
				case <-c.Done():
					return nil
				case job := <-m.jobs:
					m.runJob(idx, job)
				}
			}
		}, rtsup.WithRestartBackoff(200*time.Millisecond, 5*time.Second))
	}
	m.log.Info("command dispatcher started", logx.Int("workers", m.workers), logx.Int("queue_cap", cap(m.jobs)))

	defer func() {
		sup.Cancel()
		wctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		_ = sup.Wait(wctx)
		cancel()
		m.log.Info("command dispatcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-in:
			if !ok {
				return nil
			}
			m.Route(ctx, msg)
		}
	}
}

func (m *CommandManager) runJob(worker int, job func()) {
	if job == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("panic in command job", logx.Int("worker", worker), logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
		}
	}()
	job()
}

// Route resolves msg to a command and queues it. Plain text that is not a
// keyboard button is ignored.
func (m *CommandManager) Route(ctx context.Context, msg kit.Message) {
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}
	to := kit.ChatTarget{ChatID: msg.ChatID, ThreadID: msg.ThreadID}

	m.mu.RLock()
	btn, isButton := m.buttons[text]
	commands := m.commands
	username := m.username
	m.mu.RUnlock()

	if isButton {
		m.enqueue(ctx, msg, btn, nil)
		return
	}
	if !strings.HasPrefix(text, "/") {
		return
	}

	fields := strings.Fields(text)
	word := strings.TrimPrefix(fields[0], "/")
	if at := strings.IndexByte(word, '@'); at >= 0 {
		target := strings.ToLower(word[at+1:])
		word = word[:at]
		if username != "" && target != username {
			return
		}
	}
	cmd, ok := commands[strings.ToLower(word)]
	if !ok {
		// Group chats carry commands meant for other bots.
		if !msg.IsGroup {
			m.reply(ctx, to, textUnknown)
		}
		return
	}
	m.enqueue(ctx, msg, cmd, fields[1:])
}

func (m *CommandManager) enqueue(ctx context.Context, msg kit.Message, cmd Command, args []string) {
	to := kit.ChatTarget{ChatID: msg.ChatID, ThreadID: msg.ThreadID}
	owner := m.isOwner(msg.FromID)
	if cmd.Access == AccessOwnerOnly && !owner {
		m.reply(ctx, to, textUnauthorized)
		return
	}

	rid := newReqID()
	req := &Request{
		Message: msg,
		Chat:    to,
		FromID:  msg.FromID,
		Command: cmd.Name,
		Args:    args,
		IsOwner: owner,
		ReqID:   rid,
		Adapter: m.adapter,
		Logger: m.log.With(
			logx.String("rid", rid),
			logx.Int64("chat_id", msg.ChatID),
			logx.Int64("from_id", msg.FromID),
			logx.String("cmd", cmd.Name),
		),
	}
	final := Chain(cmd.Handle, MWPanicRecover(), MWRequestLog(), MWTimeout(cmd.Timeout))

	select {
	case m.jobs <- func() { _ = final(ctx, req) }:
	default:
		req.Logger.Warn("command queue full")
		bctx, cancel := context.WithTimeout(ctx, busyReplyTimeout)
		defer cancel()
		_, _ = m.adapter.SendText(bctx, to, textBusy, nil)
	}
}

// reply queues a fixed notice on the worker pool. It is dropped when the
// queue is full.
func (m *CommandManager) reply(ctx context.Context, to kit.ChatTarget, text string) {
	job := func() {
		rctx, cancel := context.WithTimeout(ctx, replyTimeout)
		defer cancel()
		if _, err := m.adapter.SendText(rctx, to, text, nil); err != nil {
			m.log.Debug("reply failed", logx.Int64("chat_id", to.ChatID), logx.Err(err))
		}
	}
	select {
	case m.jobs <- job:
	default:
		m.log.Warn("command queue full, reply dropped", logx.Int64("chat_id", to.ChatID))
	}
}

func newReqID() string {
	var b [6]byte
	if _, err := rand.Read(b[:]); err != nil {
		return strconv.FormatInt(time.Now().UnixNano(), 36)
	}
	return hex.EncodeToString(b[:])
}
