package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/visadesk/visadesk/internal/authz"
)

// Session pairs one principal's channel with the ledger it feeds.
type Session struct {
	PrincipalID string
	Channel     *Channel
	Ledger      *Ledger

	logger *slog.Logger

	mu      sync.Mutex
	refs    int
	dropped bool
}

// MarkRead marks one entry read and forwards the ack.
func (s *Session) MarkRead(ctx context.Context, id string) bool {
	if !s.Ledger.MarkRead(id) {
		return false
	}
	s.ack(ctx, Ack{EventID: id, Action: AckRead})
	return true
}

// MarkAllRead marks every entry read and forwards the ack.
func (s *Session) MarkAllRead(ctx context.Context) {
	s.Ledger.MarkAllRead()
	s.ack(ctx, Ack{Action: AckReadAll})
}

// Dismiss removes one entry and forwards the ack.
func (s *Session) Dismiss(ctx context.Context, id string) bool {
	if !s.Ledger.Dismiss(id) {
		return false
	}
	s.ack(ctx, Ack{EventID: id, Action: AckDismiss})
	return true
}

// ClearAll empties the ledger and forwards the ack.
func (s *Session) ClearAll(ctx context.Context) {
	s.Ledger.ClearAll()
	s.ack(ctx, Ack{Action: AckClear})
}

// ack is best-effort: the local ledger is already correct without it.
func (s *Session) ack(ctx context.Context, ack Ack) {
	ack.PrincipalID = s.PrincipalID
	f, err := AckFrame(ack)
	if err != nil {
		return
	}
	if err := s.Channel.Send(ctx, f); err != nil && !errors.Is(err, ErrChannelUnavailable) {
		s.logger.Debug("notify ack", slog.String("principal", s.PrincipalID), slog.Any("error", err))
	}
}

// Hub holds exactly one Session per principal. A session's channel is
// connected while at least one holder has it acquired; the session and its
// ledger outlive releases until the principal is dropped.
type Hub struct {
	transport Transport
	opts      ChannelOptions

	mu       sync.Mutex
	sessions map[string]*Session

	closeOnce sync.Once
	closed    chan struct{}
}

// NewHub constructs a Hub whose channels use transport.
func NewHub(transport Transport, opts ChannelOptions) *Hub {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Hub{
		transport: transport,
		opts:      opts,
		sessions:  make(map[string]*Session),
		closed:    make(chan struct{}),
	}
}

// Session returns the principal's session, creating a disconnected one if
// needed.
func (h *Hub) Session(principalID string) *Session {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.sessions[principalID]; ok {
		return s
	}
	ch := NewChannel(h.transport, h.opts)
	ledger := NewLedger()
	ledger.Attach(ch)
	s := &Session{PrincipalID: principalID, Channel: ch, Ledger: ledger, logger: h.opts.Logger}
	h.sessions[principalID] = s
	return s
}

// Acquire connects the principal's channel if this is the first holder and
// returns a release function that disconnects it after the last holder.
func (h *Hub) Acquire(ctx context.Context, p *authz.Principal, token string) (*Session, func(), error) {
	s := h.Session(p.ID)
	s.mu.Lock()
	for s.dropped {
		s.mu.Unlock()
		s = h.Session(p.ID)
		s.mu.Lock()
	}
	if err := s.Channel.Connect(ctx, token); err != nil {
		// A Connect abandoned by ctx leaves run dialling in the background;
		// with no holder left nothing else would ever stop it.
		if s.refs == 0 {
			s.Channel.Disconnect()
		}
		s.mu.Unlock()
		return nil, nil, err
	}
	s.refs++
	s.mu.Unlock()

	var once sync.Once
	release := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if s.dropped {
				return
			}
			s.refs--
			if s.refs == 0 {
				s.Channel.Disconnect()
			}
		})
	}
	return s, release, nil
}

// Drop disconnects and forgets the principal's session, e.g. on logout.
func (h *Hub) Drop(principalID string) {
	h.mu.Lock()
	s, ok := h.sessions[principalID]
	delete(h.sessions, principalID)
	h.mu.Unlock()
	if ok {
		s.drop()
	}
}

// drop retires s so outstanding release functions become no-ops.
func (s *Session) drop() {
	s.mu.Lock()
	s.dropped = true
	s.refs = 0
	s.mu.Unlock()
	s.Channel.Disconnect()
}

// Done is closed once Close has been called, so long-lived holders such as
// SSE streams can let go.
func (h *Hub) Done() <-chan struct{} {
	return h.closed
}

// Close disconnects every session.
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.closed) })
	h.mu.Lock()
	sessions := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.sessions = make(map[string]*Session)
	h.mu.Unlock()
	for _, s := range sessions {
		s.drop()
	}
}
