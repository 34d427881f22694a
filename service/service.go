// Package service applies chat actions to the event: it loads the state once
// per update, enforces who may do what and when, runs the team shuffle
// sub-flow and writes the result back to the store.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"RosterBot/model"
	"RosterBot/teams"

	"github.com/rs/zerolog"
)

// StateRepository persists the event and chat sessions.
type StateRepository interface {
	LoadEvent(ctx context.Context) (*model.EventState, error)
	LoadSession(ctx context.Context, chatID int64) (*model.ChatSession, error)
	Save(ctx context.Context, event *model.EventState, session *model.ChatSession) error
	Reset(ctx context.Context, chatID int64) error
}

// User is the author of an inbound action.
type User struct {
	ID       model.UserID
	Name     string
	Username string
}

// Request is the state of one inbound update. It is loaded once and passed
// through every operation of that update.
type Request struct {
	ChatID  int64
	User    User
	Event   *model.EventState
	Session *model.ChatSession

	// Stale lists prompts left behind by an abandoned sub-flow. The caller
	// deletes them.
	Stale []model.MessageRef
}

type Service struct {
	repo    StateRepository
	admins  map[model.UserID]struct{}
	shuffle func(players []string, teamCount int) [][]string
	now     func() time.Time
	log     zerolog.Logger

	mu    sync.Mutex
	flows map[int64]*model.ChatFlow
}

type Option func(*Service)

// WithAdmins restricts admin actions to the given users. Without it anyone
// in the chat may run them.
func WithAdmins(ids []int64) Option {
	return func(s *Service) {
		for _, id := range ids {
			s.admins[model.UserID(id)] = struct{}{}
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithShuffler(fn func(players []string, teamCount int) [][]string) Option {
	return func(s *Service) { s.shuffle = fn }
}

func New(repo StateRepository, opts ...Option) *Service {
	s := &Service{
		repo:    repo,
		admins:  map[model.UserID]struct{}{},
		shuffle: teams.Shuffle,
		now:     time.Now,
		log:     zerolog.Nop(),
		flows:   map[int64]*model.ChatFlow{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load reads the event and the chat session for one update.
func (s *Service) Load(ctx context.Context, chatID int64, user User) (*Request, error) {
	event, err := s.repo.LoadEvent(ctx)
	if err != nil {
		return nil, err
	}
	session, err := s.repo.LoadSession(ctx, chatID)
	if err != nil {
		return nil, err
	}
	return &Request{ChatID: chatID, User: user, Event: event, Session: session}, nil
}

func (s *Service) Save(ctx context.Context, req *Request) error {
	if err := s.repo.Save(ctx, req.Event, req.Session); err != nil {
		return fmt.Errorf("save state for chat %d: %w", req.ChatID, err)
	}
	return nil
}

func (s *Service) IsAdmin(id model.UserID) bool {
	if len(s.admins) == 0 {
		return true
	}
	_, ok := s.admins[id]
	return ok
}

func (s *Service) authorize(req *Request) error {
	if !s.IsAdmin(req.User.ID) {
		s.log.Warn().Int64("chat_id", req.ChatID).Int64("user_id", int64(req.User.ID)).Msg("admin action rejected")
		return model.ErrNotAdmin
	}
	return nil
}

// Flow returns a copy of the chat's conversation state.
func (s *Service) Flow(chatID int64) model.ChatFlow {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.flows[chatID]; ok {
		return *f
	}
	return model.ChatFlow{State: model.StateIdle}
}

func (s *Service) setFlow(chatID int64, f model.ChatFlow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f.State == model.StateIdle {
		delete(s.flows, chatID)
		return
	}
	s.flows[chatID] = &f
}

// resetFlow drops the chat's flow if it is in one of states, or in any
// state when none are given, and records its prompt as stale.
func (s *Service) resetFlow(req *Request, states ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.flows[req.ChatID]
	if !ok {
		return
	}
	if len(states) > 0 {
		match := false
		for _, st := range states {
			if f.State == st {
				match = true
			}
		}
		if !match {
			return
		}
	}
	if prompt := f.Reset(); prompt != nil {
		req.Stale = append(req.Stale, *prompt)
	}
	delete(s.flows, req.ChatID)
}

// SetPrompt remembers the team count prompt so it can be removed later.
func (s *Service) SetPrompt(chatID int64, ref model.MessageRef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.flows[chatID]; ok && f.State == model.StateAwaitingTeamCount {
		f.Prompt = &ref
	}
}

// RecordMainMessage stores the identity of the chat's live status message.
func (s *Service) RecordMainMessage(ctx context.Context, req *Request, ref model.MessageRef) error {
	req.Session.MainMessage = &ref
	return s.Save(ctx, req)
}
