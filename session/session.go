/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package session holds the shared round of a two-participant game and keeps
// both participants' copies of it in sync.
package session

import (
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Sink is the write half of a participant connection. A sink has exactly one
// owner at a time: either the session slot it is registered in, or the caller
// that registered or reclaimed it. Implementations must be comparable.
type Sink interface {
	WriteText(data []byte) error
}

type slot struct {
	mu   sync.Mutex
	sink Sink
}

// Session owns one round and one connection slot per role.
//
// Locks are always taken in the order mu, then a slot lock. Pushes happen
// while mu is held, so each sink sees states in the order they were produced.
type Session struct {
	vocab  Provider
	logger *zap.Logger

	mu    sync.RWMutex
	round Round

	slots [2]slot
}

func New(p Provider, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Session{
		vocab:  p,
		logger: logger,
		round:  NewRound(p),
	}
}

// Register pushes the current state to sink and, if that succeeds, installs
// it as role's sink. Any sink it replaces is returned to the caller and is
// never written to by the session again. On error the slot is unchanged and
// the caller keeps sink.
func (s *Session) Register(role Role, sink Sink) (Sink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sl := &s.slots[role]
	sl.mu.Lock()
	defer sl.mu.Unlock()

	if err := push(sink, s.round.Project(role)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRegistrationPush, err)
	}

	prev := sl.sink
	sl.sink = sink

	if prev != nil {
		s.logger.Debug("participant superseded", zap.Stringer("role", role))
	}

	return prev, nil
}

// Take vacates role's slot, returning the sink it held or nil.
func (s *Session) Take(role Role) Sink {
	sl := &s.slots[role]
	sl.mu.Lock()
	defer sl.mu.Unlock()

	sink := sl.sink
	sl.sink = nil

	return sink
}

// Release vacates role's slot only if it still holds sink.
func (s *Session) Release(role Role, sink Sink) bool {
	sl := &s.slots[role]
	sl.mu.Lock()
	defer sl.mu.Unlock()

	if sl.sink == nil || sl.sink != sink {
		return false
	}
	sl.sink = nil

	return true
}

// Attached reports whether role currently has a registered sink.
func (s *Session) Attached(role Role) bool {
	sl := &s.slots[role]
	sl.mu.Lock()
	defer sl.mu.Unlock()

	return sl.sink != nil
}

// Snapshot returns the current view for role without pushing it anywhere.
// Nothing in the server calls it; it exists for inspection and tests.
func (s *Session) Snapshot(role Role) State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.round.Project(role)
}

// SubmitScore records score as role's score for its peer's card.
func (s *Session) SubmitScore(role Role, score uint8) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.round.scores[role.Other()] = &score

	s.logger.Debug("score submitted",
		zap.Stringer("role", role),
		zap.Uint8("score", score),
	)

	return s.broadcastLocked(role)
}

// SubmitReady marks role ready. When both roles are ready the round is
// replaced before anything is pushed.
func (s *Session) SubmitReady(role Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.round.ready[role] = true

	if s.round.ready[English] && s.round.ready[Chinese] {
		s.round = NewRound(s.vocab)

		s.logger.Debug("starting new round",
			zap.String("en", s.round.cards[English].Word),
			zap.String("zh", s.round.cards[Chinese].Word),
		)
	} else {
		s.logger.Debug("participant ready", zap.Stringer("role", role))
	}

	return s.broadcastLocked(role)
}

// Handle applies a decoded request on behalf of role.
func (s *Session) Handle(role Role, req Request) error {
	switch {
	case req.Score != nil:
		return s.SubmitScore(role, *req.Score)
	case req.Action != nil && *req.Action == ActionAdvanceRound:
		return s.SubmitReady(role)
	default:
		return fmt.Errorf("%w: empty request", ErrDecode)
	}
}

// broadcastLocked pushes the current state to role, then to its peer. Only
// the acting role's failure is returned. Callers hold s.mu.
func (s *Session) broadcastLocked(role Role) error {
	err := s.pushLocked(role)

	// The peer's read loop handles its own transport failures.
	if peerErr := s.pushLocked(role.Other()); peerErr != nil {
		s.logger.Debug("push to peer failed",
			zap.Stringer("role", role.Other()),
			zap.Error(peerErr),
		)
	}

	return err
}

func (s *Session) pushLocked(role Role) error {
	sl := &s.slots[role]
	sl.mu.Lock()
	defer sl.mu.Unlock()

	if sl.sink == nil {
		return nil
	}

	return push(sl.sink, s.round.Project(role))
}

func push(sink Sink, st State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}

	return sink.WriteText(data)
}
