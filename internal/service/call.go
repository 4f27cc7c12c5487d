package service

import (
	"errors"
	"log"
	"sync"

	"github.com/parlor-social/realtime-hub/internal/model"
)

// callState tracks one live signaling session. Terminal states (rejected,
// failed, ended) are never stored: reaching one removes the session, so a
// missing session is the only form a terminal session takes.
type callState int

const (
	stateCalling callState = iota
	stateConnecting
)

var errBusy = errors.New("call session already active for pair")

type pairKey struct {
	caller string
	callee string
}

type callSession struct {
	caller string
	callee string
	state  callState
}

// callTable holds every non-terminal call session, keyed by the ordered
// (caller, callee) pair and indexed by participant so a disconnect can end
// a user's sessions without scanning.
type callTable struct {
	mu       sync.Mutex
	sessions map[pairKey]*callSession
	byUser   map[string]map[pairKey]struct{}
}

func newCallTable() *callTable {
	return &callTable{
		sessions: make(map[pairKey]*callSession),
		byUser:   make(map[string]map[pairKey]struct{}),
	}
}

// begin creates a session in the calling state. One non-terminal session per
// user pair, in either direction, is the invariant.
func (t *callTable) begin(caller, callee string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.sessions[pairKey{caller, callee}]; ok {
		return errBusy
	}
	if _, ok := t.sessions[pairKey{callee, caller}]; ok {
		return errBusy
	}

	k := pairKey{caller, callee}
	t.sessions[k] = &callSession{
		caller: caller,
		callee: callee,
		state:  stateCalling,
	}
	t.index(caller, k)
	t.index(callee, k)
	return nil
}

// answer moves calling -> connecting. Reports false when no session is in
// the calling state for the pair.
func (t *callTable) answer(callee, caller string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	sess, ok := t.sessions[pairKey{caller, callee}]
	if !ok || sess.state != stateCalling {
		return false
	}
	sess.state = stateConnecting
	return true
}

// hasPair reports whether a non-terminal session exists between the two
// users, in either direction.
func (t *callTable) hasPair(a, b string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.sessions[pairKey{a, b}]; ok {
		return true
	}
	_, ok := t.sessions[pairKey{b, a}]
	return ok
}

// reject ends a session still in the calling state. Terminal; the session
// is discarded.
func (t *callTable) reject(callee, caller string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	k := pairKey{caller, callee}
	sess, ok := t.sessions[k]
	if !ok || sess.state != stateCalling {
		return false
	}
	t.remove(k)
	return true
}

// hangup ends a session between the pair in any non-terminal state.
func (t *callTable) hangup(a, b string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, k := range []pairKey{{a, b}, {b, a}} {
		if _, ok := t.sessions[k]; ok {
			t.remove(k)
			return true
		}
	}
	return false
}

// endAllFor removes every session involving the user and returns the other
// participant of each, so the caller can notify them.
func (t *callTable) endAllFor(userID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var peers []string
	for k := range t.byUser[userID] {
		sess := t.sessions[k]
		if sess == nil {
			continue
		}
		peer := sess.caller
		if peer == userID {
			peer = sess.callee
		}
		peers = append(peers, peer)
		t.remove(k)
	}
	return peers
}

func (t *callTable) active() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}

// index and remove run with t.mu held.
func (t *callTable) index(userID string, k pairKey) {
	m, ok := t.byUser[userID]
	if !ok {
		m = make(map[pairKey]struct{})
		t.byUser[userID] = m
	}
	m[k] = struct{}{}
}

func (t *callTable) remove(k pairKey) {
	delete(t.sessions, k)
	for _, u := range []string{k.caller, k.callee} {
		if m, ok := t.byUser[u]; ok {
			delete(m, k)
			if len(m) == 0 {
				delete(t.byUser, u)
			}
		}
	}
}

func (s *Service) handleCallOffer(sess *Session, raw []byte) {
	var ev model.CallOfferEvent
	if err := s.decode(raw, &ev); err != nil {
		s.sendError(sess.client, "bad_call_event", "call_offer requires to and offer_payload")
		return
	}
	caller := sess.client.UserID()

	if _, reachable := s.hub.Lookup(ev.To); !reachable {
		// Offline callee is an explicit, immediate failure, never a
		// silent timeout. No session is created.
		s.failCall(sess, ev.To, model.ReasonUserOffline)
		return
	}

	if err := s.calls.begin(caller, ev.To); err != nil {
		s.failCall(sess, ev.To, model.ReasonBusy)
		return
	}

	// Re-resolve the callee now that the session is indexed: a
	// disconnect between the first lookup and begin ran its teardown
	// before there was a session to end. A failed push means the
	// channel just closed, which is the same situation.
	callee, ok := s.hub.Lookup(ev.To)
	if !ok || !s.push(callee, model.CallSignalEvent{
		Type:       model.EventCallOffer,
		From:       caller,
		Payload:    ev.OfferPayload,
		CallerMeta: ev.CallerMeta,
	}) {
		s.calls.hangup(caller, ev.To)
		s.failCall(sess, ev.To, model.ReasonUserOffline)
		return
	}

	s.metrics.CallEvent(model.EventCallOffer)
}

// failCall reports a synthesized call_failed back to the offering caller.
func (s *Service) failCall(sess *Session, callee, reason string) {
	s.metrics.CallFailed(reason)
	s.push(sess.client, model.CallSignalEvent{
		Type:   model.EventCallFailed,
		From:   callee,
		Reason: reason,
	})
}

func (s *Service) handleCallAnswer(sess *Session, raw []byte) {
	var ev model.CallAnswerEvent
	if err := s.decode(raw, &ev); err != nil {
		s.sendError(sess.client, "bad_call_event", "call_answer requires to and answer_payload")
		return
	}
	callee := sess.client.UserID()

	if !s.calls.answer(callee, ev.To) {
		log.Printf("Ignoring call_answer from %s: no ringing session with %s", callee, ev.To)
		return
	}

	s.metrics.CallEvent(model.EventCallAnswer)
	if caller, ok := s.hub.Lookup(ev.To); ok {
		s.push(caller, model.CallSignalEvent{
			Type:    model.EventCallAnswer,
			From:    callee,
			Payload: ev.AnswerPayload,
		})
	}
}

func (s *Service) handleICECandidate(sess *Session, raw []byte) {
	var ev model.ICECandidateEvent
	if err := s.decode(raw, &ev); err != nil {
		s.sendError(sess.client, "bad_call_event", "ice_candidate requires to and candidate_payload")
		return
	}
	from := sess.client.UserID()

	// Candidates outside a live session, or toward an unreachable peer,
	// are dropped without an error event.
	if !s.calls.hasPair(from, ev.To) {
		return
	}
	peer, ok := s.hub.Lookup(ev.To)
	if !ok {
		return
	}

	s.metrics.CallEvent(model.EventICECandidate)
	s.push(peer, model.CallSignalEvent{
		Type:    model.EventICECandidate,
		From:    from,
		Payload: ev.CandidatePayload,
	})
}

func (s *Service) handleCallReject(sess *Session, raw []byte) {
	var ev model.CallControlEvent
	if err := s.decode(raw, &ev); err != nil {
		s.sendError(sess.client, "bad_call_event", "call_reject requires to")
		return
	}
	callee := sess.client.UserID()

	if !s.calls.reject(callee, ev.To) {
		log.Printf("Ignoring call_reject from %s: no ringing session with %s", callee, ev.To)
		return
	}

	s.metrics.CallEvent(model.EventCallReject)
	if caller, ok := s.hub.Lookup(ev.To); ok {
		s.push(caller, model.CallSignalEvent{
			Type: model.EventCallReject,
			From: callee,
		})
	}
}

func (s *Service) handleCallHangup(sess *Session, raw []byte) {
	var ev model.CallControlEvent
	if err := s.decode(raw, &ev); err != nil {
		s.sendError(sess.client, "bad_call_event", "call_hangup requires to")
		return
	}
	from := sess.client.UserID()

	if !s.calls.hangup(from, ev.To) {
		log.Printf("Ignoring call_hangup from %s: no session with %s", from, ev.To)
		return
	}

	s.metrics.CallEvent(model.EventCallHangup)
	if peer, ok := s.hub.Lookup(ev.To); ok {
		s.push(peer, model.CallSignalEvent{
			Type: model.EventCallHangup,
			From: from,
		})
	}
}

// teardownCalls ends every session involving a disconnected user and tells
// each remaining peer the call is over. A session must not outlive either
// participant's connection.
func (s *Service) teardownCalls(userID string) {
	for _, peer := range s.calls.endAllFor(userID) {
		s.metrics.CallEvent(model.EventCallHangup)
		if c, ok := s.hub.Lookup(peer); ok {
			s.push(c, model.CallSignalEvent{
				Type:   model.EventCallHangup,
				From:   userID,
				Reason: model.ReasonPeerLeft,
			})
		}
	}
}
