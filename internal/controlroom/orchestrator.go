// Package controlroom is the privileged operator surface: it composes the
// session store, credential gate, chat stream and presence hub into session
// lifecycle transitions, key rotation and moderation.
package controlroom

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/parishops/livestream-service/internal/auth"
	"github.com/parishops/livestream-service/internal/chat"
	"github.com/parishops/livestream-service/internal/credentials"
	"github.com/parishops/livestream-service/internal/errs"
	"github.com/parishops/livestream-service/internal/model"
	"github.com/parishops/livestream-service/internal/presence"
	"github.com/parishops/livestream-service/internal/store"
	"go.uber.org/zap"
)

// allowedTransitions is the lifecycle state machine. Anything outside these
// edges is rejected with errs.ErrInvalidTransition.
var allowedTransitions = map[model.SessionStatus][]model.SessionStatus{
	model.SessionStatusScheduled: {model.SessionStatusLive, model.SessionStatusCancelled},
	model.SessionStatusLive:      {model.SessionStatusEnded},
	model.SessionStatusEnded:     {model.SessionStatusArchived},
}

func transitionAllowed(from, to model.SessionStatus) bool {
	for _, t := range allowedTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// View is the merged control-room state for one session. Credentials and
// chat are fetched independently of the session row; a failed sub-fetch
// leaves its part unpopulated and its error set, never failing the whole
// load.
type View struct {
	Session          *model.Session             `json:"session"`
	Credentials      *model.SessionCredentials  `json:"credentials,omitempty"`
	CredentialsError string                     `json:"credentials_error,omitempty"`
	Messages         []*model.Message           `json:"messages"`
	ChatError        string                     `json:"chat_error,omitempty"`
	ViewerCount      int                        `json:"viewer_count"`
}

// Orchestrator drives operator actions against the stores and hubs.
type Orchestrator struct {
	store         *store.SessionStore
	gate          *credentials.Gate
	chat          *chat.Service
	presence      *presence.Hub
	operatorRoles []string
	log           *zap.Logger
}

// NewOrchestrator creates the control-room orchestrator.
func NewOrchestrator(s *store.SessionStore, g *credentials.Gate, c *chat.Service, p *presence.Hub, operatorRoles []string, log *zap.Logger) *Orchestrator {
	return &Orchestrator{store: s, gate: g, chat: c, presence: p, operatorRoles: operatorRoles, log: log}
}

// LoadSession fetches the session, its chat history and the privileged
// credentials concurrently and merges them. Operator roles only (the
// credential fetch enforces this; a forbidden caller gets the error from the
// session path too, so nothing privileged loads at all).
func (o *Orchestrator) LoadSession(ctx context.Context, id *auth.Identity, sessionID string) (*View, error) {
	view := &View{}

	var wg sync.WaitGroup
	var sessErr error
	wg.Add(3)
	go func() {
		defer wg.Done()
		view.Session, sessErr = o.store.Get(ctx, sessionID)
	}()
	go func() {
		defer wg.Done()
		msgs, err := o.chat.History(ctx, sessionID)
		if err != nil {
			view.ChatError = err.Error()
			return
		}
		// History goes through a feed so later live events merge dedup-safe.
		view.Messages = chat.NewFeed(msgs).Messages()
	}()
	go func() {
		defer wg.Done()
		creds, err := o.gate.GetCredentials(ctx, id, sessionID)
		if err != nil {
			view.CredentialsError = err.Error()
			return
		}
		view.Credentials = creds
	}()
	wg.Wait()

	if sessErr != nil {
		return nil, sessErr
	}
	view.ViewerCount = o.presence.Count(sessionID)
	return view, nil
}

// Transition moves a session along the lifecycle state machine.
// Entering live sets start_time iff unset; entering ended sets end_time iff
// unset, both in the same update as the status change. Credentials are then
// re-fetched through the gate (the update response is never trusted for
// secrets) and merged into the returned view.
func (o *Orchestrator) Transition(ctx context.Context, id *auth.Identity, sessionID string, target model.SessionStatus) (*View, error) {
	if err := auth.RequireOperator(id, o.operatorRoles); err != nil {
		return nil, err
	}
	if !target.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", errs.ErrValidation, target)
	}

	current, err := o.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !transitionAllowed(current.Status, target) {
		return nil, fmt.Errorf("%w: %s -> %s", errs.ErrInvalidTransition, current.Status, target)
	}

	var startTime, endTime *time.Time
	now := time.Now()
	if target == model.SessionStatusLive && current.StartTime == nil {
		startTime = &now
	}
	if target == model.SessionStatusEnded && current.EndTime == nil {
		endTime = &now
	}

	updated, err := o.store.SetStatus(ctx, sessionID, target, startTime, endTime)
	if err != nil {
		return nil, err
	}
	o.log.Info("session transition",
		zap.String("session_id", sessionID),
		zap.String("from", string(current.Status)),
		zap.String("to", string(target)),
		zap.String("user_id", id.UserID))

	view := &View{Session: updated, ViewerCount: o.presence.Count(sessionID)}
	creds, err := o.gate.GetCredentials(ctx, id, sessionID)
	if err != nil {
		// Transition already landed; report the refresh failure separately.
		view.CredentialsError = err.Error()
		return view, nil
	}
	view.Credentials = creds
	return view, nil
}

// RegenerateIngestKey rotates the stream key through the gate.
func (o *Orchestrator) RegenerateIngestKey(ctx context.Context, id *auth.Identity, sessionID string) (*model.SessionCredentials, error) {
	return o.gate.RegenerateKey(ctx, id, sessionID)
}

// SetIngestServer updates the RTMP address through the gate.
func (o *Orchestrator) SetIngestServer(ctx context.Context, id *auth.Identity, sessionID, address string) (*model.SessionCredentials, error) {
	return o.gate.SetIngestServer(ctx, id, sessionID, address)
}

// ModerateDelete removes a chat message and returns the session's remaining
// history. There is no push-delete event, so the deleted id is dropped from
// the returned feed locally even if a lagging read still includes the row;
// on failure the message stays visible.
func (o *Orchestrator) ModerateDelete(ctx context.Context, id *auth.Identity, messageID string) ([]*model.Message, error) {
	deleted, err := o.chat.Delete(ctx, id, messageID)
	if err != nil {
		return nil, err
	}
	history, err := o.chat.History(ctx, deleted.SessionID)
	if err != nil {
		return nil, err
	}
	feed := chat.NewFeed(history)
	feed.Remove(messageID)
	return feed.Messages(), nil
}
