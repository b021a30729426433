package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/game"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"
)

// client owns one websocket: a single writer goroutine and at most one
// monitor forwarding pushes for the attached game.
type client struct {
	conn       *websocket.Conn
	repo       *app.Repository
	send       chan outboundMessage[any]
	writerDone chan struct{}

	watchers  errgroup.Group
	stopWatch context.CancelFunc
}

func newClient(conn *websocket.Conn, repo *app.Repository) *client {
	c := &client{
		conn:       conn,
		repo:       repo,
		send:       make(chan outboundMessage[any], 16),
		writerDone: make(chan struct{}),
	}
	go c.writeLoop()
	return c
}

func (c *client) writeLoop() {
	defer close(c.writerDone)
	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			log.Printf("ws write error: %v", err)
			return
		}
	}
}

func (c *client) emit(typ string, payload any) {
	select {
	case c.send <- outboundMessage[any]{Type: typ, Payload: payload}:
	case <-c.writerDone:
	}
}

func (c *client) fail(err error) {
	c.emit("error", errorPayload{Message: err.Error(), Code: errorCode(err)})
}

func (c *client) state(g *domain.Game, err error) {
	if err != nil {
		c.fail(err)
		return
	}
	c.emit("state", game.Project(g))
}

// decode treats a missing payload as an empty object.
func (c *client) decode(in inboundMessage, v any) bool {
	if len(in.Payload) == 0 {
		return true
	}
	if err := json.Unmarshal(in.Payload, v); err != nil {
		c.fail(fmt.Errorf("%w: %v", domain.ErrInvalidInput, err))
		return false
	}
	return true
}

// watch replaces the current monitor with one for target's game.
func (c *client) watch(ctx context.Context, target app.Reconciler) {
	c.unwatch()
	wctx, cancel := context.WithCancel(ctx)
	c.stopWatch = cancel

	mon := app.NewMonitor(c.repo, target)
	var grp errgroup.Group
	grp.Go(func() error {
		return mon.Run(wctx)
	})
	grp.Go(func() error {
		for u := range mon.Updates() {
			if u.Kind == app.UpdateGone {
				c.emit("gone", codePayload{Code: u.Code})
				continue
			}
			c.emit("state", u.View)
		}
		return nil
	})
	c.watchers.Go(func() error {
		err := grp.Wait()
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			log.Printf("monitor for game %s: %v", target.Code(), err)
		}
		return nil
	})
}

func (c *client) unwatch() {
	if c.stopWatch != nil {
		c.stopWatch()
		c.stopWatch = nil
	}
}

// syncer is implemented by both admin and player sessions.
type syncer interface {
	app.Reconciler
	ForceSync(ctx context.Context) (domain.View, error)
}

func (c *client) syncState(ctx context.Context, s syncer) {
	code := s.Code()
	view, err := s.ForceSync(ctx)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		c.unwatch()
		c.emit("gone", codePayload{Code: code})
	case err != nil:
		c.fail(err)
	default:
		c.emit("state", view)
	}
}

func (c *client) close() {
	c.unwatch()
	_ = c.watchers.Wait()
	close(c.send)
	<-c.writerDone
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrNameTaken):
		return "name_taken"
	case errors.Is(err, domain.ErrIllegalTransition):
		return "illegal_transition"
	case errors.Is(err, domain.ErrStoreUnavailable):
		return "store_unavailable"
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	case errors.Is(err, domain.ErrNoSession):
		return "no_session"
	case errors.Is(err, domain.ErrPlayerNotFound):
		return "player_not_found"
	case errors.Is(err, errUnsupported):
		return "unsupported"
	default:
		return "internal"
	}
}
