package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/game"

	"github.com/gorilla/websocket"
)

// Gateway exposes admin and player sessions over websockets. Every connection
// gets its own session; state pushes come from the session's monitor.
type Gateway struct {
	repo     *app.Repository
	machine  *game.Machine
	archive  app.ResultsArchive
	upgrader websocket.Upgrader
}

func NewGateway(repo *app.Repository, machine *game.Machine, archive app.ResultsArchive) *Gateway {
	return &Gateway{
		repo:    repo,
		machine: machine,
		archive: archive,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Register mounts the websocket endpoints on mux.
func (g *Gateway) Register(mux *http.ServeMux) {
	mux.HandleFunc("/ws/admin", g.ServeAdmin)
	mux.HandleFunc("/ws/player", g.ServePlayer)
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

type codePayload struct {
	Code string `json:"code"`
}

type titlePayload struct {
	Title string `json:"title"`
}

type indexPayload struct {
	Index int `json:"index"`
}

type joinPayload struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type joinedPayload struct {
	PlayerID string      `json:"playerId"`
	Game     domain.View `json:"game"`
}

type answerPayload struct {
	Option         int     `json:"option"`
	ElapsedSeconds float64 `json:"elapsedSeconds"`
}

// ServeAdmin handles the quiz host's connection.
func (g *Gateway) ServeAdmin(w http.ResponseWriter, r *http.Request) {
	g.serve(w, r, func(c *client) (func(context.Context, inboundMessage), func()) {
		s := app.NewAdminSession(g.repo, g.machine, g.archive)
		return func(ctx context.Context, in inboundMessage) {
			handleAdmin(ctx, c, s, in)
		}, s.Detach
	})
}

// ServePlayer handles one participant's connection.
func (g *Gateway) ServePlayer(w http.ResponseWriter, r *http.Request) {
	g.serve(w, r, func(c *client) (func(context.Context, inboundMessage), func()) {
		s := app.NewPlayerSession(g.repo, g.machine)
		return func(ctx context.Context, in inboundMessage) {
			handlePlayer(ctx, c, s, in)
		}, s.Detach
	})
}

// serve runs the read loop. bind returns the message handler and the session's
// detach, called once the connection's monitors have stopped.
func (g *Gateway) serve(w http.ResponseWriter, r *http.Request, bind func(c *client) (func(context.Context, inboundMessage), func())) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	c := newClient(conn, g.repo)
	handle, detach := bind(c)
	defer detach()
	defer c.close()

	ctx := r.Context()
	for {
		var in inboundMessage
		if err := conn.ReadJSON(&in); err != nil {
			break
		}
		handle(ctx, in)
	}
}

func handleAdmin(ctx context.Context, c *client, s *app.AdminSession, in inboundMessage) {
	switch in.Type {
	case "create":
		var p titlePayload
		if !c.decode(in, &p) {
			return
		}
		attach(ctx, c, s, s.CreateGame, p.Title)
	case "resume":
		var p codePayload
		if !c.decode(in, &p) {
			return
		}
		attach(ctx, c, s, s.Resume, p.Code)
	case "resumeLatest":
		g, err := s.ResumeLatest(ctx)
		if err != nil {
			c.fail(err)
			return
		}
		c.state(g, nil)
		c.watch(ctx, s)
	case "rename":
		var p titlePayload
		if !c.decode(in, &p) {
			return
		}
		c.state(s.Rename(ctx, p.Title))
	case "addQuestion":
		var q domain.Question
		if !c.decode(in, &q) {
			return
		}
		c.state(s.AddQuestion(ctx, q))
	case "removeQuestion":
		var p indexPayload
		if !c.decode(in, &p) {
			return
		}
		c.state(s.RemoveQuestion(ctx, p.Index))
	case "start":
		c.state(s.Start(ctx))
	case "next":
		c.state(s.Next(ctx))
	case "end":
		c.state(s.End(ctx))
	case "delete":
		code := s.Code()
		if err := s.Delete(ctx); err != nil {
			c.fail(err)
			return
		}
		c.unwatch()
		c.emit("deleted", codePayload{Code: code})
	case "sync":
		c.syncState(ctx, s)
	case "results":
		var p codePayload
		if !c.decode(in, &p) {
			return
		}
		if p.Code == "" {
			p.Code = s.Code()
		}
		res, err := s.ArchivedResults(ctx, p.Code)
		if err != nil {
			c.fail(err)
			return
		}
		c.emit("results", res)
	default:
		c.fail(errUnsupported)
	}
}

func handlePlayer(ctx context.Context, c *client, s *app.PlayerSession, in inboundMessage) {
	switch in.Type {
	case "lookup":
		var p codePayload
		if !c.decode(in, &p) {
			return
		}
		g, err := s.Lookup(ctx, p.Code)
		if err != nil {
			c.fail(err)
			return
		}
		c.emit("lookup", game.Project(g))
	case "join":
		var p joinPayload
		if !c.decode(in, &p) {
			return
		}
		id, err := s.Join(ctx, p.Code, p.Name)
		if err != nil {
			c.fail(err)
			return
		}
		view, _ := s.View()
		c.emit("joined", joinedPayload{PlayerID: id, Game: view})
		c.watch(ctx, s)
	case "answer":
		var p answerPayload
		if !c.decode(in, &p) {
			return
		}
		res, err := s.SubmitAnswer(ctx, p.Option, p.ElapsedSeconds)
		if err != nil {
			c.fail(err)
			return
		}
		c.emit("answerResult", res)
	case "leave":
		code := s.Code()
		err := s.Leave(ctx)
		c.unwatch()
		if err != nil {
			c.fail(err)
			return
		}
		c.emit("left", codePayload{Code: code})
	case "sync":
		c.syncState(ctx, s)
	default:
		c.fail(errUnsupported)
	}
}

var errUnsupported = errors.New("unsupported message type")

// attach runs an operation that binds the admin session to a game, then
// starts watching that game.
func attach(ctx context.Context, c *client, s *app.AdminSession, op func(context.Context, string) (*domain.Game, error), arg string) {
	g, err := op(ctx, arg)
	if err != nil {
		c.fail(err)
		return
	}
	c.state(g, nil)
	c.watch(ctx, s)
}
