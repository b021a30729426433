package http

import (
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/game"
	"live-quiz-service/internal/infra/memory"

	"github.com/gorilla/websocket"
)

func TestWebSocketGameFlow(t *testing.T) {
	server := newTestServer()
	defer server.Close()

	admin := dial(t, server, "/ws/admin")
	defer admin.Close()
	player := dial(t, server, "/ws/player")
	defer player.Close()

	send(t, admin, "create", map[string]any{"title": "Capitals"})
	created := readUntil(t, admin, "state", nil)
	code, _ := created["code"].(string)
	if len(code) != 6 || created["status"] != "waiting" {
		t.Fatalf("unexpected created game %v", created)
	}

	send(t, admin, "addQuestion", map[string]any{
		"text":               "Capital of France?",
		"options":            []string{"Berlin", "Paris", "Rome", "Madrid"},
		"correctOptionIndex": 2,
	})
	readUntil(t, admin, "state", func(p map[string]any) bool { return p["questionCount"] == float64(1) })

	send(t, player, "lookup", map[string]any{"code": code})
	if lookup := readUntil(t, player, "lookup", nil); lookup["title"] != "Capitals" {
		t.Fatalf("unexpected lookup %v", lookup)
	}

	send(t, player, "join", map[string]any{"code": code, "name": "Ann"})
	joined := readUntil(t, player, "joined", nil)
	if id, _ := joined["playerId"].(string); id == "" {
		t.Fatalf("expected player id, got %v", joined)
	}

	send(t, admin, "start", nil)
	readUntil(t, admin, "state", statusIs(domain.StatusPlaying))
	readUntil(t, player, "state", statusIs(domain.StatusPlaying))

	send(t, player, "answer", map[string]any{"option": 2, "elapsedSeconds": 4})
	res := readUntil(t, player, "answerResult", nil)
	if res["correct"] != true || res["awarded"] != float64(1800) {
		t.Fatalf("unexpected answer result %v", res)
	}

	send(t, admin, "next", nil)
	readUntil(t, admin, "state", statusIs(domain.StatusFinished))
	final := readUntil(t, player, "state", statusIs(domain.StatusFinished))
	standings, _ := final["standings"].([]any)
	if len(standings) != 1 {
		t.Fatalf("expected standings, got %v", final["standings"])
	}
	if top := standings[0].(map[string]any); top["score"] != float64(2800) {
		t.Fatalf("expected final score with bonus, got %v", top)
	}

	send(t, admin, "results", nil)
	if results := readUntil(t, admin, "results", nil); results["code"] != code {
		t.Fatalf("unexpected results %v", results)
	}
}

func TestWebSocketErrors(t *testing.T) {
	server := newTestServer()
	defer server.Close()

	admin := dial(t, server, "/ws/admin")
	defer admin.Close()
	send(t, admin, "start", nil)
	if e := readUntil(t, admin, "error", nil); e["code"] != "no_session" {
		t.Fatalf("expected no_session, got %v", e)
	}

	player := dial(t, server, "/ws/player")
	defer player.Close()
	send(t, player, "join", map[string]any{"code": "000000", "name": "Ann"})
	if e := readUntil(t, player, "error", nil); e["code"] != "not_found" {
		t.Fatalf("expected not_found, got %v", e)
	}
	send(t, player, "dance", nil)
	if e := readUntil(t, player, "error", nil); e["code"] != "unsupported" {
		t.Fatalf("expected unsupported, got %v", e)
	}
}

func TestWebSocketGoneAfterDelete(t *testing.T) {
	server := newTestServer()
	defer server.Close()

	admin := dial(t, server, "/ws/admin")
	defer admin.Close()
	player := dial(t, server, "/ws/player")
	defer player.Close()

	send(t, admin, "create", map[string]any{"title": "Short lived"})
	code := readUntil(t, admin, "state", nil)["code"]
	send(t, player, "join", map[string]any{"code": code, "name": "Ann"})
	readUntil(t, player, "joined", nil)

	send(t, admin, "delete", nil)
	readUntil(t, admin, "deleted", nil)
	if gone := readUntil(t, player, "gone", nil); gone["code"] != code {
		t.Fatalf("unexpected gone payload %v", gone)
	}
	send(t, player, "answer", map[string]any{"option": 1})
	if e := readUntil(t, player, "error", nil); e["code"] != "no_session" {
		t.Fatalf("expected no_session after gone, got %v", e)
	}
}

func newTestServer() *httptest.Server {
	store := memory.NewSharedStore()
	repo := app.NewRepository(store, app.DefaultKey)
	machine := game.NewMachineWithClock(domain.DefaultSettings(), time.Now, rand.New(rand.NewSource(1)))
	gateway := NewGateway(repo, machine, memory.NewResultsArchive())

	mux := http.NewServeMux()
	gateway.Register(mux)
	return httptest.NewServer(mux)
}

func dial(t *testing.T, server *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	u := "ws" + server.URL[len("http"):] + path
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", path, err)
	}
	return conn
}

func send(t *testing.T, conn *websocket.Conn, typ string, payload any) {
	t.Helper()
	msg := map[string]any{"type": typ}
	if payload != nil {
		msg["payload"] = payload
	}
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

func statusIs(status domain.Status) func(map[string]any) bool {
	return func(p map[string]any) bool { return p["status"] == string(status) }
}

// readUntil skips messages until one of type typ matches accept.
func readUntil(t *testing.T, conn *websocket.Conn, typ string, accept func(map[string]any) bool) map[string]any {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var msg struct {
			Type    string         `json:"type"`
			Payload map[string]any `json:"payload"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read json waiting for %s: %v", typ, err)
		}
		if msg.Type == typ && (accept == nil || accept(msg.Payload)) {
			return msg.Payload
		}
	}
}
