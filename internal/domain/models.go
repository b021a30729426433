package domain

import "time"

// Status is the lifecycle stage of a game. It only moves forward.
type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
)

// OptionCount is the number of options every question carries.
const OptionCount = 4

// MaxTimeLimitSeconds bounds a question's answer window.
const MaxTimeLimitSeconds = 3600

// Games is the whole shared collection, keyed by game code.
type Games map[string]*Game

// PointsBySlot is the end-of-game bonus table by final rank.
type PointsBySlot struct {
	First         int `json:"first"`
	Second        int `json:"second"`
	Third         int `json:"third"`
	Participation int `json:"participation"`
}

// Settings holds per-game defaults.
type Settings struct {
	TimeLimit    int          `json:"timeLimit"`
	PointsBySlot PointsBySlot `json:"pointsBySlot"`
}

// DefaultSettings mirrors the values used when no configuration overrides them.
func DefaultSettings() Settings {
	return Settings{
		TimeLimit: 20,
		PointsBySlot: PointsBySlot{
			First:         1000,
			Second:        800,
			Third:         600,
			Participation: 500,
		},
	}
}

// Question is a four-option prompt with a 1-based correct option.
type Question struct {
	Text               string   `json:"text"`
	Options            []string `json:"options"`
	CorrectOptionIndex int      `json:"correctOptionIndex"`
	TimeLimitSeconds   int      `json:"timeLimitSeconds"`
}

// Player is one participant of a game.
type Player struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	Score         int         `json:"score"`
	Answers       map[int]int `json:"answers"`
	JoinedAt      time.Time   `json:"joinedAt"`
	LastActiveAt  time.Time   `json:"lastActiveAt"`
	FinalPosition int         `json:"finalPosition,omitempty"`
	FinalScore    int         `json:"finalScore,omitempty"`
}

// Game is one live quiz session, shared by the admin and every player.
// UpdatedAt is wall-clock millis bumped on every mutation; it is the only staleness signal.
type Game struct {
	Code                 string             `json:"code"`
	Title                string             `json:"title"`
	Status               Status             `json:"status"`
	CurrentQuestionIndex int                `json:"currentQuestionIndex"`
	Questions            []Question         `json:"questions"`
	Players              map[string]*Player `json:"players"`
	Settings             Settings           `json:"settings"`
	CreatedAt            time.Time          `json:"createdAt"`
	UpdatedAt            int64              `json:"updatedAt"`
	StartedAt            *time.Time         `json:"startedAt,omitempty"`
	EndedAt              *time.Time         `json:"endedAt,omitempty"`
}

// CurrentQuestion returns the active question while playing.
func (g *Game) CurrentQuestion() (Question, bool) {
	if g.Status != StatusPlaying {
		return Question{}, false
	}
	if g.CurrentQuestionIndex < 0 || g.CurrentQuestionIndex >= len(g.Questions) {
		return Question{}, false
	}
	return g.Questions[g.CurrentQuestionIndex], true
}

// Clone returns a deep copy so local session state never aliases decoded store data.
func (g *Game) Clone() *Game {
	if g == nil {
		return nil
	}
	out := *g
	out.Questions = make([]Question, len(g.Questions))
	for i, q := range g.Questions {
		q.Options = append([]string(nil), q.Options...)
		out.Questions[i] = q
	}
	out.Players = make(map[string]*Player, len(g.Players))
	for id, p := range g.Players {
		cp := *p
		cp.Answers = make(map[int]int, len(p.Answers))
		for k, v := range p.Answers {
			cp.Answers[k] = v
		}
		out.Players[id] = &cp
	}
	if g.StartedAt != nil {
		t := *g.StartedAt
		out.StartedAt = &t
	}
	if g.EndedAt != nil {
		t := *g.EndedAt
		out.EndedAt = &t
	}
	return &out
}

// LeaderboardEntry is one ranked row of the live or final leaderboard.
type LeaderboardEntry struct {
	Rank     int    `json:"rank"`
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	Score    int    `json:"score"`
}

// AnswerResult summarizes the outcome of a submission for the submitting player.
type AnswerResult struct {
	QuestionIndex      int  `json:"questionIndex"`
	Correct            bool `json:"correct"`
	Awarded            int  `json:"awarded"`
	TotalScore         int  `json:"totalScore"`
	CorrectOptionIndex int  `json:"correctOptionIndex"`
	Duplicate          bool `json:"duplicate,omitempty"`
}

// QuestionStat counts correct answers for one question.
type QuestionStat struct {
	QuestionIndex  int    `json:"questionIndex"`
	Text           string `json:"text"`
	CorrectAnswers int    `json:"correctAnswers"`
	TotalPlayers   int    `json:"totalPlayers"`
	Percentage     int    `json:"percentage"`
}

// QuestionView is the current question as shown to players (no correct option).
type QuestionView struct {
	Index            int      `json:"index"`
	Number           int      `json:"number"`
	Total            int      `json:"total"`
	Text             string   `json:"text"`
	Options          []string `json:"options"`
	TimeLimitSeconds int      `json:"timeLimitSeconds"`
}

// RosterEntry is one player in the lobby list.
type RosterEntry struct {
	PlayerID string    `json:"playerId"`
	Name     string    `json:"name"`
	Score    int       `json:"score"`
	JoinedAt time.Time `json:"joinedAt"`
}

// View is every UI-facing projection derived from one Game copy.
type View struct {
	Code            string             `json:"code"`
	Title           string             `json:"title"`
	Status          Status             `json:"status"`
	UpdatedAt       int64              `json:"updatedAt"`
	QuestionCount   int                `json:"questionCount"`
	CurrentQuestion *QuestionView      `json:"currentQuestion,omitempty"`
	Leaderboard     []LeaderboardEntry `json:"leaderboard"`
	Standings       []LeaderboardEntry `json:"standings,omitempty"`
	Roster          []RosterEntry      `json:"roster"`
	Stats           []QuestionStat     `json:"stats,omitempty"`
}

// GameResult is the archived outcome of one finished game.
type GameResult struct {
	Code      string             `json:"code"`
	Title     string             `json:"title"`
	EndedAt   time.Time          `json:"endedAt"`
	Standings []LeaderboardEntry `json:"standings"`
	Stats     []QuestionStat     `json:"stats"`
}
