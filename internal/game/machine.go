package game

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"live-quiz-service/internal/domain"

	"github.com/google/uuid"
)

const (
	minNameLength = 2
	defaultTitle  = "Untitled Quiz"
)

// Machine applies lifecycle transitions to a single game record.
// It never touches the store; callers persist the mutated record.
type Machine struct {
	settings domain.Settings
	now      func() time.Time
	newID    func() string

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewMachine(settings domain.Settings) *Machine {
	return NewMachineWithClock(settings, time.Now, rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewMachineWithClock allows deterministic timestamps and codes in tests.
func NewMachineWithClock(settings domain.Settings, now func() time.Time, rnd *rand.Rand) *Machine {
	return &Machine{
		settings: settings,
		now:      now,
		rnd:      rnd,
		newID: func() string {
			return "player_" + uuid.NewString()
		},
	}
}

// Settings returns the defaults applied to new games.
func (m *Machine) Settings() domain.Settings {
	return m.settings
}

// CreateGame builds a waiting game whose code is unique within games.
// games is usually a just-loaded snapshot, so uniqueness is best-effort.
func (m *Machine) CreateGame(games domain.Games, title string) *domain.Game {
	title = strings.TrimSpace(title)
	if title == "" {
		title = defaultTitle
	}

	m.mu.Lock()
	code := GenerateCode(m.rnd, games)
	m.mu.Unlock()

	g := &domain.Game{
		Code:      code,
		Title:     title,
		Status:    domain.StatusWaiting,
		Questions: []domain.Question{},
		Players:   make(map[string]*domain.Player),
		Settings:  m.settings,
		CreatedAt: m.now().UTC(),
	}
	m.touch(g)
	return g
}

// Rename changes the title before the game starts.
func (m *Machine) Rename(g *domain.Game, title string) error {
	if err := requireStatus(g, domain.StatusWaiting, "rename"); err != nil {
		return err
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Errorf("%w: title is required", domain.ErrInvalidInput)
	}
	g.Title = title
	m.touch(g)
	return nil
}

// AddQuestion validates and appends a question while the game is waiting.
func (m *Machine) AddQuestion(g *domain.Game, q domain.Question) error {
	if err := requireStatus(g, domain.StatusWaiting, "add question"); err != nil {
		return err
	}
	q, err := normalizeQuestion(q, g.Settings.TimeLimit)
	if err != nil {
		return err
	}
	g.Questions = append(g.Questions, q)
	m.touch(g)
	return nil
}

// RemoveQuestion deletes the question at index while the game is waiting.
func (m *Machine) RemoveQuestion(g *domain.Game, index int) error {
	if err := requireStatus(g, domain.StatusWaiting, "remove question"); err != nil {
		return err
	}
	if index < 0 || index >= len(g.Questions) {
		return fmt.Errorf("%w: question index %d out of range", domain.ErrInvalidInput, index)
	}
	g.Questions = append(g.Questions[:index], g.Questions[index+1:]...)
	m.touch(g)
	return nil
}

// Join adds a player with a fresh id. Late joins are allowed while playing.
func (m *Machine) Join(g *domain.Game, name string) (string, error) {
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) < minNameLength {
		return "", fmt.Errorf("%w: name must have at least %d characters", domain.ErrInvalidInput, minNameLength)
	}
	if g.Status == domain.StatusFinished {
		return "", domain.ErrGameFinished
	}
	for _, p := range g.Players {
		if strings.EqualFold(p.Name, name) {
			return "", domain.ErrNameTaken
		}
	}

	now := m.now().UTC()
	id := m.newID()
	if g.Players == nil {
		g.Players = make(map[string]*domain.Player)
	}
	g.Players[id] = &domain.Player{
		ID:           id,
		Name:         name,
		Answers:      make(map[int]int),
		JoinedAt:     now,
		LastActiveAt: now,
	}
	m.touch(g)
	return id, nil
}

// Leave removes a player. A finished game is read-only.
func (m *Machine) Leave(g *domain.Game, playerID string) error {
	if g.Status == domain.StatusFinished {
		return fmt.Errorf("%w: leave after finish", domain.ErrIllegalTransition)
	}
	if _, ok := g.Players[playerID]; !ok {
		return domain.ErrPlayerNotFound
	}
	delete(g.Players, playerID)
	m.touch(g)
	return nil
}

// Start moves a waiting game to playing and resets every player's score and answers.
func (m *Machine) Start(g *domain.Game) error {
	if err := requireStatus(g, domain.StatusWaiting, "start"); err != nil {
		return err
	}
	if len(g.Questions) == 0 {
		return domain.ErrNoQuestions
	}
	if len(g.Players) == 0 {
		return domain.ErrNoPlayers
	}

	now := m.now().UTC()
	g.Status = domain.StatusPlaying
	g.CurrentQuestionIndex = 0
	g.StartedAt = &now
	for _, p := range g.Players {
		p.Score = 0
		p.Answers = make(map[int]int)
	}
	m.touch(g)
	return nil
}

// Next advances to the following question, or ends the game when the last
// question is passed. It reports whether the game finished.
func (m *Machine) Next(g *domain.Game) (bool, error) {
	if err := requireStatus(g, domain.StatusPlaying, "next question"); err != nil {
		return false, err
	}
	if g.CurrentQuestionIndex >= len(g.Questions)-1 {
		m.finish(g)
		return true, nil
	}
	g.CurrentQuestionIndex++
	m.touch(g)
	return false, nil
}

// End finishes a playing game and assigns final positions and scores.
func (m *Machine) End(g *domain.Game) error {
	if err := requireStatus(g, domain.StatusPlaying, "end"); err != nil {
		return err
	}
	m.finish(g)
	return nil
}

// finish must only run from playing; the status guard makes bonus awarding happen once.
func (m *Machine) finish(g *domain.Game) {
	now := m.now().UTC()
	g.Status = domain.StatusFinished
	g.EndedAt = &now
	ApplyFinalRanking(g)
	m.touch(g)
}

// SubmitAnswer records the player's option for the current question and awards
// points when it is correct. A second answer to the same question changes nothing
// and is reported through AnswerResult.Duplicate.
func (m *Machine) SubmitAnswer(g *domain.Game, playerID string, option int, elapsedSeconds float64) (domain.AnswerResult, error) {
	if err := requireStatus(g, domain.StatusPlaying, "submit answer"); err != nil {
		return domain.AnswerResult{}, err
	}
	player, ok := g.Players[playerID]
	if !ok {
		return domain.AnswerResult{}, domain.ErrPlayerNotFound
	}
	question, ok := g.CurrentQuestion()
	if !ok {
		return domain.AnswerResult{}, fmt.Errorf("%w: no current question", domain.ErrIllegalTransition)
	}
	if option < 1 || option > len(question.Options) {
		return domain.AnswerResult{}, fmt.Errorf("%w: option %d out of range", domain.ErrInvalidInput, option)
	}

	index := g.CurrentQuestionIndex
	result := domain.AnswerResult{
		QuestionIndex:      index,
		CorrectOptionIndex: question.CorrectOptionIndex,
	}
	if prev, answered := player.Answers[index]; answered {
		result.Correct = prev == question.CorrectOptionIndex
		result.TotalScore = player.Score
		result.Duplicate = true
		return result, nil
	}

	if player.Answers == nil {
		player.Answers = make(map[int]int)
	}
	player.Answers[index] = option
	if option == question.CorrectOptionIndex {
		result.Correct = true
		result.Awarded = AnswerPoints(elapsedSeconds, timeLimit(question, g.Settings))
		player.Score += result.Awarded
	}
	player.LastActiveAt = m.now().UTC()
	result.TotalScore = player.Score
	m.touch(g)
	return result, nil
}

// touch bumps UpdatedAt to now, and never backwards for this record.
func (m *Machine) touch(g *domain.Game) {
	ms := m.now().UnixMilli()
	if ms <= g.UpdatedAt {
		ms = g.UpdatedAt + 1
	}
	g.UpdatedAt = ms
}

func requireStatus(g *domain.Game, want domain.Status, op string) error {
	if g.Status != want {
		return fmt.Errorf("%w: cannot %s while %s", domain.ErrIllegalTransition, op, g.Status)
	}
	return nil
}

func normalizeQuestion(q domain.Question, defaultLimit int) (domain.Question, error) {
	q.Text = strings.TrimSpace(q.Text)
	if q.Text == "" {
		return q, fmt.Errorf("%w: question text is required", domain.ErrInvalidInput)
	}
	if len(q.Options) != domain.OptionCount {
		return q, fmt.Errorf("%w: question needs exactly %d options, got %d", domain.ErrInvalidInput, domain.OptionCount, len(q.Options))
	}
	options := make([]string, len(q.Options))
	for i, opt := range q.Options {
		opt = strings.TrimSpace(opt)
		if opt == "" {
			return q, fmt.Errorf("%w: option %d is empty", domain.ErrInvalidInput, i+1)
		}
		options[i] = opt
	}
	q.Options = options
	if q.CorrectOptionIndex < 1 || q.CorrectOptionIndex > len(q.Options) {
		return q, fmt.Errorf("%w: correct option must be between 1 and %d", domain.ErrInvalidInput, len(q.Options))
	}
	if q.TimeLimitSeconds < 0 || q.TimeLimitSeconds > domain.MaxTimeLimitSeconds {
		return q, fmt.Errorf("%w: time limit must be at most %d seconds", domain.ErrInvalidInput, domain.MaxTimeLimitSeconds)
	}
	if q.TimeLimitSeconds == 0 {
		q.TimeLimitSeconds = defaultLimit
	}
	return q, nil
}

func timeLimit(q domain.Question, settings domain.Settings) int {
	if q.TimeLimitSeconds > 0 {
		return q.TimeLimitSeconds
	}
	return settings.TimeLimit
}
