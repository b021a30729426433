package game

import (
	"sort"

	"live-quiz-service/internal/domain"
)

// Project derives every UI-facing projection from one game copy.
func Project(g *domain.Game) domain.View {
	view := domain.View{
		Code:          g.Code,
		Title:         g.Title,
		Status:        g.Status,
		UpdatedAt:     g.UpdatedAt,
		QuestionCount: len(g.Questions),
		Leaderboard:   Leaderboard(g),
		Roster:        Roster(g),
	}
	if q, ok := g.CurrentQuestion(); ok {
		view.CurrentQuestion = &domain.QuestionView{
			Index:            g.CurrentQuestionIndex,
			Number:           g.CurrentQuestionIndex + 1,
			Total:            len(g.Questions),
			Text:             q.Text,
			Options:          append([]string(nil), q.Options...),
			TimeLimitSeconds: timeLimit(q, g.Settings),
		}
	}
	if g.Status == domain.StatusFinished {
		view.Standings = Standings(g)
		view.Stats = QuestionStats(g)
	}
	return view
}

// Roster lists players in join order.
func Roster(g *domain.Game) []domain.RosterEntry {
	roster := make([]domain.RosterEntry, 0, len(g.Players))
	for _, p := range g.Players {
		roster = append(roster, domain.RosterEntry{
			PlayerID: p.ID,
			Name:     p.Name,
			Score:    p.Score,
			JoinedAt: p.JoinedAt,
		})
	}
	sort.Slice(roster, func(i, j int) bool {
		if !roster[i].JoinedAt.Equal(roster[j].JoinedAt) {
			return roster[i].JoinedAt.Before(roster[j].JoinedAt)
		}
		return roster[i].PlayerID < roster[j].PlayerID
	})
	return roster
}
