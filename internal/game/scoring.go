package game

import (
	"math"
	"sort"

	"live-quiz-service/internal/domain"
)

const (
	basePoints       = 1000
	pointsPerSecond  = 50
	minTimeBonus     = 1
	minElapsedSecond = 1
)

// AnswerPoints scores a correct answer: faster answers earn a larger time bonus.
// elapsed is clamped to at least one second, the limit to domain.MaxTimeLimitSeconds.
func AnswerPoints(elapsedSeconds float64, timeLimitSeconds int) int {
	if timeLimitSeconds > domain.MaxTimeLimitSeconds {
		timeLimitSeconds = domain.MaxTimeLimitSeconds
	}
	if math.IsNaN(elapsedSeconds) || elapsedSeconds < minElapsedSecond {
		elapsedSeconds = minElapsedSecond
	}
	bonus := math.Floor((float64(timeLimitSeconds) - elapsedSeconds) * pointsPerSecond)
	if bonus < minTimeBonus {
		bonus = minTimeBonus
	}
	return basePoints + int(bonus)
}

// Ranked orders players by score descending. Ties go to the earlier joiner, then the lower id.
func Ranked(g *domain.Game) []*domain.Player {
	players := make([]*domain.Player, 0, len(g.Players))
	for _, p := range g.Players {
		players = append(players, p)
	}
	sort.SliceStable(players, func(i, j int) bool {
		if players[i].Score != players[j].Score {
			return players[i].Score > players[j].Score
		}
		if !players[i].JoinedAt.Equal(players[j].JoinedAt) {
			return players[i].JoinedAt.Before(players[j].JoinedAt)
		}
		return players[i].ID < players[j].ID
	})
	return players
}

// SlotBonus returns the end-of-game bonus for a 1-based rank.
func SlotBonus(points domain.PointsBySlot, rank int) int {
	switch rank {
	case 1:
		return points.First
	case 2:
		return points.Second
	case 3:
		return points.Third
	default:
		return points.Participation
	}
}

// ApplyFinalRanking assigns FinalPosition and FinalScore to every player.
// Score keeps the points earned from answers; FinalScore adds the slot bonus.
func ApplyFinalRanking(g *domain.Game) {
	for i, p := range Ranked(g) {
		rank := i + 1
		p.FinalPosition = rank
		p.FinalScore = p.Score + SlotBonus(g.Settings.PointsBySlot, rank)
	}
}

// Leaderboard is the live ranking by score without slot bonuses.
func Leaderboard(g *domain.Game) []domain.LeaderboardEntry {
	ranked := Ranked(g)
	entries := make([]domain.LeaderboardEntry, 0, len(ranked))
	for i, p := range ranked {
		entries = append(entries, domain.LeaderboardEntry{
			Rank:     i + 1,
			PlayerID: p.ID,
			Name:     p.Name,
			Score:    p.Score,
		})
	}
	return entries
}

// Standings lists final positions and scores of a finished game.
func Standings(g *domain.Game) []domain.LeaderboardEntry {
	if g.Status != domain.StatusFinished {
		return nil
	}
	entries := make([]domain.LeaderboardEntry, 0, len(g.Players))
	for _, p := range g.Players {
		entries = append(entries, domain.LeaderboardEntry{
			Rank:     p.FinalPosition,
			PlayerID: p.ID,
			Name:     p.Name,
			Score:    p.FinalScore,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Rank != entries[j].Rank {
			return entries[i].Rank < entries[j].Rank
		}
		return entries[i].PlayerID < entries[j].PlayerID
	})
	return entries
}

// QuestionStats counts, per question, how many players picked the correct option.
func QuestionStats(g *domain.Game) []domain.QuestionStat {
	total := len(g.Players)
	stats := make([]domain.QuestionStat, 0, len(g.Questions))
	for i, q := range g.Questions {
		correct := 0
		for _, p := range g.Players {
			if answer, ok := p.Answers[i]; ok && answer == q.CorrectOptionIndex {
				correct++
			}
		}
		pct := 0
		if total > 0 {
			pct = int(math.Round(float64(correct) * 100 / float64(total)))
		}
		stats = append(stats, domain.QuestionStat{
			QuestionIndex:  i,
			Text:           q.Text,
			CorrectAnswers: correct,
			TotalPlayers:   total,
			Percentage:     pct,
		})
	}
	return stats
}

// Results summarizes a finished game for archiving.
func Results(g *domain.Game) domain.GameResult {
	result := domain.GameResult{
		Code:      g.Code,
		Title:     g.Title,
		Standings: Standings(g),
		Stats:     QuestionStats(g),
	}
	if g.EndedAt != nil {
		result.EndedAt = *g.EndedAt
	}
	return result
}
