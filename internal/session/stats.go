// internal/session/stats.go
package session

import (
	"context"
	"fmt"
	"math"
	"slices"

	"github.com/jason-s-yu/playtogether/internal/models"
	"github.com/jason-s-yu/playtogether/internal/rating"
)

// Record is a win/loss/draw tally.
type Record struct {
	Played int `json:"played"`
	Wins   int `json:"wins"`
	Losses int `json:"losses"`
	Draws  int `json:"draws"`
}

func (r *Record) add(sess *models.GameSession, participant string) {
	r.Played++
	switch score(sess, participant) {
	case rating.Win:
		r.Wins++
	case rating.Draw:
		r.Draws++
	default:
		r.Losses++
	}
}

// score is the rating outcome of sess for participant.
func score(sess *models.GameSession, participant string) float64 {
	switch sess.Winner {
	case participant:
		return rating.Win
	case models.WinnerDraw, "":
		return rating.Draw
	default:
		return rating.Loss
	}
}

// Stats summarizes a participant's completed sessions.
type Stats struct {
	Record
	Participant string            `json:"participant"`
	ByGame      map[string]Record `json:"by_game"`

	// Rating is a Glicko-2 rating on the 1500 scale, replayed from every completed game
	// against an unrated opponent.
	Rating          int `json:"rating"`
	RatingDeviation int `json:"rating_deviation"`
}

// Stats tallies every completed session participant played.
func (s *Store) Stats(ctx context.Context, participant string) (Stats, error) {
	if participant == "" {
		return Stats{}, ErrInvalidParticipant
	}
	done, err := s.repo.List(ctx, Filter{Status: models.StatusCompleted, Participant: participant})
	if err != nil {
		return Stats{}, fmt.Errorf("list completed sessions: %w", err)
	}
	// oldest first so the rating reflects play order
	slices.SortStableFunc(done, func(a, b *models.GameSession) int {
		return a.UpdatedAt.Compare(b.UpdatedAt)
	})

	st := Stats{Participant: participant, ByGame: make(map[string]Record)}
	r := rating.Default()
	for _, sess := range done {
		st.add(sess, participant)
		g := st.ByGame[sess.GameID]
		g.add(sess, participant)
		st.ByGame[sess.GameID] = g
		r = r.Update(rating.Default(), score(sess, participant))
	}
	st.Rating = int(math.Round(r.Elo()))
	st.RatingDeviation = int(math.Round(r.RD()))
	return st, nil
}
