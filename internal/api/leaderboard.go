package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"arcade-pot/internal/domain"
)

// GET /api/leaderboard
func (s *Server) leaderboard(c *gin.Context) {
	ctx := c.Request.Context()
	dayKey := domain.DayKey(s.now())

	scores, err := s.scores.Leaderboard(ctx, dayKey)
	if err != nil {
		s.fail(c, err)
		return
	}
	pot, err := s.pots.PotFor(ctx, dayKey)
	if err != nil {
		s.fail(c, err)
		return
	}

	views := make([]scoreView, len(scores))
	for i, sc := range scores {
		views[i] = publicScore(sc)
	}
	c.JSON(http.StatusOK, gin.H{
		"dayKey": dayKey,
		"scores": views,
		"pot":    newPotView(pot),
	})
}

// GET /api/leaderboard/history
func (s *Server) history(c *gin.Context) {
	winners, err := s.settlement.History(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	views := make([]winnerView, len(winners))
	for i, w := range winners {
		views[i] = publicWinner(w)
	}
	c.JSON(http.StatusOK, views)
}
