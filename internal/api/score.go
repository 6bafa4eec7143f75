package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"arcade-pot/internal/scoring"
)

type submitRequest struct {
	Token     string `json:"token"`
	Score     *int64 `json:"score"`
	Frames    *int64 `json:"frames"`
	GameMode  string `json:"gameMode"`
	TurboMode bool   `json:"turboMode"`
}

// POST /api/score/submit
func (s *Server) submitScore(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body.")
		return
	}
	if req.Token == "" || req.Score == nil || req.Frames == nil || req.GameMode == "" {
		badRequest(c, "Missing required fields.")
		return
	}

	rank, err := s.scores.Admit(c.Request.Context(), scoring.Submission{
		Token:    req.Token,
		Score:    *req.Score,
		Frames:   *req.Frames,
		GameMode: req.GameMode,
		Turbo:    req.TurboMode,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "rank": rank})
}
