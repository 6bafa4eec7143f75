package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"arcade-pot/internal/domain"
	"arcade-pot/internal/settlement"
)

// GET /api/admin/day/:dayKey
func (s *Server) daySummary(c *gin.Context) {
	summary, err := s.settlement.Summary(c.Request.Context(), c.Param("dayKey"))
	if err != nil {
		s.fail(c, err)
		return
	}

	prizes := make(map[string]string, len(domain.Networks))
	house := make(map[string]string, len(domain.Networks))
	for _, n := range domain.Networks {
		prizes[n.String()] = amount(n, summary.Prizes[n]) + " " + n.Asset()
		house[n.String()] = amount(n, summary.House[n]) + " " + n.Asset()
	}
	attempts := make([]attemptView, len(summary.Attempts))
	for i, a := range summary.Attempts {
		attempts[i] = attemptView{
			LegID:       a.LegID,
			Chain:       a.Network.String(),
			Wallet:      a.Wallet,
			Prize:       amount(a.Network, a.Prize),
			Status:      string(a.Status),
			TransferID:  a.TransferID,
			Detail:      a.Detail,
			AttemptedAt: a.AttemptedAt,
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"dayKey":       summary.DayKey,
		"winner":       fullScore(summary.Leader),
		"pot":          newPotView(summary.Pot),
		"prizes":       prizes,
		"house":        house,
		"payoutRecord": fullWinner(summary.Winner),
		"attempts":     attempts,
	})
}

// GET /api/admin/payments?page=&limit=
func (s *Server) listPayments(c *gin.Context) {
	limit := queryInt(c, "limit", DefaultPaymentsLimit)
	if limit > MaxPaymentsLimit {
		limit = MaxPaymentsLimit
	}
	if limit < 1 {
		limit = DefaultPaymentsLimit
	}
	page := queryInt(c, "page", 1)
	if page < 1 {
		page = 1
	}

	payments, err := s.paymentLog.List(c.Request.Context(), limit, (page-1)*limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	views := make([]paymentView, len(payments))
	for i, p := range payments {
		views[i] = newPaymentView(p)
	}
	c.JSON(http.StatusOK, gin.H{"page": page, "limit": limit, "payments": views})
}

// POST /api/admin/payout/:dayKey
func (s *Server) settle(c *gin.Context) {
	report, err := s.settlement.Settle(c.Request.Context(), c.Param("dayKey"))
	if err != nil {
		s.fail(c, err)
		return
	}

	body := gin.H{
		"dayKey":  report.DayKey,
		"outcome": string(report.Outcome),
		"resumed": report.Resumed,
	}
	if report.Outcome == settlement.OutcomeSettled {
		unresolved := make([]string, len(report.Unresolved))
		for i, n := range report.Unresolved {
			unresolved[i] = n.String()
		}
		body["status"] = report.Status.String()
		body["winner"] = fullWinner(report.Winner)
		body["unresolved"] = unresolved
		if note := report.Note(); note != "" {
			body["note"] = note
		}
	} else {
		body["message"] = "No scores found for " + report.DayKey + "."
	}
	c.JSON(http.StatusOK, body)
}

type markPaidRequest struct {
	Notes string `json:"notes"`
}

// PATCH /api/admin/payout/:dayKey/mark-paid
func (s *Server) markPaid(c *gin.Context) {
	var req markPaidRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Invalid request body.")
			return
		}
	}
	if err := s.settlement.MarkPaidManually(c.Request.Context(), c.Param("dayKey"), req.Notes); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func queryInt(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return def
	}
	return v
}
