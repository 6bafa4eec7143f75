package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"arcade-pot/internal/domain"
	"arcade-pot/internal/payment"
	"arcade-pot/internal/session"
)

type quoteView struct {
	Address string  `json:"address"`
	Amount  string  `json:"amount"`
	Price   float64 `json:"price"`
}

// GET /api/payment/info
func (s *Server) paymentInfo(c *gin.Context) {
	quotes, err := s.payments.Info(c.Request.Context())
	if err != nil {
		s.log.Warnf("Payment info: %v", err)
		s.fail(c, err)
		return
	}

	body := gin.H{"entryFeeUsd": s.payments.EntryFeeUSD()}
	for _, network := range domain.Networks {
		q := quotes[network]
		body[network.String()] = quoteView{Address: q.Address, Amount: q.Display(), Price: q.PriceUSD}
	}
	c.JSON(http.StatusOK, body)
}

type verifyRequest struct {
	Chain         string `json:"chain"`
	TxSignature   string `json:"txSignature"`
	WalletAddress string `json:"walletAddress"`
}

// POST /api/payment/verify
func (s *Server) verifyPayment(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body.")
		return
	}

	issued, err := s.payments.Verify(c.Request.Context(), payment.VerifyRequest{
		Network: req.Chain,
		TxID:    req.TxSignature,
		Wallet:  req.WalletAddress,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":     issued.Token,
		"expiresIn": int64(s.sessionTTL.Seconds()),
	})
}

// GET /api/payment/session/:token
func (s *Server) validateSession(c *gin.Context) {
	_, err := s.sessions.Validate(c.Request.Context(), c.Param("token"))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"valid": true})
	case errors.Is(err, session.ErrAlreadySubmitted):
		c.JSON(http.StatusOK, gin.H{"valid": false, "error": message(err, http.StatusOK)})
	default:
		status, _ := statusFor(err)
		c.JSON(status, gin.H{"valid": false, "error": message(err, status)})
	}
}
