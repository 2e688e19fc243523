package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	creditdomain "github.com/makestack-ai/makestack/internal/credit/domain"
)

func (s *Server) HandleGetCredits(c *gin.Context) {
	account, err := s.creditSvc.GetAccount(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if account == nil {
		AbortWithError(c, creditdomain.ErrAccountNotFound)
		return
	}
	c.JSON(http.StatusOK, account)
}

func (s *Server) HandleListTransactions(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	items, err := s.creditSvc.ListTransactions(c.Request.Context(), c.Param("user_id"), limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": items})
}

type spendCreditsBody struct {
	Credits     int64  `json:"credits"`
	Description string `json:"description"`
	RunID       string `json:"run_id"`
}

func (s *Server) HandleSpendCredits(c *gin.Context) {
	userID := c.Param("user_id")

	if s.limiter != nil {
		res, err := s.limiter.Allow(c.Request.Context(), userID)
		if err == nil && !res.Allowed {
			c.Header("Retry-After", strconv.Itoa(int(res.RetryAfter.Seconds())+1))
			c.JSON(http.StatusTooManyRequests, gin.H{"error": gin.H{
				"type":    "rate_limited",
				"message": "too many spend requests",
			}})
			return
		}
	}

	var body spendCreditsBody
	if err := c.ShouldBindJSON(&body); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	runID := body.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	result, err := s.creditSvc.SpendCredits(c.Request.Context(), creditdomain.SpendCreditsRequest{
		UserID:       userID,
		Credits:      body.Credits,
		Description:  body.Description,
		RelatedRunID: runID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"balance": result.Balance, "run_id": runID})
}

type grantCreditsBody struct {
	Credits     int64  `json:"credits"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

func (s *Server) HandleGrantCredits(c *gin.Context) {
	var body grantCreditsBody
	if err := c.ShouldBindJSON(&body); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	err := s.creditSvc.GrantCredits(c.Request.Context(), creditdomain.GrantCreditsRequest{
		UserID:      c.Param("user_id"),
		Credits:     body.Credits,
		Type:        creditdomain.TransactionType(body.Type),
		Description: body.Description,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
