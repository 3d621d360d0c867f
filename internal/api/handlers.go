package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"optionDesk/internal/app"
	"optionDesk/internal/domain"
	"optionDesk/internal/ports"
	"optionDesk/internal/utils"
)

// RegisterRequest is the body of POST /api/accounts.
type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginRequest is the body of POST /api/sessions.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// SessionResponse is returned by register and login.
type SessionResponse struct {
	Account   *domain.Account `json:"account"`
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expiresAt"`
}

// DepositRequest is the body of POST /api/account/deposits.
type DepositRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// OpenPositionRequest is the body of POST /api/positions. Symbol and expiry
// default to the session's chart selection.
type OpenPositionRequest struct {
	Symbol        string          `json:"symbol"`
	Direction     string          `json:"direction" binding:"required"`
	Amount        decimal.Decimal `json:"amount"`
	ExpiryMinutes int             `json:"expiryMinutes"`
}

// ChartResponse is the chart widget state.
type ChartResponse struct {
	Symbol        string             `json:"symbol"`
	Granularity   domain.Granularity `json:"granularity"`
	ExpiryMinutes int                `json:"expiryMinutes"`
	Quote         domain.Quote       `json:"quote"`
	Markers       []*domain.Position `json:"markers"`
	Candles       []domain.Candle    `json:"candles"`
}

func badRequest(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ports.ErrInvalidRequest, fmt.Sprintf(format, args...))
}

func (s *Server) register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, badRequest("%v", err))
		return
	}
	acct, sess, err := s.accounts.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, SessionResponse{Account: acct, Token: sess.Token, ExpiresAt: sess.ExpiresAt})
}

func (s *Server) login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, badRequest("%v", err))
		return
	}
	acct, sess, err := s.accounts.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, SessionResponse{Account: acct, Token: sess.Token, ExpiresAt: sess.ExpiresAt})
}

func (s *Server) logout(c *gin.Context) {
	if err := s.accounts.Logout(c.Request.Context(), currentSession(c).Token); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) account(c *gin.Context) {
	acct, err := s.accounts.Account(c.Request.Context(), currentSession(c).AccountID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, acct)
}

func (s *Server) deposit(c *gin.Context) {
	var req DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, badRequest("%v", err))
		return
	}
	acct, err := s.trading.Deposit(c.Request.Context(), currentSession(c).AccountID, req.Amount)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, acct)
}

func (s *Server) instruments(c *gin.Context) {
	c.JSON(http.StatusOK, s.trading.Instruments())
}

func (s *Server) prices(c *gin.Context) {
	if symbol := c.Query("symbol"); symbol != "" {
		q, err := s.trading.Quote(symbol)
		if err != nil {
			s.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, q)
		return
	}

	instruments := s.trading.Instruments()
	quotes := make([]domain.Quote, 0, len(instruments))
	for _, inst := range instruments {
		q, err := s.trading.Quote(inst.Symbol)
		if err != nil {
			s.writeError(c, err)
			return
		}
		quotes = append(quotes, q)
	}
	c.JSON(http.StatusOK, quotes)
}

func (s *Server) candles(c *gin.Context) {
	symbol := c.Query("symbol")
	if symbol == "" {
		s.writeError(c, badRequest("symbol is required"))
		return
	}
	g := domain.Granularity(c.DefaultQuery("granularity", string(domain.Granularity1m)))
	candles, err := s.trading.Candles(symbol, g)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, candles)
}

func (s *Server) studies(c *gin.Context) {
	symbol := c.Query("symbol")
	if symbol == "" {
		s.writeError(c, badRequest("symbol is required"))
		return
	}
	period, err := strconv.Atoi(c.DefaultQuery("period", "14"))
	if err != nil {
		s.writeError(c, badRequest("period must be an integer"))
		return
	}
	g := domain.Granularity(c.DefaultQuery("granularity", string(domain.Granularity1m)))
	series, err := s.trading.Study(symbol, g, c.DefaultQuery("name", "SMA"), period)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, series)
}

func (s *Server) chart(c *gin.Context) {
	sess := currentSession(c)
	resp, err := s.chartState(c, sess)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) updateChart(c *gin.Context) {
	var upd app.ChartUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		s.writeError(c, badRequest("%v", err))
		return
	}
	sess, err := s.accounts.UpdateChart(c.Request.Context(), currentSession(c), upd)
	if err != nil {
		s.writeError(c, err)
		return
	}
	resp, err := s.chartState(c, sess)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) chartState(c *gin.Context, sess *domain.Session) (*ChartResponse, error) {
	quote, err := s.trading.Quote(sess.Symbol)
	if err != nil {
		return nil, err
	}
	markers, err := s.trading.Markers(c.Request.Context(), sess.AccountID, sess.Symbol)
	if err != nil {
		return nil, err
	}
	candles, err := s.trading.Candles(sess.Symbol, sess.Granularity)
	if err != nil {
		return nil, err
	}
	return &ChartResponse{
		Symbol:        sess.Symbol,
		Granularity:   sess.Granularity,
		ExpiryMinutes: sess.ExpiryMinutes,
		Quote:         quote,
		Markers:       markers,
		Candles:       candles,
	}, nil
}

func (s *Server) openPosition(c *gin.Context) {
	var req OpenPositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, badRequest("%v", err))
		return
	}
	sess := currentSession(c)
	if req.Symbol == "" {
		req.Symbol = sess.Symbol
	}
	if req.ExpiryMinutes == 0 {
		req.ExpiryMinutes = sess.ExpiryMinutes
	}

	pos, err := s.trading.Open(c.Request.Context(), sess.AccountID, domain.OpenRequest{
		Symbol:        req.Symbol,
		Direction:     domain.Direction(strings.ToUpper(strings.TrimSpace(req.Direction))),
		Amount:        req.Amount,
		ExpiryMinutes: req.ExpiryMinutes,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, pos)
}

func (s *Server) listPositions(c *gin.Context) {
	ctx := c.Request.Context()
	accountID := currentSession(c).AccountID

	var (
		positions []*domain.Position
		err       error
	)
	switch c.Query("status") {
	case "":
		positions, err = s.trading.Positions(ctx, accountID)
	case "open":
		positions, err = s.trading.OpenPositions(ctx, accountID)
	case "closed":
		positions, err = s.trading.History(ctx, accountID)
	default:
		err = badRequest("status must be open or closed")
	}
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, positions)
}

func (s *Server) getPosition(c *gin.Context) {
	pos, err := s.trading.Position(c.Request.Context(), currentSession(c).AccountID, c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, pos)
}

func (s *Server) exportPositions(c *gin.Context) {
	positions, err := s.trading.Positions(c.Request.Context(), currentSession(c).AccountID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	var buf bytes.Buffer
	if err := utils.WritePositionsCSV(&buf, positions); err != nil {
		s.writeError(c, fmt.Errorf("failed to render positions CSV: %w", err))
		return
	}
	c.Header("Content-Disposition", `attachment; filename="positions.csv"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func (s *Server) stats(c *gin.Context) {
	metrics, err := s.trading.Stats(c.Request.Context(), currentSession(c).AccountID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, metrics)
}

func (s *Server) streamPrices(c *gin.Context) {
	symbol := c.Query("symbol")
	if symbol != "" {
		if _, err := s.trading.Quote(symbol); err != nil {
			s.writeError(c, err)
			return
		}
	}
	s.hub.ServeWS(c.Writer, c.Request, symbol)
}
