// Package api exposes the workflow engine over HTTP. Handlers are thin:
// bind, resolve the actor, call the service, map the error kind to a status.
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"procureflow/acceptance"
	"procureflow/auth"
	"procureflow/dispute"
	"procureflow/order"
	"procureflow/quote"
	"procureflow/review"
	"procureflow/rfq"
)

// Server wires the engine services behind an echo router.
type Server struct {
	auth        *auth.Service
	rfqs        *rfq.Service
	quotes      *quote.Service
	orders      *order.Service
	disputes    *dispute.Service
	reviews     *review.Service
	coordinator *acceptance.Coordinator
}

func NewServer(
	authSvc *auth.Service,
	rfqSvc *rfq.Service,
	quoteSvc *quote.Service,
	orderSvc *order.Service,
	disputeSvc *dispute.Service,
	reviewSvc *review.Service,
	coordinator *acceptance.Coordinator,
) *Server {
	return &Server{
		auth:        authSvc,
		rfqs:        rfqSvc,
		quotes:      quoteSvc,
		orders:      orderSvc,
		disputes:    disputeSvc,
		reviews:     reviewSvc,
		coordinator: coordinator,
	}
}

// Router builds the echo instance with all routes registered.
func (s *Server) Router() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())

	e.GET("/health", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	e.POST("/auth/register", s.handleRegister)
	e.POST("/auth/login", s.handleLogin)

	g := e.Group("", s.requireAuth)
	g.GET("/auth/me", s.handleMe)

	g.POST("/rfqs", s.handleCreateRFQ)
	g.GET("/rfqs", s.handleListRFQs)
	g.GET("/rfqs/:id", s.handleGetRFQ)
	g.POST("/rfqs/:id/publish", s.handlePublishRFQ)
	g.POST("/rfqs/:id/close", s.handleCloseRFQ)
	g.POST("/rfqs/:id/cancel", s.handleCancelRFQ)

	g.POST("/rfqs/:id/quotes", s.handleSubmitQuote)
	g.GET("/quotes", s.handleListQuotes)
	g.GET("/quotes/:id", s.handleGetQuote)
	g.POST("/quotes/:id/withdraw", s.handleWithdrawQuote)
	g.POST("/quotes/:id/accept", s.handleAcceptQuote)

	g.GET("/orders", s.handleListOrders)
	g.GET("/orders/:id", s.handleGetOrder)
	g.POST("/orders/:id/advance", s.handleAdvanceOrder)
	g.POST("/orders/:id/decline", s.handleDeclineOrder)
	g.POST("/orders/:id/cancel", s.handleCancelOrder)

	g.POST("/orders/:id/disputes", s.handleOpenDispute)
	g.GET("/disputes", s.handleListDisputes)
	g.GET("/disputes/:id", s.handleGetDispute)
	g.POST("/disputes/:id/assign", s.handleAssignDispute, s.requireAdmin)
	g.POST("/disputes/:id/resolve", s.handleResolveDispute, s.requireAdmin)
	g.POST("/disputes/:id/close", s.handleCloseDispute, s.requireAdmin)

	g.POST("/orders/:id/review", s.handleCreateReview)
	g.GET("/reviews", s.handleListReviews)
	g.GET("/reviews/:id", s.handleGetReview)
	g.POST("/reviews/:id/respond", s.handleVendorRespond)
	g.POST("/reviews/:id/helpful", s.handleMarkHelpful)
	g.POST("/reviews/:id/hide", s.handleHideReview, s.requireAdmin)
	g.POST("/reviews/:id/flag", s.handleFlagReview, s.requireAdmin)
	g.POST("/reviews/:id/republish", s.handleRepublishReview, s.requireAdmin)
	e.GET("/vendors/:id/rating", s.handleVendorRating)

	return e
}
