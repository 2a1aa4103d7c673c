package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"procureflow/lifecycle"
	"procureflow/review"
)

type createReviewRequest struct {
	OverallRating        int     `json:"overall_rating"`
	ProductQualityRating *int    `json:"product_quality_rating"`
	DeliveryRating       *int    `json:"delivery_rating"`
	CommunicationRating  *int    `json:"communication_rating"`
	PricingRating        *int    `json:"pricing_rating"`
	ReviewText           *string `json:"review_text"`
	IsAnonymous          bool    `json:"is_anonymous"`
}

type reviewResponse struct {
	ID                   string     `json:"id"`
	OrderID              string     `json:"order_id"`
	BuyerID              string     `json:"buyer_id,omitempty"`
	VendorID             string     `json:"vendor_id"`
	OverallRating        int        `json:"overall_rating"`
	ProductQualityRating *int       `json:"product_quality_rating,omitempty"`
	DeliveryRating       *int       `json:"delivery_rating,omitempty"`
	CommunicationRating  *int       `json:"communication_rating,omitempty"`
	PricingRating        *int       `json:"pricing_rating,omitempty"`
	ReviewText           *string    `json:"review_text,omitempty"`
	IsAnonymous          bool       `json:"is_anonymous"`
	HelpfulCount         int        `json:"helpful_count"`
	IsVerifiedPurchase   bool       `json:"is_verified_purchase"`
	VendorResponse       *string    `json:"vendor_response,omitempty"`
	VendorResponseAt     *time.Time `json:"vendor_response_at,omitempty"`
	Status               string     `json:"status"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// toReviewResponse blanks the buyer on anonymous reviews.
func toReviewResponse(r review.Review) reviewResponse {
	resp := reviewResponse{
		ID:                   r.ID,
		OrderID:              r.OrderID,
		BuyerID:              r.BuyerID,
		VendorID:             r.VendorID,
		OverallRating:        r.OverallRating,
		ProductQualityRating: r.ProductQualityRating,
		DeliveryRating:       r.DeliveryRating,
		CommunicationRating:  r.CommunicationRating,
		PricingRating:        r.PricingRating,
		ReviewText:           r.ReviewText,
		IsAnonymous:          r.IsAnonymous,
		HelpfulCount:         r.HelpfulCount,
		IsVerifiedPurchase:   r.IsVerifiedPurchase,
		VendorResponse:       r.VendorResponse,
		VendorResponseAt:     r.VendorResponseAt,
		Status:               string(r.Status),
		CreatedAt:            r.CreatedAt,
		UpdatedAt:            r.UpdatedAt,
	}
	if r.IsAnonymous {
		resp.BuyerID = ""
	}
	return resp
}

func (s *Server) handleCreateReview(c echo.Context) error {
	var req createReviewRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	rev, err := s.reviews.Create(c.Request().Context(), review.CreateParams{
		OrderID:              c.Param("id"),
		BuyerID:              identity(c).UserID,
		OverallRating:        req.OverallRating,
		ProductQualityRating: req.ProductQualityRating,
		DeliveryRating:       req.DeliveryRating,
		CommunicationRating:  req.CommunicationRating,
		PricingRating:        req.PricingRating,
		ReviewText:           req.ReviewText,
		IsAnonymous:          req.IsAnonymous,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, toReviewResponse(rev))
}

func (s *Server) handleGetReview(c echo.Context) error {
	rev, err := s.reviews.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toReviewResponse(rev))
}

func (s *Server) handleListReviews(c echo.Context) error {
	filters := review.ListFilters{
		VendorID:    c.QueryParam("vendor_id"),
		BuyerID:     c.QueryParam("buyer_id"),
		OrderID:     c.QueryParam("order_id"),
		VisibleOnly: !identity(c).IsAdmin(),
		Limit:       intQueryParam(c, "limit"),
		Offset:      intQueryParam(c, "offset"),
	}

	revs, err := s.reviews.List(c.Request().Context(), filters)
	if err != nil {
		return writeError(c, err)
	}
	out := make([]reviewResponse, 0, len(revs))
	for _, r := range revs {
		out = append(out, toReviewResponse(r))
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleVendorRespond(c echo.Context) error {
	var req struct {
		Response string `json:"response"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	rev, err := s.reviews.VendorRespond(c.Request().Context(), c.Param("id"), req.Response, actor(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toReviewResponse(rev))
}

func (s *Server) handleMarkHelpful(c echo.Context) error {
	rev, err := s.reviews.MarkHelpful(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toReviewResponse(rev))
}

func (s *Server) handleHideReview(c echo.Context) error {
	return s.moderateReview(c, s.reviews.Hide)
}

func (s *Server) handleFlagReview(c echo.Context) error {
	return s.moderateReview(c, s.reviews.Flag)
}

func (s *Server) moderateReview(c echo.Context, fn func(ctx context.Context, id, reason string, actor lifecycle.Actor) (review.Review, error)) error {
	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	rev, err := fn(c.Request().Context(), c.Param("id"), req.Reason, actor(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toReviewResponse(rev))
}

func (s *Server) handleRepublishReview(c echo.Context) error {
	rev, err := s.reviews.Republish(c.Request().Context(), c.Param("id"), actor(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toReviewResponse(rev))
}

func (s *Server) handleVendorRating(c echo.Context) error {
	summary, err := s.reviews.VendorSummary(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, summary)
}
