package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"procureflow/lifecycle"
	"procureflow/rfq"
)

type createRFQRequest struct {
	ProductID             string     `json:"product_id"`
	Quantity              int        `json:"quantity"`
	DeliveryAddressID     string     `json:"delivery_address_id"`
	PreferredDeliveryDate *time.Time `json:"preferred_delivery_date"`
	Notes                 *string    `json:"notes"`
	ExpiresAt             *time.Time `json:"expires_at"`
}

type rfqResponse struct {
	ID                    string     `json:"id"`
	Number                string     `json:"rfq_number"`
	BuyerID               string     `json:"buyer_id"`
	OrganizationID        *string    `json:"organization_id,omitempty"`
	ProductID             string     `json:"product_id"`
	Quantity              int        `json:"quantity"`
	DeliveryAddressID     string     `json:"delivery_address_id"`
	PreferredDeliveryDate *time.Time `json:"preferred_delivery_date,omitempty"`
	Notes                 *string    `json:"notes,omitempty"`
	Status                string     `json:"status"`
	ExpiresAt             *time.Time `json:"expires_at,omitempty"`
	ClosedReason          *string    `json:"closed_reason,omitempty"`
	ClosedAt              *time.Time `json:"closed_at,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

func toRFQResponse(r rfq.RFQ) rfqResponse {
	return rfqResponse{
		ID:                    r.ID,
		Number:                r.Number,
		BuyerID:               r.BuyerID,
		OrganizationID:        r.OrganizationID,
		ProductID:             r.ProductID,
		Quantity:              r.Quantity,
		DeliveryAddressID:     r.DeliveryAddressID,
		PreferredDeliveryDate: r.PreferredDeliveryDate,
		Notes:                 r.Notes,
		Status:                string(r.Status),
		ExpiresAt:             r.ExpiresAt,
		ClosedReason:          r.ClosedReason,
		ClosedAt:              r.ClosedAt,
		CreatedAt:             r.CreatedAt,
		UpdatedAt:             r.UpdatedAt,
	}
}

func (s *Server) handleCreateRFQ(c echo.Context) error {
	var req createRFQRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	rec, err := s.rfqs.Create(c.Request().Context(), rfq.CreateParams{
		BuyerID:               identity(c).UserID,
		ProductID:             req.ProductID,
		Quantity:              req.Quantity,
		DeliveryAddressID:     req.DeliveryAddressID,
		PreferredDeliveryDate: req.PreferredDeliveryDate,
		Notes:                 req.Notes,
		ExpiresAt:             req.ExpiresAt,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, toRFQResponse(rec))
}

func (s *Server) handleGetRFQ(c echo.Context) error {
	rec, err := s.rfqs.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toRFQResponse(rec))
}

func (s *Server) handleListRFQs(c echo.Context) error {
	filters := rfq.ListFilters{
		BuyerID:   c.QueryParam("buyer_id"),
		ProductID: c.QueryParam("product_id"),
		Status:    rfq.Status(c.QueryParam("status")),
		Limit:     intQueryParam(c, "limit"),
		Offset:    intQueryParam(c, "offset"),
	}

	recs, err := s.rfqs.List(c.Request().Context(), filters)
	if err != nil {
		return writeError(c, err)
	}
	out := make([]rfqResponse, 0, len(recs))
	for _, r := range recs {
		out = append(out, toRFQResponse(r))
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handlePublishRFQ(c echo.Context) error {
	return s.rfqTransition(c, s.rfqs.Publish)
}

func (s *Server) handleCloseRFQ(c echo.Context) error {
	return s.rfqTransition(c, s.rfqs.Close)
}

func (s *Server) handleCancelRFQ(c echo.Context) error {
	return s.rfqTransition(c, s.rfqs.Cancel)
}

func (s *Server) rfqTransition(c echo.Context, fn func(ctx context.Context, id string, actor lifecycle.Actor) (rfq.RFQ, error)) error {
	rec, err := fn(c.Request().Context(), c.Param("id"), actor(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toRFQResponse(rec))
}
