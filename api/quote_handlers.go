package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"procureflow/quote"
)

type submitQuoteRequest struct {
	PricePerUnit     decimal.Decimal  `json:"price_per_unit"`
	Currency         string           `json:"currency"`
	QuantityAvail    int              `json:"quantity_available"`
	MinOrderQuantity *int             `json:"min_order_quantity"`
	MaxOrderQuantity *int             `json:"max_order_quantity"`
	DeliveryFee      *decimal.Decimal `json:"delivery_fee"`
	LeadTimeDays     int              `json:"lead_time_days"`
	PaymentTerms     string           `json:"payment_terms"`
	ValidUntil       time.Time        `json:"valid_until"`
	Notes            *string          `json:"notes"`
}

type quoteResponse struct {
	ID               string     `json:"id"`
	RFQID            string     `json:"rfq_id"`
	VendorID         string     `json:"vendor_id"`
	PricePerUnit     string     `json:"price_per_unit"`
	Currency         string     `json:"currency"`
	QuantityAvail    int        `json:"quantity_available"`
	MinOrderQuantity *int       `json:"min_order_quantity,omitempty"`
	MaxOrderQuantity *int       `json:"max_order_quantity,omitempty"`
	DeliveryFee      *string    `json:"delivery_fee,omitempty"`
	LeadTimeDays     int        `json:"lead_time_days"`
	PaymentTerms     string     `json:"payment_terms"`
	ValidUntil       time.Time  `json:"valid_until"`
	Notes            *string    `json:"notes,omitempty"`
	Status           string     `json:"status"`
	AcceptedAt       *time.Time `json:"accepted_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func toQuoteResponse(q quote.Quote) quoteResponse {
	resp := quoteResponse{
		ID:               q.ID,
		RFQID:            q.RFQID,
		VendorID:         q.VendorID,
		PricePerUnit:     q.PricePerUnit.String(),
		Currency:         q.Currency,
		QuantityAvail:    q.QuantityAvail,
		MinOrderQuantity: q.MinOrderQuantity,
		MaxOrderQuantity: q.MaxOrderQuantity,
		LeadTimeDays:     q.LeadTimeDays,
		PaymentTerms:     string(q.PaymentTerms),
		ValidUntil:       q.ValidUntil,
		Notes:            q.Notes,
		Status:           string(q.Status),
		AcceptedAt:       q.AcceptedAt,
		CreatedAt:        q.CreatedAt,
		UpdatedAt:        q.UpdatedAt,
	}
	if q.DeliveryFee != nil {
		fee := q.DeliveryFee.String()
		resp.DeliveryFee = &fee
	}
	return resp
}

func (s *Server) handleSubmitQuote(c echo.Context) error {
	var req submitQuoteRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	q, err := s.quotes.Submit(c.Request().Context(), quote.SubmitParams{
		RFQID:            c.Param("id"),
		VendorID:         identity(c).UserID,
		PricePerUnit:     req.PricePerUnit,
		Currency:         req.Currency,
		QuantityAvail:    req.QuantityAvail,
		MinOrderQuantity: req.MinOrderQuantity,
		MaxOrderQuantity: req.MaxOrderQuantity,
		DeliveryFee:      req.DeliveryFee,
		LeadTimeDays:     req.LeadTimeDays,
		PaymentTerms:     quote.PaymentTerms(req.PaymentTerms),
		ValidUntil:       req.ValidUntil,
		Notes:            req.Notes,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, toQuoteResponse(q))
}

func (s *Server) handleGetQuote(c echo.Context) error {
	q, err := s.quotes.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toQuoteResponse(q))
}

func (s *Server) handleListQuotes(c echo.Context) error {
	filters := quote.ListFilters{
		RFQID:    c.QueryParam("rfq_id"),
		VendorID: c.QueryParam("vendor_id"),
		Status:   quote.Status(c.QueryParam("status")),
		Limit:    intQueryParam(c, "limit"),
		Offset:   intQueryParam(c, "offset"),
	}

	quotes, err := s.quotes.List(c.Request().Context(), filters)
	if err != nil {
		return writeError(c, err)
	}
	out := make([]quoteResponse, 0, len(quotes))
	for _, q := range quotes {
		out = append(out, toQuoteResponse(q))
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleWithdrawQuote(c echo.Context) error {
	q, err := s.quotes.Withdraw(c.Request().Context(), c.Param("id"), actor(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toQuoteResponse(q))
}

// handleAcceptQuote runs the atomic acceptance transaction and returns the
// resulting order.
func (s *Server) handleAcceptQuote(c echo.Context) error {
	var req struct {
		RFQID string `json:"rfq_id"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	quoteID := c.Param("id")
	rfqID := req.RFQID
	if rfqID == "" {
		q, err := s.quotes.Get(c.Request().Context(), quoteID)
		if err != nil {
			return writeError(c, err)
		}
		rfqID = q.RFQID
	}

	ord, err := s.coordinator.AcceptQuote(c.Request().Context(), rfqID, quoteID, actor(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, toOrderResponse(ord))
}
