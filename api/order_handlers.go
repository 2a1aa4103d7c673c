package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"procureflow/order"
)

type orderResponse struct {
	ID                   string     `json:"id"`
	Number               string     `json:"po_number"`
	RFQID                string     `json:"rfq_id"`
	QuoteID              string     `json:"quote_id"`
	BuyerID              string     `json:"buyer_id"`
	VendorID             string     `json:"vendor_id"`
	OrganizationID       *string    `json:"organization_id,omitempty"`
	ProductID            string     `json:"product_id"`
	Quantity             int        `json:"quantity"`
	UnitPrice            string     `json:"unit_price"`
	Currency             string     `json:"currency"`
	Subtotal             string     `json:"subtotal"`
	DeliveryFee          *string    `json:"delivery_fee,omitempty"`
	TotalAmount          string     `json:"total_amount"`
	DeliveryAddressID    string     `json:"delivery_address_id"`
	ExpectedDeliveryDate *time.Time `json:"expected_delivery_date,omitempty"`
	Status               string     `json:"status"`
	PaymentMethod        string     `json:"payment_method"`
	VendorDeclinedReason *string    `json:"vendor_declined_reason,omitempty"`
	CancelledBy          *string    `json:"cancelled_by,omitempty"`
	CancellationReason   *string    `json:"cancellation_reason,omitempty"`
	CancelledAt          *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

func toOrderResponse(o order.Order) orderResponse {
	resp := orderResponse{
		ID:                   o.ID,
		Number:               o.Number,
		RFQID:                o.RFQID,
		QuoteID:              o.QuoteID,
		BuyerID:              o.BuyerID,
		VendorID:             o.VendorID,
		OrganizationID:       o.OrganizationID,
		ProductID:            o.ProductID,
		Quantity:             o.Quantity,
		UnitPrice:            o.UnitPrice.String(),
		Currency:             o.Currency,
		Subtotal:             o.Subtotal.String(),
		TotalAmount:          o.TotalAmount.String(),
		DeliveryAddressID:    o.DeliveryAddressID,
		ExpectedDeliveryDate: o.ExpectedDeliveryDate,
		Status:               string(o.Status),
		PaymentMethod:        string(o.PaymentMethod),
		VendorDeclinedReason: o.VendorDeclinedReason,
		CancelledBy:          o.CancelledBy,
		CancellationReason:   o.CancellationReason,
		CancelledAt:          o.CancelledAt,
		CreatedAt:            o.CreatedAt,
		UpdatedAt:            o.UpdatedAt,
	}
	if o.DeliveryFee != nil {
		fee := o.DeliveryFee.String()
		resp.DeliveryFee = &fee
	}
	return resp
}

func (s *Server) handleGetOrder(c echo.Context) error {
	ord, err := s.orders.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toOrderResponse(ord))
}

func (s *Server) handleListOrders(c echo.Context) error {
	filters := order.ListFilters{
		BuyerID:  c.QueryParam("buyer_id"),
		VendorID: c.QueryParam("vendor_id"),
		Status:   order.Status(c.QueryParam("status")),
		Limit:    intQueryParam(c, "limit"),
		Offset:   intQueryParam(c, "offset"),
	}

	orders, err := s.orders.List(c.Request().Context(), filters)
	if err != nil {
		return writeError(c, err)
	}
	out := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderResponse(o))
	}
	return c.JSON(http.StatusOK, out)
}

// handleAdvanceOrder moves the order one step along the fulfillment chain.
func (s *Server) handleAdvanceOrder(c echo.Context) error {
	var req struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.Status == "" {
		return badRequest(c, "status required")
	}

	ord, err := s.orders.Advance(c.Request().Context(), c.Param("id"), order.Status(req.Status), actor(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toOrderResponse(ord))
}

func (s *Server) handleDeclineOrder(c echo.Context) error {
	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	ord, err := s.orders.Decline(c.Request().Context(), c.Param("id"), req.Reason, actor(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toOrderResponse(ord))
}

func (s *Server) handleCancelOrder(c echo.Context) error {
	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	ord, err := s.orders.Cancel(c.Request().Context(), c.Param("id"), req.Reason, actor(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toOrderResponse(ord))
}
