package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"procureflow/dispute"
)

type openDisputeRequest struct {
	IssueType           string  `json:"issue_type"`
	Description         string  `json:"description"`
	PreferredResolution *string `json:"preferred_resolution"`
}

type resolveDisputeRequest struct {
	Decision string  `json:"decision"`
	Notes    *string `json:"notes"`
	Action   *string `json:"action"`
}

type disputeResponse struct {
	ID                  string     `json:"id"`
	OrderID             string     `json:"order_id"`
	RaisedBy            string     `json:"raised_by"`
	IssueType           string     `json:"issue_type"`
	Description         string     `json:"description"`
	PreferredResolution *string    `json:"preferred_resolution,omitempty"`
	Status              string     `json:"status"`
	AssignedTo          *string    `json:"assigned_to,omitempty"`
	ResolutionDecision  *string    `json:"resolution_decision,omitempty"`
	ResolutionNotes     *string    `json:"resolution_notes,omitempty"`
	ResolutionAction    *string    `json:"resolution_action,omitempty"`
	ResolvedBy          *string    `json:"resolved_by,omitempty"`
	ResolvedAt          *time.Time `json:"resolved_at,omitempty"`
	ClosedAt            *time.Time `json:"closed_at,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

func toDisputeResponse(d dispute.Record) disputeResponse {
	return disputeResponse{
		ID:                  d.ID,
		OrderID:             d.OrderID,
		RaisedBy:            d.RaisedBy,
		IssueType:           string(d.IssueType),
		Description:         d.Description,
		PreferredResolution: d.PreferredResolution,
		Status:              string(d.Status),
		AssignedTo:          d.AssignedTo,
		ResolutionDecision:  d.ResolutionDecision,
		ResolutionNotes:     d.ResolutionNotes,
		ResolutionAction:    d.ResolutionAction,
		ResolvedBy:          d.ResolvedBy,
		ResolvedAt:          d.ResolvedAt,
		ClosedAt:            d.ClosedAt,
		CreatedAt:           d.CreatedAt,
		UpdatedAt:           d.UpdatedAt,
	}
}

func (s *Server) handleOpenDispute(c echo.Context) error {
	var req openDisputeRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	rec, err := s.disputes.Open(c.Request().Context(), dispute.OpenParams{
		OrderID:             c.Param("id"),
		RaisedBy:            identity(c).UserID,
		IssueType:           dispute.IssueType(req.IssueType),
		Description:         req.Description,
		PreferredResolution: req.PreferredResolution,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, toDisputeResponse(rec))
}

func (s *Server) handleGetDispute(c echo.Context) error {
	rec, err := s.disputes.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toDisputeResponse(rec))
}

func (s *Server) handleListDisputes(c echo.Context) error {
	filters := dispute.ListFilters{
		OrderID:   c.QueryParam("order_id"),
		RaisedBy:  c.QueryParam("raised_by"),
		Status:    dispute.Status(c.QueryParam("status")),
		IssueType: dispute.IssueType(c.QueryParam("issue_type")),
		Limit:     intQueryParam(c, "limit"),
		Offset:    intQueryParam(c, "offset"),
	}

	recs, err := s.disputes.List(c.Request().Context(), filters)
	if err != nil {
		return writeError(c, err)
	}
	out := make([]disputeResponse, 0, len(recs))
	for _, d := range recs {
		out = append(out, toDisputeResponse(d))
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleAssignDispute(c echo.Context) error {
	var req struct {
		AssignedTo string `json:"assigned_to"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	rec, err := s.disputes.Assign(c.Request().Context(), c.Param("id"), req.AssignedTo, actor(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toDisputeResponse(rec))
}

func (s *Server) handleResolveDispute(c echo.Context) error {
	var req resolveDisputeRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	rec, err := s.disputes.Resolve(c.Request().Context(), dispute.ResolveParams{
		DisputeID:  c.Param("id"),
		Decision:   req.Decision,
		Notes:      req.Notes,
		Action:     req.Action,
		ResolvedBy: identity(c).UserID,
	}, actor(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toDisputeResponse(rec))
}

func (s *Server) handleCloseDispute(c echo.Context) error {
	rec, err := s.disputes.Close(c.Request().Context(), c.Param("id"), actor(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toDisputeResponse(rec))
}
