package operations

import (
	"errors"
	"net/http"

	"github.com/tech-arch1tect/ziphub/internal/archive"
	"github.com/tech-arch1tect/ziphub/internal/audit"
	"github.com/tech-arch1tect/ziphub/internal/common"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type Handler struct {
	service      *Service
	auditService *audit.Service
}

func NewHandler(service *Service, auditService *audit.Service) *Handler {
	return &Handler{
		service:      service,
		auditService: auditService,
	}
}

func (h *Handler) StartOperation(c echo.Context) error {
	var req archive.OperationRequest
	if err := c.Bind(&req); err != nil {
		return common.SendBadRequest(c, "Invalid request format")
	}

	if req.SourcePath == "" {
		return common.SendBadRequest(c, "source path is required (interactive selection is handled by the client)")
	}

	kind, err := archive.ParseKind(string(req.Kind))
	if err != nil {
		return common.SendBadRequest(c, "Invalid operation request: "+err.Error())
	}
	req.Kind = kind

	operationID, err := h.service.Start(c.Request().Context(), req)
	if err != nil {
		h.auditService.LogOperationEvent(audit.EventOperationStarted, c.RealIP(), "", string(req.Kind), req.SourcePath, "", false, err.Error(), 0)
		switch {
		case errors.Is(err, archive.ErrInvalidRequest):
			return common.SendBadRequest(c, "Invalid operation request: "+err.Error())
		case errors.Is(err, ErrShuttingDown):
			return common.SendError(c, http.StatusServiceUnavailable, err.Error())
		default:
			return common.SendInternalError(c, err.Error())
		}
	}

	h.auditService.LogOperationEvent(audit.EventOperationStarted, c.RealIP(), operationID, string(req.Kind), req.SourcePath, "", true, "", 0)

	return common.SendAccepted(c, OperationResponse{
		OperationID: operationID,
	})
}

func (h *Handler) ListOperations(c echo.Context) error {
	return common.SendSuccess(c, h.service.List())
}

func (h *Handler) GetOperation(c echo.Context) error {
	operationID, err := operationIDParam(c)
	if err != nil {
		return common.SendBadRequest(c, err.Error())
	}

	operation, exists := h.service.Get(operationID)
	if !exists {
		return common.SendNotFound(c, "Operation not found")
	}

	return common.SendSuccess(c, operation)
}

func (h *Handler) WaitResult(c echo.Context) error {
	operationID, err := operationIDParam(c)
	if err != nil {
		return common.SendBadRequest(c, err.Error())
	}

	result, err := h.service.Wait(c.Request().Context(), operationID)
	if errors.Is(err, ErrOperationNotFound) {
		return common.SendNotFound(c, "Operation not found")
	}
	if err != nil {
		return err
	}

	return common.SendSuccess(c, result)
}

func (h *Handler) StreamOperation(c echo.Context) error {
	operationID, err := operationIDParam(c)
	if err != nil {
		return common.SendBadRequest(c, err.Error())
	}

	if _, exists := h.service.Get(operationID); !exists {
		return common.SendNotFound(c, "Operation not found")
	}

	c.Response().Header().Set("Content-Type", "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("Connection", "keep-alive")
	c.Response().Header().Set("Access-Control-Allow-Origin", "*")
	c.Response().Header().Del("Content-Length")

	c.Response().WriteHeader(http.StatusOK)
	c.Response().Flush()

	h.auditService.LogOperationEvent(audit.EventOperationStreamed, c.RealIP(), operationID, "", "", "", true, "", 0)

	// headers are already sent; a client disconnect just ends the stream
	_ = h.service.Stream(c.Request().Context(), operationID, c.Response())
	return nil
}

func operationIDParam(c echo.Context) (string, error) {
	operationID := c.Param("operationId")
	if operationID == "" {
		return "", errors.New("Operation ID is required")
	}
	if _, err := uuid.Parse(operationID); err != nil {
		return "", errors.New("Invalid operation ID format")
	}
	return operationID, nil
}
