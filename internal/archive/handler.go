package archive

import (
	"context"
	"errors"

	"github.com/tech-arch1tect/ziphub/internal/audit"
	"github.com/tech-arch1tect/ziphub/internal/common"

	"github.com/labstack/echo/v4"
)

type PathRequest struct {
	SourcePath string `json:"source_path"`
}

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

// Compress runs synchronously and answers with the terminal result. Progress
// for callers that want it is available through the operations endpoints.
func (h *Handler) Compress(c echo.Context) error {
	return h.run(c, KindCompress)
}

func (h *Handler) Extract(c echo.Context) error {
	return h.run(c, KindExtract)
}

func (h *Handler) run(c echo.Context, kind Kind) error {
	var req PathRequest
	if err := c.Bind(&req); err != nil {
		return common.SendBadRequest(c, "Invalid request format")
	}

	opReq := OperationRequest{SourcePath: req.SourcePath, Kind: kind}
	if err := ValidateRequest(opReq); err != nil {
		if errors.Is(err, ErrInvalidRequest) && req.SourcePath == "" {
			return common.SendBadRequest(c, "source path is required (interactive selection is handled by the client)")
		}
		return common.SendBadRequest(c, err.Error())
	}

	// a client that hangs up must not abort a half-written archive
	result := h.service.Run(context.WithoutCancel(c.Request().Context()), opReq, nil)

	eventType := audit.EventOperationCompleted
	failureReason := ""
	if !result.Success {
		eventType = audit.EventOperationFailed
		failureReason = result.Message
	}
	h.auditService.LogOperationEvent(eventType, c.RealIP(), "", string(kind), req.SourcePath, result.OutputPath, result.Success, failureReason, 0)

	return common.SendSuccess(c, result)
}

func (h *Handler) Preview(c echo.Context) error {
	path := c.QueryParam("path")
	if path == "" {
		return common.SendBadRequest(c, "path query parameter is required")
	}

	result := h.service.Preview(c.Request().Context(), path)
	h.auditService.LogPreviewEvent(c.RealIP(), path, result.Success, result.Message, len(result.Files))

	return common.SendSuccess(c, result)
}
