package exchange

import (
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/hl7bridge/hl7bridge/internal/hl7"
	"github.com/hl7bridge/hl7bridge/internal/platform/auth"
	"github.com/hl7bridge/hl7bridge/internal/platform/middleware"
	"github.com/hl7bridge/hl7bridge/pkg/pagination"
)

// ContentTypeHL7 is the media type for raw HL7 v2 request and response bodies.
const ContentTypeHL7 = "x-application/hl7-v2+er7"

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	role := auth.RequireRole("admin", "integration", "interface-analyst")

	read := api.Group("", role)
	read.GET("/messages", h.ListMessages)
	read.GET("/messages/:id", h.GetMessage)

	write := api.Group("", role)
	write.POST("/messages", h.IngestMessage)
	write.POST("/messages/parse", h.ParseMessage)
	write.POST("/messages/validate", h.ValidateMessage)
	write.POST("/messages/build/adt", h.BuildADT)
	write.POST("/messages/build/orm", h.BuildORM)
	write.POST("/messages/build/oru", h.BuildORU)
}

func readRawBody(c echo.Context) (string, error) {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return "", echo.NewHTTPError(http.StatusBadRequest, "failed to read request body")
	}
	if len(body) == 0 {
		return "", echo.NewHTTPError(http.StatusBadRequest, "request body is empty")
	}
	return string(body), nil
}

func setAuditContext(c echo.Context, messageType, controlID string) {
	c.Set(middleware.AuditMessageTypeKey, messageType)
	c.Set(middleware.AuditControlIDKey, controlID)
}

// IngestMessage accepts raw HL7 wire text, journals it, and returns the
// journal record with any parse warnings and validation errors. A message
// that parses but fails validation is still journaled and returns 422.
func (h *Handler) IngestMessage(c echo.Context) error {
	raw, err := readRawBody(c)
	if err != nil {
		return err
	}
	result, err := h.svc.Ingest(c.Request().Context(), raw)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	setAuditContext(c, result.Record.MessageType, result.Record.ControlID)
	if !result.Record.Valid() {
		return c.JSON(http.StatusUnprocessableEntity, result)
	}
	return c.JSON(http.StatusCreated, result)
}

type parseResponse struct {
	MessageType string      `json:"message_type"`
	ControlID   string      `json:"control_id"`
	Record      interface{} `json:"record"`
	Warnings    []string    `json:"warnings,omitempty"`
}

// ParseMessage decodes raw HL7 wire text into the typed record for its
// message family without journaling it.
func (h *Handler) ParseMessage(c echo.Context) error {
	raw, err := readRawBody(c)
	if err != nil {
		return err
	}
	msg, warnings, err := hl7.ParseMessage(raw)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	rec, err := hl7.ParseRecord(msg)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	typ, _ := msg.Type()
	setAuditContext(c, typ, msg.ControlID())
	return c.JSON(http.StatusOK, parseResponse{
		MessageType: typ,
		ControlID:   msg.ControlID(),
		Record:      rec,
		Warnings:    warnings,
	})
}

type validateResponse struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// ValidateMessage runs structural validation on raw HL7 wire text. Both
// outcomes return 200; the verdict is in the body.
func (h *Handler) ValidateMessage(c echo.Context) error {
	raw, err := readRawBody(c)
	if err != nil {
		return err
	}
	valid, errs, err := h.svc.Validate(raw)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, validateResponse{Valid: valid, Errors: errs})
}

type buildADTRequest struct {
	Event     string            `json:"event"`
	Patient   hl7.PatientInfo   `json:"patient"`
	Admission hl7.AdmissionData `json:"admission"`
}

func (h *Handler) BuildADT(c echo.Context) error {
	var req buildADTRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	rec, err := h.svc.BuildADT(c.Request().Context(), req.Event, req.Patient, req.Admission)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	setAuditContext(c, rec.MessageType, rec.ControlID)
	return c.JSON(http.StatusCreated, rec)
}

type buildORMRequest struct {
	Patient hl7.PatientInfo `json:"patient"`
	Order   hl7.OrderData   `json:"order"`
}

func (h *Handler) BuildORM(c echo.Context) error {
	var req buildORMRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	rec, err := h.svc.BuildORM(c.Request().Context(), req.Patient, req.Order)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	setAuditContext(c, rec.MessageType, rec.ControlID)
	return c.JSON(http.StatusCreated, rec)
}

type buildORURequest struct {
	Patient hl7.PatientInfo `json:"patient"`
	Result  hl7.ResultData  `json:"result"`
}

func (h *Handler) BuildORU(c echo.Context) error {
	var req buildORURequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	rec, err := h.svc.BuildORU(c.Request().Context(), req.Patient, req.Result)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	setAuditContext(c, rec.MessageType, rec.ControlID)
	return c.JSON(http.StatusCreated, rec)
}

func (h *Handler) GetMessage(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		// Fall back to control ID lookup for non-UUID identifiers.
		rec, lookupErr := h.svc.GetMessageByControlID(c.Request().Context(), c.Param("id"))
		if lookupErr != nil {
			return echo.NewHTTPError(http.StatusNotFound, "message not found")
		}
		setAuditContext(c, rec.MessageType, rec.ControlID)
		return h.respondMessage(c, rec)
	}
	rec, err := h.svc.GetMessage(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "message not found")
	}
	setAuditContext(c, rec.MessageType, rec.ControlID)
	return h.respondMessage(c, rec)
}

// respondMessage returns the journal record as JSON, or the raw wire text
// when the client asked for it via Accept.
func (h *Handler) respondMessage(c echo.Context, rec *MessageRecord) error {
	if c.Request().Header.Get("Accept") == ContentTypeHL7 {
		return c.Blob(http.StatusOK, ContentTypeHL7, []byte(rec.Raw))
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) ListMessages(c echo.Context) error {
	pg := pagination.FromContext(c)
	params := map[string]string{}
	for _, k := range []string{"type", "direction", "status", "patient"} {
		if v := c.QueryParam(k); v != "" {
			params[k] = v
		}
	}
	items, total, err := h.svc.ListMessages(c.Request().Context(), params, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}
