package controller

import (
	"errors"

	"research-agent-be/internal/dto"
	"research-agent-be/internal/pkg/serverutils"
	"research-agent-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IResearchController interface {
	RegisterRoutes(r fiber.Router, sessionAuth fiber.Handler, stream fiber.Handler)
	CreateSession(ctx *fiber.Ctx) error
	ShowSession(ctx *fiber.Ctx) error
	EndSession(ctx *fiber.Ctx) error
	StartRun(ctx *fiber.Ctx) error
	ListFacts(ctx *fiber.Ctx) error
	SaveFact(ctx *fiber.Ctx) error
	ShowReport(ctx *fiber.Ctx) error
}

type researchController struct {
	researchService service.IResearchService
}

func NewResearchController(researchService service.IResearchService) IResearchController {
	return &researchController{
		researchService: researchService,
	}
}

func (c *researchController) RegisterRoutes(r fiber.Router, sessionAuth fiber.Handler, stream fiber.Handler) {
	h := r.Group("/research/v1")
	h.Post("sessions", c.CreateSession)

	s := h.Group("sessions/:id", sessionAuth)
	s.Get("", c.ShowSession)
	s.Delete("", c.EndSession)
	s.Post("runs", c.StartRun)
	s.Get("facts", c.ListFacts)
	s.Post("facts", c.SaveFact)
	s.Get("report", c.ShowReport)
	s.Get("ws", stream)
}

// sessionID is set by the session token middleware.
func sessionID(ctx *fiber.Ctx) uuid.UUID {
	id, _ := ctx.Locals("session_id").(uuid.UUID)
	return id
}

func (c *researchController) CreateSession(ctx *fiber.Ctx) error {
	res, err := c.researchService.CreateSession(ctx.UserContext())
	if err != nil {
		return err
	}
	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Session created", res))
}

func (c *researchController) ShowSession(ctx *fiber.Ctx) error {
	res, err := c.researchService.GetSession(ctx.UserContext(), sessionID(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success show session", res))
}

func (c *researchController) EndSession(ctx *fiber.Ctx) error {
	if err := c.researchService.EndSession(ctx.UserContext(), sessionID(ctx)); err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Session ended", nil))
}

// StartRun kicks off the workflow. ?wait=true blocks until the run ends.
func (c *researchController) StartRun(ctx *fiber.Ctx) error {
	var req dto.StartRunRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	wait := ctx.QueryBool("wait", false)
	res, err := c.researchService.StartRun(ctx.UserContext(), sessionID(ctx), &req, wait)
	if err != nil {
		return err
	}

	status := fiber.StatusAccepted
	if wait {
		status = fiber.StatusOK
	}
	return ctx.Status(status).JSON(serverutils.SuccessResponse("Research run started", res))
}

func (c *researchController) ListFacts(ctx *fiber.Ctx) error {
	facts, err := c.researchService.ListFacts(ctx.UserContext(), sessionID(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success list facts", facts))
}

func (c *researchController) SaveFact(ctx *fiber.Ctx) error {
	var req dto.SaveFactRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.researchService.SaveFact(ctx.UserContext(), sessionID(ctx), &req)
	if err != nil {
		return err
	}
	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse(res.Confirmation, res))
}

func (c *researchController) ShowReport(ctx *fiber.Ctx) error {
	report, err := c.researchService.GetReport(ctx.UserContext(), sessionID(ctx))
	if errors.Is(err, service.ErrReportNotReady) {
		return fiber.NewError(fiber.StatusNotFound, "The report is not ready yet")
	}
	if err != nil {
		return err
	}

	if ctx.QueryBool("download", false) {
		ctx.Attachment("research-report.json")
	}
	return ctx.JSON(report)
}
