package handler

import (
	"errors"

	"github.com/akoskissak/soa-team-5/internal/repository"
	"github.com/akoskissak/soa-team-5/internal/saga"
	"github.com/akoskissak/soa-team-5/internal/service"
	"github.com/akoskissak/soa-team-5/pkg/mylogger"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type CheckoutHandler struct {
	service service.CheckoutService
	logger  *zap.Logger
}

func NewCheckoutHandler(service service.CheckoutService, logger *zap.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		service: service,
		logger:  logger,
	}
}

func (h *CheckoutHandler) Checkout(c *fiber.Ctx) error {
	touristID := c.Params("touristId")

	tokens, err := h.service.Checkout(c.UserContext(), touristID)
	if err != nil {
		return h.checkoutError(c, touristID, err)
	}

	mylogger.Info(
		c.UserContext(),
		h.logger,
		"checkout succeeded",
		zap.String("tourist_id", touristID),
		zap.Int("token_count", len(tokens)),
	)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"status": "success",
		"tokens": tokens,
	})
}

func (h *CheckoutHandler) History(c *fiber.Ctx) error {
	touristID := c.Params("touristId")

	tokens, err := h.service.History(c.UserContext(), touristID)
	if err != nil {
		mylogger.Warn(
			c.UserContext(),
			h.logger,
			"purchase history failed",
			zap.String("tourist_id", touristID),
			zap.Error(err),
		)

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal error",
		})
	}

	return c.JSON(fiber.Map{
		"tokens": tokens,
	})
}

func (h *CheckoutHandler) checkoutError(c *fiber.Ctx, touristID string, err error) error {
	var compErr *saga.CompensationError

	httpCode := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrEmptyCart):
		httpCode = fiber.StatusBadRequest
	case errors.Is(err, repository.ErrCartNotFound):
		httpCode = fiber.StatusNotFound
	case errors.Is(err, repository.ErrDuplicateToken):
		httpCode = fiber.StatusConflict
	case errors.Is(err, saga.ErrCheckoutInProgress):
		httpCode = fiber.StatusConflict
	case errors.Is(err, saga.ErrDebitFailed):
		httpCode = fiber.StatusPaymentRequired
	case errors.Is(err, saga.ErrCheckoutTimeout):
		httpCode = fiber.StatusGatewayTimeout
	case errors.As(err, &compErr):
		httpCode = fiber.StatusInternalServerError
	}

	mylogger.Warn(
		c.UserContext(),
		h.logger,
		"checkout failed",
		zap.String("tourist_id", touristID),
		zap.Int("http_code", httpCode),
		zap.Error(err),
	)

	return c.Status(httpCode).JSON(fiber.Map{
		"error": err.Error(),
	})
}
