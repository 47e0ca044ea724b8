package handler

import (
	"errors"

	"github.com/akoskissak/soa-team-5/internal/domain"
	"github.com/akoskissak/soa-team-5/internal/repository"
	"github.com/akoskissak/soa-team-5/internal/service"
	"github.com/akoskissak/soa-team-5/pkg/mylogger"
	"github.com/akoskissak/soa-team-5/pkg/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type addItemRequest struct {
	TourID   string  `json:"tour_id" validate:"required"`
	TourName string  `json:"tour_name" validate:"required"`
	Price    float64 `json:"price" validate:"gt=0"`
}

type CartHandler struct {
	service  service.CartService
	logger   *zap.Logger
	validate *validator.Validate
}

func NewCartHandler(service service.CartService, logger *zap.Logger) *CartHandler {
	return &CartHandler{
		service:  service,
		logger:   logger,
		validate: validator.New(),
	}
}

func (h *CartHandler) Create(c *fiber.Ctx) error {
	touristID := c.Params("touristId")

	cart, err := h.service.CreateCart(c.UserContext(), touristID)
	if err != nil {
		mylogger.Warn(
			c.UserContext(),
			h.logger,
			"create cart failed",
			zap.String("tourist_id", touristID),
			zap.Error(err),
		)

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal error",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(cart)
}

func (h *CartHandler) Get(c *fiber.Ctx) error {
	touristID := c.Params("touristId")

	cart, err := h.service.GetCart(c.UserContext(), touristID)
	if err != nil {
		if errors.Is(err, repository.ErrCartNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "shopping cart not found",
			})
		}

		mylogger.Warn(
			c.UserContext(),
			h.logger,
			"get cart failed",
			zap.String("tourist_id", touristID),
			zap.Error(err),
		)

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal error",
		})
	}

	return c.JSON(cart)
}

func (h *CartHandler) AddItem(c *fiber.Ctx) error {
	touristID := c.Params("touristId")

	input := new(addItemRequest)
	if err := c.BodyParser(input); err != nil {
		h.logger.Warn(
			"failed to parse body in add item",
			zap.Error(err),
		)

		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "error parsing body",
		})
	}

	if err := h.validate.Struct(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"errors": utils.FormatValidationError(err),
		})
	}

	cart, err := h.service.AddItem(c.UserContext(), touristID, domain.OrderItem{
		TourID:   input.TourID,
		TourName: input.TourName,
		Price:    input.Price,
	})
	if err != nil {
		if errors.Is(err, repository.ErrCartNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "shopping cart not found",
			})
		}

		mylogger.Warn(
			c.UserContext(),
			h.logger,
			"add item failed",
			zap.String("tourist_id", touristID),
			zap.Error(err),
		)

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal error",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(cart)
}

func (h *CartHandler) RemoveItem(c *fiber.Ctx) error {
	touristID := c.Params("touristId")

	itemID, err := c.ParamsInt("itemId")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid item id",
		})
	}

	cart, err := h.service.RemoveItem(c.UserContext(), touristID, int64(itemID))
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrCartNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "shopping cart not found",
			})
		case errors.Is(err, repository.ErrItemNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "order item not found",
			})
		}

		mylogger.Warn(
			c.UserContext(),
			h.logger,
			"remove item failed",
			zap.String("tourist_id", touristID),
			zap.Error(err),
		)

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal error",
		})
	}

	return c.JSON(cart)
}
