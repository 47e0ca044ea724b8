package http

import (
	"github.com/akoskissak/soa-team-5/internal/transport/http/handler"
	"github.com/akoskissak/soa-team-5/pkg/metrics"
	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Cart     *handler.CartHandler
	Checkout *handler.CheckoutHandler
}

func RegisterRoutes(app *fiber.App, h *Handlers) {
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	api := app.Group("/api")

	cart := api.Group("/shopping-cart/:touristId")
	cart.Post("", h.Cart.Create)
	cart.Get("", h.Cart.Get)
	cart.Post("/items", h.Cart.AddItem)
	cart.Delete("/items/:itemId", h.Cart.RemoveItem)
	cart.Post("/checkout", h.Checkout.Checkout)

	api.Get("/purchase-tokens/:touristId", h.Checkout.History)
}
