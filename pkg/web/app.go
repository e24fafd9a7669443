package web

import (
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

// NewApp builds the fiber application with every route mounted. The cmd
// entrypoint and the handler tests share this wiring.
func NewApp(handlers *APIHandlers) *fiber.App {
	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Converso API")
	})

	m := app.Group("/modules")
	m.Get("/", handlers.GetModules)
	m.Post("/", handlers.CreateModule)
	m.Get("/schemas", handlers.GetModuleSchemas)
	m.Get("/:refCode", handlers.GetModule)
	m.Patch("/:refCode", handlers.UpdateModule)
	m.Delete("/:refCode", handlers.DeleteModule)

	w := app.Group("/workflows")
	w.Get("/", handlers.GetWorkflows)
	w.Post("/", handlers.CreateWorkflow)
	w.Get("/:id", handlers.GetWorkflow)
	w.Patch("/:id", handlers.UpdateWorkflow)
	w.Delete("/:id", handlers.DeleteWorkflow)
	w.Post("/:id/activate", handlers.ActivateWorkflow)

	w.Get("/:id/steps", handlers.GetWorkflowSteps)
	w.Post("/:id/steps", handlers.CreateWorkflowStep)
	w.Patch("/:id/steps/:stepRef", handlers.UpdateWorkflowStep)
	w.Delete("/:id/steps/:stepRef", handlers.DeleteWorkflowStep)

	w.Get("/:id/outputs", handlers.GetWorkflowOutputs)
	w.Post("/:id/outputs", handlers.CreateWorkflowOutput)
	w.Delete("/:id/outputs/:outputId", handlers.DeleteWorkflowOutput)

	f := app.Group("/formats")
	f.Get("/", handlers.GetFormats)
	f.Post("/", handlers.SaveFormat)
	f.Get("/:code", handlers.GetFormat)
	f.Patch("/:code", handlers.SaveFormat)
	f.Delete("/:code", handlers.DeleteFormat)

	q := app.Group("/faqs")
	q.Get("/", handlers.GetFAQs)
	q.Post("/", handlers.SaveFAQ)
	q.Delete("/:id", handlers.DeleteFAQ)

	app.Post("/conversations/:conversantID/messages", handlers.PostConversationMessage)

	app.Get("/health", handlers.HealthCheck)

	return app
}
