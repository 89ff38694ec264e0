package ops

import (
	"github.com/gofiber/fiber/v2"
	fiberLogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/SzSimonSun/smart-exam-mvp/internal/queue"
	"github.com/SzSimonSun/smart-exam-mvp/internal/task"
)

// NewServer 创建运维接口服务：健康检查与队列积压统计
func NewServer(appName string, broker queue.Broker) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               appName,
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(fiberLogger.New())

	// 健康检查
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"app":    appName,
		})
	})

	// 队列积压统计
	app.Get("/stats/queues", func(c *fiber.Ctx) error {
		stats := make([]*queue.Stats, 0, 3)
		for _, t := range []task.Type{task.TypeRecognize, task.TypeGrade, task.TypeIngest} {
			s, err := broker.Stats(c.UserContext(), t)
			if err != nil {
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
					"error": err.Error(),
				})
			}
			stats = append(stats, s)
		}
		return c.JSON(fiber.Map{
			"queues": stats,
		})
	})

	return app
}
