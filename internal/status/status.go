package status

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Progress is the batch's observable state, updated by the process driver and
// read by the status endpoint. Purely informational; nothing in the batch
// depends on it.
type Progress struct {
	startedAt  time.Time
	processed  atomic.Int64
	succeeded  atomic.Int64
	failed     atomic.Int64
	registered atomic.Int64

	mu      sync.Mutex
	current string
}

func NewProgress() *Progress {
	return &Progress{startedAt: time.Now()}
}

func (p *Progress) SetCurrent(wallet string) {
	p.mu.Lock()
	p.current = wallet
	p.mu.Unlock()
}

func (p *Progress) Record(success, registered bool) {
	p.processed.Add(1)
	if success {
		p.succeeded.Add(1)
	} else {
		p.failed.Add(1)
	}
	if registered {
		p.registered.Add(1)
	}
}

func (p *Progress) Processed() int64 { return p.processed.Load() }

func (p *Progress) snapshot() fiber.Map {
	p.mu.Lock()
	current := p.current
	p.mu.Unlock()
	return fiber.Map{
		"started_at": p.startedAt,
		"uptime":     time.Since(p.startedAt).String(),
		"processed":  p.processed.Load(),
		"succeeded":  p.succeeded.Load(),
		"failed":     p.failed.Load(),
		"registered": p.registered.Load(),
		"current":    current,
	}
}

// Serve runs the operator status endpoint until the listener dies. Failures
// are logged and otherwise ignored; the batch does not need this to run.
func Serve(port string, progress *Progress, log *zap.Logger) {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/progress", func(c *fiber.Ctx) error {
		return c.JSON(progress.snapshot())
	})

	log.Info("status endpoint listening", zap.String("port", port))
	if err := app.Listen(":" + port); err != nil {
		log.Warn("status endpoint stopped", zap.Error(err))
	}
}
