package workspace

import (
	"os"
	"path/filepath"
	"time"

	"github.com/gofiber/fiber/v2"
	auth "github.com/goliatone/go-miniapp-auth"
	"github.com/google/uuid"
)

const (
	textCodeInvalidPayload = "invalid_payload"
	textCodeFileRequired   = "file required"
	textCodeInternal       = "internal_error"
)

// Controller serves the workspace API. Every route it registers sits
// behind the session guard handed to RegisterRoutes.
type Controller struct {
	store      *Store
	uploadDir  string
	contextKey string
	logger     auth.Logger
	now        func() time.Time
}

type ControllerOption func(*Controller)

func WithUploadDir(dir string) ControllerOption {
	return func(c *Controller) {
		if dir != "" {
			c.uploadDir = dir
		}
	}
}

func WithLogger(logger auth.Logger) ControllerOption {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithContextKey(key string) ControllerOption {
	return func(c *Controller) {
		if key != "" {
			c.contextKey = key
		}
	}
}

func NewController(store *Store, opts ...ControllerOption) *Controller {
	c := &Controller{
		store:      store,
		uploadDir:  "uploads",
		contextKey: auth.DefaultContextKey,
		logger:     auth.DefaultLogger(),
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// RegisterRoutes mounts the workspace API, each route behind guard
func (h *Controller) RegisterRoutes(r fiber.Router, guard fiber.Handler) {
	r.Get("/api/crm/clients", guard, h.ListClients)
	r.Post("/api/crm/clients", guard, h.CreateClient)

	r.Get("/api/tasks", guard, h.ListTasks)
	r.Post("/api/tasks", guard, h.CreateTask)

	r.Post("/api/import/upload", guard, h.Upload)

	r.Get("/api/crypto/portfolio", guard, h.Portfolio)
	r.Get("/api/news/feed", guard, h.NewsFeed)
}

func (h *Controller) ListClients(c *fiber.Ctx) error {
	records, err := h.store.ListClients(c.UserContext())
	if err != nil {
		h.logger.Error("list clients: %v", err)
		return internalError(c)
	}
	return c.JSON(records)
}

func (h *Controller) CreateClient(c *fiber.Ctx) error {
	payload := ClientPayload{}
	if err := c.BodyParser(&payload); err != nil {
		return invalidPayload(c)
	}
	if err := payload.Validate(); err != nil {
		return invalidPayload(c)
	}

	now := h.now().UTC()
	id, err := h.store.CreateClient(c.UserContext(), &Client{
		Name:      payload.Name,
		Stage:     payload.Stage,
		Owner:     payload.Owner,
		Value:     string(payload.Value),
		CreatedBy: h.callerID(c),
		CreatedAt: &now,
	})
	if err != nil {
		h.logger.Error("create client: %v", err)
		return internalError(c)
	}

	return c.JSON(fiber.Map{"id": id})
}

func (h *Controller) ListTasks(c *fiber.Ctx) error {
	records, err := h.store.ListTasks(c.UserContext())
	if err != nil {
		h.logger.Error("list tasks: %v", err)
		return internalError(c)
	}
	return c.JSON(records)
}

func (h *Controller) CreateTask(c *fiber.Ctx) error {
	payload := TaskPayload{}
	if err := c.BodyParser(&payload); err != nil {
		return invalidPayload(c)
	}
	if err := payload.Validate(); err != nil {
		return invalidPayload(c)
	}

	id, err := h.store.CreateTask(c.UserContext(), &Task{
		Title:     payload.Title,
		Tag:       payload.Tag,
		Due:       payload.Due,
		Status:    payload.Status,
		CreatedBy: h.callerID(c),
	})
	if err != nil {
		h.logger.Error("create task: %v", err)
		return internalError(c)
	}

	return c.JSON(fiber.Map{"id": id})
}

// Upload stores the multipart file field under a random name
func (h *Controller) Upload(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(auth.ErrorResponse{Error: textCodeFileRequired})
	}

	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		h.logger.Error("upload dir: %v", err)
		return internalError(c)
	}

	name := uuid.NewString()
	if err := c.SaveFile(file, filepath.Join(h.uploadDir, name)); err != nil {
		h.logger.Error("save upload: %v", err)
		return internalError(c)
	}

	h.logger.Info("import file %q stored as %s by %s", file.Filename, name, h.callerID(c))

	return c.JSON(fiber.Map{"ok": true, "file": name})
}

func (h *Controller) Portfolio(c *fiber.Ctx) error {
	return c.JSON([]Quote{
		{Symbol: "BTC", Price: 62100, Change: 2.1},
		{Symbol: "ETH", Price: 3250, Change: -0.8},
	})
}

func (h *Controller) NewsFeed(c *fiber.Ctx) error {
	return c.JSON([]NewsItem{
		{
			ID:     1,
			Title:  "Official announcement",
			Source: "Company Blog",
			TS:     h.now().Add(-5 * time.Minute).UnixMilli(),
		},
	})
}

func (h *Controller) callerID(c *fiber.Ctx) string {
	if claims, ok := auth.GetFiberClaims(c, h.contextKey); ok {
		return claims.UserID()
	}
	return ""
}

func invalidPayload(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(auth.ErrorResponse{Error: textCodeInvalidPayload})
}

func internalError(c *fiber.Ctx) error {
	return c.Status(fiber.StatusInternalServerError).JSON(auth.ErrorResponse{Error: textCodeInternal})
}
