package rest

import (
	"github.com/gofiber/fiber/v2"
	"github.com/troydota/api.civic.komodohype.dev/alerts"
	"github.com/troydota/api.civic.komodohype.dev/announcements"
	"github.com/troydota/api.civic.komodohype.dev/mongo"
	"github.com/troydota/api.civic.komodohype.dev/reports"
)

type announcementRoutes struct {
	announcements *announcements.Service
}

func (r *announcementRoutes) create(c *fiber.Ctx) error {
	in := announcements.Input{}
	if err := parseBody(c, &in); err != nil {
		return err
	}
	a, err := r.announcements.Create(c.UserContext(), in, viewerOf(c))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(a)
}

func (r *announcementRoutes) list(c *fiber.Ctx) error {
	items, err := r.announcements.List(c.UserContext(), viewerOf(c), c.QueryBool("includeDeleted"))
	if err != nil {
		return err
	}
	return c.JSON(items)
}

func (r *announcementRoutes) get(c *fiber.Ctx) error {
	id, err := objectID(c, "id")
	if err != nil {
		return err
	}
	a, err := r.announcements.Get(c.UserContext(), id, viewerOf(c))
	if err != nil {
		return err
	}
	return c.JSON(a)
}

func (r *announcementRoutes) delete(c *fiber.Ctx) error {
	id, err := objectID(c, "id")
	if err != nil {
		return err
	}
	if err = r.announcements.Delete(c.UserContext(), id, viewerOf(c)); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": 200, "message": "Announcement deleted"})
}

type alertRoutes struct {
	alerts *alerts.Service
}

func (r *alertRoutes) send(c *fiber.Ctx) error {
	in := alerts.Input{}
	if err := parseBody(c, &in); err != nil {
		return err
	}
	a, err := r.alerts.Send(c.UserContext(), in, viewerOf(c))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(a)
}

func (r *alertRoutes) list(c *fiber.Ctx) error {
	items, err := r.alerts.List(c.UserContext(), viewerOf(c), int64(c.QueryInt("limit", 50)))
	if err != nil {
		return err
	}
	return c.JSON(items)
}

// registerCases mounts the same four routes for any case desk.
func registerCases[T any, P interface {
	*T
	Fields() *mongo.Case
}](g fiber.Router, desk *reports.Desk[T, P]) {
	g.Post("/", func(c *fiber.Ctx) error {
		item := new(T)
		if err := parseBody(c, item); err != nil {
			return err
		}
		created, err := desk.Create(c.UserContext(), item, viewerOf(c))
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(created)
	})

	g.Get("/", func(c *fiber.Ctx) error {
		items, err := desk.ListAll(c.UserContext(), viewerOf(c), c.Query("status"))
		if err != nil {
			return err
		}
		return c.JSON(items)
	})

	g.Get("/mine", func(c *fiber.Ctx) error {
		items, err := desk.ListMine(c.UserContext(), viewerOf(c))
		if err != nil {
			return err
		}
		return c.JSON(items)
	})

	g.Patch("/:id/status", func(c *fiber.Ctx) error {
		id, err := objectID(c, "id")
		if err != nil {
			return err
		}
		in := reports.StatusInput{}
		if err = parseBody(c, &in); err != nil {
			return err
		}
		item, err := desk.UpdateStatus(c.UserContext(), id, in, viewerOf(c))
		if err != nil {
			return err
		}
		return c.JSON(item)
	})
}
