package rest

import (
	"github.com/gofiber/fiber/v2"
	"github.com/troydota/api.civic.komodohype.dev/mongo"
	"github.com/troydota/api.civic.komodohype.dev/polls"
)

type pollRoutes struct {
	polls *polls.Manager
}

func (r *pollRoutes) create(c *fiber.Ctx) error {
	in := polls.CreateInput{}
	if err := parseBody(c, &in); err != nil {
		return err
	}
	v, err := r.polls.Create(c.UserContext(), in, viewerOf(c))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(v)
}

func (r *pollRoutes) list(c *fiber.Ctx) error {
	views, err := r.polls.List(c.UserContext(), viewerOf(c), polls.ListOptions{
		Status:         mongo.PollStatus(c.Query("status")),
		ExcludeDeleted: c.QueryBool("excludeDeleted"),
	})
	if err != nil {
		return err
	}
	return c.JSON(views)
}

func (r *pollRoutes) get(c *fiber.Ctx) error {
	id, err := objectID(c, "id")
	if err != nil {
		return err
	}
	v, err := r.polls.Get(c.UserContext(), id, viewerOf(c))
	if err != nil {
		return err
	}
	return c.JSON(v)
}

type voteRequest struct {
	Answers []polls.Answer `json:"answers"`
}

func (r *pollRoutes) vote(c *fiber.Ctx) error {
	id, err := objectID(c, "id")
	if err != nil {
		return err
	}
	req := voteRequest{}
	if err = parseBody(c, &req); err != nil {
		return err
	}
	v, err := r.polls.Vote(c.UserContext(), id, viewerOf(c), req.Answers)
	if err != nil {
		return err
	}
	return c.JSON(v)
}

func (r *pollRoutes) update(c *fiber.Ctx) error {
	id, err := objectID(c, "id")
	if err != nil {
		return err
	}
	in := polls.UpdateInput{}
	if err = parseBody(c, &in); err != nil {
		return err
	}
	v, err := r.polls.Update(c.UserContext(), id, in, viewerOf(c))
	if err != nil {
		return err
	}
	return c.JSON(v)
}

func (r *pollRoutes) close(c *fiber.Ctx) error {
	id, err := objectID(c, "id")
	if err != nil {
		return err
	}
	v, err := r.polls.Close(c.UserContext(), id, viewerOf(c))
	if err != nil {
		return err
	}
	return c.JSON(v)
}

func (r *pollRoutes) softDelete(c *fiber.Ctx) error {
	id, err := objectID(c, "id")
	if err != nil {
		return err
	}
	if err = r.polls.SoftDelete(c.UserContext(), id, viewerOf(c)); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": 200, "message": "Poll deleted"})
}

func (r *pollRoutes) undo(c *fiber.Ctx) error {
	id, err := objectID(c, "id")
	if err != nil {
		return err
	}
	if err = r.polls.Undo(c.UserContext(), id, viewerOf(c)); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": 200, "message": "Poll restored"})
}

func (r *pollRoutes) permanentDelete(c *fiber.Ctx) error {
	id, err := objectID(c, "id")
	if err != nil {
		return err
	}
	if err = r.polls.PermanentDelete(c.UserContext(), id, viewerOf(c)); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": 200, "message": "Poll permanently deleted"})
}

func (r *pollRoutes) results(c *fiber.Ctx) error {
	id, err := objectID(c, "id")
	if err != nil {
		return err
	}
	res, err := r.polls.Results(c.UserContext(), id, viewerOf(c))
	if err != nil {
		return err
	}
	return c.JSON(res)
}
