// Package rest mounts the /v1 JSON routes.
package rest

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/troydota/api.civic.komodohype.dev/alerts"
	"github.com/troydota/api.civic.komodohype.dev/announcements"
	"github.com/troydota/api.civic.komodohype.dev/apierr"
	"github.com/troydota/api.civic.komodohype.dev/auth"
	"github.com/troydota/api.civic.komodohype.dev/notifications"
	"github.com/troydota/api.civic.komodohype.dev/polls"
	"github.com/troydota/api.civic.komodohype.dev/redis"
	"github.com/troydota/api.civic.komodohype.dev/reports"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/time/rate"
)

// Services is everything the routes call into. Hub may be nil, in which case the
// notification socket only sends the initial count. Limiter is shared by every vote
// entry point; when nil one is built from VoteLimit and VoteBurst.
type Services struct {
	Polls         *polls.Manager
	Notifications *notifications.Tracker
	Announcements *announcements.Service
	Alerts        *alerts.Service
	Incidents     *reports.Incidents
	Documents     *reports.Documents
	Hub           *redis.Hub

	Secret    []byte
	VoteLimit rate.Limit
	VoteBurst int
	Limiter   *VoteLimiter
}

const viewerLocal = "viewer"

// Authenticate resolves the bearer token into a viewer. Websocket clients cannot set
// headers, so a token query parameter is accepted too.
func Authenticate(secret []byte) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Query("token")
		if h := c.Get(fiber.HeaderAuthorization); h != "" {
			token = strings.TrimPrefix(h, "Bearer ")
		}
		if token == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "Missing bearer token")
		}

		viewer, err := auth.Parse(token, secret)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "Invalid bearer token")
		}

		c.Locals(viewerLocal, viewer)
		c.SetUserContext(auth.WithViewer(c.UserContext(), viewer))
		return c.Next()
	}
}

func viewerOf(c *fiber.Ctx) auth.Viewer {
	v, _ := c.Locals(viewerLocal).(auth.Viewer)
	return v
}

func objectID(c *fiber.Ctx, name string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(c.Params(name))
	if err != nil {
		return id, apierr.NotFound("We don't know what %s that is", name)
	}
	return id, nil
}

func parseBody(c *fiber.Ctx, out interface{}) error {
	if err := c.BodyParser(out); err != nil {
		return apierr.Validation("Invalid request body")
	}
	return nil
}

func Register(app fiber.Router, svc Services) {
	v1 := app.Group("/v1", Authenticate(svc.Secret))

	limiter := svc.Limiter
	if limiter == nil {
		limiter = NewVoteLimiter(svc.VoteLimit, svc.VoteBurst)
	}

	p := &pollRoutes{svc.Polls}
	v1.Post("/polls", p.create)
	v1.Get("/polls", p.list)
	v1.Get("/polls/:id", p.get)
	v1.Post("/polls/:id/vote", limiter.handler, p.vote)
	v1.Patch("/polls/:id", p.update)
	v1.Post("/polls/:id/close", p.close)
	v1.Delete("/polls/:id/permanent", p.permanentDelete)
	v1.Delete("/polls/:id", p.softDelete)
	v1.Post("/polls/:id/undo", p.undo)
	v1.Get("/polls/:id/results", p.results)

	n := &notificationRoutes{svc.Notifications, svc.Hub}
	v1.Get("/notifications", n.list)
	v1.Get("/notifications/unread", n.listUnread)
	v1.Get("/notifications/unread-count", n.unreadCount)
	v1.Get("/notifications/ws", n.upgrade, n.socket())
	v1.Patch("/notifications/read-all", n.markAll)
	v1.Delete("/notifications/read", n.deleteAllRead)
	v1.Patch("/notifications/:id/read", n.markRead)
	v1.Patch("/notifications/:id/unread", n.markUnread)
	v1.Patch("/notifications/:id/admin-note", n.adminNote)
	v1.Delete("/notifications/:id", n.delete)

	a := &announcementRoutes{svc.Announcements}
	v1.Post("/announcements", a.create)
	v1.Get("/announcements", a.list)
	v1.Get("/announcements/:id", a.get)
	v1.Delete("/announcements/:id", a.delete)

	s := &alertRoutes{svc.Alerts}
	v1.Post("/sms-alerts", s.send)
	v1.Get("/sms-alerts", s.list)

	registerCases(v1.Group("/incidents"), svc.Incidents)
	registerCases(v1.Group("/documents"), svc.Documents)
}
