package rest

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	jsoniter "github.com/json-iterator/go"
	log "github.com/sirupsen/logrus"
	"github.com/troydota/api.civic.komodohype.dev/auth"
	"github.com/troydota/api.civic.komodohype.dev/notifications"
	"github.com/troydota/api.civic.komodohype.dev/redis"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type notificationRoutes struct {
	tracker *notifications.Tracker
	hub     *redis.Hub
}

func (r *notificationRoutes) page(c *fiber.Ctx, unreadOnly bool) error {
	page, err := r.tracker.List(c.UserContext(), viewerOf(c).ID, notifications.ListOptions{
		Page:       int64(c.QueryInt("page", 1)),
		Limit:      int64(c.QueryInt("limit", notifications.DefaultLimit)),
		UnreadOnly: unreadOnly || c.QueryBool("unreadOnly"),
		Type:       c.Query("type"),
	})
	if err != nil {
		return err
	}
	return c.JSON(page)
}

func (r *notificationRoutes) list(c *fiber.Ctx) error {
	return r.page(c, false)
}

func (r *notificationRoutes) listUnread(c *fiber.Ctx) error {
	return r.page(c, true)
}

func (r *notificationRoutes) unreadCount(c *fiber.Ctx) error {
	n, err := r.tracker.UnreadCount(c.UserContext(), viewerOf(c).ID, c.Query("type"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"count": n})
}

func (r *notificationRoutes) markRead(c *fiber.Ctx) error {
	id, err := objectID(c, "id")
	if err != nil {
		return err
	}
	if err = r.tracker.MarkRead(c.UserContext(), id, viewerOf(c).ID); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": 200, "message": "Marked as read"})
}

func (r *notificationRoutes) markUnread(c *fiber.Ctx) error {
	id, err := objectID(c, "id")
	if err != nil {
		return err
	}
	if err = r.tracker.MarkUnread(c.UserContext(), id, viewerOf(c).ID); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": 200, "message": "Marked as unread"})
}

func (r *notificationRoutes) markAll(c *fiber.Ctx) error {
	n, err := r.tracker.MarkAllReadByFilter(c.UserContext(), viewerOf(c).ID, c.Query("type"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"updated": n})
}

func (r *notificationRoutes) delete(c *fiber.Ctx) error {
	id, err := objectID(c, "id")
	if err != nil {
		return err
	}
	if err = r.tracker.Delete(c.UserContext(), id, viewerOf(c).ID); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": 200, "message": "Notification deleted"})
}

func (r *notificationRoutes) deleteAllRead(c *fiber.Ctx) error {
	n, err := r.tracker.DeleteAllRead(c.UserContext(), viewerOf(c).ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"deleted": n})
}

type adminNoteRequest struct {
	Note string `json:"note"`
}

func (r *notificationRoutes) adminNote(c *fiber.Ctx) error {
	id, err := objectID(c, "id")
	if err != nil {
		return err
	}
	req := adminNoteRequest{}
	if err = parseBody(c, &req); err != nil {
		return err
	}
	n, err := r.tracker.SetAdminNote(c.UserContext(), viewerOf(c), id, req.Note)
	if err != nil {
		return err
	}
	return c.JSON(n)
}

func (r *notificationRoutes) upgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return c.SendStatus(fiber.StatusUpgradeRequired)
}

type unreadEvent struct {
	Event string `json:"event"`
	Count int64  `json:"count"`
}

// socket pushes the unread count on connect and again whenever the user's
// notifications change.
func (r *notificationRoutes) socket() fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		viewer, _ := c.Locals(viewerLocal).(auth.Viewer)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		mtx := &sync.Mutex{}
		write := func(data []byte) error {
			mtx.Lock()
			defer mtx.Unlock()
			return c.WriteMessage(websocket.TextMessage, data)
		}
		push := func() error {
			n, err := r.tracker.UnreadCount(ctx, viewer.ID, "")
			if err != nil {
				log.Errorf("unread count, err=%v", err)
				return nil
			}
			data, err := json.Marshal(unreadEvent{"unread", n})
			if err != nil {
				return err
			}
			return write(data)
		}

		if err := push(); err != nil {
			return
		}

		events := make(chan string, 16)
		if r.hub != nil {
			channel := redis.NotificationChannel(viewer.ID)
			if err := r.hub.Subscribe(ctx, channel, events); err != nil {
				log.Errorf("redis, err=%v", err)
				return
			}
			defer func() {
				if err := r.hub.Unsubscribe(context.Background(), channel, events); err != nil {
					log.Errorf("redis, err=%v", err)
				}
			}()
		}

		go func() {
			for {
				select {
				case <-time.After(60 * time.Second):
					if err := write([]byte("HEARTBEAT")); err != nil {
						cancel()
						return
					}
				case <-events:
					if err := push(); err != nil {
						cancel()
						return
					}
				case <-ctx.Done():
					return
				}
			}
		}()

		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	})
}
