package gql

import (
	"context"
	"sync"
	"time"

	"github.com/gobuffalo/packr/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/graph-gophers/graphql-go"
	jsoniter "github.com/json-iterator/go"
	"github.com/troydota/api.civic.komodohype.dev/auth"
	"github.com/troydota/api.civic.komodohype.dev/server/gql/resolvers"
	"github.com/troydota/api.civic.komodohype.dev/server/rest"
	"github.com/troydota/api.civic.komodohype.dev/utils"

	log "github.com/sirupsen/logrus"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type GQLRequest struct {
	Query          string                 `json:"query"`
	Variables      map[string]interface{} `json:"variables"`
	OperationName  string                 `json:"operation_name"`
	RequestID      string                 `json:"request_id"`
	SubscriptionID string                 `json:"subscription_id"`
}

type WSResponse struct {
	Payload        interface{} `json:"payload,omitempty"`
	Error          string      `json:"error,omitempty"`
	RequestID      string      `json:"request_id,omitempty"`
	SubscriptionID string      `json:"sub_id,omitempty"`
}

func GQL(app fiber.Router, svc rest.Services) {
	gql := app.Group("/gql", rest.Authenticate(svc.Secret))

	box := packr.New("gql", "./schema")

	s, err := box.FindString("schema.gql")
	if err != nil {
		panic(err)
	}

	schema := graphql.MustParseSchema(s, resolvers.New(svc.Polls, svc.Hub, svc.Limiter), graphql.UseFieldResolvers())

	gql.Use(func(c *fiber.Ctx) error {
		if c.Method() != fiber.MethodGet {
			return c.Next()
		}
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return c.SendStatus(fiber.StatusUpgradeRequired)
	})

	gql.Post("/", func(c *fiber.Ctx) error {
		req := &GQLRequest{}
		if err := c.BodyParser(req); err != nil {
			log.Errorf("gql req, err=%v", err)
			return c.Status(400).JSON(fiber.Map{
				"status":  400,
				"message": "Invalid GraphQL Request.",
			})
		}

		result := schema.Exec(c.UserContext(), req.Query, req.OperationName, req.Variables)

		status := 200
		if len(result.Errors) > 0 {
			status = 400
		}

		return c.Status(status).JSON(result)
	})

	gql.Get("/", websocket.New(func(c *websocket.Conn) {
		viewer, _ := c.Locals("viewer").(auth.Viewer)
		baseCtx := auth.WithViewer(context.Background(), viewer)

		closeChan := make(chan struct{})
		mtx := &sync.Mutex{}
		subs := map[string]context.CancelFunc{}

		write := func(resp WSResponse) bool {
			data, err := json.Marshal(resp)
			if err != nil {
				log.Errorf("json, err=%v", err)
				return true
			}
			mtx.Lock()
			defer mtx.Unlock()
			return c.WriteMessage(websocket.TextMessage, data) == nil
		}

		go func() {
			for {
				select {
				case <-time.After(60 * time.Second):
					mtx.Lock()
					err := c.WriteMessage(websocket.TextMessage, utils.S2B("HEARTBEAT"))
					mtx.Unlock()
					if err != nil {
						return
					}
				case <-closeChan:
					return
				}
			}
		}()
		defer func() {
			close(closeChan)
			mtx.Lock()
			for _, cancel := range subs {
				cancel()
			}
			mtx.Unlock()
		}()

		for {
			mt, msg, err := c.ReadMessage()
			if err != nil {
				break
			}
			if mt != websocket.TextMessage {
				continue
			}

			req := &GQLRequest{}
			if err = json.Unmarshal(msg, req); err != nil {
				if !write(WSResponse{Error: "invalid request"}) {
					break
				}
				continue
			}

			if req.SubscriptionID != "" && req.OperationName == "unsubscribe" {
				mtx.Lock()
				if cancel, ok := subs[req.SubscriptionID]; ok {
					cancel()
					delete(subs, req.SubscriptionID)
				}
				mtx.Unlock()
				continue
			}

			go subscribe(baseCtx, schema, req, mtx, subs, write)
		}
	}))
}

func subscribe(
	baseCtx context.Context,
	schema *graphql.Schema,
	req *GQLRequest,
	mtx *sync.Mutex,
	subs map[string]context.CancelFunc,
	write func(WSResponse) bool,
) {
	queryCtx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	result, err := schema.Subscribe(queryCtx, req.Query, req.OperationName, req.Variables)
	if err != nil {
		log.Errorf("gql, err=%v", err)
		write(WSResponse{Error: "invalid request", RequestID: req.RequestID})
		return
	}

	id, err := utils.GenerateRandomString(20)
	if err != nil {
		log.Errorf("random, err=%v", err)
		write(WSResponse{Error: "internal server err", RequestID: req.RequestID})
		return
	}

	mtx.Lock()
	subs[id] = cancel
	mtx.Unlock()
	defer func() {
		mtx.Lock()
		delete(subs, id)
		mtx.Unlock()
	}()

	for val := range result {
		if !write(WSResponse{Payload: val, RequestID: req.RequestID, SubscriptionID: id}) {
			return
		}
	}
}
