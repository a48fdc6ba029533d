package server

import (
	"errors"
	"net"

	"github.com/davecgh/go-spew/spew"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/troydota/api.civic.komodohype.dev/apierr"
	"github.com/troydota/api.civic.komodohype.dev/configure"
	"github.com/troydota/api.civic.komodohype.dev/server/gql"
	"github.com/troydota/api.civic.komodohype.dev/server/rest"
	"github.com/troydota/api.civic.komodohype.dev/utils"

	log "github.com/sirupsen/logrus"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Server struct {
	app *fiber.App
	ln  net.Listener
}

type customLogger struct{}

func (*customLogger) Write(data []byte) (n int, err error) {
	log.Debugln(utils.B2S(data))
	return len(data), nil
}

// NewApp builds the fiber app with every route mounted.
func NewApp(svc rest.Services) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: errorHandler,
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
	})

	app.Use(recover.New())
	app.Use(cors.New())
	app.Use(requestid.New(requestid.Config{
		Generator: uuid.NewString,
	}))
	app.Use(logger.New(logger.Config{
		Format: "${pid} ${locals:requestid} ${status} - ${method} ${path}\n",
		Output: &customLogger{},
	}))

	if svc.Limiter == nil {
		svc.Limiter = rest.NewVoteLimiter(svc.VoteLimit, svc.VoteBurst)
	}
	rest.Register(app, svc)
	gql.GQL(app, svc)

	app.Use(func(c *fiber.Ctx) error {
		return c.Status(404).JSON(&fiber.Map{
			"status":  404,
			"message": "We don't know what you're looking for.",
		})
	})

	return app
}

func NewServer(svc rest.Services) (*Server, error) {
	ln, err := net.Listen(configure.Config.GetString("listener_network"), configure.Config.GetString("listener_address"))
	if err != nil {
		return nil, err
	}

	server := &Server{
		ln:  ln,
		app: NewApp(svc),
	}

	go func() {
		err = server.app.Listener(server.ln)
		if err != nil {
			log.Errorf("failed to start http server, err=%v", err)
		}
	}()

	return server, nil
}

// errorHandler renders every error as {"status", "message"}. Unclassified errors are
// reported with their raw message.
func errorHandler(c *fiber.Ctx, err error) error {
	status := apierr.Status(err)

	var fe *fiber.Error
	if errors.As(err, &fe) {
		status = fe.Code
	} else if status == fiber.StatusInternalServerError {
		log.Errorf("internal err=%v", spew.Sdump(err))
	}

	return c.Status(status).JSON(fiber.Map{
		"status":  status,
		"message": err.Error(),
	})
}

func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
