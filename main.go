package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/troydota/api.civic.komodohype.dev/alerts"
	"github.com/troydota/api.civic.komodohype.dev/announcements"
	"github.com/troydota/api.civic.komodohype.dev/configure"
	"github.com/troydota/api.civic.komodohype.dev/mongo"
	"github.com/troydota/api.civic.komodohype.dev/notifications"
	"github.com/troydota/api.civic.komodohype.dev/polls"
	"github.com/troydota/api.civic.komodohype.dev/redis"
	"github.com/troydota/api.civic.komodohype.dev/reports"
	"github.com/troydota/api.civic.komodohype.dev/server"
	"github.com/troydota/api.civic.komodohype.dev/server/rest"
	"golang.org/x/time/rate"
)

func main() {
	log.Infoln("Application Starting...")

	cfg := configure.Load(os.Args[1:])

	configCode := cfg.ExitCode
	if configCode > 125 || configCode < 0 {
		log.Warnf("Invalid exit code specified in config (%v), using 0 as new exit code.", configCode)
		configCode = 0
	}

	if cfg.JWTSecret == "" {
		log.Fatalln("jwt_secret is not set")
	}

	ctx := context.Background()

	mongoClient, db, err := mongo.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		log.Fatalf("mongo, err=%v", err)
	}

	redisClient, err := redis.NewClient(ctx, cfg.RedisURI)
	if err != nil {
		log.Fatalf("redis, err=%v", err)
	}
	hub := redis.NewHub(ctx, redisClient)
	events := redis.NewEvents(redisClient)

	pollStore := mongo.NewPollStore(db)
	users := mongo.NewUserStore(db)
	tracker := notifications.New(mongo.NewNotificationStore(db), users, pollStore, events)

	s, err := server.NewServer(rest.Services{
		Polls:         polls.New(pollStore, tracker, events),
		Notifications: tracker,
		Announcements: announcements.New(mongo.NewAnnouncementStore(db), tracker),
		Alerts:        alerts.New(mongo.NewSMSAlertStore(db), alerts.LogGateway{}, users, tracker),
		Incidents:     reports.NewIncidents(mongo.NewIncidentStore(db), tracker),
		Documents:     reports.NewDocuments(mongo.NewDocumentStore(db), tracker),
		Hub:           hub,
		Secret:        []byte(cfg.JWTSecret),
		VoteLimit:     rate.Limit(cfg.VoteRateLimit),
		VoteBurst:     cfg.VoteRateBurst,
	})
	if err != nil {
		log.Fatalf("server, err=%v", err)
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		sig := <-c
		log.Infof("sig=%v, gracefully shutting down...", sig)
		start := time.Now().UnixNano()

		wg := sync.WaitGroup{}
		wg.Add(3)

		go func() {
			defer wg.Done()
			if err := s.Shutdown(); err != nil {
				log.Errorf("server, shutdown=%v", err)
			}
		}()

		go func() {
			defer wg.Done()
			if err := hub.Close(); err != nil {
				log.Errorf("redis, shutdown=%v", err)
			}
			if err := redisClient.Close(); err != nil {
				log.Errorf("redis, shutdown=%v", err)
			}
		}()

		go func() {
			defer wg.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := mongoClient.Disconnect(shutdownCtx); err != nil {
				log.Errorf("mongo, shutdown=%v", err)
			}
		}()

		wg.Wait()

		log.Infof("Shutdown took, %.2fms", float64(time.Now().UnixNano()-start)/10e5)
		os.Exit(configCode)
	}()

	log.Infoln("Application Started.")

	select {}
}
