package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	echoapi "github.com/trezcool/shule/apps/api/echo"
	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/auth"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/user"
	emailsvc "github.com/trezcool/shule/services/email"
	logsvc "github.com/trezcool/shule/services/logger"
	rediscache "github.com/trezcool/shule/storage/cache/redis"
	mongodb "github.com/trezcool/shule/storage/database/mongo"
)

func main() {
	if err := run(); err != nil {
		log.Printf("API : error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)

	ctx, cancel := context.WithTimeout(context.Background(), conf.Mongo.Timeout)
	defer cancel()

	// set up DB
	mongoClient, db, err := mongodb.Open(ctx, conf)
	if err != nil {
		return errors.Wrap(err, "setting up database")
	}
	defer func() {
		if err := mongoClient.Disconnect(context.Background()); err != nil {
			dbLogger.Error("failed to disconnect", err)
		}
	}()
	if err = mongodb.EnsureIndexes(ctx, db); err != nil {
		return errors.Wrap(err, "creating indexes")
	}

	// set up session store
	redisClient, err := rediscache.Open(ctx, conf)
	if err != nil {
		return errors.Wrap(err, "setting up redis")
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			dbLogger.Error("failed to close redis", err)
		}
	}()

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	school.InitValidators(validate, translator)
	auth.InitValidators(validate, translator)

	authSvc := auth.NewService(auth.Deps{
		Conf:     conf,
		Logger:   logger,
		Users:    user.NewService(mongodb.NewUserRepository(db)),
		Schools:  school.NewService(mongodb.NewSchoolRepository(db)),
		Sessions: rediscache.NewSessionStore(redisClient, conf.Session.KeyPrefix),
		MailSvc:  mailSvc,
		Validate: validate,
	})

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	core.ParseEmailTemplates(conf, logger)
	user.LoadCommonPasswords(logger)

	server := echoapi.NewServer(echoapi.ServerDeps{
		Conf:       conf,
		Logger:     logger,
		AuthSvc:    authSvc,
		Validate:   validate,
		Translator: translator,
	})

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.
	// /metrics - Auth counters & runtime metrics.

	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	http.Handle("/metrics", server.MetricsHandler())

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	go server.Start()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		return errors.Wrap(err, "server error")

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)
			if err = server.Close(); err != nil {
				return errors.Wrap(err, "could not force stop server")
			}
		}
	}
	return nil
}
