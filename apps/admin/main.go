package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/user"
	logsvc "github.com/trezcool/shule/services/logger"
	mongodb "github.com/trezcool/shule/storage/database/mongo"
)

func main() {
	conf := core.NewConfig()
	std := log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(std, conf)

	ctx, cancel := context.WithTimeout(context.Background(), conf.Mongo.Timeout)
	client, db, err := mongodb.Open(ctx, conf)
	if err == nil {
		err = mongodb.EnsureIndexes(ctx, db)
	}
	cancel()
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	school.InitValidators(validate, translator)
	user.LoadCommonPasswords(logger)

	// start CLI
	cli := newCommandLine(
		user.NewService(mongodb.NewUserRepository(db)),
		school.NewService(mongodb.NewSchoolRepository(db)),
		validate,
	)
	err = cli.run(os.Args)
	_ = client.Disconnect(context.Background())
	if err != nil {
		if err != errHelp {
			std.Printf("\nerror: %s\n", describe(err, translator))
		}
		os.Exit(1)
	}
}

// describe renders validation errors field by field.
func describe(err error, translator ut.Translator) string {
	var msgs []string
	switch origErr := errors.Cause(err).(type) {
	case validator.ValidationErrors:
		for _, vErr := range origErr {
			msgs = append(msgs, vErr.Field()+": "+vErr.Translate(translator))
		}
	case *core.ValidationError:
		for _, fErr := range origErr.Fields {
			msgs = append(msgs, fErr.Field+": "+fErr.Error)
		}
	}
	if len(msgs) == 0 {
		return err.Error()
	}
	sort.Strings(msgs)
	return strings.Join(msgs, "; ")
}
