package main

import (
	"fmt"
	"log"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/roster/core"
	"github.com/trezcool/roster/core/importer"
	"github.com/trezcool/roster/core/school"
	logsvc "github.com/trezcool/roster/services/logger"
	"github.com/trezcool/roster/storage"
)

func main() {
	conf := core.NewConfig()

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	// set up DB; migrations are run explicitly with `admin migrate`
	store, err := storage.Open(conf, false /* migrate */)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	school.InitValidators(validate, translator)

	importSvc, err := importer.NewService(importer.Deps{
		Conf:       conf,
		Logger:     logger,
		Repos:      store.Repos,
		Reports:    store.Reports,
		Validate:   validate,
		Translator: translator,
	})
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up import service: %v", err), err)
	}

	// start CLI
	cli := commandLine{
		conf:      conf,
		schoolSvc: school.NewService(store.Repos, validate, translator),
		importSvc: importSvc,
		out:       os.Stdout,
	}
	if store.DB != nil {
		cli.db = store.DB.DB
	}

	err = cli.run(os.Args)
	if cErr := store.Close(); cErr != nil {
		logger.Error(fmt.Sprintf("closing database: %v", cErr), cErr)
	}
	if err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("error: %v", err), err)
		}
		os.Exit(1)
	}
}
