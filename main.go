package main

import (
	"crudconsole/logger"
	"crudconsole/server"
	"crudconsole/utils"
	"log"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
)

type OptsDesc struct {
	prmsCnt int
	handler func(p []string) error
}

func init() {
	logger.SetOut(os.Stdout)

	appConfig := utils.GetConfig()
	if err := logger.SetLevel(appConfig.LogLevel); err != nil {
		logger.SetLevel("info")
	}
	log.Printf("The logger is initialized: level: '%s', output: '%s'.\n", logger.GetLevel(), "stdout")

	if len(appConfig.SentryDsn) > 0 {
		if err := sentry.Init(sentry.ClientOptions{Dsn: appConfig.SentryDsn}); err != nil {
			logger.Error("Sentry initialization failed: %s", err.Error())
		}
	}
}

//Main function runs the console server. The following options are avaliable:
// -a - address to use. Default value is empty.
// -p - port to use. Default value is 8080.
// -r - path root to use. Default value is URL_PREFIX or "/console".
func main() {
	appConfig := utils.GetConfig()

	//instantiate Server with default configuration
	var srv = server.New("", "8080", appConfig.UrlPrefix)

	//apply command-line-specified options if there are some
	var opts = map[string]OptsDesc{
		"-a": {1, func(p []string) error {
			srv.SetAddr(p[0])
			return nil
		}},
		"-p": {1, func(p []string) error {
			srv.SetPort(p[0])
			return nil
		}},
		"-r": {1, func(p []string) error {
			srv.SetRoot(p[0])
			return nil
		}},
	}

	args := os.Args[1:]
	for len(args) > 0 {
		if v, e := opts[args[0]]; e && len(args)-1 >= v.prmsCnt {
			if err := v.handler(args[1 : v.prmsCnt+1]); err != nil {
				log.Fatalln(err)
			}
			args = args[1+v.prmsCnt:]
		} else {
			log.Fatalf("Wrong argument '%s'", args[0])
		}
	}

	defer sentry.Flush(2 * time.Second)
	defer srv.Close()

	log.Println("Console server started.")
	if err := srv.Setup(appConfig).ListenAndServe(); err != nil {
		logger.Error("Console server stopped: %s", err.Error())
	}
}
