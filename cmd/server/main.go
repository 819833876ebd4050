package main

import (
	"github.com/irt-labs/studygraph/internal/server"
	"github.com/irt-labs/studygraph/internal/util"
	"github.com/irt-labs/studygraph/pkg/logger"
	"github.com/irt-labs/studygraph/pkg/logger/console"

	_ "github.com/lib/pq"
)

func main() {
	util.LoadEnv()

	debug := util.GetEnvBool("DEBUG", false)

	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: debug,
	})
	logger.Init(consoleLogger)

	server.Init()
}
