package main

import (
	"github.com/graphloom/loom/internal/server"
	"github.com/graphloom/loom/internal/util"
	"github.com/graphloom/loom/pkg/logger"
	"github.com/graphloom/loom/pkg/logger/console"

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
