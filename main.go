package main

import (
	"github.com/wfunc/onoro/config"
	"github.com/wfunc/onoro/logger"
	"github.com/wfunc/onoro/monitor"
	"github.com/wfunc/onoro/persistence"
	"github.com/wfunc/onoro/rpc"
	"github.com/wfunc/onoro/server"
	"github.com/wfunc/onoro/services"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		panic("failed to load configuration: " + err.Error())
	}

	// Initialize logger
	logger.Init(cfg.Socket.Verbose)

	// Initialize Database (optional)
	var db persistence.Database
	if cfg.Database.Enabled {
		pg := cfg.Database.Postgres
		switch cfg.Database.Driver {
		case "postgres":
			db, err = persistence.NewPostgreSQL(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
		default:
			db, err = persistence.NewGormPostgreSQL(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
		}
		if err != nil {
			logger.Log.Fatalf("Failed to connect to database: %v", err)
		}
		logger.Log.Info("Database connection successful.")
	}

	// Initialize monitoring
	mon := monitor.NewMonitor("onoro")
	mon.StartServer(cfg.Server.MetricsAddress)

	// Initialize services and the game server
	gameService := services.NewGameService(db, logger.Log)
	gameServer := server.NewGameServer(cfg.Server, cfg.Socket, gameService, mon)

	// Initialize the ops RPC server
	rpcServer, err := rpc.NewServer(cfg.Server.RPCAddress)
	if err != nil {
		logger.Log.Fatalf("Failed to create RPC server: %v", err)
	}
	rpc.Register(rpc.NewStatsService(gameService, gameServer.SessionManager()))
	go rpcServer.Start()
	defer rpcServer.Stop()

	// Start Server
	logger.Log.Infof("Starting game server on %s", cfg.Server.HTTPAddress)
	if err := gameServer.Start(); err != nil {
		logger.Log.Fatalf("Failed to start server: %v", err)
	}
}
