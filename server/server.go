package server

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/wfunc/onoro/broadcast"
	"github.com/wfunc/onoro/config"
	"github.com/wfunc/onoro/game"
	"github.com/wfunc/onoro/logger"
	"github.com/wfunc/onoro/models"
	"github.com/wfunc/onoro/monitor"
	"github.com/wfunc/onoro/protocol"
	"github.com/wfunc/onoro/services"
	"github.com/wfunc/onoro/session"
	"github.com/wfunc/onoro/socket"
	"github.com/wfunc/onoro/status"
	"github.com/wfunc/onoro/timer"
	"golang.org/x/time/rate"
)

// GameServer 在每条接入的 websocket 连接上建立一个消息套接字，
// 注册服务端能力集并响应 new_game 调用
type GameServer struct {
	cfg            config.ServerConfig
	socketCfg      config.SocketConfig
	upgrader       websocket.Upgrader
	sessionManager *session.Manager
	broadcaster    broadcast.Broadcaster
	gameService    *services.GameService
	mon            *monitor.Monitor
	sched          *timer.Scheduler
	httpServer     *http.Server
	staticServer   *http.Server
	shutdownChan   chan struct{}
}

func NewGameServer(cfg config.ServerConfig, socketCfg config.SocketConfig, gameService *services.GameService, mon *monitor.Monitor) *GameServer {
	s := &GameServer{
		cfg:            cfg,
		socketCfg:      socketCfg,
		sessionManager: session.NewManager(),
		gameService:    gameService,
		mon:            mon,
		sched:          timer.NewScheduler(),
		shutdownChan:   make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 允许所有跨域请求
			},
		},
	}

	// 初始化广播器
	s.broadcaster = broadcast.NewSessionBroadcaster(s.sessionManager)

	return s
}

// SessionManager exposes the live session table for the RPC stats
// service.
func (s *GameServer) SessionManager() *session.Manager {
	return s.sessionManager
}

func (s *GameServer) Start() error {
	// 周期性向所有客户端广播服务器状态
	interval := s.socketCfg.StatsInterval()
	if interval <= 0 {
		interval = 10 * time.Second
	}
	s.sched.Every(interval, s.broadcastStats)

	go s.serveStatic()

	mux := http.NewServeMux()
	mux.HandleFunc(s.socketCfg.Path, s.handleWebSocket)
	s.httpServer = &http.Server{Addr: s.cfg.HTTPAddress, Handler: mux}

	logger.Log.Infof("Game socket listening on %s%s", s.cfg.HTTPAddress, s.socketCfg.Path)
	return s.httpServer.ListenAndServe()
}

// serveStatic 托管 web 客户端静态资源
func (s *GameServer) serveStatic() {
	s.staticServer = &http.Server{
		Addr:    s.cfg.StaticAddress,
		Handler: http.FileServer(http.Dir(s.cfg.StaticDir)),
	}
	logger.Log.Infof("Static file server listening on %s, dir %s", s.cfg.StaticAddress, s.cfg.StaticDir)
	if err := s.staticServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Log.Warnf("Static file server stopped: %v", err)
	}
}

func (s *GameServer) Shutdown() {
	close(s.shutdownChan)
	s.sched.Stop()
	for _, sess := range s.sessionManager.All() {
		sess.Close()
	}
	if s.httpServer != nil {
		s.httpServer.Shutdown(context.Background())
	}
	if s.staticServer != nil {
		s.staticServer.Shutdown(context.Background())
	}
}

func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	s.handleConnection(conn)
}

func (s *GameServer) handleConnection(conn *websocket.Conn) {
	opts := socket.Options{
		CallTimeout: s.socketCfg.CallTimeout(),
		Logger:      logger.Log,
		Verbose:     s.socketCfg.Verbose,
		Metrics:     s.mon,
		FrameLimit:  rate.Limit(s.socketCfg.FrameLimit),
		FrameBurst:  s.socketCfg.FrameBurst,
		Scheduler:   s.sched,
	}

	sock := socket.New(protocol.ServerCapabilities(), opts)
	sess := session.NewSession(uuid.New().String(), conn.RemoteAddr().String(), sock)

	if err := sock.Respond(protocol.EventNewGame, s.newGameHandler(sess)); err != nil {
		logger.Log.Errorf("Failed to register new_game handler: %v", err)
		conn.Close()
		return
	}

	s.sessionManager.Add(sess)
	s.mon.IncLiveConnections()
	logger.Log.Infof("New connection from %s, session ID: %s", sess.RemoteAddr, sess.GetID())

	sock.OnClosed(func() {
		s.dropSession(sess)
	})

	if err := sock.Attach(socket.NewWSConn(conn)); err != nil {
		logger.Log.Errorf("Failed to attach connection: %v", err)
		s.dropSession(sess)
		conn.Close()
	}
}

// dropSession 移除会话并保存其统计
func (s *GameServer) dropSession(sess *session.Session) {
	if _, exists := s.sessionManager.Get(sess.GetID()); !exists {
		return
	}
	logger.Log.Infof("Connection closed from %s, session ID: %s", sess.RemoteAddr, sess.GetID())
	s.sessionManager.Remove(sess.GetID())
	s.mon.DecLiveConnections()
	s.gameService.RecordSessionClosed(&models.SessionStats{
		SessionID:   sess.GetID(),
		RemoteAddr:  sess.RemoteAddr,
		GamesServed: sess.GamesServed(),
		ConnectedAt: sess.CreatedAt,
		ClosedAt:    time.Now(),
	})
}

// newGameHandler 响应 new_game 调用：下发初始棋盘并落库
func (s *GameServer) newGameHandler(sess *session.Session) socket.CallHandler {
	return func(ctx context.Context, args []any) status.Status {
		state := game.DefaultStart()
		encoded := state.Marshal()

		gameID := s.gameService.RecordNewGame(sess.GetID(), state, encoded)
		sess.AddGameServed()
		s.mon.IncGamesServed()

		logger.Log.Infof("Session %s started game %s", sess.GetID(), gameID)
		return status.Ok(encoded)
	}
}

func (s *GameServer) broadcastStats() {
	select {
	case <-s.shutdownChan:
		return
	default:
	}

	stats := protocol.StatsArgs(protocol.ServerStats{
		Connections:   s.sessionManager.Count(),
		GamesServed:   s.gameService.GamesServed(),
		UptimeSeconds: int64(s.mon.Uptime().Seconds()),
	})
	s.broadcaster.BroadcastToAll(protocol.EventServerStats, stats)
}
