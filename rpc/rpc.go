package rpc

import (
	"errors"
	"net"
	"net/rpc"

	"github.com/wfunc/onoro/logger"
	"github.com/wfunc/onoro/models"
	"github.com/wfunc/onoro/services"
	"github.com/wfunc/onoro/session"
)

// Server manages the RPC listener.
type Server struct {
	listener net.Listener
	address  string
}

// NewServer creates a new RPC server.
func NewServer(addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		address:  addr,
	}, nil
}

// Start begins listening for RPC requests.
func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			// Stop only when the listener itself was closed; transient
			// accept errors keep the loop running.
			if errors.Is(err, net.ErrClosed) {
				logger.Log.Info("RPC server listener closed.")
				return
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go rpc.ServeConn(conn)
	}
}

// Register exposes a service through the net/rpc default server,
// which ServeConn uses for accepted connections.
func Register(service any) error {
	return rpc.Register(service)
}

// Stop closes the RPC listener.
func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

// StatsService exposes operational stats over net/rpc for ops tooling.
type StatsService struct {
	gameService    *services.GameService
	sessionManager *session.Manager
}

// NewStatsService creates a new StatsService.
func NewStatsService(gs *services.GameService, sm *session.Manager) *StatsService {
	return &StatsService{gameService: gs, sessionManager: sm}
}

// Methods follow the net/rpc signature: exported method, exported
// arguments, second argument is a pointer, return type is error.

type ServerStatsArgs struct{}

type ServerStatsReply struct {
	LiveSessions int
	GamesServed  int64
	TotalGames   int64
}

func (s *StatsService) GetServerStats(args *ServerStatsArgs, reply *ServerStatsReply) error {
	total, err := s.gameService.TotalGames()
	if err != nil {
		return err
	}
	reply.LiveSessions = s.sessionManager.Count()
	reply.GamesServed = s.gameService.GamesServed()
	reply.TotalGames = total
	return nil
}

type RecentGamesArgs struct {
	Limit int
}

type RecentGamesReply struct {
	Records []models.GameRecord
}

func (s *StatsService) GetRecentGames(args *RecentGamesArgs, reply *RecentGamesReply) error {
	records, err := s.gameService.RecentGames(args.Limit)
	if err != nil {
		return err
	}
	reply.Records = records
	return nil
}
