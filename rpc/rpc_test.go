package rpc

import (
	netrpc "net/rpc"
	"testing"
	"time"

	"github.com/wfunc/onoro/game"
	"github.com/wfunc/onoro/logger"
	"github.com/wfunc/onoro/services"
	"github.com/wfunc/onoro/session"
)

func TestMain(m *testing.M) {
	logger.Init(false)
	m.Run()
}

func TestStopTerminatesAcceptLoop(t *testing.T) {
	server, err := NewServer("127.0.0.1:0")
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}

	done := make(chan struct{})
	go func() {
		server.Start()
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	server.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after Stop")
	}
}

func TestGetServerStatsOverRPC(t *testing.T) {
	gameService := services.NewGameService(nil, nil)
	state := game.DefaultStart()
	gameService.RecordNewGame("sess-1", state, state.Marshal())

	if err := Register(NewStatsService(gameService, session.NewManager())); err != nil {
		t.Fatalf("Register: %v", err)
	}

	server, err := NewServer("127.0.0.1:0")
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	go server.Start()
	defer server.Stop()

	client, err := netrpc.Dial("tcp", server.listener.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	var reply ServerStatsReply
	if err := client.Call("StatsService.GetServerStats", &ServerStatsArgs{}, &reply); err != nil {
		t.Fatalf("GetServerStats: %v", err)
	}

	if reply.LiveSessions != 0 {
		t.Errorf("Expected 0 live sessions, got %d", reply.LiveSessions)
	}
	if reply.GamesServed != 1 {
		t.Errorf("Expected 1 game served, got %d", reply.GamesServed)
	}
	if reply.TotalGames != 1 {
		t.Errorf("Expected 1 total game, got %d", reply.TotalGames)
	}

	var recent RecentGamesReply
	if err := client.Call("StatsService.GetRecentGames", &RecentGamesArgs{Limit: 5}, &recent); err != nil {
		t.Fatalf("GetRecentGames: %v", err)
	}
	if recent.Records != nil {
		t.Errorf("Expected no stored records without a database, got %d", len(recent.Records))
	}
}
