package rpc

import (
	"fmt"
	"net"
	"net/rpc"

	"github.com/katakanashi/gameserver/logger"
	"github.com/katakanashi/gameserver/models"
	"github.com/katakanashi/gameserver/services"
)

// Server manages the RPC listener.
type Server struct {
	listener net.Listener
	address  string
}

// NewServer creates a new RPC server. Services are registered by the caller
// via net/rpc before Start.
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
			// Check if the error is due to the listener being closed.
			if _, ok := err.(*net.OpError); ok {
				logger.Log.Info("RPC server listener closed.")
				return
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go rpc.ServeConn(conn)
	}
}

// Stop closes the RPC listener.
func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

// LiveCounts 运行中房间/在线连接数的数据源
type LiveCounts interface {
	RoomCount() int
	PlayerCount() int
}

// StatsService exposes admin queries over net/rpc.
type StatsService struct {
	records *services.RecordService
	live    LiveCounts
}

// NewStatsService creates a new StatsService. records may be nil when
// archival is disabled.
func NewStatsService(records *services.RecordService, live LiveCounts) *StatsService {
	return &StatsService{records: records, live: live}
}

type PlayerStatsArgs struct {
	Name string
}

type PlayerStatsReply struct {
	Stats *models.PlayerStats
}

func (s *StatsService) GetPlayerStats(args *PlayerStatsArgs, reply *PlayerStatsReply) error {
	if s.records == nil {
		return fmt.Errorf("game archival is disabled")
	}
	stats, err := s.records.GetPlayerStats(args.Name)
	if err != nil {
		return err
	}
	reply.Stats = stats
	return nil
}

type LeaderboardArgs struct {
	Limit int
}

type LeaderboardReply struct {
	Entries []models.PlayerStats
}

func (s *StatsService) GetLeaderboard(args *LeaderboardArgs, reply *LeaderboardReply) error {
	if s.records == nil {
		return fmt.Errorf("game archival is disabled")
	}
	entries, err := s.records.GetLeaderboard(args.Limit)
	if err != nil {
		return err
	}
	reply.Entries = entries
	return nil
}

type ServerStatsArgs struct{}

type ServerStatsReply struct {
	ActiveRooms      int
	ConnectedPlayers int
}

func (s *StatsService) GetServerStats(args *ServerStatsArgs, reply *ServerStatsReply) error {
	reply.ActiveRooms = s.live.RoomCount()
	reply.ConnectedPlayers = s.live.PlayerCount()
	return nil
}
