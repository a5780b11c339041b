package server

import (
	"encoding/json"
	"net/http"
	netrpc "net/rpc"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/katakanashi/gameserver/broadcast"
	"github.com/katakanashi/gameserver/config"
	"github.com/katakanashi/gameserver/game"
	"github.com/katakanashi/gameserver/logger"
	"github.com/katakanashi/gameserver/monitor"
	"github.com/katakanashi/gameserver/network"
	"github.com/katakanashi/gameserver/persistence"
	gameserver_rpc "github.com/katakanashi/gameserver/rpc"
	"github.com/katakanashi/gameserver/services"
	"github.com/katakanashi/gameserver/session"
	"github.com/katakanashi/gameserver/timer"
	"github.com/katakanashi/gameserver/words"
)

type GameServer struct {
	addr           string
	metricsAddr    string
	upgrader       websocket.Upgrader
	router         *mux.Router
	registry       *game.Manager
	engine         *game.Engine
	hub            *broadcast.Hub
	sessionManager *session.Manager
	timers         *timer.TimerManager
	monitor        *monitor.Monitor
	rpcServer      *gameserver_rpc.Server
	shutdownChan   chan struct{}
}

func NewGameServer(cfg *config.Config, db persistence.Database) *GameServer {
	s := &GameServer{
		addr:           cfg.Server.HTTPAddress,
		metricsAddr:    cfg.Server.MetricsAddress,
		registry:       game.NewRoomManager(),
		hub:            broadcast.NewHub(),
		sessionManager: session.NewManager(),
		timers:         timer.NewTimerManager(),
		monitor:        monitor.NewMonitor("katakanashi"),
		shutdownChan:   make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 允许所有跨域请求
			},
		},
	}

	rules := game.Rules{
		RoundDuration: time.Duration(cfg.Game.RoundDurationSeconds) * time.Second,
		WinScore:      cfg.Game.WinScore,
		MaxAttempts:   cfg.Game.MaxAttempts,
	}
	s.engine = game.NewEngine(s.registry, s.hub, words.DefaultBank(), s.timers, rules)
	s.engine.SetMonitor(s.monitor)

	// 归档服务（database.enabled=false 时关闭）
	var records *services.RecordService
	if db != nil {
		records = services.NewRecordService(db)
		s.engine.SetRecorder(records)
	}

	// 初始化RPC服务器
	rpcServer, err := gameserver_rpc.NewServer(cfg.Server.RPCAddress)
	if err != nil {
		logger.Log.Fatalf("Failed to create RPC server: %v", err)
	}
	s.rpcServer = rpcServer
	netrpc.Register(gameserver_rpc.NewStatsService(records, s))

	s.router = mux.NewRouter()
	s.router.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/ws/{room_id}/{user_name}", s.handleWebSocket)

	return s
}

func (s *GameServer) Start() error {
	go s.rpcServer.Start()
	s.monitor.StartServer(s.metricsAddr)

	logger.Log.Infof("Game server listening on %s", s.addr)
	return http.ListenAndServe(s.addr, s.router)
}

func (s *GameServer) Shutdown() {
	close(s.shutdownChan)
	// 关闭所有连接，让阻塞在 ReadMessage 的读循环立即退出
	s.sessionManager.CloseAll()
	s.rpcServer.Stop()
	s.timers.Stop()
}

// RoomCount 实现 rpc.LiveCounts
func (s *GameServer) RoomCount() int {
	return s.registry.Count()
}

// PlayerCount 实现 rpc.LiveCounts
func (s *GameServer) PlayerCount() int {
	return s.sessionManager.Count()
}

func (s *GameServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "カタカナーシ API Server"})
}

func (s *GameServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	roomID := vars["room_id"]
	userName := vars["user_name"]
	if roomID == "" || userName == "" {
		http.Error(w, "room_id and user_name are required", http.StatusBadRequest)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	s.handleConnection(conn, roomID, userName)
}

func (s *GameServer) handleConnection(conn *websocket.Conn, roomID, userName string) {
	wsConn := network.NewWSConnection(conn)
	sess := session.NewSession(uuid.New().String(), wsConn)
	sess.RoomID = roomID
	sess.UserName = userName
	s.sessionManager.Add(sess)
	s.hub.Register(roomID, sess)
	s.monitor.IncConnectedPlayers()

	logger.Log.Infof("New connection from %s: room %s, user %s, session %s",
		wsConn.RemoteAddr(), roomID, userName, sess.GetID())

	// 加入房间并向全房间广播初始状态
	s.engine.Join(roomID, userName)

	defer func() {
		logger.Log.Infof("Connection closed: room %s, user %s, session %s",
			roomID, userName, sess.GetID())
		s.monitor.DecConnectedPlayers()
		s.sessionManager.Remove(sess.GetID())
		// 先从 hub 摘除，是否销毁房间由引擎在占用锁内重新判定
		s.hub.Unregister(roomID, sess)
		s.engine.Disconnect(roomID, userName)
		wsConn.Close()
	}()

	for {
		select {
		case <-s.shutdownChan:
			return
		default:
			msg, err := wsConn.ReadMessage()
			if err != nil {
				return
			}
			if !sess.AllowInbound() {
				continue // 超出限流的消息按协议噪声丢弃
			}
			start := time.Now()
			s.monitor.IncMessagesReceived()
			s.handleMessage(sess, msg)
			s.monitor.ObserveMessageLatency(time.Since(start))
		}
	}
}

// handleMessage 路由入站事件。未知类型忽略；对局结束后不再接受任何操作
func (s *GameServer) handleMessage(sess *session.Session, msg *network.Message) {
	if s.engine.GameOver(sess.RoomID) {
		return
	}

	switch msg.Type {
	case network.MsgTypeSubmitAnswer:
		var req network.SubmitAnswerData
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			return
		}
		s.engine.SubmitAnswer(sess.RoomID, sess.UserName, req.Answer, sess)
	case network.MsgTypeChat:
		var req network.ChatData
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			return
		}
		s.engine.HandleChat(sess.RoomID, sess.UserName, req.Message)
	case network.MsgTypeGetState:
		s.engine.SendState(sess.RoomID, sess)
	default:
		logger.Log.Infof("Unknown message type: %s", msg.Type)
	}
}
