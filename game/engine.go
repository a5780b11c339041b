// game/engine.go
package game

import (
	"fmt"
	"strings"
	"time"

	"github.com/katakanashi/gameserver/logger"
	"github.com/katakanashi/gameserver/models"
	"github.com/katakanashi/gameserver/monitor"
	"github.com/katakanashi/gameserver/network"
	"github.com/katakanashi/gameserver/timer"
	"github.com/katakanashi/gameserver/words"
)

// 默认对局参数，可通过配置覆盖
const (
	DefaultRoundDuration = 180 * time.Second
	DefaultWinScore      = 10
	DefaultMaxAttempts   = 2
)

const gameType = "katakanashi"

// Rules 对局规则参数
type Rules struct {
	RoundDuration time.Duration
	WinScore      int
	MaxAttempts   int
}

func DefaultRules() Rules {
	return Rules{
		RoundDuration: DefaultRoundDuration,
		WinScore:      DefaultWinScore,
		MaxAttempts:   DefaultMaxAttempts,
	}
}

// Engine 是回合推进的唯一路径：计分、胜利判定、出题者轮换、下一回合装配
// 都从这里走。每个房间的读写（含新鲜度校验）整体持有该房间的互斥锁，
// 不同房间完全独立。
type Engine struct {
	registry *Manager
	hub      Broadcaster
	bank     *words.Bank
	timers   *timer.TimerManager
	rules    Rules
	monitor  *monitor.Monitor
	recorder Recorder
}

func NewEngine(registry *Manager, hub Broadcaster, bank *words.Bank, timers *timer.TimerManager, rules Rules) *Engine {
	if rules.RoundDuration <= 0 {
		rules.RoundDuration = DefaultRoundDuration
	}
	if rules.WinScore <= 0 {
		rules.WinScore = DefaultWinScore
	}
	if rules.MaxAttempts <= 0 {
		rules.MaxAttempts = DefaultMaxAttempts
	}
	return &Engine{
		registry: registry,
		hub:      hub,
		bank:     bank,
		timers:   timers,
		rules:    rules,
	}
}

// SetMonitor attaches optional metrics.
func (e *Engine) SetMonitor(m *monitor.Monitor) {
	e.monitor = m
}

// SetRecorder attaches optional finished-game archival.
func (e *Engine) SetRecorder(r Recorder) {
	e.recorder = r
}

// Join adds userName to the room, creating the room (with a fresh word and
// a running round timer) on first join. Re-joining is a no-op, not an error.
// The resulting state is broadcast to the whole room.
func (e *Engine) Join(roomID, userName string) *Room {
	room, created := e.registry.GetOrCreate(roomID, func() *Room {
		return newRoom(roomID, e.bank.PickRandom())
	})

	room.mutex.Lock()
	if created {
		room.TimerEnd = time.Now().Add(e.rules.RoundDuration)
		room.TimerID = e.scheduleTimeout(roomID, room.CurrentWord)
		logger.Log.Infof("Created room %s", roomID)
	}
	if !room.hasUser(userName) {
		room.Users = append(room.Users, userName)
		room.Scores[userName] = 0
	}
	snapshot := room.snapshot()
	e.broadcast(roomID, network.MsgTypeStateUpdate, snapshot)
	room.mutex.Unlock()

	if e.monitor != nil {
		e.monitor.SetActiveRooms(e.registry.Count())
	}
	return room
}

// Leave removes userName from the room and clamps the presenter index to
// the shrunk user list. The room itself is destroyed only by Disconnect
// when its last connection goes away.
func (e *Engine) Leave(roomID, userName string) {
	room, exists := e.registry.Get(roomID)
	if !exists {
		return
	}

	room.mutex.Lock()
	defer room.mutex.Unlock()

	if !room.hasUser(userName) {
		return
	}
	users := room.Users[:0]
	for _, u := range room.Users {
		if u != userName {
			users = append(users, u)
		}
	}
	room.Users = users
	delete(room.Scores, userName)
	delete(room.AnswerAttempts, userName)

	if len(room.Users) > 0 {
		room.PresenterIndex = room.PresenterIndex % len(room.Users)
		e.broadcast(roomID, network.MsgTypeStateUpdate, room.snapshot())
	}
}

// Disconnect handles one connection going away. The room is removed from the
// registry inside the hub's occupancy lock, so emptiness is decided at
// destruction time: a reconnect that registered after our unregister keeps
// the room alive and this degrades to a plain Leave.
func (e *Engine) Disconnect(roomID, userName string) {
	var removed *Room
	e.hub.IfRoomEmpty(roomID, func() {
		removed = e.registry.Remove(roomID)
	})
	if removed != nil {
		e.finishDestroy(removed)
		return
	}
	e.Leave(roomID, userName)
}

// DestroyRoom cancels the room's timer and removes it unconditionally.
func (e *Engine) DestroyRoom(roomID string) {
	room := e.registry.Remove(roomID)
	if room == nil {
		return
	}
	e.finishDestroy(room)
}

func (e *Engine) finishDestroy(room *Room) {
	room.mutex.Lock()
	e.timers.RemoveTimer(room.TimerID)
	room.mutex.Unlock()

	logger.Log.Infof("Destroyed room %s", room.ID)
	if e.monitor != nil {
		e.monitor.SetActiveRooms(e.registry.Count())
	}
}

// GameOver reports whether the room exists and has finished.
func (e *Engine) GameOver(roomID string) bool {
	room, exists := e.registry.Get(roomID)
	if !exists {
		return false
	}
	room.mutex.Lock()
	defer room.mutex.Unlock()
	return room.Status == StatusFinished
}

// SendState unicasts the current room state to one connection.
func (e *Engine) SendState(roomID string, to Sender) {
	room, exists := e.registry.Get(roomID)
	if !exists || to == nil {
		return
	}
	room.mutex.Lock()
	snapshot := room.snapshot()
	room.mutex.Unlock()

	if err := to.SendEvent(network.MsgTypeStateUpdate, snapshot); err != nil {
		logger.Log.Infof("Failed to send state to %s: %v", to.GetID(), err)
	}
}

// SubmitAnswer 处理一次解答。出题者本人、对局已结束、机会已用尽的情况
// 都不会推进状态；正解或全员机会耗尽时，本方法是结束当前回合的入口。
func (e *Engine) SubmitAnswer(roomID, userName, answer string, replyTo Sender) {
	room, exists := e.registry.Get(roomID)
	if !exists {
		return
	}

	room.mutex.Lock()
	defer room.mutex.Unlock()

	if room.Status == StatusFinished || len(room.Users) == 0 {
		return
	}
	presenter := room.presenter()
	if userName == presenter {
		return // 出题者不能解答
	}

	attempts := room.AnswerAttempts[userName]
	if attempts >= e.rules.MaxAttempts {
		e.reply(replyTo, network.MsgTypeAnswerResult, &network.AnswerResultData{
			Correct:      false,
			Message:      "解答チャンスを使い切りました",
			AttemptsLeft: 0,
		})
		return
	}

	correct := strings.TrimSpace(answer) == room.CurrentWord
	room.AnswerAttempts[userName] = attempts + 1
	attemptsLeft := e.rules.MaxAttempts - room.AnswerAttempts[userName]

	if e.monitor != nil {
		e.monitor.IncAnswers(correct)
	}

	if correct {
		// 正解: 解答者+1, 出题者+1
		e.broadcast(roomID, network.MsgTypeCorrectAnswer, &network.CorrectAnswerData{
			Answerer: userName,
			Word:     room.CurrentWord,
		})
		e.endRound(room, userName, true, "correct")
		return
	}

	message := "解答チャンスを使い切りました"
	if attemptsLeft > 0 {
		message = fmt.Sprintf("不正解です（残り%d回）", attemptsLeft)
	}
	e.reply(replyTo, network.MsgTypeAnswerResult, &network.AnswerResultData{
		Correct:      false,
		Message:      message,
		AttemptsLeft: attemptsLeft,
	})

	if e.allAttemptsExhausted(room, presenter) {
		e.broadcast(roomID, network.MsgTypeAllAttemptsUsed, &network.AllAttemptsUsedData{
			Word: room.CurrentWord,
		})
		e.endRound(room, "", false, "attempts_exhausted")
	}
}

// HandleChat 广播聊天；出题者说了カタカナ则扣1分（下限0）并标记违规
func (e *Engine) HandleChat(roomID, userName, text string) {
	room, exists := e.registry.Get(roomID)
	if !exists {
		return
	}

	room.mutex.Lock()
	defer room.mutex.Unlock()

	if room.Status == StatusFinished {
		return
	}

	penalty := false
	if userName == room.presenter() && words.ContainsKatakana(text) {
		if room.Scores[userName] > 0 {
			room.Scores[userName]--
		}
		penalty = true
		if e.monitor != nil {
			e.monitor.IncKatakanaPenalties()
		}
	}

	e.broadcast(roomID, network.MsgTypeChat, &network.ChatBroadcastData{
		User:    userName,
		Message: text,
		Penalty: penalty,
	})

	if penalty {
		e.broadcast(roomID, network.MsgTypeStateUpdate, room.snapshot())
	}
}

// HandleTimeout fires after the round duration. It is a no-op when the room
// is gone, the word has already changed (the round ended through another
// path) or the game is over; this is the freshness check that defuses the
// race between a just-in-time answer and timer expiry.
func (e *Engine) HandleTimeout(roomID, wordAtScheduling string) {
	room, exists := e.registry.Get(roomID)
	if !exists {
		return
	}

	room.mutex.Lock()
	defer room.mutex.Unlock()

	if room.CurrentWord != wordAtScheduling || room.Status == StatusFinished {
		return // 回合已经通过其他路径结束
	}

	e.endRound(room, "", false, "timeout")
	e.broadcast(roomID, network.MsgTypeTimeUp, room.snapshot())
}

// endRound is the single round-advancement routine. Callers hold the room
// mutex and have already passed their freshness checks, so it runs at most
// once per round. A score reaching the win threshold short-circuits any
// further round setup.
func (e *Engine) endRound(room *Room, winner string, presenterGetsPoint bool, cause string) {
	e.timers.RemoveTimer(room.TimerID)

	if len(room.Users) == 0 {
		return
	}

	if winner != "" {
		if _, known := room.Scores[winner]; known {
			room.Scores[winner]++
		}
	}
	presenter := room.presenter()
	if presenterGetsPoint {
		if _, known := room.Scores[presenter]; known {
			room.Scores[presenter]++
		}
	}

	if e.monitor != nil {
		e.monitor.IncRounds(cause)
	}

	// 胜利判定：按加入顺序扫描，先达到门槛者获胜
	for _, user := range room.Users {
		if room.Scores[user] >= e.rules.WinScore {
			room.Status = StatusFinished
			room.Winner = user
			logger.Log.Infof("Room %s finished, winner %s", room.ID, user)
			e.broadcast(room.ID, network.MsgTypeGameOver, room.snapshot())
			e.archive(room)
			if e.monitor != nil {
				e.monitor.IncGamesCompleted()
			}
			return
		}
	}

	// 下一回合
	room.PresenterIndex = (room.PresenterIndex + 1) % len(room.Users)
	room.CurrentWord = e.bank.PickRandom()
	room.AnswerAttempts = make(map[string]int)
	room.TimerEnd = time.Now().Add(e.rules.RoundDuration)
	room.TimerID = e.scheduleTimeout(room.ID, room.CurrentWord)
	room.Rounds++

	e.broadcast(room.ID, network.MsgTypeStateUpdate, room.snapshot())
}

// scheduleTimeout arms the round timer, binding it to the word it was
// scheduled for. Cancellation is best-effort; HandleTimeout re-validates.
func (e *Engine) scheduleTimeout(roomID, word string) int64 {
	return e.timers.AddTimer(e.rules.RoundDuration, func() {
		e.HandleTimeout(roomID, word)
	})
}

func (e *Engine) allAttemptsExhausted(room *Room, presenter string) bool {
	exhausted := false
	for _, u := range room.Users {
		if u == presenter {
			continue
		}
		if room.AnswerAttempts[u] < e.rules.MaxAttempts {
			return false
		}
		exhausted = true
	}
	return exhausted
}

func (e *Engine) archive(room *Room) {
	if e.recorder == nil {
		return
	}
	scores := make(map[string]int, len(room.Scores))
	for k, v := range room.Scores {
		scores[k] = v
	}
	record := &models.GameRecord{
		RoomID:    room.ID,
		GameType:  gameType,
		Winner:    room.Winner,
		Scores:    scores,
		Rounds:    room.Rounds,
		Duration:  int(time.Since(room.CreatedAt).Seconds()),
		CreatedAt: time.Now(),
	}
	go func() {
		if err := e.recorder.ArchiveGame(record); err != nil {
			logger.Log.Errorf("Failed to archive game record for room %s: %v", record.RoomID, err)
		}
	}()
}

func (e *Engine) broadcast(roomID, msgType string, payload interface{}) {
	// 发送失败由 hub 按断线剔除处理，这里只记录
	if err := e.hub.BroadcastEvent(roomID, msgType, payload); err != nil {
		logger.Log.Infof("Broadcast %s to room %s: %v", msgType, roomID, err)
	}
}

func (e *Engine) reply(to Sender, msgType string, payload interface{}) {
	if to == nil {
		return
	}
	if err := to.SendEvent(msgType, payload); err != nil {
		logger.Log.Infof("Failed to reply %s to %s: %v", msgType, to.GetID(), err)
	}
}
