package game

import (
	"sync"
	"testing"
	"time"

	"github.com/katakanashi/gameserver/models"
	"github.com/katakanashi/gameserver/network"
	"github.com/katakanashi/gameserver/timer"
	"github.com/katakanashi/gameserver/words"
)

// MockBroadcaster is a test double for the Broadcaster interface. A room's
// connection count is set explicitly via setOccupancy; unset rooms are empty.
type MockBroadcaster struct {
	mutex     sync.Mutex
	events    []broadcastEvent
	occupancy map[string]int
}

type broadcastEvent struct {
	roomID  string
	msgType string
	payload interface{}
}

func (m *MockBroadcaster) BroadcastEvent(roomID, msgType string, payload interface{}) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.events = append(m.events, broadcastEvent{roomID: roomID, msgType: msgType, payload: payload})
	return nil
}

func (m *MockBroadcaster) IfRoomEmpty(roomID string, fn func()) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.occupancy[roomID] > 0 {
		return false
	}
	fn()
	return true
}

func (m *MockBroadcaster) setOccupancy(roomID string, n int) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.occupancy == nil {
		m.occupancy = make(map[string]int)
	}
	m.occupancy[roomID] = n
}

func (m *MockBroadcaster) ofType(msgType string) []broadcastEvent {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	var result []broadcastEvent
	for _, e := range m.events {
		if e.msgType == msgType {
			result = append(result, e)
		}
	}
	return result
}

func (m *MockBroadcaster) types() []string {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	result := make([]string, 0, len(m.events))
	for _, e := range m.events {
		result = append(result, e.msgType)
	}
	return result
}

// MockSender is a test double for the Sender interface.
type MockSender struct {
	id       string
	received []broadcastEvent
}

func (m *MockSender) SendEvent(msgType string, payload interface{}) error {
	m.received = append(m.received, broadcastEvent{msgType: msgType, payload: payload})
	return nil
}

func (m *MockSender) GetID() string { return m.id }

// MockRecorder captures archived game records.
type MockRecorder struct {
	records chan *models.GameRecord
}

func (m *MockRecorder) ArchiveGame(record *models.GameRecord) error {
	m.records <- record
	return nil
}

func newTestEngine(t *testing.T, wordList []string, rules Rules) (*Engine, *MockBroadcaster) {
	t.Helper()

	bank, err := words.NewBank(wordList)
	if err != nil {
		t.Fatalf("NewBank failed: %v", err)
	}
	timers := timer.NewTimerManager()
	t.Cleanup(timers.Stop)

	hub := &MockBroadcaster{}
	engine := NewEngine(NewRoomManager(), hub, bank, timers, rules)
	return engine, hub
}

// 单词题库让当前词完全可预测
var singleWord = []string{"テレビ"}

func checkInvariants(t *testing.T, room *Room) {
	t.Helper()

	if len(room.Scores) != len(room.Users) {
		t.Fatalf("Score key count %d does not match user count %d", len(room.Scores), len(room.Users))
	}
	for _, u := range room.Users {
		if _, ok := room.Scores[u]; !ok {
			t.Fatalf("User %s has no score entry", u)
		}
	}
	if len(room.Users) > 0 && (room.PresenterIndex < 0 || room.PresenterIndex >= len(room.Users)) {
		t.Fatalf("Presenter index %d out of range for %d users", room.PresenterIndex, len(room.Users))
	}
}

func TestJoin_CreatesRoom(t *testing.T) {
	engine, hub := newTestEngine(t, singleWord, DefaultRules())

	room := engine.Join("r1", "A")

	if room.CurrentWord != "テレビ" {
		t.Errorf("Expected word from the bank, got %q", room.CurrentWord)
	}
	if room.PresenterIndex != 0 {
		t.Errorf("Expected presenter index 0, got %d", room.PresenterIndex)
	}
	if room.Scores["A"] != 0 {
		t.Errorf("Expected initial score 0, got %d", room.Scores["A"])
	}
	if room.TimerEnd.IsZero() {
		t.Error("Round deadline should be set on creation")
	}
	if len(hub.ofType("state_update")) != 1 {
		t.Errorf("Expected 1 state_update broadcast, got %d", len(hub.ofType("state_update")))
	}
	checkInvariants(t, room)
}

func TestJoin_Idempotent(t *testing.T) {
	engine, _ := newTestEngine(t, singleWord, DefaultRules())

	engine.Join("r1", "A")
	engine.Join("r1", "B")
	room := engine.Join("r1", "A")

	if len(room.Users) != 2 {
		t.Fatalf("Expected 2 users after re-join, got %d", len(room.Users))
	}
	if room.Users[0] != "A" || room.Users[1] != "B" {
		t.Errorf("Join order should be preserved, got %v", room.Users)
	}
	checkInvariants(t, room)
}

func TestScenario_CorrectAnswer(t *testing.T) {
	engine, hub := newTestEngine(t, singleWord, DefaultRules())

	engine.Join("r1", "A")
	engine.Join("r1", "B")
	room := engine.Join("r1", "C")

	room.AnswerAttempts["C"] = 1 // 已有尝试也应在换回合时清空
	sender := &MockSender{id: "B"}
	engine.SubmitAnswer("r1", "B", " テレビ ", sender) // 前后空白应被忽略

	if room.Scores["B"] != 1 {
		t.Errorf("Answerer score should be 1, got %d", room.Scores["B"])
	}
	if room.Scores["A"] != 1 {
		t.Errorf("Presenter score should be 1, got %d", room.Scores["A"])
	}
	if room.Scores["C"] != 0 {
		t.Errorf("Bystander score should stay 0, got %d", room.Scores["C"])
	}
	if room.PresenterIndex != 1 {
		t.Errorf("Presenter should rotate to index 1, got %d", room.PresenterIndex)
	}
	if len(room.AnswerAttempts) != 0 {
		t.Errorf("Attempts should reset on a new round, got %v", room.AnswerAttempts)
	}
	if len(sender.received) != 0 {
		t.Errorf("Correct answers should not get a unicast result, got %v", sender.received)
	}

	correct := hub.ofType("correct_answer")
	if len(correct) != 1 {
		t.Fatalf("Expected 1 correct_answer broadcast, got %d", len(correct))
	}
	data := correct[0].payload.(*network.CorrectAnswerData)
	if data.Answerer != "B" || data.Word != "テレビ" {
		t.Errorf("Unexpected correct_answer payload: %+v", data)
	}
	checkInvariants(t, room)
}

func TestSubmitAnswer_PresenterRejected(t *testing.T) {
	engine, hub := newTestEngine(t, singleWord, DefaultRules())

	engine.Join("r1", "A")
	room := engine.Join("r1", "B")

	before := len(hub.types())
	sender := &MockSender{id: "A"}
	engine.SubmitAnswer("r1", "A", "テレビ", sender)

	if room.Scores["A"] != 0 || room.PresenterIndex != 0 {
		t.Error("Presenter answering must not change state")
	}
	if len(sender.received) != 0 {
		t.Error("Presenter answering must be silently rejected")
	}
	if len(hub.types()) != before {
		t.Error("Presenter answering must not broadcast anything")
	}
}

func TestSubmitAnswer_AttemptLimit(t *testing.T) {
	engine, _ := newTestEngine(t, singleWord, DefaultRules())

	engine.Join("r1", "A")
	engine.Join("r1", "B")
	room := engine.Join("r1", "C")

	sender := &MockSender{id: "B"}

	engine.SubmitAnswer("r1", "B", "ちがう", sender)
	if len(sender.received) != 1 {
		t.Fatalf("Expected 1 answer_result, got %d", len(sender.received))
	}
	result := sender.received[0].payload.(*network.AnswerResultData)
	if result.Correct || result.AttemptsLeft != 1 {
		t.Errorf("Expected incorrect with 1 attempt left, got %+v", result)
	}
	if result.Message != "不正解です（残り1回）" {
		t.Errorf("Unexpected feedback message: %q", result.Message)
	}

	engine.SubmitAnswer("r1", "B", "まだちがう", sender)
	if room.AnswerAttempts["B"] != 2 {
		t.Fatalf("Expected 2 attempts used, got %d", room.AnswerAttempts["B"])
	}

	// 第三次提交不再计入，只收到用尽提示
	engine.SubmitAnswer("r1", "B", "テレビ", sender)
	if room.AnswerAttempts["B"] != 2 {
		t.Errorf("Exhausted user must not gain attempts, got %d", room.AnswerAttempts["B"])
	}
	if room.Scores["B"] != 0 {
		t.Errorf("Exhausted user must not score even with the right word, got %d", room.Scores["B"])
	}
	if len(sender.received) != 3 {
		t.Fatalf("Expected 3 answer_result replies, got %d", len(sender.received))
	}
}

func TestScenario_AllAttemptsUsed(t *testing.T) {
	engine, hub := newTestEngine(t, singleWord, DefaultRules())

	engine.Join("r1", "A")
	engine.Join("r1", "B")
	room := engine.Join("r1", "C")

	b := &MockSender{id: "B"}
	c := &MockSender{id: "C"}
	engine.SubmitAnswer("r1", "B", "x1", b)
	engine.SubmitAnswer("r1", "B", "x2", b)
	if len(hub.ofType("all_attempts_used")) != 0 {
		t.Fatal("all_attempts_used must wait for every non-presenter")
	}
	engine.SubmitAnswer("r1", "C", "x1", c)
	engine.SubmitAnswer("r1", "C", "x2", c)

	if len(hub.ofType("all_attempts_used")) != 1 {
		t.Fatalf("Expected 1 all_attempts_used broadcast, got %d", len(hub.ofType("all_attempts_used")))
	}
	if room.Scores["A"] != 0 || room.Scores["B"] != 0 || room.Scores["C"] != 0 {
		t.Errorf("No points on attempt exhaustion, got %v", room.Scores)
	}
	if room.PresenterIndex != 1 {
		t.Errorf("Presenter should rotate, got index %d", room.PresenterIndex)
	}
	if len(room.AnswerAttempts) != 0 {
		t.Errorf("Attempts should reset, got %v", room.AnswerAttempts)
	}
	checkInvariants(t, room)
}

func TestHandleTimeout_FreshnessCheck(t *testing.T) {
	engine, hub := newTestEngine(t, singleWord, DefaultRules())

	engine.Join("r1", "A")
	room := engine.Join("r1", "B")

	// 过期词：回合已换，静默忽略
	engine.HandleTimeout("r1", "ちがうことば")
	if room.PresenterIndex != 0 {
		t.Fatal("Stale timeout must be a no-op")
	}
	if len(hub.ofType("time_up")) != 0 {
		t.Fatal("Stale timeout must not broadcast time_up")
	}

	// 当前词：回合正常结束
	room.CurrentWord = "ユニーク"
	engine.HandleTimeout("r1", "ユニーク")
	if room.PresenterIndex != 1 {
		t.Fatalf("Fresh timeout should rotate the presenter, got index %d", room.PresenterIndex)
	}
	if len(hub.ofType("time_up")) != 1 {
		t.Fatalf("Expected 1 time_up broadcast, got %d", len(hub.ofType("time_up")))
	}
	if room.Scores["A"] != 0 || room.Scores["B"] != 0 {
		t.Errorf("Timeout must not award points, got %v", room.Scores)
	}

	// 同一个过期词再次触发：幂等无效
	engine.HandleTimeout("r1", "ユニーク")
	if room.PresenterIndex != 1 {
		t.Error("Second fire for the same stale word must be a no-op")
	}
	if len(hub.ofType("time_up")) != 1 {
		t.Error("Second fire must not broadcast again")
	}
}

func TestHandleTimeout_UnknownRoom(t *testing.T) {
	engine, hub := newTestEngine(t, singleWord, DefaultRules())

	engine.HandleTimeout("ghost", "テレビ")
	if len(hub.types()) != 0 {
		t.Error("Timeout for a destroyed room must not broadcast")
	}
}

func TestChat_PresenterKatakanaPenalty(t *testing.T) {
	engine, hub := newTestEngine(t, singleWord, DefaultRules())

	engine.Join("r1", "A")
	room := engine.Join("r1", "B")
	room.Scores["A"] = 2

	engine.HandleChat("r1", "A", "これはスマホです")

	if room.Scores["A"] != 1 {
		t.Errorf("Presenter should be penalized to 1, got %d", room.Scores["A"])
	}
	chats := hub.ofType("chat")
	if len(chats) != 1 {
		t.Fatalf("Expected 1 chat broadcast, got %d", len(chats))
	}
	// 违规时额外跟一条 state_update
	types := hub.types()
	last := types[len(types)-1]
	if last != "state_update" {
		t.Errorf("Penalty must be followed by a state_update, got %s", last)
	}
}

func TestChat_PenaltyFloorsAtZero(t *testing.T) {
	engine, _ := newTestEngine(t, singleWord, DefaultRules())

	engine.Join("r1", "A")
	room := engine.Join("r1", "B")

	for i := 0; i < 3; i++ {
		engine.HandleChat("r1", "A", "カタカナ")
	}
	if room.Scores["A"] != 0 {
		t.Errorf("Score must never go below 0, got %d", room.Scores["A"])
	}
}

func TestChat_NonPresenterNotPenalized(t *testing.T) {
	engine, hub := newTestEngine(t, singleWord, DefaultRules())

	engine.Join("r1", "A")
	room := engine.Join("r1", "B")
	room.Scores["B"] = 3

	engine.HandleChat("r1", "B", "スマホって言っていいの？")

	if room.Scores["B"] != 3 {
		t.Errorf("Non-presenter must not be penalized, got %d", room.Scores["B"])
	}
	if len(hub.ofType("chat")) != 1 {
		t.Error("Chat should still be broadcast")
	}
}

func TestChat_PresenterPlainTextAllowed(t *testing.T) {
	engine, _ := newTestEngine(t, singleWord, DefaultRules())

	engine.Join("r1", "A")
	room := engine.Join("r1", "B")
	room.Scores["A"] = 2

	engine.HandleChat("r1", "A", "よく使う機械です")

	if room.Scores["A"] != 2 {
		t.Errorf("Plain text must not be penalized, got %d", room.Scores["A"])
	}
}

func TestWin_GameOverFreezesState(t *testing.T) {
	engine, hub := newTestEngine(t, singleWord, DefaultRules())

	engine.Join("r1", "A")
	room := engine.Join("r1", "B")
	room.Scores["B"] = 9

	engine.SubmitAnswer("r1", "B", "テレビ", nil)

	if room.Status != StatusFinished {
		t.Fatal("Game should be over")
	}
	if room.Winner != "B" {
		t.Errorf("Expected winner B, got %q", room.Winner)
	}
	if room.Scores["B"] != 10 || room.Scores["A"] != 1 {
		t.Errorf("Expected B=10 A=1, got %v", room.Scores)
	}
	if len(hub.ofType("game_over")) != 1 {
		t.Fatalf("Expected 1 game_over broadcast, got %d", len(hub.ofType("game_over")))
	}
	if room.PresenterIndex != 0 {
		t.Error("No round setup after game over")
	}

	// 结束后的任何操作都不再改变状态
	before := len(hub.types())
	engine.SubmitAnswer("r1", "A", "テレビ", nil)
	engine.HandleChat("r1", "A", "カタカナ")
	engine.HandleTimeout("r1", room.CurrentWord)

	if room.Scores["B"] != 10 || room.Scores["A"] != 1 {
		t.Errorf("Scores must be frozen after game over, got %v", room.Scores)
	}
	if len(hub.types()) != before {
		t.Error("No broadcasts after game over")
	}
}

func TestWin_TieBreakByJoinOrder(t *testing.T) {
	engine, _ := newTestEngine(t, singleWord, DefaultRules())

	engine.Join("r1", "A")
	room := engine.Join("r1", "B")
	room.Scores["A"] = 9 // 出题者
	room.Scores["B"] = 9

	// 正解让 A 和 B 同时到达10分：按加入顺序 A 获胜
	engine.SubmitAnswer("r1", "B", "テレビ", nil)

	if room.Winner != "A" {
		t.Errorf("Join-order tie-break should pick A, got %q", room.Winner)
	}
}

func TestLeave_ClampsPresenterIndex(t *testing.T) {
	engine, _ := newTestEngine(t, singleWord, DefaultRules())

	engine.Join("r1", "A")
	engine.Join("r1", "B")
	room := engine.Join("r1", "C")
	room.PresenterIndex = 2

	engine.Leave("r1", "C")

	if len(room.Users) != 2 {
		t.Fatalf("Expected 2 users, got %d", len(room.Users))
	}
	if room.PresenterIndex != 0 {
		t.Errorf("Presenter index should clamp to 0, got %d", room.PresenterIndex)
	}
	if _, exists := room.Scores["C"]; exists {
		t.Error("Leaver's score entry must be deleted")
	}
	checkInvariants(t, room)
}

func TestDisconnect_LastConnectionDestroysRoom(t *testing.T) {
	engine, _ := newTestEngine(t, singleWord, DefaultRules())

	room := engine.Join("r1", "A")
	room.Scores["A"] = 5

	engine.Disconnect("r1", "A")

	if _, exists := engine.registry.Get("r1"); exists {
		t.Fatal("Room must be destroyed with its last connection")
	}

	// 同一ID重新加入是一间全新房间
	fresh := engine.Join("r1", "A")
	if fresh.Scores["A"] != 0 {
		t.Errorf("Re-created room must start from 0, got %d", fresh.Scores["A"])
	}
	if fresh.Status != StatusAwaitingAnswer {
		t.Error("Re-created room must be awaiting answers")
	}
}

func TestDisconnect_OthersRemain(t *testing.T) {
	engine, hub := newTestEngine(t, singleWord, DefaultRules())

	engine.Join("r1", "A")
	room := engine.Join("r1", "B")
	hub.setOccupancy("r1", 1) // B 的连接还在

	before := len(hub.ofType("state_update"))
	engine.Disconnect("r1", "A")

	if len(room.Users) != 1 || room.Users[0] != "B" {
		t.Fatalf("Expected only B to remain, got %v", room.Users)
	}
	if len(hub.ofType("state_update")) != before+1 {
		t.Error("Remaining players should get a state update")
	}
	checkInvariants(t, room)
}

// 断线收尾与新连接并发：旧连接的收尾在注销后、销毁前，另一个连接注册进了
// 同一房间。销毁时以 hub 的占用为准，房间必须保留且继续可用。
func TestDisconnect_ReconnectDuringTeardownKeepsRoom(t *testing.T) {
	engine, hub := newTestEngine(t, singleWord, DefaultRules())

	room := engine.Join("r1", "A")

	// A 的连接已从 hub 注销（当时房间为空），收尾尚未执行到销毁；
	// 此时 B 注册并加入了同一房间
	hub.setOccupancy("r1", 1)
	engine.Join("r1", "B")

	// A 的收尾此刻才执行：不能销毁 B 占用的房间，退化为普通离开
	engine.Disconnect("r1", "A")

	got, exists := engine.registry.Get("r1")
	if !exists {
		t.Fatal("Room with a live connection must not be destroyed")
	}
	if got != room {
		t.Fatal("The occupied room instance must survive the teardown")
	}
	if len(room.Users) != 1 || room.Users[0] != "B" {
		t.Fatalf("Expected only B to remain, got %v", room.Users)
	}

	// 房间仍然可用：B 的操作照常广播
	before := len(hub.ofType("chat"))
	engine.HandleChat("r1", "B", "まだいます")
	if len(hub.ofType("chat")) != before+1 {
		t.Error("Room must stay operable for the remaining connection")
	}
	checkInvariants(t, room)
}

func TestRecorder_ArchivesFinishedGame(t *testing.T) {
	engine, _ := newTestEngine(t, singleWord, DefaultRules())
	recorder := &MockRecorder{records: make(chan *models.GameRecord, 1)}
	engine.SetRecorder(recorder)

	engine.Join("r1", "A")
	room := engine.Join("r1", "B")
	room.Scores["B"] = 9

	engine.SubmitAnswer("r1", "B", "テレビ", nil)

	select {
	case record := <-recorder.records:
		if record.Winner != "B" {
			t.Errorf("Expected archived winner B, got %q", record.Winner)
		}
		if record.RoomID != "r1" {
			t.Errorf("Expected room r1, got %q", record.RoomID)
		}
		if record.Scores["B"] != 10 {
			t.Errorf("Expected archived score 10, got %d", record.Scores["B"])
		}
	case <-time.After(time.Second):
		t.Fatal("Game record was not archived")
	}
}

func TestRoundTimer_FiresThroughTimerManager(t *testing.T) {
	rules := DefaultRules()
	rules.RoundDuration = 150 * time.Millisecond
	engine, hub := newTestEngine(t, singleWord, rules)

	engine.Join("r1", "A")
	room := engine.Join("r1", "B")

	deadline := time.Now().Add(2 * time.Second)
	for {
		room.mutex.Lock()
		idx := room.PresenterIndex
		room.mutex.Unlock()
		if idx == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("Round timer did not advance the round")
		}
		time.Sleep(20 * time.Millisecond)
	}

	if len(hub.ofType("time_up")) == 0 {
		t.Error("Expected a time_up broadcast from the timer path")
	}
}
