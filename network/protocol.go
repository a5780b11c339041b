package network

import "encoding/json"

// 入站消息类型
const (
	MsgTypeSubmitAnswer = "submit_answer"
	MsgTypeChat         = "chat"
	MsgTypeGetState     = "get_state"
)

// 出站消息类型
const (
	MsgTypeStateUpdate     = "state_update"
	MsgTypeTimeUp          = "time_up"
	MsgTypeCorrectAnswer   = "correct_answer"
	MsgTypeAnswerResult    = "answer_result"
	MsgTypeAllAttemptsUsed = "all_attempts_used"
	MsgTypeGameOver        = "game_over"
)

// Message is the JSON envelope exchanged with clients.
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// NewMessage marshals payload into a Message envelope.
func NewMessage(msgType string, payload interface{}) (*Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Message{Type: msgType, Data: data}, nil
}

// SubmitAnswerData 解答提出
type SubmitAnswerData struct {
	Answer string `json:"answer"`
}

// ChatData チャット送信
type ChatData struct {
	Message string `json:"message"`
}

// AnswerResultData 单播给解答者的判定结果
type AnswerResultData struct {
	Correct      bool   `json:"correct"`
	Message      string `json:"message"`
	AttemptsLeft int    `json:"attempts_left"`
}

// CorrectAnswerData 正解广播
type CorrectAnswerData struct {
	Answerer string `json:"answerer"`
	Word     string `json:"word"`
}

// AllAttemptsUsedData 全员解答机会耗尽
type AllAttemptsUsedData struct {
	Word string `json:"word"`
}

// ChatBroadcastData 聊天广播（含出题者违规标记）
type ChatBroadcastData struct {
	User    string `json:"user"`
	Message string `json:"message"`
	Penalty bool   `json:"penalty"`
}
