// words/words.go
package words

import (
	"errors"
	"math/rand"
)

// ErrEmptyBank is returned when a bank is created without any words.
var ErrEmptyBank = errors.New("word bank is empty")

// Bank 题库，保存候选词并支持随机抽取
type Bank struct {
	words []string
}

// NewBank creates a bank over the given word list. The list must be non-empty.
func NewBank(list []string) (*Bank, error) {
	if len(list) == 0 {
		return nil, ErrEmptyBank
	}
	words := make([]string, len(list))
	copy(words, list)
	return &Bank{words: words}, nil
}

// DefaultBank returns a bank over the built-in katakana word list.
func DefaultBank() *Bank {
	bank, err := NewBank(defaultWords)
	if err != nil {
		panic("built-in word list is empty: " + err.Error())
	}
	return bank
}

// PickRandom 随机抽取一个词
func (b *Bank) PickRandom() string {
	return b.words[rand.Intn(len(b.words))]
}

// Size returns the number of candidate words.
func (b *Bank) Size() int {
	return len(b.words)
}

// ContainsKatakana reports whether text contains any katakana character,
// including the prolonged-sound mark ー (U+30FC).
func ContainsKatakana(text string) bool {
	for _, r := range text {
		if (r >= 'ァ' && r <= 'ヶ') || r == 'ー' {
			return true
		}
	}
	return false
}
