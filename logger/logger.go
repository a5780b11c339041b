package logger

import (
	"go.uber.org/zap"
)

// Log 默认为 nop logger，测试代码无需初始化
var Log = zap.NewNop().Sugar()

func Init() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic("failed to initialize zap logger: " + err.Error())
	}
	Log = logger.Sugar()
}
