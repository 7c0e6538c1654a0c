package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New はサービス全体で使うロガーを作成する
// debug が true の場合、リサンプラーの拒否理由などの診断が有効になる
func New(debug bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05.000"}
	return zerolog.New(output).Level(level).With().Timestamp().Logger()
}

// NewJSON は構造化JSON出力のロガーを作成する（サービス連携向け）
func NewJSON(debug bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano
	return zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
}
