package logger

import (
	"go.uber.org/zap"
)

// New builds a JSON production logger for release mode and a console
// development logger for everything else.
func New(mode string) *zap.Logger {
	var (
		l   *zap.Logger
		err error
	)
	if mode == "release" {
		l, err = zap.NewProduction()
	} else {
		l, err = zap.NewDevelopment()
	}
	if err != nil {
		panic(err)
	}
	return l
}
