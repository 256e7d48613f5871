package util

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Debug is the highest DPrintf level that is printed.
var Debug uint64 = 0

// Log is the logger behind DPrintf. Callers that want structured output can
// use it directly.
var Log = &logrus.Logger{
	Out:       os.Stderr,
	Formatter: &logrus.TextFormatter{DisableTimestamp: true},
	Hooks:     make(logrus.LevelHooks),
	Level:     logrus.InfoLevel,
}

func DPrintf(level uint64, format string, a ...interface{}) {
	if level <= Debug {
		Log.Printf(format, a...)
	}
}

func RoundUp(n uint64, sz uint64) uint64 {
	return (n + sz - 1) / sz
}

func Min(n uint64, m uint64) uint64 {
	if n < m {
		return n
	} else {
		return m
	}
}

// SumOverflows reports whether n+m wraps around.
func SumOverflows(n uint64, m uint64) bool {
	return n+m < n
}
