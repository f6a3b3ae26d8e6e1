package logger

import (
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logrus is usable immediately; Init redirects it to the rotating log file.
var Logrus = logrus.New()

func Init(logfile string) {
	Logrus.SetReportCaller(true)

	Logrus.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02 15:04:05",
	})

	Logrus.Out = &lumberjack.Logger{
		Filename:   logfile,
		MaxSize:    500,
		MaxBackups: 100,
		MaxAge:     30,
		Compress:   true,
	}

	Logrus.SetLevel(logrus.InfoLevel)
}

func SetLogLevel(runMode string) {
	modeLevel := logrus.InfoLevel

	switch runMode {
	case "debug":
		modeLevel = logrus.DebugLevel
	case "fatal":
		modeLevel = logrus.FatalLevel
	case "error":
		modeLevel = logrus.ErrorLevel
	case "warn":
		modeLevel = logrus.WarnLevel
	default:
		modeLevel = logrus.InfoLevel
	}

	Logrus.SetLevel(modeLevel)
}
