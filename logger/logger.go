package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

// LogLevel adalah level log aplikasi, dipetakan ke level logrus.
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARNING
	ERROR
	FATAL
)

var log = newLogger()

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// GetLogger mengembalikan instance logrus yang dipakai bersama.
func GetLogger() *logrus.Logger {
	return log
}

func SetLevel(level LogLevel) {
	log.SetLevel(toLogrus(level))
}

func toLogrus(level LogLevel) logrus.Level {
	switch level {
	case DEBUG:
		return logrus.DebugLevel
	case INFO:
		return logrus.InfoLevel
	case WARNING:
		return logrus.WarnLevel
	case ERROR:
		return logrus.ErrorLevel
	case FATAL:
		return logrus.FatalLevel
	default:
		return logrus.InfoLevel
	}
}

func Debug(args ...interface{})                   { log.Debug(args...) }
func Debugf(format string, args ...interface{})   { log.Debugf(format, args...) }
func Info(args ...interface{})                    { log.Info(args...) }
func Infof(format string, args ...interface{})    { log.Infof(format, args...) }
func Warning(args ...interface{})                 { log.Warning(args...) }
func Warningf(format string, args ...interface{}) { log.Warningf(format, args...) }
func Error(args ...interface{})                   { log.Error(args...) }
func Errorf(format string, args ...interface{})   { log.Errorf(format, args...) }
func Fatalf(format string, args ...interface{})   { log.Fatalf(format, args...) }

// LogBlockEvent mencatat blok yang baru ditambahkan ke chain.
func LogBlockEvent(index uint64, digest string, txCount int, proof uint64) {
	log.WithFields(logrus.Fields{
		"event":   "block_appended",
		"index":   index,
		"digest":  digest,
		"txCount": txCount,
		"proof":   proof,
	}).Info("Block appended")
}

// LogTransactionEvent mencatat transaksi yang masuk ke pending pool.
func LogTransactionEvent(sender, recipient, amount string, nextIndex uint64) {
	log.WithFields(logrus.Fields{
		"event":     "transaction_queued",
		"sender":    sender,
		"recipient": recipient,
		"amount":    amount,
		"nextBlock": nextIndex,
	}).Debug("Transaction queued")
}
