package logging

import (
	"gopkg.in/natefinch/lumberjack.v2"
)

// Rotation limits for NewFileAppender.
const (
	DefaultLogFileMaxSizeMB  = 100
	DefaultLogFileMaxBackups = 2
)

// FileAppender writes console formatted lines to a log file that is rotated once it grows past
// DefaultLogFileMaxSizeMB. Rotated files are compressed.
type FileAppender struct {
	ConsoleAppender
	rotator *lumberjack.Logger
}

// NewFileAppender returns an appender writing to filename. The file and its directory are
// created on the first write.
func NewFileAppender(filename string) *FileAppender {
	rotator := &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    DefaultLogFileMaxSizeMB,
		MaxBackups: DefaultLogFileMaxBackups,
		Compress:   true,
	}
	return &FileAppender{ConsoleAppender: NewWriterAppender(rotator), rotator: rotator}
}

// Close closes the current log file.
func (fa *FileAppender) Close() error {
	return fa.rotator.Close()
}
