// Copyright 2026 Lukasz Bola. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package stream

import (
	"fmt"
	"sync"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

type LogLevel int

const (
	LogLevelNone LogLevel = iota
	LogLevelTrace
	LogLevelDebug
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

// Translate LogLevel to kgo.LogLevel
func toKgoLoglevel(level LogLevel) kgo.LogLevel {
	switch level {
	// kgo does not define Trace, let's just say Trace == Debug
	case LogLevelTrace, LogLevelDebug:
		return kgo.LogLevelDebug
	case LogLevelInfo:
		return kgo.LogLevelInfo
	case LogLevelWarn:
		return kgo.LogLevelWarn
	case LogLevelError:
		return kgo.LogLevelError
	}
	return kgo.LogLevelNone
}

// The interface used by all orderstream processes for log output. Satisfied by SimpleLogger,
// or bring your own and install it with InitLogger.
type Logger interface {
	Tracef(msg string, args ...any)
	Debugf(msg string, args ...any)
	Infof(msg string, args ...any)
	Warnf(msg string, args ...any)
	Errorf(msg string, args ...any)
}

// SimpleLogger implements Logger and writes to STDOUT.
// The metrics report lines required by the producer/tracker processes are emitted through it at Info.
type SimpleLogger LogLevel

type lazyTimeStampStringer struct{}

func (lazyTimeStampStringer) String() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

var lazyTimeStamp = lazyTimeStampStringer{}

func (sl SimpleLogger) Tracef(msg string, args ...any) {
	if LogLevelTrace >= LogLevel(sl) && LogLevel(sl) != LogLevelNone {
		fmt.Println(lazyTimeStamp, "[TRACE] -", fmt.Sprintf(msg, args...))
	}
}

func (sl SimpleLogger) Debugf(msg string, args ...any) {
	if LogLevelDebug >= LogLevel(sl) && LogLevel(sl) != LogLevelNone {
		fmt.Println(lazyTimeStamp, "[DEBUG] -", fmt.Sprintf(msg, args...))
	}
}

func (sl SimpleLogger) Infof(msg string, args ...any) {
	if LogLevelInfo >= LogLevel(sl) && LogLevel(sl) != LogLevelNone {
		fmt.Println(lazyTimeStamp, "[INFO] -", fmt.Sprintf(msg, args...))
	}
}

func (sl SimpleLogger) Warnf(msg string, args ...any) {
	if LogLevelWarn >= LogLevel(sl) && LogLevel(sl) != LogLevelNone {
		fmt.Println(lazyTimeStamp, "[WARN] -", fmt.Sprintf(msg, args...))
	}
}

func (sl SimpleLogger) Errorf(msg string, args ...any) {
	if LogLevelError >= LogLevel(sl) && LogLevel(sl) != LogLevelNone {
		fmt.Println(lazyTimeStamp, "[ERROR] -", fmt.Sprintf(msg, args...))
	}
}

var log Logger = SimpleLogger(LogLevelError)
var kgoLogger kgo.Logger = kgoLogWrapper(kgo.LogLevelError)

type kgoLogWrapper kgo.LogLevel

func (klw kgoLogWrapper) Level() kgo.LogLevel {
	return kgo.LogLevel(klw)
}

func (klw kgoLogWrapper) Log(level kgo.LogLevel, msg string, keyvals ...interface{}) {
	switch level {
	case kgo.LogLevelDebug:
		log.Debugf(msg, keyvals...)
	case kgo.LogLevelInfo:
		log.Infof(msg, keyvals...)
	case kgo.LogLevelWarn:
		log.Warnf(msg, keyvals...)
	case kgo.LogLevelError:
		log.Errorf(msg, keyvals...)
	}
}

var oneLogger = sync.Once{}

// Initializes the process logger. `kafkaDriverLogLevel` defines the log level for the underlying kgo clients.
// This call should be the first interaction with the stream package. Subsequent calls have no effect.
// If never called, the default uninitialized logger writes to STDOUT at LogLevelError for both orderstream and kgo.
//
//	func main() {
//		stream.InitLogger(stream.SimpleLogger(stream.LogLevelInfo), stream.LogLevelError)
//		// ... initialize your process
//	}
func InitLogger(l Logger, kafkaDriverLogLevel LogLevel) Logger {
	oneLogger.Do(func() {
		log = l
		kgoLogger = kgoLogWrapper(toKgoLoglevel(kafkaDriverLogLevel))
	})
	return log
}

// Log returns the currently installed Logger. Exposed so that the publish/pipeline/monitor
// packages emit through the same sink as the kgo clients.
func Log() Logger {
	return log
}
