/**
 * Licensed to the Apache Software Foundation (ASF) under one
 * or more contributor license agreements.  See the NOTICE file
 * distributed with this work for additional information
 * regarding copyright ownership.  The ASF licenses this file
 * to you under the Apache License, Version 2.0 (the
 * "License"); you may not use this file except in compliance
 * with the License.  You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
 * KIND, either express or implied.  See the License for the
 * specific language governing permissions and limitations
 * under the License.
 */

package bhdutil

import (
	"fmt"
	"io"
	"os"
	"path"
	"runtime"

	log "github.com/sirupsen/logrus"
)

// Enables internal consistency checks.
var Debug bool

var logFormatter = log.TextFormatter{
	FullTimestamp:   true,
	TimestampFormat: "2006-01-02 15:04:05.999",
}

// Logs traffic crossing the socket and the host boundary.  Kept separate so
// that wire dumps can be silenced without losing the rest of the debug
// output.
var WireLog = &log.Logger{
	Out:       os.Stderr,
	Formatter: &logFormatter,
	Hooks:     make(log.LevelHooks),
	Level:     log.InfoLevel,
}

func SetLogLevel(level log.Level) {
	log.SetLevel(level)
	log.SetFormatter(&logFormatter)
	WireLog.SetLevel(level)
}

func SetLogOutput(w io.Writer) {
	log.SetOutput(w)
	WireLog.SetOutput(w)
}

// Checks an internal invariant.  Only enforced when Debug is set.
func Assert(cond bool) {
	if Debug && !cond {
		panic("Failed assertion")
	}
}

// Panics unconditionally.  Used for conditions that indicate a missing
// internal table entry rather than bad input.
func Fatalf(format string, args ...interface{}) {
	s := fmt.Sprintf(format, args...)
	log.Error(s)
	panic(s)
}

func LogWire(parentLevel int, title string, extra string) {
	_, file, line, _ := runtime.Caller(parentLevel)
	file = path.Base(file)
	WireLog.Debugf("{%s} [%s:%d] %s", title, file, line, extra)
}
