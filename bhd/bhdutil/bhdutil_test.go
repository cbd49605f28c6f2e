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
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"mynewt.apache.org/blehostd/bhd/bledefs"
)

func TestErrStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"host", NewHostError(bledefs.ERR_CODE_EALREADY, "busy"),
			bledefs.ERR_CODE_EALREADY},
		{"wrapped host",
			errors.Wrap(FmtHostError(bledefs.ERR_CODE_ENOTCONN, "conn=%d", 3),
				"terminate"),
			bledefs.ERR_CODE_ENOTCONN},
		{"capacity", FmtCapacityError("too many %s", "chrs"),
			bledefs.ERR_CODE_ENOMEM},
		{"no pending access", NewNoPendingAccessError("idle"),
			bledefs.SYS_ENOENT},
		{"timeout", NewTimeoutError("slow"), bledefs.ERR_CODE_ETIMEOUT},
		{"other", fmt.Errorf("boom"), bledefs.ERR_CODE_EUNKNOWN},
	}

	for _, tt := range tests {
		if got := ErrStatus(tt.err); got != tt.want {
			t.Errorf("%s: got %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestErrorPredicates(t *testing.T) {
	err := errors.Wrap(NewXportError("closed"), "tx")

	if !IsXport(err) {
		t.Errorf("wrapped xport error not recognized")
	}
	if IsHost(err) || IsTimeout(err) || IsCapacity(err) ||
		IsNoPendingAccess(err) {

		t.Errorf("xport error misclassified")
	}

	he := NewHostError(bledefs.ERR_CODE_EBUSY, "busy")
	if ToHost(errors.Wrap(he, "ctx")) != he {
		t.Errorf("ToHost did not unwrap host error")
	}
	if ToHost(err) != nil {
		t.Errorf("ToHost returned non-nil for xport error")
	}
}

func TestErrorCausedBy(t *testing.T) {
	cause := NewXportError("root")
	err := errors.Wrap(errors.Wrap(cause, "inner"), "outer")

	if !ErrorCausedBy(err, cause) {
		t.Errorf("cause not found")
	}
	if ErrorCausedBy(err, NewXportError("root")) {
		t.Errorf("unrelated error reported as cause")
	}
}

func TestBlockerUnblockBeforeWait(t *testing.T) {
	b := Blocker{}
	b.Start()
	if !b.Started() {
		t.Fatalf("blocker not started")
	}

	b.Unblock(5)
	if b.Started() {
		t.Fatalf("blocker still started after unblock")
	}

	v, err := b.Wait(time.Second, nil)
	if err != nil || v != 5 {
		t.Fatalf("got %v, %v; want 5, nil", v, err)
	}
}

func TestBlockerUnblockDuringWait(t *testing.T) {
	b := Blocker{}
	b.Start()

	go func() {
		time.Sleep(10 * time.Millisecond)
		b.Unblock("done")
	}()

	v, err := b.Wait(time.Second, nil)
	if err != nil || v != "done" {
		t.Fatalf("got %v, %v; want done, nil", v, err)
	}
}

func TestBlockerTimeout(t *testing.T) {
	b := Blocker{}
	b.Start()

	_, err := b.Wait(10*time.Millisecond, nil)
	if !IsTimeout(err) {
		t.Fatalf("expected timeout error; got %v", err)
	}
}

func TestBlockerAbort(t *testing.T) {
	b := Blocker{}
	b.Start()

	stopChan := make(chan struct{})
	close(stopChan)

	_, err := b.Wait(time.Second, stopChan)
	if _, ok := err.(*AbortedError); !ok {
		t.Fatalf("expected aborted error; got %v", err)
	}
}

func TestAssert(t *testing.T) {
	defer func() { Debug = false }()

	Debug = false
	Assert(false)

	Debug = true
	Assert(true)

	defer func() {
		if recover() == nil {
			t.Fatalf("failed assertion did not panic")
		}
	}()
	Assert(false)
}

func TestLogWire(t *testing.T) {
	buf := &bytes.Buffer{}
	out := WireLog.Out
	lvl := WireLog.Level
	defer func() {
		WireLog.SetOutput(out)
		WireLog.SetLevel(lvl)
	}()

	WireLog.SetOutput(buf)
	WireLog.SetLevel(log.DebugLevel)

	LogWire(1, "tx", "00 01")

	s := buf.String()
	if !strings.Contains(s, "{tx}") || !strings.Contains(s, "bhdutil_test.go") ||
		!strings.Contains(s, "00 01") {

		t.Fatalf("unexpected wire log: %q", s)
	}
}
