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

package xport

import (
	"bytes"
	"encoding/binary"
	"io"
	"net"
	"testing"

	"mynewt.apache.org/blehostd/bhd/bhdutil"
)

func frame(data []byte) []byte {
	b := make([]byte, 2+len(data))
	binary.BigEndian.PutUint16(b, uint16(len(data)))
	copy(b[2:], data)
	return b
}

func writeAsync(t *testing.T, c net.Conn, chunks ...[]byte) <-chan error {
	errChan := make(chan error, 1)
	go func() {
		for _, chunk := range chunks {
			if _, err := c.Write(chunk); err != nil {
				errChan <- err
				return
			}
		}
		errChan <- nil
	}()
	return errChan
}

func TestRx(t *testing.T) {
	local, remote := net.Pipe()
	x := New(local)
	defer x.Close()
	defer remote.Close()

	msg := []byte(`{"op":"request","type":"sync","seq":1}`)

	// Split the frame across writes to exercise partial reads.
	f := frame(msg)
	errChan := writeAsync(t, remote, f[:1], f[1:5], f[5:])

	data, err := x.Rx()
	if err != nil {
		t.Fatalf("rx failed: %s", err.Error())
	}
	if !bytes.Equal(data, msg) {
		t.Fatalf("wrong frame: got %q, want %q", data, msg)
	}

	if err := <-errChan; err != nil {
		t.Fatalf("write failed: %s", err.Error())
	}
}

func TestRxOversized(t *testing.T) {
	local, remote := net.Pipe()
	x := New(local)
	defer x.Close()
	defer remote.Close()

	big := frame(make([]byte, MAX_FRAME_SZ+1))
	small := frame([]byte("ok"))
	errChan := writeAsync(t, remote, big, small)

	data, err := x.Rx()
	if err != nil {
		t.Fatalf("rx failed: %s", err.Error())
	}
	if string(data) != "ok" {
		t.Fatalf("wrong frame after oversized one: %q", data)
	}

	if err := <-errChan; err != nil {
		t.Fatalf("write failed: %s", err.Error())
	}
}

func TestRxMaxSize(t *testing.T) {
	local, remote := net.Pipe()
	x := New(local)
	defer x.Close()
	defer remote.Close()

	msg := bytes.Repeat([]byte{'x'}, MAX_FRAME_SZ)
	errChan := writeAsync(t, remote, frame(msg))

	data, err := x.Rx()
	if err != nil {
		t.Fatalf("rx failed: %s", err.Error())
	}
	if len(data) != MAX_FRAME_SZ {
		t.Fatalf("wrong frame length: got %d, want %d",
			len(data), MAX_FRAME_SZ)
	}

	<-errChan
}

func TestRxEOF(t *testing.T) {
	local, remote := net.Pipe()
	x := New(local)
	defer x.Close()

	remote.Close()

	if _, err := x.Rx(); err != io.EOF {
		t.Fatalf("expected EOF; got %v", err)
	}
}

func TestTx(t *testing.T) {
	local, remote := net.Pipe()
	x := New(local)
	defer x.Close()
	defer remote.Close()

	msg := []byte(`{"op":"response"}`)

	errChan := make(chan error, 1)
	go func() { errChan <- x.Tx(msg) }()

	buf := make([]byte, 2+len(msg))
	if _, err := io.ReadFull(remote, buf); err != nil {
		t.Fatalf("read failed: %s", err.Error())
	}
	if !bytes.Equal(buf, frame(msg)) {
		t.Fatalf("wrong frame: got % x, want % x", buf, frame(msg))
	}

	if err := <-errChan; err != nil {
		t.Fatalf("tx failed: %s", err.Error())
	}
}

func TestTxTooLarge(t *testing.T) {
	local, remote := net.Pipe()
	x := New(local)
	defer x.Close()
	defer remote.Close()

	err := x.Tx(make([]byte, MAX_FRAME_SZ+1))
	if !bhdutil.IsXport(err) {
		t.Fatalf("expected xport error; got %v", err)
	}
}

func TestCloseTwice(t *testing.T) {
	local, remote := net.Pipe()
	defer remote.Close()

	x := New(local)
	if err := x.Close(); err != nil {
		t.Fatalf("close failed: %s", err.Error())
	}
	if err := x.Close(); err != nil {
		t.Fatalf("second close failed: %s", err.Error())
	}
}
