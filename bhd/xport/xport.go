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

// Package xport carries length-prefixed frames over the Unix domain socket
// shared with the client.
package xport

import (
	"encoding/binary"
	"encoding/hex"
	"io"
	"io/ioutil"
	"net"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"mynewt.apache.org/blehostd/bhd/bhdutil"
)

const MAX_FRAME_SZ = 10240

const hdrSz = 2

type Xport struct {
	conn   net.Conn
	txMtx  sync.Mutex
	rxBuf  []byte
	closed bool
	mtx    sync.Mutex
}

// Wraps an established connection.
func New(conn net.Conn) *Xport {
	return &Xport{
		conn:  conn,
		rxBuf: make([]byte, MAX_FRAME_SZ),
	}
}

// Connects to the client's socket.
func Dial(sockPath string) (*Xport, error) {
	conn, err := net.Dial("unix", sockPath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect to %s", sockPath)
	}

	log.Infof("Connected to %s", sockPath)
	return New(conn), nil
}

// Sends a single frame.  Safe to call from multiple goroutines; frames are
// never interleaved.
func (x *Xport) Tx(data []byte) error {
	if len(data) > MAX_FRAME_SZ {
		return bhdutil.FmtXportError(
			"frame too large; len=%d max=%d", len(data), MAX_FRAME_SZ)
	}

	buf := make([]byte, hdrSz+len(data))
	binary.BigEndian.PutUint16(buf, uint16(len(data)))
	copy(buf[hdrSz:], data)

	x.txMtx.Lock()
	defer x.txMtx.Unlock()

	bhdutil.LogWire(1, "tx", "\n"+hex.Dump(data))

	if _, err := x.conn.Write(buf); err != nil {
		return errors.Wrap(err, "failed to write frame")
	}

	return nil
}

// Blocks until a complete frame arrives.  Frames longer than MAX_FRAME_SZ
// are discarded.  Returns io.EOF once the peer closes the socket cleanly.
func (x *Xport) Rx() ([]byte, error) {
	hdr := make([]byte, hdrSz)

	for {
		if _, err := io.ReadFull(x.conn, hdr); err != nil {
			if err == io.EOF {
				return nil, err
			}
			return nil, errors.Wrap(err, "failed to read frame header")
		}

		flen := int(binary.BigEndian.Uint16(hdr))
		if flen > MAX_FRAME_SZ {
			log.Warnf("Discarding oversized frame; len=%d max=%d",
				flen, MAX_FRAME_SZ)
			if _, err := io.CopyN(ioutil.Discard, x.conn, int64(flen)); err != nil {
				return nil, errors.Wrap(err, "failed to discard frame")
			}
			continue
		}

		if _, err := io.ReadFull(x.conn, x.rxBuf[:flen]); err != nil {
			return nil, errors.Wrap(err, "failed to read frame body")
		}

		data := make([]byte, flen)
		copy(data, x.rxBuf[:flen])

		bhdutil.LogWire(1, "rx", "\n"+hex.Dump(data))
		return data, nil
	}
}

func (x *Xport) Close() error {
	x.mtx.Lock()
	defer x.mtx.Unlock()

	if x.closed {
		return nil
	}
	x.closed = true

	return x.conn.Close()
}
