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

package gateway

import (
	"encoding/binary"
	"encoding/json"
	"io"
	"net"
	"testing"
	"time"

	"mynewt.apache.org/blehostd/bhd/host"
	"mynewt.apache.org/blehostd/bhd/xport"
)

type client struct {
	t    *testing.T
	conn net.Conn
}

func (c *client) tx(s string) {
	b := make([]byte, 2+len(s))
	binary.BigEndian.PutUint16(b, uint16(len(s)))
	copy(b[2:], s)
	if _, err := c.conn.Write(b); err != nil {
		c.t.Fatalf("write failed: %s", err.Error())
	}
}

func (c *client) rx() map[string]interface{} {
	c.conn.SetReadDeadline(time.Now().Add(time.Second))

	hdr := make([]byte, 2)
	if _, err := io.ReadFull(c.conn, hdr); err != nil {
		c.t.Fatalf("read failed: %s", err.Error())
	}

	body := make([]byte, binary.BigEndian.Uint16(hdr))
	if _, err := io.ReadFull(c.conn, body); err != nil {
		c.t.Fatalf("read failed: %s", err.Error())
	}

	m := map[string]interface{}{}
	if err := json.Unmarshal(body, &m); err != nil {
		c.t.Fatalf("bad json from gateway: %s; %s", err.Error(), body)
	}
	return m
}

// Reads messages until one of the given type arrives.
func (c *client) rxType(msgType string) map[string]interface{} {
	for i := 0; i < 16; i++ {
		m := c.rx()
		if m["type"] == msgType {
			return m
		}
	}

	c.t.Fatalf("never received %s", msgType)
	return nil
}

func startGateway(t *testing.T, cfg GatewayCfg) (*client, <-chan error) {
	local, remote := net.Pipe()

	g := NewGateway(xport.New(local), host.NewSimHost(host.NewSimHostCfg()),
		cfg)

	errChan := make(chan error, 1)
	go func() { errChan <- g.Run() }()

	return &client{t: t, conn: remote}, errChan
}

func TestSyncRoundTrip(t *testing.T) {
	c, errChan := startGateway(t, NewGatewayCfg())

	evt := c.rxType("sync_evt")
	if evt["op"] != "event" || evt["synced"] != true {
		t.Fatalf("unexpected sync event: %v", evt)
	}

	c.tx(`{"op":"request","type":"sync","seq":42}`)

	rsp := c.rxType("sync")
	if rsp["op"] != "response" || rsp["seq"] != float64(42) ||
		rsp["synced"] != true {

		t.Fatalf("unexpected sync response: %v", rsp)
	}

	c.conn.Close()

	select {
	case err := <-errChan:
		if err != nil {
			t.Fatalf("gateway failed: %s", err.Error())
		}
	case <-time.After(time.Second):
		t.Fatalf("gateway did not exit after disconnect")
	}
}

func TestErrorResponse(t *testing.T) {
	c, _ := startGateway(t, NewGatewayCfg())
	defer c.conn.Close()

	c.rxType("sync_evt")
	c.tx(`{"op":"request","type":"nonsense","seq":9}`)

	rsp := c.rxType("error")
	if rsp["seq"] != float64(0) || rsp["status"] != float64(-10) {
		t.Fatalf("unexpected error response: %v", rsp)
	}
}

func TestFrameCtr(t *testing.T) {
	cfg := NewGatewayCfg()
	cfg.FrameCtr = true

	c, _ := startGateway(t, cfg)
	defer c.conn.Close()

	evt := c.rxType("sync_evt")
	ctr, ok := evt["ctr"].(float64)
	if !ok {
		t.Fatalf("missing frame counter: %v", evt)
	}

	c.tx(`{"op":"request","type":"sync","seq":1}`)

	rsp := c.rxType("sync")
	if rsp["ctr"] != ctr+1 {
		t.Fatalf("frame counter did not advance: got %v, want %v",
			rsp["ctr"], ctr+1)
	}
}
