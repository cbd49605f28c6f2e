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

// Package gateway ties the socket transport to the request dispatcher.
package gateway

import (
	"io"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"mynewt.apache.org/blehostd/bhd/dispatch"
	"mynewt.apache.org/blehostd/bhd/host"
	"mynewt.apache.org/blehostd/bhd/proto"
	"mynewt.apache.org/blehostd/bhd/xport"
)

type GatewayCfg struct {
	AccessTimeout time.Duration

	// Stamp every outgoing message with a debug frame counter.
	FrameCtr bool
}

func NewGatewayCfg() GatewayCfg {
	return GatewayCfg{
		AccessTimeout: 10 * time.Second,
	}
}

type Gateway struct {
	x   *xport.Xport
	h   host.Host
	d   *dispatch.Dispatcher
	enc *proto.Encoder
}

func NewGateway(x *xport.Xport, h host.Host, cfg GatewayCfg) *Gateway {
	g := &Gateway{
		x:   x,
		h:   h,
		enc: proto.NewEncoder(cfg.FrameCtr),
	}
	g.d = dispatch.NewDispatcher(h, cfg.AccessTimeout, g.send)

	return g
}

func (g *Gateway) send(m proto.Msg) {
	data, err := g.enc.Encode(m)
	if err != nil {
		log.Errorf("Failed to encode %s: %s",
			proto.MsgTypeToString(m.Hdr().Type), err.Error())
		return
	}

	if err := g.x.Tx(data); err != nil {
		log.Warnf("Failed to send %s: %s",
			proto.MsgTypeToString(m.Hdr().Type), err.Error())
	}
}

// Starts the host and serves requests until the client disconnects or the
// transport fails.  Returns nil on a clean disconnect.
func (g *Gateway) Run() error {
	if err := g.h.Start(g.d.Listener()); err != nil {
		return errors.Wrap(err, "failed to start host")
	}

	defer func() {
		g.d.Close()
		if err := g.h.Stop(); err != nil {
			log.Warnf("Failed to stop host: %s", err.Error())
		}
	}()

	for {
		data, err := g.x.Rx()
		if err != nil {
			if err == io.EOF {
				log.Infof("Client disconnected")
				return nil
			}
			return err
		}

		rsp, ok := g.d.Process(data)
		if ok {
			g.send(rsp)
		}
	}
}

// Unblocks Run() by closing the transport.
func (g *Gateway) Stop() error {
	return g.x.Close()
}
