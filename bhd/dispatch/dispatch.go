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

// Package dispatch runs decoded requests against the BLE host and
// translates host callbacks into events.
package dispatch

import (
	"time"

	"github.com/fatih/structs"
	log "github.com/sirupsen/logrus"

	"mynewt.apache.org/blehostd/bhd/bhdutil"
	. "mynewt.apache.org/blehostd/bhd/bledefs"
	"mynewt.apache.org/blehostd/bhd/gatts"
	"mynewt.apache.org/blehostd/bhd/host"
	"mynewt.apache.org/blehostd/bhd/proto"
)

// Delivers an unsolicited event to the client.  May be called from any
// goroutine.
type EvtFn func(evt proto.Msg)

// Runs a request.  Returns the response and whether it should be sent.
type reqRunFn func(d *Dispatcher, req proto.Msg) (proto.Msg, bool)

type Dispatcher struct {
	h   host.Host
	reg *gatts.Registry
	rv  *gatts.Rendezvous
	evt EvtFn
}

func NewDispatcher(h host.Host, accessTimeout time.Duration,
	evt EvtFn) *Dispatcher {

	d := &Dispatcher{
		h:   h,
		evt: evt,
	}

	d.rv = gatts.NewRendezvous(accessTimeout,
		func(e *proto.BleAccessEvt) { d.send(e) })
	d.reg = gatts.NewRegistry(h, d.rv.AccessFn)

	return d
}

func (d *Dispatcher) Host() host.Host {
	return d.h
}

func (d *Dispatcher) send(evt proto.Msg) {
	if d.evt != nil {
		d.evt(evt)
	}
}

// Returns host lifecycle callbacks that report sync and reset to the
// client.
func (d *Dispatcher) Listener() host.Listener {
	return host.Listener{
		OnSync: func() {
			log.Infof("Host synced")
			d.send(&proto.BleSyncEvt{
				MsgHdr: proto.EvtHdr(proto.MSG_TYPE_SYNC_EVT,
					proto.NextEvtSeq()),
				Synced: true,
			})
		},
		OnReset: func(reason int) {
			log.Infof("Host reset; reason=%d (%s)",
				reason, ErrCodeToString(reason))
			d.send(&proto.BleResetEvt{
				MsgHdr: proto.EvtHdr(proto.MSG_TYPE_RESET_EVT,
					proto.NextEvtSeq()),
				Reason: reason,
			})
		},
	}
}

// Aborts any pending attribute access.
func (d *Dispatcher) Close() {
	d.rv.Close()
}

var reqRunMap = map[proto.MsgType]reqRunFn{
	proto.MSG_TYPE_SYNC:              syncRun,
	proto.MSG_TYPE_CONNECT:           connectRun,
	proto.MSG_TYPE_TERMINATE:         terminateRun,
	proto.MSG_TYPE_DISC_ALL_SVCS:     discAllSvcsRun,
	proto.MSG_TYPE_DISC_SVC_UUID:     discSvcUuidRun,
	proto.MSG_TYPE_DISC_ALL_CHRS:     discAllChrsRun,
	proto.MSG_TYPE_DISC_CHR_UUID:     discChrUuidRun,
	proto.MSG_TYPE_DISC_ALL_DSCS:     discAllDscsRun,
	proto.MSG_TYPE_WRITE:             writeRun,
	proto.MSG_TYPE_WRITE_CMD:         writeCmdRun,
	proto.MSG_TYPE_EXCHANGE_MTU:      exchangeMtuRun,
	proto.MSG_TYPE_GEN_RAND_ADDR:     genRandAddrRun,
	proto.MSG_TYPE_SET_RAND_ADDR:     setRandAddrRun,
	proto.MSG_TYPE_CONN_CANCEL:       connCancelRun,
	proto.MSG_TYPE_SCAN:              scanRun,
	proto.MSG_TYPE_SCAN_CANCEL:       scanCancelRun,
	proto.MSG_TYPE_SET_PREFERRED_MTU: setPreferredMtuRun,
	proto.MSG_TYPE_SECURITY_INITIATE: securityInitiateRun,
	proto.MSG_TYPE_CONN_FIND:         connFindRun,
	proto.MSG_TYPE_RESET:             resetRun,
	proto.MSG_TYPE_ADV_START:         advStartRun,
	proto.MSG_TYPE_ADV_STOP:          advStopRun,
	proto.MSG_TYPE_ADV_SET_DATA:      advSetDataRun,
	proto.MSG_TYPE_ADV_RSP_SET_DATA:  advRspSetDataRun,
	proto.MSG_TYPE_ADV_FIELDS:        advFieldsRun,
	proto.MSG_TYPE_CLEAR_SVCS:        clearSvcsRun,
	proto.MSG_TYPE_ADD_SVCS:          addSvcsRun,
	proto.MSG_TYPE_COMMIT_SVCS:       commitSvcsRun,
	proto.MSG_TYPE_ACCESS_STATUS:     accessStatusRun,
	proto.MSG_TYPE_NOTIFY:            notifyRun,
	proto.MSG_TYPE_FIND_CHR:          findChrRun,
	proto.MSG_TYPE_SM_INJECT_IO:      smInjectIoRun,
}

func reqFields(req proto.Msg) log.Fields {
	s := structs.New(req)
	s.TagName = "json"
	return log.Fields(s.Map())
}

// Decodes and runs a single request.  Every failure is reported as a
// response; the returned bool is false only if no response should be sent.
func (d *Dispatcher) Process(data []byte) (proto.Msg, bool) {
	req, errRsp := proto.DecodeRequest(data)
	if errRsp != nil {
		log.Debugf("Rejecting request: status=%d msg=%s",
			errRsp.Status, errRsp.Msg)
		return errRsp, true
	}

	hdr := req.Hdr()

	fn := reqRunMap[hdr.Type]
	if fn == nil {
		return proto.NewBleErrRsp(hdr.Seq, SYS_ERANGE, "invalid type"), true
	}

	log.WithFields(reqFields(req)).Debugf("Running %s request",
		proto.MsgTypeToString(hdr.Type))

	return fn(d, req)
}

/*** Helpers. */

func statusRsp(hdr *proto.MsgHdr, err error) (proto.Msg, bool) {
	if err != nil {
		log.Debugf("%s request failed: %s",
			proto.MsgTypeToString(hdr.Type), err.Error())
	}

	return &proto.BleStatusRsp{
		MsgHdr: proto.RspHdr(hdr.Type, hdr.Seq),
		Status: bhdutil.ErrStatus(err),
	}, true
}

/*** Misc. */

func syncRun(d *Dispatcher, m proto.Msg) (proto.Msg, bool) {
	req := m.(*proto.BleSyncReq)

	return &proto.BleSyncRsp{
		MsgHdr: proto.RspHdr(req.Type, req.Seq),
		Synced: d.h.Synced(),
	}, true
}

func genRandAddrRun(d *Dispatcher, m proto.Msg) (proto.Msg, bool) {
	req := m.(*proto.BleGenRandAddrReq)

	rsp := &proto.BleGenRandAddrRsp{
		MsgHdr: proto.RspHdr(req.Type, req.Seq),
	}

	addr, err := d.h.GenRandAddr(req.Nrpa)
	rsp.Status = bhdutil.ErrStatus(err)
	if err == nil {
		rsp.Addr = &addr
	}

	return rsp, true
}

func setRandAddrRun(d *Dispatcher, m proto.Msg) (proto.Msg, bool) {
	req := m.(*proto.BleSetRandAddrReq)
	return statusRsp(&req.MsgHdr, d.h.SetRandAddr(req.Addr))
}

func resetRun(d *Dispatcher, m proto.Msg) (proto.Msg, bool) {
	req := m.(*proto.BleResetReq)

	if err := d.h.Reset(); err != nil {
		log.Warnf("Failed to reset host: %s", err.Error())
	}

	return &proto.BleResetRsp{
		MsgHdr: proto.RspHdr(req.Type, req.Seq),
	}, true
}

func smInjectIoRun(d *Dispatcher, m proto.Msg) (proto.Msg, bool) {
	req := m.(*proto.BleSmInjectIoReq)

	io := host.SmIo{
		Action:       req.Action,
		Passkey:      req.Passkey,
		NumcmpAccept: req.NumcmpAccept,
	}
	copy(io.OobData[:], req.OobData)

	return statusRsp(&req.MsgHdr, d.h.SmInjectIo(req.ConnHandle, io))
}
