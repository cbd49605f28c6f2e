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

package dispatch

import (
	log "github.com/sirupsen/logrus"

	"mynewt.apache.org/blehostd/bhd/adv"
	"mynewt.apache.org/blehostd/bhd/bhdutil"
	. "mynewt.apache.org/blehostd/bhd/bledefs"
	"mynewt.apache.org/blehostd/bhd/host"
	"mynewt.apache.org/blehostd/bhd/proto"
)

func scanEvt(seq proto.BleSeq, r *BleAdvReport) *proto.BleScanEvt {
	evt := &proto.BleScanEvt{
		MsgHdr:    proto.EvtHdr(proto.MSG_TYPE_SCAN_EVT, seq),
		EventType: r.EventType,
		AddrType:  r.Sender.AddrType,
		Addr:      r.Sender.Addr,
		Rssi:      r.Rssi,
		Data:      BleBytes(r.Data),
	}

	if r.DirectAddr != nil {
		addrType := r.DirectAddr.AddrType
		addr := r.DirectAddr.Addr
		evt.DirectAddrType = &addrType
		evt.DirectAddr = &addr
	}

	// Malformed advertising data is still reported raw.
	fields, err := adv.Parse(r.Data)
	if err != nil {
		log.Debugf("Failed to parse advertising data from %s: %s",
			r.Sender.String(), err.Error())
	} else {
		evt.SetFields(&fields)
	}

	return evt
}

// Translates GAP events into client events.  Every event carries seq, except
// notify_rx, which gets a fresh one.
func (d *Dispatcher) gapEventFn(seq proto.BleSeq) host.GapEventFn {
	return func(e host.GapEvent) {
		var evt proto.Msg

		switch e.Type {
		case host.GAP_EVENT_CONNECT:
			ce := &proto.BleConnectEvt{
				MsgHdr: proto.EvtHdr(proto.MSG_TYPE_CONNECT_EVT, seq),
				Status: e.Status,
			}
			if e.Status == 0 {
				handle := e.ConnHandle
				ce.ConnHandle = &handle
			}
			log.Infof("connect; status=%d handle=%d", e.Status, e.ConnHandle)
			evt = ce

		case host.GAP_EVENT_DISCONNECT:
			log.Infof("disconnect; handle=%d reason=%d",
				e.Desc.ConnHandle, e.Reason)
			evt = &proto.BleDisconnectEvt{
				MsgHdr:       proto.EvtHdr(proto.MSG_TYPE_DISCONNECT_EVT, seq),
				Reason:       e.Reason,
				BleConnAddrs: proto.NewBleConnAddrs(&e.Desc),
			}

		case host.GAP_EVENT_CONN_CANCEL:
			evt = &proto.BleConnCancelEvt{
				MsgHdr: proto.EvtHdr(proto.MSG_TYPE_CONN_CANCEL_EVT, seq),
			}

		case host.GAP_EVENT_DISC:
			evt = scanEvt(seq, &e.Report)

		case host.GAP_EVENT_DISC_COMPLETE:
			log.Infof("scan_tmo")
			evt = &proto.BleScanTmoEvt{
				MsgHdr: proto.EvtHdr(proto.MSG_TYPE_SCAN_TMO_EVT, seq),
			}

		case host.GAP_EVENT_ADV_COMPLETE:
			evt = &proto.BleAdvCompleteEvt{
				MsgHdr: proto.EvtHdr(proto.MSG_TYPE_ADV_COMPLETE_EVT, seq),
				Reason: e.Reason,
			}

		case host.GAP_EVENT_ENC_CHANGE:
			log.Infof("enc_change; conn_handle=%d status=%d",
				e.ConnHandle, e.Status)
			evt = &proto.BleEncChangeEvt{
				MsgHdr:     proto.EvtHdr(proto.MSG_TYPE_ENC_CHANGE_EVT, seq),
				ConnHandle: e.ConnHandle,
				Status:     e.Status,
			}

		case host.GAP_EVENT_MTU:
			evt = &proto.BleMtuChangeEvt{
				MsgHdr:     proto.EvtHdr(proto.MSG_TYPE_MTU_CHANGE_EVT, seq),
				ConnHandle: e.ConnHandle,
				Mtu:        e.Mtu,
			}

		case host.GAP_EVENT_PASSKEY_ACTION:
			pe := &proto.BlePasskeyEvt{
				MsgHdr:     proto.EvtHdr(proto.MSG_TYPE_PASSKEY_EVT, seq),
				ConnHandle: e.ConnHandle,
				Action:     e.Action,
			}
			if e.Action == BLE_SM_ACTION_NUMCMP {
				numcmp := e.Numcmp
				pe.Numcmp = &numcmp
			}
			evt = pe

		case host.GAP_EVENT_NOTIFY_RX:
			evt = &proto.BleNotifyRxEvt{
				MsgHdr: proto.EvtHdr(proto.MSG_TYPE_NOTIFY_RX_EVT,
					proto.NextEvtSeq()),
				ConnHandle: e.ConnHandle,
				AttrHandle: e.AttrHandle,
				Indication: e.Indication,
				Data:       BleBytes(e.Data),
			}

		default:
			log.Debugf("Ignoring GAP event: %s", e.Type.String())
			return
		}

		d.send(evt)
	}
}

func connectRun(d *Dispatcher, m proto.Msg) (proto.Msg, bool) {
	req := m.(*proto.BleConnectReq)

	log.Infof("Initiating connection to %s with parameters: "+
		"scan_itvl=%d scan_window=%d itvl_min=%d itvl_max=%d latency=%d "+
		"supervision_timeout=%d min_ce_len=%d max_ce_len=%d",
		req.PeerAddr.String(), req.ScanItvl, req.ScanWindow, req.ItvlMin,
		req.ItvlMax, req.Latency, req.SupervisionTimeout, req.MinCeLen,
		req.MaxCeLen)

	p := host.ConnectParams{
		OwnAddrType:        req.OwnAddrType,
		PeerAddrType:       req.PeerAddrType,
		PeerAddr:           req.PeerAddr,
		DurationMs:         req.DurationMs,
		ScanItvl:           req.ScanItvl,
		ScanWindow:         req.ScanWindow,
		ItvlMin:            req.ItvlMin,
		ItvlMax:            req.ItvlMax,
		Latency:            req.Latency,
		SupervisionTimeout: req.SupervisionTimeout,
		MinCeLen:           req.MinCeLen,
		MaxCeLen:           req.MaxCeLen,
	}

	return statusRsp(&req.MsgHdr, d.h.Connect(p, d.gapEventFn(req.Seq)))
}

func terminateRun(d *Dispatcher, m proto.Msg) (proto.Msg, bool) {
	req := m.(*proto.BleTerminateReq)
	return statusRsp(&req.MsgHdr, d.h.Terminate(req.ConnHandle, req.HciReason))
}

func connCancelRun(d *Dispatcher, m proto.Msg) (proto.Msg, bool) {
	req := m.(*proto.BleConnCancelReq)
	return statusRsp(&req.MsgHdr, d.h.ConnCancel())
}

func connFindRun(d *Dispatcher, m proto.Msg) (proto.Msg, bool) {
	req := m.(*proto.BleConnFindReq)

	rsp := &proto.BleConnFindRsp{
		MsgHdr: proto.RspHdr(req.Type, req.Seq),
	}

	desc, err := d.h.ConnFind(req.ConnHandle)
	rsp.Status = bhdutil.ErrStatus(err)
	if err == nil {
		rsp.SetDesc(&desc)
	}

	return rsp, true
}

func securityInitiateRun(d *Dispatcher, m proto.Msg) (proto.Msg, bool) {
	req := m.(*proto.BleSecurityInitiateReq)
	return statusRsp(&req.MsgHdr, d.h.SecurityInitiate(req.ConnHandle))
}

func scanRun(d *Dispatcher, m proto.Msg) (proto.Msg, bool) {
	req := m.(*proto.BleScanReq)

	p := host.ScanParams{
		OwnAddrType:      req.OwnAddrType,
		DurationMs:       req.DurationMs,
		Itvl:             req.Itvl,
		Window:           req.Window,
		FilterPolicy:     req.FilterPolicy,
		Limited:          req.Limited,
		Passive:          req.Passive,
		FilterDuplicates: req.FilterDuplicates,
	}

	return statusRsp(&req.MsgHdr, d.h.Scan(p, d.gapEventFn(req.Seq)))
}

func scanCancelRun(d *Dispatcher, m proto.Msg) (proto.Msg, bool) {
	req := m.(*proto.BleScanCancelReq)
	return statusRsp(&req.MsgHdr, d.h.ScanCancel())
}

func advStartRun(d *Dispatcher, m proto.Msg) (proto.Msg, bool) {
	req := m.(*proto.BleAdvStartReq)

	p := host.AdvParams{
		OwnAddrType:   req.OwnAddrType,
		DurationMs:    req.DurationMs,
		ConnMode:      req.ConnMode,
		DiscMode:      req.DiscMode,
		ItvlMin:       req.ItvlMin,
		ItvlMax:       req.ItvlMax,
		ChannelMap:    req.ChannelMap,
		FilterPolicy:  req.FilterPolicy,
		HighDutyCycle: req.HighDutyCycle,
		PeerAddrType:  BLE_ADDR_TYPE_NONE,
	}
	if req.PeerAddrType != nil {
		p.PeerAddrType = *req.PeerAddrType
		p.PeerAddr = *req.PeerAddr
	}

	return statusRsp(&req.MsgHdr, d.h.AdvStart(p, d.gapEventFn(req.Seq)))
}

func advStopRun(d *Dispatcher, m proto.Msg) (proto.Msg, bool) {
	req := m.(*proto.BleAdvStopReq)
	return statusRsp(&req.MsgHdr, d.h.AdvStop())
}

func advSetDataRun(d *Dispatcher, m proto.Msg) (proto.Msg, bool) {
	req := m.(*proto.BleAdvSetDataReq)
	return statusRsp(&req.MsgHdr, d.h.AdvSetData(req.Data))
}

func advRspSetDataRun(d *Dispatcher, m proto.Msg) (proto.Msg, bool) {
	req := m.(*proto.BleAdvSetDataReq)
	return statusRsp(&req.MsgHdr, d.h.AdvRspSetData(req.Data))
}

func advFieldsRun(d *Dispatcher, m proto.Msg) (proto.Msg, bool) {
	req := m.(*proto.BleAdvFieldsReq)

	rsp := &proto.BleAdvFieldsRsp{
		MsgHdr: proto.RspHdr(req.Type, req.Seq),
	}

	data, err := adv.Build(&req.BleAdvFields)
	rsp.Status = bhdutil.ErrStatus(err)
	if err == nil {
		b := BleBytes(data)
		rsp.Data = &b
	}

	return rsp, true
}
