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

	"mynewt.apache.org/blehostd/bhd/bhdutil"
	"mynewt.apache.org/blehostd/bhd/host"
	"mynewt.apache.org/blehostd/bhd/proto"
)

/*** GATT client. */

func (d *Dispatcher) discSvcFn(seq proto.BleSeq) host.DiscSvcFn {
	return func(connHandle uint16, status int, svc *host.DiscSvc) {
		evt := &proto.BleDiscSvcEvt{
			MsgHdr:     proto.EvtHdr(proto.MSG_TYPE_DISC_SVC_EVT, seq),
			ConnHandle: connHandle,
			Status:     status,
		}
		if status == 0 && svc != nil {
			evt.Svc = &proto.BleDiscSvc{
				StartHandle: svc.StartHandle,
				EndHandle:   svc.EndHandle,
				Uuid:        svc.Uuid.String(),
			}
		}

		d.send(evt)
	}
}

func (d *Dispatcher) discChrFn(seq proto.BleSeq) host.DiscChrFn {
	return func(connHandle uint16, status int, chr *host.DiscChr) {
		evt := &proto.BleDiscChrEvt{
			MsgHdr:     proto.EvtHdr(proto.MSG_TYPE_DISC_CHR_EVT, seq),
			ConnHandle: connHandle,
			Status:     status,
		}
		if status == 0 && chr != nil {
			evt.Chr = &proto.BleDiscChr{
				DefHandle:  chr.DefHandle,
				ValHandle:  chr.ValHandle,
				Properties: chr.Properties,
				Uuid:       chr.Uuid.String(),
			}
		}

		d.send(evt)
	}
}

func (d *Dispatcher) discDscFn(seq proto.BleSeq) host.DiscDscFn {
	return func(connHandle uint16, status int, chrDefHandle uint16,
		dsc *host.DiscDsc) {

		evt := &proto.BleDiscDscEvt{
			MsgHdr:       proto.EvtHdr(proto.MSG_TYPE_DISC_DSC_EVT, seq),
			ConnHandle:   connHandle,
			Status:       status,
			ChrDefHandle: chrDefHandle,
		}
		if status == 0 && dsc != nil {
			evt.Dsc = &proto.BleDiscDsc{
				Handle: dsc.Handle,
				Uuid:   dsc.Uuid.String(),
			}
		}

		d.send(evt)
	}
}

func discAllSvcsRun(d *Dispatcher, m proto.Msg) (proto.Msg, bool) {
	req := m.(*proto.BleDiscAllSvcsReq)

	err := d.h.DiscAllSvcs(req.ConnHandle, d.discSvcFn(req.Seq))
	return statusRsp(&req.MsgHdr, err)
}

func discSvcUuidRun(d *Dispatcher, m proto.Msg) (proto.Msg, bool) {
	req := m.(*proto.BleDiscSvcUuidReq)

	err := d.h.DiscSvcUuid(req.ConnHandle, req.Uuid, d.discSvcFn(req.Seq))
	return statusRsp(&req.MsgHdr, err)
}

func discAllChrsRun(d *Dispatcher, m proto.Msg) (proto.Msg, bool) {
	req := m.(*proto.BleDiscAllChrsReq)

	err := d.h.DiscAllChrs(req.ConnHandle, req.StartHandle, req.EndHandle,
		d.discChrFn(req.Seq))
	return statusRsp(&req.MsgHdr, err)
}

func discChrUuidRun(d *Dispatcher, m proto.Msg) (proto.Msg, bool) {
	req := m.(*proto.BleDiscChrUuidReq)

	err := d.h.DiscChrUuid(req.ConnHandle, req.StartHandle, req.EndHandle,
		req.Uuid, d.discChrFn(req.Seq))
	return statusRsp(&req.MsgHdr, err)
}

func discAllDscsRun(d *Dispatcher, m proto.Msg) (proto.Msg, bool) {
	req := m.(*proto.BleDiscAllDscsReq)

	err := d.h.DiscAllDscs(req.ConnHandle, req.StartHandle, req.EndHandle,
		d.discDscFn(req.Seq))
	return statusRsp(&req.MsgHdr, err)
}

func writeRun(d *Dispatcher, m proto.Msg) (proto.Msg, bool) {
	req := m.(*proto.BleWriteReq)
	seq := req.Seq

	fn := func(connHandle uint16, status int, attrHandle uint16) {
		d.send(&proto.BleWriteAckEvt{
			MsgHdr:     proto.EvtHdr(proto.MSG_TYPE_WRITE_ACK_EVT, seq),
			ConnHandle: connHandle,
			AttrHandle: attrHandle,
			Status:     status,
		})
	}

	err := d.h.Write(req.ConnHandle, req.AttrHandle, req.Data, fn)
	return statusRsp(&req.MsgHdr, err)
}

func writeCmdRun(d *Dispatcher, m proto.Msg) (proto.Msg, bool) {
	req := m.(*proto.BleWriteReq)

	err := d.h.WriteNoRsp(req.ConnHandle, req.AttrHandle, req.Data)
	return statusRsp(&req.MsgHdr, err)
}

func exchangeMtuRun(d *Dispatcher, m proto.Msg) (proto.Msg, bool) {
	req := m.(*proto.BleExchangeMtuReq)
	seq := req.Seq

	fn := func(connHandle uint16, status int, mtu uint16) {
		d.send(&proto.BleMtuChangeEvt{
			MsgHdr:     proto.EvtHdr(proto.MSG_TYPE_MTU_CHANGE_EVT, seq),
			ConnHandle: connHandle,
			Mtu:        mtu,
			Status:     status,
		})
	}

	return statusRsp(&req.MsgHdr, d.h.ExchangeMtu(req.ConnHandle, fn))
}

func setPreferredMtuRun(d *Dispatcher, m proto.Msg) (proto.Msg, bool) {
	req := m.(*proto.BleSetPreferredMtuReq)
	return statusRsp(&req.MsgHdr, d.h.SetPreferredMtu(req.Mtu))
}

/*** GATT server. */

func clearSvcsRun(d *Dispatcher, m proto.Msg) (proto.Msg, bool) {
	req := m.(*proto.BleClearSvcsReq)
	return statusRsp(&req.MsgHdr, d.reg.Clear())
}

func addSvcsRun(d *Dispatcher, m proto.Msg) (proto.Msg, bool) {
	req := m.(*proto.BleAddSvcsReq)
	return statusRsp(&req.MsgHdr, d.reg.Add(req.Svcs))
}

func commitSvcsRun(d *Dispatcher, m proto.Msg) (proto.Msg, bool) {
	req := m.(*proto.BleCommitSvcsReq)

	rsp := &proto.BleCommitSvcsRsp{
		MsgHdr: proto.RspHdr(req.Type, req.Seq),
		Svcs:   []proto.BleCommitSvc{},
	}

	svcs, err := d.reg.Commit()
	if err != nil {
		log.Warnf("Failed to commit GATT services: %s", err.Error())
		rsp.Status = bhdutil.ErrStatus(err)
	} else {
		rsp.Svcs = svcs
	}

	return rsp, true
}

func accessStatusRun(d *Dispatcher, m proto.Msg) (proto.Msg, bool) {
	req := m.(*proto.BleAccessStatusReq)

	err := d.rv.SetStatus(req.AttStatus, req.Data)
	return statusRsp(&req.MsgHdr, err)
}

func notifyRun(d *Dispatcher, m proto.Msg) (proto.Msg, bool) {
	req := m.(*proto.BleNotifyReq)

	err := d.h.Notify(req.ConnHandle, req.AttrHandle, req.Data)
	return statusRsp(&req.MsgHdr, err)
}

func findChrRun(d *Dispatcher, m proto.Msg) (proto.Msg, bool) {
	req := m.(*proto.BleFindChrReq)

	rsp := &proto.BleFindChrRsp{
		MsgHdr: proto.RspHdr(req.Type, req.Seq),
	}

	defHandle, valHandle, err := d.h.GattsFindChr(req.SvcUuid, req.ChrUuid)
	rsp.Status = bhdutil.ErrStatus(err)
	if err == nil {
		rsp.DefHandle = defHandle
		rsp.ValHandle = valHandle
	}

	return rsp, true
}
