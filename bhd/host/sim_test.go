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

package host

import (
	"testing"
	"time"

	"mynewt.apache.org/blehostd/bhd/bhdutil"
	. "mynewt.apache.org/blehostd/bhd/bledefs"
)

var testPeerAddr = BleAddr{Bytes: [6]byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06}}

func testPeer() SimPeer {
	return SimPeer{
		AddrType: BLE_ADDR_TYPE_PUBLIC,
		Addr:     testPeerAddr,
		Rssi:     -40,
		AdvData:  []byte{0x02, 0x01, 0x06},
		Svcs: []SimSvc{
			{
				Uuid: NewBleUuid16(0x1800),
				Chrs: []SimChr{
					{Uuid: NewBleUuid16(0x2a00), Properties: 0x02},
				},
			},
			{
				Uuid: NewBleUuid16(0x180d),
				Chrs: []SimChr{
					{
						Uuid:       NewBleUuid16(0x2a37),
						Properties: 0x10,
						Dscs:       []BleUuid{NewBleUuid16(0x2902)},
					},
				},
			},
		},
	}
}

func startSimHost(t *testing.T, cfg SimHostCfg) *SimHost {
	h := NewSimHost(cfg)
	synced := make(chan struct{}, 1)
	if err := h.Start(Listener{OnSync: func() { synced <- struct{}{} }}); err != nil {
		t.Fatalf("start failed: %s", err.Error())
	}

	select {
	case <-synced:
	case <-time.After(time.Second):
		t.Fatalf("host never synced")
	}

	return h
}

func gapCollector() (GapEventFn, <-chan GapEvent) {
	ch := make(chan GapEvent, 16)
	return func(evt GapEvent) { ch <- evt }, ch
}

func nextGapEvent(t *testing.T, ch <-chan GapEvent) GapEvent {
	select {
	case evt := <-ch:
		return evt
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for GAP event")
		return GapEvent{}
	}
}

func expectStatus(t *testing.T, err error, status int) {
	if err == nil {
		t.Fatalf("expected error with status %d; got success", status)
	}
	if s := bhdutil.ErrStatus(err); s != status {
		t.Fatalf("wrong status: got %d, want %d (%s)", s, status, err.Error())
	}
}

func connectTestPeer(t *testing.T, h *SimHost) (uint16, <-chan GapEvent) {
	fn, ch := gapCollector()
	err := h.Connect(ConnectParams{
		PeerAddrType: BLE_ADDR_TYPE_PUBLIC,
		PeerAddr:     testPeerAddr,
		DurationMs:   1000,
	}, fn)
	if err != nil {
		t.Fatalf("connect failed: %s", err.Error())
	}

	evt := nextGapEvent(t, ch)
	if evt.Type != GAP_EVENT_CONNECT || evt.Status != 0 {
		t.Fatalf("unexpected connect event: %+v", evt)
	}
	return evt.ConnHandle, ch
}

func TestNotSynced(t *testing.T) {
	h := NewSimHost(NewSimHostCfg())

	expectStatus(t, h.Connect(ConnectParams{}, func(GapEvent) {}),
		ERR_CODE_ENOTSYNCED)
	expectStatus(t, h.ScanCancel(), ERR_CODE_ENOTSYNCED)

	_, err := h.GenRandAddr(true)
	expectStatus(t, err, ERR_CODE_ENOTSYNCED)
}

func TestConnectKnownPeer(t *testing.T) {
	cfg := NewSimHostCfg()
	cfg.Peers = []SimPeer{testPeer()}
	h := startSimHost(t, cfg)
	defer h.Stop()

	handle, _ := connectTestPeer(t, h)
	if handle != 1 {
		t.Fatalf("wrong conn handle: got %d, want 1", handle)
	}

	desc, err := h.ConnFind(handle)
	if err != nil {
		t.Fatalf("conn find failed: %s", err.Error())
	}
	if desc.PeerOtaAddr != testPeerAddr || desc.Role != BLE_ROLE_MASTER {
		t.Fatalf("unexpected descriptor: %s", desc.String())
	}

	_, err = h.ConnFind(handle + 1)
	expectStatus(t, err, ERR_CODE_ENOTCONN)
}

func TestConnectCancel(t *testing.T) {
	h := startSimHost(t, NewSimHostCfg())
	defer h.Stop()

	fn, ch := gapCollector()
	if err := h.Connect(ConnectParams{PeerAddr: testPeerAddr}, fn); err != nil {
		t.Fatalf("connect failed: %s", err.Error())
	}

	expectStatus(t, h.Connect(ConnectParams{}, fn), ERR_CODE_EALREADY)

	if err := h.ConnCancel(); err != nil {
		t.Fatalf("conn cancel failed: %s", err.Error())
	}
	if evt := nextGapEvent(t, ch); evt.Type != GAP_EVENT_CONN_CANCEL {
		t.Fatalf("unexpected event: %+v", evt)
	}

	expectStatus(t, h.ConnCancel(), ERR_CODE_EALREADY)
}

func TestConnectTimeout(t *testing.T) {
	h := startSimHost(t, NewSimHostCfg())
	defer h.Stop()

	fn, ch := gapCollector()
	err := h.Connect(ConnectParams{PeerAddr: testPeerAddr, DurationMs: 10}, fn)
	if err != nil {
		t.Fatalf("connect failed: %s", err.Error())
	}

	evt := nextGapEvent(t, ch)
	if evt.Type != GAP_EVENT_CONNECT || evt.Status != ERR_CODE_ETIMEOUT {
		t.Fatalf("unexpected event: %+v", evt)
	}
}

func TestTerminate(t *testing.T) {
	cfg := NewSimHostCfg()
	cfg.Peers = []SimPeer{testPeer()}
	h := startSimHost(t, cfg)
	defer h.Stop()

	handle, ch := connectTestPeer(t, h)
	if err := h.Terminate(handle, ERR_CODE_HCI_REM_USER_CONN_TERM); err != nil {
		t.Fatalf("terminate failed: %s", err.Error())
	}

	evt := nextGapEvent(t, ch)
	if evt.Type != GAP_EVENT_DISCONNECT ||
		evt.Reason != HciErrCode(ERR_CODE_HCI_CONN_TERM_LOCAL) ||
		evt.Desc.ConnHandle != handle {

		t.Fatalf("unexpected event: %+v", evt)
	}

	expectStatus(t, h.Terminate(handle, 0), ERR_CODE_ENOTCONN)
}

func TestScan(t *testing.T) {
	cfg := NewSimHostCfg()
	cfg.Peers = []SimPeer{testPeer()}
	h := startSimHost(t, cfg)
	defer h.Stop()

	fn, ch := gapCollector()
	if err := h.Scan(ScanParams{DurationMs: 10}, fn); err != nil {
		t.Fatalf("scan failed: %s", err.Error())
	}

	evt := nextGapEvent(t, ch)
	if evt.Type != GAP_EVENT_DISC || evt.Report.Sender.Addr != testPeerAddr {
		t.Fatalf("unexpected event: %+v", evt)
	}

	if evt := nextGapEvent(t, ch); evt.Type != GAP_EVENT_DISC_COMPLETE {
		t.Fatalf("unexpected event: %+v", evt)
	}

	expectStatus(t, h.ScanCancel(), ERR_CODE_EALREADY)
}

func TestAdvertise(t *testing.T) {
	h := startSimHost(t, NewSimHostCfg())
	defer h.Stop()

	expectStatus(t, h.AdvSetData(make([]byte, BLE_HS_ADV_MAX_SZ+1)),
		ERR_CODE_EMSGSIZE)
	if err := h.AdvSetData([]byte{0x02, 0x01, 0x06}); err != nil {
		t.Fatalf("adv set data failed: %s", err.Error())
	}

	fn, ch := gapCollector()
	if err := h.AdvStart(AdvParams{}, fn); err != nil {
		t.Fatalf("adv start failed: %s", err.Error())
	}
	expectStatus(t, h.AdvStart(AdvParams{}, fn), ERR_CODE_EALREADY)

	handle, err := h.SimulatePeerConnect(testPeer())
	if err != nil {
		t.Fatalf("peer connect failed: %s", err.Error())
	}

	evt := nextGapEvent(t, ch)
	if evt.Type != GAP_EVENT_CONNECT || evt.ConnHandle != handle {
		t.Fatalf("unexpected event: %+v", evt)
	}

	// Advertising stops once a peer connects.
	expectStatus(t, h.AdvStop(), ERR_CODE_EALREADY)
}

func TestSecurityNumcmp(t *testing.T) {
	cfg := NewSimHostCfg()
	cfg.Peers = []SimPeer{testPeer()}
	cfg.SmAction = BLE_SM_ACTION_NUMCMP
	h := startSimHost(t, cfg)
	defer h.Stop()

	handle, ch := connectTestPeer(t, h)

	expectStatus(t, h.SmInjectIo(handle, SmIo{Action: BLE_SM_ACTION_NUMCMP}),
		ERR_CODE_ENOENT)

	if err := h.SecurityInitiate(handle); err != nil {
		t.Fatalf("security initiate failed: %s", err.Error())
	}
	evt := nextGapEvent(t, ch)
	if evt.Type != GAP_EVENT_PASSKEY_ACTION || evt.Numcmp != SIM_NUMCMP_VAL {
		t.Fatalf("unexpected event: %+v", evt)
	}

	expectStatus(t, h.SmInjectIo(handle, SmIo{Action: BLE_SM_ACTION_DISP}),
		ERR_CODE_EINVAL)

	err := h.SmInjectIo(handle, SmIo{
		Action:       BLE_SM_ACTION_NUMCMP,
		NumcmpAccept: false,
	})
	if err != nil {
		t.Fatalf("inject io failed: %s", err.Error())
	}

	evt = nextGapEvent(t, ch)
	if evt.Type != GAP_EVENT_ENC_CHANGE ||
		evt.Status != ERR_CODE_SM_US_BASE+SM_ERR_NUMCMP {

		t.Fatalf("unexpected event: %+v", evt)
	}
}

func TestGenRandAddr(t *testing.T) {
	h := startSimHost(t, NewSimHostCfg())
	defer h.Stop()

	for _, nrpa := range []bool{false, true} {
		addr, err := h.GenRandAddr(nrpa)
		if err != nil {
			t.Fatalf("gen rand addr failed: %s", err.Error())
		}

		top := addr.Bytes[0] & 0xc0
		if nrpa && top != 0 {
			t.Errorf("nrpa has type bits set: %s", addr.String())
		}
		if !nrpa && top != 0xc0 {
			t.Errorf("static address missing type bits: %s", addr.String())
		}
	}
}

func TestDiscovery(t *testing.T) {
	cfg := NewSimHostCfg()
	cfg.Peers = []SimPeer{testPeer()}
	h := startSimHost(t, cfg)
	defer h.Stop()

	handle, _ := connectTestPeer(t, h)

	type svcRes struct {
		status int
		svc    *DiscSvc
	}
	svcCh := make(chan svcRes, 8)
	err := h.DiscAllSvcs(handle, func(c uint16, status int, svc *DiscSvc) {
		svcCh <- svcRes{status, svc}
	})
	if err != nil {
		t.Fatalf("disc all svcs failed: %s", err.Error())
	}

	// Peer layout: svc 1-3, svc 4-7 (def 5, val 6, dsc 7).
	wantSvcs := []DiscSvc{
		{StartHandle: 1, EndHandle: 3, Uuid: NewBleUuid16(0x1800)},
		{StartHandle: 4, EndHandle: 7, Uuid: NewBleUuid16(0x180d)},
	}
	for _, want := range wantSvcs {
		r := <-svcCh
		if r.status != 0 || r.svc == nil || *r.svc != want {
			t.Fatalf("unexpected service: status=%d svc=%+v", r.status, r.svc)
		}
	}
	if r := <-svcCh; r.status != ERR_CODE_EDONE || r.svc != nil {
		t.Fatalf("discovery not terminated: %+v", r)
	}

	dscCh := make(chan *DiscDsc, 8)
	err = h.DiscAllDscs(handle, 6, 7,
		func(c uint16, status int, chrDefHandle uint16, dsc *DiscDsc) {
			if chrDefHandle != 6 {
				t.Errorf("wrong chr def handle: %d", chrDefHandle)
			}
			dscCh <- dsc
		})
	if err != nil {
		t.Fatalf("disc all dscs failed: %s", err.Error())
	}

	dsc := <-dscCh
	if dsc == nil || dsc.Handle != 7 ||
		CompareUuids(dsc.Uuid, NewBleUuid16(0x2902)) != 0 {

		t.Fatalf("unexpected descriptor: %+v", dsc)
	}
	if dsc := <-dscCh; dsc != nil {
		t.Fatalf("discovery not terminated: %+v", dsc)
	}
}

func TestWrite(t *testing.T) {
	cfg := NewSimHostCfg()
	cfg.Peers = []SimPeer{testPeer()}
	h := startSimHost(t, cfg)
	defer h.Stop()

	handle, _ := connectTestPeer(t, h)

	statusCh := make(chan int, 2)
	fn := func(c uint16, status int, attrHandle uint16) { statusCh <- status }

	if err := h.Write(handle, 3, []byte{0x01}, fn); err != nil {
		t.Fatalf("write failed: %s", err.Error())
	}
	if s := <-statusCh; s != 0 {
		t.Fatalf("unexpected write status: %d", s)
	}
	if v := h.AttrValue(handle, 3); len(v) != 1 || v[0] != 0x01 {
		t.Fatalf("attribute not written: % x", v)
	}

	if err := h.Write(handle, 99, []byte{0x01}, fn); err != nil {
		t.Fatalf("write failed: %s", err.Error())
	}
	if s := <-statusCh; s != AttErrCode(ATT_ERR_INVALID_HANDLE) {
		t.Fatalf("unexpected write status: %d", s)
	}
}

func TestExchangeMtu(t *testing.T) {
	cfg := NewSimHostCfg()
	cfg.Peers = []SimPeer{testPeer()}
	h := startSimHost(t, cfg)
	defer h.Stop()

	expectStatus(t, h.SetPreferredMtu(BLE_ATT_MTU_DFLT-1), ERR_CODE_EINVAL)
	expectStatus(t, h.SetPreferredMtu(BLE_ATT_MTU_MAX+1), ERR_CODE_EINVAL)

	handle, gapCh := connectTestPeer(t, h)

	mtuCh := make(chan uint16, 1)
	err := h.ExchangeMtu(handle, func(c uint16, status int, mtu uint16) {
		mtuCh <- mtu
	})
	if err != nil {
		t.Fatalf("exchange mtu failed: %s", err.Error())
	}

	if mtu := <-mtuCh; mtu != SIM_PEER_MTU {
		t.Fatalf("wrong mtu: got %d, want %d", mtu, SIM_PEER_MTU)
	}
	evt := nextGapEvent(t, gapCh)
	if evt.Type != GAP_EVENT_MTU || evt.Mtu != SIM_PEER_MTU {
		t.Fatalf("unexpected event: %+v", evt)
	}
}

func TestGattsRegistration(t *testing.T) {
	h := startSimHost(t, NewSimHostCfg())
	defer h.Stop()

	svcUuid := NewBleUuid16(0x1811)
	chrUuid := NewBleUuid16(0x2a47)
	dscUuid := NewBleUuid16(0x2901)

	var accessed []BleGattOp
	access := func(op BleGattOp, connHandle uint16, attrHandle uint16,
		data []byte) (uint8, []byte) {

		accessed = append(accessed, op)
		return 0, []byte{0xab}
	}

	var valHandle, svcHandle, dscHandle uint16
	svcs := []SvcDef{{
		SvcType: BLE_SVC_TYPE_PRIMARY,
		Uuid:    &svcUuid,
		Chrs: []ChrDef{
			{
				Uuid:      &chrUuid,
				Flags:     BLE_GATT_F_READ | BLE_GATT_F_WRITE,
				Access:    access,
				ValHandle: &valHandle,
				Dscs: []DscDef{
					{Uuid: &dscUuid, AttFlags: 0x01, Access: access,
						Handle: &dscHandle},
					{},
				},
			},
			{},
		},
		Handle: &svcHandle,
	}}

	if err := h.GattsCountCfg(svcs); err != nil {
		t.Fatalf("count cfg failed: %s", err.Error())
	}
	if err := h.GattsAddSvcs(svcs); err != nil {
		t.Fatalf("add svcs failed: %s", err.Error())
	}
	if err := h.GattsStart(); err != nil {
		t.Fatalf("start failed: %s", err.Error())
	}

	expectStatus(t, h.GattsAddSvcs(svcs), ERR_CODE_EBUSY)

	if valHandle != 3 || svcHandle != 1 || dscHandle != 4 {
		t.Fatalf("wrong handles: svc=%d val=%d dsc=%d",
			svcHandle, valHandle, dscHandle)
	}

	if sh, err := h.GattsFindSvc(svcUuid); err != nil || sh != 1 {
		t.Fatalf("find svc: handle=%d err=%v", sh, err)
	}
	def, val, err := h.GattsFindChr(svcUuid, chrUuid)
	if err != nil || def != 2 || val != 3 {
		t.Fatalf("find chr: def=%d val=%d err=%v", def, val, err)
	}
	if dh, err := h.GattsFindDsc(svcUuid, chrUuid, dscUuid); err != nil ||
		dh != 4 {

		t.Fatalf("find dsc: handle=%d err=%v", dh, err)
	}

	_, err = h.GattsFindSvc(NewBleUuid16(0x1812))
	expectStatus(t, err, ERR_CODE_ENOENT)

	status, val2, err := h.SimulateAccess(1, 3, false, nil)
	if err != nil || status != 0 || len(val2) != 1 || val2[0] != 0xab {
		t.Fatalf("read access: status=%d val=% x err=%v", status, val2, err)
	}
	if _, _, err := h.SimulateAccess(1, 4, true, []byte{0x01}); err != nil {
		t.Fatalf("write access failed: %s", err.Error())
	}

	want := []BleGattOp{BLE_GATT_ACCESS_OP_READ_CHR, BLE_GATT_ACCESS_OP_WRITE_DSC}
	if len(accessed) != len(want) ||
		accessed[0] != want[0] || accessed[1] != want[1] {

		t.Fatalf("wrong access ops: got %v, want %v", accessed, want)
	}

	if err := h.GattsReset(); err != nil {
		t.Fatalf("reset failed: %s", err.Error())
	}
	_, err = h.GattsFindSvc(svcUuid)
	expectStatus(t, err, ERR_CODE_ENOENT)
}

func TestNotify(t *testing.T) {
	cfg := NewSimHostCfg()
	cfg.Peers = []SimPeer{testPeer()}
	h := startSimHost(t, cfg)
	defer h.Stop()

	svcUuid := NewBleUuid16(0x1811)
	chrUuid := NewBleUuid16(0x2a47)
	var valHandle uint16
	svcs := []SvcDef{{
		SvcType: BLE_SVC_TYPE_PRIMARY,
		Uuid:    &svcUuid,
		Chrs: []ChrDef{{
			Uuid:  &chrUuid,
			Flags: BLE_GATT_F_NOTIFY,
			Access: func(BleGattOp, uint16, uint16, []byte) (uint8, []byte) {
				return 0, nil
			},
			ValHandle: &valHandle,
		}},
	}}
	h.GattsAddSvcs(svcs)
	h.GattsStart()

	handle, _ := connectTestPeer(t, h)

	expectStatus(t, h.Notify(handle, valHandle+1, []byte{0x01}),
		ERR_CODE_ENOENT)
	expectStatus(t, h.Notify(handle+1, valHandle, []byte{0x01}),
		ERR_CODE_ENOTCONN)

	if err := h.Notify(handle, valHandle, []byte{0x01, 0x02}); err != nil {
		t.Fatalf("notify failed: %s", err.Error())
	}

	n := h.Notifications()
	if len(n) != 1 || n[0].AttrHandle != valHandle || len(n[0].Data) != 2 {
		t.Fatalf("unexpected notifications: %+v", n)
	}
}

func TestReset(t *testing.T) {
	cfg := NewSimHostCfg()
	cfg.Peers = []SimPeer{testPeer()}

	h := NewSimHost(cfg)
	evts := make(chan string, 8)
	err := h.Start(Listener{
		OnSync:  func() { evts <- "sync" },
		OnReset: func(reason int) { evts <- "reset" },
	})
	if err != nil {
		t.Fatalf("start failed: %s", err.Error())
	}
	defer h.Stop()

	if e := <-evts; e != "sync" {
		t.Fatalf("unexpected event: %s", e)
	}

	handle, _ := connectTestPeer(t, h)
	if err := h.Reset(); err != nil {
		t.Fatalf("reset failed: %s", err.Error())
	}

	for _, want := range []string{"reset", "sync"} {
		if e := <-evts; e != want {
			t.Fatalf("unexpected event: got %s, want %s", e, want)
		}
	}

	_, err = h.ConnFind(handle)
	expectStatus(t, err, ERR_CODE_ENOTCONN)
}
