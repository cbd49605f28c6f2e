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
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"mynewt.apache.org/blehostd/bhd/bhdutil"
	. "mynewt.apache.org/blehostd/bhd/bledefs"
)

const SIM_PEER_MTU = 256
const SIM_NUMCMP_VAL = 123456

// A characteristic in a simulated peer's GATT profile.
type SimChr struct {
	Uuid       BleUuid
	Properties uint8
	Dscs       []BleUuid
}

type SimSvc struct {
	Uuid BleUuid
	Chrs []SimChr
}

// A remote device known to the simulated controller.
type SimPeer struct {
	AddrType BleAddrType
	Addr     BleAddr
	Rssi     int8
	AdvData  []byte
	Svcs     []SimSvc
}

type SimHostCfg struct {
	OwnAddr BleAddr
	Peers   []SimPeer

	// The action requested of the client when pairing starts.  With
	// BLE_SM_ACTION_NONE, security procedures complete without input.
	SmAction BleSmAction
}

func NewSimHostCfg() SimHostCfg {
	return SimHostCfg{
		OwnAddr:  BleAddr{Bytes: [6]byte{0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f}},
		SmAction: BLE_SM_ACTION_NONE,
	}
}

// Events are executed one at a time, in submission order, by a single
// goroutine.  Submission never blocks.
type evtQueue struct {
	mtx     sync.Mutex
	cond    *sync.Cond
	fns     []func()
	stopped bool
	done    chan struct{}
}

func newEvtQueue() *evtQueue {
	q := &evtQueue{
		done: make(chan struct{}),
	}
	q.cond = sync.NewCond(&q.mtx)

	go q.run()

	return q
}

func (q *evtQueue) push(fn func()) {
	q.mtx.Lock()
	defer q.mtx.Unlock()

	if !q.stopped {
		q.fns = append(q.fns, fn)
		q.cond.Signal()
	}
}

func (q *evtQueue) run() {
	defer close(q.done)

	for {
		q.mtx.Lock()
		for len(q.fns) == 0 && !q.stopped {
			q.cond.Wait()
		}
		if len(q.fns) == 0 {
			q.mtx.Unlock()
			return
		}
		fn := q.fns[0]
		q.fns = q.fns[1:]
		q.mtx.Unlock()

		fn()
	}
}

// Stops the queue after all pending events have executed.
func (q *evtQueue) stop() {
	q.mtx.Lock()
	q.stopped = true
	q.cond.Signal()
	q.mtx.Unlock()

	<-q.done
}

type simAttr struct {
	handle uint16
	op     BleGattOp // The read op; writes use op+1.
	access AccessFn
}

type simDsc struct {
	uuid   BleUuid
	handle uint16
}

type simChr struct {
	uuid      BleUuid
	defHandle uint16
	valHandle uint16
	dscs      []simDsc
}

type simSvc struct {
	uuid   BleUuid
	handle uint16
	chrs   []simChr
}

type simConn struct {
	desc   BleConnDesc
	fn     GapEventFn
	peer   *SimPeer
	mtu    uint16
	values map[uint16][]byte

	smPending bool
}

type SimNotification struct {
	ConnHandle uint16
	AttrHandle uint16
	Data       []byte
}

// An in-process controller.  It answers requests from a fixed set of
// configured peers and never touches real hardware.
type SimHost struct {
	cfg SimHostCfg
	q   *evtQueue
	mtx sync.Mutex

	listener Listener
	synced   bool

	randAddr     *BleAddr
	preferredMtu uint16

	conns          map[uint16]*simConn
	nextConnHandle uint16

	connFn    GapEventFn
	connTimer *time.Timer

	scanFn    GapEventFn
	scanTimer *time.Timer

	advFn    GapEventFn
	advTimer *time.Timer
	advData  []byte
	rspData  []byte

	pendingSvcs   []SvcDef
	regSvcs       []simSvc
	attrs         map[uint16]simAttr
	gattsStarted  bool
	notifications []SimNotification
}

func NewSimHost(cfg SimHostCfg) *SimHost {
	return &SimHost{
		cfg:            cfg,
		preferredMtu:   BLE_ATT_MTU_MAX,
		conns:          map[uint16]*simConn{},
		nextConnHandle: 1,
		attrs:          map[uint16]simAttr{},
	}
}

func hostErr(status int, format string, args ...interface{}) error {
	return bhdutil.FmtHostError(status, format, args...)
}

func stopTimer(t **time.Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}

func (h *SimHost) enqueue(fn func()) {
	if h.q != nil {
		h.q.push(fn)
	}
}

// Must be called with the mutex held.
func (h *SimHost) checkSynced() error {
	if !h.synced {
		return hostErr(ERR_CODE_ENOTSYNCED, "host not synced")
	}
	return nil
}

func (h *SimHost) conn(connHandle uint16) (*simConn, error) {
	if err := h.checkSynced(); err != nil {
		return nil, err
	}

	c := h.conns[connHandle]
	if c == nil {
		return nil, hostErr(ERR_CODE_ENOTCONN,
			"no connection with handle %d", connHandle)
	}
	return c, nil
}

func (h *SimHost) findPeer(addr BleAddr) *SimPeer {
	for i := range h.cfg.Peers {
		if h.cfg.Peers[i].Addr == addr {
			return &h.cfg.Peers[i]
		}
	}
	return nil
}

func (h *SimHost) Start(l Listener) error {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	if h.q != nil {
		return hostErr(ERR_CODE_EALREADY, "host already started")
	}

	h.listener = l
	h.q = newEvtQueue()
	h.synced = true

	log.Debugf("Simulated host started; own_addr=%s", h.cfg.OwnAddr.String())

	if l.OnSync != nil {
		h.enqueue(l.OnSync)
	}

	return nil
}

func (h *SimHost) Stop() error {
	h.mtx.Lock()
	q := h.q
	h.q = nil
	h.synced = false
	stopTimer(&h.connTimer)
	stopTimer(&h.scanTimer)
	stopTimer(&h.advTimer)
	h.mtx.Unlock()

	if q == nil {
		return hostErr(ERR_CODE_EALREADY, "host not started")
	}

	q.stop()
	return nil
}

func (h *SimHost) Synced() bool {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	return h.synced
}

// Drops all connections and procedures, then resyncs.
func (h *SimHost) Reset() error {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	if h.q == nil {
		return hostErr(ERR_CODE_ENOTSYNCED, "host not started")
	}

	h.conns = map[uint16]*simConn{}
	h.connFn = nil
	h.scanFn = nil
	h.advFn = nil
	stopTimer(&h.connTimer)
	stopTimer(&h.scanTimer)
	stopTimer(&h.advTimer)

	l := h.listener
	h.enqueue(func() {
		if l.OnReset != nil {
			l.OnReset(ERR_CODE_EAPP)
		}
		if l.OnSync != nil {
			l.OnSync()
		}
	})

	return nil
}

func (h *SimHost) newConn(peer *SimPeer, peerAddrType BleAddrType,
	peerAddr BleAddr, role BleRole, fn GapEventFn) *simConn {

	handle := h.nextConnHandle
	h.nextConnHandle++

	c := &simConn{
		desc: BleConnDesc{
			ConnHandle:         handle,
			ConnItvl:           0x28,
			SupervisionTimeout: 0x100,
			Role:               role,
			OwnIdAddrType:      BLE_ADDR_TYPE_PUBLIC,
			OwnIdAddr:          h.cfg.OwnAddr,
			OwnOtaAddrType:     BLE_ADDR_TYPE_PUBLIC,
			OwnOtaAddr:         h.cfg.OwnAddr,
			PeerIdAddrType:     peerAddrType,
			PeerIdAddr:         peerAddr,
			PeerOtaAddrType:    peerAddrType,
			PeerOtaAddr:        peerAddr,
		},
		fn:     fn,
		peer:   peer,
		mtu:    BLE_ATT_MTU_DFLT,
		values: map[uint16][]byte{},
	}
	h.conns[handle] = c

	return c
}

func (h *SimHost) Connect(p ConnectParams, fn GapEventFn) error {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	if err := h.checkSynced(); err != nil {
		return err
	}
	if h.connFn != nil {
		return hostErr(ERR_CODE_EALREADY, "connect already in progress")
	}

	peer := h.findPeer(p.PeerAddr)
	if peer != nil {
		c := h.newConn(peer, p.PeerAddrType, p.PeerAddr, BLE_ROLE_MASTER, fn)
		handle := c.desc.ConnHandle
		h.enqueue(func() {
			fn(GapEvent{
				Type:       GAP_EVENT_CONNECT,
				Status:     0,
				ConnHandle: handle,
			})
		})
		return nil
	}

	// Unknown peer; the attempt stays pending until it times out or is
	// cancelled.
	h.connFn = fn
	if p.DurationMs > 0 {
		h.connTimer = time.AfterFunc(
			time.Duration(p.DurationMs)*time.Millisecond, func() {
				h.mtx.Lock()
				defer h.mtx.Unlock()

				if h.connFn == nil {
					return
				}
				cb := h.connFn
				h.connFn = nil
				h.connTimer = nil
				h.enqueue(func() {
					cb(GapEvent{
						Type:       GAP_EVENT_CONNECT,
						Status:     ERR_CODE_ETIMEOUT,
						ConnHandle: BLE_HS_CONN_HANDLE_NONE,
					})
				})
			})
	}

	return nil
}

func (h *SimHost) Terminate(connHandle uint16, hciReason uint8) error {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	c, err := h.conn(connHandle)
	if err != nil {
		return err
	}

	h.disconnect(c, HciErrCode(ERR_CODE_HCI_CONN_TERM_LOCAL))
	return nil
}

// Must be called with the mutex held.
func (h *SimHost) disconnect(c *simConn, reason int) {
	delete(h.conns, c.desc.ConnHandle)

	desc := c.desc
	fn := c.fn
	h.enqueue(func() {
		fn(GapEvent{
			Type:       GAP_EVENT_DISCONNECT,
			ConnHandle: desc.ConnHandle,
			Reason:     reason,
			Desc:       desc,
		})
	})
}

func (h *SimHost) ConnCancel() error {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	if err := h.checkSynced(); err != nil {
		return err
	}
	if h.connFn == nil {
		return hostErr(ERR_CODE_EALREADY, "no connect in progress")
	}

	fn := h.connFn
	h.connFn = nil
	stopTimer(&h.connTimer)

	h.enqueue(func() {
		fn(GapEvent{
			Type:       GAP_EVENT_CONN_CANCEL,
			ConnHandle: BLE_HS_CONN_HANDLE_NONE,
		})
	})

	return nil
}

func (h *SimHost) ConnFind(connHandle uint16) (BleConnDesc, error) {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	c, err := h.conn(connHandle)
	if err != nil {
		return BleConnDesc{}, err
	}

	return c.desc, nil
}

func (h *SimHost) Scan(p ScanParams, fn GapEventFn) error {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	if err := h.checkSynced(); err != nil {
		return err
	}
	if h.scanFn != nil {
		return hostErr(ERR_CODE_EALREADY, "scan already in progress")
	}

	h.scanFn = fn

	for _, peer := range h.cfg.Peers {
		rpt := BleAdvReport{
			EventType: BLE_ADV_EVENT_IND,
			Sender: BleDev{
				AddrType: peer.AddrType,
				Addr:     peer.Addr,
			},
			Rssi: peer.Rssi,
			Data: peer.AdvData,
		}
		h.enqueue(func() {
			fn(GapEvent{
				Type:   GAP_EVENT_DISC,
				Report: rpt,
			})
		})
	}

	if p.DurationMs > 0 {
		h.scanTimer = time.AfterFunc(
			time.Duration(p.DurationMs)*time.Millisecond, func() {
				h.mtx.Lock()
				defer h.mtx.Unlock()

				if h.scanFn == nil {
					return
				}
				cb := h.scanFn
				h.scanFn = nil
				h.scanTimer = nil
				h.enqueue(func() {
					cb(GapEvent{Type: GAP_EVENT_DISC_COMPLETE})
				})
			})
	}

	return nil
}

func (h *SimHost) ScanCancel() error {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	if err := h.checkSynced(); err != nil {
		return err
	}
	if h.scanFn == nil {
		return hostErr(ERR_CODE_EALREADY, "no scan in progress")
	}

	h.scanFn = nil
	stopTimer(&h.scanTimer)
	return nil
}

func (h *SimHost) AdvStart(p AdvParams, fn GapEventFn) error {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	if err := h.checkSynced(); err != nil {
		return err
	}
	if h.advFn != nil {
		return hostErr(ERR_CODE_EALREADY, "already advertising")
	}

	h.advFn = fn

	if p.DurationMs > 0 {
		h.advTimer = time.AfterFunc(
			time.Duration(p.DurationMs)*time.Millisecond, func() {
				h.mtx.Lock()
				defer h.mtx.Unlock()

				if h.advFn == nil {
					return
				}
				cb := h.advFn
				h.advFn = nil
				h.advTimer = nil
				h.enqueue(func() {
					cb(GapEvent{
						Type:   GAP_EVENT_ADV_COMPLETE,
						Reason: ERR_CODE_ETIMEOUT,
					})
				})
			})
	}

	return nil
}

func (h *SimHost) AdvStop() error {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	if err := h.checkSynced(); err != nil {
		return err
	}
	if h.advFn == nil {
		return hostErr(ERR_CODE_EALREADY, "not advertising")
	}

	h.advFn = nil
	stopTimer(&h.advTimer)
	return nil
}

func (h *SimHost) setData(dst *[]byte, data []byte) error {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	if err := h.checkSynced(); err != nil {
		return err
	}
	if len(data) > BLE_HS_ADV_MAX_SZ {
		return hostErr(ERR_CODE_EMSGSIZE, "advertising data too long")
	}

	*dst = append([]byte{}, data...)
	return nil
}

func (h *SimHost) AdvSetData(data []byte) error {
	return h.setData(&h.advData, data)
}

func (h *SimHost) AdvRspSetData(data []byte) error {
	return h.setData(&h.rspData, data)
}

func (h *SimHost) SecurityInitiate(connHandle uint16) error {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	c, err := h.conn(connHandle)
	if err != nil {
		return err
	}
	if c.smPending {
		return hostErr(ERR_CODE_EALREADY, "security procedure in progress")
	}

	if h.cfg.SmAction == BLE_SM_ACTION_NONE {
		h.encrypt(c, 0)
		return nil
	}

	c.smPending = true

	evt := GapEvent{
		Type:       GAP_EVENT_PASSKEY_ACTION,
		ConnHandle: connHandle,
		Action:     h.cfg.SmAction,
	}
	if evt.Action == BLE_SM_ACTION_NUMCMP {
		evt.Numcmp = SIM_NUMCMP_VAL
	}
	fn := c.fn
	h.enqueue(func() { fn(evt) })

	return nil
}

// Must be called with the mutex held.
func (h *SimHost) encrypt(c *simConn, status int) {
	c.smPending = false
	if status == 0 {
		c.desc.Encrypted = true
		c.desc.KeySize = 16
	}

	handle := c.desc.ConnHandle
	fn := c.fn
	h.enqueue(func() {
		fn(GapEvent{
			Type:       GAP_EVENT_ENC_CHANGE,
			Status:     status,
			ConnHandle: handle,
		})
	})
}

func (h *SimHost) SmInjectIo(connHandle uint16, io SmIo) error {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	c, err := h.conn(connHandle)
	if err != nil {
		return err
	}
	if !c.smPending {
		return hostErr(ERR_CODE_ENOENT, "no security procedure in progress")
	}
	if io.Action != h.cfg.SmAction {
		return hostErr(ERR_CODE_EINVAL, "unexpected SM action: %s",
			BleSmActionToString(io.Action))
	}

	status := 0
	if io.Action == BLE_SM_ACTION_NUMCMP && !io.NumcmpAccept {
		status = ERR_CODE_SM_US_BASE + SM_ERR_NUMCMP
	}
	h.encrypt(c, status)

	return nil
}

func (h *SimHost) GenRandAddr(nrpa bool) (BleAddr, error) {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	if err := h.checkSynced(); err != nil {
		return BleAddr{}, err
	}

	return genRandAddr(nrpa)
}

func (h *SimHost) SetRandAddr(addr BleAddr) error {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	if err := h.checkSynced(); err != nil {
		return err
	}

	h.randAddr = &addr
	return nil
}

type simPeerAttr struct {
	svc *SimSvc
	chr *SimChr

	start uint16
	end   uint16
	def   uint16
	val   uint16
	dscs  []uint16
}

// Lays out a peer's profile with sequential handles beginning at 1.
func peerLayout(peer *SimPeer) []simPeerAttr {
	if peer == nil {
		return nil
	}

	var attrs []simPeerAttr

	handle := uint16(1)
	for si := range peer.Svcs {
		svc := &peer.Svcs[si]
		start := handle
		handle++

		first := len(attrs)
		for ci := range svc.Chrs {
			chr := &svc.Chrs[ci]
			a := simPeerAttr{
				svc: svc,
				chr: chr,
				def: handle,
				val: handle + 1,
			}
			handle += 2
			for range chr.Dscs {
				a.dscs = append(a.dscs, handle)
				handle++
			}
			attrs = append(attrs, a)
		}

		if len(svc.Chrs) == 0 {
			attrs = append(attrs, simPeerAttr{svc: svc})
		}
		for i := first; i < len(attrs); i++ {
			attrs[i].start = start
			attrs[i].end = handle - 1
		}
	}

	return attrs
}

func (h *SimHost) discSvcs(connHandle uint16, uuid *BleUuid,
	fn DiscSvcFn) error {

	h.mtx.Lock()
	defer h.mtx.Unlock()

	c, err := h.conn(connHandle)
	if err != nil {
		return err
	}

	var last *SimSvc
	for _, a := range peerLayout(c.peer) {
		if a.svc == last {
			continue
		}
		last = a.svc

		if uuid != nil && CompareUuids(*uuid, a.svc.Uuid) != 0 {
			continue
		}

		svc := DiscSvc{
			StartHandle: a.start,
			EndHandle:   a.end,
			Uuid:        a.svc.Uuid,
		}
		h.enqueue(func() { fn(connHandle, 0, &svc) })
	}

	h.enqueue(func() { fn(connHandle, ERR_CODE_EDONE, nil) })
	return nil
}

func (h *SimHost) DiscAllSvcs(connHandle uint16, fn DiscSvcFn) error {
	return h.discSvcs(connHandle, nil, fn)
}

func (h *SimHost) DiscSvcUuid(connHandle uint16, uuid BleUuid,
	fn DiscSvcFn) error {

	return h.discSvcs(connHandle, &uuid, fn)
}

func (h *SimHost) discChrs(connHandle uint16, startHandle uint16,
	endHandle uint16, uuid *BleUuid, fn DiscChrFn) error {

	h.mtx.Lock()
	defer h.mtx.Unlock()

	c, err := h.conn(connHandle)
	if err != nil {
		return err
	}

	for _, a := range peerLayout(c.peer) {
		if a.chr == nil || a.def < startHandle || a.def > endHandle {
			continue
		}
		if uuid != nil && CompareUuids(*uuid, a.chr.Uuid) != 0 {
			continue
		}

		chr := DiscChr{
			DefHandle:  a.def,
			ValHandle:  a.val,
			Properties: a.chr.Properties,
			Uuid:       a.chr.Uuid,
		}
		h.enqueue(func() { fn(connHandle, 0, &chr) })
	}

	h.enqueue(func() { fn(connHandle, ERR_CODE_EDONE, nil) })
	return nil
}

func (h *SimHost) DiscAllChrs(connHandle uint16, startHandle uint16,
	endHandle uint16, fn DiscChrFn) error {

	return h.discChrs(connHandle, startHandle, endHandle, nil, fn)
}

func (h *SimHost) DiscChrUuid(connHandle uint16, startHandle uint16,
	endHandle uint16, uuid BleUuid, fn DiscChrFn) error {

	return h.discChrs(connHandle, startHandle, endHandle, &uuid, fn)
}

// The start handle is the value handle of the characteristic whose
// descriptors are being discovered.
func (h *SimHost) DiscAllDscs(connHandle uint16, startHandle uint16,
	endHandle uint16, fn DiscDscFn) error {

	h.mtx.Lock()
	defer h.mtx.Unlock()

	c, err := h.conn(connHandle)
	if err != nil {
		return err
	}

	for _, a := range peerLayout(c.peer) {
		if a.chr == nil {
			continue
		}
		for i, dh := range a.dscs {
			if dh <= startHandle || dh > endHandle {
				continue
			}
			dsc := DiscDsc{
				Handle: dh,
				Uuid:   a.chr.Dscs[i],
			}
			h.enqueue(func() { fn(connHandle, 0, startHandle, &dsc) })
		}
	}

	h.enqueue(func() { fn(connHandle, ERR_CODE_EDONE, startHandle, nil) })
	return nil
}

func peerHasAttr(peer *SimPeer, attrHandle uint16) bool {
	for _, a := range peerLayout(peer) {
		if a.chr == nil {
			continue
		}
		if a.val == attrHandle {
			return true
		}
		for _, dh := range a.dscs {
			if dh == attrHandle {
				return true
			}
		}
	}
	return false
}

func (h *SimHost) Write(connHandle uint16, attrHandle uint16, data []byte,
	fn WriteFn) error {

	h.mtx.Lock()
	defer h.mtx.Unlock()

	c, err := h.conn(connHandle)
	if err != nil {
		return err
	}

	status := 0
	if peerHasAttr(c.peer, attrHandle) {
		c.values[attrHandle] = append([]byte{}, data...)
	} else {
		status = AttErrCode(ATT_ERR_INVALID_HANDLE)
	}

	h.enqueue(func() { fn(connHandle, status, attrHandle) })
	return nil
}

func (h *SimHost) WriteNoRsp(connHandle uint16, attrHandle uint16,
	data []byte) error {

	h.mtx.Lock()
	defer h.mtx.Unlock()

	c, err := h.conn(connHandle)
	if err != nil {
		return err
	}

	if peerHasAttr(c.peer, attrHandle) {
		c.values[attrHandle] = append([]byte{}, data...)
	}
	return nil
}

func (h *SimHost) ExchangeMtu(connHandle uint16, fn MtuFn) error {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	c, err := h.conn(connHandle)
	if err != nil {
		return err
	}

	mtu := h.preferredMtu
	if mtu > SIM_PEER_MTU {
		mtu = SIM_PEER_MTU
	}
	c.mtu = mtu

	gapFn := c.fn
	h.enqueue(func() {
		fn(connHandle, 0, mtu)
		gapFn(GapEvent{
			Type:       GAP_EVENT_MTU,
			ConnHandle: connHandle,
			Mtu:        mtu,
		})
	})

	return nil
}

func (h *SimHost) SetPreferredMtu(mtu uint16) error {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	if mtu < BLE_ATT_MTU_DFLT || mtu > BLE_ATT_MTU_MAX {
		return hostErr(ERR_CODE_EINVAL, "invalid MTU: %d", mtu)
	}

	h.preferredMtu = mtu
	return nil
}

func (h *SimHost) GattsReset() error {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	h.pendingSvcs = nil
	h.regSvcs = nil
	h.attrs = map[uint16]simAttr{}
	h.gattsStarted = false

	return nil
}

func validateSvcs(svcs []SvcDef) error {
	for _, s := range svcs {
		if s.Uuid == nil {
			return hostErr(ERR_CODE_EINVAL, "service without UUID")
		}
		if s.SvcType != BLE_SVC_TYPE_PRIMARY &&
			s.SvcType != BLE_SVC_TYPE_SECONDARY {

			return hostErr(ERR_CODE_EINVAL, "invalid service type: %d",
				int(s.SvcType))
		}
		for _, c := range s.Characteristics() {
			if c.Access == nil || c.ValHandle == nil {
				return hostErr(ERR_CODE_EINVAL,
					"incomplete characteristic definition: %s",
					c.Uuid.String())
			}
		}
	}
	return nil
}

func (h *SimHost) GattsCountCfg(svcs []SvcDef) error {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	return validateSvcs(svcs)
}

func (h *SimHost) GattsAddSvcs(svcs []SvcDef) error {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	if h.gattsStarted {
		return hostErr(ERR_CODE_EBUSY, "GATT server already started")
	}
	if err := validateSvcs(svcs); err != nil {
		return err
	}

	h.pendingSvcs = append(h.pendingSvcs, svcs...)
	return nil
}

// Assigns handles to every added service, starting at 1.
func (h *SimHost) GattsStart() error {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	h.regSvcs = nil
	h.attrs = map[uint16]simAttr{}

	handle := uint16(1)
	for _, s := range h.pendingSvcs {
		rs := simSvc{
			uuid:   *s.Uuid,
			handle: handle,
		}
		if s.Handle != nil {
			*s.Handle = handle
		}
		handle++

		for _, c := range s.Characteristics() {
			rc := simChr{
				uuid:      *c.Uuid,
				defHandle: handle,
				valHandle: handle + 1,
			}
			*c.ValHandle = rc.valHandle
			h.attrs[rc.valHandle] = simAttr{
				handle: rc.valHandle,
				op:     BLE_GATT_ACCESS_OP_READ_CHR,
				access: c.Access,
			}
			handle += 2

			for _, d := range c.Descriptors() {
				rc.dscs = append(rc.dscs, simDsc{
					uuid:   *d.Uuid,
					handle: handle,
				})
				if d.Handle != nil {
					*d.Handle = handle
				}
				h.attrs[handle] = simAttr{
					handle: handle,
					op:     BLE_GATT_ACCESS_OP_READ_DSC,
					access: d.Access,
				}
				handle++
			}

			rs.chrs = append(rs.chrs, rc)
		}

		h.regSvcs = append(h.regSvcs, rs)
	}

	h.gattsStarted = true
	return nil
}

func (h *SimHost) findRegSvc(uuid BleUuid) *simSvc {
	for i := range h.regSvcs {
		if CompareUuids(h.regSvcs[i].uuid, uuid) == 0 {
			return &h.regSvcs[i]
		}
	}
	return nil
}

func (h *SimHost) findRegChr(svcUuid BleUuid, chrUuid BleUuid) *simChr {
	s := h.findRegSvc(svcUuid)
	if s == nil {
		return nil
	}
	for i := range s.chrs {
		if CompareUuids(s.chrs[i].uuid, chrUuid) == 0 {
			return &s.chrs[i]
		}
	}
	return nil
}

func (h *SimHost) GattsFindSvc(uuid BleUuid) (uint16, error) {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	s := h.findRegSvc(uuid)
	if s == nil {
		return 0, hostErr(ERR_CODE_ENOENT, "service not found: %s",
			uuid.String())
	}
	return s.handle, nil
}

func (h *SimHost) GattsFindChr(svcUuid BleUuid,
	chrUuid BleUuid) (uint16, uint16, error) {

	h.mtx.Lock()
	defer h.mtx.Unlock()

	c := h.findRegChr(svcUuid, chrUuid)
	if c == nil {
		return 0, 0, hostErr(ERR_CODE_ENOENT,
			"characteristic not found: %s", chrUuid.String())
	}
	return c.defHandle, c.valHandle, nil
}

func (h *SimHost) GattsFindDsc(svcUuid BleUuid, chrUuid BleUuid,
	dscUuid BleUuid) (uint16, error) {

	h.mtx.Lock()
	defer h.mtx.Unlock()

	c := h.findRegChr(svcUuid, chrUuid)
	if c != nil {
		for _, d := range c.dscs {
			if CompareUuids(d.uuid, dscUuid) == 0 {
				return d.handle, nil
			}
		}
	}

	return 0, hostErr(ERR_CODE_ENOENT, "descriptor not found: %s",
		dscUuid.String())
}

func (h *SimHost) Notify(connHandle uint16, attrHandle uint16,
	data []byte) error {

	h.mtx.Lock()
	defer h.mtx.Unlock()

	if _, err := h.conn(connHandle); err != nil {
		return err
	}

	a, ok := h.attrs[attrHandle]
	if !ok || a.op != BLE_GATT_ACCESS_OP_READ_CHR {
		return hostErr(ERR_CODE_ENOENT,
			"no characteristic with value handle %d", attrHandle)
	}

	h.notifications = append(h.notifications, SimNotification{
		ConnHandle: connHandle,
		AttrHandle: attrHandle,
		Data:       append([]byte{}, data...),
	})
	return nil
}

/*** Test hooks. */

// Performs a read or write of a local attribute on behalf of a peer.  The
// access callback runs in the calling goroutine.
func (h *SimHost) SimulateAccess(connHandle uint16, attrHandle uint16,
	write bool, data []byte) (uint8, []byte, error) {

	h.mtx.Lock()
	a, ok := h.attrs[attrHandle]
	h.mtx.Unlock()

	if !ok {
		return 0, nil, hostErr(ERR_CODE_ENOENT,
			"no attribute with handle %d", attrHandle)
	}

	op := a.op
	if write {
		op++
	}

	status, val := a.access(op, connHandle, attrHandle, data)
	return status, val, nil
}

// Connects a peer to the local device as if it had responded to the
// current advertisement.  Advertising stops.
func (h *SimHost) SimulatePeerConnect(peer SimPeer) (uint16, error) {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	if h.advFn == nil {
		return 0, hostErr(ERR_CODE_EINVAL, "not advertising")
	}

	fn := h.advFn
	h.advFn = nil
	stopTimer(&h.advTimer)

	p := peer
	c := h.newConn(&p, peer.AddrType, peer.Addr, BLE_ROLE_SLAVE, fn)
	handle := c.desc.ConnHandle
	h.enqueue(func() {
		fn(GapEvent{
			Type:       GAP_EVENT_CONNECT,
			Status:     0,
			ConnHandle: handle,
		})
	})

	return handle, nil
}

// Delivers a notification or indication from a peer.
func (h *SimHost) SimulateNotifyRx(connHandle uint16, attrHandle uint16,
	indication bool, data []byte) error {

	h.mtx.Lock()
	defer h.mtx.Unlock()

	c, err := h.conn(connHandle)
	if err != nil {
		return err
	}

	fn := c.fn
	evt := GapEvent{
		Type:       GAP_EVENT_NOTIFY_RX,
		ConnHandle: connHandle,
		AttrHandle: attrHandle,
		Indication: indication,
		Data:       append([]byte{}, data...),
	}
	h.enqueue(func() { fn(evt) })

	return nil
}

// Terminates a connection from the peer's side.
func (h *SimHost) SimulateDisconnect(connHandle uint16, reason int) error {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	c, err := h.conn(connHandle)
	if err != nil {
		return err
	}

	h.disconnect(c, reason)
	return nil
}

func (h *SimHost) Notifications() []SimNotification {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	return append([]SimNotification{}, h.notifications...)
}

func (h *SimHost) AttrValue(connHandle uint16, attrHandle uint16) []byte {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	c := h.conns[connHandle]
	if c == nil {
		return nil
	}
	return c.values[attrHandle]
}

func (h *SimHost) AdvData() ([]byte, []byte) {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	return h.advData, h.rspData
}

func (h *SimHost) RandAddr() *BleAddr {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	return h.randAddr
}
