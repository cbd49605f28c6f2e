// +build !windows

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
	"encoding/binary"
	"runtime"
	"sync"
	"time"

	"github.com/JuulLabs-OSS/ble"
	"github.com/JuulLabs-OSS/ble/examples/lib/dev"
	log "github.com/sirupsen/logrus"
	"golang.org/x/net/context"

	"mynewt.apache.org/blehostd/bhd/adv"
	"mynewt.apache.org/blehostd/bhd/bhdutil"
	. "mynewt.apache.org/blehostd/bhd/bledefs"
)

type BleHostCfg struct {
	CtlrName string
}

func NewBleHostCfg() BleHostCfg {
	return BleHostCfg{
		CtlrName: "default",
	}
}

type bleConn struct {
	desc BleConnDesc
	fn   GapEventFn

	// Nil for connections initiated by the peer.
	cln ble.Client

	// Set when the disconnect was requested locally.
	termLocal bool
}

type notifyKey struct {
	connHandle uint16
	attrHandle uint16
}

// A Host backed by the controller that the ble library drives directly
// (HCI socket on Linux, CoreBluetooth on macOS).
type BleHost struct {
	cfg BleHostCfg
	dev ble.Device
	q   *evtQueue
	mtx sync.Mutex

	listener     Listener
	synced       bool
	preferredMtu uint16
	randAddr     *BleAddr

	conns          map[uint16]*bleConn
	peerConns      map[string]uint16
	nextConnHandle uint16

	connFn     GapEventFn
	connCancel context.CancelFunc

	scanFn     GapEventFn
	scanCancel context.CancelFunc

	advFn    GapEventFn
	advTimer *time.Timer
	advData  []byte
	rspData  []byte

	pendingSvcs []SvcDef
	regSvcs     []*ble.Service
	notifiers   map[notifyKey]ble.Notifier
}

func NewBleHost(cfg BleHostCfg) *BleHost {
	return &BleHost{
		cfg:            cfg,
		preferredMtu:   BLE_ATT_MTU_MAX,
		conns:          map[uint16]*bleConn{},
		peerConns:      map[string]uint16{},
		nextConnHandle: 1,
		notifiers:      map[notifyKey]ble.Notifier{},
	}
}

func UuidFromBllUuid(bllUuid ble.UUID) (BleUuid, error) {
	uuid := BleUuid{}

	switch len(bllUuid) {
	case 2:
		uuid.U16 = BleUuid16(binary.LittleEndian.Uint16(bllUuid))
		return uuid, nil

	case 16:
		for i, b := range bllUuid {
			uuid.U128[15-i] = b
		}
		return uuid, nil

	default:
		return uuid, hostErr(ERR_CODE_EINVAL, "invalid UUID: %#v", bllUuid)
	}
}

func BllUuidFromUuid(uuid BleUuid) ble.UUID {
	if uuid.U16 != 0 {
		return ble.UUID16(uint16(uuid.U16))
	}

	u := make(ble.UUID, 16)
	for i, b := range uuid.U128 {
		u[15-i] = b
	}
	return u
}

func bllUuidEqual(bllUuid ble.UUID, uuid BleUuid) bool {
	u, err := UuidFromBllUuid(bllUuid)
	return err == nil && CompareUuids(u, uuid) == 0
}

// Translates an error reported by the ble library into a host status.
func bllErrStatus(err error) int {
	if err == nil {
		return 0
	}
	if bhdutil.ErrorCausedBy(err, context.DeadlineExceeded) {
		return ERR_CODE_ETIMEOUT
	}
	if bhdutil.ErrorCausedBy(err, context.Canceled) {
		return ERR_CODE_EAPP
	}
	if ae, ok := err.(ble.ATTError); ok {
		return AttErrCode(uint8(ae))
	}
	return ERR_CODE_EUNKNOWN
}

func bllHostErr(err error) error {
	return hostErr(bllErrStatus(err), "%s", err.Error())
}

func (h *BleHost) enqueue(fn func()) {
	if h.q != nil {
		h.q.push(fn)
	}
}

// Must be called with the mutex held.
func (h *BleHost) checkSynced() error {
	if !h.synced {
		return hostErr(ERR_CODE_ENOTSYNCED, "host not synced")
	}
	return nil
}

func (h *BleHost) conn(connHandle uint16) (*bleConn, error) {
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

func (h *BleHost) client(connHandle uint16) (ble.Client, error) {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	c, err := h.conn(connHandle)
	if err != nil {
		return nil, err
	}
	if c.cln == nil {
		return nil, hostErr(ERR_CODE_ENOTSUP,
			"client procedures unavailable on peer-initiated connection")
	}
	return c.cln, nil
}

func (h *BleHost) Start(l Listener) error {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	if h.q != nil {
		return hostErr(ERR_CODE_EALREADY, "host already started")
	}

	d, err := dev.NewDevice(h.cfg.CtlrName)
	if err != nil {
		return hostErr(ERR_CODE_EUNKNOWN,
			"failed to open controller \"%s\": %s",
			h.cfg.CtlrName, err.Error())
	}
	ble.SetDefaultDevice(d)

	h.dev = d
	h.listener = l
	h.q = newEvtQueue()
	h.synced = true

	log.Debugf("BLE host started; controller=%s", h.cfg.CtlrName)

	if l.OnSync != nil {
		h.enqueue(l.OnSync)
	}

	return nil
}

func (h *BleHost) stopProcs() {
	if h.connCancel != nil {
		h.connCancel()
		h.connCancel = nil
	}
	if h.scanCancel != nil {
		h.scanCancel()
		h.scanCancel = nil
	}
	stopTimer(&h.advTimer)
	h.connFn = nil
	h.scanFn = nil
	h.advFn = nil
}

func (h *BleHost) Stop() error {
	h.mtx.Lock()
	q := h.q
	h.q = nil
	h.synced = false
	h.stopProcs()
	h.mtx.Unlock()

	if q == nil {
		return hostErr(ERR_CODE_EALREADY, "host not started")
	}

	q.stop()

	if err := ble.Stop(); err != nil {
		return bllHostErr(err)
	}
	return nil
}

func (h *BleHost) Synced() bool {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	return h.synced
}

// Drops every connection and procedure.  The controller itself is left
// open; the host reports a reset followed by a resync.
func (h *BleHost) Reset() error {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	if h.q == nil {
		return hostErr(ERR_CODE_ENOTSYNCED, "host not started")
	}

	h.stopProcs()
	for _, c := range h.conns {
		if c.cln != nil {
			c.termLocal = true
			c.cln.CancelConnection()
		}
	}
	h.conns = map[uint16]*bleConn{}
	h.peerConns = map[string]uint16{}
	h.notifiers = map[notifyKey]ble.Notifier{}

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

// Must be called with the mutex held.
func (h *BleHost) addConn(addr ble.Addr, role BleRole, cln ble.Client,
	fn GapEventFn) *bleConn {

	handle := h.nextConnHandle
	h.nextConnHandle++
	if h.nextConnHandle == BLE_HS_CONN_HANDLE_NONE {
		h.nextConnHandle = 1
	}

	peerAddr, _ := ParseBleAddr(addr.String())

	c := &bleConn{
		desc: BleConnDesc{
			ConnHandle:      handle,
			Role:            role,
			OwnIdAddrType:   BLE_ADDR_TYPE_PUBLIC,
			OwnOtaAddrType:  BLE_ADDR_TYPE_PUBLIC,
			PeerIdAddrType:  BLE_ADDR_TYPE_PUBLIC,
			PeerIdAddr:      peerAddr,
			PeerOtaAddrType: BLE_ADDR_TYPE_PUBLIC,
			PeerOtaAddr:     peerAddr,
		},
		fn:  fn,
		cln: cln,
	}
	if own, err := ParseBleAddr(h.ownAddr()); err == nil {
		c.desc.OwnIdAddr = own
		c.desc.OwnOtaAddr = own
	}
	if h.randAddr != nil {
		c.desc.OwnOtaAddrType = BLE_ADDR_TYPE_RANDOM
		c.desc.OwnOtaAddr = *h.randAddr
	}

	h.conns[handle] = c
	return c
}

func (h *BleHost) watchDisconnect(handle uint16, done <-chan struct{}) {
	go func() {
		<-done

		h.mtx.Lock()
		defer h.mtx.Unlock()

		c := h.conns[handle]
		if c == nil {
			return
		}
		delete(h.conns, handle)
		for k := range h.notifiers {
			if k.connHandle == handle {
				delete(h.notifiers, k)
			}
		}
		for addr, hd := range h.peerConns {
			if hd == handle {
				delete(h.peerConns, addr)
			}
		}

		reason := HciErrCode(ERR_CODE_HCI_REM_USER_CONN_TERM)
		if c.termLocal {
			reason = HciErrCode(ERR_CODE_HCI_CONN_TERM_LOCAL)
		}

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
	}()
}

func (h *BleHost) Connect(p ConnectParams, fn GapEventFn) error {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	if err := h.checkSynced(); err != nil {
		return err
	}
	if h.connFn != nil {
		return hostErr(ERR_CODE_EALREADY, "connect already in progress")
	}

	if err := setConnParams(h.dev, p); err != nil {
		return err
	}

	timeout := time.Duration(p.DurationMs) * time.Millisecond
	if p.DurationMs == 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	h.connFn = fn
	h.connCancel = cancel

	addr := ble.NewAddr(p.PeerAddr.String())
	d := h.dev

	go func() {
		defer cancel()

		log.Debugf("Connecting to %s", addr.String())
		cln, err := d.Dial(ctx, addr)

		h.mtx.Lock()
		defer h.mtx.Unlock()

		// Connect was cancelled or the host was reset.
		if h.connFn == nil {
			if cln != nil {
				cln.CancelConnection()
			}
			return
		}
		h.connFn = nil
		h.connCancel = nil

		if err != nil {
			status := bllErrStatus(err)
			log.Debugf("Connect failed: %s", err.Error())
			h.enqueue(func() {
				fn(GapEvent{
					Type:       GAP_EVENT_CONNECT,
					Status:     status,
					ConnHandle: BLE_HS_CONN_HANDLE_NONE,
				})
			})
			return
		}

		c := h.addConn(cln.Addr(), BLE_ROLE_MASTER, cln, fn)
		handle := c.desc.ConnHandle
		h.watchDisconnect(handle, cln.Disconnected())

		h.enqueue(func() {
			fn(GapEvent{
				Type:       GAP_EVENT_CONNECT,
				Status:     0,
				ConnHandle: handle,
			})
		})
	}()

	return nil
}

func (h *BleHost) Terminate(connHandle uint16, hciReason uint8) error {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	c, err := h.conn(connHandle)
	if err != nil {
		return err
	}
	if c.cln == nil {
		return hostErr(ERR_CODE_ENOTSUP,
			"cannot terminate peer-initiated connection")
	}

	log.Debugf("Terminating connection %d; hci_reason=%d",
		connHandle, hciReason)

	c.termLocal = true
	if err := c.cln.CancelConnection(); err != nil {
		return bllHostErr(err)
	}
	return nil
}

func (h *BleHost) ConnCancel() error {
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
	h.connCancel()
	h.connCancel = nil

	h.enqueue(func() {
		fn(GapEvent{
			Type:       GAP_EVENT_CONN_CANCEL,
			ConnHandle: BLE_HS_CONN_HANDLE_NONE,
		})
	})

	return nil
}

func (h *BleHost) ConnFind(connHandle uint16) (BleConnDesc, error) {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	c, err := h.conn(connHandle)
	if err != nil {
		return BleConnDesc{}, err
	}
	return c.desc, nil
}

// Converts an advertisement into a report.  The library only exposes the
// parsed fields, so the raw data is rebuilt from them.
func advReport(a ble.Advertisement) BleAdvReport {
	r := BleAdvReport{
		EventType: BLE_ADV_EVENT_NONCONN_IND,
		Sender: BleDev{
			AddrType: BLE_ADDR_TYPE_PUBLIC,
		},
		Rssi: int8(a.RSSI()),
	}
	if a.Connectable() {
		r.EventType = BLE_ADV_EVENT_IND
	}
	if addr, err := ParseBleAddr(a.Addr().String()); err == nil {
		r.Sender.Addr = addr
	}

	f := BleAdvFields{}

	if name := a.LocalName(); name != "" {
		f.Name = &name
		f.NameIsComplete = true
	}

	for _, u := range a.Services() {
		bu, err := UuidFromBllUuid(u)
		if err != nil {
			continue
		}
		if bu.U16 != 0 {
			f.Uuids16 = append(f.Uuids16, bu.U16)
		} else {
			f.Uuids128 = append(f.Uuids128, bu.U128)
		}
	}

	if lvl := a.TxPowerLevel(); lvl != 127 {
		pwr := int8(lvl)
		f.TxPwrLvl = &pwr
	}

	for _, sd := range a.ServiceData() {
		if len(sd.UUID) == 2 {
			f.SvcDataUuid16 = append(append(BleBytes{}, sd.UUID...),
				sd.Data...)
			break
		}
	}

	if md := a.ManufacturerData(); len(md) > 0 {
		f.MfgData = append(BleBytes{}, md...)
	}

	data, err := adv.Build(&f)
	if err != nil {
		log.Debugf("Dropping advertising data from %s: %s",
			r.Sender.Addr.String(), err.Error())
		data = nil
	}
	r.Data = data

	return r
}

func (h *BleHost) Scan(p ScanParams, fn GapEventFn) error {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	if err := h.checkSynced(); err != nil {
		return err
	}
	if h.scanFn != nil {
		return hostErr(ERR_CODE_EALREADY, "scan already in progress")
	}

	if err := setScanParams(h.dev, p); err != nil {
		return err
	}

	var ctx context.Context
	var cancel context.CancelFunc
	if p.DurationMs > 0 {
		ctx, cancel = context.WithTimeout(context.Background(),
			time.Duration(p.DurationMs)*time.Millisecond)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}

	h.scanFn = fn
	h.scanCancel = cancel

	d := h.dev
	onAdv := func(a ble.Advertisement) {
		r := advReport(a)
		h.mtx.Lock()
		defer h.mtx.Unlock()

		if h.scanFn == nil {
			return
		}
		h.enqueue(func() {
			fn(GapEvent{
				Type:   GAP_EVENT_DISC,
				Report: r,
			})
		})
	}

	go func() {
		defer cancel()

		err := d.Scan(ctx, !p.FilterDuplicates, onAdv)

		h.mtx.Lock()
		defer h.mtx.Unlock()

		if h.scanFn == nil {
			// Cancelled.
			return
		}
		h.scanFn = nil
		h.scanCancel = nil

		status := 0
		if err != nil && !bhdutil.ErrorCausedBy(err, context.DeadlineExceeded) {
			status = bllErrStatus(err)
			log.Debugf("Scan failed: %s", err.Error())
		}
		h.enqueue(func() {
			fn(GapEvent{
				Type:   GAP_EVENT_DISC_COMPLETE,
				Reason: status,
			})
		})
	}()

	return nil
}

func (h *BleHost) ScanCancel() error {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	if err := h.checkSynced(); err != nil {
		return err
	}
	if h.scanFn == nil {
		return hostErr(ERR_CODE_EALREADY, "no scan in progress")
	}

	h.scanFn = nil
	h.scanCancel()
	h.scanCancel = nil

	return nil
}

func (h *BleHost) AdvStart(p AdvParams, fn GapEventFn) error {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	if err := h.checkSynced(); err != nil {
		return err
	}
	if h.advFn != nil {
		return hostErr(ERR_CODE_EALREADY, "advertising already in progress")
	}

	if err := startAdvertising(h.dev, p, h.advData, h.rspData); err != nil {
		return err
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
				stopAdvertising(h.dev)

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

func (h *BleHost) AdvStop() error {
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

	return stopAdvertising(h.dev)
}

func (h *BleHost) setData(dst *[]byte, data []byte) error {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	if err := h.checkSynced(); err != nil {
		return err
	}
	if len(data) > BLE_HS_ADV_MAX_SZ {
		return hostErr(ERR_CODE_EMSGSIZE,
			"advertising data too long; len=%d", len(data))
	}

	*dst = append([]byte{}, data...)
	return nil
}

func (h *BleHost) AdvSetData(data []byte) error {
	return h.setData(&h.advData, data)
}

func (h *BleHost) AdvRspSetData(data []byte) error {
	return h.setData(&h.rspData, data)
}

func (h *BleHost) SecurityInitiate(connHandle uint16) error {
	return hostErr(ERR_CODE_ENOTSUP, "security manager not supported")
}

func (h *BleHost) SmInjectIo(connHandle uint16, io SmIo) error {
	return hostErr(ERR_CODE_ENOTSUP, "security manager not supported")
}

func (h *BleHost) GenRandAddr(nrpa bool) (BleAddr, error) {
	return genRandAddr(nrpa)
}

func (h *BleHost) SetRandAddr(addr BleAddr) error {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	if err := h.checkSynced(); err != nil {
		return err
	}
	if err := setRandAddr(h.dev, addr); err != nil {
		return err
	}

	a := addr
	h.randAddr = &a
	return nil
}

// Must be called with the mutex held.
func (h *BleHost) ownAddr() string {
	if h.dev == nil {
		return ""
	}
	return ownAddr(h.dev)
}

/*** GATT client. */

func (h *BleHost) discSvcs(connHandle uint16, filter []ble.UUID,
	fn DiscSvcFn) error {

	cln, err := h.client(connHandle)
	if err != nil {
		return err
	}

	go func() {
		svcs, err := cln.DiscoverServices(filter)

		h.mtx.Lock()
		defer h.mtx.Unlock()

		for _, s := range svcs {
			u, uerr := UuidFromBllUuid(s.UUID)
			if uerr != nil {
				continue
			}
			ds := &DiscSvc{
				StartHandle: s.Handle,
				EndHandle:   s.EndHandle,
				Uuid:        u,
			}
			h.enqueue(func() { fn(connHandle, 0, ds) })
		}

		status := ERR_CODE_EDONE
		if err != nil {
			status = bllErrStatus(err)
		}
		h.enqueue(func() { fn(connHandle, status, nil) })
	}()

	return nil
}

func (h *BleHost) DiscAllSvcs(connHandle uint16, fn DiscSvcFn) error {
	return h.discSvcs(connHandle, nil, fn)
}

func (h *BleHost) DiscSvcUuid(connHandle uint16, uuid BleUuid,
	fn DiscSvcFn) error {

	return h.discSvcs(connHandle, []ble.UUID{BllUuidFromUuid(uuid)}, fn)
}

func (h *BleHost) discChrs(connHandle uint16, startHandle uint16,
	endHandle uint16, filter []ble.UUID, fn DiscChrFn) error {

	cln, err := h.client(connHandle)
	if err != nil {
		return err
	}

	svc := &ble.Service{
		Handle:    startHandle,
		EndHandle: endHandle,
	}

	go func() {
		chrs, err := cln.DiscoverCharacteristics(filter, svc)

		h.mtx.Lock()
		defer h.mtx.Unlock()

		for _, c := range chrs {
			u, uerr := UuidFromBllUuid(c.UUID)
			if uerr != nil {
				continue
			}
			dc := &DiscChr{
				DefHandle:  c.Handle,
				ValHandle:  c.ValueHandle,
				Properties: uint8(c.Property),
				Uuid:       u,
			}
			h.enqueue(func() { fn(connHandle, 0, dc) })
		}

		status := ERR_CODE_EDONE
		if err != nil {
			status = bllErrStatus(err)
		}
		h.enqueue(func() { fn(connHandle, status, nil) })
	}()

	return nil
}

func (h *BleHost) DiscAllChrs(connHandle uint16, startHandle uint16,
	endHandle uint16, fn DiscChrFn) error {

	return h.discChrs(connHandle, startHandle, endHandle, nil, fn)
}

func (h *BleHost) DiscChrUuid(connHandle uint16, startHandle uint16,
	endHandle uint16, uuid BleUuid, fn DiscChrFn) error {

	return h.discChrs(connHandle, startHandle, endHandle,
		[]ble.UUID{BllUuidFromUuid(uuid)}, fn)
}

// Descriptors are reported for handles in (startHandle, endHandle].
func (h *BleHost) DiscAllDscs(connHandle uint16, startHandle uint16,
	endHandle uint16, fn DiscDscFn) error {

	cln, err := h.client(connHandle)
	if err != nil {
		return err
	}

	chr := &ble.Characteristic{
		Handle:      startHandle,
		ValueHandle: startHandle,
		EndHandle:   endHandle,
	}

	go func() {
		dscs, err := cln.DiscoverDescriptors(nil, chr)

		h.mtx.Lock()
		defer h.mtx.Unlock()

		for _, d := range dscs {
			u, uerr := UuidFromBllUuid(d.UUID)
			if uerr != nil {
				continue
			}
			dd := &DiscDsc{
				Handle: d.Handle,
				Uuid:   u,
			}
			h.enqueue(func() { fn(connHandle, 0, startHandle, dd) })
		}

		status := ERR_CODE_EDONE
		if err != nil {
			status = bllErrStatus(err)
		}
		h.enqueue(func() { fn(connHandle, status, startHandle, nil) })
	}()

	return nil
}

func (h *BleHost) Write(connHandle uint16, attrHandle uint16, data []byte,
	fn WriteFn) error {

	cln, err := h.client(connHandle)
	if err != nil {
		return err
	}

	chr := &ble.Characteristic{ValueHandle: attrHandle}
	val := append([]byte{}, data...)

	go func() {
		err := cln.WriteCharacteristic(chr, val, false)
		status := bllErrStatus(err)

		h.mtx.Lock()
		defer h.mtx.Unlock()

		h.enqueue(func() { fn(connHandle, status, attrHandle) })
	}()

	return nil
}

func (h *BleHost) WriteNoRsp(connHandle uint16, attrHandle uint16,
	data []byte) error {

	cln, err := h.client(connHandle)
	if err != nil {
		return err
	}

	chr := &ble.Characteristic{ValueHandle: attrHandle}
	if err := cln.WriteCharacteristic(chr, data, true); err != nil {
		return bllHostErr(err)
	}
	return nil
}

func exchangeMtu(cln ble.Client, preferredMtu uint16) (uint16, error) {
	log.Debugf("Exchanging MTU")

	// macOS performs the exchange on its own and the library just reports
	// the current value; 23 means the exchange hasn't completed yet.
	var mtu int
	for i := 0; i < 3; i++ {
		var err error
		mtu, err = cln.ExchangeMTU(int(preferredMtu))
		if err != nil {
			return 0, err
		}

		if runtime.GOOS != "darwin" || mtu != BLE_ATT_MTU_DFLT {
			break
		}

		log.Debugf("macOS reports an MTU of 23; wait and requery")
		time.Sleep(time.Second)
	}

	log.Debugf("Exchanged MTU; ATT MTU = %d", mtu)
	return uint16(mtu), nil
}

func (h *BleHost) ExchangeMtu(connHandle uint16, fn MtuFn) error {
	cln, err := h.client(connHandle)
	if err != nil {
		return err
	}

	h.mtx.Lock()
	preferred := h.preferredMtu
	h.mtx.Unlock()

	go func() {
		mtu, err := exchangeMtu(cln, preferred)
		status := bllErrStatus(err)

		h.mtx.Lock()
		defer h.mtx.Unlock()

		h.enqueue(func() { fn(connHandle, status, mtu) })
	}()

	return nil
}

func (h *BleHost) SetPreferredMtu(mtu uint16) error {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	if mtu < BLE_ATT_MTU_DFLT || mtu > BLE_ATT_MTU_MAX {
		return hostErr(ERR_CODE_EINVAL, "invalid MTU: %d", mtu)
	}

	h.preferredMtu = mtu
	return nil
}

/*** GATT server. */

func (h *BleHost) GattsReset() error {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	h.pendingSvcs = nil
	h.regSvcs = nil
	h.notifiers = map[notifyKey]ble.Notifier{}

	if h.dev != nil {
		if err := h.dev.RemoveAllServices(); err != nil {
			return bllHostErr(err)
		}
	}
	return nil
}

func (h *BleHost) GattsCountCfg(svcs []SvcDef) error {
	return validateSvcs(svcs)
}

func (h *BleHost) GattsAddSvcs(svcs []SvcDef) error {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	if h.regSvcs != nil {
		return hostErr(ERR_CODE_EBUSY, "GATT server already started")
	}
	if err := validateSvcs(svcs); err != nil {
		return err
	}

	h.pendingSvcs = append(h.pendingSvcs, svcs...)
	return nil
}

// Returns the handle of the connection that a peer-initiated access arrived
// on, creating one if this is the first access on the link.
func (h *BleHost) peerConn(conn ble.Conn) uint16 {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	key := conn.RemoteAddr().String()
	if handle, ok := h.peerConns[key]; ok {
		return handle
	}

	fn := h.advFn
	if fn == nil {
		fn = func(GapEvent) {}
	} else {
		h.advFn = nil
		stopTimer(&h.advTimer)
	}

	c := h.addConn(conn.RemoteAddr(), BLE_ROLE_SLAVE, nil, fn)
	handle := c.desc.ConnHandle
	h.peerConns[key] = handle
	h.watchDisconnect(handle, conn.Disconnected())

	h.enqueue(func() {
		fn(GapEvent{
			Type:       GAP_EVENT_CONNECT,
			Status:     0,
			ConnHandle: handle,
		})
	})

	return handle
}

func (h *BleHost) readHandler(op BleGattOp, handle *uint16,
	access AccessFn) ble.ReadHandler {

	return ble.ReadHandlerFunc(func(req ble.Request, rsp ble.ResponseWriter) {
		connHandle := h.peerConn(req.Conn())
		status, val := access(op, connHandle, *handle, nil)
		if status != 0 {
			rsp.SetStatus(ble.ATTError(status))
			return
		}
		rsp.Write(val)
	})
}

func (h *BleHost) writeHandler(op BleGattOp, handle *uint16,
	access AccessFn) ble.WriteHandler {

	return ble.WriteHandlerFunc(func(req ble.Request, rsp ble.ResponseWriter) {
		connHandle := h.peerConn(req.Conn())
		status, _ := access(op, connHandle, *handle, req.Data())
		if status != 0 {
			rsp.SetStatus(ble.ATTError(status))
		}
	})
}

func (h *BleHost) notifyHandler(valHandle *uint16) ble.NotifyHandler {
	return ble.NotifyHandlerFunc(func(req ble.Request, n ble.Notifier) {
		key := notifyKey{
			connHandle: h.peerConn(req.Conn()),
			attrHandle: *valHandle,
		}

		h.mtx.Lock()
		h.notifiers[key] = n
		h.mtx.Unlock()

		<-n.Context().Done()

		h.mtx.Lock()
		if h.notifiers[key] == n {
			delete(h.notifiers, key)
		}
		h.mtx.Unlock()
	})
}

// Builds the library's representation of a service.  Handles are only
// known once the library has registered the service; the handlers read
// them through the returned pointers.
func (h *BleHost) buildSvc(s SvcDef) *ble.Service {
	svc := ble.NewService(BllUuidFromUuid(*s.Uuid))

	for _, cd := range s.Characteristics() {
		chr := ble.NewCharacteristic(BllUuidFromUuid(*cd.Uuid))
		valHandle := &chr.ValueHandle

		if cd.Flags&BLE_GATT_F_READ != 0 {
			chr.HandleRead(h.readHandler(BLE_GATT_ACCESS_OP_READ_CHR,
				valHandle, cd.Access))
		}
		if cd.Flags&(BLE_GATT_F_WRITE|BLE_GATT_F_WRITE_NO_RSP) != 0 {
			chr.HandleWrite(h.writeHandler(BLE_GATT_ACCESS_OP_WRITE_CHR,
				valHandle, cd.Access))
		}
		if cd.Flags&BLE_GATT_F_NOTIFY != 0 {
			chr.HandleNotify(h.notifyHandler(valHandle))
		}
		if cd.Flags&BLE_GATT_F_INDICATE != 0 {
			chr.HandleIndicate(h.notifyHandler(valHandle))
		}
		chr.Property = ble.Property(cd.Flags & 0xff)

		for _, dd := range cd.Descriptors() {
			dsc := ble.NewDescriptor(BllUuidFromUuid(*dd.Uuid))
			if dd.AttFlags&uint8(BLE_ATT_F_READ) != 0 {
				dsc.HandleRead(h.readHandler(BLE_GATT_ACCESS_OP_READ_DSC,
					&dsc.Handle, dd.Access))
			}
			if dd.AttFlags&BLE_ATT_F_WRITE != 0 {
				dsc.HandleWrite(h.writeHandler(BLE_GATT_ACCESS_OP_WRITE_DSC,
					&dsc.Handle, dd.Access))
			}
			chr.AddDescriptor(dsc)
		}

		svc.AddCharacteristic(chr)
	}

	return svc
}

func (h *BleHost) GattsStart() error {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	if err := h.checkSynced(); err != nil {
		return err
	}

	var svcs []*ble.Service
	for _, s := range h.pendingSvcs {
		svcs = append(svcs, h.buildSvc(s))
	}

	if err := h.dev.SetServices(svcs); err != nil {
		return bllHostErr(err)
	}

	// Report the assigned handles back to the definitions.
	for i, s := range h.pendingSvcs {
		if s.Handle != nil {
			*s.Handle = svcs[i].Handle
		}
		for j, cd := range s.Characteristics() {
			bc := svcs[i].Characteristics[j]
			*cd.ValHandle = bc.ValueHandle
			for k, dd := range cd.Descriptors() {
				if dd.Handle != nil {
					*dd.Handle = bc.Descriptors[k].Handle
				}
			}
		}
	}

	h.regSvcs = svcs
	if h.regSvcs == nil {
		h.regSvcs = []*ble.Service{}
	}
	return nil
}

func (h *BleHost) findRegSvc(uuid BleUuid) *ble.Service {
	for _, s := range h.regSvcs {
		if bllUuidEqual(s.UUID, uuid) {
			return s
		}
	}
	return nil
}

func (h *BleHost) findRegChr(svcUuid BleUuid,
	chrUuid BleUuid) *ble.Characteristic {

	s := h.findRegSvc(svcUuid)
	if s == nil {
		return nil
	}
	for _, c := range s.Characteristics {
		if bllUuidEqual(c.UUID, chrUuid) {
			return c
		}
	}
	return nil
}

func (h *BleHost) GattsFindSvc(uuid BleUuid) (uint16, error) {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	s := h.findRegSvc(uuid)
	if s == nil {
		return 0, hostErr(ERR_CODE_ENOENT, "service not found: %s",
			uuid.String())
	}
	return s.Handle, nil
}

func (h *BleHost) GattsFindChr(svcUuid BleUuid,
	chrUuid BleUuid) (uint16, uint16, error) {

	h.mtx.Lock()
	defer h.mtx.Unlock()

	c := h.findRegChr(svcUuid, chrUuid)
	if c == nil {
		return 0, 0, hostErr(ERR_CODE_ENOENT,
			"characteristic not found: %s", chrUuid.String())
	}
	return c.Handle, c.ValueHandle, nil
}

func (h *BleHost) GattsFindDsc(svcUuid BleUuid, chrUuid BleUuid,
	dscUuid BleUuid) (uint16, error) {

	h.mtx.Lock()
	defer h.mtx.Unlock()

	c := h.findRegChr(svcUuid, chrUuid)
	if c != nil {
		for _, d := range c.Descriptors {
			if bllUuidEqual(d.UUID, dscUuid) {
				return d.Handle, nil
			}
		}
	}

	return 0, hostErr(ERR_CODE_ENOENT, "descriptor not found: %s",
		dscUuid.String())
}

// Sends a notification to a peer that has subscribed to the
// characteristic.
func (h *BleHost) Notify(connHandle uint16, attrHandle uint16,
	data []byte) error {

	h.mtx.Lock()
	if _, err := h.conn(connHandle); err != nil {
		h.mtx.Unlock()
		return err
	}
	n := h.notifiers[notifyKey{connHandle, attrHandle}]
	h.mtx.Unlock()

	if n == nil {
		return hostErr(ERR_CODE_ENOENT,
			"peer not subscribed; conn_handle=%d attr_handle=%d",
			connHandle, attrHandle)
	}

	if _, err := n.Write(data); err != nil {
		return bllHostErr(err)
	}
	return nil
}
