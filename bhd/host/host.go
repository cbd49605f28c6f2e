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

// Package host defines the boundary between the gateway and the BLE host
// stack.  Every operation starts host work and returns immediately; results
// that arrive later are delivered through the callback supplied with the
// operation.
package host

import (
	"crypto/rand"

	. "mynewt.apache.org/blehostd/bhd/bledefs"
)

type ConnectParams struct {
	OwnAddrType        BleAddrType
	PeerAddrType       BleAddrType
	PeerAddr           BleAddr
	DurationMs         int
	ScanItvl           uint16
	ScanWindow         uint16
	ItvlMin            uint16
	ItvlMax            uint16
	Latency            uint16
	SupervisionTimeout uint16
	MinCeLen           uint16
	MaxCeLen           uint16
}

type ScanParams struct {
	OwnAddrType      BleAddrType
	DurationMs       int
	Itvl             uint16
	Window           uint16
	FilterPolicy     BleScanFilterPolicy
	Limited          bool
	Passive          bool
	FilterDuplicates bool
}

type AdvParams struct {
	OwnAddrType   BleAddrType
	DurationMs    int
	ConnMode      BleAdvConnMode
	DiscMode      BleAdvDiscMode
	ItvlMin       uint16
	ItvlMax       uint16
	ChannelMap    uint8
	FilterPolicy  BleAdvFilterPolicy
	HighDutyCycle bool

	// Only used for directed advertising.
	PeerAddrType BleAddrType
	PeerAddr     BleAddr
}

// Input to an outstanding security manager procedure.  Only the field
// matching the action is meaningful.
type SmIo struct {
	Action       BleSmAction
	OobData      [16]byte
	Passkey      uint32
	NumcmpAccept bool
}

type GapEventType int

const (
	GAP_EVENT_CONNECT GapEventType = iota
	GAP_EVENT_DISCONNECT
	GAP_EVENT_CONN_CANCEL
	GAP_EVENT_DISC
	GAP_EVENT_DISC_COMPLETE
	GAP_EVENT_ADV_COMPLETE
	GAP_EVENT_ENC_CHANGE
	GAP_EVENT_MTU
	GAP_EVENT_PASSKEY_ACTION
	GAP_EVENT_NOTIFY_RX
)

var gapEventTypeStringMap = map[GapEventType]string{
	GAP_EVENT_CONNECT:        "connect",
	GAP_EVENT_DISCONNECT:     "disconnect",
	GAP_EVENT_CONN_CANCEL:    "conn_cancel",
	GAP_EVENT_DISC:           "disc",
	GAP_EVENT_DISC_COMPLETE:  "disc_complete",
	GAP_EVENT_ADV_COMPLETE:   "adv_complete",
	GAP_EVENT_ENC_CHANGE:     "enc_change",
	GAP_EVENT_MTU:            "mtu",
	GAP_EVENT_PASSKEY_ACTION: "passkey_action",
	GAP_EVENT_NOTIFY_RX:      "notify_rx",
}

func (t GapEventType) String() string {
	s, ok := gapEventTypeStringMap[t]
	if !ok {
		return "???"
	}
	return s
}

// A connection, scan, or advertising event.  Which fields are filled in
// depends on the event type.
type GapEvent struct {
	Type GapEventType

	// connect, enc_change
	Status int

	// connect, enc_change, mtu, passkey_action, notify_rx
	ConnHandle uint16

	// disconnect, adv_complete
	Reason int

	// disconnect
	Desc BleConnDesc

	// disc
	Report BleAdvReport

	// mtu
	Mtu uint16

	// passkey_action
	Action BleSmAction
	Numcmp uint32

	// notify_rx
	AttrHandle uint16
	Indication bool
	Data       []byte
}

type GapEventFn func(evt GapEvent)

type DiscSvc struct {
	StartHandle uint16
	EndHandle   uint16
	Uuid        BleUuid
}

type DiscChr struct {
	DefHandle  uint16
	ValHandle  uint16
	Properties uint8
	Uuid       BleUuid
}

type DiscDsc struct {
	Handle uint16
	Uuid   BleUuid
}

// Discovery callbacks are invoked once per discovered attribute with a
// status of 0, and then a final time with a nonzero status and no
// attribute.  A successful procedure terminates with ERR_CODE_EDONE.
type DiscSvcFn func(connHandle uint16, status int, svc *DiscSvc)
type DiscChrFn func(connHandle uint16, status int, chr *DiscChr)
type DiscDscFn func(connHandle uint16, status int, chrDefHandle uint16,
	dsc *DiscDsc)

type WriteFn func(connHandle uint16, status int, attrHandle uint16)
type MtuFn func(connHandle uint16, status int, mtu uint16)

// Called when a peer accesses a local attribute.  Returns the ATT status to
// report to the peer and, for reads, the attribute value.
type AccessFn func(op BleGattOp, connHandle uint16, attrHandle uint16,
	data []byte) (uint8, []byte)

// A local GATT definition.  A list of characteristics or descriptors ends
// at the first entry with a nil UUID.
type DscDef struct {
	Uuid       *BleUuid
	AttFlags   uint8
	MinKeySize uint8
	Access     AccessFn

	// Filled in by the host when the definition is registered.
	Handle *uint16
}

type ChrDef struct {
	Uuid       *BleUuid
	Flags      uint16
	MinKeySize uint8
	Access     AccessFn
	Dscs       []DscDef

	// Filled in by the host when the definition is registered.
	ValHandle *uint16
}

type SvcDef struct {
	SvcType BleSvcType
	Uuid    *BleUuid
	Chrs    []ChrDef

	// Filled in by the host when the definition is registered.
	Handle *uint16
}

// Returns the characteristics preceding the terminating entry.
func (s *SvcDef) Characteristics() []ChrDef {
	for i, c := range s.Chrs {
		if c.Uuid == nil {
			return s.Chrs[:i]
		}
	}
	return s.Chrs
}

// Returns the descriptors preceding the terminating entry.
func (c *ChrDef) Descriptors() []DscDef {
	for i, d := range c.Dscs {
		if d.Uuid == nil {
			return c.Dscs[:i]
		}
	}
	return c.Dscs
}

// Host lifecycle callbacks.
type Listener struct {
	OnSync  func()
	OnReset func(reason int)
}

// Errors returned by a Host carry a status code that is reported to the
// client unchanged; see bhdutil.ErrStatus().
type Host interface {
	Start(l Listener) error
	Stop() error
	Synced() bool
	Reset() error

	Connect(p ConnectParams, fn GapEventFn) error
	Terminate(connHandle uint16, hciReason uint8) error
	ConnCancel() error
	ConnFind(connHandle uint16) (BleConnDesc, error)

	Scan(p ScanParams, fn GapEventFn) error
	ScanCancel() error

	AdvStart(p AdvParams, fn GapEventFn) error
	AdvStop() error
	AdvSetData(data []byte) error
	AdvRspSetData(data []byte) error

	SecurityInitiate(connHandle uint16) error
	SmInjectIo(connHandle uint16, io SmIo) error

	GenRandAddr(nrpa bool) (BleAddr, error)
	SetRandAddr(addr BleAddr) error

	DiscAllSvcs(connHandle uint16, fn DiscSvcFn) error
	DiscSvcUuid(connHandle uint16, uuid BleUuid, fn DiscSvcFn) error
	DiscAllChrs(connHandle uint16, startHandle uint16, endHandle uint16,
		fn DiscChrFn) error
	DiscChrUuid(connHandle uint16, startHandle uint16, endHandle uint16,
		uuid BleUuid, fn DiscChrFn) error
	DiscAllDscs(connHandle uint16, startHandle uint16, endHandle uint16,
		fn DiscDscFn) error
	Write(connHandle uint16, attrHandle uint16, data []byte,
		fn WriteFn) error
	WriteNoRsp(connHandle uint16, attrHandle uint16, data []byte) error
	ExchangeMtu(connHandle uint16, fn MtuFn) error
	SetPreferredMtu(mtu uint16) error

	GattsReset() error
	GattsCountCfg(svcs []SvcDef) error
	GattsAddSvcs(svcs []SvcDef) error
	GattsStart() error
	GattsFindSvc(uuid BleUuid) (uint16, error)
	GattsFindChr(svcUuid BleUuid, chrUuid BleUuid) (uint16, uint16, error)
	GattsFindDsc(svcUuid BleUuid, chrUuid BleUuid,
		dscUuid BleUuid) (uint16, error)
	Notify(connHandle uint16, attrHandle uint16, data []byte) error
}

// Generates a random address: static if nrpa is false, non-resolvable
// private otherwise.
func genRandAddr(nrpa bool) (BleAddr, error) {
	addr := BleAddr{}

	if _, err := rand.Read(addr.Bytes[:]); err != nil {
		return addr, hostErr(ERR_CODE_EUNKNOWN,
			"failed to generate random address: %s", err.Error())
	}

	// The two most significant bits of the address select its type.
	if nrpa {
		addr.Bytes[0] &^= 0xc0
	} else {
		addr.Bytes[0] |= 0xc0
	}

	return addr, nil
}
