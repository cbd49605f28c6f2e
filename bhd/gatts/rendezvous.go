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

package gatts

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"mynewt.apache.org/blehostd/bhd/bhdutil"
	. "mynewt.apache.org/blehostd/bhd/bledefs"
	"mynewt.apache.org/blehostd/bhd/host"
	"mynewt.apache.org/blehostd/bhd/proto"
)

const ACCESS_TIMEOUT_DFLT = 10 * time.Second

type AccessEvtFn func(evt *proto.BleAccessEvt)

// The client's answer to an access event.
type AccessStatus struct {
	AttStatus uint8
	Data      []byte
}

// Hands attribute accesses to the client and waits for its answer.  Only
// one access is outstanding at a time; concurrent accesses queue behind
// the current one.
type Rendezvous struct {
	timeout time.Duration
	emit    AccessEvtFn

	// Held for the duration of an access.
	accessMtx sync.Mutex

	mtx      sync.Mutex
	pending  *bhdutil.Blocker
	stopChan chan struct{}
}

func NewRendezvous(timeout time.Duration, emit AccessEvtFn) *Rendezvous {
	if timeout <= 0 {
		timeout = ACCESS_TIMEOUT_DFLT
	}

	return &Rendezvous{
		timeout:  timeout,
		emit:     emit,
		stopChan: make(chan struct{}),
	}
}

func (rv *Rendezvous) Timeout() time.Duration {
	return rv.timeout
}

// Reports an access to the client and blocks until the client supplies a
// status or the timeout expires.  On timeout, the access fails with
// ATT_ERR_UNLIKELY.
func (rv *Rendezvous) Access(seq proto.BleSeq, op BleGattOp,
	connHandle uint16, attrHandle uint16, data []byte) (uint8, []byte) {

	rv.accessMtx.Lock()
	defer rv.accessMtx.Unlock()

	b := &bhdutil.Blocker{}
	b.Start()

	rv.mtx.Lock()
	rv.pending = b
	rv.mtx.Unlock()

	evt := &proto.BleAccessEvt{
		MsgHdr:     proto.EvtHdr(proto.MSG_TYPE_ACCESS_EVT, seq),
		GattOp:     op,
		ConnHandle: connHandle,
		AttHandle:  attrHandle,
	}
	if op.IsWrite() {
		evt.Data = BleBytes(data)
	}
	rv.emit(evt)

	val, err := b.Wait(rv.timeout, rv.stopChan)

	rv.mtx.Lock()
	if rv.pending == b {
		rv.pending = nil
	}
	rv.mtx.Unlock()

	if err != nil {
		log.Debugf("GATT access failed; op=%s attr_handle=%d: %s",
			BleGattOpToString(op), attrHandle, err.Error())
		return ATT_ERR_UNLIKELY, nil
	}

	st := val.(AccessStatus)
	return st.AttStatus, st.Data
}

// Builds the access callback for an attribute compiled with the given
// event seq.
func (rv *Rendezvous) AccessFn(seq proto.BleSeq) host.AccessFn {
	return func(op BleGattOp, connHandle uint16, attrHandle uint16,
		data []byte) (uint8, []byte) {

		return rv.Access(seq, op, connHandle, attrHandle, data)
	}
}

// Completes the outstanding access.  Fails with a NoPendingAccessError if
// no access is outstanding.
func (rv *Rendezvous) SetStatus(attStatus uint8, data []byte) error {
	rv.mtx.Lock()
	defer rv.mtx.Unlock()

	if rv.pending == nil {
		return bhdutil.NewNoPendingAccessError("no pending GATT access")
	}

	rv.pending.Unblock(AccessStatus{
		AttStatus: attStatus,
		Data:      data,
	})
	rv.pending = nil

	return nil
}

// Aborts any outstanding access and causes future ones to fail
// immediately.
func (rv *Rendezvous) Close() {
	rv.mtx.Lock()
	defer rv.mtx.Unlock()

	select {
	case <-rv.stopChan:
	default:
		close(rv.stopChan)
	}
}
