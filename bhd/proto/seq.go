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

package proto

import (
	"sync"
)

// Hands out sequence numbers for unsolicited events.  Values stay within
// [BLE_SEQ_EVT_MIN, BLE_SEQ_MAX]; the counter wraps back to BLE_SEQ_EVT_MIN
// after BLE_SEQ_MAX is issued.
type SeqAllocator struct {
	mtx  sync.Mutex
	next BleSeq
}

func NewSeqAllocator() *SeqAllocator {
	return &SeqAllocator{
		next: BLE_SEQ_EVT_MIN,
	}
}

func (a *SeqAllocator) Next() BleSeq {
	a.mtx.Lock()
	defer a.mtx.Unlock()

	if a.next < BLE_SEQ_EVT_MIN || a.next > BLE_SEQ_MAX {
		a.next = BLE_SEQ_EVT_MIN
	}

	seq := a.next
	if a.next == BLE_SEQ_MAX {
		a.next = BLE_SEQ_EVT_MIN
	} else {
		a.next++
	}

	return seq
}

var evtSeqs = NewSeqAllocator()

// Allocates a sequence number from the process-wide event allocator.
func NextEvtSeq() BleSeq {
	return evtSeqs.Next()
}
