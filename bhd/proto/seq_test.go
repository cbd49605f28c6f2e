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
	"testing"
)

func TestSeqAllocatorRange(t *testing.T) {
	a := NewSeqAllocator()

	if s := a.Next(); s != BLE_SEQ_EVT_MIN {
		t.Fatalf("first seq: got 0x%x, want 0x%x", s, BLE_SEQ_EVT_MIN)
	}

	// Exhaust the range and verify the wrap.
	var last BleSeq
	for i := 0; i < int(BLE_SEQ_MAX-BLE_SEQ_EVT_MIN); i++ {
		last = a.Next()
	}
	if last != BLE_SEQ_MAX {
		t.Fatalf("last seq before wrap: got 0x%x, want 0x%x",
			last, BLE_SEQ_MAX)
	}

	if s := a.Next(); s != BLE_SEQ_EVT_MIN {
		t.Fatalf("seq after wrap: got 0x%x, want 0x%x", s, BLE_SEQ_EVT_MIN)
	}
}

func TestSeqAllocatorConcurrent(t *testing.T) {
	a := NewSeqAllocator()

	const workers = 8
	const per = 20

	seqChan := make(chan BleSeq, workers*per)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < per; j++ {
				seqChan <- a.Next()
			}
		}()
	}
	wg.Wait()
	close(seqChan)

	seen := map[BleSeq]bool{}
	for s := range seqChan {
		if s < BLE_SEQ_EVT_MIN || s > BLE_SEQ_MAX {
			t.Fatalf("seq out of range: 0x%x", s)
		}
		if seen[s] {
			t.Fatalf("duplicate seq: 0x%x", s)
		}
		seen[s] = true
	}
}

func TestNextEvtSeq(t *testing.T) {
	a := NextEvtSeq()
	b := NextEvtSeq()

	if a < BLE_SEQ_EVT_MIN || b < BLE_SEQ_EVT_MIN {
		t.Fatalf("event seqs out of range: 0x%x 0x%x", a, b)
	}
	if a == b {
		t.Fatalf("event seqs not distinct: 0x%x", a)
	}
}
