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
	"reflect"
	"testing"

	"mynewt.apache.org/blehostd/bhd/bhdutil"
	. "mynewt.apache.org/blehostd/bhd/bledefs"
	"mynewt.apache.org/blehostd/bhd/host"
	"mynewt.apache.org/blehostd/bhd/proto"
)

func nopAccessFn(seq proto.BleSeq) host.AccessFn {
	return func(BleGattOp, uint16, uint16, []byte) (uint8, []byte) {
		return 0, nil
	}
}

func newTestRegistry(t *testing.T) (*Registry, *host.SimHost) {
	h := host.NewSimHost(host.NewSimHostCfg())
	if err := h.Start(host.Listener{}); err != nil {
		t.Fatalf("start failed: %s", err.Error())
	}

	return NewRegistry(h, nopAccessFn), h
}

func uuid16(u uint16) BleUuid {
	return NewBleUuid16(u)
}

func testSvcs() []proto.BleAddSvc {
	return []proto.BleAddSvc{
		{
			SvcType: BLE_SVC_TYPE_PRIMARY,
			Uuid:    uuid16(0x1811),
			Chrs: []proto.BleAddChr{
				{
					Uuid:  uuid16(0x2a46),
					Flags: BLE_GATT_F_READ | BLE_GATT_F_NOTIFY,
					Dscs: []proto.BleAddDsc{
						{Uuid: uuid16(0x2901), AttFlags: 0x01},
					},
				},
				{
					Uuid:  uuid16(0x2a47),
					Flags: BLE_GATT_F_WRITE,
				},
			},
		},
		{
			SvcType: BLE_SVC_TYPE_SECONDARY,
			Uuid:    uuid16(0x180f),
		},
	}
}

func TestRequired(t *testing.T) {
	tests := []struct {
		name string
		svcs []proto.BleAddSvc
		want Counts
	}{
		{
			name: "empty",
			svcs: nil,
			want: Counts{},
		},
		{
			name: "service without characteristics",
			svcs: []proto.BleAddSvc{{Uuid: uuid16(1)}},
			want: Counts{Svcs: 1, Uuids: 1},
		},
		{
			name: "nested",
			svcs: testSvcs(),
			want: Counts{
				Svcs:       2,
				Chrs:       3,
				Dscs:       2,
				Uuids:      5,
				ValHandles: 2,
			},
		},
	}

	for _, tt := range tests {
		if got := Required(tt.svcs); got != tt.want {
			t.Errorf("%s: got %+v, want %+v", tt.name, got, tt.want)
		}
	}
}

func TestAddSentinels(t *testing.T) {
	r, h := newTestRegistry(t)
	defer h.Stop()

	if err := r.Add(testSvcs()); err != nil {
		t.Fatalf("add failed: %s", err.Error())
	}

	svcs := r.Svcs()
	if len(svcs) != 2 {
		t.Fatalf("wrong service count: %d", len(svcs))
	}

	chrs := svcs[0].Chrs
	if len(chrs) != 3 || chrs[2].Uuid != nil {
		t.Fatalf("characteristic list not terminated: %+v", chrs)
	}
	if len(svcs[0].Characteristics()) != 2 {
		t.Fatalf("wrong characteristic count")
	}

	dscs := chrs[0].Dscs
	if len(dscs) != 2 || dscs[1].Uuid != nil {
		t.Fatalf("descriptor list not terminated: %+v", dscs)
	}
	if chrs[1].Dscs != nil {
		t.Fatalf("empty descriptor list has a sentinel")
	}
	if svcs[1].Chrs != nil {
		t.Fatalf("empty characteristic list has a sentinel")
	}

	if r.Counts() != Required(testSvcs()) {
		t.Fatalf("wrong occupancy: %+v", r.Counts())
	}
}

func TestAddCopiesUuids(t *testing.T) {
	r, h := newTestRegistry(t)
	defer h.Stop()

	svcs := testSvcs()
	if err := r.Add(svcs); err != nil {
		t.Fatalf("add failed: %s", err.Error())
	}

	svcs[0].Uuid = uuid16(0xffff)
	svcs[0].Chrs[0].Uuid = uuid16(0xffff)

	got := r.Svcs()[0]
	if CompareUuids(*got.Uuid, uuid16(0x1811)) != 0 {
		t.Fatalf("service UUID aliased caller memory: %s", got.Uuid.String())
	}
	if CompareUuids(*got.Chrs[0].Uuid, uuid16(0x2a46)) != 0 {
		t.Fatalf("characteristic UUID aliased caller memory")
	}
}

func TestAddCapacity(t *testing.T) {
	manyChrs := func(n int) []proto.BleAddSvc {
		svc := proto.BleAddSvc{Uuid: uuid16(0x1800)}
		for i := 0; i < n; i++ {
			svc.Chrs = append(svc.Chrs, proto.BleAddChr{
				Uuid: uuid16(uint16(i + 1)),
			})
		}
		return []proto.BleAddSvc{svc}
	}

	manySvcs := func(n int) []proto.BleAddSvc {
		var svcs []proto.BleAddSvc
		for i := 0; i < n; i++ {
			svcs = append(svcs, proto.BleAddSvc{Uuid: uuid16(uint16(i + 1))})
		}
		return svcs
	}

	manyDscs := func(n int) []proto.BleAddSvc {
		chr := proto.BleAddChr{Uuid: uuid16(0x2a00)}
		for i := 0; i < n; i++ {
			chr.Dscs = append(chr.Dscs, proto.BleAddDsc{
				Uuid: uuid16(uint16(i + 1)),
			})
		}
		return []proto.BleAddSvc{{
			Uuid: uuid16(0x1800),
			Chrs: []proto.BleAddChr{chr},
		}}
	}

	tests := []struct {
		name  string
		first []proto.BleAddSvc
		next  []proto.BleAddSvc
		ok    bool
	}{
		{"svcs at capacity", manySvcs(MAX_SVCS - 1), manySvcs(1), true},
		{"svcs over capacity", manySvcs(MAX_SVCS), manySvcs(1), false},

		// One slot per characteristic plus a sentinel.
		{"chrs at capacity", manyChrs(MAX_CHRS - 1), nil, true},
		{"chrs over capacity", manyChrs(MAX_CHRS), nil, false},
		{"chrs cumulative", manyChrs(MAX_CHRS - 2), manyChrs(1), false},

		{"dscs at capacity", manyDscs(MAX_DSCS - 1), nil, true},
		{"dscs over capacity", manyDscs(MAX_DSCS), nil, false},
	}

	for _, tt := range tests {
		r, h := newTestRegistry(t)

		err := r.Add(tt.first)
		if err == nil && tt.next != nil {
			before := r.Counts()
			err = r.Add(tt.next)
			if err != nil && r.Counts() != before {
				t.Errorf("%s: failed add changed occupancy: %+v -> %+v",
					tt.name, before, r.Counts())
			}
		} else if err != nil && r.Counts() != (Counts{}) {
			t.Errorf("%s: failed add changed occupancy: %+v",
				tt.name, r.Counts())
		}

		if tt.ok && err != nil {
			t.Errorf("%s: unexpected error: %s", tt.name, err.Error())
		}
		if !tt.ok {
			if err == nil {
				t.Errorf("%s: expected capacity error", tt.name)
			} else if !bhdutil.IsCapacity(err) ||
				bhdutil.ErrStatus(err) != ERR_CODE_ENOMEM {

				t.Errorf("%s: wrong error: %s", tt.name, err.Error())
			}
		}

		h.Stop()
	}
}

func TestCommit(t *testing.T) {
	r, h := newTestRegistry(t)
	defer h.Stop()

	if err := r.Add(testSvcs()); err != nil {
		t.Fatalf("add failed: %s", err.Error())
	}

	got, err := r.Commit()
	if err != nil {
		t.Fatalf("commit failed: %s", err.Error())
	}

	// Handles are assigned in order: service, then each characteristic's
	// definition and value, then its descriptors.
	want := []proto.BleCommitSvc{
		{
			Uuid:   uuid16(0x1811),
			Handle: 1,
			Chrs: []proto.BleCommitChr{
				{
					Uuid:      uuid16(0x2a46),
					DefHandle: 2,
					ValHandle: 3,
					Dscs: []proto.BleCommitDsc{
						{Uuid: uuid16(0x2901), Handle: 4},
					},
				},
				{
					Uuid:      uuid16(0x2a47),
					DefHandle: 5,
					ValHandle: 6,
					Dscs:      []proto.BleCommitDsc{},
				},
			},
		},
		{
			Uuid:   uuid16(0x180f),
			Handle: 7,
			Chrs:   []proto.BleCommitChr{},
		},
	}

	if !reflect.DeepEqual(got, want) {
		t.Fatalf("wrong summary:\ngot  %+v\nwant %+v", got, want)
	}

	// The value handle slots are filled in by the host.
	if v := *r.Svcs()[0].Chrs[1].ValHandle; v != 6 {
		t.Fatalf("value handle slot not populated: %d", v)
	}
}

func TestCommitDuplicateUuids(t *testing.T) {
	r, h := newTestRegistry(t)
	defer h.Stop()

	svcs := []proto.BleAddSvc{
		{
			SvcType: BLE_SVC_TYPE_PRIMARY,
			Uuid:    uuid16(0x1234),
			Chrs: []proto.BleAddChr{
				{Uuid: uuid16(0x2a00), Flags: BLE_GATT_F_READ},
			},
		},
		{
			SvcType: BLE_SVC_TYPE_PRIMARY,
			Uuid:    uuid16(0x1234),
			Chrs: []proto.BleAddChr{
				{
					Uuid:  uuid16(0x2a00),
					Flags: BLE_GATT_F_READ,
					Dscs: []proto.BleAddDsc{
						{Uuid: uuid16(0x2901), AttFlags: 0x01},
					},
				},
			},
		},
	}

	if err := r.Add(svcs); err != nil {
		t.Fatalf("add failed: %s", err.Error())
	}

	got, err := r.Commit()
	if err != nil {
		t.Fatalf("commit failed: %s", err.Error())
	}

	want := []proto.BleCommitSvc{
		{
			Uuid:   uuid16(0x1234),
			Handle: 1,
			Chrs: []proto.BleCommitChr{
				{
					Uuid:      uuid16(0x2a00),
					DefHandle: 2,
					ValHandle: 3,
					Dscs:      []proto.BleCommitDsc{},
				},
			},
		},
		{
			Uuid:   uuid16(0x1234),
			Handle: 4,
			Chrs: []proto.BleCommitChr{
				{
					Uuid:      uuid16(0x2a00),
					DefHandle: 5,
					ValHandle: 6,
					Dscs: []proto.BleCommitDsc{
						{Uuid: uuid16(0x2901), Handle: 7},
					},
				},
			},
		},
	}

	if !reflect.DeepEqual(got, want) {
		t.Fatalf("wrong summary:\ngot  %+v\nwant %+v", got, want)
	}
}

func TestClearDiscardsDefinitions(t *testing.T) {
	r, h := newTestRegistry(t)
	defer h.Stop()

	if err := r.Add(testSvcs()); err != nil {
		t.Fatalf("add failed: %s", err.Error())
	}
	if err := r.Clear(); err != nil {
		t.Fatalf("clear failed: %s", err.Error())
	}

	for i := range r.chrs[:4] {
		if r.chrs[i].Uuid != nil || r.chrs[i].Access != nil {
			t.Fatalf("characteristic %d survived clear: %+v", i, r.chrs[i])
		}
	}
	for i := range r.dscs[:3] {
		if r.dscs[i].Uuid != nil || r.dscs[i].Access != nil {
			t.Fatalf("descriptor %d survived clear: %+v", i, r.dscs[i])
		}
	}
	if r.uuids[0] != (BleUuid{}) {
		t.Fatalf("uuid arena survived clear: %+v", r.uuids[0])
	}
}

func TestCommitEmpty(t *testing.T) {
	r, h := newTestRegistry(t)
	defer h.Stop()

	got, err := r.Commit()
	if err != nil {
		t.Fatalf("commit failed: %s", err.Error())
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("unexpected summary: %+v", got)
	}
}

func TestCommitTwice(t *testing.T) {
	r, h := newTestRegistry(t)
	defer h.Stop()

	r.Add(testSvcs())
	if _, err := r.Commit(); err != nil {
		t.Fatalf("commit failed: %s", err.Error())
	}

	// The server must be cleared before it can be redefined.
	_, err := r.Commit()
	if bhdutil.ErrStatus(err) != ERR_CODE_EBUSY {
		t.Fatalf("wrong error for second commit: %v", err)
	}

	if err := r.Clear(); err != nil {
		t.Fatalf("clear failed: %s", err.Error())
	}
	if r.Counts() != (Counts{}) {
		t.Fatalf("clear left occupancy: %+v", r.Counts())
	}

	r.Add(testSvcs()[:1])
	got, err := r.Commit()
	if err != nil {
		t.Fatalf("commit after clear failed: %s", err.Error())
	}
	if len(got) != 1 {
		t.Fatalf("wrong summary: %+v", got)
	}
}

func TestAttrSeqs(t *testing.T) {
	r, h := newTestRegistry(t)
	defer h.Stop()

	r.Add(testSvcs())

	chrSeqs, dscSeqs := r.AttrSeqs()
	if len(chrSeqs) != 2 || len(dscSeqs) != 1 {
		t.Fatalf("wrong seq counts: chrs=%d dscs=%d",
			len(chrSeqs), len(dscSeqs))
	}

	seen := map[proto.BleSeq]bool{}
	for _, s := range append(chrSeqs, dscSeqs...) {
		if s < proto.BLE_SEQ_EVT_MIN || s > proto.BLE_SEQ_MAX {
			t.Errorf("seq out of event range: 0x%x", uint32(s))
		}
		if seen[s] {
			t.Errorf("duplicate seq: 0x%x", uint32(s))
		}
		seen[s] = true
	}
}
