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

package adv

import (
	"bytes"
	"reflect"
	"testing"

	"mynewt.apache.org/blehostd/bhd/bhdutil"
	. "mynewt.apache.org/blehostd/bhd/bledefs"
)

func u8(v uint8) *uint8    { return &v }
func u16(v uint16) *uint16 { return &v }
func i8(v int8) *int8      { return &v }
func str(s string) *string { return &s }

func TestBuild(t *testing.T) {
	u128, err := ParseUuid128("00112233-4455-6677-8899-aabbccddeeff")
	if err != nil {
		t.Fatal(err)
	}
	addr, err := ParseBleAddr("01:02:03:04:05:06")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		fields BleAdvFields
		want   []byte
	}{
		{
			name:   "empty",
			fields: BleAdvFields{},
			want:   []byte{},
		},
		{
			name:   "zero flags omitted",
			fields: BleAdvFields{Flags: u8(0)},
			want:   []byte{},
		},
		{
			name: "flags and complete name",
			fields: BleAdvFields{
				Flags:          u8(0x06),
				Name:           str("abc"),
				NameIsComplete: true,
			},
			want: []byte{
				0x02, 0x01, 0x06,
				0x04, 0x09, 'a', 'b', 'c',
			},
		},
		{
			name: "incomplete uuids16",
			fields: BleAdvFields{
				Uuids16: []BleUuid16{0x1811, 0x180a},
			},
			want: []byte{0x05, 0x02, 0x11, 0x18, 0x0a, 0x18},
		},
		{
			name: "complete uuids32",
			fields: BleAdvFields{
				Uuids32:           []uint32{0x01020304},
				Uuids32IsComplete: true,
			},
			want: []byte{0x05, 0x05, 0x04, 0x03, 0x02, 0x01},
		},
		{
			name: "uuids128 reversed",
			fields: BleAdvFields{
				Uuids128: []BleUuid128{u128},
			},
			want: []byte{
				0x11, 0x06,
				0xff, 0xee, 0xdd, 0xcc, 0xbb, 0xaa, 0x99, 0x88,
				0x77, 0x66, 0x55, 0x44, 0x33, 0x22, 0x11, 0x00,
			},
		},
		{
			name: "tx power and slave interval",
			fields: BleAdvFields{
				TxPwrLvl:     i8(-4),
				SlaveItvlMin: u16(0x0010),
				SlaveItvlMax: u16(0x0020),
			},
			want: []byte{
				0x02, 0x0a, 0xfc,
				0x05, 0x12, 0x10, 0x00, 0x20, 0x00,
			},
		},
		{
			name: "target address and appearance",
			fields: BleAdvFields{
				PublicTgtAddrs: []BleAddr{addr},
				Appearance:     u16(0x0341),
				AdvItvl:        u16(0x0800),
			},
			want: []byte{
				0x07, 0x17, 0x06, 0x05, 0x04, 0x03, 0x02, 0x01,
				0x03, 0x19, 0x41, 0x03,
				0x03, 0x1a, 0x00, 0x08,
			},
		},
		{
			name: "uri and mfg data",
			fields: BleAdvFields{
				Uri:     str("x"),
				MfgData: BleBytes{0xaa, 0xbb},
			},
			want: []byte{
				0x02, 0x24, 'x',
				0x03, 0xff, 0xaa, 0xbb,
			},
		},
	}

	for _, tt := range tests {
		got, err := Build(&tt.fields)
		if err != nil {
			t.Errorf("%s: unexpected error: %s", tt.name, err.Error())
			continue
		}
		if !bytes.Equal(got, tt.want) {
			t.Errorf("%s: got % x, want % x", tt.name, got, tt.want)
		}
	}
}

func TestBuildTooLong(t *testing.T) {
	f := BleAdvFields{
		Name:    str("a fairly long device name"),
		MfgData: BleBytes{0x01, 0x02, 0x03, 0x04},
	}

	_, err := Build(&f)
	if err == nil {
		t.Fatalf("expected error for oversized advertising data")
	}

	if s := bhdutil.ErrStatus(err); s != ERR_CODE_EMSGSIZE {
		t.Fatalf("wrong status: got %d, want %d", s, ERR_CODE_EMSGSIZE)
	}
}

func TestBuildMaxSize(t *testing.T) {
	// 2-byte header plus 29 bytes of payload fills the advertisement exactly.
	f := BleAdvFields{
		MfgData: make(BleBytes, BLE_HS_ADV_MAX_FIELD_SZ),
	}

	b, err := Build(&f)
	if err != nil {
		t.Fatalf("unexpected error: %s", err.Error())
	}
	if len(b) != BLE_HS_ADV_MAX_SZ {
		t.Fatalf("wrong length: got %d, want %d", len(b), BLE_HS_ADV_MAX_SZ)
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want BleAdvFields
	}{
		{
			name: "empty",
			data: nil,
			want: BleAdvFields{},
		},
		{
			name: "flags and name",
			data: []byte{
				0x02, 0x01, 0x06,
				0x04, 0x08, 'a', 'b', 'c',
			},
			want: BleAdvFields{
				Flags: u8(0x06),
				Name:  str("abc"),
			},
		},
		{
			name: "unknown type skipped",
			data: []byte{
				0x03, 0x3d, 0x01, 0x02,
				0x03, 0x03, 0x0a, 0x18,
			},
			want: BleAdvFields{
				Uuids16:           []BleUuid16{0x180a},
				Uuids16IsComplete: true,
			},
		},
		{
			name: "zero length terminates",
			data: []byte{
				0x02, 0x0a, 0x08,
				0x00,
				0x02, 0x01, 0x06,
			},
			want: BleAdvFields{
				TxPwrLvl: i8(8),
			},
		},
		{
			name: "service data",
			data: []byte{0x04, 0x16, 0x0a, 0x18, 0x55},
			want: BleAdvFields{
				SvcDataUuid16: BleBytes{0x0a, 0x18, 0x55},
			},
		},
	}

	for _, tt := range tests {
		got, err := Parse(tt.data)
		if err != nil {
			t.Errorf("%s: unexpected error: %s", tt.name, err.Error())
			continue
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("%s: got %+v, want %+v", tt.name, got, tt.want)
		}
	}
}

func TestParseMalformed(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"overrun", []byte{0x05, 0x09, 'a'}},
		{"odd uuid16 list", []byte{0x04, 0x03, 0x01, 0x02, 0x03}},
		{"short appearance", []byte{0x02, 0x19, 0x01}},
		{"long flags", []byte{0x03, 0x01, 0x06, 0x00}},
	}

	for _, tt := range tests {
		_, err := Parse(tt.data)
		if err == nil {
			t.Errorf("%s: expected error", tt.name)
			continue
		}
		if s := bhdutil.ErrStatus(err); s != ERR_CODE_EBADDATA {
			t.Errorf("%s: wrong status: got %d, want %d",
				tt.name, s, ERR_CODE_EBADDATA)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	addr, _ := ParseBleAddr("aa:bb:cc:dd:ee:ff")

	f := BleAdvFields{
		Flags:             u8(0x04),
		Uuids16:           []BleUuid16{0x1234},
		Uuids16IsComplete: true,
		PublicTgtAddrs:    []BleAddr{addr},
		Appearance:        u16(0x0080),
	}

	b, err := Build(&f)
	if err != nil {
		t.Fatalf("build failed: %s", err.Error())
	}

	got, err := Parse(b)
	if err != nil {
		t.Fatalf("parse failed: %s", err.Error())
	}

	if !reflect.DeepEqual(got, f) {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, f)
	}
}
