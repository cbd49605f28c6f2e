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
	"testing"

	. "mynewt.apache.org/blehostd/bhd/bledefs"
)

func TestEncode(t *testing.T) {
	u128, _ := ParseUuid128("00112233-4455-6677-8899-aabbccddeeff")
	connHandle := uint16(3)

	tests := []struct {
		name string
		msg  Msg
		want string
	}{
		{
			name: "sync response",
			msg: &BleSyncRsp{
				MsgHdr: RspHdr(MSG_TYPE_SYNC, 5),
				Synced: true,
			},
			want: `{"op":"response","type":"sync","seq":5,"synced":true}`,
		},
		{
			name: "error response",
			msg:  NewBleErrRsp(0, SYS_ENOENT, "invalid op"),
			want: `{"op":"response","type":"error","seq":0,"status":-4,` +
				`"msg":"invalid op"}`,
		},
		{
			name: "connect event",
			msg: &BleConnectEvt{
				MsgHdr:     EvtHdr(MSG_TYPE_CONNECT_EVT, 9),
				ConnHandle: &connHandle,
			},
			want: `{"op":"event","type":"connect_evt","seq":9,"status":0,` +
				`"conn_handle":3}`,
		},
		{
			name: "failed connect event",
			msg: &BleConnectEvt{
				MsgHdr: EvtHdr(MSG_TYPE_CONNECT_EVT, 9),
				Status: ERR_CODE_ETIMEOUT,
			},
			want: `{"op":"event","type":"connect_evt","seq":9,"status":13}`,
		},
		{
			name: "commit summary",
			msg: &BleCommitSvcsRsp{
				MsgHdr: RspHdr(MSG_TYPE_COMMIT_SVCS, 2),
				Svcs: []BleCommitSvc{
					{
						Uuid:   NewBleUuid128(u128),
						Handle: 1,
						Chrs: []BleCommitChr{
							{
								Uuid:      NewBleUuid16(0x2a00),
								DefHandle: 2,
								ValHandle: 3,
								Dscs:      []BleCommitDsc{},
							},
						},
					},
				},
			},
			want: `{"op":"response","type":"commit_svcs","seq":2,"status":0,` +
				`"services":[{"uuid":"00112233-4455-6677-8899-aabbccddeeff",` +
				`"handle":1,"characteristics":[{"uuid":10752,` +
				`"def_handle":2,"val_handle":3,"descriptors":[]}]}]}`,
		},
		{
			name: "notify_rx event",
			msg: &BleNotifyRxEvt{
				MsgHdr:     EvtHdr(MSG_TYPE_NOTIFY_RX_EVT, BLE_SEQ_EVT_MIN),
				ConnHandle: 1,
				AttrHandle: 6,
				Data:       BleBytes{0xde, 0xad},
			},
			want: `{"op":"event","type":"notify_rx_evt","seq":4294967040,` +
				`"conn_handle":1,"attr_handle":6,"indication":false,` +
				`"data":"0xde:0xad"}`,
		},
	}

	enc := NewEncoder(false)
	for _, tt := range tests {
		b, err := enc.Encode(tt.msg)
		if err != nil {
			t.Errorf("%s: encode failed: %s", tt.name, err.Error())
			continue
		}
		if string(b) != tt.want {
			t.Errorf("%s:\ngot  %s\nwant %s", tt.name, b, tt.want)
		}
	}
}

func TestEncodeFrameCtr(t *testing.T) {
	enc := NewEncoder(true)

	for i := 0; i < 3; i++ {
		m := &BleStatusRsp{MsgHdr: RspHdr(MSG_TYPE_WRITE, 1)}

		if _, err := enc.Encode(m); err != nil {
			t.Fatalf("encode failed: %s", err.Error())
		}
		if m.Ctr == nil || *m.Ctr != uint32(i) {
			t.Fatalf("wrong frame counter on message %d: %v", i, m.Ctr)
		}
	}
}

func TestEncodeUnregistered(t *testing.T) {
	tests := []struct {
		name string
		msg  Msg
	}{
		{"request", &BleSyncReq{MsgHdr: MsgHdr{Op: MSG_OP_REQ,
			Type: MSG_TYPE_SYNC}}},
		{"wrong payload", &BleStatusRsp{MsgHdr: RspHdr(MSG_TYPE_SYNC, 1)}},
	}

	for _, tt := range tests {
		func() {
			defer func() {
				if recover() == nil {
					t.Errorf("%s: expected panic", tt.name)
				}
			}()
			NewEncoder(false).Encode(tt.msg)
		}()
	}
}
