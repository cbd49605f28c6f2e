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

// Package proto implements the blehostd wire protocol: the message type
// registry, the request decoder, and the response / event encoder.
package proto

import (
	"encoding/json"

	"mynewt.apache.org/blehostd/bhd/bledefs"
)

type MsgOp int
type MsgType int
type BleSeq uint32

const BLE_SEQ_MIN BleSeq = 0
const BLE_SEQ_EVT_MIN BleSeq = 0xffffff00
const BLE_SEQ_MAX BleSeq = 0xfffffff0
const BLE_SEQ_NONE BleSeq = 0xffffffff

const (
	MSG_OP_REQ MsgOp = 1
	MSG_OP_RSP       = 2
	MSG_OP_EVT       = 3
)

const (
	MSG_TYPE_ERR               MsgType = 1
	MSG_TYPE_SYNC                      = 2
	MSG_TYPE_CONNECT                   = 3
	MSG_TYPE_TERMINATE                 = 4
	MSG_TYPE_DISC_ALL_SVCS             = 5
	MSG_TYPE_DISC_SVC_UUID             = 6
	MSG_TYPE_DISC_ALL_CHRS             = 7
	MSG_TYPE_DISC_CHR_UUID             = 8
	MSG_TYPE_DISC_ALL_DSCS             = 9
	MSG_TYPE_WRITE                     = 10
	MSG_TYPE_WRITE_CMD                 = 11
	MSG_TYPE_EXCHANGE_MTU              = 12
	MSG_TYPE_GEN_RAND_ADDR             = 13
	MSG_TYPE_SET_RAND_ADDR             = 14
	MSG_TYPE_CONN_CANCEL               = 15
	MSG_TYPE_SCAN                      = 16
	MSG_TYPE_SCAN_CANCEL               = 17
	MSG_TYPE_SET_PREFERRED_MTU         = 18
	MSG_TYPE_SECURITY_INITIATE         = 19
	MSG_TYPE_CONN_FIND                 = 20
	MSG_TYPE_RESET                     = 21
	MSG_TYPE_ADV_START                 = 22
	MSG_TYPE_ADV_STOP                  = 23
	MSG_TYPE_ADV_SET_DATA              = 24
	MSG_TYPE_ADV_RSP_SET_DATA          = 25
	MSG_TYPE_ADV_FIELDS                = 26
	MSG_TYPE_CLEAR_SVCS                = 27
	MSG_TYPE_ADD_SVCS                  = 28
	MSG_TYPE_COMMIT_SVCS               = 29
	MSG_TYPE_ACCESS_STATUS             = 30
	MSG_TYPE_NOTIFY                    = 31
	MSG_TYPE_FIND_CHR                  = 32
	MSG_TYPE_SM_INJECT_IO              = 33

	MSG_TYPE_SYNC_EVT         = 2049
	MSG_TYPE_CONNECT_EVT      = 2050
	MSG_TYPE_CONN_CANCEL_EVT  = 2051
	MSG_TYPE_DISCONNECT_EVT   = 2052
	MSG_TYPE_DISC_SVC_EVT     = 2053
	MSG_TYPE_DISC_CHR_EVT     = 2054
	MSG_TYPE_DISC_DSC_EVT     = 2055
	MSG_TYPE_WRITE_ACK_EVT    = 2056
	MSG_TYPE_NOTIFY_RX_EVT    = 2057
	MSG_TYPE_MTU_CHANGE_EVT   = 2058
	MSG_TYPE_SCAN_EVT         = 2059
	MSG_TYPE_SCAN_TMO_EVT     = 2060
	MSG_TYPE_ADV_COMPLETE_EVT = 2061
	MSG_TYPE_ENC_CHANGE_EVT   = 2062
	MSG_TYPE_RESET_EVT        = 2063
	MSG_TYPE_ACCESS_EVT       = 2064
	MSG_TYPE_PASSKEY_EVT      = 2065
)

var MsgOpTable = bledefs.NewSymTable("MsgOp", map[int]string{
	int(MSG_OP_REQ): "request",
	MSG_OP_RSP:      "response",
	MSG_OP_EVT:      "event",
})

var MsgTypeTable = bledefs.NewSymTable("MsgType", map[int]string{
	int(MSG_TYPE_ERR):          "error",
	MSG_TYPE_SYNC:              "sync",
	MSG_TYPE_CONNECT:           "connect",
	MSG_TYPE_TERMINATE:         "terminate",
	MSG_TYPE_DISC_ALL_SVCS:     "disc_all_svcs",
	MSG_TYPE_DISC_SVC_UUID:     "disc_svc_uuid",
	MSG_TYPE_DISC_ALL_CHRS:     "disc_all_chrs",
	MSG_TYPE_DISC_CHR_UUID:     "disc_chr_uuid",
	MSG_TYPE_DISC_ALL_DSCS:     "disc_all_dscs",
	MSG_TYPE_WRITE:             "write",
	MSG_TYPE_WRITE_CMD:         "write_cmd",
	MSG_TYPE_EXCHANGE_MTU:      "exchange_mtu",
	MSG_TYPE_GEN_RAND_ADDR:     "gen_rand_addr",
	MSG_TYPE_SET_RAND_ADDR:     "set_rand_addr",
	MSG_TYPE_CONN_CANCEL:       "conn_cancel",
	MSG_TYPE_SCAN:              "scan",
	MSG_TYPE_SCAN_CANCEL:       "scan_cancel",
	MSG_TYPE_SET_PREFERRED_MTU: "set_preferred_mtu",
	MSG_TYPE_SECURITY_INITIATE: "security_initiate",
	MSG_TYPE_CONN_FIND:         "conn_find",
	MSG_TYPE_RESET:             "reset",
	MSG_TYPE_ADV_START:         "adv_start",
	MSG_TYPE_ADV_STOP:          "adv_stop",
	MSG_TYPE_ADV_SET_DATA:      "adv_set_data",
	MSG_TYPE_ADV_RSP_SET_DATA:  "adv_rsp_set_data",
	MSG_TYPE_ADV_FIELDS:        "adv_fields",
	MSG_TYPE_CLEAR_SVCS:        "clear_svcs",
	MSG_TYPE_ADD_SVCS:          "add_svcs",
	MSG_TYPE_COMMIT_SVCS:       "commit_svcs",
	MSG_TYPE_ACCESS_STATUS:     "access_status",
	MSG_TYPE_NOTIFY:            "notify",
	MSG_TYPE_FIND_CHR:          "find_chr",
	MSG_TYPE_SM_INJECT_IO:      "sm_inject_io",

	MSG_TYPE_SYNC_EVT:         "sync_evt",
	MSG_TYPE_CONNECT_EVT:      "connect_evt",
	MSG_TYPE_CONN_CANCEL_EVT:  "conn_cancel_evt",
	MSG_TYPE_DISCONNECT_EVT:   "disconnect_evt",
	MSG_TYPE_DISC_SVC_EVT:     "disc_svc_evt",
	MSG_TYPE_DISC_CHR_EVT:     "disc_chr_evt",
	MSG_TYPE_DISC_DSC_EVT:     "disc_dsc_evt",
	MSG_TYPE_WRITE_ACK_EVT:    "write_ack_evt",
	MSG_TYPE_NOTIFY_RX_EVT:    "notify_rx_evt",
	MSG_TYPE_MTU_CHANGE_EVT:   "mtu_change_evt",
	MSG_TYPE_SCAN_EVT:         "scan_evt",
	MSG_TYPE_SCAN_TMO_EVT:     "scan_tmo_evt",
	MSG_TYPE_ADV_COMPLETE_EVT: "adv_complete_evt",
	MSG_TYPE_ENC_CHANGE_EVT:   "enc_change_evt",
	MSG_TYPE_RESET_EVT:        "reset_evt",
	MSG_TYPE_ACCESS_EVT:       "access_evt",
	MSG_TYPE_PASSKEY_EVT:      "passkey_evt",
})

func MsgOpToString(op MsgOp) string {
	return MsgOpTable.String(int(op))
}

func MsgOpFromString(s string) (MsgOp, error) {
	code, err := MsgOpTable.Decode(s)
	return MsgOp(code), err
}

func MsgTypeToString(msgType MsgType) string {
	return MsgTypeTable.String(int(msgType))
}

func MsgTypeFromString(s string) (MsgType, error) {
	code, err := MsgTypeTable.Decode(s)
	return MsgType(code), err
}

func (o MsgOp) MarshalJSON() ([]byte, error) {
	return json.Marshal(MsgOpToString(o))
}

func (t MsgType) MarshalJSON() ([]byte, error) {
	return json.Marshal(MsgTypeToString(t))
}

func (t MsgType) IsEvt() bool {
	return t >= MSG_TYPE_SYNC_EVT
}

type MsgHdr struct {
	Op   MsgOp   `json:"op"`
	Type MsgType `json:"type"`
	Seq  BleSeq  `json:"seq"`

	// Debug frame counter; only present when enabled.
	Ctr *uint32 `json:"ctr,omitempty"`
}

func (h *MsgHdr) Hdr() *MsgHdr {
	return h
}

// Implemented by every request, response, and event struct through its
// embedded MsgHdr.
type Msg interface {
	Hdr() *MsgHdr
}

func RspHdr(msgType MsgType, seq BleSeq) MsgHdr {
	return MsgHdr{
		Op:   MSG_OP_RSP,
		Type: msgType,
		Seq:  seq,
	}
}

func EvtHdr(msgType MsgType, seq BleSeq) MsgHdr {
	return MsgHdr{
		Op:   MSG_OP_EVT,
		Type: msgType,
		Seq:  seq,
	}
}
