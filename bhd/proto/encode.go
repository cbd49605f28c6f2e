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
	"encoding/json"
	"reflect"
	"sync"

	"mynewt.apache.org/blehostd/bhd/bhdutil"
)

func rtype(m Msg) reflect.Type {
	return reflect.TypeOf(m)
}

var statusRspType = rtype(&BleStatusRsp{})

// Maps each response type to the struct that encodes it.
var rspEncoderMap = map[MsgType]reflect.Type{
	MSG_TYPE_ERR:               rtype(&BleErrRsp{}),
	MSG_TYPE_SYNC:              rtype(&BleSyncRsp{}),
	MSG_TYPE_CONNECT:           statusRspType,
	MSG_TYPE_TERMINATE:         statusRspType,
	MSG_TYPE_DISC_ALL_SVCS:     statusRspType,
	MSG_TYPE_DISC_SVC_UUID:     statusRspType,
	MSG_TYPE_DISC_ALL_CHRS:     statusRspType,
	MSG_TYPE_DISC_CHR_UUID:     statusRspType,
	MSG_TYPE_DISC_ALL_DSCS:     statusRspType,
	MSG_TYPE_WRITE:             statusRspType,
	MSG_TYPE_WRITE_CMD:         statusRspType,
	MSG_TYPE_EXCHANGE_MTU:      statusRspType,
	MSG_TYPE_GEN_RAND_ADDR:     rtype(&BleGenRandAddrRsp{}),
	MSG_TYPE_SET_RAND_ADDR:     statusRspType,
	MSG_TYPE_CONN_CANCEL:       statusRspType,
	MSG_TYPE_SCAN:              statusRspType,
	MSG_TYPE_SCAN_CANCEL:       statusRspType,
	MSG_TYPE_SET_PREFERRED_MTU: statusRspType,
	MSG_TYPE_SECURITY_INITIATE: statusRspType,
	MSG_TYPE_CONN_FIND:         rtype(&BleConnFindRsp{}),
	MSG_TYPE_RESET:             rtype(&BleResetRsp{}),
	MSG_TYPE_ADV_START:         statusRspType,
	MSG_TYPE_ADV_STOP:          statusRspType,
	MSG_TYPE_ADV_SET_DATA:      statusRspType,
	MSG_TYPE_ADV_RSP_SET_DATA:  statusRspType,
	MSG_TYPE_ADV_FIELDS:        rtype(&BleAdvFieldsRsp{}),
	MSG_TYPE_CLEAR_SVCS:        statusRspType,
	MSG_TYPE_ADD_SVCS:          statusRspType,
	MSG_TYPE_COMMIT_SVCS:       rtype(&BleCommitSvcsRsp{}),
	MSG_TYPE_ACCESS_STATUS:     statusRspType,
	MSG_TYPE_NOTIFY:            statusRspType,
	MSG_TYPE_FIND_CHR:          rtype(&BleFindChrRsp{}),
	MSG_TYPE_SM_INJECT_IO:      statusRspType,
}

// Maps each event type to the struct that encodes it.
var evtEncoderMap = map[MsgType]reflect.Type{
	MSG_TYPE_SYNC_EVT:         rtype(&BleSyncEvt{}),
	MSG_TYPE_CONNECT_EVT:      rtype(&BleConnectEvt{}),
	MSG_TYPE_CONN_CANCEL_EVT:  rtype(&BleConnCancelEvt{}),
	MSG_TYPE_DISCONNECT_EVT:   rtype(&BleDisconnectEvt{}),
	MSG_TYPE_DISC_SVC_EVT:     rtype(&BleDiscSvcEvt{}),
	MSG_TYPE_DISC_CHR_EVT:     rtype(&BleDiscChrEvt{}),
	MSG_TYPE_DISC_DSC_EVT:     rtype(&BleDiscDscEvt{}),
	MSG_TYPE_WRITE_ACK_EVT:    rtype(&BleWriteAckEvt{}),
	MSG_TYPE_NOTIFY_RX_EVT:    rtype(&BleNotifyRxEvt{}),
	MSG_TYPE_MTU_CHANGE_EVT:   rtype(&BleMtuChangeEvt{}),
	MSG_TYPE_SCAN_EVT:         rtype(&BleScanEvt{}),
	MSG_TYPE_SCAN_TMO_EVT:     rtype(&BleScanTmoEvt{}),
	MSG_TYPE_ADV_COMPLETE_EVT: rtype(&BleAdvCompleteEvt{}),
	MSG_TYPE_ENC_CHANGE_EVT:   rtype(&BleEncChangeEvt{}),
	MSG_TYPE_RESET_EVT:        rtype(&BleResetEvt{}),
	MSG_TYPE_ACCESS_EVT:       rtype(&BleAccessEvt{}),
	MSG_TYPE_PASSKEY_EVT:      rtype(&BlePasskeyEvt{}),
}

// Serializes outgoing responses and events.  If the frame counter is
// enabled, every encoded message carries a "ctr" field that increments by one
// per message.
type Encoder struct {
	useCtr bool
	ctr    uint32
	mtx    sync.Mutex
}

func NewEncoder(useCtr bool) *Encoder {
	return &Encoder{
		useCtr: useCtr,
	}
}

func encoderType(hdr *MsgHdr) (reflect.Type, bool) {
	var t reflect.Type
	var ok bool

	switch hdr.Op {
	case MSG_OP_RSP:
		t, ok = rspEncoderMap[hdr.Type]
	case MSG_OP_EVT:
		t, ok = evtEncoderMap[hdr.Type]
	}

	return t, ok
}

// Encodes a response or event.  The header is written first, followed by the
// type-specific payload.  A message with no registered encoder indicates a
// programming error and causes a panic.
func (e *Encoder) Encode(m Msg) ([]byte, error) {
	hdr := m.Hdr()

	t, ok := encoderType(hdr)
	if !ok {
		bhdutil.Fatalf("no encoder for message: op=%s type=%d",
			MsgOpToString(hdr.Op), int(hdr.Type))
	}
	if t != reflect.TypeOf(m) {
		bhdutil.Fatalf("wrong payload for message type %s: %s",
			MsgTypeToString(hdr.Type), reflect.TypeOf(m).String())
	}

	if e.useCtr {
		e.mtx.Lock()
		ctr := e.ctr
		e.ctr++
		e.mtx.Unlock()

		hdr.Ctr = &ctr
	}

	return json.Marshal(m)
}
