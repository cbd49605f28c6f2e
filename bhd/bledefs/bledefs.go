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

package bledefs

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

const BLE_ATT_ATTR_MAX_LEN = 512

const BLE_ATT_MTU_DFLT = 23
const BLE_ATT_MTU_MAX = 527

const BLE_HS_ADV_MAX_SZ = 31
const BLE_HS_ADV_MAX_FIELD_SZ = BLE_HS_ADV_MAX_SZ - 2

const BLE_HS_CONN_HANDLE_NONE = 0xffff

type BleAddrType int

const (
	BLE_ADDR_TYPE_PUBLIC  BleAddrType = 0
	BLE_ADDR_TYPE_RANDOM              = 1
	BLE_ADDR_TYPE_RPA_PUB             = 2
	BLE_ADDR_TYPE_RPA_RND             = 3

	// Not a wire value; marks an absent address.
	BLE_ADDR_TYPE_NONE = 255
)

var BleAddrTypeTable = NewSymTable("BleAddrType", map[int]string{
	int(BLE_ADDR_TYPE_PUBLIC): "public",
	BLE_ADDR_TYPE_RANDOM:      "random",
	BLE_ADDR_TYPE_RPA_PUB:     "rpa_pub",
	BLE_ADDR_TYPE_RPA_RND:     "rpa_rnd",
})

func BleAddrTypeToString(addrType BleAddrType) string {
	return BleAddrTypeTable.String(int(addrType))
}

func BleAddrTypeFromString(s string) (BleAddrType, error) {
	code, err := BleAddrTypeTable.Decode(s)
	return BleAddrType(code), err
}

func (a BleAddrType) MarshalJSON() ([]byte, error) {
	return json.Marshal(BleAddrTypeToString(a))
}

type BleAddr struct {
	Bytes [6]byte
}

func ParseBleAddr(s string) (BleAddr, error) {
	ba := BleAddr{}

	toks := strings.Split(strings.ToLower(s), ":")
	if len(toks) != 6 {
		return ba, fmt.Errorf("invalid BLE addr string: %s", s)
	}

	for i, t := range toks {
		u64, err := strconv.ParseUint(t, 16, 8)
		if err != nil {
			return ba, fmt.Errorf("invalid BLE addr string: %s", s)
		}
		ba.Bytes[i] = byte(u64)
	}

	return ba, nil
}

func (ba BleAddr) String() string {
	var buf bytes.Buffer
	buf.Grow(len(ba.Bytes) * 3)

	for i, b := range ba.Bytes {
		if i != 0 {
			buf.WriteString(":")
		}
		fmt.Fprintf(&buf, "%02x", b)
	}

	return buf.String()
}

func (ba BleAddr) MarshalJSON() ([]byte, error) {
	return json.Marshal(ba.String())
}

type BleDev struct {
	AddrType BleAddrType
	Addr     BleAddr
}

func (bd *BleDev) String() string {
	return fmt.Sprintf("%s,%s",
		BleAddrTypeToString(bd.AddrType),
		bd.Addr.String())
}

type BleUuid16 uint16

func (bu16 BleUuid16) String() string {
	return fmt.Sprintf("0x%04x", uint16(bu16))
}

type BleUuid128 [16]byte

func (bu128 BleUuid128) String() string {
	return uuid.UUID(bu128).String()
}

// Parses the 36-character dashed form only; the braced and urn: forms are
// rejected.
func ParseUuid128(s string) (BleUuid128, error) {
	var bu128 BleUuid128

	if len(s) != 36 {
		return bu128, fmt.Errorf("Invalid UUID: %s", s)
	}

	u, err := uuid.Parse(s)
	if err != nil {
		return bu128, fmt.Errorf("Invalid UUID: %s", s)
	}

	return BleUuid128(u), nil
}

func (bu128 BleUuid128) MarshalJSON() ([]byte, error) {
	return json.Marshal(bu128.String())
}

type BleUuid struct {
	// Set to 0 if the 128-bit UUID should be used.
	U16 BleUuid16

	// Ignored if U16 is nonzero.
	U128 BleUuid128
}

func NewBleUuid16(u16 uint16) BleUuid {
	return BleUuid{U16: BleUuid16(u16)}
}

func NewBleUuid128(u128 BleUuid128) BleUuid {
	return BleUuid{U128: u128}
}

func (bu BleUuid) String() string {
	if bu.U16 != 0 {
		return bu.U16.String()
	} else {
		return bu.U128.String()
	}
}

func ParseUuid(uuidStr string) (BleUuid, error) {
	bu := BleUuid{}

	// First, try to parse as a 16-bit UUID.
	u64, err := strconv.ParseUint(uuidStr, 0, 16)
	if err == nil && u64 != 0 {
		bu.U16 = BleUuid16(u64)
		return bu, nil
	}

	// Try to parse as a 128-bit UUID.
	bu.U128, err = ParseUuid128(uuidStr)
	if err != nil {
		return bu, err
	}

	return bu, nil
}

func (bu BleUuid) MarshalJSON() ([]byte, error) {
	if bu.U16 != 0 {
		return json.Marshal(uint16(bu.U16))
	} else {
		return json.Marshal(bu.U128.String())
	}
}

func CompareUuids(a BleUuid, b BleUuid) int {
	if a.U16 != 0 || b.U16 != 0 {
		return int(a.U16) - int(b.U16)
	} else {
		return bytes.Compare(a.U128[:], b.U128[:])
	}
}

// A byte string rendered as "0x01:0x02:...".
type BleBytes []byte

func (bb BleBytes) String() string {
	var buf bytes.Buffer
	buf.Grow(len(bb) * 5)

	for i, b := range bb {
		if i != 0 {
			buf.WriteString(":")
		}
		fmt.Fprintf(&buf, "0x%02x", b)
	}

	return buf.String()
}

func (bb BleBytes) MarshalJSON() ([]byte, error) {
	return json.Marshal(bb.String())
}

// Parses a byte string.  Tokens are hex values separated by ':' or '-'; the
// "0x" prefix is optional.  The result may not exceed maxLen bytes.
func ParseBleBytes(s string, maxLen int) (BleBytes, error) {
	// strings.Split() returns { "" } when passed an empty string.
	if len(s) == 0 {
		return BleBytes{}, nil
	}

	toks := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return r == ':' || r == '-'
	})
	if len(toks) > maxLen {
		return nil, fmt.Errorf(
			"Byte stream too long; len=%d max=%d", len(toks), maxLen)
	}

	bb := make(BleBytes, len(toks))
	for i, t := range toks {
		t = strings.TrimPrefix(t, "0x")
		u64, err := strconv.ParseUint(t, 16, 8)
		if err != nil {
			return nil, fmt.Errorf(
				"Byte stream contains invalid token; token=%s stream=%s",
				t, s)
		}
		bb[i] = byte(u64)
	}

	return bb, nil
}

type BleScanFilterPolicy int

const (
	BLE_SCAN_FILT_NO_WL        BleScanFilterPolicy = 0
	BLE_SCAN_FILT_USE_WL                           = 1
	BLE_SCAN_FILT_NO_WL_INITA                      = 2
	BLE_SCAN_FILT_USE_WL_INITA                     = 3
)

var BleScanFilterPolicyTable = NewSymTable("BleScanFilterPolicy",
	map[int]string{
		int(BLE_SCAN_FILT_NO_WL):   "no_wl",
		BLE_SCAN_FILT_USE_WL:       "use_wl",
		BLE_SCAN_FILT_NO_WL_INITA:  "no_wl_inita",
		BLE_SCAN_FILT_USE_WL_INITA: "use_wl_inita",
	})

func BleScanFilterPolicyToString(filtPolicy BleScanFilterPolicy) string {
	return BleScanFilterPolicyTable.String(int(filtPolicy))
}

func BleScanFilterPolicyFromString(s string) (BleScanFilterPolicy, error) {
	code, err := BleScanFilterPolicyTable.Decode(s)
	return BleScanFilterPolicy(code), err
}

func (a BleScanFilterPolicy) MarshalJSON() ([]byte, error) {
	return json.Marshal(BleScanFilterPolicyToString(a))
}

type BleAdvEventType int

const (
	BLE_ADV_EVENT_IND           BleAdvEventType = 0
	BLE_ADV_EVENT_DIRECT_IND_HD                 = 1
	BLE_ADV_EVENT_SCAN_IND                      = 2
	BLE_ADV_EVENT_NONCONN_IND                   = 3
	BLE_ADV_EVENT_DIRECT_IND_LD                 = 4
)

var BleAdvEventTypeTable = NewSymTable("BleAdvEventType", map[int]string{
	int(BLE_ADV_EVENT_IND):      "ind",
	BLE_ADV_EVENT_DIRECT_IND_HD: "direct_ind_hd",
	BLE_ADV_EVENT_SCAN_IND:      "scan_ind",
	BLE_ADV_EVENT_NONCONN_IND:   "nonconn_ind",
	BLE_ADV_EVENT_DIRECT_IND_LD: "direct_ind_ld",
})

func BleAdvEventTypeToString(advEventType BleAdvEventType) string {
	return BleAdvEventTypeTable.String(int(advEventType))
}

func BleAdvEventTypeFromString(s string) (BleAdvEventType, error) {
	code, err := BleAdvEventTypeTable.Decode(s)
	return BleAdvEventType(code), err
}

func (a BleAdvEventType) MarshalJSON() ([]byte, error) {
	return json.Marshal(BleAdvEventTypeToString(a))
}

type BleAdvConnMode int

const (
	BLE_ADV_CONN_MODE_NON BleAdvConnMode = iota
	BLE_ADV_CONN_MODE_DIR
	BLE_ADV_CONN_MODE_UND
)

var BleAdvConnModeTable = NewSymTable("BleAdvConnMode", map[int]string{
	int(BLE_ADV_CONN_MODE_NON): "non",
	int(BLE_ADV_CONN_MODE_DIR): "dir",
	int(BLE_ADV_CONN_MODE_UND): "und",
})

func BleAdvConnModeToString(connMode BleAdvConnMode) string {
	return BleAdvConnModeTable.String(int(connMode))
}

func BleAdvConnModeFromString(s string) (BleAdvConnMode, error) {
	code, err := BleAdvConnModeTable.Decode(s)
	return BleAdvConnMode(code), err
}

func (a BleAdvConnMode) MarshalJSON() ([]byte, error) {
	return json.Marshal(BleAdvConnModeToString(a))
}

type BleAdvDiscMode int

const (
	BLE_ADV_DISC_MODE_NON BleAdvDiscMode = iota
	BLE_ADV_DISC_MODE_LTD
	BLE_ADV_DISC_MODE_GEN
)

var BleAdvDiscModeTable = NewSymTable("BleAdvDiscMode", map[int]string{
	int(BLE_ADV_DISC_MODE_NON): "non",
	int(BLE_ADV_DISC_MODE_LTD): "ltd",
	int(BLE_ADV_DISC_MODE_GEN): "gen",
})

func BleAdvDiscModeToString(discMode BleAdvDiscMode) string {
	return BleAdvDiscModeTable.String(int(discMode))
}

func BleAdvDiscModeFromString(s string) (BleAdvDiscMode, error) {
	code, err := BleAdvDiscModeTable.Decode(s)
	return BleAdvDiscMode(code), err
}

func (a BleAdvDiscMode) MarshalJSON() ([]byte, error) {
	return json.Marshal(BleAdvDiscModeToString(a))
}

type BleAdvFilterPolicy int

const (
	BLE_ADV_FILTER_POLICY_NONE BleAdvFilterPolicy = iota
	BLE_ADV_FILTER_POLICY_SCAN
	BLE_ADV_FILTER_POLICY_CONN
	BLE_ADV_FILTER_POLICY_BOTH
)

var BleAdvFilterPolicyTable = NewSymTable("BleAdvFilterPolicy",
	map[int]string{
		int(BLE_ADV_FILTER_POLICY_NONE): "none",
		int(BLE_ADV_FILTER_POLICY_SCAN): "scan",
		int(BLE_ADV_FILTER_POLICY_CONN): "conn",
		int(BLE_ADV_FILTER_POLICY_BOTH): "both",
	})

func BleAdvFilterPolicyToString(filtPolicy BleAdvFilterPolicy) string {
	return BleAdvFilterPolicyTable.String(int(filtPolicy))
}

func BleAdvFilterPolicyFromString(s string) (BleAdvFilterPolicy, error) {
	code, err := BleAdvFilterPolicyTable.Decode(s)
	return BleAdvFilterPolicy(code), err
}

func (a BleAdvFilterPolicy) MarshalJSON() ([]byte, error) {
	return json.Marshal(BleAdvFilterPolicyToString(a))
}

type BleSvcType int

const (
	BLE_SVC_TYPE_PRIMARY   BleSvcType = 1
	BLE_SVC_TYPE_SECONDARY            = 2
)

var BleSvcTypeTable = NewSymTable("BleSvcType", map[int]string{
	int(BLE_SVC_TYPE_PRIMARY): "primary",
	BLE_SVC_TYPE_SECONDARY:    "secondary",
})

func BleSvcTypeToString(svcType BleSvcType) string {
	return BleSvcTypeTable.String(int(svcType))
}

func BleSvcTypeFromString(s string) (BleSvcType, error) {
	code, err := BleSvcTypeTable.Decode(s)
	return BleSvcType(code), err
}

func (a BleSvcType) MarshalJSON() ([]byte, error) {
	return json.Marshal(BleSvcTypeToString(a))
}

type BleGattOp int

const (
	BLE_GATT_ACCESS_OP_READ_CHR  BleGattOp = 0
	BLE_GATT_ACCESS_OP_WRITE_CHR           = 1
	BLE_GATT_ACCESS_OP_READ_DSC            = 2
	BLE_GATT_ACCESS_OP_WRITE_DSC           = 3
)

var BleGattOpTable = NewSymTable("BleGattOp", map[int]string{
	int(BLE_GATT_ACCESS_OP_READ_CHR): "read_chr",
	BLE_GATT_ACCESS_OP_WRITE_CHR:     "write_chr",
	BLE_GATT_ACCESS_OP_READ_DSC:      "read_dsc",
	BLE_GATT_ACCESS_OP_WRITE_DSC:     "write_dsc",
})

func BleGattOpToString(op BleGattOp) string {
	return BleGattOpTable.String(int(op))
}

func BleGattOpFromString(s string) (BleGattOp, error) {
	code, err := BleGattOpTable.Decode(s)
	return BleGattOp(code), err
}

func (op BleGattOp) MarshalJSON() ([]byte, error) {
	return json.Marshal(BleGattOpToString(op))
}

func (op BleGattOp) IsWrite() bool {
	return op == BLE_GATT_ACCESS_OP_WRITE_CHR ||
		op == BLE_GATT_ACCESS_OP_WRITE_DSC
}

type BleSmAction int

const (
	BLE_SM_ACTION_NONE   BleSmAction = 0
	BLE_SM_ACTION_OOB                = 1
	BLE_SM_ACTION_INPUT              = 2
	BLE_SM_ACTION_DISP               = 3
	BLE_SM_ACTION_NUMCMP             = 4
)

var BleSmActionTable = NewSymTable("BleSmAction", map[int]string{
	int(BLE_SM_ACTION_NONE): "none",
	BLE_SM_ACTION_OOB:       "oob",
	BLE_SM_ACTION_INPUT:     "input",
	BLE_SM_ACTION_DISP:      "disp",
	BLE_SM_ACTION_NUMCMP:    "numcmp",
})

func BleSmActionToString(a BleSmAction) string {
	return BleSmActionTable.String(int(a))
}

func BleSmActionFromString(s string) (BleSmAction, error) {
	code, err := BleSmActionTable.Decode(s)
	return BleSmAction(code), err
}

func (a BleSmAction) MarshalJSON() ([]byte, error) {
	return json.Marshal(BleSmActionToString(a))
}

type BleChrFlags int

const (
	BLE_GATT_F_BROADCAST       BleChrFlags = 0x0001
	BLE_GATT_F_READ                        = 0x0002
	BLE_GATT_F_WRITE_NO_RSP                = 0x0004
	BLE_GATT_F_WRITE                       = 0x0008
	BLE_GATT_F_NOTIFY                      = 0x0010
	BLE_GATT_F_INDICATE                    = 0x0020
	BLE_GATT_F_AUTH_SIGN_WRITE             = 0x0040
	BLE_GATT_F_RELIABLE_WRITE              = 0x0080
	BLE_GATT_F_AUX_WRITE                   = 0x0100
	BLE_GATT_F_READ_ENC                    = 0x0200
	BLE_GATT_F_READ_AUTHEN                 = 0x0400
	BLE_GATT_F_READ_AUTHOR                 = 0x0800
	BLE_GATT_F_WRITE_ENC                   = 0x1000
	BLE_GATT_F_WRITE_AUTHEN                = 0x2000
	BLE_GATT_F_WRITE_AUTHOR                = 0x4000
)

type BleAttFlags int

const (
	BLE_ATT_F_READ         BleAttFlags = 0x01
	BLE_ATT_F_WRITE                    = 0x02
	BLE_ATT_F_READ_ENC                 = 0x04
	BLE_ATT_F_READ_AUTHEN              = 0x08
	BLE_ATT_F_READ_AUTHOR              = 0x10
	BLE_ATT_F_WRITE_ENC                = 0x20
	BLE_ATT_F_WRITE_AUTHEN             = 0x40
	BLE_ATT_F_WRITE_AUTHOR             = 0x80
)

type BleRole int

const (
	BLE_ROLE_MASTER BleRole = iota
	BLE_ROLE_SLAVE
)

type BleConnDesc struct {
	ConnHandle          uint16
	ConnItvl            uint16
	ConnLatency         uint16
	SupervisionTimeout  uint16
	Role                BleRole
	MasterClockAccuracy uint8

	OwnIdAddrType   BleAddrType
	OwnIdAddr       BleAddr
	OwnOtaAddrType  BleAddrType
	OwnOtaAddr      BleAddr
	PeerIdAddrType  BleAddrType
	PeerIdAddr      BleAddr
	PeerOtaAddrType BleAddrType
	PeerOtaAddr     BleAddr

	Encrypted     bool
	Authenticated bool
	Bonded        bool
	KeySize       uint8
}

func (d *BleConnDesc) String() string {
	return fmt.Sprintf("conn_handle=%d "+
		"own_id_addr=%s,%s own_ota_addr=%s,%s "+
		"peer_id_addr=%s,%s peer_ota_addr=%s,%s",
		d.ConnHandle,
		BleAddrTypeToString(d.OwnIdAddrType),
		d.OwnIdAddr.String(),
		BleAddrTypeToString(d.OwnOtaAddrType),
		d.OwnOtaAddr.String(),
		BleAddrTypeToString(d.PeerIdAddrType),
		d.PeerIdAddr.String(),
		BleAddrTypeToString(d.PeerOtaAddrType),
		d.PeerOtaAddr.String())
}

type BleAdvFields struct {
	// Each field is only present if the sender included it in its
	// advertisement.
	Flags              *uint8       `json:"flags,omitempty"`
	Uuids16            []BleUuid16  `json:"uuids16,omitempty"`
	Uuids16IsComplete  bool         `json:"uuids16_is_complete,omitempty"`
	Uuids32            []uint32     `json:"uuids32,omitempty"`
	Uuids32IsComplete  bool         `json:"uuids32_is_complete,omitempty"`
	Uuids128           []BleUuid128 `json:"uuids128,omitempty"`
	Uuids128IsComplete bool         `json:"uuids128_is_complete,omitempty"`
	Name               *string      `json:"name,omitempty"`
	NameIsComplete     bool         `json:"name_is_complete,omitempty"`
	TxPwrLvl           *int8        `json:"tx_pwr_lvl,omitempty"`
	SlaveItvlMin       *uint16      `json:"slave_itvl_min,omitempty"`
	SlaveItvlMax       *uint16      `json:"slave_itvl_max,omitempty"`
	SvcDataUuid16      BleBytes     `json:"svc_data_uuid16,omitempty"`
	PublicTgtAddrs     []BleAddr    `json:"public_tgt_addrs,omitempty"`
	Appearance         *uint16      `json:"appearance,omitempty"`
	AdvItvl            *uint16      `json:"adv_itvl,omitempty"`
	SvcDataUuid32      BleBytes     `json:"svc_data_uuid32,omitempty"`
	SvcDataUuid128     BleBytes     `json:"svc_data_uuid128,omitempty"`
	Uri                *string      `json:"uri,omitempty"`
	MfgData            BleBytes     `json:"mfg_data,omitempty"`
}

type BleAdvReport struct {
	// These fields are always present.
	EventType BleAdvEventType
	Sender    BleDev
	Rssi      int8
	Data      []byte

	// Only present for directed advertisements.
	DirectAddr *BleDev
}
