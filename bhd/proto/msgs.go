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
	. "mynewt.apache.org/blehostd/bhd/bledefs"
)

/*** Requests. */

type BleSyncReq struct {
	// Header
	MsgHdr
}

type BleConnectReq struct {
	// Header
	MsgHdr

	// Mandatory
	OwnAddrType        BleAddrType `json:"own_addr_type"`
	PeerAddrType       BleAddrType `json:"peer_addr_type"`
	PeerAddr           BleAddr     `json:"peer_addr"`
	DurationMs         int         `json:"duration_ms"`
	ScanItvl           uint16      `json:"scan_itvl"`
	ScanWindow         uint16      `json:"scan_window"`
	ItvlMin            uint16      `json:"itvl_min"`
	ItvlMax            uint16      `json:"itvl_max"`
	Latency            uint16      `json:"latency"`
	SupervisionTimeout uint16      `json:"supervision_timeout"`
	MinCeLen           uint16      `json:"min_ce_len"`
	MaxCeLen           uint16      `json:"max_ce_len"`
}

type BleTerminateReq struct {
	// Header
	MsgHdr

	// Mandatory
	ConnHandle uint16 `json:"conn_handle"`
	HciReason  uint8  `json:"hci_reason"`
}

type BleDiscAllSvcsReq struct {
	// Header
	MsgHdr

	// Mandatory
	ConnHandle uint16 `json:"conn_handle"`
}

type BleDiscSvcUuidReq struct {
	// Header
	MsgHdr

	// Mandatory
	ConnHandle uint16  `json:"conn_handle"`
	Uuid       BleUuid `json:"svc_uuid"`
}

type BleDiscAllChrsReq struct {
	// Header
	MsgHdr

	// Mandatory
	ConnHandle  uint16 `json:"conn_handle"`
	StartHandle uint16 `json:"start_handle"`
	EndHandle   uint16 `json:"end_handle"`
}

type BleDiscChrUuidReq struct {
	// Header
	MsgHdr

	// Mandatory
	ConnHandle  uint16  `json:"conn_handle"`
	StartHandle uint16  `json:"start_handle"`
	EndHandle   uint16  `json:"end_handle"`
	Uuid        BleUuid `json:"chr_uuid"`
}

type BleDiscAllDscsReq struct {
	// Header
	MsgHdr

	// Mandatory
	ConnHandle  uint16 `json:"conn_handle"`
	StartHandle uint16 `json:"start_handle"`
	EndHandle   uint16 `json:"end_handle"`
}

// Used for both write and write_cmd.
type BleWriteReq struct {
	// Header
	MsgHdr

	// Mandatory
	ConnHandle uint16   `json:"conn_handle"`
	AttrHandle uint16   `json:"attr_handle"`
	Data       BleBytes `json:"data"`
}

type BleExchangeMtuReq struct {
	// Header
	MsgHdr

	// Mandatory
	ConnHandle uint16 `json:"conn_handle"`
}

type BleGenRandAddrReq struct {
	// Header
	MsgHdr

	// Mandatory
	Nrpa bool `json:"nrpa"`
}

type BleSetRandAddrReq struct {
	// Header
	MsgHdr

	// Mandatory
	Addr BleAddr `json:"addr"`
}

type BleConnCancelReq struct {
	// Header
	MsgHdr
}

type BleScanReq struct {
	// Header
	MsgHdr

	// Mandatory
	OwnAddrType      BleAddrType         `json:"own_addr_type"`
	DurationMs       int                 `json:"duration_ms"`
	Itvl             uint16              `json:"itvl"`
	Window           uint16              `json:"window"`
	FilterPolicy     BleScanFilterPolicy `json:"filter_policy"`
	Limited          bool                `json:"limited"`
	Passive          bool                `json:"passive"`
	FilterDuplicates bool                `json:"filter_duplicates"`
}

type BleScanCancelReq struct {
	// Header
	MsgHdr
}

type BleSetPreferredMtuReq struct {
	// Header
	MsgHdr

	// Mandatory
	Mtu uint16 `json:"mtu"`
}

type BleSecurityInitiateReq struct {
	// Header
	MsgHdr

	// Mandatory
	ConnHandle uint16 `json:"conn_handle"`
}

type BleConnFindReq struct {
	// Header
	MsgHdr

	// Mandatory
	ConnHandle uint16 `json:"conn_handle"`
}

type BleResetReq struct {
	// Header
	MsgHdr
}

type BleAdvStartReq struct {
	// Header
	MsgHdr

	// Mandatory
	OwnAddrType   BleAddrType        `json:"own_addr_type"`
	DurationMs    int                `json:"duration_ms"`
	ConnMode      BleAdvConnMode     `json:"conn_mode"`
	DiscMode      BleAdvDiscMode     `json:"disc_mode"`
	ItvlMin       uint16             `json:"itvl_min"`
	ItvlMax       uint16             `json:"itvl_max"`
	ChannelMap    uint8              `json:"channel_map"`
	FilterPolicy  BleAdvFilterPolicy `json:"filter_policy"`
	HighDutyCycle bool               `json:"high_duty_cycle"`

	// Optional; peer_addr is mandatory if peer_addr_type is present.
	PeerAddrType *BleAddrType `json:"peer_addr_type,omitempty"`
	PeerAddr     *BleAddr     `json:"peer_addr,omitempty"`
}

type BleAdvStopReq struct {
	// Header
	MsgHdr
}

// Used for both adv_set_data and adv_rsp_set_data.
type BleAdvSetDataReq struct {
	// Header
	MsgHdr

	// Mandatory
	Data BleBytes `json:"data"`
}

type BleAdvFieldsReq struct {
	// Header
	MsgHdr

	// Optional
	BleAdvFields
}

type BleAddDsc struct {
	Uuid       BleUuid `json:"uuid"`
	AttFlags   uint8   `json:"att_flags"`
	MinKeySize uint8   `json:"min_key_size"`
}

type BleAddChr struct {
	Uuid       BleUuid     `json:"uuid"`
	Flags      uint16      `json:"flags"`
	MinKeySize uint8       `json:"min_key_size"`
	Dscs       []BleAddDsc `json:"descriptors,omitempty"`
}

type BleAddSvc struct {
	SvcType BleSvcType  `json:"type"`
	Uuid    BleUuid     `json:"uuid"`
	Chrs    []BleAddChr `json:"characteristics,omitempty"`
}

type BleAddSvcsReq struct {
	// Header
	MsgHdr

	// Mandatory
	Svcs []BleAddSvc `json:"services"`
}

type BleClearSvcsReq struct {
	// Header
	MsgHdr
}

type BleCommitSvcsReq struct {
	// Header
	MsgHdr
}

type BleAccessStatusReq struct {
	// Header
	MsgHdr

	// Mandatory
	AttStatus uint8 `json:"att_status"`

	// Optional
	Data BleBytes `json:"data,omitempty"`
}

type BleNotifyReq struct {
	// Header
	MsgHdr

	// Mandatory
	ConnHandle uint16   `json:"conn_handle"`
	AttrHandle uint16   `json:"attr_handle"`
	Data       BleBytes `json:"data"`
}

type BleFindChrReq struct {
	// Header
	MsgHdr

	// Mandatory
	SvcUuid BleUuid `json:"svc_uuid"`
	ChrUuid BleUuid `json:"chr_uuid"`
}

type BleSmInjectIoReq struct {
	// Header
	MsgHdr

	// Mandatory
	ConnHandle uint16      `json:"conn_handle"`
	Action     BleSmAction `json:"action"`

	// Only the field matching the action is read.
	OobData      BleBytes `json:"oob_data,omitempty"`
	Passkey      uint32   `json:"passkey"`
	NumcmpAccept bool     `json:"numcmp_accept"`
}

/*** Responses. */

type BleErrRsp struct {
	// Header
	MsgHdr

	// Mandatory
	Status int    `json:"status"`
	Msg    string `json:"msg"`
}

type BleSyncRsp struct {
	// Header
	MsgHdr

	// Mandatory
	Synced bool `json:"synced"`
}

// Shared by every response whose only payload is a status code.
type BleStatusRsp struct {
	// Header
	MsgHdr

	// Mandatory
	Status int `json:"status"`
}

type BleGenRandAddrRsp struct {
	// Header
	MsgHdr

	// Mandatory
	Status int `json:"status"`

	// Only present on success.
	Addr *BleAddr `json:"addr,omitempty"`
}

// The identity and over-the-air addresses of a connection.  Each address is
// only present when its type is known.
type BleConnAddrs struct {
	ConnHandle      *uint16      `json:"conn_handle,omitempty"`
	OwnIdAddrType   *BleAddrType `json:"own_id_addr_type,omitempty"`
	OwnIdAddr       *BleAddr     `json:"own_id_addr,omitempty"`
	OwnOtaAddrType  *BleAddrType `json:"own_ota_addr_type,omitempty"`
	OwnOtaAddr      *BleAddr     `json:"own_ota_addr,omitempty"`
	PeerIdAddrType  *BleAddrType `json:"peer_id_addr_type,omitempty"`
	PeerIdAddr      *BleAddr     `json:"peer_id_addr,omitempty"`
	PeerOtaAddrType *BleAddrType `json:"peer_ota_addr_type,omitempty"`
	PeerOtaAddr     *BleAddr     `json:"peer_ota_addr,omitempty"`
}

func addrPair(addrType BleAddrType, addr BleAddr) (*BleAddrType, *BleAddr) {
	if addrType == BLE_ADDR_TYPE_NONE {
		return nil, nil
	}
	return &addrType, &addr
}

func NewBleConnAddrs(d *BleConnDesc) BleConnAddrs {
	ca := BleConnAddrs{}

	if d.ConnHandle != BLE_HS_CONN_HANDLE_NONE {
		h := d.ConnHandle
		ca.ConnHandle = &h
	}

	ca.OwnIdAddrType, ca.OwnIdAddr = addrPair(d.OwnIdAddrType, d.OwnIdAddr)
	ca.OwnOtaAddrType, ca.OwnOtaAddr = addrPair(d.OwnOtaAddrType, d.OwnOtaAddr)
	ca.PeerIdAddrType, ca.PeerIdAddr = addrPair(d.PeerIdAddrType, d.PeerIdAddr)
	ca.PeerOtaAddrType, ca.PeerOtaAddr =
		addrPair(d.PeerOtaAddrType, d.PeerOtaAddr)

	return ca
}

type BleConnFindRsp struct {
	// Header
	MsgHdr

	// Mandatory
	Status int `json:"status"`

	// Only filled in on success.
	BleConnAddrs
	ConnItvl            uint16  `json:"conn_itvl"`
	ConnLatency         uint16  `json:"conn_latency"`
	SupervisionTimeout  uint16  `json:"supervision_timeout"`
	Role                BleRole `json:"role"`
	MasterClockAccuracy uint8   `json:"master_clock_accuracy"`
	Encrypted           bool    `json:"encrypted"`
	Authenticated       bool    `json:"authenticated"`
	Bonded              bool    `json:"bonded"`
	KeySize             uint8   `json:"key_size"`
}

// Fills in the connection details from a descriptor.
func (r *BleConnFindRsp) SetDesc(d *BleConnDesc) {
	r.BleConnAddrs = NewBleConnAddrs(d)
	r.ConnItvl = d.ConnItvl
	r.ConnLatency = d.ConnLatency
	r.SupervisionTimeout = d.SupervisionTimeout
	r.Role = d.Role
	r.MasterClockAccuracy = d.MasterClockAccuracy
	r.Encrypted = d.Encrypted
	r.Authenticated = d.Authenticated
	r.Bonded = d.Bonded
	r.KeySize = d.KeySize
}

type BleResetRsp struct {
	// Header
	MsgHdr
}

type BleAdvFieldsRsp struct {
	// Header
	MsgHdr

	// Mandatory
	Status int `json:"status"`

	// Only present on success.
	Data *BleBytes `json:"data,omitempty"`
}

type BleCommitDsc struct {
	Uuid   BleUuid `json:"uuid"`
	Handle uint16  `json:"handle"`
}

type BleCommitChr struct {
	Uuid      BleUuid        `json:"uuid"`
	DefHandle uint16         `json:"def_handle"`
	ValHandle uint16         `json:"val_handle"`
	Dscs      []BleCommitDsc `json:"descriptors"`
}

type BleCommitSvc struct {
	Uuid   BleUuid        `json:"uuid"`
	Handle uint16         `json:"handle"`
	Chrs   []BleCommitChr `json:"characteristics"`
}

type BleCommitSvcsRsp struct {
	// Header
	MsgHdr

	// Mandatory
	Status int            `json:"status"`
	Svcs   []BleCommitSvc `json:"services"`
}

type BleFindChrRsp struct {
	// Header
	MsgHdr

	// Mandatory
	Status    int    `json:"status"`
	DefHandle uint16 `json:"def_handle"`
	ValHandle uint16 `json:"val_handle"`
}

/*** Events. */

type BleSyncEvt struct {
	// Header
	MsgHdr

	// Mandatory
	Synced bool `json:"synced"`
}

type BleConnectEvt struct {
	// Header
	MsgHdr

	// Mandatory
	Status int `json:"status"`

	// Only present if a connection was established.
	ConnHandle *uint16 `json:"conn_handle,omitempty"`
}

type BleConnCancelEvt struct {
	// Header
	MsgHdr
}

type BleDisconnectEvt struct {
	// Header
	MsgHdr

	// Mandatory
	Reason int `json:"reason"`

	BleConnAddrs
}

type BleDiscSvc struct {
	StartHandle uint16 `json:"start_handle"`
	EndHandle   uint16 `json:"end_handle"`
	Uuid        string `json:"uuid"`
}

type BleDiscSvcEvt struct {
	// Header
	MsgHdr

	// Mandatory
	ConnHandle uint16 `json:"conn_handle"`
	Status     int    `json:"status"`

	// Absent in the terminating event.
	Svc *BleDiscSvc `json:"service,omitempty"`
}

type BleDiscChr struct {
	DefHandle  uint16 `json:"def_handle"`
	ValHandle  uint16 `json:"val_handle"`
	Properties uint8  `json:"properties"`
	Uuid       string `json:"uuid"`
}

type BleDiscChrEvt struct {
	// Header
	MsgHdr

	// Mandatory
	ConnHandle uint16 `json:"conn_handle"`
	Status     int    `json:"status"`

	// Absent in the terminating event.
	Chr *BleDiscChr `json:"characteristic,omitempty"`
}

type BleDiscDsc struct {
	Handle uint16 `json:"handle"`
	Uuid   string `json:"uuid"`
}

type BleDiscDscEvt struct {
	// Header
	MsgHdr

	// Mandatory
	ConnHandle   uint16 `json:"conn_handle"`
	Status       int    `json:"status"`
	ChrDefHandle uint16 `json:"chr_def_handle"`

	// Absent in the terminating event.
	Dsc *BleDiscDsc `json:"descriptor,omitempty"`
}

type BleWriteAckEvt struct {
	// Header
	MsgHdr

	// Mandatory
	ConnHandle uint16 `json:"conn_handle"`
	AttrHandle uint16 `json:"attr_handle"`
	Status     int    `json:"status"`
}

type BleNotifyRxEvt struct {
	// Header
	MsgHdr

	// Mandatory
	ConnHandle uint16   `json:"conn_handle"`
	AttrHandle uint16   `json:"attr_handle"`
	Indication bool     `json:"indication"`
	Data       BleBytes `json:"data"`
}

type BleMtuChangeEvt struct {
	// Header
	MsgHdr

	// Mandatory
	ConnHandle uint16 `json:"conn_handle"`
	Mtu        uint16 `json:"mtu"`
	Status     int    `json:"status"`
}

type BleScanEvt struct {
	// Header
	MsgHdr

	// Mandatory
	EventType BleAdvEventType `json:"event_type"`
	AddrType  BleAddrType     `json:"addr_type"`
	Addr      BleAddr         `json:"addr"`
	Rssi      int8            `json:"rssi"`

	// Optional
	Data           BleBytes     `json:"data,omitempty"`
	DirectAddrType *BleAddrType `json:"direct_addr_type,omitempty"`
	DirectAddr     *BleAddr     `json:"direct_addr,omitempty"`

	// Parsed advertising data; each field is only present if the
	// advertisement carried it.
	DataFlags              *uint8       `json:"data_flags,omitempty"`
	DataUuids16            []BleUuid16  `json:"data_uuids16,omitempty"`
	DataUuids16IsComplete  *bool        `json:"data_uuids16_is_complete,omitempty"`
	DataUuids32            []uint32     `json:"data_uuids32,omitempty"`
	DataUuids32IsComplete  *bool        `json:"data_uuids32_is_complete,omitempty"`
	DataUuids128           []BleUuid128 `json:"data_uuids128,omitempty"`
	DataUuids128IsComplete *bool        `json:"data_uuids128_is_complete,omitempty"`
	DataName               *string      `json:"data_name,omitempty"`
	DataNameIsComplete     *bool        `json:"data_name_is_complete,omitempty"`
	DataTxPwrLvl           *int8        `json:"data_tx_pwr_lvl,omitempty"`
	DataSlaveItvlMin       *uint16      `json:"data_slave_itvl_min,omitempty"`
	DataSlaveItvlMax       *uint16      `json:"data_slave_itvl_max,omitempty"`
	DataSvcDataUuid16      BleBytes     `json:"data_svc_data_uuid16,omitempty"`
	DataPublicTgtAddrs     []BleAddr    `json:"data_public_tgt_addrs,omitempty"`
	DataAppearance         *uint16      `json:"data_appearance,omitempty"`
	DataAdvItvl            *uint16      `json:"data_adv_itvl,omitempty"`
	DataSvcDataUuid32      BleBytes     `json:"data_svc_data_uuid32,omitempty"`
	DataSvcDataUuid128     BleBytes     `json:"data_svc_data_uuid128,omitempty"`
	DataUri                *string      `json:"data_uri,omitempty"`
	DataMfgData            BleBytes     `json:"data_mfg_data,omitempty"`
}

func optBool(present bool, val bool) *bool {
	if !present {
		return nil
	}
	return &val
}

// Copies the parsed advertising data into the event's data_* fields.
func (e *BleScanEvt) SetFields(f *BleAdvFields) {
	if f.Flags != nil && *f.Flags != 0 {
		e.DataFlags = f.Flags
	}

	e.DataUuids16 = f.Uuids16
	e.DataUuids16IsComplete = optBool(len(f.Uuids16) > 0, f.Uuids16IsComplete)
	e.DataUuids32 = f.Uuids32
	e.DataUuids32IsComplete = optBool(len(f.Uuids32) > 0, f.Uuids32IsComplete)
	e.DataUuids128 = f.Uuids128
	e.DataUuids128IsComplete =
		optBool(len(f.Uuids128) > 0, f.Uuids128IsComplete)

	if f.Name != nil && len(*f.Name) > 0 {
		e.DataName = f.Name
		e.DataNameIsComplete = optBool(true, f.NameIsComplete)
	}

	e.DataTxPwrLvl = f.TxPwrLvl
	if f.SlaveItvlMin != nil && f.SlaveItvlMax != nil {
		e.DataSlaveItvlMin = f.SlaveItvlMin
		e.DataSlaveItvlMax = f.SlaveItvlMax
	}
	e.DataSvcDataUuid16 = f.SvcDataUuid16
	e.DataPublicTgtAddrs = f.PublicTgtAddrs
	e.DataAppearance = f.Appearance
	e.DataAdvItvl = f.AdvItvl
	e.DataSvcDataUuid32 = f.SvcDataUuid32
	e.DataSvcDataUuid128 = f.SvcDataUuid128

	if f.Uri != nil && len(*f.Uri) > 0 {
		e.DataUri = f.Uri
	}
	e.DataMfgData = f.MfgData
}

type BleScanTmoEvt struct {
	// Header
	MsgHdr
}

type BleAdvCompleteEvt struct {
	// Header
	MsgHdr

	// Mandatory
	Reason int `json:"reason"`
}

type BleEncChangeEvt struct {
	// Header
	MsgHdr

	// Mandatory
	ConnHandle uint16 `json:"conn_handle"`
	Status     int    `json:"status"`
}

type BleResetEvt struct {
	// Header
	MsgHdr

	// Mandatory
	Reason int `json:"reason"`
}

type BleAccessEvt struct {
	// Header
	MsgHdr

	// Mandatory
	GattOp     BleGattOp `json:"access_op"`
	ConnHandle uint16    `json:"conn_handle"`
	AttHandle  uint16    `json:"att_handle"`
	Data       BleBytes  `json:"data"`
}

type BlePasskeyEvt struct {
	// Header
	MsgHdr

	// Mandatory
	ConnHandle uint16      `json:"conn_handle"`
	Action     BleSmAction `json:"action"`

	// Only present for numeric comparison.
	Numcmp *uint32 `json:"numcmp,omitempty"`
}
