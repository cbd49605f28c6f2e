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
	"math"

	. "mynewt.apache.org/blehostd/bhd/bledefs"
)

// Services, characteristics, and descriptors in an add_svcs request are only
// bounded by the GATT arena, which enforces its own limits.
const maxSvcDefElems = math.MaxInt32

// Decodes the op, type, and seq fields.  The first failure is returned as a
// FieldError; its seq is always zero.
func DecodeHdr(f Fields) (MsgHdr, *FieldError) {
	hdr := MsgHdr{}
	r := NewFieldReader(f)

	hdr.Op = MsgOp(r.Sym("op", MsgOpTable))
	if r.Err() != nil {
		return hdr, r.Err()
	}

	hdr.Type = MsgType(r.Sym("type", MsgTypeTable))
	if r.Err() != nil {
		return hdr, r.Err()
	}

	hdr.Seq = BleSeq(r.Int("seq", int64(BLE_SEQ_MIN), int64(BLE_SEQ_MAX)))
	if r.Err() != nil {
		return hdr, r.Err()
	}

	return hdr, nil
}

type reqDecodeFn func(r *FieldReader, hdr MsgHdr) Msg

var reqDecoderMap = map[MsgType]reqDecodeFn{
	MSG_TYPE_SYNC:              decodeSync,
	MSG_TYPE_CONNECT:           decodeConnect,
	MSG_TYPE_TERMINATE:         decodeTerminate,
	MSG_TYPE_DISC_ALL_SVCS:     decodeDiscAllSvcs,
	MSG_TYPE_DISC_SVC_UUID:     decodeDiscSvcUuid,
	MSG_TYPE_DISC_ALL_CHRS:     decodeDiscAllChrs,
	MSG_TYPE_DISC_CHR_UUID:     decodeDiscChrUuid,
	MSG_TYPE_DISC_ALL_DSCS:     decodeDiscAllDscs,
	MSG_TYPE_WRITE:             decodeWrite,
	MSG_TYPE_WRITE_CMD:         decodeWrite,
	MSG_TYPE_EXCHANGE_MTU:      decodeExchangeMtu,
	MSG_TYPE_GEN_RAND_ADDR:     decodeGenRandAddr,
	MSG_TYPE_SET_RAND_ADDR:     decodeSetRandAddr,
	MSG_TYPE_CONN_CANCEL:       decodeConnCancel,
	MSG_TYPE_SCAN:              decodeScan,
	MSG_TYPE_SCAN_CANCEL:       decodeScanCancel,
	MSG_TYPE_SET_PREFERRED_MTU: decodeSetPreferredMtu,
	MSG_TYPE_SECURITY_INITIATE: decodeSecurityInitiate,
	MSG_TYPE_CONN_FIND:         decodeConnFind,
	MSG_TYPE_RESET:             decodeReset,
	MSG_TYPE_ADV_START:         decodeAdvStart,
	MSG_TYPE_ADV_STOP:          decodeAdvStop,
	MSG_TYPE_ADV_SET_DATA:      decodeAdvSetData,
	MSG_TYPE_ADV_RSP_SET_DATA:  decodeAdvSetData,
	MSG_TYPE_ADV_FIELDS:        decodeAdvFields,
	MSG_TYPE_CLEAR_SVCS:        decodeClearSvcs,
	MSG_TYPE_ADD_SVCS:          decodeAddSvcs,
	MSG_TYPE_COMMIT_SVCS:       decodeCommitSvcs,
	MSG_TYPE_ACCESS_STATUS:     decodeAccessStatus,
	MSG_TYPE_NOTIFY:            decodeNotify,
	MSG_TYPE_FIND_CHR:          decodeFindChr,
	MSG_TYPE_SM_INJECT_IO:      decodeSmInjectIo,
}

// Indicates whether the given type names a request the gateway accepts.
func IsReqType(msgType MsgType) bool {
	_, ok := reqDecoderMap[msgType]
	return ok
}

// Decodes the body of a request whose header has already been decoded.
// Every field is validated before a value is accepted; the first bad field is
// returned as a FieldError.
func DecodeReq(hdr MsgHdr, f Fields) (Msg, *FieldError) {
	fn := reqDecoderMap[hdr.Type]
	if fn == nil {
		return nil, badField("type")
	}

	r := NewFieldReader(f)
	m := fn(r, hdr)
	if r.Err() != nil {
		return nil, r.Err()
	}

	return m, nil
}

func decodeSync(r *FieldReader, hdr MsgHdr) Msg {
	return &BleSyncReq{MsgHdr: hdr}
}

func decodeConnect(r *FieldReader, hdr MsgHdr) Msg {
	req := &BleConnectReq{MsgHdr: hdr}

	req.OwnAddrType = r.AddrType("own_addr_type")
	req.PeerAddrType = r.AddrType("peer_addr_type")
	req.PeerAddr = r.Addr("peer_addr")
	req.DurationMs = int(r.Int("duration_ms", 0, math.MaxInt32))
	req.ScanItvl = uint16(r.Int("scan_itvl", 0, math.MaxInt16))
	req.ScanWindow = uint16(r.Int("scan_window", 0, math.MaxInt16))
	req.ItvlMin = uint16(r.Int("itvl_min", 0, math.MaxInt16))
	req.ItvlMax = uint16(r.Int("itvl_max", 0, math.MaxInt16))
	req.Latency = uint16(r.Int("latency", 0, math.MaxInt16))
	req.SupervisionTimeout =
		uint16(r.Int("supervision_timeout", 0, math.MaxInt16))
	req.MinCeLen = uint16(r.Int("min_ce_len", 0, math.MaxInt16))
	req.MaxCeLen = uint16(r.Int("max_ce_len", 0, math.MaxInt16))

	return req
}

func decodeTerminate(r *FieldReader, hdr MsgHdr) Msg {
	req := &BleTerminateReq{MsgHdr: hdr}

	req.ConnHandle = r.Uint16("conn_handle")
	req.HciReason = r.Uint8("hci_reason")

	return req
}

func decodeDiscAllSvcs(r *FieldReader, hdr MsgHdr) Msg {
	req := &BleDiscAllSvcsReq{MsgHdr: hdr}
	req.ConnHandle = r.Uint16("conn_handle")
	return req
}

func decodeDiscSvcUuid(r *FieldReader, hdr MsgHdr) Msg {
	req := &BleDiscSvcUuidReq{MsgHdr: hdr}

	req.ConnHandle = r.Uint16("conn_handle")
	req.Uuid = r.Uuid("svc_uuid")

	return req
}

func decodeDiscAllChrs(r *FieldReader, hdr MsgHdr) Msg {
	req := &BleDiscAllChrsReq{MsgHdr: hdr}

	req.ConnHandle = r.Uint16("conn_handle")
	req.StartHandle = r.Uint16("start_handle")
	req.EndHandle = r.Uint16("end_handle")

	return req
}

func decodeDiscChrUuid(r *FieldReader, hdr MsgHdr) Msg {
	req := &BleDiscChrUuidReq{MsgHdr: hdr}

	req.ConnHandle = r.Uint16("conn_handle")
	req.StartHandle = r.Uint16("start_handle")
	req.EndHandle = r.Uint16("end_handle")
	req.Uuid = r.Uuid("chr_uuid")

	return req
}

func decodeDiscAllDscs(r *FieldReader, hdr MsgHdr) Msg {
	req := &BleDiscAllDscsReq{MsgHdr: hdr}

	req.ConnHandle = r.Uint16("conn_handle")
	req.StartHandle = r.Uint16("start_handle")
	req.EndHandle = r.Uint16("end_handle")

	return req
}

func decodeWrite(r *FieldReader, hdr MsgHdr) Msg {
	req := &BleWriteReq{MsgHdr: hdr}

	req.ConnHandle = r.Uint16("conn_handle")
	req.AttrHandle = r.Uint16("attr_handle")
	req.Data = r.Bytes("data", BLE_ATT_ATTR_MAX_LEN+3)

	return req
}

func decodeExchangeMtu(r *FieldReader, hdr MsgHdr) Msg {
	req := &BleExchangeMtuReq{MsgHdr: hdr}
	req.ConnHandle = r.Uint16("conn_handle")
	return req
}

func decodeGenRandAddr(r *FieldReader, hdr MsgHdr) Msg {
	req := &BleGenRandAddrReq{MsgHdr: hdr}
	req.Nrpa = r.Bool("nrpa")
	return req
}

func decodeSetRandAddr(r *FieldReader, hdr MsgHdr) Msg {
	req := &BleSetRandAddrReq{MsgHdr: hdr}
	req.Addr = r.Addr("addr")
	return req
}

func decodeConnCancel(r *FieldReader, hdr MsgHdr) Msg {
	return &BleConnCancelReq{MsgHdr: hdr}
}

func decodeScan(r *FieldReader, hdr MsgHdr) Msg {
	req := &BleScanReq{MsgHdr: hdr}

	req.OwnAddrType = r.AddrType("own_addr_type")
	req.DurationMs = int(r.Int("duration_ms", 0, math.MaxInt32))
	req.Itvl = r.Uint16("itvl")
	req.Window = r.Uint16("window")
	req.FilterPolicy = BleScanFilterPolicy(
		r.Sym("filter_policy", BleScanFilterPolicyTable))
	req.Limited = r.Bool("limited")
	req.Passive = r.Bool("passive")
	req.FilterDuplicates = r.Bool("filter_duplicates")

	return req
}

func decodeScanCancel(r *FieldReader, hdr MsgHdr) Msg {
	return &BleScanCancelReq{MsgHdr: hdr}
}

func decodeSetPreferredMtu(r *FieldReader, hdr MsgHdr) Msg {
	req := &BleSetPreferredMtuReq{MsgHdr: hdr}
	req.Mtu = r.Uint16("mtu")
	return req
}

func decodeSecurityInitiate(r *FieldReader, hdr MsgHdr) Msg {
	req := &BleSecurityInitiateReq{MsgHdr: hdr}
	req.ConnHandle = r.Uint16("conn_handle")
	return req
}

func decodeConnFind(r *FieldReader, hdr MsgHdr) Msg {
	req := &BleConnFindReq{MsgHdr: hdr}
	req.ConnHandle = r.Uint16("conn_handle")
	return req
}

func decodeReset(r *FieldReader, hdr MsgHdr) Msg {
	return &BleResetReq{MsgHdr: hdr}
}

func decodeAdvStart(r *FieldReader, hdr MsgHdr) Msg {
	req := &BleAdvStartReq{MsgHdr: hdr}

	req.OwnAddrType = r.AddrType("own_addr_type")

	if r.Has("peer_addr_type") {
		peerAddrType := r.AddrType("peer_addr_type")
		peerAddr := r.Addr("peer_addr")
		req.PeerAddrType = &peerAddrType
		req.PeerAddr = &peerAddr
	}

	req.DurationMs = int(r.Int("duration_ms", 0, math.MaxInt32))
	req.ConnMode = BleAdvConnMode(r.Sym("conn_mode", BleAdvConnModeTable))
	req.DiscMode = BleAdvDiscMode(r.Sym("disc_mode", BleAdvDiscModeTable))
	req.ItvlMin = uint16(r.Int("itvl_min", 0, math.MaxInt16))
	req.ItvlMax = uint16(r.Int("itvl_max", 0, math.MaxInt16))
	req.ChannelMap = uint8(r.Int("channel_map", 0, math.MaxInt8))
	req.FilterPolicy = BleAdvFilterPolicy(
		r.Sym("filter_policy", BleAdvFilterPolicyTable))
	req.HighDutyCycle = r.Bool("high_duty_cycle")

	return req
}

func decodeAdvStop(r *FieldReader, hdr MsgHdr) Msg {
	return &BleAdvStopReq{MsgHdr: hdr}
}

func decodeAdvSetData(r *FieldReader, hdr MsgHdr) Msg {
	req := &BleAdvSetDataReq{MsgHdr: hdr}
	req.Data = r.Bytes("data", BLE_HS_ADV_MAX_SZ)
	return req
}

func decodeAdvFields(r *FieldReader, hdr MsgHdr) Msg {
	req := &BleAdvFieldsReq{MsgHdr: hdr}
	f := &req.BleAdvFields

	if r.Has("flags") {
		flags := r.Uint8("flags")
		if r.Err() == nil && flags == 0 {
			r.Invalid("flags")
		}
		f.Flags = &flags
	}

	if r.Has("uuids16") {
		for _, v := range r.Ints("uuids16", BLE_HS_ADV_MAX_FIELD_SZ/2,
			0, 0xffff) {

			f.Uuids16 = append(f.Uuids16, BleUuid16(v))
		}
	}
	if r.Has("uuids16_is_complete") {
		f.Uuids16IsComplete = r.Bool("uuids16_is_complete")
	}

	if r.Has("uuids32") {
		for _, v := range r.Ints("uuids32", BLE_HS_ADV_MAX_FIELD_SZ/4,
			0, math.MaxUint32) {

			f.Uuids32 = append(f.Uuids32, uint32(v))
		}
	}
	if r.Has("uuids32_is_complete") {
		f.Uuids32IsComplete = r.Bool("uuids32_is_complete")
	}

	if r.Has("uuids128") {
		r.Array("uuids128", BLE_HS_ADV_MAX_FIELD_SZ/16,
			func(i int, v interface{}) {
				s, ok := v.(string)
				if !ok {
					r.Bad("uuids128")
					return
				}
				u128, err := ParseUuid128(s)
				if err != nil {
					r.Bad("uuids128")
					return
				}
				f.Uuids128 = append(f.Uuids128, u128)
			})
	}
	if r.Has("uuids128_is_complete") {
		f.Uuids128IsComplete = r.Bool("uuids128_is_complete")
	}

	if r.Has("name") {
		name := r.String("name")
		if len(name) > BLE_HS_ADV_MAX_FIELD_SZ {
			r.Bad("name")
		}
		f.Name = &name
	}
	if r.Has("name_is_complete") {
		f.NameIsComplete = r.Bool("name_is_complete")
	}

	if r.Has("tx_pwr_lvl") {
		lvl := int8(r.Int("tx_pwr_lvl", math.MinInt8, math.MaxInt8))
		f.TxPwrLvl = &lvl
	}

	// The maximum is only read when the minimum is present.
	if r.Has("slave_itvl_min") {
		itvlMin := r.Uint16("slave_itvl_min")
		itvlMax := r.Uint16("slave_itvl_max")
		f.SlaveItvlMin = &itvlMin
		f.SlaveItvlMax = &itvlMax
	}

	if r.Has("svc_data_uuid16") {
		f.SvcDataUuid16 = r.Bytes("svc_data_uuid16", BLE_HS_ADV_MAX_FIELD_SZ)
	}

	if r.Has("public_tgt_addrs") {
		r.Array("public_tgt_addrs", BLE_HS_ADV_MAX_FIELD_SZ/6,
			func(i int, v interface{}) {
				s, ok := v.(string)
				if !ok {
					r.Bad("public_tgt_addrs")
					return
				}
				addr, err := ParseBleAddr(s)
				if err != nil {
					r.Bad("public_tgt_addrs")
					return
				}
				f.PublicTgtAddrs = append(f.PublicTgtAddrs, addr)
			})
	}

	if r.Has("appearance") {
		appearance := r.Uint16("appearance")
		f.Appearance = &appearance
	}

	if r.Has("adv_itvl") {
		advItvl := r.Uint16("adv_itvl")
		f.AdvItvl = &advItvl
	}

	if r.Has("svc_data_uuid32") {
		f.SvcDataUuid32 = r.Bytes("svc_data_uuid32", BLE_HS_ADV_MAX_FIELD_SZ)
	}

	if r.Has("svc_data_uuid128") {
		f.SvcDataUuid128 = r.Bytes("svc_data_uuid128",
			BLE_HS_ADV_MAX_FIELD_SZ)
	}

	if r.Has("uri") {
		uri := r.String("uri")
		if len(uri) > BLE_HS_ADV_MAX_FIELD_SZ {
			r.Bad("uri")
		}
		f.Uri = &uri
	}

	if r.Has("mfg_data") {
		f.MfgData = r.Bytes("mfg_data", BLE_HS_ADV_MAX_FIELD_SZ)
	}

	return req
}

func decodeClearSvcs(r *FieldReader, hdr MsgHdr) Msg {
	return &BleClearSvcsReq{MsgHdr: hdr}
}

func decodeDsc(r *FieldReader) BleAddDsc {
	return BleAddDsc{
		Uuid:       r.Uuid("uuid"),
		AttFlags:   r.Uint8("att_flags"),
		MinKeySize: r.Uint8("min_key_size"),
	}
}

func decodeChr(r *FieldReader) BleAddChr {
	chr := BleAddChr{
		Uuid:       r.Uuid("uuid"),
		Flags:      r.Uint16("flags"),
		MinKeySize: r.Uint8("min_key_size"),
	}

	if r.Has("descriptors") {
		for _, obj := range r.Objects("descriptors", maxSvcDefElems) {
			dr := r.Nested(obj, "descriptor")
			dsc := decodeDsc(dr)
			if dr.Err() != nil {
				r.fail(dr.Err())
				break
			}
			chr.Dscs = append(chr.Dscs, dsc)
		}
	}

	return chr
}

func decodeSvc(r *FieldReader) BleAddSvc {
	svc := BleAddSvc{
		SvcType: BleSvcType(r.Sym("type", BleSvcTypeTable)),
		Uuid:    r.Uuid("uuid"),
	}

	if r.Has("characteristics") {
		for _, obj := range r.Objects("characteristics", maxSvcDefElems) {
			cr := r.Nested(obj, "characteristic")
			chr := decodeChr(cr)
			if cr.Err() != nil {
				r.fail(cr.Err())
				break
			}
			svc.Chrs = append(svc.Chrs, chr)
		}
	}

	return svc
}

func decodeAddSvcs(r *FieldReader, hdr MsgHdr) Msg {
	req := &BleAddSvcsReq{MsgHdr: hdr}

	for _, obj := range r.Objects("services", maxSvcDefElems) {
		sr := r.Nested(obj, "service")
		svc := decodeSvc(sr)
		if sr.Err() != nil {
			r.fail(sr.Err())
			break
		}
		req.Svcs = append(req.Svcs, svc)
	}

	return req
}

func decodeCommitSvcs(r *FieldReader, hdr MsgHdr) Msg {
	return &BleCommitSvcsReq{MsgHdr: hdr}
}

func decodeAccessStatus(r *FieldReader, hdr MsgHdr) Msg {
	req := &BleAccessStatusReq{MsgHdr: hdr}

	req.AttStatus = r.Uint8("att_status")
	if r.Has("data") {
		req.Data = r.Bytes("data", BLE_ATT_ATTR_MAX_LEN)
	}

	return req
}

func decodeNotify(r *FieldReader, hdr MsgHdr) Msg {
	req := &BleNotifyReq{MsgHdr: hdr}

	req.ConnHandle = r.Uint16("conn_handle")
	req.AttrHandle = r.Uint16("attr_handle")
	req.Data = r.Bytes("data", BLE_ATT_ATTR_MAX_LEN+3)

	return req
}

func decodeFindChr(r *FieldReader, hdr MsgHdr) Msg {
	req := &BleFindChrReq{MsgHdr: hdr}

	req.SvcUuid = r.Uuid("svc_uuid")
	req.ChrUuid = r.Uuid("chr_uuid")

	return req
}

func decodeSmInjectIo(r *FieldReader, hdr MsgHdr) Msg {
	req := &BleSmInjectIoReq{MsgHdr: hdr}

	req.ConnHandle = r.Uint16("conn_handle")
	req.Action = BleSmAction(r.Sym("action", BleSmActionTable))
	if r.Err() != nil {
		return req
	}

	switch req.Action {
	case BLE_SM_ACTION_OOB:
		req.OobData = r.Bytes("oob_data", 16)
		if r.Err() == nil && len(req.OobData) != 16 {
			r.Invalid("oob_data")
		}

	case BLE_SM_ACTION_INPUT, BLE_SM_ACTION_DISP:
		req.Passkey = uint32(r.Int("passkey", 0, math.MaxUint32))

	case BLE_SM_ACTION_NUMCMP:
		req.NumcmpAccept = r.Bool("numcmp_accept")

	default:
		r.Invalid("action")
	}

	return req
}

func NewBleErrRsp(seq BleSeq, status int, msg string) *BleErrRsp {
	return &BleErrRsp{
		MsgHdr: RspHdr(MSG_TYPE_ERR, seq),
		Status: status,
		Msg:    msg,
	}
}

func newFieldErrRsp(seq BleSeq, fe *FieldError) *BleErrRsp {
	return NewBleErrRsp(seq, fe.Status, fe.Error())
}

// Decodes a complete request.  On failure, the returned error response is
// ready to be sent: header failures carry a seq of zero, while body failures
// echo the request's seq.
func DecodeRequest(data []byte) (Msg, *BleErrRsp) {
	f, fe := ParseFields(data)
	if fe != nil {
		return nil, newFieldErrRsp(0, fe)
	}

	hdr, fe := DecodeHdr(f)
	if fe != nil {
		return nil, newFieldErrRsp(0, fe)
	}

	if hdr.Op != MSG_OP_REQ {
		return nil, newFieldErrRsp(hdr.Seq, badField("op"))
	}

	if !IsReqType(hdr.Type) {
		return nil, newFieldErrRsp(hdr.Seq, badField("type"))
	}

	m, fe := DecodeReq(hdr, f)
	if fe != nil {
		return nil, newFieldErrRsp(hdr.Seq, fe)
	}

	return m, nil
}
