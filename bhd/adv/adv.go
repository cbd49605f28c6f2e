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

// Package adv converts between structured advertising fields and the raw
// length-type-value advertising data carried in advertisements and scan
// responses.
package adv

import (
	"bytes"
	"encoding/binary"

	"mynewt.apache.org/blehostd/bhd/bhdutil"
	. "mynewt.apache.org/blehostd/bhd/bledefs"
)

const (
	TYPE_FLAGS            = 0x01
	TYPE_INCOMP_UUIDS16   = 0x02
	TYPE_COMP_UUIDS16     = 0x03
	TYPE_INCOMP_UUIDS32   = 0x04
	TYPE_COMP_UUIDS32     = 0x05
	TYPE_INCOMP_UUIDS128  = 0x06
	TYPE_COMP_UUIDS128    = 0x07
	TYPE_INCOMP_NAME      = 0x08
	TYPE_COMP_NAME        = 0x09
	TYPE_TX_PWR_LVL       = 0x0a
	TYPE_SLAVE_ITVL_RANGE = 0x12
	TYPE_SVC_DATA_UUID16  = 0x16
	TYPE_PUBLIC_TGT_ADDR  = 0x17
	TYPE_APPEARANCE       = 0x19
	TYPE_ADV_ITVL         = 0x1a
	TYPE_SVC_DATA_UUID32  = 0x20
	TYPE_SVC_DATA_UUID128 = 0x21
	TYPE_URI              = 0x24
	TYPE_MFG_DATA         = 0xff
)

func reverse(b []byte) []byte {
	r := make([]byte, len(b))
	for i, c := range b {
		r[len(b)-1-i] = c
	}
	return r
}

type builder struct {
	buf bytes.Buffer
}

func (b *builder) field(adType byte, payload []byte) {
	b.buf.WriteByte(byte(len(payload) + 1))
	b.buf.WriteByte(adType)
	b.buf.Write(payload)
}

func le16(v uint16) []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, v)
	return b
}

func completeType(complete bool, incompType byte) byte {
	if complete {
		return incompType + 1
	}
	return incompType
}

// Encodes the given fields as raw advertising data.  Fields are written in
// ascending order of AD type.  If the result would not fit in a single
// advertisement, a BLE_HS_EMSGSIZE host error is returned.
func Build(f *BleAdvFields) ([]byte, error) {
	b := &builder{}

	if f.Flags != nil && *f.Flags != 0 {
		b.field(TYPE_FLAGS, []byte{*f.Flags})
	}

	if len(f.Uuids16) > 0 {
		var p []byte
		for _, u := range f.Uuids16 {
			p = append(p, le16(uint16(u))...)
		}
		b.field(completeType(f.Uuids16IsComplete, TYPE_INCOMP_UUIDS16), p)
	}

	if len(f.Uuids32) > 0 {
		var p []byte
		for _, u := range f.Uuids32 {
			u32 := make([]byte, 4)
			binary.LittleEndian.PutUint32(u32, u)
			p = append(p, u32...)
		}
		b.field(completeType(f.Uuids32IsComplete, TYPE_INCOMP_UUIDS32), p)
	}

	if len(f.Uuids128) > 0 {
		var p []byte
		for _, u := range f.Uuids128 {
			p = append(p, reverse(u[:])...)
		}
		b.field(completeType(f.Uuids128IsComplete, TYPE_INCOMP_UUIDS128), p)
	}

	if f.Name != nil && len(*f.Name) > 0 {
		b.field(completeType(f.NameIsComplete, TYPE_INCOMP_NAME),
			[]byte(*f.Name))
	}

	if f.TxPwrLvl != nil {
		b.field(TYPE_TX_PWR_LVL, []byte{byte(*f.TxPwrLvl)})
	}

	if f.SlaveItvlMin != nil && f.SlaveItvlMax != nil {
		p := append(le16(*f.SlaveItvlMin), le16(*f.SlaveItvlMax)...)
		b.field(TYPE_SLAVE_ITVL_RANGE, p)
	}

	if len(f.SvcDataUuid16) > 0 {
		b.field(TYPE_SVC_DATA_UUID16, f.SvcDataUuid16)
	}

	if len(f.PublicTgtAddrs) > 0 {
		var p []byte
		for _, a := range f.PublicTgtAddrs {
			p = append(p, reverse(a.Bytes[:])...)
		}
		b.field(TYPE_PUBLIC_TGT_ADDR, p)
	}

	if f.Appearance != nil {
		b.field(TYPE_APPEARANCE, le16(*f.Appearance))
	}

	if f.AdvItvl != nil {
		b.field(TYPE_ADV_ITVL, le16(*f.AdvItvl))
	}

	if len(f.SvcDataUuid32) > 0 {
		b.field(TYPE_SVC_DATA_UUID32, f.SvcDataUuid32)
	}

	if len(f.SvcDataUuid128) > 0 {
		b.field(TYPE_SVC_DATA_UUID128, f.SvcDataUuid128)
	}

	if f.Uri != nil && len(*f.Uri) > 0 {
		b.field(TYPE_URI, []byte(*f.Uri))
	}

	if len(f.MfgData) > 0 {
		b.field(TYPE_MFG_DATA, f.MfgData)
	}

	if b.buf.Len() > BLE_HS_ADV_MAX_SZ {
		return nil, bhdutil.FmtHostError(ERR_CODE_EMSGSIZE,
			"advertising data too long; len=%d max=%d",
			b.buf.Len(), BLE_HS_ADV_MAX_SZ)
	}

	return b.buf.Bytes(), nil
}

func badData(format string, args ...interface{}) error {
	return bhdutil.FmtHostError(ERR_CODE_EBADDATA, format, args...)
}

func parseUuids16(p []byte) ([]BleUuid16, error) {
	if len(p)%2 != 0 {
		return nil, badData("malformed 16-bit UUID list; len=%d", len(p))
	}

	uuids := make([]BleUuid16, 0, len(p)/2)
	for i := 0; i < len(p); i += 2 {
		uuids = append(uuids, BleUuid16(binary.LittleEndian.Uint16(p[i:])))
	}
	return uuids, nil
}

func parseUuids32(p []byte) ([]uint32, error) {
	if len(p)%4 != 0 {
		return nil, badData("malformed 32-bit UUID list; len=%d", len(p))
	}

	uuids := make([]uint32, 0, len(p)/4)
	for i := 0; i < len(p); i += 4 {
		uuids = append(uuids, binary.LittleEndian.Uint32(p[i:]))
	}
	return uuids, nil
}

func parseUuids128(p []byte) ([]BleUuid128, error) {
	if len(p)%16 != 0 {
		return nil, badData("malformed 128-bit UUID list; len=%d", len(p))
	}

	uuids := make([]BleUuid128, 0, len(p)/16)
	for i := 0; i < len(p); i += 16 {
		var u BleUuid128
		copy(u[:], reverse(p[i:i+16]))
		uuids = append(uuids, u)
	}
	return uuids, nil
}

func parseU16(adType byte, p []byte) (*uint16, error) {
	if len(p) != 2 {
		return nil, badData("malformed AD field; type=0x%02x len=%d",
			adType, len(p))
	}
	v := binary.LittleEndian.Uint16(p)
	return &v, nil
}

func dup(p []byte) BleBytes {
	b := make(BleBytes, len(p))
	copy(b, p)
	return b
}

// Decodes raw advertising data.  Unrecognized AD types are skipped.  A
// zero-length field terminates the data early.
func Parse(data []byte) (BleAdvFields, error) {
	f := BleAdvFields{}

	off := 0
	for off < len(data) {
		flen := int(data[off])
		if flen == 0 {
			break
		}
		if off+1+flen > len(data) {
			return f, badData("AD field overruns buffer; off=%d len=%d",
				off, flen)
		}

		adType := data[off+1]
		p := data[off+2 : off+1+flen]
		off += 1 + flen

		var err error

		switch adType {
		case TYPE_FLAGS:
			if len(p) != 1 {
				return f, badData("malformed flags field; len=%d", len(p))
			}
			flags := p[0]
			f.Flags = &flags

		case TYPE_INCOMP_UUIDS16, TYPE_COMP_UUIDS16:
			f.Uuids16, err = parseUuids16(p)
			f.Uuids16IsComplete = adType == TYPE_COMP_UUIDS16

		case TYPE_INCOMP_UUIDS32, TYPE_COMP_UUIDS32:
			f.Uuids32, err = parseUuids32(p)
			f.Uuids32IsComplete = adType == TYPE_COMP_UUIDS32

		case TYPE_INCOMP_UUIDS128, TYPE_COMP_UUIDS128:
			f.Uuids128, err = parseUuids128(p)
			f.Uuids128IsComplete = adType == TYPE_COMP_UUIDS128

		case TYPE_INCOMP_NAME, TYPE_COMP_NAME:
			name := string(p)
			f.Name = &name
			f.NameIsComplete = adType == TYPE_COMP_NAME

		case TYPE_TX_PWR_LVL:
			if len(p) != 1 {
				return f, badData("malformed tx power field; len=%d", len(p))
			}
			lvl := int8(p[0])
			f.TxPwrLvl = &lvl

		case TYPE_SLAVE_ITVL_RANGE:
			if len(p) != 4 {
				return f, badData("malformed slave interval field; len=%d",
					len(p))
			}
			itvlMin := binary.LittleEndian.Uint16(p[0:])
			itvlMax := binary.LittleEndian.Uint16(p[2:])
			f.SlaveItvlMin = &itvlMin
			f.SlaveItvlMax = &itvlMax

		case TYPE_SVC_DATA_UUID16:
			f.SvcDataUuid16 = dup(p)

		case TYPE_PUBLIC_TGT_ADDR:
			if len(p)%6 != 0 {
				return f, badData("malformed target address field; len=%d",
					len(p))
			}
			for i := 0; i < len(p); i += 6 {
				var a BleAddr
				copy(a.Bytes[:], reverse(p[i:i+6]))
				f.PublicTgtAddrs = append(f.PublicTgtAddrs, a)
			}

		case TYPE_APPEARANCE:
			f.Appearance, err = parseU16(adType, p)

		case TYPE_ADV_ITVL:
			f.AdvItvl, err = parseU16(adType, p)

		case TYPE_SVC_DATA_UUID32:
			f.SvcDataUuid32 = dup(p)

		case TYPE_SVC_DATA_UUID128:
			f.SvcDataUuid128 = dup(p)

		case TYPE_URI:
			uri := string(p)
			f.Uri = &uri

		case TYPE_MFG_DATA:
			f.MfgData = dup(p)
		}

		if err != nil {
			return f, err
		}
	}

	return f, nil
}
