// +build linux

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

package host

import (
	"github.com/JuulLabs-OSS/ble"
	"github.com/JuulLabs-OSS/ble/linux"
	"github.com/JuulLabs-OSS/ble/linux/hci/cmd"

	. "mynewt.apache.org/blehostd/bhd/bledefs"
)

// Default advertising interval range, in units of 0.625 ms.
const (
	ADV_ITVL_DFLT_MIN = 0x0030
	ADV_ITVL_DFLT_MAX = 0x0060
)

// HCI advertising event types.
const (
	hciAdvTypeInd         = 0x00
	hciAdvTypeDirectIndHd = 0x01
	hciAdvTypeScanInd     = 0x02
	hciAdvTypeNonconnInd  = 0x03
	hciAdvTypeDirectIndLd = 0x04
)

func linuxDev(d ble.Device) (*linux.Device, error) {
	ldev, ok := d.(*linux.Device)
	if !ok {
		return nil, hostErr(ERR_CODE_ENOTSUP,
			"operation requires an HCI controller")
	}
	return ldev, nil
}

// HCI commands carry addresses least significant byte first.
func hciAddr(addr BleAddr) [6]byte {
	var b [6]byte
	for i, c := range addr.Bytes {
		b[5-i] = c
	}
	return b
}

func hciCmdErr(what string, err error) error {
	return hostErr(ERR_CODE_EUNKNOWN, "error %s: %s", what, err.Error())
}

func setConnParams(d ble.Device, p ConnectParams) error {
	ldev, err := linuxDev(d)
	if err != nil {
		return err
	}

	cc := cmd.LECreateConnection{
		LEScanInterval:        p.ScanItvl,
		LEScanWindow:          p.ScanWindow,
		InitiatorFilterPolicy: 0x00, // White list is not used
		OwnAddressType:        uint8(p.OwnAddrType),
		ConnIntervalMin:       p.ItvlMin,
		ConnIntervalMax:       p.ItvlMax,
		ConnLatency:           p.Latency,
		SupervisionTimeout:    p.SupervisionTimeout,
		MinimumCELength:       p.MinCeLen,
		MaximumCELength:       p.MaxCeLen,

		// Specified at connect time.
		PeerAddressType: uint8(p.PeerAddrType),
		PeerAddress:     hciAddr(p.PeerAddr),
	}

	// Zeroed parameters fall back to the controller's usual values.
	if cc.LEScanInterval == 0 {
		cc.LEScanInterval = 0x0010
	}
	if cc.LEScanWindow == 0 {
		cc.LEScanWindow = 0x0010
	}
	if cc.ConnIntervalMin == 0 {
		cc.ConnIntervalMin = 0x0006
	}
	if cc.ConnIntervalMax == 0 {
		cc.ConnIntervalMax = 0x0006
	}
	if cc.SupervisionTimeout == 0 {
		cc.SupervisionTimeout = 0x0048
	}

	opt := ble.OptConnParams(cc)
	if err := ldev.HCI.Option(opt); err != nil {
		return hciCmdErr("setting connection parameters", err)
	}

	return nil
}

func setScanParams(d ble.Device, p ScanParams) error {
	ldev, err := linuxDev(d)
	if err != nil {
		return err
	}

	sp := cmd.LESetScanParameters{
		LEScanType:           0x01, // Active
		LEScanInterval:       p.Itvl,
		LEScanWindow:         p.Window,
		OwnAddressType:       uint8(p.OwnAddrType),
		ScanningFilterPolicy: uint8(p.FilterPolicy),
	}
	if p.Passive {
		sp.LEScanType = 0x00
	}
	if sp.LEScanInterval == 0 {
		sp.LEScanInterval = 0x0010
	}
	if sp.LEScanWindow == 0 {
		sp.LEScanWindow = 0x0010
	}

	if err := ldev.HCI.Send(&sp, nil); err != nil {
		return hciCmdErr("setting scan parameters", err)
	}

	return nil
}

func hciAdvType(p AdvParams) uint8 {
	switch p.ConnMode {
	case BLE_ADV_CONN_MODE_UND:
		return hciAdvTypeInd

	case BLE_ADV_CONN_MODE_DIR:
		if p.HighDutyCycle {
			return hciAdvTypeDirectIndHd
		}
		return hciAdvTypeDirectIndLd

	default:
		if p.DiscMode != BLE_ADV_DISC_MODE_NON {
			return hciAdvTypeScanInd
		}
		return hciAdvTypeNonconnInd
	}
}

func startAdvertising(d ble.Device, p AdvParams, advData []byte,
	rspData []byte) error {

	ldev, err := linuxDev(d)
	if err != nil {
		return err
	}

	ap := cmd.LESetAdvertisingParameters{
		AdvertisingIntervalMin:  p.ItvlMin,
		AdvertisingIntervalMax:  p.ItvlMax,
		AdvertisingType:         hciAdvType(p),
		OwnAddressType:          uint8(p.OwnAddrType),
		DirectAddressType:       uint8(p.PeerAddrType),
		DirectAddress:           hciAddr(p.PeerAddr),
		AdvertisingChannelMap:   p.ChannelMap,
		AdvertisingFilterPolicy: uint8(p.FilterPolicy),
	}
	if ap.AdvertisingIntervalMin == 0 {
		ap.AdvertisingIntervalMin = ADV_ITVL_DFLT_MIN
	}
	if ap.AdvertisingIntervalMax == 0 {
		ap.AdvertisingIntervalMax = ADV_ITVL_DFLT_MAX
	}
	if ap.AdvertisingChannelMap == 0 {
		ap.AdvertisingChannelMap = 0x07
	}

	if err := ldev.HCI.Send(&ap, nil); err != nil {
		return hciCmdErr("setting advertising parameters", err)
	}
	if err := ldev.HCI.SetAdvertisement(advData, rspData); err != nil {
		return hciCmdErr("setting advertising data", err)
	}
	if err := ldev.HCI.Advertise(); err != nil {
		return hciCmdErr("starting advertising", err)
	}

	return nil
}

func stopAdvertising(d ble.Device) error {
	ldev, err := linuxDev(d)
	if err != nil {
		return err
	}

	if err := ldev.HCI.StopAdvertising(); err != nil {
		return hciCmdErr("stopping advertising", err)
	}
	return nil
}

func setRandAddr(d ble.Device, addr BleAddr) error {
	ldev, err := linuxDev(d)
	if err != nil {
		return err
	}

	c := cmd.LESetRandomAddress{
		RandomAddress: hciAddr(addr),
	}
	if err := ldev.HCI.Send(&c, nil); err != nil {
		return hciCmdErr("setting random address", err)
	}
	return nil
}

func ownAddr(d ble.Device) string {
	ldev, ok := d.(*linux.Device)
	if !ok {
		return ""
	}
	return ldev.HCI.Addr().String()
}
