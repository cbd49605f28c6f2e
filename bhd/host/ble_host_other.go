// +build !linux,!windows

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

	. "mynewt.apache.org/blehostd/bhd/bledefs"
)

// Only connection establishment and GATT client procedures are available
// without direct HCI access.

func setConnParams(d ble.Device, p ConnectParams) error {
	return nil
}

func setScanParams(d ble.Device, p ScanParams) error {
	return nil
}

func startAdvertising(d ble.Device, p AdvParams, advData []byte,
	rspData []byte) error {

	return hostErr(ERR_CODE_ENOTSUP, "raw advertising not supported")
}

func stopAdvertising(d ble.Device) error {
	return hostErr(ERR_CODE_ENOTSUP, "raw advertising not supported")
}

func setRandAddr(d ble.Device, addr BleAddr) error {
	return hostErr(ERR_CODE_ENOTSUP, "random address not supported")
}

func ownAddr(d ble.Device) string {
	return ""
}
