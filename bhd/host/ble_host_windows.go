// +build windows

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
	. "mynewt.apache.org/blehostd/bhd/bledefs"
)

type BleHostCfg struct {
	CtlrName string
}

func NewBleHostCfg() BleHostCfg {
	return BleHostCfg{
		CtlrName: "default",
	}
}

// There is no native controller support on Windows.  The host never
// syncs, so every operation fails with ERR_CODE_ENOTSYNCED.
type BleHost struct {
	*SimHost
}

func NewBleHost(cfg BleHostCfg) *BleHost {
	return &BleHost{NewSimHost(NewSimHostCfg())}
}

func (h *BleHost) Start(l Listener) error {
	return hostErr(ERR_CODE_ENOTSUP, "Not Supported On Windows")
}
