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

package cli

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"mynewt.apache.org/blehostd/bhd/host"
)

func TestBuildConfig(t *testing.T) {
	dir, err := ioutil.TempDir("", "blehostd-cli")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	filename := filepath.Join(dir, "cfg.json")
	blob := `{"access_timeout":"3s","frame_ctr":true,"loglevel":"warn"}`
	if err := ioutil.WriteFile(filename, []byte(blob), 0644); err != nil {
		t.Fatal(err)
	}

	cmd := Commands()
	err = cmd.ParseFlags([]string{
		"--config", filename,
		"--frame-ctr=false",
		"-l", "debug",
	})
	if err != nil {
		t.Fatalf("flag parse failed: %s", err.Error())
	}

	cfg, err := buildConfig(cmd)
	if err != nil {
		t.Fatalf("buildConfig failed: %s", err.Error())
	}

	if cfg.AccessTimeout != 3*time.Second {
		t.Errorf("access timeout not read from file: %s", cfg.AccessTimeout)
	}
	if cfg.FrameCtr {
		t.Errorf("--frame-ctr did not override the file")
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("--loglevel did not override the file: %s", cfg.LogLevel)
	}
}

func TestNewHost(t *testing.T) {
	if _, ok := newHost(SIM_CTLR, false).(*host.SimHost); !ok {
		t.Errorf("\"%s\" controller did not select the simulated host",
			SIM_CTLR)
	}
	if _, ok := newHost("hci0", true).(*host.SimHost); !ok {
		t.Errorf("--sim did not select the simulated host")
	}
	if _, ok := newHost("hci0", false).(*host.BleHost); !ok {
		t.Errorf("hci0 did not select the BLE host")
	}
}
