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

// Package config reads the optional blehostd settings file.
package config

import (
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"
	"time"

	"github.com/mitchellh/go-homedir"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cast"

	"mynewt.apache.org/newt/util"
)

const CFG_FILENAME = ".blehostd.json"

type Config struct {
	LogLevel      string
	LogFile       string
	AccessTimeout time.Duration
	FrameCtr      bool
	Sim           bool
}

func NewConfig() Config {
	return Config{
		LogLevel:      "info",
		AccessTimeout: 10 * time.Second,
	}
}

// Returns the path of the settings file in the user's home directory.
func DfltFilename() (string, error) {
	dir, err := homedir.Dir()
	if err != nil {
		return "", util.NewNewtError(err.Error())
	}

	return filepath.Join(dir, CFG_FILENAME), nil
}

// Numbers are milliseconds; strings use time.ParseDuration syntax.
func toDuration(v interface{}) (time.Duration, error) {
	switch v.(type) {
	case float64, int, int64:
		ms, err := cast.ToInt64E(v)
		if err != nil {
			return 0, err
		}
		return time.Duration(ms) * time.Millisecond, nil

	default:
		return cast.ToDurationE(v)
	}
}

type setFn func(cfg *Config, v interface{}) error

var setFnMap = map[string]setFn{
	"loglevel": func(cfg *Config, v interface{}) error {
		s, err := cast.ToStringE(v)
		cfg.LogLevel = s
		return err
	},
	"logfile": func(cfg *Config, v interface{}) error {
		s, err := cast.ToStringE(v)
		if err != nil {
			return err
		}
		cfg.LogFile, err = homedir.Expand(s)
		return err
	},
	"access_timeout": func(cfg *Config, v interface{}) error {
		d, err := toDuration(v)
		cfg.AccessTimeout = d
		return err
	},
	"frame_ctr": func(cfg *Config, v interface{}) error {
		b, err := cast.ToBoolE(v)
		cfg.FrameCtr = b
		return err
	},
	"sim": func(cfg *Config, v interface{}) error {
		b, err := cast.ToBoolE(v)
		cfg.Sim = b
		return err
	},
}

// Applies the settings in a JSON object on top of cfg.  Unrecognized keys
// are ignored with a warning.
func Parse(cfg *Config, blob []byte) error {
	m := map[string]interface{}{}
	if err := json.Unmarshal(blob, &m); err != nil {
		return util.FmtNewtError("invalid config: %s", err.Error())
	}

	for k, v := range m {
		fn := setFnMap[k]
		if fn == nil {
			log.Warnf("Ignoring unknown config setting: %s", k)
			continue
		}

		if err := fn(cfg, v); err != nil {
			return util.FmtNewtError("invalid value for %s: %s",
				k, err.Error())
		}
	}

	return nil
}

// Reads settings from the named file.  If filename is empty, the default
// file is used, and its absence is not an error.
func Load(filename string) (Config, error) {
	cfg := NewConfig()

	mustExist := filename != ""
	if !mustExist {
		var err error
		filename, err = DfltFilename()
		if err != nil {
			return cfg, err
		}
	}

	log.Debugf("Reading config from %s", filename)
	blob, err := ioutil.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) && !mustExist {
			return cfg, nil
		}
		return cfg, util.ChildNewtError(err)
	}

	if err := Parse(&cfg, blob); err != nil {
		return cfg, err
	}

	return cfg, nil
}
