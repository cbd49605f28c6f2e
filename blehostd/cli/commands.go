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
	"fmt"
	"os"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"mynewt.apache.org/blehostd/bhd/bhdutil"
	"mynewt.apache.org/blehostd/bhd/gateway"
	"mynewt.apache.org/blehostd/bhd/host"
	"mynewt.apache.org/blehostd/bhd/xport"
	"mynewt.apache.org/blehostd/blehostd/config"
	"mynewt.apache.org/newt/util"
)

type ToolInfoType struct {
	ExeName       string
	ShortName     string
	LongName      string
	VersionString string
}

var ToolInfo = ToolInfoType{
	ExeName:       "blehostd",
	ShortName:     "blehostd",
	LongName:      "Apache Mynewt BLE host daemon",
	VersionString: "1.0.0",
}

// The controller name that selects the simulated host.
const SIM_CTLR = "sim"

var logLevelStr string
var logFile string
var cfgFilename string
var accessTimeout time.Duration
var frameCtr bool
var useSim bool

var gw *gateway.Gateway
var gwMtx sync.Mutex

func bhdUsage(cmd *cobra.Command, err error) {
	if err != nil {
		if ne, ok := err.(*util.NewtError); ok {
			log.Debugf("%s", ne.StackTrace)
			fmt.Fprintf(os.Stderr, "Error: %s\n", ne.Text)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err.Error())
		}
	}

	if cmd != nil {
		fmt.Printf("\n")
		fmt.Printf("%s - ", cmd.Name())
		cmd.Help()
	}

	os.Exit(1)
}

// Stops the running gateway, if any.
func Stop() {
	gwMtx.Lock()
	defer gwMtx.Unlock()

	if gw != nil {
		gw.Stop()
		gw = nil
	}
}

func setGateway(g *gateway.Gateway) {
	gwMtx.Lock()
	defer gwMtx.Unlock()

	gw = g
}

// Combines the settings file with the command line.  Flags given
// explicitly take precedence.
func buildConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(cfgFilename)
	if err != nil {
		return cfg, err
	}

	flags := cmd.Flags()
	if flags.Changed("loglevel") {
		cfg.LogLevel = logLevelStr
	}
	if flags.Changed("logfile") {
		cfg.LogFile = logFile
	}
	if flags.Changed("access-timeout") {
		cfg.AccessTimeout = accessTimeout
	}
	if flags.Changed("frame-ctr") {
		cfg.FrameCtr = frameCtr
	}
	if flags.Changed("sim") {
		cfg.Sim = useSim
	}

	return cfg, nil
}

func initLogging(cfg config.Config) error {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return util.ChildNewtError(err)
	}

	if err := util.Init(level, "", util.VERBOSITY_DEFAULT); err != nil {
		return err
	}
	bhdutil.SetLogLevel(level)
	bhdutil.Debug = level >= log.DebugLevel

	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile,
			os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
		if err != nil {
			return util.ChildNewtError(err)
		}
		bhdutil.SetLogOutput(f)
	}

	return nil
}

func newHost(ctlr string, sim bool) host.Host {
	if sim || ctlr == SIM_CTLR {
		log.Infof("Using simulated controller")
		return host.NewSimHost(host.NewSimHostCfg())
	}

	hcfg := host.NewBleHostCfg()
	hcfg.CtlrName = ctlr
	return host.NewBleHost(hcfg)
}

func runCmd(cmd *cobra.Command, args []string) {
	cfg, err := buildConfig(cmd)
	if err != nil {
		bhdUsage(nil, err)
	}

	if err := initLogging(cfg); err != nil {
		bhdUsage(nil, err)
	}

	ctlr := args[0]
	sockPath := args[1]

	log.Infof("%s %s starting; controller=%s socket=%s",
		ToolInfo.LongName, ToolInfo.VersionString, ctlr, sockPath)

	x, err := xport.Dial(sockPath)
	if err != nil {
		bhdUsage(nil, util.ChildNewtError(err))
	}

	gcfg := gateway.NewGatewayCfg()
	gcfg.AccessTimeout = cfg.AccessTimeout
	gcfg.FrameCtr = cfg.FrameCtr

	g := gateway.NewGateway(x, newHost(ctlr, cfg.Sim), gcfg)
	setGateway(g)

	if err := g.Run(); err != nil {
		bhdUsage(nil, util.ChildNewtError(err))
	}

	log.Infof("Exiting")
}

func Commands() *cobra.Command {
	bhdCmd := &cobra.Command{
		Use:   ToolInfo.ExeName + " <controller> <socket-path>",
		Short: ToolInfo.ShortName + " bridges a BLE host to a Unix socket",
		Long: ToolInfo.LongName + " connects to the Unix domain socket at " +
			"<socket-path> and serves JSON requests\nagainst the BLE " +
			"controller <controller>.  Use \"" + SIM_CTLR + "\" for a " +
			"simulated controller.",
		Example: "  " + ToolInfo.ExeName + " hci0 /tmp/blehostd.sock\n" +
			"  " + ToolInfo.ExeName + " " + SIM_CTLR +
			" /tmp/blehostd.sock",
		Args: cobra.ExactArgs(2),
		Run:  runCmd,
	}

	bhdCmd.PersistentFlags().StringVarP(&logLevelStr, "loglevel", "l",
		"info", "log level to use")

	bhdCmd.Flags().StringVar(&logFile, "logfile", "",
		"write log output to this file instead of stderr")

	bhdCmd.Flags().StringVar(&cfgFilename, "config", "",
		"settings file to read (default ~/"+config.CFG_FILENAME+")")

	bhdCmd.Flags().DurationVar(&accessTimeout, "access-timeout",
		10*time.Second, "how long to wait for the client to answer an "+
			"attribute access")

	bhdCmd.Flags().BoolVar(&frameCtr, "frame-ctr", false,
		"stamp each outgoing message with a frame counter")

	bhdCmd.Flags().BoolVar(&useSim, "sim", false,
		"use a simulated controller regardless of <controller>")

	versCmd := &cobra.Command{
		Use:     "version",
		Short:   "Display the " + ToolInfo.ShortName + " version number",
		Example: "  " + ToolInfo.ExeName + " version",
		Args:    cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s %s\n", ToolInfo.LongName, ToolInfo.VersionString)
		},
	}
	bhdCmd.AddCommand(versCmd)

	return bhdCmd
}
