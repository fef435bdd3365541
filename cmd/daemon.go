/*
Copyright 2017 The GoStor Authors All rights reserved.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	uuid "github.com/satori/go.uuid"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gostor/gobridge/mock"
	"github.com/gostor/gobridge/pkg/api"
	"github.com/gostor/gobridge/pkg/apiserver"
	"github.com/gostor/gobridge/pkg/bot"
	"github.com/gostor/gobridge/pkg/config"
	"github.com/gostor/gobridge/pkg/dma"
	"github.com/gostor/gobridge/pkg/hw"
	"github.com/gostor/gobridge/pkg/media"
	"github.com/gostor/gobridge/pkg/nvme"
	"github.com/gostor/gobridge/pkg/port"
	_ "github.com/gostor/gobridge/pkg/port/bott" /* init lib */
	"github.com/gostor/gobridge/pkg/version"
)

func newDaemonCommand() *cobra.Command {
	var host string
	var driver string
	var logLevel string
	var cmd = &cobra.Command{
		Use:   "daemon",
		Short: "Setup a daemon",
		Long:  `Setup the Gobridge's daemon`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return createDaemon(host, driver, logLevel)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&logLevel, "log", "info", "Log level of the bridge daemon")
	flags.StringVar(&driver, "driver", "bot-tcp", "Host transport driver")
	flags.StringVar(&host, "host", "", "Admin API address, PROTO://ADDR")
	return cmd
}

// daemonBackend is the running bridge as the admin API sees it.
type daemonBackend struct {
	tr      *bot.Translator
	engine  *nvme.Engine
	session api.Session
}

func (b *daemonBackend) Status() api.BridgeStatus {
	return api.BridgeStatus{
		Session:   b.session,
		Stats:     b.tr.Stats(),
		SlotCount: b.tr.SlotCount(),
		Slots:     b.tr.InFlight(),
	}
}

func (b *daemonBackend) Stats() api.Stats {
	return b.tr.Stats()
}

func (b *daemonBackend) InFlight() []api.BridgeCommand {
	return b.tr.InFlight()
}

func (b *daemonBackend) ResetEngine() error {
	b.engine.Reset()
	return nil
}

// loadConfig reads the config file and applies GOBRIDGE_* environment
// overrides for the deployment-specific knobs.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(config.ConfigDir())
	if err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix("gobridge")
	v.AutomaticEnv()
	v.SetDefault("storage", cfg.Storage)
	v.SetDefault("image", cfg.Image)
	v.SetDefault("portal", cfg.Portal)
	cfg.Storage = v.GetString("storage")
	cfg.Image = v.GetString("image")
	cfg.Portal = v.GetString("portal")
	return cfg, nil
}

func createDaemon(host, driver, level string) error {
	switch level {
	case "info":
		log.SetLevel(log.InfoLevel)
	case "warn":
		log.SetLevel(log.WarnLevel)
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "panic", "fatal", "error":
		log.SetLevel(log.ErrorLevel)
	default:
		return fmt.Errorf("unknown log level: %v", level)
	}

	cfg, err := loadConfig()
	if err != nil {
		log.Error(err)
		return err
	}

	store, err := media.NewStore(cfg.Storage)
	if err != nil {
		log.Error(err)
		return err
	}
	if err := store.Open(cfg.Image); err != nil {
		log.Error(err)
		return err
	}
	defer store.Close()

	// The register capability is the simulated controller; silicon
	// provides the same interface through its own binding.
	regs := mock.NewBridge(store, cfg.Bridge.BlockShift, cfg.Bridge.CmdEngineBase, cfg.Bridge.DmaEngineBase, cfg.Bridge.TxBlockBase)
	poll := hw.Poller{Budget: cfg.Bridge.PollBudget}
	slots, err := nvme.NewSlotTable(cfg.Bridge.SlotCount)
	if err != nil {
		log.Error(err)
		return err
	}
	lu := bot.LogicalUnit{
		Blocks:     uint32(store.Size() >> cfg.Bridge.BlockShift),
		BlockShift: cfg.Bridge.BlockShift,
		Online:     true,
	}
	tr := bot.NewTranslator(regs, cfg.Bridge.TxBlockBase, slots,
		nvme.NewEngine(regs, cfg.Bridge.CmdEngineBase, poll),
		dma.NewEngine(regs, cfg.Bridge.DmaEngineBase, poll), lu)

	targetDriver, err := port.NewDriver(driver, tr, cfg.Portal)
	if err != nil {
		log.Error(err)
		return err
	}
	go func() {
		if err := targetDriver.Run(); err != nil {
			log.Errorf("transport: %v", err)
		}
	}()
	defer targetDriver.Close()

	backend := &daemonBackend{
		tr:     tr,
		engine: nvme.NewEngine(regs, cfg.Bridge.CmdEngineBase, poll),
		session: api.Session{
			ID:      uuid.NewV4(),
			Name:    "gobridge",
			Portal:  cfg.Portal,
			Version: version.Version,
		},
	}

	serverConfig := &apiserver.Config{
		Logging: true,
		Version: version.Version,
		Addrs:   []apiserver.Addr{},
	}

	hosts := []string{}
	if host != "" {
		hosts = append(hosts, host)
	}
	for _, protoAddr := range hosts {
		protoAddrParts := strings.SplitN(protoAddr, "://", 2)
		if len(protoAddrParts) != 2 {
			err = fmt.Errorf("bad format %s, expected PROTO://ADDR", protoAddr)
			log.Error(err)
			return err
		}
		serverConfig.Addrs = append(serverConfig.Addrs, apiserver.Addr{Proto: protoAddrParts[0], Addr: protoAddrParts[1]})
	}

	stopAll := make(chan os.Signal, 1)
	signal.Notify(stopAll, syscall.SIGINT, syscall.SIGTERM)

	if len(serverConfig.Addrs) == 0 {
		// Transport only, no admin API.
		<-stopAll
		return nil
	}

	s, err := apiserver.New(serverConfig)
	if err != nil {
		log.Error(err)
		return err
	}
	s.InitRouters(backend)

	// The serve API routine never exits unless an error occurs. We
	// need to start it as a goroutine and wait on it so the daemon
	// doesn't exit.
	serveAPIWait := make(chan error)
	go s.Wait(serveAPIWait)

	select {
	case errAPI := <-serveAPIWait:
		if errAPI != nil {
			log.Warnf("Shutting down due to ServeAPI error: %v", errAPI)
		}
	case <-stopAll:
		break
	}
	s.Close()
	return nil
}
