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

// Package bott carries Bulk-Only Transport wrappers over a TCP stream:
// each command is a 31-byte CBW, an optional host payload, and the
// 13-byte CSW (with any device payload ahead of it) on the way back.
package bott

import (
	"io"
	"net"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/gostor/gobridge/pkg/bot"
	"github.com/gostor/gobridge/pkg/port"
)

const driverName = "bot-tcp"

func init() {
	port.RegisterDriver(driverName, NewBOTTargetDriver)
}

// BOTTargetDriver serves the bridge over TCP. The hardware behind the
// translator is a single resource, so command execution is serialized
// across connections.
type BOTTargetDriver struct {
	Name   string
	portal string
	tr     *bot.Translator

	// mu serializes HandleCBW across connections and guards listener.
	mu       sync.Mutex
	listener net.Listener
}

var _ port.BridgeDriver = (*BOTTargetDriver)(nil)

// NewBOTTargetDriver builds the TCP transport bound to portal.
func NewBOTTargetDriver(tr *bot.Translator, portal string) (port.BridgeDriver, error) {
	return &BOTTargetDriver{
		Name:   driverName,
		portal: portal,
		tr:     tr,
	}, nil
}

// Run listens on the portal and serves connections until Close.
func (d *BOTTargetDriver) Run() error {
	l, err := net.Listen("tcp", d.portal)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.listener = l
	d.mu.Unlock()
	log.Infof("bot-tcp: listening on %s", d.portal)

	for {
		conn, err := l.Accept()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Temporary() {
				log.Error(err)
				continue
			}
			return err
		}
		log.Infof("bot-tcp: connection from %s", conn.RemoteAddr())
		go d.handler(conn)
	}
}

// Addr returns the bound listener address once Run has started, nil
// before that. Useful when the portal requests an ephemeral port.
func (d *BOTTargetDriver) Addr() net.Addr {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.listener == nil {
		return nil
	}
	return d.listener.Addr()
}

// Close stops the accept loop. In-flight connections finish their
// current command and then fail their next read.
func (d *BOTTargetDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.listener == nil {
		return nil
	}
	return d.listener.Close()
}

// handler runs one connection. A wrapper that fails the signature
// check desynchronizes the stream; there is no way to know where the
// next CBW starts, so the connection is dropped and the host
// re-establishes the transport.
func (d *BOTTargetDriver) handler(conn net.Conn) {
	defer conn.Close()

	for {
		raw, err := d.readCBW(conn)
		if err != nil {
			if err != io.EOF {
				log.Errorf("bot-tcp: %v", err)
			}
			return
		}

		cbw := &bot.CBW{}
		if err := cbw.UnmarshalBinary(raw); err != nil {
			log.Errorf("bot-tcp: dropping connection: %v", err)
			return
		}

		var out []byte
		if !cbw.DirectionIn() && cbw.DataTransferLength > 0 {
			out = make([]byte, cbw.DataTransferLength)
			if _, err := io.ReadFull(conn, out); err != nil {
				log.Errorf("bot-tcp: host payload: %v", err)
				return
			}
		}

		d.mu.Lock()
		csw, dataIn, err := d.tr.HandleCBW(raw, out)
		d.mu.Unlock()
		if err != nil {
			log.Errorf("bot-tcp: dropping connection: %v", err)
			return
		}

		if len(dataIn) > 0 {
			if _, err := conn.Write(dataIn); err != nil {
				log.Errorf("bot-tcp: device payload: %v", err)
				return
			}
		}
		if _, err := conn.Write(csw); err != nil {
			log.Errorf("bot-tcp: csw: %v", err)
			return
		}
	}
}

// readCBW scans the stream for the leading signature byte and reads
// one full wrapper. Skipped garbage bytes are counted and logged; this
// is the transport's resynchronization point.
func (d *BOTTargetDriver) readCBW(conn net.Conn) ([]byte, error) {
	lead := make([]byte, 1)
	skipped := 0
	for {
		if _, err := io.ReadFull(conn, lead); err != nil {
			return nil, err
		}
		if lead[0] == 'U' {
			break
		}
		skipped++
	}
	if skipped > 0 {
		log.Warnf("bot-tcp: skipped %d bytes resynchronizing", skipped)
	}

	raw := make([]byte, bot.CBWLength)
	raw[0] = lead[0]
	if _, err := io.ReadFull(conn, raw[1:]); err != nil {
		return nil, err
	}
	return raw, nil
}
