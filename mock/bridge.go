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

// Package mock simulates the bridge controller hardware behind the
// byte register interface: the command engine, the DMA channel and the
// status transmit block, backed by a media store. It exists so the
// firmware paths can run without silicon.
package mock

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/gostor/gobridge/pkg/api"
	"github.com/gostor/gobridge/pkg/bot"
	"github.com/gostor/gobridge/pkg/dma"
	"github.com/gostor/gobridge/pkg/hw"
	"github.com/gostor/gobridge/pkg/media"
	"github.com/gostor/gobridge/pkg/nvme"
)

// IssueRecord is one command observed at the command engine trigger.
type IssueRecord struct {
	Opcode  api.NVMeOpcode
	Tag     uint8
	LBA     uint32
	Trigger byte
}

// Bridge is the simulated controller. Reads and writes decode against
// the same register map the firmware programs; data-moving triggers
// act on the backing store.
type Bridge struct {
	CmdBase uint16
	DmaBase uint16
	TxBase  uint16

	// Fault injection. HangBusy keeps the command engine busy past any
	// poll budget; HangTrigger does the same for the DMA trigger.
	HangBusy     bool
	HangTrigger  bool
	FaultXfer    bool
	TagCountVal  byte
	QueueStatVal byte

	mu    sync.Mutex
	store media.Store
	shift uint
	regs  map[uint16]byte

	// command engine
	busyReads     int
	ctrlBusyReads int
	tagReady      bool
	Issued        []IssueRecord
	Flushes       int

	// DMA channel
	fifo        []byte
	fifoPos     int
	trigReads   int
	scsiDone    byte
	lastDmaSize int

	// transmit block
	txBuf  []byte
	Frames [][]byte
}

var _ hw.Registers = (*Bridge)(nil)

// settleReads is how many polls a completed operation stays busy
// before the status bit drops.
const settleReads = 2

// NewBridge builds a simulated controller over store with the three
// register blocks at the given bases. blockShift sets the logical
// block size for DMA transfers.
func NewBridge(store media.Store, blockShift uint, cmdBase, dmaBase, txBase uint16) *Bridge {
	return &Bridge{
		CmdBase: cmdBase,
		DmaBase: dmaBase,
		TxBase:  txBase,
		store:   store,
		shift:   blockShift,
		regs:    make(map[uint16]byte),
	}
}

// Read8 decodes one register read.
func (b *Bridge) Read8(addr uint16) byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch {
	case addr >= b.CmdBase && addr < b.CmdBase+0x10:
		return b.readCmd(addr - b.CmdBase)
	case addr >= b.DmaBase && addr < b.DmaBase+0x12:
		return b.readDma(addr - b.DmaBase)
	case addr >= b.TxBase && addr < b.TxBase+0x05:
		return b.regs[addr]
	}
	return b.regs[addr]
}

// Write8 decodes one register write.
func (b *Bridge) Write8(addr uint16, val byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch {
	case addr >= b.CmdBase && addr < b.CmdBase+0x10:
		b.writeCmd(addr-b.CmdBase, val)
	case addr >= b.DmaBase && addr < b.DmaBase+0x12:
		b.writeDma(addr-b.DmaBase, val)
	case addr >= b.TxBase && addr < b.TxBase+0x05:
		b.writeTx(addr-b.TxBase, val)
	default:
		b.regs[addr] = val
	}
}

func (b *Bridge) readCmd(off uint16) byte {
	switch off {
	case nvme.RegBusy:
		if b.HangBusy {
			return nvme.BitBusy
		}
		if b.busyReads > 0 {
			b.busyReads--
			return nvme.BitBusy
		}
		return 0
	case nvme.RegBusyStatus, nvme.RegErrCount:
		return 0
	case nvme.RegPendingStatus:
		return 0
	case nvme.RegControl:
		v := b.regs[b.CmdBase+nvme.RegControl]
		if b.ctrlBusyReads > 0 {
			b.ctrlBusyReads--
			return v | nvme.BitCtrlBusy
		}
		return v
	}
	return b.regs[b.CmdBase+off]
}

func (b *Bridge) writeCmd(off uint16, val byte) {
	prev := b.regs[b.CmdBase+off]
	b.regs[b.CmdBase+off] = val

	switch off {
	case nvme.RegTag:
		b.tagReady = val&nvme.BitTagReady != 0
	case nvme.RegControl:
		if val&nvme.BitCtrlStart != 0 && prev&nvme.BitCtrlStart == 0 {
			b.ctrlBusyReads = settleReads
		}
	case nvme.RegTrigger:
		if !b.tagReady {
			logrus.Warn("mock: trigger without issue-ready tag, dropped")
			return
		}
		b.tagReady = false
		rec := IssueRecord{
			Opcode:  api.NVMeOpcode(b.regs[b.CmdBase+nvme.RegOpcode]),
			Tag:     b.regs[b.CmdBase+nvme.RegTag] &^ nvme.BitTagReady,
			LBA:     b.latchedLBA(),
			Trigger: val,
		}
		b.Issued = append(b.Issued, rec)
		if rec.Opcode == api.NVMeCmdFlush && val == nvme.TriggerAdmin {
			b.Flushes++
			if err := b.store.Sync(); err != nil {
				logrus.Errorf("mock: sync: %v", err)
			}
		}
		b.busyReads = settleReads
	}
}

// latchedLBA reverses the packed LBA register encoding. The high
// registers carry 6 significant bits each; the final write to the
// fourth register holds byte 2.
func (b *Bridge) latchedLBA() uint32 {
	b0 := uint32(b.regs[b.CmdBase+nvme.RegLBA0])
	b1 := uint32(b.regs[b.CmdBase+nvme.RegLBA1])
	b3 := uint32(b.regs[b.CmdBase+nvme.RegLBA2]>>2) & 0x3f
	b2 := uint32(b.regs[b.CmdBase+nvme.RegLBA3]>>2) & 0x3f
	return b0 | b1<<8 | b2<<16 | b3<<24
}

func (b *Bridge) readDma(off uint16) byte {
	switch off {
	case dma.RegTrigger:
		if b.HangTrigger {
			return dma.BitTrigger
		}
		if b.trigReads > 0 {
			b.trigReads--
			return dma.BitTrigger
		}
		return 0
	case dma.RegChanStatus:
		if b.FaultXfer {
			return dma.BitXferError
		}
		return b.regs[b.DmaBase+dma.RegChanStatus]
	case dma.RegScsiDone:
		return b.scsiDone
	case dma.RegTagCount:
		return b.TagCountVal
	case dma.RegQueueStat:
		return b.QueueStatVal
	case dma.RegFIFOData:
		var v byte
		if b.fifoPos < len(b.fifo) {
			v = b.fifo[b.fifoPos]
		}
		b.fifoPos++
		return v
	}
	return b.regs[b.DmaBase+off]
}

func (b *Bridge) writeDma(off uint16, val byte) {
	b.regs[b.DmaBase+off] = val

	switch off {
	case dma.RegFIFOReset:
		b.fifoPos = 0
	case dma.RegFIFOData:
		if b.fifoPos < len(b.fifo) {
			b.fifo[b.fifoPos] = val
		} else {
			b.fifo = append(b.fifo, val)
		}
		b.fifoPos++
	case dma.RegScsiParam0:
		b.scsiDone &^= dma.BitScsiDone0
	case dma.RegScsiParam1:
		b.scsiDone &^= dma.BitScsiDone1
	case dma.RegTrigger:
		if val&dma.BitTrigger != 0 {
			b.runTransfer()
		}
	}
}

// runTransfer executes the programmed DMA against the backing store.
// The count registers hold count-1 units; a unit is one logical block.
func (b *Bridge) runTransfer() {
	count := int(b.regs[b.DmaBase+dma.RegCountHi])<<8 | int(b.regs[b.DmaBase+dma.RegCountLo])
	count++
	size := count << b.shift
	offset := int64(b.latchedLBA()) << b.shift
	b.lastDmaSize = size

	if b.regs[b.DmaBase+dma.RegControl]&dma.BitDirection != 0 {
		// Device to host: fill the data window from the store.
		p := make([]byte, size)
		if _, err := b.store.ReadAt(p, offset); err != nil {
			logrus.Errorf("mock: read %d@%d: %v", size, offset, err)
			b.regs[b.DmaBase+dma.RegChanStatus] |= dma.BitXferError
		}
		b.fifo = p
		b.fifoPos = 0
		b.scsiDone |= dma.BitScsiDone1
	} else {
		// Host to device: drain the data window into the store.
		p := b.fifo
		if size <= len(p) {
			p = p[:size]
		}
		if _, err := b.store.WriteAt(p, offset); err != nil {
			logrus.Errorf("mock: write %d@%d: %v", size, offset, err)
			b.regs[b.DmaBase+dma.RegChanStatus] |= dma.BitXferError
		}
		b.scsiDone |= dma.BitScsiDone0
	}
	b.trigReads = settleReads
}

func (b *Bridge) writeTx(off uint16, val byte) {
	b.regs[b.TxBase+off] = val

	switch off {
	case bot.RegTxReset:
		b.txBuf = nil
	case bot.RegTxData:
		b.txBuf = append(b.txBuf, val)
	case bot.RegTxCtrl:
		// The trigger is a strobe: every write with the bit set sends
		// the staged buffer.
		if val&bot.BitTxTrigger != 0 {
			frame := make([]byte, len(b.txBuf))
			copy(frame, b.txBuf)
			b.Frames = append(b.Frames, frame)
			b.regs[b.TxBase+bot.RegTxStatus] |= bot.BitTxBusy
		}
	}
}

// LastFrame returns the most recent transmitted frame, or nil.
func (b *Bridge) LastFrame() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.Frames) == 0 {
		return nil
	}
	return b.Frames[len(b.Frames)-1]
}

// LastIssued returns the most recent command engine record, or nil.
func (b *Bridge) LastIssued() *IssueRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.Issued) == 0 {
		return nil
	}
	rec := b.Issued[len(b.Issued)-1]
	return &rec
}

// Buffer returns a copy of the data window contents.
func (b *Bridge) Buffer() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	p := make([]byte, len(b.fifo))
	copy(p, b.fifo)
	return p
}
