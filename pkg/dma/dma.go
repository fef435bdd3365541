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

// Package dma drives the payload DMA channel between the USB-facing
// and NVMe-facing buffers. All completion paths are synchronous
// busy-polls; there is no interrupt-driven completion.
package dma

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/gostor/gobridge/pkg/api"
	"github.com/gostor/gobridge/pkg/hw"
)

// Engine programs and triggers one hardware DMA channel.
type Engine struct {
	regs hw.Registers
	base uint16
	poll hw.Poller
}

// NewEngine binds the DMA engine at the configured base address.
func NewEngine(regs hw.Registers, base uint16, poll hw.Poller) *Engine {
	return &Engine{regs: regs, base: base, poll: poll}
}

func (e *Engine) read(off uint16) byte     { return e.regs.Read8(e.base + off) }
func (e *Engine) write(off uint16, v byte) { e.regs.Write8(e.base+off, v) }

// ConfigureChannel selects the channel and latches the control bits.
// The mode value lands in one of two registers depending on the
// channel split, with the documented channelSelect-2 encoding above
// the split. Each control bit is read-modify-written on its own;
// intermediate states are latched by the hardware.
func (e *Engine) ConfigureChannel(channelSelect int, auxConfig byte) {
	if channelSelect >= 1 {
		e.write(RegModeB, byte(channelSelect-2)<<1)
	} else {
		e.write(RegModeA, byte(channelSelect)<<1)
	}
	e.write(RegChanStatus, 0)

	hw.SetBits(e.regs, e.base+RegControl, BitEnable)
	hw.ClearBits(e.regs, e.base+RegControl, BitStart)
	if auxConfig&AuxDirectionTx != 0 {
		hw.SetBits(e.regs, e.base+RegControl, BitDirection)
	} else {
		hw.ClearBits(e.regs, e.base+RegControl, BitDirection)
	}
	hw.ClearBits(e.regs, e.base+RegControl, BitActive)
}

// StartTransfer programs count transfer units and runs the channel to
// completion. The hardware takes count-1; a zero count would be read
// back as 65536 units, so it is rejected as a contract violation.
func (e *Engine) StartTransfer(aux0, aux1 byte, count uint16) error {
	if count == 0 {
		return fmt.Errorf("dma: zero transfer count: %w", api.ErrDmaTransfer)
	}

	e.write(RegAux0, aux0)
	e.write(RegAux1, aux1)
	n := count - 1
	e.write(RegCountHi, byte(n>>8))
	e.write(RegCountLo, byte(n))

	hw.SetBits(e.regs, e.base+RegTrigger, BitTrigger)
	if err := e.poll.Until(func() bool {
		return e.read(RegTrigger)&BitTrigger != 0
	}); err != nil {
		log.Errorf("dma: transfer of %d units timed out", count)
		return fmt.Errorf("dma: %v: %w", err, api.ErrDmaTransfer)
	}
	hw.ClearBits(e.regs, e.base+RegControl, BitActive)

	if e.read(RegChanStatus)&BitXferError != 0 {
		return fmt.Errorf("dma: channel fault: %w", api.ErrDmaTransfer)
	}
	return nil
}

// CheckSCSIStatus tests one of the two SCSI completion channels that
// share the completion-status register, acknowledging a set flag by
// writing 0xFF to the channel's parameter register.
func (e *Engine) CheckSCSIStatus(mode byte) bool {
	switch mode {
	case ScsiModeChan0:
		if e.read(RegScsiDone)&BitScsiDone0 != 0 {
			e.write(RegScsiParam0, 0xff)
			return true
		}
	case ScsiModeChan1:
		if e.read(RegScsiDone)&BitScsiDone1 != 0 {
			e.write(RegScsiParam1, 0xff)
			return true
		}
	}
	return false
}

// TagCountExceeded masks the 5-bit outstanding-tag field, caches the
// masked value for the caller, and reports the high-water condition.
func (e *Engine) TagCountExceeded() bool {
	v := e.read(RegTagCount) & TagCountMask
	e.write(RegScratchTag, v)
	return v >= TagCountLimit
}

// QueueExceeded masks the 4-bit queue-depth field, caches the masked
// value, and reports the high-water condition.
func (e *Engine) QueueExceeded() bool {
	v := e.read(RegQueueStat) & QueueStatMask
	e.write(RegScratchQue, v)
	return v >= QueueStatLimit
}

// ResetBuffer rewinds the payload data window pointer.
func (e *Engine) ResetBuffer() {
	e.write(RegFIFOReset, 0x01)
}

// LoadBuffer copies a host payload into the USB-facing buffer through
// the data window.
func (e *Engine) LoadBuffer(p []byte) {
	e.ResetBuffer()
	for _, b := range p {
		e.write(RegFIFOData, b)
	}
}

// DrainBuffer copies n payload bytes out of the USB-facing buffer
// through the data window.
func (e *Engine) DrainBuffer(n int) []byte {
	e.ResetBuffer()
	p := make([]byte, n)
	for i := range p {
		p[i] = e.read(RegFIFOData)
	}
	return p
}
