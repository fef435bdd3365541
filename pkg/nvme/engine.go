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

// Package nvme drives the hardware command engine: slot accounting and
// the register-level command issuance protocol.
package nvme

import (
	log "github.com/sirupsen/logrus"

	"github.com/gostor/gobridge/pkg/api"
	"github.com/gostor/gobridge/pkg/hw"
)

// Engine issues translated commands to the hardware command engine.
// All register writes for one protocol step are sequenced inside a
// single method; call sites cannot reorder them.
type Engine struct {
	regs  hw.Registers
	base  uint16
	poll  hw.Poller
	state byte // 3-bit rolling command-state counter
}

// NewEngine binds the command engine at the configured base address.
func NewEngine(regs hw.Registers, base uint16, poll hw.Poller) *Engine {
	return &Engine{regs: regs, base: base, poll: poll}
}

func (e *Engine) read(off uint16) byte     { return e.regs.Read8(e.base + off) }
func (e *Engine) write(off uint16, v byte) { e.regs.Write8(e.base+off, v) }

// CommandState returns the rolling 3-bit progress counter, advanced on
// every completed command independent of slot identity.
func (e *Engine) CommandState() byte {
	return e.state
}

// writeLBA programs the four LBA registers. Bytes 0 and 1 go in
// directly; the two high registers pack auxiliary flags into their low
// 2 bits with the adjacent LBA byte shifted into the upper 6. The high
// register is written twice with different derived values; the
// hardware latches the final write.
func (e *Engine) writeLBA(lba uint32, auxLo, auxHi byte) {
	b0 := byte(lba)
	b1 := byte(lba >> 8)
	b2 := byte(lba >> 16)
	b3 := byte(lba >> 24)

	e.write(RegLBA0, b0)
	e.write(RegLBA1, b1)
	e.write(RegLBA2, auxLo|((b3<<2)&0xfc))
	e.write(RegLBA3, auxHi|((b3<<2)&0xfc))
	e.write(RegLBA3, auxHi|((b2<<2)&0xfc))
}

// isBusy reports whether the command engine is still working. Busy is
// the OR of four independent hardware conditions, checked in order
// with short-circuit on the first hit.
func (e *Engine) isBusy() bool {
	if e.read(RegBusy)&BitBusy != 0 {
		return true
	}
	if e.read(RegBusyStatus)&BitBusyStatus != 0 {
		return true
	}
	if e.read(RegErrCount)&ErrCountMask != 0 {
		return true
	}
	if e.read(RegBusy)&BitAbortPending != 0 {
		return true
	}
	return false
}

// Issue drives one command through the engine: program parameters,
// trigger execution, wait for completion. The slot is advanced through
// Building/Issued/WaitingCompletion and left in Complete or TimedOut.
// There is no retry here; retries are a translation-layer policy.
func (e *Engine) Issue(slot *Slot, opcode api.NVMeOpcode, lba uint32, mode int, auxLo, auxHi byte) error {
	trigger := byte(TriggerData)
	if mode == ModeAdmin || mode == ModeEvent {
		trigger = TriggerAdmin
	}

	slot.State = api.SlotBuilding
	slot.LBA = lba
	e.writeLBA(lba, auxLo, auxHi)

	// Parameter order matters: tag is written last, then marked ready.
	e.write(RegOpcode, byte(opcode))
	e.write(RegStatusInit, 0x00)
	e.write(RegIssue, 0x01)
	e.write(RegTag, slot.Tag)
	e.write(RegTag, slot.Tag|BitTagReady)

	e.write(RegTrigger, trigger)
	slot.State = api.SlotIssued

	if err := e.WaitCompletion(slot); err != nil {
		log.Errorf("command engine: tag %d opcode %#x: %v", slot.Tag, opcode, err)
		return err
	}
	return nil
}

// WaitCompletion busy-polls the engine until it goes idle, then
// acknowledges the latched status and waits for the trigger-busy bit
// to clear. The poll budget is the caller-imposed deadline; on breach
// the command is dead and the engine must be reset before reuse.
func (e *Engine) WaitCompletion(slot *Slot) error {
	slot.State = api.SlotWaitingCompletion

	if err := e.poll.Until(e.isBusy); err != nil {
		slot.State = api.SlotTimedOut
		return err
	}

	// Acknowledge: copy the pending status into the control register,
	// assert the start trigger, wait for the trigger-busy bit.
	e.write(RegControl, e.read(RegPendingStatus))
	hw.SetBits(e.regs, e.base+RegControl, BitCtrlStart)
	if err := e.poll.Until(func() bool {
		return e.read(RegControl)&BitCtrlBusy != 0
	}); err != nil {
		slot.State = api.SlotTimedOut
		return err
	}

	e.state = (e.state + 1) & 0x07
	e.write(RegSlotIndex, 0)

	slot.State = api.SlotComplete
	return nil
}

// Reset clears the engine after a fatal command failure. No partial
// command is resumable after a timeout.
func (e *Engine) Reset() {
	e.write(RegControl, 0)
	e.write(RegSlotIndex, 0)
	e.write(RegIssue, 0)
}
