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

package nvme

// Command engine register offsets, relative to the configured base.
// The base address is configuration; the offsets and bit assignments
// are the hardware protocol.

const (
	RegLBA0          = 0x00 // LBA byte 0 (W)
	RegLBA1          = 0x01 // LBA byte 1 (W)
	RegLBA2          = 0x02 // packed: aux low 2 bits | LBA byte 3 << 2 (W)
	RegLBA3          = 0x03 // packed: aux low 2 bits | LBA byte 2 << 2 (W)
	RegOpcode        = 0x04 // command opcode (W)
	RegStatusInit    = 0x05 // status init value (W)
	RegIssue         = 0x06 // issue strobe (W)
	RegTag           = 0x07 // command tag; bit 4 is the issue-ready marker (W)
	RegTrigger       = 0x08 // execution trigger, 0x40 data / 0x80 admin (W)
	RegBusy          = 0x09 // busy/fault flags (R)
	RegBusyStatus    = 0x0a // secondary busy status, low bit (R)
	RegErrCount      = 0x0b // error counter field (R)
	RegPendingStatus = 0x0c // completion status latched by the engine (R)
	RegControl       = 0x0d // control: status ack + start trigger (RW)
	RegSlotIndex     = 0x0e // active slot index (RW)
)

const (
	BitBusy         = 1 << 0 // RegBusy: engine busy
	BitAbortPending = 1 << 4 // RegBusy: abort/event flag, engine not ready
	BitBusyStatus   = 1 << 0 // RegBusyStatus: secondary busy
	BitTagReady     = 1 << 4 // RegTag: issue-ready marker
	BitCtrlStart    = 1 << 0 // RegControl: start trigger
	BitCtrlBusy     = 1 << 1 // RegControl: trigger busy

	ErrCountMask = 0x0f // RegErrCount active field
)

// Trigger bytes select the hardware command class.
const (
	TriggerData  = 0x40
	TriggerAdmin = 0x80
)

// Hardware command classes. Modes 2 and 3 use the admin trigger.
const (
	ModeData0 = 0
	ModeData1 = 1
	ModeAdmin = 2
	ModeEvent = 3
)
