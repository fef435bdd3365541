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

package dma

// DMA engine register offsets, relative to the configured base.

const (
	RegModeA      = 0x00 // channel mode, channels below the split (W)
	RegModeB      = 0x01 // channel mode, channels at or above the split (W)
	RegChanStatus = 0x02 // secondary channel status (RW)
	RegControl    = 0x03 // control bits, each latched independently (RW)
	RegAux0       = 0x04 // channel auxiliary parameter 0 (W)
	RegAux1       = 0x05 // channel auxiliary parameter 1 (W)
	RegCountLo    = 0x06 // transfer count - 1, low byte (W)
	RegCountHi    = 0x07 // transfer count - 1, high byte (W)
	RegTrigger    = 0x08 // start trigger; clears on completion (RW)
	RegScsiDone   = 0x09 // SCSI completion flags, two channels (R)
	RegScsiParam0 = 0x0a // channel 0 ack parameter (W)
	RegScsiParam1 = 0x0b // channel 1 ack parameter (W)
	RegTagCount   = 0x0c // outstanding tag count, 5-bit field (R)
	RegQueueStat  = 0x0d // queue depth status, 4-bit field (R)
	RegScratchTag = 0x0e // masked tag count cache (W)
	RegScratchQue = 0x0f // masked queue status cache (W)
	RegFIFOReset  = 0x10 // data window pointer rewind strobe (W)
	RegFIFOData   = 0x11 // payload data window (RW)
)

const (
	BitEnable    = 1 << 0 // RegControl: channel enable
	BitStart     = 1 << 1 // RegControl: start latch
	BitDirection = 1 << 2 // RegControl: 1 = device-to-host (Tx)
	BitActive    = 1 << 3 // RegControl: channel active
	BitTrigger   = 1 << 0 // RegTrigger: transfer running
	BitXferError = 1 << 7 // RegChanStatus: transfer fault

	BitScsiDone0 = 1 << 0 // RegScsiDone: channel 0 complete
	BitScsiDone1 = 1 << 1 // RegScsiDone: channel 1 complete

	TagCountMask   = 0x1f
	QueueStatMask  = 0x0f
	TagCountLimit  = 16
	QueueStatLimit = 8
)

// AuxConfig direction bit: transfers toward the host program Tx.
const AuxDirectionTx = 0x01

// CheckSCSIStatus channel selectors.
const (
	ScsiModeChan0 = 0x00
	ScsiModeChan1 = 0x10
)
