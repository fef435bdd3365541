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

// Package bot translates USB Bulk-Only Transport commands into command
// engine and DMA engine operations and produces the status wrappers.
package bot

import (
	"errors"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/gostor/gobridge/pkg/api"
	"github.com/gostor/gobridge/pkg/dma"
	"github.com/gostor/gobridge/pkg/hw"
	"github.com/gostor/gobridge/pkg/nvme"
	"github.com/gostor/gobridge/pkg/util"
)

var (
	// VendorID is exactly 8 bytes in INQUIRY data.
	VendorID = "GOSTOR"
	// ProductID is exactly 16 bytes in INQUIRY data.
	ProductID = "GOBRIDGE NVME"
	// ProductRevision is exactly 4 bytes in INQUIRY data.
	ProductRevision = "0200"
)

// BOTStat pairs a CSW status code with the error that produced it.
type BOTStat struct {
	Status byte
	Err    error
}

var (
	BOTStatPass       = BOTStat{CSWStatusPass, nil}
	BOTStatFail       = BOTStat{CSWStatusFail, errors.New("command failed")}
	BOTStatPhaseError = BOTStat{CSWStatusPhaseError, errors.New("phase error")}
)

// Command carries one CBW through dispatch.
type Command struct {
	CBW *CBW
	// SCB is the active prefix of the command descriptor block.
	SCB []byte
	// Out is the host payload for host-to-device transfers.
	Out []byte
	// In is the device payload for device-to-host transfers.
	In          []byte
	Transferred uint32
}

// CommandFunc performs one SCSI operation.
type CommandFunc func(t *Translator, cmd *Command) BOTStat

// BridgeOperation is one entry of the opcode dispatch table.
type BridgeOperation struct {
	Perform CommandFunc
}

// LogicalUnit describes the single LUN exposed by the bridge.
type LogicalUnit struct {
	Blocks     uint32
	BlockShift uint
	Online     bool
}

// BlockSize returns the logical block size in bytes.
func (lu LogicalUnit) BlockSize() int {
	return 1 << lu.BlockShift
}

// Translator owns the BOT side of the bridge: it validates wrappers,
// dispatches the CDB, and emits CSWs through the transmit block. It is
// the only writer of the slot table.
type Translator struct {
	regs   hw.Registers
	txBase uint16
	slots  *nvme.SlotTable
	engine *nvme.Engine
	dma    *dma.Engine
	lu     LogicalUnit
	ops    []BridgeOperation

	mutex sync.Mutex
	stats api.Stats
}

// NewTranslator wires the translation layer over the command engine,
// DMA engine and slot table.
func NewTranslator(regs hw.Registers, txBase uint16, slots *nvme.SlotTable, engine *nvme.Engine, dmaEngine *dma.Engine, lu LogicalUnit) *Translator {
	t := &Translator{
		regs:   regs,
		txBase: txBase,
		slots:  slots,
		engine: engine,
		dma:    dmaEngine,
		lu:     lu,
		ops:    make([]BridgeOperation, 256),
	}
	for i := range t.ops {
		t.ops[i] = BridgeOperation{opIllegal}
	}
	t.ops[api.TEST_UNIT_READY] = BridgeOperation{opTestUnitReady}
	t.ops[api.REQUEST_SENSE] = BridgeOperation{opRequestSense}
	t.ops[api.INQUIRY] = BridgeOperation{opInquiry}
	t.ops[api.MODE_SENSE_6] = BridgeOperation{opModeSense}
	t.ops[api.START_STOP] = BridgeOperation{opStartStop}
	t.ops[api.READ_FORMAT_CAPACITIES] = BridgeOperation{opReadFormatCapacities}
	t.ops[api.READ_CAPACITY_10] = BridgeOperation{opReadCapacity10}
	t.ops[api.READ_10] = BridgeOperation{opReadWrite}
	t.ops[api.WRITE_10] = BridgeOperation{opReadWrite}
	t.ops[api.VERIFY_10] = BridgeOperation{opVerify}
	t.ops[api.SYNCHRONIZE_CACHE] = BridgeOperation{opSyncCache}
	t.ops[api.MODE_SENSE_10] = BridgeOperation{opModeSense}
	t.ops[api.SERVICE_ACTION_IN] = BridgeOperation{opServiceAction}
	t.ops[api.REPORT_LUNS] = BridgeOperation{opReportLuns}
	return t
}

// Stats returns a copy of the bridge counters.
func (t *Translator) Stats() api.Stats {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.stats
}

// InFlight lists the live command slots.
func (t *Translator) InFlight() []api.BridgeCommand {
	return t.slots.InFlight()
}

// SlotCount returns the configured slot pool size.
func (t *Translator) SlotCount() int {
	return t.slots.Len()
}

// HandleCBW consumes one Command Block Wrapper and returns the encoded
// CSW plus any device-to-host payload. A malformed signature returns
// an error and no CSW: the host must recover by resetting the
// transport. Every other outcome, including hardware timeouts, is
// reported inside the CSW.
func (t *Translator) HandleCBW(raw []byte, out []byte) (cswBytes []byte, dataIn []byte, err error) {
	cbw := &CBW{}
	if err := cbw.UnmarshalBinary(raw); err != nil {
		log.Errorf("bot: dropping wrapper: %v", err)
		return nil, nil, err
	}

	cmd := &Command{
		CBW: cbw,
		SCB: cbw.CDB[:cbw.CDBLength],
		Out: out,
	}

	var stat BOTStat
	if cbw.LUN != 0 {
		stat = BOTStat{CSWStatusFail, api.ErrInvalidLun}
	} else {
		stat = t.ops[cmd.SCB[0]].Perform(t, cmd)
	}

	// Device-to-host payloads never exceed the host's transfer length.
	if len(cmd.In) > 0 {
		if uint32(len(cmd.In)) > cbw.DataTransferLength {
			cmd.In = cmd.In[:cbw.DataTransferLength]
		}
		cmd.Transferred = uint32(len(cmd.In))
	}

	csw := &CSW{Tag: cbw.Tag, Status: stat.Status}
	if cmd.Transferred > cbw.DataTransferLength {
		// Accounting went inconsistent after status bytes moved.
		csw.Status = CSWStatusPhaseError
		csw.DataResidue = 0
	} else {
		csw.DataResidue = cbw.DataTransferLength - cmd.Transferred
	}

	t.account(cmd, csw, stat)
	if stat.Err != nil {
		log.Warnf("bot: opcode %#x tag %#x: %v", cmd.SCB[0], cbw.Tag, stat.Err)
	}

	return t.sendCSW(csw), cmd.In, nil
}

func (t *Translator) account(cmd *Command, csw *CSW, stat BOTStat) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	t.stats.Commands++
	switch csw.Status {
	case CSWStatusFail:
		t.stats.Failures++
	case CSWStatusPhaseError:
		t.stats.PhaseErrors++
	}
	if csw.Status != CSWStatusPass {
		return
	}
	if cmd.CBW.DirectionIn() {
		t.stats.ReadBytes += uint64(cmd.Transferred)
	} else {
		t.stats.WriteBytes += uint64(cmd.Transferred)
	}
}

// sendCSW runs the transmit register protocol: stage the 13 bytes,
// program the response length, assert the transmit trigger, then clear
// the transmit-status bit.
func (t *Translator) sendCSW(csw *CSW) []byte {
	b, _ := csw.MarshalBinary()

	t.regs.Write8(t.txBase+RegTxReset, 0x01)
	for _, v := range b {
		t.regs.Write8(t.txBase+RegTxData, v)
	}
	t.regs.Write8(t.txBase+RegTxLen, CSWLength)
	hw.SetBits(t.regs, t.txBase+RegTxCtrl, BitTxTrigger)
	hw.ClearBits(t.regs, t.txBase+RegTxStatus, BitTxBusy)
	return b
}

func opIllegal(t *Translator, cmd *Command) BOTStat {
	return BOTStat{CSWStatusFail, errors.New("unsupported CDB operation code")}
}

// opReadWrite is the data path: slot allocation, command issuance, DMA
// transfer, completion checks, slot release.
func opReadWrite(t *Translator, cmd *Command) BOTStat {
	scb := cmd.SCB
	lba := util.GetUnalignedUint32(scb[2:6])
	blocks := util.GetUnalignedUint16(scb[7:9])
	if blocks == 0 {
		return BOTStatPass
	}

	slot, err := t.slots.Allocate()
	if err != nil {
		t.mutex.Lock()
		t.stats.SlotRejects++
		t.mutex.Unlock()
		return BOTStat{CSWStatusFail, err}
	}
	defer t.slots.Release(slot)

	in := cmd.CBW.DirectionIn()
	size := int(blocks) << t.lu.BlockShift

	var (
		opcode   = api.NVMeCmdWrite
		mode     = nvme.ModeData0
		channel  = 0
		aux      = byte(0)
		scsiMode = byte(dma.ScsiModeChan0)
	)
	slot.Direction = api.DirectionWrite
	if in {
		opcode = api.NVMeCmdRead
		mode = nvme.ModeData1
		channel = 2
		aux = dma.AuxDirectionTx
		scsiMode = dma.ScsiModeChan1
		slot.Direction = api.DirectionRead
	}
	slot.Length = blocks

	if !in {
		if len(cmd.Out) != size {
			return BOTStat{CSWStatusPhaseError, api.ErrDmaTransfer}
		}
		t.dma.LoadBuffer(cmd.Out)
	}

	if err := t.engine.Issue(slot, opcode, lba, mode, 0, 0); err != nil {
		t.engine.Reset()
		t.mutex.Lock()
		t.stats.SlotTimeouts++
		t.mutex.Unlock()
		return BOTStat{CSWStatusFail, err}
	}

	t.dma.ConfigureChannel(channel, aux)
	if err := t.dma.StartTransfer(0, 0, blocks); err != nil {
		return BOTStat{CSWStatusFail, err}
	}
	if !t.dma.CheckSCSIStatus(scsiMode) {
		return BOTStat{CSWStatusPhaseError, api.ErrDmaTransfer}
	}

	if in {
		cmd.In = t.dma.DrainBuffer(size)
	} else {
		cmd.Transferred = uint32(size)
	}
	return BOTStatPass
}

// opVerify issues the read command without moving payload; the medium
// check happens on the device side.
func opVerify(t *Translator, cmd *Command) BOTStat {
	scb := cmd.SCB
	lba := util.GetUnalignedUint32(scb[2:6])
	blocks := util.GetUnalignedUint16(scb[7:9])

	slot, err := t.slots.Allocate()
	if err != nil {
		return BOTStat{CSWStatusFail, err}
	}
	defer t.slots.Release(slot)
	slot.Direction = api.DirectionRead
	slot.Length = blocks

	if err := t.engine.Issue(slot, api.NVMeCmdRead, lba, nvme.ModeData1, 0, 0); err != nil {
		t.engine.Reset()
		return BOTStat{CSWStatusFail, err}
	}
	return BOTStatPass
}

// opSyncCache issues an admin-class flush through the command engine.
func opSyncCache(t *Translator, cmd *Command) BOTStat {
	slot, err := t.slots.Allocate()
	if err != nil {
		return BOTStat{CSWStatusFail, err}
	}
	defer t.slots.Release(slot)
	slot.Direction = api.DirectionFlush

	if err := t.engine.Issue(slot, api.NVMeCmdFlush, 0, nvme.ModeAdmin, 0, 0); err != nil {
		t.engine.Reset()
		return BOTStat{CSWStatusFail, err}
	}
	return BOTStatPass
}

func opTestUnitReady(t *Translator, cmd *Command) BOTStat {
	if !t.lu.Online {
		return BOTStat{CSWStatusFail, errors.New("logical unit offline")}
	}
	return BOTStatPass
}

func opStartStop(t *Translator, cmd *Command) BOTStat {
	// Power conditions and load/eject are not applicable to a fixed
	// NVMe namespace; acknowledge without acting.
	return BOTStatPass
}
