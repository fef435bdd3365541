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

package bot_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/gostor/gobridge/mock"
	"github.com/gostor/gobridge/pkg/api"
	"github.com/gostor/gobridge/pkg/bot"
	"github.com/gostor/gobridge/pkg/dma"
	"github.com/gostor/gobridge/pkg/hw"
	"github.com/gostor/gobridge/pkg/media"
	"github.com/gostor/gobridge/pkg/nvme"
)

const (
	cmdBase    = 0x0100
	dmaBase    = 0x0200
	txBase     = 0x0300
	blockShift = 9
	luBlocks   = 2048
)

type stack struct {
	bridge *mock.Bridge
	slots  *nvme.SlotTable
	tr     *bot.Translator
}

func newStack(t *testing.T) *stack {
	t.Helper()

	store := media.NewMemStore(luBlocks << blockShift)
	br := mock.NewBridge(store, blockShift, cmdBase, dmaBase, txBase)
	poll := hw.Poller{Budget: 64}
	slots, err := nvme.NewSlotTable(8)
	if err != nil {
		t.Fatal(err)
	}
	lu := bot.LogicalUnit{Blocks: luBlocks, BlockShift: blockShift, Online: true}
	tr := bot.NewTranslator(br, txBase, slots, nvme.NewEngine(br, cmdBase, poll), dma.NewEngine(br, dmaBase, poll), lu)
	return &stack{bridge: br, slots: slots, tr: tr}
}

func cbw(tag, xfer uint32, flags byte, cdb []byte) []byte {
	w := &bot.CBW{
		Tag:                tag,
		DataTransferLength: xfer,
		Flags:              flags,
		CDBLength:          byte(len(cdb)),
	}
	copy(w.CDB[:], cdb)
	b, _ := w.MarshalBinary()
	return b
}

func decodeCSW(t *testing.T, b []byte) *bot.CSW {
	t.Helper()
	csw := &bot.CSW{}
	if err := csw.UnmarshalBinary(b); err != nil {
		t.Fatalf("csw decode: %v", err)
	}
	return csw
}

func rwCDB(op byte, lba uint32, blocks uint16) []byte {
	cdb := make([]byte, 10)
	cdb[0] = op
	binary.BigEndian.PutUint32(cdb[2:6], lba)
	binary.BigEndian.PutUint16(cdb[7:9], blocks)
	return cdb
}

func TestReadCommand(t *testing.T) {
	s := newStack(t)

	// Seed four blocks at LBA 0x100 through the write path.
	payload := make([]byte, 4<<blockShift)
	for i := range payload {
		payload[i] = byte(i)
	}
	raw, _, err := s.tr.HandleCBW(cbw(1, uint32(len(payload)), 0, rwCDB(byte(api.WRITE_10), 0x100, 4)), payload)
	if err != nil {
		t.Fatal(err)
	}
	if csw := decodeCSW(t, raw); csw.Status != bot.CSWStatusPass || csw.DataResidue != 0 {
		t.Fatalf("write csw = %+v", csw)
	}

	raw, dataIn, err := s.tr.HandleCBW(cbw(2, uint32(len(payload)), bot.CBWFlagDataIn, rwCDB(byte(api.READ_10), 0x100, 4)), nil)
	if err != nil {
		t.Fatal(err)
	}
	csw := decodeCSW(t, raw)
	if csw.Status != bot.CSWStatusPass {
		t.Fatalf("read status = %#x", csw.Status)
	}
	if csw.Tag != 2 {
		t.Fatalf("csw tag = %d, want 2", csw.Tag)
	}
	if csw.DataResidue != 0 {
		t.Fatalf("residue = %d", csw.DataResidue)
	}
	if !bytes.Equal(dataIn, payload) {
		t.Fatal("read payload mismatch")
	}

	stats := s.tr.Stats()
	if stats.Commands != 2 || stats.ReadBytes != uint64(len(payload)) || stats.WriteBytes != uint64(len(payload)) {
		t.Fatalf("stats = %+v", stats)
	}
	if got := len(s.tr.InFlight()); got != 0 {
		t.Fatalf("in flight after completion = %d", got)
	}
}

func TestZeroBlockTransfer(t *testing.T) {
	s := newStack(t)

	raw, _, err := s.tr.HandleCBW(cbw(3, 0, bot.CBWFlagDataIn, rwCDB(byte(api.READ_10), 0, 0)), nil)
	if err != nil {
		t.Fatal(err)
	}
	if csw := decodeCSW(t, raw); csw.Status != bot.CSWStatusPass {
		t.Fatalf("status = %#x", csw.Status)
	}
	if len(s.bridge.Issued) != 0 {
		t.Fatal("zero-block transfer reached the command engine")
	}
}

func TestInvalidLun(t *testing.T) {
	s := newStack(t)

	w := &bot.CBW{Tag: 4, DataTransferLength: 512, Flags: bot.CBWFlagDataIn, LUN: 1, CDBLength: 10}
	w.CDB[0] = byte(api.READ_10)
	raw, _ := w.MarshalBinary()

	out, _, err := s.tr.HandleCBW(raw, nil)
	if err != nil {
		t.Fatal(err)
	}
	csw := decodeCSW(t, out)
	if csw.Status != bot.CSWStatusFail {
		t.Fatalf("status = %#x, want fail", csw.Status)
	}
	// Nothing moved: the full request length is residue.
	if csw.DataResidue != 512 {
		t.Fatalf("residue = %d, want 512", csw.DataResidue)
	}
	if len(s.bridge.Issued) != 0 {
		t.Fatal("rejected LUN reached the command engine")
	}
}

func TestSignatureDesync(t *testing.T) {
	s := newStack(t)

	raw := cbw(5, 512, bot.CBWFlagDataIn, rwCDB(byte(api.READ_10), 0, 1))
	raw[3] = 0x00

	out, dataIn, err := s.tr.HandleCBW(raw, nil)
	if !errors.Is(err, api.ErrInvalidSignature) {
		t.Fatalf("err = %v, want ErrInvalidSignature", err)
	}
	if out != nil || dataIn != nil {
		t.Fatal("desynchronized wrapper produced output")
	}
	if len(s.bridge.Frames) != 0 {
		t.Fatal("desynchronized wrapper transmitted a CSW")
	}
}

func TestSlotExhaustion(t *testing.T) {
	s := newStack(t)

	// Hold every slot so the data path cannot allocate.
	for i := 0; i < s.slots.Len(); i++ {
		if _, err := s.slots.Allocate(); err != nil {
			t.Fatal(err)
		}
	}

	raw, _, err := s.tr.HandleCBW(cbw(6, 512, bot.CBWFlagDataIn, rwCDB(byte(api.READ_10), 0, 1)), nil)
	if err != nil {
		t.Fatal(err)
	}
	if csw := decodeCSW(t, raw); csw.Status != bot.CSWStatusFail {
		t.Fatalf("status = %#x, want fail", csw.Status)
	}
	if len(s.bridge.Issued) != 0 {
		t.Fatal("command issued without a slot")
	}
	if got := s.tr.Stats().SlotRejects; got != 1 {
		t.Fatalf("slot rejects = %d, want 1", got)
	}
}

func TestCommandTimeout(t *testing.T) {
	s := newStack(t)
	s.bridge.HangBusy = true

	raw, _, err := s.tr.HandleCBW(cbw(7, 512, bot.CBWFlagDataIn, rwCDB(byte(api.READ_10), 0, 1)), nil)
	if err != nil {
		t.Fatal(err)
	}
	csw := decodeCSW(t, raw)
	if csw.Status != bot.CSWStatusFail {
		t.Fatalf("status = %#x, want fail", csw.Status)
	}
	if csw.Tag != 7 {
		t.Fatalf("tag = %d, want 7", csw.Tag)
	}
	if got := s.tr.Stats().SlotTimeouts; got != 1 {
		t.Fatalf("slot timeouts = %d, want 1", got)
	}
	// The slot must come back even though the command died.
	if got := len(s.tr.InFlight()); got != 0 {
		t.Fatalf("in flight after timeout = %d", got)
	}
}

func TestWritePayloadSizeMismatch(t *testing.T) {
	s := newStack(t)

	short := make([]byte, 100)
	raw, _, err := s.tr.HandleCBW(cbw(8, 512, 0, rwCDB(byte(api.WRITE_10), 0, 1)), short)
	if err != nil {
		t.Fatal(err)
	}
	if csw := decodeCSW(t, raw); csw.Status != bot.CSWStatusPhaseError {
		t.Fatalf("status = %#x, want phase error", csw.Status)
	}
	if got := s.tr.Stats().PhaseErrors; got != 1 {
		t.Fatalf("phase errors = %d, want 1", got)
	}
}

func TestInquiry(t *testing.T) {
	s := newStack(t)

	cdb := []byte{byte(api.INQUIRY), 0, 0, 0, 36, 0}
	raw, dataIn, err := s.tr.HandleCBW(cbw(9, 36, bot.CBWFlagDataIn, cdb), nil)
	if err != nil {
		t.Fatal(err)
	}
	if csw := decodeCSW(t, raw); csw.Status != bot.CSWStatusPass || csw.DataResidue != 0 {
		t.Fatalf("csw = %+v", csw)
	}
	if len(dataIn) != 36 {
		t.Fatalf("inquiry length = %d, want 36", len(dataIn))
	}
	if dataIn[1] != 0x80 || dataIn[2] != 0x05 {
		t.Fatalf("inquiry flags = %#x %#x", dataIn[1], dataIn[2])
	}
	if got := string(dataIn[8:16]); got != "GOSTOR\x00\x00" {
		t.Fatalf("vendor = %q", got)
	}
}

func TestReadCapacity(t *testing.T) {
	s := newStack(t)

	cdb := make([]byte, 10)
	cdb[0] = byte(api.READ_CAPACITY_10)
	raw, dataIn, err := s.tr.HandleCBW(cbw(10, 8, bot.CBWFlagDataIn, cdb), nil)
	if err != nil {
		t.Fatal(err)
	}
	if csw := decodeCSW(t, raw); csw.Status != bot.CSWStatusPass {
		t.Fatalf("status = %#x", csw.Status)
	}
	if got := binary.BigEndian.Uint32(dataIn[0:4]); got != luBlocks-1 {
		t.Fatalf("last lba = %d, want %d", got, luBlocks-1)
	}
	if got := binary.BigEndian.Uint32(dataIn[4:8]); got != 1<<blockShift {
		t.Fatalf("block size = %d", got)
	}
}

func TestReadCapacity16(t *testing.T) {
	s := newStack(t)

	cdb := make([]byte, 16)
	cdb[0] = byte(api.SERVICE_ACTION_IN)
	cdb[1] = api.SAI_READ_CAPACITY_16
	raw, dataIn, err := s.tr.HandleCBW(cbw(11, 32, bot.CBWFlagDataIn, cdb), nil)
	if err != nil {
		t.Fatal(err)
	}
	if csw := decodeCSW(t, raw); csw.Status != bot.CSWStatusPass {
		t.Fatalf("status = %#x", csw.Status)
	}
	if len(dataIn) != 32 {
		t.Fatalf("length = %d, want 32", len(dataIn))
	}
	if got := binary.BigEndian.Uint64(dataIn[0:8]); got != luBlocks-1 {
		t.Fatalf("last lba = %d", got)
	}
	if got := binary.BigEndian.Uint64(dataIn[8:16]); got != 1<<blockShift {
		t.Fatalf("block size = %d", got)
	}

	// Any other service action is unsupported.
	cdb[1] = 0x11
	raw, _, err = s.tr.HandleCBW(cbw(12, 32, bot.CBWFlagDataIn, cdb), nil)
	if err != nil {
		t.Fatal(err)
	}
	if csw := decodeCSW(t, raw); csw.Status != bot.CSWStatusFail {
		t.Fatalf("status = %#x, want fail", csw.Status)
	}
}

func TestReportLuns(t *testing.T) {
	s := newStack(t)

	cdb := make([]byte, 12)
	cdb[0] = byte(api.REPORT_LUNS)
	raw, dataIn, err := s.tr.HandleCBW(cbw(13, 16, bot.CBWFlagDataIn, cdb), nil)
	if err != nil {
		t.Fatal(err)
	}
	if csw := decodeCSW(t, raw); csw.Status != bot.CSWStatusPass {
		t.Fatalf("status = %#x", csw.Status)
	}
	if got := binary.BigEndian.Uint32(dataIn[0:4]); got != 8 {
		t.Fatalf("lun list length = %d, want 8", got)
	}
	if dataIn[8] != 0 {
		t.Fatalf("lun entry = %#x, want 0", dataIn[8])
	}
}

func TestRequestSense(t *testing.T) {
	s := newStack(t)

	cdb := []byte{byte(api.REQUEST_SENSE), 0, 0, 0, 18, 0}
	raw, dataIn, err := s.tr.HandleCBW(cbw(14, 18, bot.CBWFlagDataIn, cdb), nil)
	if err != nil {
		t.Fatal(err)
	}
	if csw := decodeCSW(t, raw); csw.Status != bot.CSWStatusPass {
		t.Fatalf("status = %#x", csw.Status)
	}
	if len(dataIn) != 18 || dataIn[0] != 0x70 {
		t.Fatalf("sense = %d bytes, code %#x", len(dataIn), dataIn[0])
	}
	if dataIn[2] != 0x00 || dataIn[12] != 0x00 {
		t.Fatal("pending sense reported on a clean device")
	}
}

func TestTestUnitReady(t *testing.T) {
	cases := map[string]struct {
		online     bool
		wantStatus byte
	}{
		"Online":  {online: true, wantStatus: bot.CSWStatusPass},
		"Offline": {online: false, wantStatus: bot.CSWStatusFail},
	}

	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			store := media.NewMemStore(luBlocks << blockShift)
			br := mock.NewBridge(store, blockShift, cmdBase, dmaBase, txBase)
			poll := hw.Poller{Budget: 64}
			slots, _ := nvme.NewSlotTable(8)
			lu := bot.LogicalUnit{Blocks: luBlocks, BlockShift: blockShift, Online: c.online}
			tr := bot.NewTranslator(br, txBase, slots, nvme.NewEngine(br, cmdBase, poll), dma.NewEngine(br, dmaBase, poll), lu)

			raw, _, err := tr.HandleCBW(cbw(15, 0, 0, []byte{byte(api.TEST_UNIT_READY), 0, 0, 0, 0, 0}), nil)
			if err != nil {
				t.Fatal(err)
			}
			if csw := decodeCSW(t, raw); csw.Status != c.wantStatus {
				t.Fatalf("status = %#x, want %#x", csw.Status, c.wantStatus)
			}
		})
	}
}

func TestUnsupportedOpcode(t *testing.T) {
	s := newStack(t)

	raw, _, err := s.tr.HandleCBW(cbw(16, 0, 0, []byte{0xff, 0, 0, 0, 0, 0}), nil)
	if err != nil {
		t.Fatal(err)
	}
	if csw := decodeCSW(t, raw); csw.Status != bot.CSWStatusFail {
		t.Fatalf("status = %#x, want fail", csw.Status)
	}
}

func TestVerifyAndFlush(t *testing.T) {
	s := newStack(t)

	raw, _, err := s.tr.HandleCBW(cbw(17, 0, 0, rwCDB(byte(api.VERIFY_10), 0x20, 2)), nil)
	if err != nil {
		t.Fatal(err)
	}
	if csw := decodeCSW(t, raw); csw.Status != bot.CSWStatusPass {
		t.Fatalf("verify status = %#x", csw.Status)
	}
	rec := s.bridge.LastIssued()
	if rec == nil || rec.Opcode != api.NVMeCmdRead || rec.LBA != 0x20 {
		t.Fatalf("verify issued %+v", rec)
	}

	raw, _, err = s.tr.HandleCBW(cbw(18, 0, 0, rwCDB(byte(api.SYNCHRONIZE_CACHE), 0, 0)), nil)
	if err != nil {
		t.Fatal(err)
	}
	if csw := decodeCSW(t, raw); csw.Status != bot.CSWStatusPass {
		t.Fatalf("flush status = %#x", csw.Status)
	}
	if rec := s.bridge.LastIssued(); rec.Opcode != api.NVMeCmdFlush || rec.Trigger != 0x80 {
		t.Fatalf("flush issued %+v", rec)
	}
}

func TestModeSense(t *testing.T) {
	s := newStack(t)

	cdb := []byte{byte(api.MODE_SENSE_6), 0, 0x3f, 0, 4, 0}
	raw, dataIn, err := s.tr.HandleCBW(cbw(19, 4, bot.CBWFlagDataIn, cdb), nil)
	if err != nil {
		t.Fatal(err)
	}
	if csw := decodeCSW(t, raw); csw.Status != bot.CSWStatusPass {
		t.Fatalf("status = %#x", csw.Status)
	}
	if len(dataIn) != 4 || dataIn[0] != 4 {
		t.Fatalf("mode data = %v", dataIn)
	}
}

func TestReadFormatCapacities(t *testing.T) {
	s := newStack(t)

	cdb := make([]byte, 10)
	cdb[0] = byte(api.READ_FORMAT_CAPACITIES)
	raw, dataIn, err := s.tr.HandleCBW(cbw(20, 12, bot.CBWFlagDataIn, cdb), nil)
	if err != nil {
		t.Fatal(err)
	}
	if csw := decodeCSW(t, raw); csw.Status != bot.CSWStatusPass {
		t.Fatalf("status = %#x", csw.Status)
	}
	if got := binary.BigEndian.Uint32(dataIn[4:8]); got != luBlocks {
		t.Fatalf("blocks = %d, want %d", got, luBlocks)
	}
	desc := binary.BigEndian.Uint32(dataIn[8:12])
	if desc>>24 != 0b10 {
		t.Fatalf("descriptor code = %#x", desc>>24)
	}
	if desc&0xffffff != 1<<blockShift {
		t.Fatalf("descriptor block size = %d", desc&0xffffff)
	}
}
