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

package api

import (
	"errors"

	uuid "github.com/satori/go.uuid"
)

// SCSICommandType is the CDB operation code received in a CBW.
type SCSICommandType byte

var (
	TEST_UNIT_READY        SCSICommandType = 0x00
	REQUEST_SENSE          SCSICommandType = 0x03
	INQUIRY                SCSICommandType = 0x12
	MODE_SENSE_6           SCSICommandType = 0x1a
	START_STOP             SCSICommandType = 0x1b
	READ_FORMAT_CAPACITIES SCSICommandType = 0x23
	READ_CAPACITY_10       SCSICommandType = 0x25
	READ_10                SCSICommandType = 0x28
	WRITE_10               SCSICommandType = 0x2a
	VERIFY_10              SCSICommandType = 0x2f
	SYNCHRONIZE_CACHE      SCSICommandType = 0x35
	MODE_SENSE_10          SCSICommandType = 0x5a
	SERVICE_ACTION_IN      SCSICommandType = 0x9e
	REPORT_LUNS            SCSICommandType = 0xa0

	// SERVICE_ACTION_IN service action codes
	SAI_READ_CAPACITY_16 byte = 0x10
)

// NVMeOpcode is the translated opcode issued to the command engine.
type NVMeOpcode byte

var (
	NVMeCmdFlush NVMeOpcode = 0x00
	NVMeCmdWrite NVMeOpcode = 0x01
	NVMeCmdRead  NVMeOpcode = 0x02
)

// DataDirection of a bridged command, from the device's point of view.
type DataDirection int

const (
	DirectionNone DataDirection = iota
	DirectionRead
	DirectionWrite
	DirectionFlush
)

// SlotState tracks one hardware command slot through its lifecycle.
// Transitions are driven only by the command issuance protocol.
type SlotState int

const (
	SlotIdle SlotState = iota
	SlotBuilding
	SlotIssued
	SlotWaitingCompletion
	SlotComplete
	SlotTimedOut
	SlotError
)

func (s SlotState) String() string {
	switch s {
	case SlotIdle:
		return "idle"
	case SlotBuilding:
		return "building"
	case SlotIssued:
		return "issued"
	case SlotWaitingCompletion:
		return "waiting-completion"
	case SlotComplete:
		return "complete"
	case SlotTimedOut:
		return "timed-out"
	case SlotError:
		return "error"
	}
	return "unknown"
}

// BridgeCommand is the record of one in-flight bridged command: the
// CBW tag correlates host and device, the slot tag correlates firmware
// and the hardware command engine.
type BridgeCommand struct {
	HostTag   uint32
	SlotTag   uint8
	LBA       uint32
	Length    uint16
	Direction DataDirection
	State     SlotState
}

var (
	ErrNoFreeSlot       = errors.New("no free command slot")
	ErrInvalidSignature = errors.New("invalid CBW signature")
	ErrInvalidLun       = errors.New("invalid LUN")
	ErrDmaTransfer      = errors.New("dma transfer failed")
)

// Stats counts bridge activity since startup. Updated by the BOT
// translation layer only; read by the status API.
type Stats struct {
	Commands     uint64 `json:"commands"`
	ReadBytes    uint64 `json:"readBytes"`
	WriteBytes   uint64 `json:"writeBytes"`
	Failures     uint64 `json:"failures"`
	PhaseErrors  uint64 `json:"phaseErrors"`
	SlotTimeouts uint64 `json:"slotTimeouts"`
	SlotRejects  uint64 `json:"slotRejects"`
}

// Session identifies one bridge run for the admin API.
type Session struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	Portal  string    `json:"portal"`
	Version string    `json:"version"`
}

// BridgeStatus is the admin API status document.
type BridgeStatus struct {
	Session   Session         `json:"session"`
	Stats     Stats           `json:"stats"`
	SlotCount int             `json:"slotCount"`
	Slots     []BridgeCommand `json:"slots"`
}
