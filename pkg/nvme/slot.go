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

import (
	"fmt"
	"sync"

	"github.com/gostor/gobridge/pkg/api"
)

// DefaultSlotCount matches the typical hardware configuration.
const DefaultSlotCount = 8

// Slot is one outstanding-command record. A slot is owned by exactly
// one bridged command from allocation until release.
type Slot struct {
	Index     int
	Tag       uint8
	LBA       uint32
	Length    uint16
	Direction api.DataDirection
	State     api.SlotState

	busy bool
}

// SlotTable is the fixed pool of command slots. Allocation is
// round-robin: the cursor advances with count-1 masked arithmetic and
// a slot is never reused until released.
type SlotTable struct {
	mutex   sync.Mutex
	slots   []Slot
	cursor  int
	mask    int
	nextTag uint8
}

// NewSlotTable builds a table of count slots. count must be a power of
// two so the wraparound mask is count-1; zero selects the default.
func NewSlotTable(count int) (*SlotTable, error) {
	if count == 0 {
		count = DefaultSlotCount
	}
	if count < 1 || count&(count-1) != 0 {
		return nil, fmt.Errorf("slot count %d is not a power of two", count)
	}
	t := &SlotTable{
		slots: make([]Slot, count),
		mask:  count - 1,
	}
	for i := range t.slots {
		t.slots[i].Index = i
		t.slots[i].State = api.SlotIdle
	}
	return t, nil
}

// Len returns the configured slot count.
func (t *SlotTable) Len() int {
	return len(t.slots)
}

// Allocate claims the next free slot. It never blocks: when every slot
// is busy it fails immediately with api.ErrNoFreeSlot and the caller
// reports a BOT-level failure.
func (t *SlotTable) Allocate() (*Slot, error) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	for i := 0; i < len(t.slots); i++ {
		idx := (t.cursor + i) & t.mask
		s := &t.slots[idx]
		if s.busy {
			continue
		}
		t.cursor = (idx + 1) & t.mask
		s.busy = true
		s.Tag = t.nextTag
		t.nextTag++
		s.LBA = 0
		s.Length = 0
		s.Direction = api.DirectionNone
		s.State = api.SlotBuilding
		return s, nil
	}
	return nil, api.ErrNoFreeSlot
}

// Release returns a slot to the pool. Safe to call once per Allocate;
// the slot index becomes immediately reusable.
func (t *SlotTable) Release(s *Slot) {
	if s == nil {
		return
	}
	t.mutex.Lock()
	s.busy = false
	s.State = api.SlotIdle
	t.mutex.Unlock()
}

// InFlight lists the live slots for the status API.
func (t *SlotTable) InFlight() []api.BridgeCommand {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	var out []api.BridgeCommand
	for i := range t.slots {
		s := &t.slots[i]
		if !s.busy {
			continue
		}
		out = append(out, api.BridgeCommand{
			SlotTag:   s.Tag,
			LBA:       s.LBA,
			Length:    s.Length,
			Direction: s.Direction,
			State:     s.State,
		})
	}
	return out
}
