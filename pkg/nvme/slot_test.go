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
	"testing"

	"github.com/gostor/gobridge/pkg/api"
)

func TestNewSlotTable(t *testing.T) {
	cases := map[string]struct {
		count     int
		wantLen   int
		expectErr bool
	}{
		"Default":       {count: 0, wantLen: DefaultSlotCount},
		"One":           {count: 1, wantLen: 1},
		"Eight":         {count: 8, wantLen: 8},
		"ThirtyTwo":     {count: 32, wantLen: 32},
		"NotPowerOfTwo": {count: 6, expectErr: true},
		"Negative":      {count: -4, expectErr: true},
	}

	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			tbl, err := NewSlotTable(c.count)
			if c.expectErr {
				if err == nil {
					t.Fatalf("count %d accepted", c.count)
				}
				return
			}
			if err != nil {
				t.Fatalf("count %d: %v", c.count, err)
			}
			if tbl.Len() != c.wantLen {
				t.Fatalf("len = %d, want %d", tbl.Len(), c.wantLen)
			}
		})
	}
}

func TestSlotAllocation(t *testing.T) {
	tbl, err := NewSlotTable(8)
	if err != nil {
		t.Fatal(err)
	}

	// Exhaust the pool; indexes and tags must both be unique.
	seen := make(map[int]*Slot)
	for i := 0; i < 8; i++ {
		s, err := tbl.Allocate()
		if err != nil {
			t.Fatalf("allocate %d: %v", i, err)
		}
		if s.Index != i {
			t.Fatalf("allocate %d: index %d, round-robin broken", i, s.Index)
		}
		if s.Tag != uint8(i) {
			t.Fatalf("allocate %d: tag %d", i, s.Tag)
		}
		if s.State != api.SlotBuilding {
			t.Fatalf("allocate %d: state %v", i, s.State)
		}
		seen[s.Index] = s
	}

	if _, err := tbl.Allocate(); err != api.ErrNoFreeSlot {
		t.Fatalf("full table: err = %v, want ErrNoFreeSlot", err)
	}
	if got := len(tbl.InFlight()); got != 8 {
		t.Fatalf("in flight = %d, want 8", got)
	}

	// A released slot is the only candidate and must be found even
	// though the cursor has wrapped past it.
	tbl.Release(seen[2])
	s, err := tbl.Allocate()
	if err != nil {
		t.Fatalf("allocate after release: %v", err)
	}
	if s.Index != 2 {
		t.Fatalf("reallocated index %d, want 2", s.Index)
	}
	if s.Tag != 8 {
		t.Fatalf("tag %d, want rolling tag 8", s.Tag)
	}
}

func TestSlotCursorAdvance(t *testing.T) {
	tbl, err := NewSlotTable(4)
	if err != nil {
		t.Fatal(err)
	}

	// Allocate and release one slot at a time: the cursor must still
	// advance so consecutive commands land in different slots.
	var order []int
	for i := 0; i < 6; i++ {
		s, err := tbl.Allocate()
		if err != nil {
			t.Fatalf("allocate %d: %v", i, err)
		}
		order = append(order, s.Index)
		tbl.Release(s)
	}
	want := []int{0, 1, 2, 3, 0, 1}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("allocation order %v, want %v", order, want)
		}
	}
}

func TestSlotReleaseNil(t *testing.T) {
	tbl, _ := NewSlotTable(0)
	tbl.Release(nil) // must not panic
}
