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

package hw

import "errors"

// ErrTimeout is returned when a busy-poll exhausts its iteration
// budget. The hardware protocols have no native timeout; the budget is
// the caller-imposed deadline required before a command is failed.
var ErrTimeout = errors.New("hw: poll budget exhausted")

// DefaultPollBudget bounds every busy-wait loop unless configuration
// overrides it.
const DefaultPollBudget = 1 << 20

// Poller is a bounded busy-wait. A zero budget falls back to
// DefaultPollBudget.
type Poller struct {
	Budget int
}

// Until spins while cond reports true, up to the budget. The loop
// never yields; the device either clears the condition or the caller
// fails the command on ErrTimeout.
func (p Poller) Until(cond func() bool) error {
	budget := p.Budget
	if budget <= 0 {
		budget = DefaultPollBudget
	}
	for i := 0; i < budget; i++ {
		if !cond() {
			return nil
		}
	}
	return ErrTimeout
}
