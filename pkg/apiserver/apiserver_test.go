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
package apiserver

import (
	"os"
	"testing"
)

func TestListenBadProto(t *testing.T) {
	s := &Server{cfg: &Config{}}
	if _, err := s.listen("unix", "/tmp/gobridge.sock"); err == nil {
		t.Fatal("expected error for unsupported protocol")
	}
}

func TestListenFDNoSockets(t *testing.T) {
	// Without socket activation there are no fds to adopt.
	os.Unsetenv("LISTEN_PID")
	os.Unsetenv("LISTEN_FDS")
	if _, err := listenFD("", nil); err == nil {
		t.Fatal("expected error without activated sockets")
	}
}

func TestNewAndCloseTCP(t *testing.T) {
	s, err := New(&Config{Addrs: []Addr{{Proto: "tcp", Addr: "127.0.0.1:0"}}})
	if err != nil {
		t.Fatal(err)
	}
	if len(s.listeners) != 1 {
		t.Fatalf("listeners = %d, want 1", len(s.listeners))
	}
	s.Close()
}
