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

// USB mass storage to NVMe bridge command line
package main

import (
	"fmt"
	"os"

	"github.com/gostor/gobridge/cmd"
	"github.com/gostor/gobridge/pkg/api/client"
	"github.com/gostor/gobridge/pkg/version"
)

func main() {
	host := "tcp://127.0.0.1:23457"
	if env := os.Getenv("GOBRIDGE_HOST"); env != "" {
		host = env
	}

	cli, err := client.NewClient(host, version.Version)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v", err)
		os.Exit(1)
	}
	if err := cmd.NewCommand(cli).Execute(); err != nil {
		fmt.Println(err)
		os.Exit(-1)
	}
}
