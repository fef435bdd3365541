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

// Package client is the programmatic client of the bridge admin API,
// used by the command line tools.
package client

import (
	"fmt"
	"io/ioutil"
	"net/http"
	"net/url"
	"strings"

	"github.com/docker/go-connections/sockets"
)

// Client talks to the bridge daemon admin API.
type Client struct {
	// proto holds the client protocol i.e. tcp.
	proto string
	// addr holds the client address.
	addr string
	// basePath holds the path to prepend to the requests.
	basePath string
	// client is the http client with the configured transport.
	client *http.Client
	// version of the server to talk to.
	version string
}

// NewClient initializes a new API client for the given host and API
// version.
func NewClient(host string, version string) (*Client, error) {
	proto, addr, basePath, err := ParseHost(host)
	if err != nil {
		return nil, err
	}

	transport := new(http.Transport)
	if err := sockets.ConfigureTransport(transport, proto, addr); err != nil {
		return nil, err
	}

	return &Client{
		proto:    proto,
		addr:     addr,
		basePath: basePath,
		client:   &http.Client{Transport: transport},
		version:  version,
	}, nil
}

// getAPIPath returns the versioned request path to call the api.
func (cli *Client) getAPIPath(p string, query url.Values) string {
	var apiPath string
	if cli.version != "" {
		v := strings.TrimPrefix(cli.version, "v")
		apiPath = fmt.Sprintf("%s/v%s%s", cli.basePath, v, p)
	} else {
		apiPath = fmt.Sprintf("%s%s", cli.basePath, p)
	}

	u := &url.URL{
		Path: apiPath,
	}
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// ClientVersion returns the version string associated with this
// instance of the Client.
func (cli *Client) ClientVersion() string {
	return cli.version
}

func (cli *Client) hostURL() string {
	host := cli.addr
	if cli.proto == "unix" {
		// The socket path rode in addr; the HTTP host is a dummy.
		host = "unix.sock"
	}
	return "http://" + host
}

func (cli *Client) get(path string) ([]byte, error) {
	resp, err := cli.client.Get(cli.hostURL() + cli.getAPIPath(path, nil))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("api: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	return body, nil
}

func (cli *Client) post(path string) error {
	resp, err := cli.client.Post(cli.hostURL()+cli.getAPIPath(path, nil), "application/json", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, _ := ioutil.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return fmt.Errorf("api: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	return nil
}

// ParseHost verifies that the given host string is valid.
func ParseHost(host string) (string, string, string, error) {
	protoAddrParts := strings.SplitN(host, "://", 2)
	if len(protoAddrParts) == 1 {
		return "", "", "", fmt.Errorf("unable to parse host `%s`", host)
	}

	var basePath string
	proto, addr := protoAddrParts[0], protoAddrParts[1]
	if proto == "tcp" {
		parsed, err := url.Parse("tcp://" + addr)
		if err != nil {
			return "", "", "", err
		}
		addr = parsed.Host
		basePath = parsed.Path
	}
	return proto, addr, basePath, nil
}
