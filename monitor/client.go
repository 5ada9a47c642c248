/*
Copyright (c) Facebook, Inc. and its affiliates.

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

package monitor

import (
	"context"
	"encoding/binary"
	"net"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/timekeep/ntpmon/ntp/protocol"
)

// NTPPort is the default NTP server port
const NTPPort = "123"

// Querier issues a single request/response exchange against a server.
// It always returns a Sample; query-level failures are encoded in the
// sample status, never returned as errors.
type Querier interface {
	Query(ctx context.Context, server string) Sample
}

// Client is a one-shot NTP query client. It never retries; retry policy
// belongs to the poller.
type Client struct {
	Timeout time.Duration
	Port    string
}

// NewClient returns a Client with the given per-query timeout
func NewClient(timeout time.Duration) *Client {
	return &Client{Timeout: timeout, Port: NTPPort}
}

// failed finalizes a sample for an unsuccessful attempt
func failed(sample Sample, status Status) Sample {
	sample.Status = status
	sample.Timestamp = time.Now()
	return sample
}

// classifyNetError maps a transport error to Timeout or NetworkError
func classifyNetError(err error) Status {
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		return StatusTimeout
	}
	return StatusNetworkError
}

// Query sends one client mode request and derives offset and delay from
// the four timestamps of the exchange. It blocks no longer than the
// configured timeout plus small fixed slack.
func (c *Client) Query(ctx context.Context, server string) Sample {
	sample := Sample{Server: server}
	port := c.Port
	if port == "" {
		port = NTPPort
	}

	dialer := &net.Dialer{Timeout: c.Timeout}
	conn, err := dialer.DialContext(ctx, "udp", net.JoinHostPort(server, port))
	if err != nil {
		log.Debugf("dialing %s: %v", server, err)
		return failed(sample, classifyNetError(err))
	}
	defer conn.Close()
	udpConn := conn.(*net.UDPConn)

	if err := protocol.EnableKernelTimestampsSocket(udpConn); err != nil {
		// wall clock receive time is used as T4 instead
		log.Debugf("no kernel timestamps for %s: %v", server, err)
	}
	deadline := time.Now().Add(c.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return failed(sample, StatusNetworkError)
	}

	clientTransmitTime := time.Now()
	request, sec, frac := protocol.NewRequest(clientTransmitTime)
	if err := binary.Write(conn, binary.BigEndian, request); err != nil {
		log.Debugf("sending request to %s: %v", server, err)
		return failed(sample, classifyNetError(err))
	}

	response, clientReceiveTime, _, err := protocol.ReadPacketWithKernelTimestamp(udpConn)
	if err != nil {
		if response == nil {
			log.Debugf("reading response from %s: %v", server, err)
			return failed(sample, classifyNetError(err))
		}
		log.Debugf("malformed response from %s: %v", server, err)
		return failed(sample, StatusProtocolError)
	}
	if !response.ValidServerResponse() {
		log.Debugf("unexpected response settings %#x from %s", response.Settings, server)
		return failed(sample, StatusProtocolError)
	}
	// stratum 0 is a kiss-o'-death, surfaced as a protocol failure
	if response.Stratum == 0 {
		log.Debugf("kiss-o'-death %q from %s", protocol.Unix(response.RefTimeSec, response.RefTimeFrac), server)
		return failed(sample, StatusProtocolError)
	}
	// server must echo our transmit timestamp back as origin
	if response.OrigTimeSec != sec || response.OrigTimeFrac != frac {
		log.Debugf("origin timestamp mismatch from %s", server)
		return failed(sample, StatusProtocolError)
	}

	// T1 in wire precision so all four timestamps share rounding
	originTime := protocol.Unix(sec, frac)
	serverReceiveTime := protocol.Unix(response.RxTimeSec, response.RxTimeFrac)
	serverTransmitTime := protocol.Unix(response.TxTimeSec, response.TxTimeFrac)

	delay := protocol.RoundTripDelay(originTime, serverReceiveTime, serverTransmitTime, clientReceiveTime)
	if delay < 0 {
		delay = 0
	}

	sample.Status = StatusOK
	sample.Timestamp = clientReceiveTime
	sample.Offset = time.Duration(protocol.Offset(originTime, serverReceiveTime, serverTransmitTime, clientReceiveTime))
	sample.Delay = time.Duration(delay)
	sample.Stratum = response.Stratum
	sample.ReferenceID = RefidToString(response.ReferenceID)
	return sample
}
