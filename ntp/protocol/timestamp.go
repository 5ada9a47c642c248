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

package protocol

import (
	"fmt"
	"net"
	"time"
	"unsafe"

	syscall "golang.org/x/sys/unix"
)

// EnableKernelTimestampsSocket enables socket options to read kernel timestamps
func EnableKernelTimestampsSocket(conn *net.UDPConn) error {
	// Get socket fd
	connfd, err := connFd(conn)
	if err != nil {
		return err
	}

	if err := syscall.SetsockoptInt(connfd, syscall.SOL_SOCKET, syscall.SO_TIMESTAMPNS, 1); err != nil {
		// If nanosecond timestamps are not supported - use microsecond ones
		if err := syscall.SetsockoptInt(connfd, syscall.SOL_SOCKET, syscall.SO_TIMESTAMP, 1); err != nil {
			return fmt.Errorf("failed to enable SO_TIMESTAMP: %w", err)
		}
	}
	return nil
}

// kernelTimestamp extracts the kernel receive timestamp from socket
// control messages. The control message type decides the payload layout:
// SO_TIMESTAMPNS carries a Timespec, the SO_TIMESTAMP fallback a Timeval.
func kernelTimestamp(oob []byte) (time.Time, bool) {
	msgs, err := syscall.ParseSocketControlMessage(oob)
	if err != nil {
		return time.Time{}, false
	}
	for _, m := range msgs {
		if m.Header.Level != syscall.SOL_SOCKET {
			continue
		}
		switch m.Header.Type {
		case syscall.SCM_TIMESTAMPNS:
			if len(m.Data) >= int(unsafe.Sizeof(syscall.Timespec{})) {
				ts := (*syscall.Timespec)(unsafe.Pointer(&m.Data[0]))
				return time.Unix(ts.Unix()), true
			}
		case syscall.SCM_TIMESTAMP:
			if len(m.Data) >= int(unsafe.Sizeof(syscall.Timeval{})) {
				tv := (*syscall.Timeval)(unsafe.Pointer(&m.Data[0]))
				return time.Unix(tv.Unix()), true
			}
		}
	}
	return time.Time{}, false
}

// ReadPacketWithKernelTimestamp reads one incoming NTP packet together
// with the kernel timestamp of its arrival. If the kernel did not attach
// a timestamp, the receive wall clock time is returned instead.
func ReadPacketWithKernelTimestamp(conn *net.UDPConn) (ntp *Packet, kernelRxTime time.Time, remAddr net.Addr, err error) {
	buf := make([]byte, PacketSizeBytes)
	oob := make([]byte, ControlHeaderSizeBytes)

	// Receive message + control struct from the socket
	// https://linux.die.net/man/2/recvmsg
	// This is a low-level way of getting the message (NTP packet content)
	// Additionally we receive control headers, one of which is kernel timestamp
	n, oobn, _, sa, err := conn.ReadMsgUDP(buf, oob)
	if err != nil {
		return nil, time.Time{}, nil, err
	}
	kernelRxTime, ok := kernelTimestamp(oob[:oobn])
	if !ok {
		kernelRxTime = time.Now()
	}

	packet, err := BytesToPacket(buf[:n])
	return packet, kernelRxTime, sa, err
}

// connFd returns file descriptor of a connection
func connFd(conn *net.UDPConn) (int, error) {
	sc, err := conn.SyscallConn()
	if err != nil {
		return -1, err
	}
	var intfd int
	err = sc.Control(func(fd uintptr) {
		intfd = int(fd)
	})
	if err != nil {
		return -1, err
	}
	return intfd, nil
}
