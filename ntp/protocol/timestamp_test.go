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
	"testing"
	"time"
	"unsafe"

	"github.com/stretchr/testify/require"
	syscall "golang.org/x/sys/unix"
)

// cmsg builds one socket control message the way the kernel lays it out
func cmsg(level, typ int, data []byte) []byte {
	b := make([]byte, syscall.CmsgSpace(len(data)))
	h := (*syscall.Cmsghdr)(unsafe.Pointer(&b[0]))
	h.Level = int32(level)
	h.Type = int32(typ)
	h.SetLen(syscall.CmsgLen(len(data)))
	copy(b[syscall.CmsgLen(0):], data)
	return b
}

func TestKernelTimestampTimespec(t *testing.T) {
	ts := syscall.Timespec{Sec: 1585147599, Nsec: 631495778}
	data := (*(*[unsafe.Sizeof(syscall.Timespec{})]byte)(unsafe.Pointer(&ts)))[:]

	got, ok := kernelTimestamp(cmsg(syscall.SOL_SOCKET, syscall.SCM_TIMESTAMPNS, data))
	require.True(t, ok)
	require.Equal(t, time.Unix(1585147599, 631495778), got)
}

func TestKernelTimestampTimeval(t *testing.T) {
	// the SO_TIMESTAMP fallback carries microseconds
	tv := syscall.Timeval{Sec: 1585147599, Usec: 631495}
	data := (*(*[unsafe.Sizeof(syscall.Timeval{})]byte)(unsafe.Pointer(&tv)))[:]

	got, ok := kernelTimestamp(cmsg(syscall.SOL_SOCKET, syscall.SCM_TIMESTAMP, data))
	require.True(t, ok)
	require.Equal(t, time.Unix(1585147599, 631495000), got)
}

func TestKernelTimestampAbsent(t *testing.T) {
	_, ok := kernelTimestamp(nil)
	require.False(t, ok)

	// unrelated control message type is not a timestamp
	_, ok = kernelTimestamp(cmsg(syscall.SOL_SOCKET, syscall.SCM_RIGHTS, make([]byte, 4)))
	require.False(t, ok)
}
