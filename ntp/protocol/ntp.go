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

/*
Package protocol implements the NTPv4 packet and the client-side math
to derive offset and delay from one request/response exchange.
It provides quick and transparent translation between 48 bytes and
simply accessible struct in the most efficient way.
*/
package protocol

import (
	"time"
)

// NanosecondsToUnix is the difference between NTP and Unix epoch in NS
const NanosecondsToUnix = int64(2208988800000000000)

// Time is converting Unix time to sec and frac NTP format
func Time(t time.Time) (seconds uint32, fractions uint32) {
	nsec := t.UnixNano() + NanosecondsToUnix
	sec := nsec / time.Second.Nanoseconds()
	return uint32(sec), uint32((nsec - sec*time.Second.Nanoseconds()) << 32 / time.Second.Nanoseconds())
}

// Unix is converting NTP seconds and fractions into Unix time
func Unix(seconds, fractions uint32) time.Time {
	secs := int64(seconds) - NanosecondsToUnix/time.Second.Nanoseconds()
	nanos := (int64(fractions) * time.Second.Nanoseconds()) >> 32 // convert fractional to nanos
	return time.Unix(secs, nanos)
}

// Offset returns the estimated clock offset between client and server in
// nanoseconds, from the four timestamps of a completed exchange:
// offset = ((T2 - T1) + (T3 - T4)) / 2
// where T1 is client transmit, T2 server receive, T3 server transmit
// and T4 client receive time.
func Offset(clientTransmitTime, serverReceiveTime, serverTransmitTime, clientReceiveTime time.Time) int64 {
	forwardPath := serverReceiveTime.Sub(clientTransmitTime).Nanoseconds()
	returnPath := serverTransmitTime.Sub(clientReceiveTime).Nanoseconds()

	return (forwardPath + returnPath) / 2
}

// RoundTripDelay returns the network round-trip delay of an exchange in
// nanoseconds: delay = (T4 - T1) - (T3 - T2)
func RoundTripDelay(clientTransmitTime, serverReceiveTime, serverTransmitTime, clientReceiveTime time.Time) int64 {
	totalTime := clientReceiveTime.Sub(clientTransmitTime).Nanoseconds()
	serverTime := serverTransmitTime.Sub(serverReceiveTime).Nanoseconds()

	return totalTime - serverTime
}

// CorrectTime returns the "true" time after applying the measured offset
func CorrectTime(clientReceiveTime time.Time, offset int64) time.Time {
	return clientReceiveTime.Add(time.Duration(offset) * time.Nanosecond)
}
