// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package muart

// CalculateChecksum computes the frame checksum over header and payload bytes.
// The result makes header+payload+checksum sum to 0xFC modulo 256.
func CalculateChecksum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return checksumConstant - sum
}
