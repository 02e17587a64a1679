// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package muart

import "math"

// Temperature limits representable by the enhanced encoding
const (
	MinTemperature = -64.0
	MaxTemperature = 63.5
)

// EncodeTemperature converts degrees Celsius to the half-degree wire encoding
// (round(c*2) + 128). Values outside the representable range are clamped.
func EncodeTemperature(celsius float64) uint8 {
	if math.IsNaN(celsius) {
		return 128
	}
	celsius = math.Max(MinTemperature, math.Min(MaxTemperature, celsius))
	return uint8(int(math.Round(celsius*2)) + 128)
}

// DecodeTemperature converts a wire temperature byte to degrees Celsius
func DecodeTemperature(b uint8) float64 {
	return float64(int(b)-128) / 2.0
}

// encodeLegacyTemperature converts to the older whole-degree setpoint
// encoding (31 - c) used alongside the enhanced byte in set requests.
func encodeLegacyTemperature(celsius float64) uint8 {
	c := int(math.Round(celsius))
	if c < 16 {
		c = 16
	}
	if c > 31 {
		c = 31
	}
	return uint8(31 - c)
}
