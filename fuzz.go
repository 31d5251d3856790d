// Copyright 2024 The ctf-go Authors. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// that can be found in the LICENSE file.

package ctf

// Fuzz is a go-fuzz entry point exercising ParseMetadata against
// arbitrary bytes, including the packetized-magic-detection branch.
func Fuzz(data []byte) int {
	parsed, err := ParseMetadata(data)
	if err != nil {
		return 0
	}
	if parsed.Trace == nil {
		return 0
	}
	return 1
}
