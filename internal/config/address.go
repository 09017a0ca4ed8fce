// Copyright (C) 2025 Phoenix PoCX Developers
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE file for the full license text.

package config

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidAddress marks a plotting address that fails validation.
var ErrInvalidAddress = errors.New("invalid plotting address")

// addressHRPs are the accepted human-readable prefixes: mainnet,
// testnet and regtest.
var addressHRPs = []string{"pocx", "tpocx", "rpocx"}

// addressCharset is the bech32 data alphabet.
const addressCharset = "qpzry9x8gf2tvdw0s3jn54khce6mua7l"

// ValidateAddress checks the structural shape of a plotting address:
// a known prefix, the "1" separator, and a payload drawn from the
// bech32 alphabet. Full checksum verification belongs to the wallet;
// this guard only keeps obviously broken addresses out of plot file
// names.
func ValidateAddress(addr string) error {
	if addr == "" {
		return fmt.Errorf("%w: empty", ErrInvalidAddress)
	}
	lower := strings.ToLower(addr)
	if lower != addr && strings.ToUpper(addr) != addr {
		return fmt.Errorf("%w: mixed case", ErrInvalidAddress)
	}

	sep := strings.LastIndexByte(lower, '1')
	if sep < 1 {
		return fmt.Errorf("%w: missing separator", ErrInvalidAddress)
	}
	hrp, payload := lower[:sep], lower[sep+1:]

	known := false
	for _, candidate := range addressHRPs {
		if hrp == candidate {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("%w: unknown prefix %q", ErrInvalidAddress, hrp)
	}

	if len(payload) < 6 {
		return fmt.Errorf("%w: payload too short", ErrInvalidAddress)
	}
	for _, r := range payload {
		if !strings.ContainsRune(addressCharset, r) {
			return fmt.Errorf("%w: invalid character %q", ErrInvalidAddress, r)
		}
	}
	return nil
}
