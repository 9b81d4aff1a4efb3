// Copyright 2015 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package util

import (
	"bytes"
	"crypto/des"
	"encoding/hex"
	"strings"

	"github.com/pingcap/errors"
)

const (
	encryptedPrefix = "DES("
	encryptedSuffix = ")"
)

// passwordKey obfuscates passwords stored in config files. It keeps them
// out of plain sight, it is not a secret.
var passwordKey = []byte{62, 10, 13, 4, 54, 21, 33, 7}

// IsEncryptedPassword reports whether text has the DES(<hex>) form.
func IsEncryptedPassword(text string) bool {
	return len(text) > len(encryptedPrefix)+len(encryptedSuffix) &&
		strings.HasPrefix(text, encryptedPrefix) && strings.HasSuffix(text, encryptedSuffix)
}

// EncryptPassword returns the DES(<hex>) form of password.
func EncryptPassword(password string) (string, error) {
	block, err := des.NewCipher(passwordKey)
	if err != nil {
		return "", errors.Trace(err)
	}
	src := zeroPadding([]byte(password), block.BlockSize())
	out := make([]byte, len(src))
	for i := 0; i < len(src); i += block.BlockSize() {
		block.Encrypt(out[i:], src[i:i+block.BlockSize()])
	}
	return encryptedPrefix + hex.EncodeToString(out) + encryptedSuffix, nil
}

// DecryptPassword reverses EncryptPassword. Text that is not in the
// DES(<hex>) form is returned unchanged.
func DecryptPassword(text string) (string, error) {
	if !IsEncryptedPassword(text) {
		return text, nil
	}
	src, err := hex.DecodeString(text[len(encryptedPrefix) : len(text)-len(encryptedSuffix)])
	if err != nil {
		return "", errors.Annotate(err, "decode encrypted password")
	}
	block, err := des.NewCipher(passwordKey)
	if err != nil {
		return "", errors.Trace(err)
	}
	if len(src)%block.BlockSize() != 0 {
		return "", errors.New("encrypted password has a bad length")
	}
	out := make([]byte, len(src))
	for i := 0; i < len(src); i += block.BlockSize() {
		block.Decrypt(out[i:], src[i:i+block.BlockSize()])
	}
	return string(bytes.TrimRight(out, "\x00")), nil
}

// zeroPadding pads src with zero bytes to a multiple of blockSize.
func zeroPadding(src []byte, blockSize int) []byte {
	if len(src)%blockSize == 0 {
		return src
	}
	out := make([]byte, (len(src)/blockSize+1)*blockSize)
	copy(out, src)
	return out
}
