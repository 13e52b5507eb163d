// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package block

import "errors"

// Errors returned by Decoder.DecodeBlock. All of them indicate a corrupt
// token stream; the framing layer wraps them into blazer.CorruptStreamError.
var (
	ErrTruncated        = errors.New("block: truncated command")
	ErrOverflow         = errors.New("block: decoded output exceeds buffer")
	ErrBadBackReference = errors.New("block: impossible back-reference")
)
