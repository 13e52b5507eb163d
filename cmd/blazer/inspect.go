// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"os"

	"cloudeng.io/cmdutil"
	"cloudeng.io/errors"

	"github.com/cosnicolaou/blazer"
)

func inspectFile(name string) error {
	f, err := os.Open(name)
	if err != nil {
		return err
	}
	defer f.Close()

	fmt.Printf("=== %s ===\n", name)
	fmt.Printf("tag  payload-len  wire-len  crc32c\n")
	flags, err := blazer.WalkFrames(f, func(fi blazer.FrameInfo) error {
		if fi.HasCRC {
			fmt.Printf("0x%02x % 12d % 12d  0x%08x\n", fi.Tag, fi.PayloadLen, fi.WireLen, fi.CRC32C)
		} else {
			fmt.Printf("0x%02x % 12d % 12d  -\n", fi.Tag, fi.PayloadLen, fi.WireLen)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	fmt.Printf("block size     : %d\n", flags.MaxBlockSize())
	fmt.Printf("crc enabled    : %v\n", flags.HasCRC())
	fmt.Printf("trailer        : %v\n", flags.HasTrailer())
	fmt.Printf("encrypt-inner  : %v\n", flags.EncryptInner())
	fmt.Printf("file-info      : %v\n", flags.HasFileInfo())
	return nil
}

func runInspect(ctx context.Context, values interface{}, args []string) error {
	_, cancel := context.WithCancel(ctx)
	defer cancel()
	cmdutil.HandleSignals(cancel, os.Interrupt)

	errs := &errors.M{}
	for _, arg := range args {
		errs.Append(inspectFile(arg))
	}
	return errs.Err()
}
