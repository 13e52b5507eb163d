// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"cloudeng.io/cmdutil"
	"cloudeng.io/cmdutil/subcmd"
	"cloudeng.io/errors"
	"github.com/schollz/progressbar/v2"
	"golang.org/x/crypto/ssh/terminal"

	"github.com/cosnicolaou/blazer"
)

type compressFlags struct {
	Decompress     bool   `subcmd:"d,false,decompress rather than compress"`
	Force          bool   `subcmd:"f,false,overwrite an existing output file"`
	Stdin          bool   `subcmd:"stdin,false,read input from stdin"`
	Stdout         bool   `subcmd:"stdout,false,write output to stdout"`
	Password       string `subcmd:"p,,password used to derive the encryption key"`
	PromptPassword bool   `subcmd:"prompt-password,false,prompt for the password interactively instead of passing it on the command line"`
	BlobOnly       bool   `subcmd:"blobonly,false,omit header/CRC/trailer and fix the max block size to 16MiB"`
	NoFilename     bool   `subcmd:"nofilename,false,do not write or expect a file-info record; without this flag decompression reads the record but does not restore the file name or other metadata"`
	EncryptFull    bool   `subcmd:"encryptfull,false,wrap the entire container in an outer stream cipher instead of encrypting blocks individually"`
	Mode           string `subcmd:"mode,block,codec to use: none, block, stream or streamhigh; only block is implemented"`
	Progress       bool   `subcmd:"progress,true,display a progress bar"`
}

type noFlags struct{}

var cmdSet *subcmd.CommandSet

func init() {
	compressCmd := subcmd.NewCommand("compress",
		subcmd.MustRegisterFlagStruct(&compressFlags{}, nil, nil),
		runCompress, subcmd.ExactlyNumArguments(1))
	compressCmd.Document(`compress or, with -d, decompress a single file using the Blazer format.`)

	inspectCmd := subcmd.NewCommand("inspect",
		subcmd.MustRegisterFlagStruct(&noFlags{}, nil, nil),
		runInspect, subcmd.AtLeastNArguments(1))
	inspectCmd.Document(`walk a Blazer container's frames, printing kind/length/CRC without fully decompressing it.`)

	cmdSet = subcmd.NewCommandSet(compressCmd, inspectCmd)
	cmdSet.Document(`compress, decompress and inspect files using the Blazer format.`)
}

func main() {
	cmdSet.MustDispatch(context.Background())
}

func resolvePassword(cl *compressFlags) (string, error) {
	if cl.PromptPassword {
		if !terminal.IsTerminal(int(os.Stdin.Fd())) {
			return "", fmt.Errorf("blazer: --prompt-password requires an interactive terminal")
		}
		fmt.Fprint(os.Stderr, "password: ")
		pw, err := terminal.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", err
		}
		return string(pw), nil
	}
	return cl.Password, nil
}

func outputName(input string, decompress bool) string {
	const suffix = ".blz"
	if !decompress {
		return input + suffix
	}
	if strings.HasSuffix(input, suffix) {
		return strings.TrimSuffix(input, suffix)
	}
	return input + ".unpacked"
}

func flagsFor(cl *compressFlags) (blazer.Flags, error) {
	if cl.BlobOnly {
		return blazer.NewFlags(15, blazer.AlgorithmBlock)
	}
	f, err := blazer.NewFlags(6, blazer.AlgorithmBlock) // exponent 6 -> 32KiB blocks
	if err != nil {
		return 0, err
	}
	f = f.WithHeader().WithTrailer().WithCRC()
	if !cl.NoFilename {
		f = f.WithFileInfo()
	}
	if cl.EncryptFull {
		f = f.WithEncryptFull()
	} else if cl.Password != "" || cl.PromptPassword {
		f = f.WithEncryptInner()
	}
	return f, nil
}

func openInput(cl *compressFlags, args []string) (io.Reader, func() error, error) {
	if cl.Stdin {
		return os.Stdin, func() error { return nil }, nil
	}
	f, err := os.Open(args[0])
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

func createOutput(cl *compressFlags, name string) (io.Writer, func() error, error) {
	if cl.Stdout {
		return os.Stdout, func() error { return nil }, nil
	}
	if !cl.Force {
		if _, err := os.Stat(name); err == nil {
			return nil, nil, fmt.Errorf("blazer: %s already exists, use -f to overwrite", name)
		}
	}
	f, err := os.Create(name)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

func runCompress(ctx context.Context, values interface{}, args []string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	cmdutil.HandleSignals(cancel, os.Interrupt)

	cl := values.(*compressFlags)
	if cl.Mode != "block" {
		return fmt.Errorf("blazer: --mode %s is not implemented, only 'block' is supported", cl.Mode)
	}

	password, err := resolvePassword(cl)
	if err != nil {
		return err
	}
	cl.Password = password

	in, closeIn, err := openInput(cl, args)
	if err != nil {
		return err
	}
	defer closeIn()

	if cl.Decompress {
		return decompressFile(ctx, cl, in, args[0])
	}
	return compressFile(ctx, cl, in, args[0])
}

func compressFile(ctx context.Context, cl *compressFlags, in io.Reader, inputName string) error {
	flags, err := flagsFor(cl)
	if err != nil {
		return err
	}

	name := outputName(inputName, false)
	out, closeOut, err := createOutput(cl, name)
	if err != nil {
		return err
	}

	var writerOpts []blazer.WriterOption
	if cl.Password != "" {
		writerOpts = append(writerOpts, blazer.WithPassword(cl.Password))
	}
	var fi *basicFileInfo
	if flags.HasFileInfo() {
		info, statErr := os.Stat(inputName)
		fi = &basicFileInfo{Name: inputName}
		if statErr == nil {
			fi.ModTime = info.ModTime()
			fi.Mode = uint32(info.Mode())
		} else {
			fi.ModTime = time.Now()
		}
		writerOpts = append(writerOpts, blazer.WithFileInfo(fi))
	}

	cw, err := blazer.NewWriter(out, flags, writerOpts...)
	if err != nil {
		return err
	}

	errs := &errors.M{}
	if err := copyWithProgress(ctx, cw, in, cl.Progress); err != nil {
		errs.Append(err)
	}
	errs.Append(cw.Close())
	errs.Append(closeOut())
	return errs.Err()
}

func decompressFile(ctx context.Context, cl *compressFlags, in io.Reader, inputName string) error {
	var readerOpts []blazer.ReaderOption
	if cl.Password != "" {
		readerOpts = append(readerOpts, blazer.WithPasswordReader(cl.Password))
	}
	if cl.EncryptFull {
		readerOpts = append(readerOpts, blazer.ExpectEncryptFull())
	}
	var fi basicFileInfo
	if !cl.NoFilename {
		readerOpts = append(readerOpts, blazer.WithFileInfoReader(&fi))
	}
	if cl.BlobOnly {
		flags, err := blazer.NewFlags(15, blazer.AlgorithmBlock)
		if err != nil {
			return err
		}
		readerOpts = append(readerOpts, blazer.NoHeader(flags))
	}

	cr, err := blazer.NewReader(in, readerOpts...)
	if err != nil {
		return err
	}

	name := outputName(inputName, true)
	out, closeOut, err := createOutput(cl, name)
	if err != nil {
		return err
	}

	errs := &errors.M{}
	if err := copyWithProgress(ctx, out, cr, cl.Progress); err != nil {
		errs.Append(err)
	}
	errs.Append(closeOut())
	return errs.Err()
}

// copyWithProgress drives an io.Copy-style loop directly: there is no
// codec goroutine to report progress, so the bar is fed straight off this
// loop instead of over a progress channel.
func copyWithProgress(ctx context.Context, dst io.Writer, src io.Reader, showBar bool) error {
	if !showBar || !terminal.IsTerminal(int(os.Stderr.Fd())) {
		_, err := io.Copy(dst, src)
		return err
	}
	bar := progressbar.NewOptions64(-1,
		progressbar.OptionSetBytes64(-1),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetPredictTime(false))
	w := io.MultiWriter(dst, bar)
	buf := make([]byte, 64*1024)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return werr
			}
		}
		if err == io.EOF {
			fmt.Fprintln(os.Stderr)
			return nil
		}
		if err != nil {
			return err
		}
	}
}
