// Copyright 2025 The rdbmerge Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Command rdbmerge merges version-6 dump files into MERGE.rdb and optional
// per-database PART fragments.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/rdbtools/rdbmerge"
	"github.com/rdbtools/rdbmerge/rdb"
)

// dbList collects repeatable -d flags; each occurrence may also be a
// comma-separated list.
type dbList []uint64

func (l *dbList) String() string {
	parts := make([]string, len(*l))
	for i, n := range *l {
		parts[i] = strconv.FormatUint(n, 10)
	}
	return strings.Join(parts, ",")
}

func (l *dbList) Set(s string) error {
	for _, part := range strings.Split(s, ",") {
		n, err := strconv.ParseUint(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return fmt.Errorf("bad database number %q", part)
		}
		*l = append(*l, n)
	}
	return nil
}

func main() {
	var dbs dbList
	flag.Var(&dbs, "d", "database `number` to export as a PART file (repeatable)")
	outputDir := flag.String("o", ".", "output/working `directory`")
	overwrite := flag.Bool("overwrite", false, "later inputs overwrite duplicate keys instead of failing the run")
	noVerify := flag.Bool("no-verify", false, "do not fail on input checksum mismatches")
	compress := flag.Bool("compress", false, "LZF-compress large strings in the outputs")
	verbose := flag.Bool("v", false, "verbose logging")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [options] FILE.rdb ...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	opts := []rdbmerge.Option{
		rdbmerge.WithLogger(logger),
		rdbmerge.WithFragmentDatabases(dbs...),
	}
	if *overwrite {
		opts = append(opts, rdbmerge.WithDuplicatePolicy(rdb.OverwriteDuplicates))
	}
	if *noVerify {
		opts = append(opts, rdbmerge.WithoutChecksumVerification())
	}
	if *compress {
		opts = append(opts, rdbmerge.WithCompression())
	}

	m, err := rdbmerge.NewMerger(*outputDir, opts...)
	if err != nil {
		logger.Error("setup failed", "err", err)
		os.Exit(1)
	}
	if err := m.Run(flag.Args()...); err != nil {
		logger.Error("merge failed", "err", err)
		os.Exit(1)
	}
}
