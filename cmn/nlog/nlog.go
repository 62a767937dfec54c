// Package nlog - tarok logger: buffering, timestamping, severity filtering.
/*
 * Copyright (c) 2018-2025, NVIDIA CORPORATION. All rights reserved.
 */
package nlog

import (
	"bufio"
	"fmt"
	"os"
	"sync"
	"time"
)

type severity int

const (
	sevInfo severity = iota
	sevWarn
	sevErr
)

var sevText = [...]string{"I", "W", "E"}

var (
	mu  sync.Mutex
	out = bufio.NewWriterSize(os.Stderr, 4096)

	// minimum severity that gets written; tests may raise it to silence output
	threshold = sevInfo
)

func log(sev severity, format string, args ...any) {
	if sev < threshold {
		return
	}
	var line string
	if format == "" {
		line = fmt.Sprintln(args...)
	} else {
		line = fmt.Sprintf(format, args...)
		if line == "" || line[len(line)-1] != '\n' {
			line += "\n"
		}
	}
	stamp := time.Now().Format("15:04:05.000000")
	mu.Lock()
	out.WriteString(sevText[sev] + " " + stamp + " " + line)
	if sev >= sevErr {
		out.Flush()
	}
	mu.Unlock()
}

func Infoln(args ...any)                  { log(sevInfo, "", args...) }
func Infof(format string, args ...any)    { log(sevInfo, format, args...) }
func Warningln(args ...any)               { log(sevWarn, "", args...) }
func Warningf(format string, args ...any) { log(sevWarn, format, args...) }
func Errorln(args ...any)                 { log(sevErr, "", args...) }
func Errorf(format string, args ...any)   { log(sevErr, format, args...) }

func SetVerbose(v bool) {
	mu.Lock()
	if v {
		threshold = sevInfo
	} else {
		threshold = sevWarn
	}
	mu.Unlock()
}

func Flush() {
	mu.Lock()
	out.Flush()
	mu.Unlock()
}
