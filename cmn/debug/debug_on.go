//go:build debug

// Package debug provides debug utilities
/*
 * Copyright (c) 2018-2025, NVIDIA CORPORATION. All rights reserved.
 */
package debug

import (
	"fmt"

	"github.com/tarok-gc/tarok/cmn/nlog"
)

func Enabled() bool { return true }

func Assert(cond bool, a ...any) {
	if !cond {
		msg := "DEBUG PANIC"
		if len(a) > 0 {
			msg += ": " + fmt.Sprint(a...)
		}
		nlog.Flush()
		panic(msg)
	}
}

func Assertf(cond bool, f string, a ...any) {
	if !cond {
		Assert(false, fmt.Sprintf(f, a...))
	}
}

func AssertNoErr(err error) {
	if err != nil {
		nlog.Flush()
		panic(err)
	}
}

func Infof(f string, a ...any) {
	nlog.Infof("[DEBUG] "+f, a...)
}
