// Package cos provides common low-level types and utilities for all tarok packages.
/*
 * Copyright (c) 2018-2025, NVIDIA CORPORATION. All rights reserved.
 */
package cos

import (
	jsoniter "github.com/json-iterator/go"
)

// JSON is used to Marshal/Unmarshal configuration and is initialized in init function.
var JSON jsoniter.API

func init() {
	jsonConf := jsoniter.Config{
		EscapeHTML:             false,
		ValidateJsonRawMessage: false,
		DisallowUnknownFields:  true, // make sure we have exactly the struct user requested
		SortMapKeys:            true,
	}
	JSON = jsonConf.Froze()
}

func MustMarshal(v any) []byte {
	b, err := JSON.Marshal(v)
	AssertNoErr(err)
	return b
}
