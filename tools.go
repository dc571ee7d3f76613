// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build tools
// +build tools

// Package main pins test dependencies that are only imported behind build
// tags to go.mod.
package main

import (
	// Integration suites (build tag "integration")
	_ "github.com/onsi/ginkgo/v2"
	_ "github.com/onsi/gomega"
	_ "github.com/testcontainers/testcontainers-go"
	_ "github.com/testcontainers/testcontainers-go/modules/postgres"

	// Unit tests
	_ "github.com/stretchr/testify/mock"
	_ "go.uber.org/goleak"
)
