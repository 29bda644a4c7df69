//go:build tools

// Package chat_fanout pins the tools run by go generate so that go.mod and
// go.sum track them. mockgen regenerates everything under mocks/.
package chat_fanout

import (
	_ "go.uber.org/mock/mockgen"
)
