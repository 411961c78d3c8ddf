package core

import (
	"github.com/cockroachdb/errors"
)

var (
	ErrNoSuitableDevice = errors.New("no physical device meets the requirements")
	ErrSwapchainBooting = errors.New("swapchain resized or recreated, booting")
	ErrShaderCompile    = errors.New("shader compilation failed")
	ErrNotInitialized   = errors.New("not initialized")
	ErrUnknown          = errors.New("unknown")
)
