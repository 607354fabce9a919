//go:build windows

package main

import "codeberg.org/mutker/powerwatch/internal/app"

func setupDebugSignalHandlers(_ *app.App) {}
