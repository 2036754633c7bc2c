//go:build !windows

package main

// DPI awareness is a Windows concern; X11 and Wayland report physical
// pixels through the capture library already.
func enableDPIAwareness() {}
