// Package asha drives one or two ASHA (Audio Streaming for Hearing Aids)
// peripherals over Bluetooth Low Energy.
//
// It discovers already-paired peripherals, binds their GATT control plane
// and opens an L2CAP connection-oriented audio channel per ear, captures PCM
// audio from the local default input, encodes it to 20 ms G.722 frames, and
// paces delivery of those frames to each ear at the cadence the ASHA
// firmware requires.
//
// The package exposes no CLI or GUI; callers drive a Session programmatically.
package asha
