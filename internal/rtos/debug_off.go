//go:build !rtosdebug

package rtos

const debugChecks = false
