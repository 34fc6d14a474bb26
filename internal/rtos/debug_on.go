//go:build rtosdebug

package rtos

const debugChecks = true
