//go:build !cgo

package bddisasm

func defaultEngine() engine { return nil }
