//go:build cgo

package bddisasm

import "github.com/bitdefender/bddisasm/internal/native"

func defaultEngine() engine { return native.New() }
