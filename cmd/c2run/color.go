package main

import (
	"os"

	"github.com/mattn/go-isatty"

	"github.com/chazu/c2script/vm"
)

const (
	ansiReset  = "\033[0m"
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
)

// colorEnabled reports whether output to f should be colored.
func colorEnabled(f *os.File) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// stateLabel renders a process state, colored when color is set.
func stateLabel(s vm.State, color bool) string {
	if !color {
		return s.String()
	}
	c := ansiYellow
	switch s {
	case vm.Ended:
		c = ansiGreen
	case vm.Failed, vm.Terminated:
		c = ansiRed
	}
	return c + s.String() + ansiReset
}
