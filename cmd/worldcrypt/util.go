package main

import (
	"fmt"
	"os"
)

// Eprintln prints to stderr
func Eprintln(a ...interface{}) {
	fmt.Fprintln(os.Stderr, a...)
}

// Fatalln prints to stderr and exits
func Fatalln(a ...interface{}) {
	Eprintln(a...)
	os.Exit(1)
}
