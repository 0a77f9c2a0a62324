// Package main is the entry point for Stencil.
package main

func main() {
	Execute()
}
