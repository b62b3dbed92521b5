// Package main provides the uiv1 command line: the report browser and the
// debug bus client for a running uiv1d.
package main

func main() {
	Execute()
}
