// Command cachectl inspects and maintains an asidecache store from the shell.
package main

import "os"

func main() {
	if err := newRootCmd(newApp()).Execute(); err != nil {
		os.Exit(1)
	}
}
