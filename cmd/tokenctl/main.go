// Command tokenctl generates token keys and issues or inspects verification
// and password reset tokens with the server's key material.
package main

import (
	"os"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	if err := newRootCmd(os.Stdout, loadService).Execute(); err != nil {
		os.Exit(1)
	}
}
