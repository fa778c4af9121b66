//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Runs the demo player from source.
func (Run) Player() error {
	fmt.Println("Run player...")
	if _, err := executeCmd("go", withArgs("run", "main.go"), withStream()); err != nil {
		return err
	}
	return nil
}

// Runs the demo player with debug logging and a local shader cache.
func (Run) Debug() error {
	if _, err := executeCmd("go", withArgs("run", "main.go", "-config", "prism.debug.toml"), withStream()); err != nil {
		return err
	}
	return nil
}
