//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
)

type Build mg.Namespace

// Compiles the player binary.
func (Build) Player() error {
	if _, err := executeCmd("go", withArgs("build", "-o", "prism", "."), withStream()); err != nil {
		return err
	}
	return nil
}

// Tidies the module files.
func (Build) Tidy() error {
	return goTidy()
}

// Runs the linters and the full test suite.
func (Build) Check() error {
	if _, err := executeCmd("go", withArgs("vet", "./..."), withStream()); err != nil {
		return err
	}
	if _, err := executeCmd("go", withArgs("test", "./..."), withStream()); err != nil {
		return err
	}
	return nil
}
