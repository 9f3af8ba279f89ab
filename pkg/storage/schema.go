package storage

import "github.com/blackcoderx/probe/pkg/collection"

// AssertionSet is the on-disk form of the blocks injected into each request.
type AssertionSet struct {
	Blocks []collection.Block `yaml:"blocks"` // Injected in order
}
