package id

import "github.com/google/uuid"

// Generator produces opaque unique identifiers for orders, items, and
// gateway references.
type Generator struct{}

func NewUUIDGenerator() *Generator { return &Generator{} }

func (*Generator) NewID() string { return uuid.NewString() }
