package checkout

// IDGenerator produces order, item, and ledger identifiers.
type IDGenerator interface {
	NewID() string
}
