package quota

// Store tracks per-identity request counts over a fixed window.
//
// Take is the single entry point: it creates the record on first use,
// resets it when the window has expired, and increments the count when
// the request is allowed. Implementations must make Take atomic per
// identity so concurrent requests cannot both slip under the limit.
type Store interface {
	Take(identity string) Decision
}
