package idset

// Category names an independent ID namespace. Two categories are the same
// namespace iff they are equal.
type Category string

// Name returns the stable external name used as the storage key.
func (c Category) Name() string { return string(c) }

func (c Category) String() string { return string(c) }
