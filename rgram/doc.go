// Package rgram implements resumable grammar elements: small parsers that
// consume bytes from whatever chunk of input happens to be available, keep
// their partial state between chunks, and report when a complete value has
// been accumulated.
//
// A byte stream arrives in arbitrarily sized pieces. Each piece is wrapped in
// a Cursor and handed to the top level grammar with Put. An element never
// blocks and never consumes more than it needs; once the cursor is exhausted
// Put simply returns and the next Put continues where the previous one
// stopped.
//
// Grammars are composed the same way the wire format is written down:
//
//	count := rgram.NewUint16()
//	items := rgram.NewDynamicArray[int32](rgram.NewInt32())
//	msg := rgram.NewSequence(
//		rgram.NewPadding(1),
//		rgram.OnDone(count, func() { items.SetSize(int(count.Get())) }),
//		items,
//	)
//
// Failures are not errors. A Choice whose discriminant has no mapping enters
// a terminal faulted state: it reports Done, and Fault reports true. Composite
// elements stop at the first faulted child and fault themselves, so callers
// check Fault before using a completed value.
//
// Calling Put on an element that is already Done, or Get before it is Done,
// is a programming error and panics.
package rgram
