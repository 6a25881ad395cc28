package spindle

// Item is one output record produced by a spider callback. The engine
// enforces no schema: keys and values are whatever the callback extracted.
type Item map[string]any

// Yield is a single value produced by a callback: either an Item to hand to
// the consumer or a further Request to schedule. Build one with Emit or
// Follow; the zero Yield is invalid and aborts the crawl with
// ErrInvalidYield.
type Yield struct {
	item Item
	req  *Request
}

// Emit wraps an item for emission to the crawl's output sequence.
func Emit(item Item) Yield { return Yield{item: item} }

// Follow wraps a request to be fingerprinted and enqueued.
func Follow(req *Request) Yield { return Yield{req: req} }

// Item returns the wrapped item, nil for request yields.
func (y Yield) Item() Item { return y.item }

// Request returns the wrapped request, nil for item yields.
func (y Yield) Request() *Request { return y.req }
