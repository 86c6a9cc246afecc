package automation

import "context"

// KeyEnter is appended to typed text to submit the focused form.
const KeyEnter = "\r"

// Handle is the capability to drive one interactive page bound to one browser
// context. Every call is bounded by the deadline of the context it receives.
type Handle interface {
	Navigate(ctx context.Context, url string) error
	WaitFor(ctx context.Context, loc Locator) error
	Type(ctx context.Context, loc Locator, text string) error
	Click(ctx context.Context, loc Locator) error
	// Evaluate calls the JavaScript function expression fn with args passed as
	// JSON values and decodes its return value into res (which may be nil).
	Evaluate(ctx context.Context, fn string, res any, args ...any) error
	// Text returns the visible text of the element once it is visible.
	Text(ctx context.Context, loc Locator) (string, error)
	// Location returns the page's current URL.
	Location(ctx context.Context) (string, error)
	Close(ctx context.Context) error
}

// Spawner is implemented by handles that can open a sibling page sharing the
// same browser context (and therefore the same authenticated cookies).
type Spawner interface {
	Spawn(ctx context.Context) (Handle, error)
}
