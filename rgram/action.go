package rgram

// Action wraps an element and runs a callback the moment it completes. It is
// how a decoded length field sizes the array that follows it, and how a
// session learns that a message is ready.
type Action struct {
	GramEl
	fn    func()
	fired bool
}

// OnDone returns el wrapped so that fn runs once per pass, immediately after
// el completes. fn does not run for a faulted element.
func OnDone(el GramEl, fn func()) *Action {
	return &Action{GramEl: el, fn: fn}
}

func (a *Action) Put(c *Cursor) {
	mustNotBeDone(a)

	a.GramEl.Put(c)
	a.fire()
}

func (a *Action) Reset() {
	a.GramEl.Reset()
	a.fired = false
}

func (a *Action) Fault() bool {
	return Faulted(a.GramEl)
}

func (a *Action) fire() {
	if a.fired || !a.GramEl.Done() {
		return
	}

	a.fired = true
	if !Faulted(a.GramEl) && a.fn != nil {
		a.fn()
	}
}

var _ Faulter = (*Action)(nil)
