package reactive

// DropResource runs a cleanup function exactly once.
type DropResource struct {
	fn func()
}

// NewDropResource wraps fn.
func NewDropResource(fn func()) *DropResource {
	return &DropResource{fn: fn}
}

// Off runs the cleanup if it has not run yet.
func (d *DropResource) Off() {
	if d == nil || d.fn == nil {
		return
	}
	fn := d.fn
	d.fn = nil
	fn()
}

// Closer adapts anything with an Off method to a plain cleanup function.
type Closer interface {
	Off()
}
