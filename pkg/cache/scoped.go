package cache

// ScopedKeyer prefixes every key of an inner keyer, so several datasets or
// dashboards can share one backend without colliding.
//
//	keyer := NewScopedKeyer(NewDefaultKeyer(), "run:"+runID+":")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer returns a keyer that prepends prefix. A nil inner keyer is
// replaced by [DefaultKeyer].
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// ViewKey returns the prefixed view key.
func (k *ScopedKeyer) ViewKey(sceneHash string, eye [3]float64, size int, opts ViewKeyOpts) string {
	return k.prefix + k.inner.ViewKey(sceneHash, eye, size, opts)
}

// FrameKey returns the prefixed frame key.
func (k *ScopedKeyer) FrameKey(stateHash string, frame int, opts FrameKeyOpts) string {
	return k.prefix + k.inner.FrameKey(stateHash, frame, opts)
}
