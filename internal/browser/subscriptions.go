package browser

// Subscriptions collects the release functions a tracker obtains from a Host so
// it can detach everything in one call.
type Subscriptions struct {
	releases []func()
}

// Add records a release function; nil is ignored.
func (s *Subscriptions) Add(release func()) {
	if release != nil {
		s.releases = append(s.releases, release)
	}
}

// Release runs every recorded release function in reverse order and forgets
// them. Calling Release twice is harmless.
func (s *Subscriptions) Release() {
	for i := len(s.releases) - 1; i >= 0; i-- {
		s.releases[i]()
	}
	s.releases = nil
}

// Len returns the number of live subscriptions.
func (s *Subscriptions) Len() int {
	return len(s.releases)
}
