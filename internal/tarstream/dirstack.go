package tarstream

import "strings"

// DirStack remembers every directory header observed so far in the input
// (the registry) and, separately, which of those directories have already
// been written into the volume currently being assembled (present). Rotating
// to a new volume resets present but never registry, since a directory's
// header must remain available for replay for as long as any of its
// descendants might still need it recreated ahead of them.
type DirStack struct {
	registry map[string]*Record
	present  map[string]bool
}

// NewDirStack returns an empty DirStack.
func NewDirStack() *DirStack {
	return &DirStack{
		registry: make(map[string]*Record),
		present:  make(map[string]bool),
	}
}

func normalizeDirName(name string) string {
	if strings.HasSuffix(name, "/") {
		return name
	}
	return name + "/"
}

// ancestors returns the ordered, outermost-first list of directory prefixes
// implied by name, not including name itself.
func ancestors(name string) []string {
	name = strings.TrimSuffix(name, "/")
	parts := strings.Split(name, "/")
	var out []string
	for i := 1; i < len(parts); i++ {
		out = append(out, strings.Join(parts[:i], "/")+"/")
	}
	return out
}

// Observe records rec as the directory registered at its path, the first
// time that path is seen, and marks it present in the volume currently being
// written. Non-directory records are ignored.
func (d *DirStack) Observe(rec *Record) {
	if rec.Kind != KindDirectory {
		return
	}
	norm := normalizeDirName(rec.Name)
	if _, ok := d.registry[norm]; !ok {
		d.registry[norm] = rec
	}
	d.present[norm] = true
}

// PendingAncestors reports, without modifying any state, which ancestor
// directories of name are registered but not yet present in the current
// volume, outermost first. An ancestor whose header was never observed is
// silently skipped: there is nothing to replay for it.
func (d *DirStack) PendingAncestors(name string) []*Record {
	var out []*Record
	for _, a := range ancestors(name) {
		if d.present[a] {
			continue
		}
		if rec, ok := d.registry[a]; ok {
			out = append(out, rec)
		}
	}
	return out
}

// ReplayAncestors is PendingAncestors, except every directory it returns is
// immediately marked present, as if its header had just been written.
func (d *DirStack) ReplayAncestors(name string) []*Record {
	pending := d.PendingAncestors(name)
	for _, rec := range pending {
		d.present[normalizeDirName(rec.Name)] = true
	}
	return pending
}

// BeginVolume forgets which directories are present, called whenever the
// engine rotates to a new volume. Registered directories are unaffected.
func (d *DirStack) BeginVolume() {
	d.present = make(map[string]bool)
}
