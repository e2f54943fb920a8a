package sandbox

// Profile is the capability grant for one container. Everything is denied
// by default; a specialization only unlocks what its scripts need.
type Profile struct {
	// Network keeps the container attached to the default bridge. Without
	// it the container is created with networking disabled.
	Network bool
	// WritableWorkspace bind-mounts the shared workspace read-write
	// instead of read-only.
	WritableWorkspace bool
}

// ProfileFor maps a worker specialization to its capability profile.
// Unknown specializations fall back to the fully locked-down profile.
func ProfileFor(specialization string) Profile {
	switch specialization {
	case "network":
		return Profile{Network: true}
	case "file", "data":
		return Profile{WritableWorkspace: true}
	default:
		return Profile{}
	}
}
