package types

// HostKind tells how commands reach a host.
type HostKind int

const (
	// HostLocal is the machine running the dashboard; commands execute directly.
	HostLocal HostKind = iota
	// HostRemote is reached through the SSH transport.
	HostRemote
)

// String returns the lowercase name of the host kind.
func (k HostKind) String() string {
	if k == HostLocal {
		return "local"
	}
	return "remote"
}

// Host is one entry from the host list, classified once per run.
type Host struct {
	// Address is the raw address from the host list.
	Address string
	// Kind is HostLocal for the local marker, HostRemote otherwise.
	Kind HostKind
	// Reachable reports the result of the connectivity probe.
	// It is always true for local hosts.
	Reachable bool
}
