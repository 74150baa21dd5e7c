package deploy

// Mode is the deployment flavour of the running application.
type Mode int

const (
	Development Mode = iota
	Packaged
)

// ModeFromPackaged maps the host's packaging flag to a Mode.
func ModeFromPackaged(packaged bool) Mode {
	if packaged {
		return Packaged
	}
	return Development
}

func (m Mode) String() string {
	switch m {
	case Packaged:
		return "packaged"
	case Development:
		return "development"
	default:
		return "unknown"
	}
}
