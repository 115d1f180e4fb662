package deploy

// State is a state of the deployment state machine.
type State string

const (
	StateInit           State = "INIT"
	StatePrecheck       State = "PRECHECK"
	StateDrain          State = "DRAIN"
	StateCreated        State = "CREATED"
	StateSchemasCloned  State = "SCHEMAS_CLONED"
	StateBuilt          State = "BUILT"
	StateGrantsCloned   State = "GRANTS_CLONED"
	StateSwapped        State = "SWAPPED"
	StateDropped        State = "DROPPED"
	StateDone           State = "DONE"
	StateFailureCleanup State = "FAILURE_CLEANUP"
	StateFailed         State = "FAILED"
)

func (s State) String() string {
	return string(s)
}
