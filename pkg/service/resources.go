package service

// Resources is the cluster capacity one service consumes.
type Resources struct {
	// CPUMilli is the cpu request in millicores.
	CPUMilli int

	// RAMInMiB is the memory request in MiB.
	RAMInMiB int

	// Instances is the pod count.
	Instances int
}

// Add sums two resource requirements.
func (r Resources) Add(other Resources) Resources {
	return Resources{
		CPUMilli:  r.CPUMilli + other.CPUMilli,
		RAMInMiB:  r.RAMInMiB + other.RAMInMiB,
		Instances: r.Instances + other.Instances,
	}
}

// Sizer is implemented by services that consume cluster capacity.
type Sizer interface {
	Resources() Resources
}
