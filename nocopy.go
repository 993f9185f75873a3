package coloop

// noCopy may be embedded in structs that must not be copied after
// first use. go vet's copylocks check flags copies because it
// implements sync.Locker.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}
