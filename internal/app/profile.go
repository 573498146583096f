package app

import (
	"github.com/pkg/profile"
)

var profileModes = map[string]func(*profile.Profile){
	"cpu": profile.CPUProfile,
	"mem": profile.MemProfile,
}

type noProfile struct{}

func (noProfile) Stop() {}

// StartProfile starts profiling in the given mode, writing into dir. The
// returned value stops it. An empty mode does nothing.
func StartProfile(mode, dir string) interface{ Stop() } {
	fn, ok := profileModes[mode]
	if !ok {
		return noProfile{}
	}
	opts := []func(*profile.Profile){fn, profile.Quiet, profile.NoShutdownHook}
	if dir != "" {
		opts = append(opts, profile.ProfilePath(dir))
	}
	return profile.Start(opts...)
}
