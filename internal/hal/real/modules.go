package real

import (
	"fmt"
	"os/exec"

	"github.com/rs/zerolog/log"
)

// ModuleLoader loads the kernel modules the 1-Wire bus needs. Errors are
// returned, not panicked on: the supervisor decides whether a missing
// module is fatal.
type ModuleLoader struct{}

func NewModuleLoader() *ModuleLoader { return &ModuleLoader{} }

func (ModuleLoader) LoadOneWireModules() error {
	for _, mod := range []string{"w1-gpio", "w1-therm"} {
		cmd := exec.Command("modprobe", mod)
		if out, err := cmd.CombinedOutput(); err != nil {
			log.Error().Err(err).Str("module", mod).Str("output", string(out)).Msg("failed to load kernel module")
			return fmt.Errorf("modprobe %s: %w", mod, err)
		}
	}
	return nil
}
