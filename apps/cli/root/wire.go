package root

import (
	"github.com/zenGate-Global/schoolspace/apps/cli/cmd/auth"
	"github.com/zenGate-Global/schoolspace/apps/cli/cmd/bootstrap"
	"github.com/zenGate-Global/schoolspace/apps/cli/cmd/school"
)

func init() {
	Root().AddCommand(auth.Command())
	Root().AddCommand(bootstrap.Command())
	Root().AddCommand(school.Command())
}
