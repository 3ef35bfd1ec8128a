package main

import (
	"nadlan-export/cmd/nadlan-cli/commands"
	"nadlan-export/lib/serviceutil"
)

func main() {
	ctx, cancel := serviceutil.SignalContext()
	defer cancel()
	commands.ExecuteContext(ctx)
}
