package main

import (
	_ "gifforge/internal/command/autoscaler"
	_ "gifforge/internal/command/convert"
	"gifforge/internal/command/root"
	_ "gifforge/internal/command/submit"
	_ "gifforge/internal/command/watcher"
	_ "gifforge/internal/command/worker"
)

func main() {
	root.Execute()
}
