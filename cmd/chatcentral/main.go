package main

import (
	"fmt"
	"os"

	"github.com/flowKKo/chat-central-sub002/internal/model"
)

func main() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", exitMessage(err))
		os.Exit(1)
	}
}

// exitMessage reduces err to the stable string CLI callers can script
// against: a model.Error's Kind when present, otherwise the error's own
// message (cobra usage errors, flag parse errors -- these never carry
// sensitive internals).
func exitMessage(err error) string {
	if kind, ok := model.AsKind(err); ok {
		return string(kind)
	}
	return err.Error()
}
